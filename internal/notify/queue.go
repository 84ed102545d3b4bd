package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeBookingNotify = "booking:notify"

// Queue dispatches events as durable asynq tasks in Redis. A Worker in the
// same or another process performs delivery with asynq's retry policy.
type Queue struct {
	client   *asynq.Client
	maxRetry int
}

func NewQueue(opt asynq.RedisConnOpt, maxRetry int) *Queue {
	return &Queue{client: asynq.NewClient(opt), maxRetry: maxRetry}
}

func NewBookingTask(ev BookingEvent) (*asynq.Task, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBookingNotify, b), nil
}

func (q *Queue) Dispatch(ctx context.Context, ev BookingEvent) error {
	task, err := NewBookingTask(ev)
	if err != nil {
		return err
	}
	_, err = q.client.EnqueueContext(ctx, task, asynq.MaxRetry(q.maxRetry), asynq.TaskID(ev.Key()))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue booking notification: %w", err)
	}
	return nil
}

func (q *Queue) Close(context.Context) error {
	return q.client.Close()
}

// HandleBookingTask returns the asynq handler that delivers one event.
// Returning an error hands the task back to asynq for retry.
func HandleBookingTask(n Notifier, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var ev BookingEvent
		if err := json.Unmarshal(task.Payload(), &ev); err != nil {
			log.Error("invalid booking notification payload", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := n.Notify(ctx, ev); err != nil {
			log.Warn("booking notification attempt failed", zap.String("key", ev.Key()), zap.Error(err))
			return err
		}
		return nil
	}
}

// Worker runs the asynq server that consumes booking notifications.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewWorker(opt asynq.RedisConnOpt, n Notifier, log *zap.Logger) *Worker {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{"default": 1},
		Logger:      log.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingNotify, HandleBookingTask(n, log))
	return &Worker{srv: srv, mux: mux}
}

func (w *Worker) Start() error { return w.srv.Start(w.mux) }

func (w *Worker) Shutdown() { w.srv.Shutdown() }
