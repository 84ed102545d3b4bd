package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("dispatcher closed")
)

// Dispatcher hands events off for delivery outside the request path.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev BookingEvent) error
	Close(ctx context.Context) error
}

type AsyncOptions struct {
	Workers   int
	QueueSize int
	MaxRetry  int
	Backoff   time.Duration
	Timeout   time.Duration
}

func (o *AsyncOptions) defaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 100
	}
	if o.MaxRetry < 0 {
		o.MaxRetry = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
}

// Async delivers events from an in-process bounded queue with retries and
// exponential backoff. Events still queued at Close are drained first.
type Async struct {
	notifier Notifier
	log      *zap.Logger
	opts     AsyncOptions

	mu     sync.RWMutex
	closed bool
	queue  chan BookingEvent
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewAsync(n Notifier, log *zap.Logger, opts AsyncOptions) *Async {
	opts.defaults()
	a := &Async{
		notifier: n,
		log:      log,
		opts:     opts,
		queue:    make(chan BookingEvent, opts.QueueSize),
		stop:     make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		a.wg.Add(1)
		go a.work()
	}
	return a
}

func (a *Async) Dispatch(_ context.Context, ev BookingEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) work() {
	defer a.wg.Done()
	for ev := range a.queue {
		a.deliver(ev)
	}
}

func (a *Async) deliver(ev BookingEvent) {
	backoff := a.opts.Backoff
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), a.opts.Timeout)
		err := a.notifier.Notify(ctx, ev)
		cancel()
		if err == nil {
			return
		}
		if attempt >= a.opts.MaxRetry {
			a.log.Error("booking notification failed",
				zap.String("key", ev.Key()), zap.Int("attempts", attempt+1), zap.Error(err))
			return
		}
		a.log.Warn("booking notification attempt failed, retrying",
			zap.String("key", ev.Key()), zap.Int("attempt", attempt+1), zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-a.stop:
			a.log.Warn("dropping notification retries on shutdown", zap.String("key", ev.Key()))
			return
		}
		backoff *= 2
	}
}

// Close stops intake and waits for queued events until ctx expires, at which
// point pending retries are abandoned.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(a.stop)
		<-done
		return ctx.Err()
	}
}
