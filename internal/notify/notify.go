// Package notify delivers booking notifications to the owner and customer.
// Delivery is decoupled from booking: callers hand events to a Dispatcher
// after the booking commits and never see delivery failures.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BookingEvent is the payload describing a freshly committed booking.
type BookingEvent struct {
	BookingID     int64  `json:"booking_id"`
	Service       string `json:"service"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Address       string `json:"address,omitempty"`
}

// Key identifies the event for de-duplication across retries.
func (ev BookingEvent) Key() string {
	return fmt.Sprintf("booking-%d", ev.BookingID)
}

// Summary is the human-readable body shared by text channels.
func (ev BookingEvent) Summary() string {
	lines := []string{
		"New booking",
		"Name: " + ev.CustomerName,
		"Email: " + ev.CustomerEmail,
		"Service: " + ev.Service,
		"Date: " + ev.Date,
		"Time: " + Clock12(ev.StartTime) + " - " + Clock12(ev.EndTime),
	}
	if ev.Address != "" {
		lines = append(lines, "Address: "+ev.Address)
	}
	return strings.Join(lines, "\n")
}

// Clock12 renders "16:05" as "4:05 PM". Unparseable input is returned unchanged.
func Clock12(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

type Notifier interface {
	Notify(ctx context.Context, ev BookingEvent) error
}

// Multi fans an event out to every notifier and joins their failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev BookingEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes the event to the logger. Used when no channel is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Notify(_ context.Context, ev BookingEvent) error {
	l.Logger.Info("booking notification",
		zap.Int64("booking_id", ev.BookingID),
		zap.String("service", ev.Service),
		zap.String("date", ev.Date),
		zap.String("start", ev.StartTime),
		zap.String("customer", ev.CustomerEmail),
	)
	return nil
}
