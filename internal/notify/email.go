package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// mailer is satisfied by *gomail.Dialer.
type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Email sends the owner an alert and the customer a confirmation over SMTP.
type Email struct {
	From  string
	Owner string

	dialer mailer
}

func NewEmail(host string, port int, username, password, from, owner string) *Email {
	return &Email{
		From:   from,
		Owner:  owner,
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

func (e *Email) Notify(_ context.Context, ev BookingEvent) error {
	var msgs []*gomail.Message
	if e.Owner != "" {
		msgs = append(msgs, e.message(e.Owner,
			fmt.Sprintf("New booking: %s on %s at %s", ev.Service, ev.Date, Clock12(ev.StartTime)),
			ev.Summary()))
	}
	if ev.CustomerEmail != "" {
		msgs = append(msgs, e.message(ev.CustomerEmail,
			"Your booking is confirmed",
			fmt.Sprintf("Hi %s,\n\nYou're booked for %s on %s from %s to %s.\n\nSee you then!",
				ev.CustomerName, ev.Service, ev.Date, Clock12(ev.StartTime), Clock12(ev.EndTime))))
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := e.dialer.DialAndSend(msgs...); err != nil {
		return fmt.Errorf("send booking email: %w", err)
	}
	return nil
}

func (e *Email) message(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}
