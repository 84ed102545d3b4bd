// Package store persists slots, bookings, users, reviews and payments.
//
// Every implementation must make the operations below atomic: BookSlot closes
// the slot and records the booking in one step and fails with
// domain.ErrSlotUnavailable unless the slot was open, CreateSlot/UpdateSlot
// reject overlaps with domain.ErrSlotOverlap, and InsertSlots is all-or-nothing.
package store

import (
	"context"
	"time"

	"booking-service/internal/domain"
)

type SlotStore interface {
	// ListOpenSlots returns open slots, optionally restricted to one date.
	ListOpenSlots(ctx context.Context, date string) ([]domain.Slot, error)
	// ListSlots returns every slot between from and to inclusive with its booked flag.
	// Empty bounds mean unbounded.
	ListSlots(ctx context.Context, from, to string) ([]domain.SlotView, error)
	GetSlot(ctx context.Context, id int64) (domain.Slot, error)
	CreateSlot(ctx context.Context, s *domain.Slot) error
	UpdateSlot(ctx context.Context, s *domain.Slot) error
	DeleteSlot(ctx context.Context, id int64) error
	SetSlotOpen(ctx context.Context, id int64, open bool) (int64, error)
	// InsertSlots inserts each slot unless it collides with an existing one and
	// reports how many rows were written.
	InsertSlots(ctx context.Context, slots []domain.Slot) (int, error)
	// HasOverlap reports whether a slot other than excludeID intersects the interval.
	HasOverlap(ctx context.Context, date, start, end string, excludeID int64) (bool, error)
}

type BookingStore interface {
	BookSlot(ctx context.Context, nb domain.NewBooking) (domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (domain.Booking, error)
	CancelBooking(ctx context.Context, id int64) error
	ListBookingsByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
	ListAllBookings(ctx context.Context) ([]domain.BookingView, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetOwnerByName(ctx context.Context, name string) (domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	// EnsureUser returns the user with u.Email, creating it from u when absent.
	EnsureUser(ctx context.Context, u *domain.User) error
	// UpsertOwner creates or refreshes the owner account keyed by email.
	UpsertOwner(ctx context.Context, u *domain.User) error
}

type ReviewStore interface {
	// CreateReview inserts r unless the user already reviewed within window.
	CreateReview(ctx context.Context, r *domain.Review, window time.Duration) error
	ListReviews(ctx context.Context) ([]domain.ReviewView, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
}

// Store is the full persistence handle passed to the application.
type Store interface {
	SlotStore
	BookingStore
	UserStore
	ReviewStore
	PaymentStore
	Ping(ctx context.Context) error
}
