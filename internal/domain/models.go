package domain

import "time"

// Date and clock layouts used on the wire and in the store.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleOwner Role = "OWNER"
)

type BookingStatus string

const (
	StatusBooked    BookingStatus = "BOOKED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// Services offered. Mobile is performed at the customer's address.
const (
	ServiceFullCut = "Full Cut"
	ServiceLineup  = "Lineup"
	ServiceMobile  = "Mobile"
)

var Services = []string{ServiceFullCut, ServiceLineup, ServiceMobile}

// RequiresAddress reports whether the service is performed on site.
func RequiresAddress(service string) bool {
	return service == ServiceMobile
}

// Slot is one row of availability. Date is YYYY-MM-DD, times are HH:MM wall clock.
type Slot struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsOpen    bool   `json:"is_open"`
}

// Key is the natural key used by idempotent inserts.
func (s Slot) Key() string {
	return s.Date + " " + s.StartTime + "-" + s.EndTime
}

// Overlaps uses half-open interval semantics on the same date.
func (s Slot) Overlaps(o Slot) bool {
	return s.Date == o.Date && s.StartTime < o.EndTime && s.EndTime > o.StartTime
}

// SlotView is a slot as the owner sees it.
type SlotView struct {
	Slot
	IsBooked bool `json:"is_booked"`
}

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Booking keeps a snapshot of the slot's date and times taken at creation.
type Booking struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	SlotID    *int64        `json:"availability_id,omitempty"`
	Service   string        `json:"service"`
	Address   string        `json:"address,omitempty"`
	Date      string        `json:"date"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

type BookingView struct {
	Booking
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// NewBooking is what the store needs to consume a slot.
type NewBooking struct {
	SlotID  int64
	UserID  int64
	Service string
	Address string
}

type Review struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type ReviewView struct {
	Review
	Name string `json:"name"`
}

type Payment struct {
	ID              int64     `json:"id"`
	BookingID       int64     `json:"booking_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	PaymentIntentID string    `json:"stripe_payment_intent_id"`
	CreatedAt       time.Time `json:"created_at"`
}
