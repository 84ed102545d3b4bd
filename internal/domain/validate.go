package domain

import (
	"errors"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		return IsDate(fl.Field().String())
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return IsClock(fl.Field().String())
	})
	return v
}

// IsDate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// IsClock reports whether s is a wall-clock time in HH:MM form.
func IsClock(s string) bool {
	if !clockPattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}

func IsEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// Sanitize trims whitespace and strips anything that looks like an HTML tag.
func Sanitize(s string) string {
	return tagPattern.ReplaceAllString(strings.TrimSpace(s), "")
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsStrongPassword requires 8+ characters with at least one letter and one digit.
func IsStrongPassword(p string) bool {
	if len(p) < 8 {
		return false
	}
	var letter, digit bool
	for _, r := range p {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

type slotRules struct {
	Date      string `validate:"ymd"`
	StartTime string `validate:"hhmm"`
	EndTime   string `validate:"hhmm"`
}

// NormalizeSlot trims the textual fields of s.
func NormalizeSlot(s Slot) Slot {
	s.Date = strings.TrimSpace(s.Date)
	s.StartTime = strings.TrimSpace(s.StartTime)
	s.EndTime = strings.TrimSpace(s.EndTime)
	return s
}

// ValidateSlot checks formats and that the slot starts before it ends.
func ValidateSlot(s Slot) error {
	err := validate.Struct(slotRules{Date: s.Date, StartTime: s.StartTime, EndTime: s.EndTime})
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		if fieldErrs[0].Tag() == "ymd" {
			return Validation("Invalid date format (YYYY-MM-DD required).")
		}
		return Validation("Invalid time format (HH:MM required).")
	}
	if err != nil {
		return err
	}
	if s.StartTime >= s.EndTime {
		return Validation("Start time must be before end time.")
	}
	return nil
}

// BookingRequest is the public booking form.
type BookingRequest struct {
	AvailabilityID int64  `json:"availability_id"`
	Service        string `json:"service"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	Address        string `json:"address,omitempty"`
}

// Normalize sanitizes free-text fields and canonicalizes the email.
func (r BookingRequest) Normalize() BookingRequest {
	r.Service = strings.TrimSpace(r.Service)
	r.CustomerName = Sanitize(r.CustomerName)
	r.CustomerEmail = NormalizeEmail(r.CustomerEmail)
	r.Address = Sanitize(r.Address)
	return r
}

func (r BookingRequest) Validate() error {
	if r.AvailabilityID == 0 || r.Service == "" || r.CustomerName == "" || r.CustomerEmail == "" {
		return Validation("Missing booking data.")
	}
	if !slices.Contains(Services, r.Service) {
		return Validation("Invalid service selected.")
	}
	if err := ValidateName(r.CustomerName); err != nil {
		return err
	}
	if !IsEmail(r.CustomerEmail) {
		return Validation("Invalid email format.")
	}
	if RequiresAddress(r.Service) && r.Address == "" {
		return Validation("Service address is required for mobile bookings.")
	}
	if r.AvailabilityID < 1 {
		return Validation("Invalid slot ID.")
	}
	return nil
}

func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 2 || n > 100 {
		return Validation("Name must be between 2 and 100 characters.")
	}
	return nil
}

const MaxReviewComment = 1000

func ValidateReview(rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return Validation("Rating must be an integer between 1 and 5.")
	}
	if utf8.RuneCountInString(comment) > MaxReviewComment {
		return Validation("Review comment must be under 1000 characters.")
	}
	return nil
}

// MinPaymentAmount is in the currency's minor unit.
const MinPaymentAmount = 50

func ValidatePayment(amount int64, currency string) error {
	if amount < MinPaymentAmount {
		return Validation("Invalid payment amount.")
	}
	if validate.Var(currency, "oneof=usd eur gbp") != nil {
		return Validation("Unsupported currency.")
	}
	return nil
}
