package domain

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSlot(t *testing.T) {
	tests := []struct {
		name string
		slot Slot
		want string
	}{
		{"ok", Slot{Date: "2026-03-02", StartTime: "16:00", EndTime: "17:00"}, ""},
		{"bad date", Slot{Date: "03/02/2026", StartTime: "16:00", EndTime: "17:00"}, "Invalid date format (YYYY-MM-DD required)."},
		{"impossible date", Slot{Date: "2026-02-30", StartTime: "16:00", EndTime: "17:00"}, "Invalid date format (YYYY-MM-DD required)."},
		{"bad start", Slot{Date: "2026-03-02", StartTime: "4pm", EndTime: "17:00"}, "Invalid time format (HH:MM required)."},
		{"bad end", Slot{Date: "2026-03-02", StartTime: "16:00", EndTime: "25:00"}, "Invalid time format (HH:MM required)."},
		{"inverted", Slot{Date: "2026-03-02", StartTime: "17:00", EndTime: "16:00"}, "Start time must be before end time."},
		{"empty interval", Slot{Date: "2026-03-02", StartTime: "16:00", EndTime: "16:00"}, "Start time must be before end time."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlot(tt.slot)
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestSlotOverlaps(t *testing.T) {
	a := Slot{Date: "2026-03-02", StartTime: "16:00", EndTime: "17:00"}

	assert.True(t, a.Overlaps(Slot{Date: "2026-03-02", StartTime: "16:30", EndTime: "17:30"}))
	assert.True(t, a.Overlaps(Slot{Date: "2026-03-02", StartTime: "15:00", EndTime: "18:00"}))
	assert.True(t, a.Overlaps(a))
	assert.False(t, a.Overlaps(Slot{Date: "2026-03-02", StartTime: "17:00", EndTime: "18:00"}), "touching intervals do not overlap")
	assert.False(t, a.Overlaps(Slot{Date: "2026-03-02", StartTime: "15:00", EndTime: "16:00"}))
	assert.False(t, a.Overlaps(Slot{Date: "2026-03-03", StartTime: "16:00", EndTime: "17:00"}))
}

func TestBookingRequestValidate(t *testing.T) {
	base := BookingRequest{
		AvailabilityID: 7,
		Service:        ServiceFullCut,
		CustomerName:   "Jordan",
		CustomerEmail:  "jordan@example.com",
	}

	tests := []struct {
		name   string
		mutate func(r *BookingRequest)
		want   string
	}{
		{"ok", func(r *BookingRequest) {}, ""},
		{"missing name", func(r *BookingRequest) { r.CustomerName = "" }, "Missing booking data."},
		{"unknown service", func(r *BookingRequest) { r.Service = "Shave" }, "Invalid service selected."},
		{"short name", func(r *BookingRequest) { r.CustomerName = "J" }, "Name must be between 2 and 100 characters."},
		{"bad email", func(r *BookingRequest) { r.CustomerEmail = "jordan@" }, "Invalid email format."},
		{"mobile without address", func(r *BookingRequest) { r.Service = ServiceMobile }, "Service address is required for mobile bookings."},
		{"mobile with address", func(r *BookingRequest) { r.Service = ServiceMobile; r.Address = "1 Main St" }, ""},
		{"negative slot", func(r *BookingRequest) { r.AvailabilityID = -3 }, "Invalid slot ID."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := r.Normalize().Validate()
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.want)
		})
	}
}

func TestBookingRequestNormalize(t *testing.T) {
	r := BookingRequest{
		CustomerName:  "  <b>Jordan</b> ",
		CustomerEmail: " Jordan@Example.COM ",
		Address:       "<script>x</script>1 Main St",
	}.Normalize()

	assert.Equal(t, "Jordan", r.CustomerName)
	assert.Equal(t, "jordan@example.com", r.CustomerEmail)
	assert.Equal(t, "x1 Main St", r.Address)
}

func TestIsStrongPassword(t *testing.T) {
	assert.True(t, IsStrongPassword("hunter22a"))
	assert.False(t, IsStrongPassword("short1"))
	assert.False(t, IsStrongPassword("allletters"))
	assert.False(t, IsStrongPassword("1234567890"))
}

func TestValidateReviewAndPayment(t *testing.T) {
	require.NoError(t, ValidateReview(5, "great"))
	require.Error(t, ValidateReview(0, ""))
	require.Error(t, ValidateReview(6, ""))

	long := make([]byte, MaxReviewComment+1)
	for i := range long {
		long[i] = 'a'
	}
	require.Error(t, ValidateReview(4, string(long)))

	require.NoError(t, ValidatePayment(2500, "usd"))
	require.EqualError(t, ValidatePayment(10, "usd"), "Invalid payment amount.")
	require.EqualError(t, ValidatePayment(2500, "jpy"), "Unsupported currency.")
}

func TestErrorIdentity(t *testing.T) {
	wrapped := Wrap(ErrSlotUnavailable, errors.New("no rows"))

	assert.True(t, errors.Is(wrapped, ErrSlotUnavailable))
	assert.False(t, errors.Is(wrapped, ErrSlotOverlap))
	assert.Equal(t, http.StatusConflict, KindOf(wrapped).Status())
	assert.Equal(t, http.StatusConflict, KindOf(ErrSlotHeld).Status())
	assert.Equal(t, http.StatusTooManyRequests, KindOf(ErrReviewTooSoon).Status())
	assert.Equal(t, http.StatusInternalServerError, KindOf(errors.New("boom")).Status())
}
