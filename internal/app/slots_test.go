package app

import (
	"context"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-service/internal/domain"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func weekdayEvenings() GenerateRequest {
	return GenerateRequest{
		From:            "2026-03-02",
		To:              "2026-03-06",
		Weekdays:        []int{1, 2, 3, 4, 5},
		StartTime:       "16:00",
		EndTime:         "22:00",
		IntervalMinutes: intPtr(60),
		IsOpen:          boolPtr(true),
	}
}

func TestGenerateSlots(t *testing.T) {
	slots, err := GenerateSlots(weekdayEvenings())
	require.NoError(t, err)
	require.Len(t, slots, 30)

	assert.Equal(t, domain.Slot{Date: "2026-03-02", StartTime: "16:00", EndTime: "17:00", IsOpen: true}, slots[0])
	assert.Equal(t, domain.Slot{Date: "2026-03-06", StartTime: "21:00", EndTime: "22:00", IsOpen: true}, slots[29])

	seen := map[string]bool{}
	for _, s := range slots {
		assert.False(t, seen[s.Key()], "duplicate %s", s.Key())
		seen[s.Key()] = true
	}
}

func TestGenerateSlotsDropsPartialTrailingSlot(t *testing.T) {
	req := weekdayEvenings()
	req.To = req.From
	req.EndTime = "17:30"

	slots, err := GenerateSlots(req)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "17:00", slots[0].EndTime)
}

func TestGenerateSlotsDefaults(t *testing.T) {
	req := weekdayEvenings()
	req.IntervalMinutes = nil
	req.IsOpen = nil
	req.Weekdays = []int{0, 6}

	_, err := GenerateSlots(req)
	require.ErrorContains(t, err, "No slots generated")

	req.To = "2026-03-08"
	slots, err := GenerateSlots(req)
	require.NoError(t, err)
	require.Len(t, slots, 12)
	for _, s := range slots {
		assert.True(t, s.IsOpen)
		assert.Contains(t, []string{"2026-03-07", "2026-03-08"}, s.Date)
	}
}

func TestGenerateSlotsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GenerateRequest)
		want   string
	}{
		{"bad from", func(r *GenerateRequest) { r.From = "03/02/2026" }, "from and to are required in YYYY-MM-DD format"},
		{"missing to", func(r *GenerateRequest) { r.To = "" }, "from and to are required in YYYY-MM-DD format"},
		{"no weekdays", func(r *GenerateRequest) { r.Weekdays = nil }, "weekdays array is required (0=Sun..6=Sat)"},
		{"weekday out of range", func(r *GenerateRequest) { r.Weekdays = []int{7} }, "weekdays array is required (0=Sun..6=Sat)"},
		{"bad start", func(r *GenerateRequest) { r.StartTime = "4pm" }, "Valid start_time/end_time required"},
		{"end before start", func(r *GenerateRequest) { r.EndTime = "15:00" }, "Valid start_time/end_time required"},
		{"interval too small", func(r *GenerateRequest) { r.IntervalMinutes = intPtr(10) }, "interval_minutes must be an integer >= 15"},
		{"range reversed", func(r *GenerateRequest) { r.From, r.To = r.To, r.From }, "No slots generated for the given configuration."},
		{"interval longer than window", func(r *GenerateRequest) { r.IntervalMinutes = intPtr(361) }, "No slots generated for the given configuration."},
		{"interval overflows", func(r *GenerateRequest) { r.IntervalMinutes = intPtr(math.MaxInt) }, "No slots generated for the given configuration."},
		{"range too long", func(r *GenerateRequest) { r.From, r.To = "2026-03-01", "2027-03-03" }, "from and to must be at most 366 days apart"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := weekdayEvenings()
			tt.mutate(&req)
			_, err := GenerateSlots(req)
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			assert.Equal(t, tt.want, err.(*domain.Error).Message)
		})
	}
}

func TestGenerateHandlerIsIdempotent(t *testing.T) {
	f := newFixture(t)
	token := f.ownerToken(t)

	rec := f.do(t, http.MethodPost, "/api/availability/generate", weekdayEvenings(), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, GenerateResult{Inserted: 30, Generated: 30}, decode[GenerateResult](t, rec))

	rec = f.do(t, http.MethodPost, "/api/availability/generate", weekdayEvenings(), token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, GenerateResult{Inserted: 0, Generated: 30}, decode[GenerateResult](t, rec))

	all, err := f.mem.ListSlots(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, all, 30)
}

func TestGenerateSkipsSlotsOverlappingManualOnes(t *testing.T) {
	f := newFixture(t)
	f.slot(t, "2026-03-02", "16:30", "17:30", true)

	res, err := f.app.Generate(context.Background(), weekdayEvenings())
	require.NoError(t, err)
	assert.Equal(t, 30, res.Generated)
	assert.Equal(t, 28, res.Inserted)
}

func TestSeedWeekdayEvenings(t *testing.T) {
	f := newFixture(t)
	// Monday
	f.app.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	res, err := f.app.SeedWeekdayEvenings(context.Background(), 6, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Inserted)

	res, err = f.app.SeedWeekdayEvenings(context.Background(), 6, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 30, res.Generated)
}
