package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/domain"
)

const (
	MinIntervalMinutes     = 15
	DefaultIntervalMinutes = 60
	// MaxGenerateDays bounds the span of one generate request.
	MaxGenerateDays = 366
)

// GenerateRequest describes a recurring block of slots. Weekdays use 0=Sunday..6=Saturday.
type GenerateRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Weekdays        []int  `json:"weekdays"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	IntervalMinutes *int   `json:"interval_minutes"`
	IsOpen          *bool  `json:"is_open"`
}

func (r GenerateRequest) interval() int {
	if r.IntervalMinutes == nil {
		return DefaultIntervalMinutes
	}
	return *r.IntervalMinutes
}

func (r GenerateRequest) open() bool {
	return r.IsOpen == nil || *r.IsOpen
}

// GenerateSlots expands r into consecutive slots for every matching date in
// [From, To]. Trailing partial slots are dropped.
func GenerateSlots(r GenerateRequest) ([]domain.Slot, error) {
	from, errFrom := time.Parse(domain.DateLayout, r.From)
	to, errTo := time.Parse(domain.DateLayout, r.To)
	if errFrom != nil || errTo != nil {
		return nil, domain.Validation("from and to are required in YYYY-MM-DD format")
	}
	if to.Sub(from) > MaxGenerateDays*24*time.Hour {
		return nil, domain.Validation(fmt.Sprintf("from and to must be at most %d days apart", MaxGenerateDays))
	}
	if len(r.Weekdays) == 0 {
		return nil, domain.Validation("weekdays array is required (0=Sun..6=Sat)")
	}
	days := map[time.Weekday]bool{}
	for _, d := range r.Weekdays {
		if d < 0 || d > 6 {
			return nil, domain.Validation("weekdays array is required (0=Sun..6=Sat)")
		}
		days[time.Weekday(d)] = true
	}
	start, errStart := parseHHMM(r.StartTime)
	end, errEnd := parseHHMM(r.EndTime)
	if errStart != nil || errEnd != nil || !start.Before(end) {
		return nil, domain.Validation("Valid start_time/end_time required")
	}
	step := r.interval()
	if step < MinIntervalMinutes {
		return nil, domain.Validation("interval_minutes must be an integer >= 15")
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	var out []domain.Slot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !days[day.Weekday()] {
			continue
		}
		date := day.Format(domain.DateLayout)
		for cur := startMin; endMin-cur >= step; cur += step {
			out = append(out, domain.Slot{
				Date:      date,
				StartTime: clock(cur),
				EndTime:   clock(cur + step),
				IsOpen:    r.open(),
			})
		}
	}
	if len(out) == 0 {
		return nil, domain.Validation("No slots generated for the given configuration.")
	}
	return out, nil
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func parseHHMM(s string) (time.Time, error) {
	if !domain.IsClock(s) {
		return time.Time{}, fmt.Errorf("invalid time string: %s", s)
	}
	return time.Parse(domain.ClockLayout, s)
}

// GenerateResult reports candidates produced and rows actually written.
type GenerateResult struct {
	Inserted  int `json:"inserted"`
	Generated int `json:"generated"`
}

// Generate inserts the slots described by r, skipping any that already exist.
func (a *App) Generate(ctx context.Context, r GenerateRequest) (GenerateResult, error) {
	slots, err := GenerateSlots(r)
	if err != nil {
		return GenerateResult{}, err
	}
	inserted, err := a.Store.InsertSlots(ctx, slots)
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{Inserted: inserted, Generated: len(slots)}, nil
}

// Weekday evening block used to bootstrap availability.
const (
	seedStart = "16:00"
	seedEnd   = "22:00"
)

// SeedWeekdayEvenings ensures Mon-Fri evening slots exist from today through daysAhead.
func (a *App) SeedWeekdayEvenings(ctx context.Context, daysAhead int, loc *time.Location) (GenerateResult, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := a.clock().In(loc)
	daysAhead = min(daysAhead, MaxGenerateDays)
	res, err := a.Generate(ctx, GenerateRequest{
		From:      today.Format(domain.DateLayout),
		To:        today.AddDate(0, 0, daysAhead).Format(domain.DateLayout),
		Weekdays:  []int{1, 2, 3, 4, 5},
		StartTime: seedStart,
		EndTime:   seedEnd,
	})
	if err != nil {
		return res, fmt.Errorf("seed weekday availability: %w", err)
	}
	a.logger().Info("weekday evening availability ensured",
		zap.Int("inserted", res.Inserted), zap.Int("generated", res.Generated))
	return res, nil
}
