package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartSeedJob re-runs the weekday evening seed on schedule so the bookable
// window keeps moving forward. The returned cron must be stopped on shutdown.
func (a *App) StartSeedJob(schedule string, daysAhead int, loc *time.Location) (*cron.Cron, error) {
	opts := []cron.Option{}
	if loc != nil {
		opts = append(opts, cron.WithLocation(loc))
	}
	c := cron.New(opts...)
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := a.SeedWeekdayEvenings(ctx, daysAhead, loc); err != nil {
			a.logger().Error("scheduled availability seed failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule availability seed %q: %w", schedule, err)
	}
	c.Start()
	a.logger().Info("availability seed scheduled", zap.String("schedule", schedule))
	return c, nil
}
