package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"booking-service/internal/app"
	"booking-service/internal/config"
	"booking-service/internal/logging"
	"booking-service/internal/notify"
	"booking-service/internal/server"
	"booking-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Production())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("unknown BUSINESS_TIMEZONE, using UTC", zap.String("tz", cfg.Timezone), zap.Error(err))
		loc = time.UTC
	}

	db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	tokens, generated, err := app.NewTokens(cfg.JWTSecret, cfg.UserTokenTTL, cfg.OwnerTokenTTL)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}

	oauth := notify.NewCalendarConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	var cal *notify.Calendar
	if oauth != nil && cfg.GoogleRefreshToken != "" {
		cal = &notify.Calendar{
			Config:       oauth,
			RefreshToken: cfg.GoogleRefreshToken,
			CalendarID:   cfg.GoogleCalendarID,
			Location:     loc,
		}
	}

	notifier := buildNotifier(cfg, cal, logger)
	dispatcher, stopWorker, err := buildDispatcher(cfg, notifier, logger)
	if err != nil {
		return err
	}
	defer stopWorker()

	a := &app.App{
		Store:          db,
		Dispatcher:     dispatcher,
		Tokens:         tokens,
		Log:            logger,
		OAuth:          oauth,
		Calendar:       cal,
		Limits:         app.DefaultLimits(),
		Origins:        cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Production:     cfg.Production(),
		Release:        cfg.Release,
		OwnerSecret:    cfg.OwnerRegistrationSecret,
	}
	if cfg.StripeSecret != "" {
		a.Payments = app.NewStripePayments(cfg.StripeSecret)
	}

	if err := a.SeedOwner(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.Error("owner seed failed", zap.Error(err))
	}
	if _, err := a.SeedWeekdayEvenings(ctx, cfg.SeedDaysAhead, loc); err != nil {
		logger.Error("availability seed failed", zap.Error(err))
	}
	seeder, err := a.StartSeedJob(cfg.SeedSchedule, cfg.SeedDaysAhead, loc)
	if err != nil {
		return err
	}
	defer seeder.Stop()

	err = server.Run(ctx, a.Router(), cfg.Port, cfg.ShutdownTimeout, logger)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if cerr := dispatcher.Close(drainCtx); cerr != nil {
		logger.Warn("notification dispatcher did not drain", zap.Error(cerr))
	}
	return err
}

// buildNotifier fans out to every configured channel, falling back to the log.
func buildNotifier(cfg config.App, cal *notify.Calendar, logger *zap.Logger) notify.Notifier {
	var channels notify.Multi

	sms := &notify.SMS{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioFromNumber,
		To:         cfg.OwnerPhoneNumber,
	}
	if sms.Enabled() {
		channels = append(channels, sms)
	}
	if cfg.SMTPHost != "" && cfg.EmailFrom != "" {
		channels = append(channels, notify.NewEmail(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom, cfg.OwnerEmail))
	}
	if cal != nil {
		channels = append(channels, cal)
	}
	if len(channels) == 0 {
		logger.Warn("no notification channel configured, bookings will only be logged")
		return notify.Log{Logger: logger}
	}
	return channels
}

// buildDispatcher uses the Redis task queue when REDIS_ADDR is set and an
// in-process worker pool otherwise.
func buildDispatcher(cfg config.App, n notify.Notifier, logger *zap.Logger) (notify.Dispatcher, func(), error) {
	if cfg.RedisAddr == "" {
		d := notify.NewAsync(n, logger, notify.AsyncOptions{MaxRetry: cfg.NotifyMaxRetry})
		return d, func() {}, nil
	}

	opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	worker := notify.NewWorker(opt, n, logger)
	if err := worker.Start(); err != nil {
		return nil, nil, err
	}
	logger.Info("booking notifications queued through redis", zap.String("addr", cfg.RedisAddr))
	return notify.NewQueue(opt, cfg.NotifyMaxRetry), worker.Shutdown, nil
}
