package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	Port     string `envconfig:"PORT" default:"8080"`
	Release  string `envconfig:"RELEASE_ID" default:"dev"`
	Timezone string `envconfig:"BUSINESS_TIMEZONE" default:"America/New_York"`

	// DB
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Auth
	JWTSecret               string        `envconfig:"JWT_SECRET"`
	UserTokenTTL            time.Duration `envconfig:"USER_TOKEN_TTL" default:"168h"`
	OwnerTokenTTL           time.Duration `envconfig:"OWNER_TOKEN_TTL" default:"12h"`
	AdminUsername           string        `envconfig:"ADMIN_USERNAME"`
	AdminPassword           string        `envconfig:"ADMIN_PASSWORD"`
	OwnerRegistrationSecret string        `envconfig:"OWNER_REGISTRATION_SECRET"`

	// HTTP
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS"`
	TrustedProxies  []string      `envconfig:"TRUSTED_PROXIES"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Seeding
	SeedDaysAhead int    `envconfig:"SEED_DAYS_AHEAD" default:"180"`
	SeedSchedule  string `envconfig:"SEED_SCHEDULE" default:"@daily"`

	// SMS
	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `envconfig:"TWILIO_FROM_NUMBER"`
	OwnerPhoneNumber string `envconfig:"OWNER_PHONE_NUMBER"`

	// Email
	SMTPHost   string `envconfig:"SMTP_HOST"`
	SMTPPort   int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser   string `envconfig:"SMTP_USER"`
	SMTPPass   string `envconfig:"SMTP_PASS"`
	EmailFrom  string `envconfig:"EMAIL_FROM"`
	OwnerEmail string `envconfig:"OWNER_EMAIL"`

	// Google Calendar
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL"`
	GoogleRefreshToken string `envconfig:"GOOGLE_REFRESH_TOKEN"`
	GoogleCalendarID   string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`

	// Payments
	StripeSecret string `envconfig:"STRIPE_SECRET"`

	// Notification queue
	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	NotifyMaxRetry int    `envconfig:"NOTIFY_MAX_RETRY" default:"3"`
}

func (a App) Production() bool {
	return strings.EqualFold(a.Env, "production")
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (App, error) {
	_ = godotenv.Load(files...)

	var c App
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	if c.Production() && c.JWTSecret == "" {
		return c, errors.New("JWT_SECRET must be set in production")
	}
	return c, nil
}
