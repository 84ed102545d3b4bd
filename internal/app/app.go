package app

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"booking-service/internal/notify"
	"booking-service/internal/store"
)

// App holds the dependencies shared by every handler.
type App struct {
	Store      store.Store
	Dispatcher notify.Dispatcher
	Tokens     *Tokens
	Log        *zap.Logger

	// Payments is nil when no payment provider is configured.
	Payments PaymentProvider
	// OAuth and Calendar are nil when Google Calendar is not configured.
	OAuth    *oauth2.Config
	Calendar *notify.Calendar

	Limits     Limits
	Origins    []string
	Production bool
	Release    string

	// TrustedProxies lists the CIDRs whose forwarding headers set the client
	// IP. Empty means the socket address is used as is.
	TrustedProxies []string

	// OwnerSecret gates self-registration of OWNER accounts. Empty disables it.
	OwnerSecret string

	started time.Time
	now     func() time.Time
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *App) logger() *zap.Logger {
	if a.Log != nil {
		return a.Log
	}
	return zap.L()
}
