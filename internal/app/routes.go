package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router builds the HTTP surface. Everything lives under /api except the OAuth callback.
func (a *App) Router() *gin.Engine {
	if a.started.IsZero() {
		a.started = a.clock()
	}

	r := gin.New()
	if err := r.SetTrustedProxies(a.TrustedProxies); err != nil {
		a.logger().Warn("invalid trusted proxies, ignoring forwarding headers", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(a.recovery())
	r.Use(a.requestLogger())
	if len(a.Origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     a.Origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(a.rateLimit(a.Limits.Global, "Too many requests. Please try again later."))

	r.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := r.Group("/api")
	api.GET("/health", a.HealthHandler)

	auth := api.Group("/auth", a.rateLimit(a.Limits.Auth, "Too many authentication attempts. Please try again later."))
	{
		auth.POST("/register", a.RegisterHandler)
		auth.POST("/login", a.LoginHandler)
		auth.POST("/owner-login", a.OwnerLoginHandler)
	}

	availability := api.Group("/availability")
	{
		availability.GET("/open", a.ListOpenSlotsHandler)

		owner := availability.Group("", a.RequireAuth(), a.RequireOwner())
		owner.GET("/all", a.ListAllSlotsHandler)
		owner.GET("/range", a.ListSlotRangeHandler)
		owner.GET("/check", a.CheckOverlapHandler)
		owner.POST("", a.CreateSlotHandler)
		owner.POST("/generate", a.GenerateSlotsHandler)
		owner.POST("/bulk", a.BulkSlotsHandler)
		owner.PUT("/:id", a.UpdateSlotHandler)
		owner.PATCH("/:id", a.ToggleSlotHandler)
		owner.DELETE("/:id", a.DeleteSlotHandler)
	}

	bookings := api.Group("/bookings")
	{
		bookings.POST("", a.rateLimit(a.Limits.Booking, "Too many booking attempts. Please try again later."),
			a.OptionalAuth(), a.CreateBookingHandler)
		bookings.GET("/me", a.RequireAuth(), a.MyBookingsHandler)
		bookings.GET("/all", a.RequireAuth(), a.RequireOwner(), a.AllBookingsHandler)
		bookings.DELETE("/:id", a.RequireAuth(), a.CancelBookingHandler)
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("", a.ListReviewsHandler)
		reviews.POST("", a.rateLimit(a.Limits.Review, "Too many reviews. Please try again later."),
			a.RequireAuth(), a.CreateReviewHandler)
	}

	api.POST("/payments/intent", a.RequireAuth(), a.CreatePaymentIntentHandler)

	calendar := api.Group("/calendar", a.RequireAuth(), a.RequireOwner())
	{
		calendar.GET("/auth", a.GoogleAuthHandler)
		calendar.GET("/events", a.CalendarEventsHandler)
		calendar.GET("/calendars", a.CalendarListHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
	return r
}

// GET /api/health
func (a *App) HealthHandler(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if err := a.Store.Ping(c.Request.Context()); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"uptime":  a.clock().Sub(a.started).Seconds(),
		"release": a.Release,
	})
}
