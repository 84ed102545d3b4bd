package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"booking-service/internal/domain"
)

const oauthStateTTL = 10 * time.Minute

var errCalendarDisabled = &domain.Error{Kind: domain.KindUnavailable, Message: "Google Calendar not configured"}

// GET /calendar/auth
// Returns the consent URL. The state is a short-lived token for the calling owner.
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		a.respond(c, errCalendarDisabled)
		return
	}
	claims := caller(c)
	state, err := a.Tokens.IssueState(domain.User{ID: claims.ID, Email: claims.Email, Name: claims.Name, Role: claims.Role}, oauthStateTTL)
	if err != nil {
		a.respond(c, err)
		return
	}
	url := a.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{"auth_url": url, "state": state})
}

// GET /oauth2callback
// Exchanges the code and hands back the refresh token to store as GOOGLE_REFRESH_TOKEN.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		a.respond(c, errCalendarDisabled)
		return
	}
	claims, err := a.Tokens.ParseState(c.Query("state"))
	if err != nil || !claims.Owner() {
		a.respond(c, domain.Forbidden("Invalid OAuth state."))
		return
	}
	code := c.Query("code")
	if code == "" {
		a.badRequest(c, "authorization code required")
		return
	}

	token, err := a.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		a.respond(c, domain.Dependency("failed to exchange code for token", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Authorization successful",
		"refresh_token": token.RefreshToken,
	})
}

// GET /calendar/events?max=50
func (a *App) CalendarEventsHandler(c *gin.Context) {
	if a.Calendar == nil {
		a.respond(c, errCalendarDisabled)
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("max", "50"), 10, 64)
	if err != nil || limit < 1 || limit > 250 {
		a.badRequest(c, "max must be between 1 and 250")
		return
	}

	events, err := a.Calendar.Upcoming(c.Request.Context(), a.clock(), limit)
	if err != nil {
		a.respond(c, domain.Dependency("failed to retrieve events", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// GET /calendar/calendars
func (a *App) CalendarListHandler(c *gin.Context) {
	if a.Calendar == nil {
		a.respond(c, errCalendarDisabled)
		return
	}
	calendars, err := a.Calendar.Calendars(c.Request.Context())
	if err != nil {
		a.respond(c, domain.Dependency("failed to retrieve calendars", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"calendars": calendars, "count": len(calendars)})
}
