package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-service/internal/domain"
	"booking-service/internal/notify"
)

func TestReviews(t *testing.T) {
	f := newFixture(t)
	_, token := f.user(t, "Casey", "casey@example.com", domain.RoleUser)

	rec := f.do(t, http.MethodPost, "/api/reviews", map[string]any{"rating": 5, "comment": "Great <script>x</script>cut"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/reviews", map[string]any{"rating": 5, "comment": "Great <script>x</script>cut"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Great xcut", decode[map[string]any](t, rec)["comment"])

	rec = f.do(t, http.MethodPost, "/api/reviews", map[string]any{"rating": 4}, token)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "You can only submit one review per day.", errorOf(t, rec))

	rec = f.do(t, http.MethodGet, "/api/reviews", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	reviews := decode[[]domain.ReviewView](t, rec)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Casey", reviews[0].Name)
}

func TestReviewValidation(t *testing.T) {
	f := newFixture(t)
	_, token := f.user(t, "Casey", "casey@example.com", domain.RoleUser)

	for _, body := range []map[string]any{
		{"rating": 0},
		{"rating": 6},
		{"rating": 4.5},
		{"rating": "five"},
	} {
		rec := f.do(t, http.MethodPost, "/api/reviews", body, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Rating must be an integer between 1 and 5.", errorOf(t, rec))
	}

	rec := f.do(t, http.MethodPost, "/api/reviews", map[string]any{"rating": 3, "comment": strings.Repeat("a", 1001)}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Review comment must be under 1000 characters.", errorOf(t, rec))
}

type fakePayments struct {
	err    error
	amount int64
}

func (p *fakePayments) CreateIntent(_ context.Context, amount int64, _ string, _ int64) (PaymentIntent, error) {
	if p.err != nil {
		return PaymentIntent{}, p.err
	}
	p.amount = amount
	return PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret", Status: "requires_payment_method"}, nil
}

func TestPaymentIntent(t *testing.T) {
	f := newFixture(t)
	_, token := f.user(t, "Casey", "casey@example.com", domain.RoleUser)
	body := map[string]any{"amount": 2500, "currency": "USD"}

	rec := f.do(t, http.MethodPost, "/api/payments/intent", body, token)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	provider := &fakePayments{}
	f.app.Payments = provider

	rec = f.do(t, http.MethodPost, "/api/payments/intent", body, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "pi_123", got["id"])
	assert.Equal(t, "pi_123_secret", got["clientSecret"])
	assert.Equal(t, int64(2500), provider.amount)

	rec = f.do(t, http.MethodPost, "/api/payments/intent", map[string]any{"amount": 2500, "currency": "usd", "booking_id": 424242}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	provider.err = errors.New("card network down")
	rec = f.do(t, http.MethodPost, "/api/payments/intent", body, token)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Payment processing error.", errorOf(t, rec))
}

func TestPaymentIntentBookingOwnership(t *testing.T) {
	f := newFixture(t)
	f.app.Payments = &fakePayments{}
	_, casey := f.user(t, "Casey", "casey@example.com", domain.RoleUser)
	guestSlot := f.slot(t, "2026-03-02", "16:00", "17:00", true)
	ownSlot := f.slot(t, "2026-03-02", "17:00", "18:00", true)

	rec := f.do(t, http.MethodPost, "/api/bookings", bookingBody(guestSlot.ID, "Full Cut", ""), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	guestBooking := int64(decode[map[string]any](t, rec)["id"].(float64))

	rec = f.do(t, http.MethodPost, "/api/bookings", bookingBody(ownSlot.ID, "Full Cut", ""), casey)
	require.Equal(t, http.StatusCreated, rec.Code)
	ownBooking := int64(decode[map[string]any](t, rec)["id"].(float64))

	pay := func(bookingID int64, token string) *httptest.ResponseRecorder {
		return f.do(t, http.MethodPost, "/api/payments/intent",
			map[string]any{"amount": 2500, "currency": "usd", "booking_id": bookingID}, token)
	}

	rec = pay(guestBooking, casey)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not allowed to pay for this booking.", errorOf(t, rec))

	assert.Equal(t, http.StatusOK, pay(ownBooking, casey).Code)
	assert.Equal(t, http.StatusOK, pay(guestBooking, f.ownerToken(t)).Code)
}

func TestPaymentIntentValidation(t *testing.T) {
	f := newFixture(t)
	f.app.Payments = &fakePayments{}
	_, token := f.user(t, "Casey", "casey@example.com", domain.RoleUser)

	tests := []struct {
		body map[string]any
		want string
	}{
		{map[string]any{"currency": "usd"}, "Amount and currency are required."},
		{map[string]any{"amount": 49, "currency": "usd"}, "Invalid payment amount."},
		{map[string]any{"amount": 100.5, "currency": "usd"}, "Invalid payment amount."},
		{map[string]any{"amount": 100, "currency": "jpy"}, "Unsupported currency."},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPost, "/api/payments/intent", tt.body, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, tt.want, errorOf(t, rec))
	}
}

func TestBookingRateLimit(t *testing.T) {
	f := newFixture(t)
	f.app.Limits.Booking = Limit{N: 2, Window: time.Hour}
	f.rebuild()

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/bookings", bookingBody(9999, "Lineup", ""), "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/api/bookings", bookingBody(9999, "Lineup", ""), "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many booking attempts. Please try again later.", errorOf(t, rec))

	// Other routes are unaffected.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/availability/open", nil, "").Code)
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	f := newFixture(t)
	f.app.Limits.Booking = Limit{N: 1, Window: time.Hour}
	f.rebuild()

	post := func(forwarded string) int {
		body, err := json.Marshal(bookingBody(9999, "Lineup", ""))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusConflict, post("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.2"))

	// Behind a trusted proxy the forwarded address is the client.
	f.app.TrustedProxies = []string{"192.0.2.0/24"}
	f.rebuild()
	assert.Equal(t, http.StatusConflict, post("10.0.0.3"))
	assert.Equal(t, http.StatusConflict, post("10.0.0.4"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.4"))
}

func TestLimiterStoreRefills(t *testing.T) {
	s := newLimiterStore(Limit{N: 1, Window: time.Minute})
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	assert.True(t, s.allow("1.2.3.4", now))
	assert.False(t, s.allow("1.2.3.4", now))
	assert.True(t, s.allow("5.6.7.8", now))
	assert.True(t, s.allow("1.2.3.4", now.Add(time.Minute)))

	s.sweepLocked(now.Add(3 * time.Minute))
	assert.Empty(t, s.visitors)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "test", got["release"])
}

func TestCalendarNotConfigured(t *testing.T) {
	f := newFixture(t)
	token := f.ownerToken(t)

	rec := f.do(t, http.MethodGet, "/api/calendar/auth", nil, token)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/calendar/events", nil, token)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/calendar/calendars", nil, token)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/oauth2callback?code=abc", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", errorOf(t, rec))
}

func TestErrorDetailsHiddenInProduction(t *testing.T) {
	f := newFixture(t)
	f.app.Payments = &fakePayments{err: errors.New("stripe: secret detail")}
	_, token := f.user(t, "Casey", "casey@example.com", domain.RoleUser)
	body := map[string]any{"amount": 2500, "currency": "usd"}

	rec := f.do(t, http.MethodPost, "/api/payments/intent", body, token)
	assert.Contains(t, rec.Body.String(), "secret detail")

	f.app.Production = true
	rec = f.do(t, http.MethodPost, "/api/payments/intent", body, token)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestCalendarConsentFlow(t *testing.T) {
	f := newFixture(t)
	f.app.OAuth = notify.NewCalendarConfig("client-id", "client-secret", "http://localhost:8080/oauth2callback")
	token := f.ownerToken(t)

	rec := f.do(t, http.MethodGet, "/api/calendar/auth", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]string](t, rec)
	assert.Contains(t, got["auth_url"], "accounts.google.com")
	assert.Contains(t, got["auth_url"], "access_type=offline")
	require.NotEmpty(t, got["state"])

	rec = f.do(t, http.MethodGet, "/oauth2callback?code=abc&state="+token, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/oauth2callback?state="+got["state"], nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "authorization code required", errorOf(t, rec))
}

func TestCalendarList(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/token":
			_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		case strings.HasSuffix(r.URL.Path, "/users/me/calendarList"):
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"items":[{"id":"primary@example.com","summary":"Shop","primary":true,"accessRole":"owner"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer google.Close()

	cfg := notify.NewCalendarConfig("client-id", "client-secret", "http://localhost:8080/oauth2callback")
	cfg.Endpoint.TokenURL = google.URL + "/token"

	f := newFixture(t)
	f.app.Calendar = &notify.Calendar{Config: cfg, RefreshToken: "rt", Endpoint: google.URL + "/calendar/v3/"}
	token := f.ownerToken(t)

	rec := f.do(t, http.MethodGet, "/api/calendar/calendars", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[struct {
		Calendars []notify.CalendarInfo `json:"calendars"`
		Count     int                   `json:"count"`
	}](t, rec)
	require.Equal(t, 1, got.Count)
	assert.Equal(t, notify.CalendarInfo{ID: "primary@example.com", Summary: "Shop", Primary: true, AccessRole: "owner"}, got.Calendars[0])

	_, user := f.user(t, "Casey", "casey@example.com", domain.RoleUser)
	rec = f.do(t, http.MethodGet, "/api/calendar/calendars", nil, user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
