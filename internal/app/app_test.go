package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"booking-service/internal/domain"
	"booking-service/internal/notify"
	"booking-service/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	hashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.BookingEvent
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev notify.BookingEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return d.err
}

func (d *recordingDispatcher) Close(context.Context) error { return nil }

func (d *recordingDispatcher) Events() []notify.BookingEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.BookingEvent(nil), d.events...)
}

type fixture struct {
	app        *App
	mem        *store.Memory
	dispatcher *recordingDispatcher
	router     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, _, err := NewTokens("test-secret", time.Hour, time.Hour)
	require.NoError(t, err)

	f := &fixture{mem: store.NewMemory(), dispatcher: &recordingDispatcher{}}
	f.app = &App{
		Store:      f.mem,
		Dispatcher: f.dispatcher,
		Tokens:     tokens,
		Log:        zap.NewNop(),
		Release:    "test",
	}
	f.router = f.app.Router()
	return f
}

// rebuild re-creates the router after the test changes App fields.
func (f *fixture) rebuild() { f.router = f.app.Router() }

func (f *fixture) user(t *testing.T, name, email string, role domain.Role) (domain.User, string) {
	t.Helper()
	u := domain.User{Name: name, Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, f.mem.CreateUser(context.Background(), &u))
	token, err := f.app.Tokens.Issue(u, time.Hour)
	require.NoError(t, err)
	return u, token
}

func (f *fixture) ownerToken(t *testing.T) string {
	t.Helper()
	_, token := f.user(t, "owner", "owner@owner.local", domain.RoleOwner)
	return token
}

func (f *fixture) slot(t *testing.T, date, start, end string, open bool) domain.Slot {
	t.Helper()
	s := domain.Slot{Date: date, StartTime: start, EndTime: end, IsOpen: open}
	require.NoError(t, f.mem.CreateSlot(context.Background(), &s))
	return s
}

func (f *fixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	msg, _ := decode[map[string]any](t, rec)["error"].(string)
	return msg
}
