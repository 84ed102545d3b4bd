package notify

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var defaultTransport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 5,
	IdleConnTimeout:     90 * time.Second,
}

// SMS texts the owner through the Twilio Messages API.
type SMS struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string

	// BaseURL overrides the API host, mainly for tests.
	BaseURL   string
	Transport http.RoundTripper
}

// Enabled reports whether every credential is present.
func (s *SMS) Enabled() bool {
	return s.AccountSID != "" && s.AuthToken != "" && s.From != "" && s.To != ""
}

func (s *SMS) Notify(ctx context.Context, ev BookingEvent) error {
	rest, err := s.client(ctx)
	if err != nil {
		return err
	}

	params := &twapi.CreateMessageParams{}
	params.SetTo(s.To)
	params.SetFrom(s.From)
	params.SetBody(ev.Summary())

	if _, err := rest.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio sms failed: %w", err)
	}
	return nil
}

// client builds a rest client whose requests carry ctx.
func (s *SMS) client(ctx context.Context) (*twilio.RestClient, error) {
	next := s.Transport
	if next == nil {
		next = defaultTransport
	}
	rt := &scopedTransport{ctx: ctx, next: next}
	if s.BaseURL != "" {
		u, err := url.Parse(s.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("twilio base url: %w", err)
		}
		rt.base = u
	}

	base := &twclient.Client{
		Credentials: twclient.NewCredentials(s.AccountSID, s.AuthToken),
		HTTPClient:  &http.Client{Timeout: 10 * time.Second, Transport: rt},
	}
	base.SetAccountSid(s.AccountSID)
	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: base}), nil
}

type scopedTransport struct {
	ctx  context.Context
	base *url.URL
	next http.RoundTripper
}

func (t *scopedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if t.base != nil {
		req.URL.Scheme = t.base.Scheme
		req.URL.Host = t.base.Host
		req.Host = t.base.Host
	}
	return t.next.RoundTrip(req)
}
