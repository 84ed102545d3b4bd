package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// NewCalendarConfig builds the OAuth2 config for the owner's Google Calendar.
// It returns nil when the client credentials are not configured.
func NewCalendarConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// Calendar mirrors bookings into the owner's Google Calendar.
type Calendar struct {
	Config       *oauth2.Config
	RefreshToken string
	CalendarID   string
	Location     *time.Location

	// Endpoint overrides the Calendar API base URL.
	Endpoint string
}

// CalendarInfo is one entry of the owner's calendar list.
type CalendarInfo struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Primary     bool   `json:"primary"`
	AccessRole  string `json:"access_role"`
}

// CalendarEvent is the trimmed view of a Google Calendar event.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status"`
}

func (c *Calendar) service(ctx context.Context) (*calendar.Service, error) {
	if c.Config == nil || c.RefreshToken == "" {
		return nil, errors.New("google calendar not configured")
	}
	client := c.Config.Client(ctx, &oauth2.Token{RefreshToken: c.RefreshToken})
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	return calendar.NewService(ctx, opts...)
}

func (c *Calendar) calendarID() string {
	if c.CalendarID == "" {
		return "primary"
	}
	return c.CalendarID
}

func (c *Calendar) Notify(ctx context.Context, ev BookingEvent) error {
	srv, err := c.service(ctx)
	if err != nil {
		return err
	}
	event, err := buildEvent(ev, c.Location)
	if err != nil {
		return err
	}
	_, err = srv.Events.Insert(c.calendarID(), event).Context(ctx).Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
		// already inserted by an earlier attempt
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	return nil
}

// Upcoming lists the next events on the owner's calendar.
func (c *Calendar) Upcoming(ctx context.Context, from time.Time, limit int64) ([]CalendarEvent, error) {
	srv, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	events, err := srv.Events.List(c.calendarID()).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	out := make([]CalendarEvent, 0, len(events.Items))
	for _, item := range events.Items {
		e := CalendarEvent{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Status:      item.Status,
		}
		e.StartTime = parseEventTime(item.Start)
		e.EndTime = parseEventTime(item.End)
		out = append(out, e)
	}
	return out, nil
}

// Calendars lists the calendars the owner can see, so CalendarID can be chosen.
func (c *Calendar) Calendars(ctx context.Context) ([]CalendarInfo, error) {
	srv, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}

	out := make([]CalendarInfo, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, CalendarInfo{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Primary:     item.Primary,
			AccessRole:  item.AccessRole,
		})
	}
	return out, nil
}

func parseEventTime(dt *calendar.EventDateTime) time.Time {
	if dt == nil {
		return time.Time{}
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t
		}
	}
	if dt.Date != "" {
		if t, err := time.Parse("2006-01-02", dt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// buildEvent uses a deterministic event id so a retried insert conflicts
// instead of duplicating.
func buildEvent(ev BookingEvent, loc *time.Location) (*calendar.Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", ev.Date+" "+ev.StartTime, loc)
	if err != nil {
		return nil, fmt.Errorf("parse booking start: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", ev.Date+" "+ev.EndTime, loc)
	if err != nil {
		return nil, fmt.Errorf("parse booking end: %w", err)
	}
	return &calendar.Event{
		Id:          fmt.Sprintf("booking%d", ev.BookingID),
		Summary:     fmt.Sprintf("%s - %s", ev.Service, ev.CustomerName),
		Description: ev.Summary(),
		Location:    ev.Address,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()},
	}, nil
}
