package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/xicom-labs/presales-bot/models"
)

// Calendar is the provider boundary: busy-range queries and event
// creation.
type Calendar interface {
	Busy(ctx context.Context, start, end time.Time) ([]TimeRange, error)
	CreateEvent(ctx context.Context, start, end time.Time, attendeeEmail, summary, timeZone string) (models.BookingConfirmation, error)
}

// UnavailableCalendar satisfies Calendar when no calendar client could
// be built; every use surfaces the construction error.
type UnavailableCalendar struct {
	Err error
}

func (u UnavailableCalendar) Busy(ctx context.Context, start, end time.Time) ([]TimeRange, error) {
	return nil, fmt.Errorf("calendar unavailable: %w", u.Err)
}

func (u UnavailableCalendar) CreateEvent(ctx context.Context, start, end time.Time, attendeeEmail, summary, timeZone string) (models.BookingConfirmation, error) {
	return models.BookingConfirmation{}, fmt.Errorf("calendar unavailable: %w", u.Err)
}

// googleCalendar implements Calendar over the Google Calendar API.
type googleCalendar struct {
	service    *calendar.Service
	calendarID string
}

// NewGoogleCalendar builds the client from an OAuth credentials file and
// a cached token file.
func NewGoogleCalendar(ctx context.Context, calendarID, credentialsFile, tokenFile string) (Calendar, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading token file (run the oauth flow first): %w", err)
	}
	service, err := calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("building calendar service: %w", err)
	}
	return &googleCalendar{service: service, calendarID: calendarID}, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	return tok, json.NewDecoder(f).Decode(tok)
}

func (g *googleCalendar) Busy(ctx context.Context, start, end time.Time) ([]TimeRange, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: g.calendarID}},
	}
	resp, err := g.service.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}
	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		return nil, nil
	}
	busy := make([]TimeRange, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		s, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("parsing busy start %q: %w", p.Start, err)
		}
		e, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("parsing busy end %q: %w", p.End, err)
		}
		busy = append(busy, TimeRange{Start: s, End: e})
	}
	return busy, nil
}

func (g *googleCalendar) CreateEvent(ctx context.Context, start, end time.Time, attendeeEmail, summary, timeZone string) (models.BookingConfirmation, error) {
	event := &calendar.Event{
		Summary:     summary,
		Description: "Consultation Call",
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: timeZone},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: timeZone},
		Attendees:   []*calendar.EventAttendee{{Email: attendeeEmail}},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{RequestId: uuid.NewString()},
		},
	}
	created, err := g.service.Events.Insert(g.calendarID, event).ConferenceDataVersion(1).Context(ctx).Do()
	if err != nil {
		return models.BookingConfirmation{}, fmt.Errorf("inserting event: %w", err)
	}

	confirmation := models.BookingConfirmation{EventLink: created.HtmlLink}
	if created.ConferenceData != nil && len(created.ConferenceData.EntryPoints) > 0 {
		confirmation.MeetLink = created.ConferenceData.EntryPoints[0].Uri
	}
	return confirmation, nil
}
