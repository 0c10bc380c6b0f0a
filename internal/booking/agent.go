package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/xicom-labs/presales-bot/config"
	"github.com/xicom-labs/presales-bot/models"
)

// Agent computes bookable windows against the calendar and creates
// events. It satisfies the orchestrator's BookingService contract.
type Agent struct {
	calendar    Calendar
	location    *time.Location
	timeZone    string
	workStart   int
	workEnd     int
	slotMinutes int
	horizonDays int
	now         func() time.Time
}

// NewAgent wires an Agent from config. now is injectable for tests; pass
// nil for the wall clock.
func NewAgent(cal Calendar, cfg config.BookingConfig, now func() time.Time) (*Agent, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", cfg.TimeZone, err)
	}
	if now == nil {
		now = time.Now
	}
	return &Agent{
		calendar:    cal,
		location:    loc,
		timeZone:    cfg.TimeZone,
		workStart:   cfg.WorkdayStart,
		workEnd:     cfg.WorkdayEnd,
		slotMinutes: cfg.SlotMinutes,
		horizonDays: cfg.HorizonDays,
		now:         now,
	}, nil
}

// AvailableWindows returns the free working-hours windows over the
// configured horizon, earliest first.
func (a *Agent) AvailableWindows(ctx context.Context) ([]models.Window, error) {
	start := a.now().In(a.location)
	end := start.AddDate(0, 0, a.horizonDays)

	busy, err := a.calendar.Busy(ctx, start, end)
	if err != nil {
		return nil, err
	}
	windows := GenerateWorkingWindows(start, end, time.Duration(a.slotMinutes)*time.Minute, a.workStart, a.workEnd, a.location)
	return SubtractBusy(windows, busy), nil
}

// Book creates the calendar event for one chosen window start.
func (a *Agent) Book(ctx context.Context, start time.Time, attendeeEmail, summary string) (models.BookingConfirmation, error) {
	if summary == "" {
		summary = "Consultation"
	}
	start = start.In(a.location)
	end := start.Add(time.Duration(a.slotMinutes) * time.Minute)
	return a.calendar.CreateEvent(ctx, start, end, attendeeEmail, summary, a.timeZone)
}
