package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/xicom-labs/presales-bot/models"
)

// TimeRange is a busy interval reported by the calendar.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// GenerateWorkingWindows slices the span between start and end into
// fixed-size windows inside working hours, one day at a time.
func GenerateWorkingWindows(start, end time.Time, duration time.Duration, workStart, workEnd int, loc *time.Location) []models.Window {
	start = start.In(loc)
	end = end.In(loc)

	var windows []models.Window
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for !day.After(end) {
		dayStart := day.Add(time.Duration(workStart) * time.Hour)
		dayEnd := day.Add(time.Duration(workEnd) * time.Hour)

		windowStart := dayStart
		if start.After(windowStart) {
			windowStart = start
		}
		windowEnd := dayEnd
		if end.Before(windowEnd) {
			windowEnd = end
		}

		for cur := windowStart; !cur.Add(duration).After(windowEnd); cur = cur.Add(duration) {
			windows = append(windows, models.Window{Start: cur, End: cur.Add(duration)})
		}
		day = day.AddDate(0, 0, 1)
	}
	return windows
}

// SubtractBusy drops every window that overlaps a busy range.
func SubtractBusy(windows []models.Window, busy []TimeRange) []models.Window {
	available := make([]models.Window, 0, len(windows))
	for _, w := range windows {
		overlaps := false
		for _, b := range busy {
			if w.End.After(b.Start) && w.Start.Before(b.End) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			available = append(available, w)
		}
	}
	return available
}

// FormatWindows renders windows for terminal output.
func FormatWindows(windows []models.Window, loc *time.Location) string {
	if len(windows) == 0 {
		return "No available slots."
	}
	lines := make([]string, 0, len(windows))
	for _, w := range windows {
		start := w.Start.In(loc)
		end := w.End.In(loc)
		lines = append(lines, fmt.Sprintf("%s - %s %s", start.Format("2006-01-02 15:04"), end.Format("15:04"), loc.String()))
	}
	return strings.Join(lines, "\n")
}
