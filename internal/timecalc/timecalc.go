package timecalc

import (
	"fmt"
	"math"
	"time"

	"github.com/Tiliavir/shiftcheck/internal/model"
)

// DateLayout is the calendar-day key format used across snapshots.
const DateLayout = "2006-01-02"

// WeekWindow returns the half-open window [Monday 00:00, next Monday 00:00)
// of the ISO week containing now. The calendar date is read in now's
// location; the window itself is anchored at UTC midnight of that date.
// Sunday belongs to the week that began on the preceding Monday.
func WeekWindow(now time.Time) model.Week {
	y, m, d := now.Date()
	// Go's weekday: Sunday=0, Monday=1, …, Saturday=6
	wd := int(now.Weekday())
	if wd == 0 {
		wd = 7 // treat Sunday as 7 (ISO)
	}
	start := time.Date(y, m, d-(wd-1), 0, 0, 0, 0, time.UTC)
	return model.Week{Start: start, End: start.AddDate(0, 0, 7)}
}

// WeekOf parses a YYYY-MM-DD date and returns the window of the week containing it.
func WeekOf(date string) (model.Week, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return model.Week{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
	}
	return WeekWindow(t), nil
}

// ISOWeekLabel returns a label like "2026-W09".
func ISOWeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// DateKey returns the UTC calendar day of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseTimestamp parses the timestamp formats emitted by Microsoft Graph and
// Jira. Strings without an offset are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000-0700", // Jira
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05.0000000", // Graph local time without offset
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// FormatHours formats fractional hours as "7h 30m", "45m" or "0m".
func FormatHours(hours float64) string {
	minutes := int64(math.Round(hours * 60))
	h := minutes / 60
	m := minutes % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
