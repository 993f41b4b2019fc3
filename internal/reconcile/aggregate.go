package reconcile

import (
	"strings"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

// DailyTimeTotal is the logged time of one user on one UTC calendar day.
type DailyTimeTotal struct {
	Date       string  `json:"date"`
	TotalHours float64 `json:"totalHours"`
	EntryCount int     `json:"entryCount"`
}

// Totals maps a lower-cased email to its per-day totals.
type Totals map[string]map[string]DailyTimeTotal

// Lookup returns the total of email on date (YYYY-MM-DD).
func (t Totals) Lookup(email, date string) (DailyTimeTotal, bool) {
	days, ok := t[normalizeEmail(email)]
	if !ok {
		return DailyTimeTotal{}, false
	}
	total, ok := days[date]
	return total, ok
}

// Aggregate sums the worklogs of snap per user and UTC day. Entries with an
// empty duration, an unparsable start or a duration without any number are
// skipped; users without an email are skipped. A user listed under several
// projects is merged into one set of totals.
func Aggregate(snap *model.WorklogSnapshot) Totals {
	totals := Totals{}
	if snap == nil {
		return totals
	}
	for _, project := range snap.Projects {
		for _, user := range project.Users {
			email := normalizeEmail(user.Email)
			if email == "" {
				continue
			}
			for _, issue := range user.Issues {
				for _, wl := range issue.Worklogs {
					date, hours, ok := countable(wl)
					if !ok {
						continue
					}
					days := totals[email]
					if days == nil {
						days = map[string]DailyTimeTotal{}
						totals[email] = days
					}
					day := days[date]
					day.Date = date
					day.TotalHours += hours
					day.EntryCount++
					days[date] = day
				}
			}
		}
	}
	return totals
}

// countable returns the date key and hours of wl, or ok=false when the entry
// does not count.
func countable(wl model.Worklog) (date string, hours float64, ok bool) {
	if strings.TrimSpace(wl.TimeSpent) == "" {
		return "", 0, false
	}
	started, err := timecalc.ParseTimestamp(wl.Started)
	if err != nil {
		return "", 0, false
	}
	hours, ok = ParseDuration(wl.TimeSpent)
	if !ok {
		return "", 0, false
	}
	return timecalc.DateKey(started), hours, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
