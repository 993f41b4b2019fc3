// Package reconcile cross-references a week's shift schedule against the
// worklogs of the same week and decides, per shift, whether it was worked.
//
// Everything in this package is a pure function of its inputs: snapshots are
// never modified and results are freshly allocated, so one pair of snapshots
// can be validated concurrently under several policies.
package reconcile

import (
	"regexp"
	"strconv"
	"strings"
)

// DayHours is the credit given to any duration expressed in days. The numeric
// prefix is deliberately ignored: "2d" counts as DayHours, not 2*DayHours.
const DayHours = 8.0

var numericPattern = regexp.MustCompile(`\d+(\.\d+)?`)

// ParseDuration converts a worklog duration such as "3h", "1.5h" or "1d" to
// hours. ok is false when raw carries no number at all; such entries are not
// counted. A number without an "h" or "d" marker (e.g. "30m") is counted as
// zero hours.
func ParseDuration(raw string) (hours float64, ok bool) {
	num := numericPattern.FindString(raw)
	if num == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}

	switch {
	case strings.Contains(raw, "d"):
		return DayHours, true
	case strings.Contains(raw, "h"):
		return value, true
	default:
		return 0, true
	}
}
