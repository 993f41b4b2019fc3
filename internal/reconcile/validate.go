package reconcile

import (
	"maps"
	"slices"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

// DefaultThreshold is the number of logged hours a day needs for its shifts
// to count as worked.
const DefaultThreshold = 7.0

// hoursTolerance absorbs float drift from summing fractional durations, so
// 70 entries of 0.1h still reach a 7h threshold.
const hoursTolerance = 1e-9

// UnmatchedPolicy decides what happens to shifts outside the keyword set.
type UnmatchedPolicy int

const (
	// OmitUnmatched drops shifts that do not match the keyword set.
	OmitUnmatched UnmatchedPolicy = iota
	// IncludeUnmatched keeps them with Classified and Validated set to false.
	IncludeUnmatched
)

// Policy parametrizes a validation run.
type Policy struct {
	Keywords  KeywordSet
	Threshold float64
	Unmatched UnmatchedPolicy
}

// StandardPolicy validates regular shifts against DefaultThreshold.
func StandardPolicy() Policy {
	return Policy{Keywords: Standard, Threshold: DefaultThreshold}
}

// BonusPolicy validates bonus shifts against DefaultThreshold.
func BonusPolicy() Policy {
	return Policy{Keywords: Bonus, Threshold: DefaultThreshold}
}

func (p Policy) threshold() float64 {
	if p.Threshold <= 0 {
		return DefaultThreshold
	}
	return p.Threshold
}

// Validate marks every shift of schedule selected by p as validated when the
// user logged at least p.Threshold hours on the shift's start day. The
// schedule is not modified. A nil schedule yields an empty Result.
func Validate(schedule *model.ScheduleSnapshot, totals Totals, p Policy) Result {
	b := newResultBuilder()
	if schedule == nil {
		return b.result
	}
	threshold := p.threshold()

	for _, groupID := range slices.Sorted(maps.Keys(schedule.Groups)) {
		group := schedule.Groups[groupID]
		groupName := group.GroupName
		if groupName == "" {
			groupName = groupID
		}
		for _, userID := range slices.Sorted(maps.Keys(group.Users)) {
			user := group.Users[userID]
			if user.Email == "" {
				continue
			}
			for _, shift := range user.Shifts {
				classified := Classify(shift, p.Keywords)
				if !classified && p.Unmatched == OmitUnmatched {
					continue
				}
				vs := ValidatedShift{ShiftRecord: shift, Classified: classified}
				if classified {
					vs.Validated = worked(totals, user.Email, shift, threshold)
				}
				b.add(groupName, user.Email, user.DisplayName, vs)
			}
		}
	}
	return b.result
}

func worked(totals Totals, email string, shift model.ShiftRecord, threshold float64) bool {
	start, err := timecalc.ParseTimestamp(shift.StartDateTime)
	if err != nil {
		return false
	}
	total, ok := totals.Lookup(email, timecalc.DateKey(start))
	return ok && total.TotalHours >= threshold-hoursTolerance
}
