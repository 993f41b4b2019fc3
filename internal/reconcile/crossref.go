package reconcile

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

// UserOverlap splits the users of a week by the snapshots they appear in.
// Emails are lower-cased, deduplicated and sorted.
type UserOverlap struct {
	Common       []string `json:"commonUsersEmails"`
	ScheduleOnly []string `json:"usersInShiftsOnlyEmails"`
	WorklogOnly  []string `json:"usersInIssuesOnlyEmails"`
}

// CrossReference compares the users scheduled in schedule with the users who
// logged at least one worklog in worklogs. Users without an email are ignored.
func CrossReference(schedule *model.ScheduleSnapshot, worklogs *model.WorklogSnapshot) UserOverlap {
	scheduled := map[string]bool{}
	if schedule != nil {
		for _, g := range schedule.Groups {
			for _, u := range g.Users {
				if email := normalizeEmail(u.Email); email != "" {
					scheduled[email] = true
				}
			}
		}
	}

	logged := map[string]bool{}
	if worklogs != nil {
		for _, p := range worklogs.Projects {
			for _, u := range p.Users {
				email := normalizeEmail(u.Email)
				if email == "" || !hasWorklogs(u) {
					continue
				}
				logged[email] = true
			}
		}
	}

	o := UserOverlap{Common: []string{}, ScheduleOnly: []string{}, WorklogOnly: []string{}}
	for _, email := range slices.Sorted(maps.Keys(scheduled)) {
		if logged[email] {
			o.Common = append(o.Common, email)
		} else {
			o.ScheduleOnly = append(o.ScheduleOnly, email)
		}
	}
	for _, email := range slices.Sorted(maps.Keys(logged)) {
		if !scheduled[email] {
			o.WorklogOnly = append(o.WorklogOnly, email)
		}
	}
	return o
}

func hasWorklogs(u model.WorklogUser) bool {
	for _, issue := range u.Issues {
		if len(issue.Worklogs) > 0 {
			return true
		}
	}
	return false
}

// OnShiftUser is a user with at least one shift overlapping a given day.
type OnShiftUser struct {
	Group       string              `json:"groupName"`
	Email       string              `json:"email"`
	DisplayName string              `json:"displayName"`
	Shifts      []model.ShiftRecord `json:"shifts"`
}

// OnShift returns the users whose shifts overlap the UTC calendar day of day,
// with only the overlapping shifts. A shift ending exactly at midnight still
// counts for the day it ends on. Shifts with an unparsable start or end are
// ignored. Results are sorted by group, display name and email.
func OnShift(schedule *model.ScheduleSnapshot, day time.Time) []OnShiftUser {
	users := []OnShiftUser{}
	if schedule == nil {
		return users
	}
	dayStart, _ := time.Parse(timecalc.DateLayout, timecalc.DateKey(day))
	dayEnd := dayStart.AddDate(0, 0, 1)

	for groupID, g := range schedule.Groups {
		groupName := g.GroupName
		if groupName == "" {
			groupName = groupID
		}
		for userID, u := range g.Users {
			var shifts []model.ShiftRecord
			for _, sh := range u.Shifts {
				start, err := timecalc.ParseTimestamp(sh.StartDateTime)
				if err != nil {
					continue
				}
				end, err := timecalc.ParseTimestamp(sh.EndDateTime)
				if err != nil {
					continue
				}
				if start.Before(dayEnd) && !end.Before(dayStart) {
					shifts = append(shifts, sh)
				}
			}
			if len(shifts) == 0 {
				continue
			}
			name := u.DisplayName
			if name == "" {
				name = userID
			}
			slices.SortStableFunc(shifts, func(a, b model.ShiftRecord) int {
				return cmp.Compare(a.StartDateTime, b.StartDateTime)
			})
			users = append(users, OnShiftUser{Group: groupName, Email: u.Email, DisplayName: name, Shifts: shifts})
		}
	}

	slices.SortFunc(users, func(a, b OnShiftUser) int {
		return cmp.Or(
			cmp.Compare(a.Group, b.Group),
			cmp.Compare(a.DisplayName, b.DisplayName),
			cmp.Compare(a.Email, b.Email),
		)
	})
	return users
}
