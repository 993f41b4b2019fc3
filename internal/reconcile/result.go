package reconcile

import (
	"maps"
	"slices"
	"strings"

	"github.com/Tiliavir/shiftcheck/internal/model"
)

// ValidatedShift is a copy of a scheduled shift annotated with the outcome.
type ValidatedShift struct {
	model.ShiftRecord
	Classified bool `json:"classified"`
	Validated  bool `json:"validated"`
}

// UserShifts holds one user's validated shifts.
type UserShifts struct {
	UserDisplayName string           `json:"userDisplayName"`
	Shifts          []ValidatedShift `json:"shifts"`
}

// Result maps group name to user email to that user's shifts.
type Result map[string]map[string]UserShifts

type resultBuilder struct {
	result Result
}

func newResultBuilder() *resultBuilder {
	return &resultBuilder{result: Result{}}
}

func (b *resultBuilder) add(group, email, displayName string, shift ValidatedShift) {
	users := b.result[group]
	if users == nil {
		users = map[string]UserShifts{}
		b.result[group] = users
	}
	us, ok := users[email]
	if !ok {
		us = UserShifts{UserDisplayName: displayName}
	}
	us.Shifts = append(us.Shifts, shift)
	users[email] = us
}

// Summary counts the contents of a Result.
type Summary struct {
	Groups    int `json:"groups"`
	Users     int `json:"users"`
	Shifts    int `json:"shifts"`
	Validated int `json:"validated"`
}

// Summary returns counters over r.
func (r Result) Summary() Summary {
	s := Summary{Groups: len(r)}
	for _, users := range r {
		s.Users += len(users)
		for _, us := range users {
			s.Shifts += len(us.Shifts)
			for _, sh := range us.Shifts {
				if sh.Validated {
					s.Validated++
				}
			}
		}
	}
	return s
}

// Row is one shift of a Result flattened for tabular output.
type Row struct {
	Group           string
	Email           string
	UserDisplayName string
	Shift           ValidatedShift
}

// Rows flattens r ordered by group, email and shift start.
func (r Result) Rows() []Row {
	var rows []Row
	for _, group := range slices.Sorted(maps.Keys(r)) {
		users := r[group]
		for _, email := range slices.Sorted(maps.Keys(users)) {
			us := users[email]
			shifts := slices.Clone(us.Shifts)
			slices.SortStableFunc(shifts, func(a, b ValidatedShift) int {
				return strings.Compare(a.StartDateTime, b.StartDateTime)
			})
			for _, sh := range shifts {
				rows = append(rows, Row{Group: group, Email: email, UserDisplayName: us.UserDisplayName, Shift: sh})
			}
		}
	}
	return rows
}
