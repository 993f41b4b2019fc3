package model

import "time"

// Week is the half-open interval [Start, End) that scopes one snapshot.
type Week struct {
	Start time.Time `json:"startOfWeek"`
	End   time.Time `json:"endOfWeek"`
}

// Contains reports whether t falls inside the week.
func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Key returns the week's Monday as YYYY-MM-DD.
func (w Week) Key() string {
	return w.Start.Format("2006-01-02")
}

// ShiftRecord is a single scheduled shift as delivered by the schedule provider.
// Timestamps are kept as the provider's raw RFC 3339 strings.
type ShiftRecord struct {
	ID                   string `json:"id"`
	DisplayName          string `json:"displayName"`
	Notes                string `json:"notes"`
	StartDateTime        string `json:"startDateTime"`
	EndDateTime          string `json:"endDateTime"`
	CreatedDateTime      string `json:"createdDateTime,omitempty"`
	LastModifiedDateTime string `json:"lastModifiedDateTime,omitempty"`
}

// ScheduleUser holds the shifts assigned to one user within a group.
type ScheduleUser struct {
	Email       string        `json:"email"`
	DisplayName string        `json:"displayName"`
	Shifts      []ShiftRecord `json:"shifts"`
}

// ScheduleGroup is a scheduling group keyed by user ID.
type ScheduleGroup struct {
	GroupName string                  `json:"groupName"`
	Users     map[string]ScheduleUser `json:"users"`
}

// ScheduleSnapshot is the shift schedule for one week, keyed by group ID.
type ScheduleSnapshot struct {
	ID        string                   `json:"id"`
	Week      Week                     `json:"week"`
	FetchedAt time.Time                `json:"fetchedAt"`
	Groups    map[string]ScheduleGroup `json:"shiftsByGroup"`
}

// ShiftCount returns the total number of shifts in the snapshot.
func (s *ScheduleSnapshot) ShiftCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, g := range s.Groups {
		for _, u := range g.Users {
			n += len(u.Shifts)
		}
	}
	return n
}
