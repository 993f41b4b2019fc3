package msgraph

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/shiftcheck/internal/model"
)

// FetchSchedule reads the team's shifts for week and groups them by
// scheduling group and user. User and group lookups that fail fall back to
// the raw IDs so a single missing record never aborts the fetch.
func (c *Client) FetchSchedule(ctx context.Context, week model.Week) (*model.ScheduleSnapshot, error) {
	shifts, err := c.GetShifts(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("fetching shifts: %w", err)
	}

	users := map[string]User{}
	groups := map[string]string{}
	for _, sh := range shifts {
		if _, ok := users[sh.UserID]; !ok && sh.UserID != "" {
			u, err := c.GetUser(ctx, sh.UserID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.logger.Warn("user lookup failed", zap.String("user_id", sh.UserID), zap.Error(err))
				u = User{ID: sh.UserID}
			}
			users[sh.UserID] = u
		}
		if _, ok := groups[sh.SchedulingGroupID]; !ok && sh.SchedulingGroupID != "" {
			g, err := c.GetSchedulingGroup(ctx, sh.SchedulingGroupID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.logger.Warn("scheduling group lookup failed", zap.String("group_id", sh.SchedulingGroupID), zap.Error(err))
			}
			groups[sh.SchedulingGroupID] = g.DisplayName
		}
	}

	snap := BuildSnapshot(week, shifts, users, groups)
	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}

// BuildSnapshot groups shifts by scheduling group and user. users maps user
// IDs to their directory entries and groups maps group IDs to display names;
// missing entries fall back to the IDs. Shifts without a shared (published)
// version are skipped.
func BuildSnapshot(week model.Week, shifts []Shift, users map[string]User, groups map[string]string) *model.ScheduleSnapshot {
	snap := &model.ScheduleSnapshot{Week: week, Groups: map[string]model.ScheduleGroup{}}
	for _, sh := range shifts {
		if sh.SharedShift == nil {
			continue
		}
		group, ok := snap.Groups[sh.SchedulingGroupID]
		if !ok {
			name := groups[sh.SchedulingGroupID]
			if name == "" {
				name = sh.SchedulingGroupID
			}
			group = model.ScheduleGroup{GroupName: name, Users: map[string]model.ScheduleUser{}}
		}

		user, ok := group.Users[sh.UserID]
		if !ok {
			u := users[sh.UserID]
			name := u.DisplayName
			if name == "" {
				name = sh.UserID
			}
			user = model.ScheduleUser{Email: u.Mail, DisplayName: name}
		}
		user.Shifts = append(user.Shifts, model.ShiftRecord{
			ID:                   sh.ID,
			DisplayName:          sh.SharedShift.DisplayName,
			Notes:                sh.SharedShift.Notes,
			StartDateTime:        sh.SharedShift.StartDateTime,
			EndDateTime:          sh.SharedShift.EndDateTime,
			CreatedDateTime:      sh.CreatedDateTime,
			LastModifiedDateTime: sh.LastModifiedDateTime,
		})
		group.Users[sh.UserID] = user
		snap.Groups[sh.SchedulingGroupID] = group
	}
	return snap
}
