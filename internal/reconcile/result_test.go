package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/reconcile"
)

func TestResultSummaryAndRows(t *testing.T) {
	early := model.ShiftRecord{ID: "a", DisplayName: "Day", StartDateTime: "2024-01-08T06:00:00Z"}
	late := model.ShiftRecord{ID: "b", DisplayName: "Night", StartDateTime: "2024-01-09T22:00:00Z"}

	r := reconcile.Result{
		"Ops": {
			"zed@x.com": {UserDisplayName: "Zed", Shifts: []reconcile.ValidatedShift{
				{ShiftRecord: late, Classified: true},
				{ShiftRecord: early, Classified: true, Validated: true},
			}},
			"amy@x.com": {UserDisplayName: "Amy", Shifts: []reconcile.ValidatedShift{
				{ShiftRecord: early, Classified: true, Validated: true},
			}},
		},
		"Dev": {
			"bob@x.com": {UserDisplayName: "Bob", Shifts: []reconcile.ValidatedShift{
				{ShiftRecord: late, Classified: true},
			}},
		},
	}

	assert.Equal(t, reconcile.Summary{Groups: 2, Users: 3, Shifts: 4, Validated: 2}, r.Summary())

	rows := r.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, "Dev", rows[0].Group)
	assert.Equal(t, "amy@x.com", rows[1].Email)
	assert.Equal(t, "zed@x.com", rows[2].Email)
	assert.Equal(t, "a", rows[2].Shift.ID, "shifts are ordered by start")
	assert.Equal(t, "b", rows[3].Shift.ID)

	// Rows must not reorder the result itself.
	assert.Equal(t, "b", r["Ops"]["zed@x.com"].Shifts[0].ID)
}

func TestEmptyResultSummary(t *testing.T) {
	assert.Equal(t, reconcile.Summary{}, reconcile.Result{}.Summary())
	assert.Empty(t, reconcile.Result{}.Rows())
}
