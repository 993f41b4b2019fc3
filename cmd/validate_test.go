package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/reconcile"
	"github.com/Tiliavir/shiftcheck/internal/service"
)

var testWeek = model.Week{
	Start: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
}

func TestCsvEscape(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"with space", "with space"},
		{"with,comma", `"with,comma"`},
		{`with"quote`, `"with""quote"`},
		{"with\nnewline", "\"with\nnewline\""},
		{"with\rreturn", "\"with\rreturn\""},
		{"", ""},
	}
	for _, tt := range tests {
		got := csvEscape(tt.input)
		if got != tt.want {
			t.Errorf("csvEscape(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func sampleResult() reconcile.Result {
	return reconcile.Result{
		"Ops, Night": {
			"alice@x.com": {UserDisplayName: "Alice", Shifts: []reconcile.ValidatedShift{
				{ShiftRecord: model.ShiftRecord{ID: "s2", DisplayName: "Night", StartDateTime: "2024-01-09T22:00:00Z", EndDateTime: "2024-01-10T06:00:00Z"}, Classified: true},
				{ShiftRecord: model.ShiftRecord{ID: "s1", DisplayName: "Day Shift", StartDateTime: "2024-01-08T06:00:00Z", EndDateTime: "2024-01-08T14:00:00Z"}, Classified: true, Validated: true},
			}},
		},
	}
}

func TestPrintValidationCSV(t *testing.T) {
	var buf bytes.Buffer
	printValidationCSV(&buf, sampleResult())

	want := strings.Join([]string{
		"group,email,user,shift_id,shift,start,end,classified,validated",
		`"Ops, Night",alice@x.com,Alice,s1,Day Shift,2024-01-08T06:00:00Z,2024-01-08T14:00:00Z,true,true`,
		`"Ops, Night",alice@x.com,Alice,s2,Night,2024-01-09T22:00:00Z,2024-01-10T06:00:00Z,true,false`,
	}, "\n") + "\n"
	if got := buf.String(); got != want {
		t.Errorf("csv output:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	printValidation(&buf, testWeek, reconcile.StandardPolicy(), sampleResult(), time.UTC)
	out := buf.String()

	for _, want := range []string{
		"Week 2024-W02 (2024-01-08 → 2024-01-14)",
		"standard shifts",
		"Alice <alice@x.com>",
		"06:00–14:00",
		"22:00–06:00",
		"1 of 2 shifts worked (threshold 7h)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Day Shift") > strings.Index(out, "  Night\n") {
		t.Errorf("shifts not in start order:\n%s", out)
	}
}

func TestPrintValidationEmpty(t *testing.T) {
	var buf bytes.Buffer
	printValidation(&buf, testWeek, reconcile.BonusPolicy(), reconcile.Result{}, time.UTC)
	if !strings.Contains(buf.String(), "No matching shifts.") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), 1},
		{fmt.Errorf("sync: %w", service.ErrProviderNotConfigured), 1},
		{fmt.Errorf("%w: disk full", service.ErrStorage), 2},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
