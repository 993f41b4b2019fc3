package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/reconcile"
	"github.com/Tiliavir/shiftcheck/internal/service"
)

var (
	validateSet              string
	validateThreshold        float64
	validateIncludeUnmatched bool
	validateWeek             string
	validateFormat           string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Report which scheduled shifts were worked",
	Long: `validate checks every shift of the stored schedule against the stored
worklogs of the same week. A shift counts as worked when its user logged at
least --threshold hours on the shift's start day.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateSet, "set", "standard", "Shift category: standard or bonus")
	validateCmd.Flags().Float64Var(&validateThreshold, "threshold", 0, "Logged hours required per shift day (default from config)")
	validateCmd.Flags().BoolVar(&validateIncludeUnmatched, "include-unmatched", false, "Also list shifts outside the category")
	validateCmd.Flags().StringVar(&validateWeek, "week", "", "Any date (YYYY-MM-DD) in the week; defaults to the current week")
	validateCmd.Flags().StringVar(&validateFormat, "format", "md", "Output format: md, csv, json")
}

func runValidate(cmd *cobra.Command, args []string) error {
	vc := cfg.Validation
	if cmd.Flags().Changed("threshold") {
		if math.IsNaN(validateThreshold) || math.IsInf(validateThreshold, 0) || validateThreshold <= 0 {
			return fmt.Errorf("--threshold must be positive, got %v", validateThreshold)
		}
		vc.ThresholdHours = validateThreshold
	}
	if validateIncludeUnmatched {
		vc.IncludeUnmatched = true
	}
	policy, err := service.Policy(vc, validateSet)
	if err != nil {
		return err
	}

	svc, closeStore, err := openService(cmd.Context(), providers{})
	if err != nil {
		return err
	}
	defer closeStore()

	week, err := svc.ResolveWeek(validateWeek)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result, err := svc.ValidateWeek(cmd.Context(), week, policy)
	if errors.Is(err, service.ErrInsufficientData) {
		printInsufficientData(out, week)
		return nil
	}
	if err != nil {
		return err
	}

	switch validateFormat {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "csv":
		printValidationCSV(out, result)
	default: // md
		printValidation(out, week, policy, result, cfg.Location())
	}
	return nil
}

func printValidation(w io.Writer, week model.Week, p reconcile.Policy, result reconcile.Result, loc *time.Location) {
	fmt.Fprintln(w, styleHeader.Render(fmt.Sprintf("%s · %s shifts", weekTitle(week), p.Keywords.Name)))
	fmt.Fprintln(w, rule)

	rows := result.Rows()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No matching shifts.")
		return
	}

	var group, user string
	for _, r := range rows {
		if r.Group != group {
			fmt.Fprintln(w, r.Group)
			group, user = r.Group, ""
		}
		if r.Email != user {
			fmt.Fprintf(w, "  %s <%s>\n", r.UserDisplayName, r.Email)
			user = r.Email
		}
		status := mark(r.Shift.Validated)
		if !r.Shift.Classified {
			status = styleDim.Render("-")
		}
		fmt.Fprintf(w, "    %s %s  %s\n", status, shiftTime(r.Shift.ShiftRecord, loc), r.Shift.DisplayName)
	}

	sum := result.Summary()
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%d of %d shifts worked (threshold %gh)\n", sum.Validated, sum.Shifts, thresholdOf(p))
}

func thresholdOf(p reconcile.Policy) float64 {
	if p.Threshold <= 0 {
		return reconcile.DefaultThreshold
	}
	return p.Threshold
}

func printValidationCSV(w io.Writer, result reconcile.Result) {
	fmt.Fprintln(w, "group,email,user,shift_id,shift,start,end,classified,validated")
	for _, r := range result.Rows() {
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%t,%t\n",
			csvEscape(r.Group),
			csvEscape(r.Email),
			csvEscape(r.UserDisplayName),
			csvEscape(r.Shift.ID),
			csvEscape(r.Shift.DisplayName),
			csvEscape(r.Shift.StartDateTime),
			csvEscape(r.Shift.EndDateTime),
			r.Shift.Classified,
			r.Shift.Validated,
		)
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
