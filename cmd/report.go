package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/reconcile"
	"github.com/Tiliavir/shiftcheck/internal/service"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

var (
	reportWeek   string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show logged hours per user and day",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportWeek, "week", "", "Any date (YYYY-MM-DD) in the week; defaults to the current week")
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, csv, json")
}

func runReport(cmd *cobra.Command, args []string) error {
	svc, closeStore, err := openService(cmd.Context(), providers{})
	if err != nil {
		return err
	}
	defer closeStore()

	week, err := svc.ResolveWeek(reportWeek)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	totals, err := svc.DailyTotals(cmd.Context(), week)
	if errors.Is(err, service.ErrInsufficientData) {
		printInsufficientData(out, week)
		return nil
	}
	if err != nil {
		return err
	}

	switch reportFormat {
	case "csv":
		printTotalsCSV(out, totals)
	case "json":
		data, err := json.MarshalIndent(struct {
			Week  string           `json:"week"`
			Label string           `json:"label"`
			Users reconcile.Totals `json:"users"`
		}{week.Key(), timecalc.ISOWeekLabel(week.Start), totals}, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	default: // md
		printTotals(out, week, totals)
	}
	return nil
}

func printTotals(w io.Writer, week model.Week, totals reconcile.Totals) {
	fmt.Fprintln(w, styleHeader.Render(weekTitle(week)))
	fmt.Fprintln(w, rule)
	if len(totals) == 0 {
		fmt.Fprintln(w, "No worklogs found.")
		return
	}

	var grand float64
	for _, email := range slices.Sorted(maps.Keys(totals)) {
		days := totals[email]
		var sum float64
		fmt.Fprintln(w, email)
		for _, date := range slices.Sorted(maps.Keys(days)) {
			d := days[date]
			sum += d.TotalHours
			fmt.Fprintf(w, "  %-18s%-10s%s\n", date, timecalc.FormatHours(d.TotalHours),
				styleDim.Render(fmt.Sprintf("(%d entries)", d.EntryCount)))
		}
		fmt.Fprintf(w, "  %-18s%s\n", "Total", timecalc.FormatHours(sum))
		grand += sum
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-20s%s\n", "Total", timecalc.FormatHours(grand))
}

func printTotalsCSV(w io.Writer, totals reconcile.Totals) {
	fmt.Fprintln(w, "email,date,hours,entries")
	for _, email := range slices.Sorted(maps.Keys(totals)) {
		days := totals[email]
		for _, date := range slices.Sorted(maps.Keys(days)) {
			d := days[date]
			fmt.Fprintf(w, "%s,%s,%s,%d\n",
				csvEscape(email), date, strconv.FormatFloat(d.TotalHours, 'f', -1, 64), d.EntryCount)
		}
	}
}
