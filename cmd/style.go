package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
	colorHeader = lipgloss.Color("#fe8019")

	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorHeader)
	styleOK     = lipgloss.NewStyle().Foreground(colorGreen)
	styleFail   = lipgloss.NewStyle().Foreground(colorRed)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
)

const rule = "--------------------------------"

// weekTitle renders e.g. "Week 2024-W02 (2024-01-08 → 2024-01-14)".
func weekTitle(week model.Week) string {
	return fmt.Sprintf("Week %s (%s → %s)",
		timecalc.ISOWeekLabel(week.Start),
		week.Start.Format(timecalc.DateLayout),
		week.End.AddDate(0, 0, -1).Format(timecalc.DateLayout))
}

func printInsufficientData(w io.Writer, week model.Week) {
	fmt.Fprintf(w, "Not enough data for %s.\n", weekTitle(week))
	fmt.Fprintln(w, styleDim.Render("Run `shiftcheck sync` for this week first."))
}

func mark(ok bool) string {
	if ok {
		return styleOK.Render("✓")
	}
	return styleFail.Render("✗")
}
