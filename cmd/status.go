package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shiftcheck/internal/reconcile"
	"github.com/Tiliavir/shiftcheck/internal/service"
)

var (
	statusWeek  string
	statusUsers bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which snapshots of a week are stored",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusWeek, "week", "", "Any date (YYYY-MM-DD) in the week; defaults to the current week")
	statusCmd.Flags().BoolVar(&statusUsers, "users", false, "Also compare the users found in shifts and in worklogs")
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, closeStore, err := openService(cmd.Context(), providers{})
	if err != nil {
		return err
	}
	defer closeStore()

	week, err := svc.ResolveWeek(statusWeek)
	if err != nil {
		return err
	}

	st, err := svc.Status(cmd.Context(), week)
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), st, cfg.Location())
	if !statusUsers || !st.Ready() {
		return nil
	}

	overlap, err := svc.CrossReference(cmd.Context(), week)
	if err != nil {
		return err
	}
	printOverlap(cmd.OutOrStdout(), overlap)
	return nil
}

func printStatus(w io.Writer, st service.Status, loc *time.Location) {
	fmt.Fprintln(w, styleHeader.Render(weekTitle(st.Week)))
	printSnapshotInfo(w, "Shifts", "shifts", st.Schedule, loc)
	printSnapshotInfo(w, "Worklogs", "entries", st.Worklogs, loc)
	if st.Ready() {
		fmt.Fprintln(w, styleOK.Render("Ready to validate."))
	} else {
		fmt.Fprintln(w, styleDim.Render("Run `shiftcheck sync` to fetch missing data."))
	}
}

func printSnapshotInfo(w io.Writer, label, unit string, info *service.SnapshotInfo, loc *time.Location) {
	if info == nil {
		fmt.Fprintf(w, "  %s %-9s not synced\n", mark(false), label+":")
		return
	}
	fmt.Fprintf(w, "  %s %-9s %d %s, fetched %s\n", mark(true), label+":", info.Count, unit,
		info.FetchedAt.In(loc).Format("2006-01-02 15:04"))
}

func printOverlap(w io.Writer, o reconcile.UserOverlap) {
	fmt.Fprintln(w)
	printEmails(w, "In both", o.Common)
	printEmails(w, "Shifts only", o.ScheduleOnly)
	printEmails(w, "Worklogs only", o.WorklogOnly)
}

func printEmails(w io.Writer, label string, emails []string) {
	fmt.Fprintf(w, "%s (%d)\n", styleHeader.Render(label), len(emails))
	for _, e := range emails {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
