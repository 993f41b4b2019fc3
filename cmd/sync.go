package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shiftcheck/internal/service"
)

var (
	syncWeek   string
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:       "sync [shifts|worklogs|all]",
	Short:     "Fetch a week's shifts and/or worklogs and store them",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"shifts", "worklogs", "all"},
	RunE:      runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncWeek, "week", "", "Any date (YYYY-MM-DD) in the week to sync; defaults to the current week")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Fetch and summarize without storing")
}

func runSync(cmd *cobra.Command, args []string) error {
	target := "all"
	if len(args) == 1 {
		target = args[0]
	}
	want := providers{
		schedules: target == "all" || target == "shifts",
		worklogs:  target == "all" || target == "worklogs",
	}

	ctx := cmd.Context()
	svc, closeStore, err := openService(ctx, want)
	if err != nil {
		return err
	}
	defer closeStore()

	week, err := svc.ResolveWeek(syncWeek)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	dryTag := ""
	if syncDryRun {
		dryTag = " [dry-run]"
	}
	fmt.Fprintf(out, "Syncing %s%s...\n", weekTitle(week), dryTag)
	fmt.Fprintln(out)

	synced := 0
	if want.schedules {
		snap, err := svc.SyncSchedule(ctx, week, syncDryRun)
		switch {
		case err == nil:
			synced++
			fmt.Fprintf(out, "  shifts:   %d shifts in %d groups\n", snap.ShiftCount(), len(snap.Groups))
		case target == "all" && errors.Is(err, service.ErrProviderNotConfigured):
			fmt.Fprintln(out, styleDim.Render("  shifts:   skipped (graph.team_id not configured)"))
		default:
			return err
		}
	}
	if want.worklogs {
		snap, err := svc.SyncWorklogs(ctx, week, syncDryRun)
		switch {
		case err == nil:
			synced++
			fmt.Fprintf(out, "  worklogs: %d entries in %d projects\n", snap.EntryCount(), len(snap.Projects))
		case target == "all" && errors.Is(err, service.ErrProviderNotConfigured):
			fmt.Fprintln(out, styleDim.Render("  worklogs: skipped (jira base_url, email or api_token not configured)"))
		default:
			return err
		}
	}

	if synced == 0 {
		return fmt.Errorf("nothing to sync: %w", service.ErrProviderNotConfigured)
	}
	return nil
}
