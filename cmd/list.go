package cmd

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/reconcile"
	"github.com/Tiliavir/shiftcheck/internal/service"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

var (
	listWeek  string
	listToday bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored shifts of a week by day",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listWeek, "week", "", "Any date (YYYY-MM-DD) in the week; defaults to the current week")
	listCmd.Flags().BoolVar(&listToday, "today", false, "Only list who is on shift today (UTC)")
}

func runList(cmd *cobra.Command, args []string) error {
	svc, closeStore, err := openService(cmd.Context(), providers{})
	if err != nil {
		return err
	}
	defer closeStore()

	if listToday {
		return runListToday(cmd, svc)
	}

	week, err := svc.ResolveWeek(listWeek)
	if err != nil {
		return err
	}

	snap, err := svc.Schedule(cmd.Context(), week)
	if errors.Is(err, service.ErrInsufficientData) {
		printInsufficientData(cmd.OutOrStdout(), week)
		return nil
	}
	if err != nil {
		return err
	}

	printShifts(cmd.OutOrStdout(), snap, cfg.Location())
	return nil
}

func runListToday(cmd *cobra.Command, svc *service.Service) error {
	day, err := svc.ResolveDay("")
	if err != nil {
		return err
	}
	users, err := svc.OnShift(cmd.Context(), day)
	if errors.Is(err, service.ErrInsufficientData) {
		printInsufficientData(cmd.OutOrStdout(), timecalc.WeekWindow(day))
		return nil
	}
	if err != nil {
		return err
	}
	printOnShift(cmd.OutOrStdout(), day, users, cfg.Location())
	return nil
}

func printOnShift(w io.Writer, day time.Time, users []reconcile.OnShiftUser, loc *time.Location) {
	fmt.Fprintln(w, styleHeader.Render("On shift "+day.Format("Mon 2006-01-02")))
	if len(users) == 0 {
		fmt.Fprintln(w, "Nobody is on shift.")
		return
	}
	for _, u := range users {
		for _, sh := range u.Shifts {
			fmt.Fprintf(w, "%s  %-20s %s  %s\n", shiftTime(sh, loc), u.DisplayName, sh.DisplayName, styleDim.Render(u.Group))
		}
	}
}

type listedShift struct {
	start time.Time
	group string
	user  string
	shift model.ShiftRecord
}

// printShifts groups the snapshot's shifts by local start day and prints
// them in start order. Shifts with an unparsable start are listed last.
func printShifts(w io.Writer, snap *model.ScheduleSnapshot, loc *time.Location) {
	var shifts []listedShift
	for groupID, g := range snap.Groups {
		group := g.GroupName
		if group == "" {
			group = groupID
		}
		for _, u := range g.Users {
			for _, sh := range u.Shifts {
				start, _ := timecalc.ParseTimestamp(sh.StartDateTime)
				shifts = append(shifts, listedShift{start: start, group: group, user: u.DisplayName, shift: sh})
			}
		}
	}
	if len(shifts) == 0 {
		fmt.Fprintln(w, "No shifts found.")
		return
	}

	slices.SortFunc(shifts, func(a, b listedShift) int {
		if a.start.IsZero() != b.start.IsZero() {
			if a.start.IsZero() {
				return 1
			}
			return -1
		}
		return cmp.Or(
			a.start.Compare(b.start),
			cmp.Compare(a.group, b.group),
			cmp.Compare(a.user, b.user),
			cmp.Compare(a.shift.ID, b.shift.ID),
		)
	})

	var currentDay string
	for _, s := range shifts {
		day := "unscheduled"
		if !s.start.IsZero() {
			day = s.start.In(loc).Format("Mon 2006-01-02")
		}
		if day != currentDay {
			fmt.Fprintln(w, styleHeader.Render(day))
			currentDay = day
		}
		fmt.Fprintf(w, "%s  %-20s %s  %s\n", shiftTime(s.shift, loc), s.user, s.shift.DisplayName, styleDim.Render(s.group))
	}
}

// shiftTime renders a shift's local time span as "06:00–14:00".
func shiftTime(sh model.ShiftRecord, loc *time.Location) string {
	start, err := timecalc.ParseTimestamp(sh.StartDateTime)
	if err != nil {
		return "??:??–??:??"
	}
	end, err := timecalc.ParseTimestamp(sh.EndDateTime)
	if err != nil {
		return start.In(loc).Format("15:04") + "–?"
	}
	return start.In(loc).Format("15:04") + "–" + end.In(loc).Format("15:04")
}
