// Package service ties the providers, the snapshot store and the
// reconciliation engine together. Both the CLI and the HTTP API go through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/shiftcheck/internal/config"
	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/reconcile"
	"github.com/Tiliavir/shiftcheck/internal/storage"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

var (
	// ErrInsufficientData is returned when a week's schedule or worklog
	// snapshot has not been synced yet.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrProviderNotConfigured is returned by a sync whose provider is missing.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrStorage marks failures of the snapshot store.
	ErrStorage = errors.New("storage failure")
)

// ScheduleProvider fetches a week's published shifts.
type ScheduleProvider interface {
	FetchSchedule(ctx context.Context, week model.Week) (*model.ScheduleSnapshot, error)
}

// WorklogProvider fetches a week's worklogs.
type WorklogProvider interface {
	FetchWorklogs(ctx context.Context, week model.Week) (*model.WorklogSnapshot, error)
}

// Options configures a Service. Schedules and Worklogs may be nil when the
// corresponding provider is not configured.
type Options struct {
	Store     storage.Store
	Schedules ScheduleProvider
	Worklogs  WorklogProvider
	// Location decides the calendar date of "now". Defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

// Service answers week-scoped queries over stored snapshots.
type Service struct {
	store     storage.Store
	schedules ScheduleProvider
	worklogs  WorklogProvider
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	s := &Service{
		store:     opts.Store,
		schedules: opts.Schedules,
		worklogs:  opts.Worklogs,
		loc:       opts.Location,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CurrentWeek returns the window containing today.
func (s *Service) CurrentWeek() model.Week {
	return timecalc.WeekWindow(s.now().In(s.loc))
}

// ResolveWeek returns the window containing date (YYYY-MM-DD), or the
// current window when date is empty.
func (s *Service) ResolveWeek(date string) (model.Week, error) {
	if date == "" {
		return s.CurrentWeek(), nil
	}
	return timecalc.WeekOf(date)
}

// SyncSchedule fetches the week's schedule and stores it unless dryRun is set.
func (s *Service) SyncSchedule(ctx context.Context, week model.Week, dryRun bool) (*model.ScheduleSnapshot, error) {
	if s.schedules == nil {
		return nil, fmt.Errorf("schedule: %w", ErrProviderNotConfigured)
	}
	snap, err := s.schedules.FetchSchedule(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("fetching schedule: %w", err)
	}
	s.logger.Info("fetched schedule", zap.String("week", week.Key()), zap.Int("shifts", snap.ShiftCount()), zap.Bool("dry_run", dryRun))
	if dryRun {
		return snap, nil
	}
	if err := s.store.SaveSchedule(ctx, snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return snap, nil
}

// SyncWorklogs fetches the week's worklogs and stores them unless dryRun is set.
func (s *Service) SyncWorklogs(ctx context.Context, week model.Week, dryRun bool) (*model.WorklogSnapshot, error) {
	if s.worklogs == nil {
		return nil, fmt.Errorf("worklogs: %w", ErrProviderNotConfigured)
	}
	snap, err := s.worklogs.FetchWorklogs(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("fetching worklogs: %w", err)
	}
	s.logger.Info("fetched worklogs", zap.String("week", week.Key()), zap.Int("entries", snap.EntryCount()), zap.Bool("dry_run", dryRun))
	if dryRun {
		return snap, nil
	}
	if err := s.store.SaveWorklogs(ctx, snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return snap, nil
}

// Schedule returns the stored schedule snapshot of week.
func (s *Service) Schedule(ctx context.Context, week model.Week) (*model.ScheduleSnapshot, error) {
	snap, err := s.store.LoadSchedule(ctx, week)
	if err != nil {
		return nil, s.loadError("schedule", week, err)
	}
	return snap, nil
}

// Worklogs returns the stored worklog snapshot of week.
func (s *Service) Worklogs(ctx context.Context, week model.Week) (*model.WorklogSnapshot, error) {
	snap, err := s.store.LoadWorklogs(ctx, week)
	if err != nil {
		return nil, s.loadError("worklogs", week, err)
	}
	return snap, nil
}

// DailyTotals aggregates the stored worklogs of week per user and day.
func (s *Service) DailyTotals(ctx context.Context, week model.Week) (reconcile.Totals, error) {
	snap, err := s.Worklogs(ctx, week)
	if err != nil {
		return nil, err
	}
	return reconcile.Aggregate(snap), nil
}

// ValidateWeek validates the stored schedule of week against its stored
// worklogs. Both snapshots must exist.
func (s *Service) ValidateWeek(ctx context.Context, week model.Week, p reconcile.Policy) (reconcile.Result, error) {
	schedule, err := s.Schedule(ctx, week)
	if err != nil {
		return nil, err
	}
	totals, err := s.DailyTotals(ctx, week)
	if err != nil {
		return nil, err
	}
	result := reconcile.Validate(schedule, totals, p)
	sum := result.Summary()
	s.logger.Debug("validated week",
		zap.String("week", week.Key()),
		zap.String("set", p.Keywords.Name),
		zap.Int("shifts", sum.Shifts),
		zap.Int("validated", sum.Validated))
	return result, nil
}

// CrossReference reports which users of week appear in its schedule, its
// worklogs or both. Both snapshots must exist.
func (s *Service) CrossReference(ctx context.Context, week model.Week) (reconcile.UserOverlap, error) {
	schedule, err := s.Schedule(ctx, week)
	if err != nil {
		return reconcile.UserOverlap{}, err
	}
	worklogs, err := s.Worklogs(ctx, week)
	if err != nil {
		return reconcile.UserOverlap{}, err
	}
	return reconcile.CrossReference(schedule, worklogs), nil
}

// ResolveDay returns UTC midnight of date (YYYY-MM-DD), or of today's UTC
// date when date is empty.
func (s *Service) ResolveDay(date string) (time.Time, error) {
	if date == "" {
		y, m, d := s.now().UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse(timecalc.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", date, err)
	}
	return day, nil
}

// OnShift returns the users scheduled on the UTC day of day, read from the
// stored schedule of the week containing it.
func (s *Service) OnShift(ctx context.Context, day time.Time) ([]reconcile.OnShiftUser, error) {
	schedule, err := s.Schedule(ctx, timecalc.WeekWindow(day.UTC()))
	if err != nil {
		return nil, err
	}
	return reconcile.OnShift(schedule, day), nil
}

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	FetchedAt time.Time `json:"fetchedAt"`
	Count     int       `json:"count"`
}

// Status reports which snapshots of a week are available.
type Status struct {
	Week     model.Week    `json:"week"`
	Label    string        `json:"label"`
	Schedule *SnapshotInfo `json:"schedule"`
	Worklogs *SnapshotInfo `json:"worklogs"`
}

// Ready reports whether the week can be validated.
func (st Status) Ready() bool {
	return st.Schedule != nil && st.Worklogs != nil
}

// Status reports snapshot availability for week. Missing snapshots are not
// an error.
func (s *Service) Status(ctx context.Context, week model.Week) (Status, error) {
	st := Status{Week: week, Label: timecalc.ISOWeekLabel(week.Start)}

	schedule, err := s.Schedule(ctx, week)
	switch {
	case err == nil:
		st.Schedule = &SnapshotInfo{ID: schedule.ID, FetchedAt: schedule.FetchedAt, Count: schedule.ShiftCount()}
	case !errors.Is(err, ErrInsufficientData):
		return st, err
	}

	worklogs, err := s.Worklogs(ctx, week)
	switch {
	case err == nil:
		st.Worklogs = &SnapshotInfo{ID: worklogs.ID, FetchedAt: worklogs.FetchedAt, Count: worklogs.EntryCount()}
	case !errors.Is(err, ErrInsufficientData):
		return st, err
	}
	return st, nil
}

func (s *Service) loadError(kind string, week model.Week, err error) error {
	if errors.Is(err, storage.ErrNoSnapshot) {
		return fmt.Errorf("%s for week of %s: %w", kind, week.Key(), ErrInsufficientData)
	}
	return fmt.Errorf("%w: loading %s: %w", ErrStorage, kind, err)
}

// Policy builds the validation policy for the named keyword set ("standard"
// or "bonus") from cfg. Keywords configured for the set replace the built-in
// ones.
func Policy(cfg config.ValidationConfig, set string) (reconcile.Policy, error) {
	ks, err := reconcile.KeywordSetByName(set)
	if err != nil {
		return reconcile.Policy{}, err
	}
	switch ks.Name {
	case reconcile.Standard.Name:
		ks = ks.WithKeywords(cfg.StandardKeywords)
	case reconcile.Bonus.Name:
		ks = ks.WithKeywords(cfg.BonusKeywords)
	}
	p := reconcile.Policy{Keywords: ks, Threshold: cfg.ThresholdHours}
	if cfg.IncludeUnmatched {
		p.Unmatched = reconcile.IncludeUnmatched
	}
	return p, nil
}
