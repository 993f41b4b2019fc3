// Package server exposes the service over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/shiftcheck/internal/config"
	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/reconcile"
	"github.com/Tiliavir/shiftcheck/internal/service"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

const shutdownTimeout = 10 * time.Second

// Server serves the shiftcheck API.
type Server struct {
	svc        *service.Service
	validation config.ValidationConfig
	logger     *zap.Logger
}

// New creates a Server. validation supplies the default policy knobs that
// query parameters may override.
func New(svc *service.Service, validation config.ValidationConfig, logger *zap.Logger) *Server {
	return &Server{svc: svc, validation: validation, logger: logger}
}

// Router returns the bare API routes. Routes are registered on the root
// router so a known path with the wrong method answers 405.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	r.HandleFunc("/api/shifts", s.shifts).Methods(http.MethodGet)
	r.HandleFunc("/api/shifts/today", s.onShift).Methods(http.MethodGet)
	r.HandleFunc("/api/shifts/validated", s.validate("standard")).Methods(http.MethodGet)
	r.HandleFunc("/api/shifts/bonus", s.validate("bonus")).Methods(http.MethodGet)
	r.HandleFunc("/api/worklogs", s.worklogs).Methods(http.MethodGet)
	r.HandleFunc("/api/worklogs/totals", s.totals).Methods(http.MethodGet)
	r.HandleFunc("/api/users/crossref", s.crossRef).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/api/sync/shifts", s.syncShifts).Methods(http.MethodPost)
	r.HandleFunc("/api/sync/worklogs", s.syncWorklogs).Methods(http.MethodPost)

	return r
}

// Handler returns the routes wrapped in request logging, panic recovery and,
// when origins are configured, CORS.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	var h http.Handler = s.Router()
	if len(allowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(h)
	}
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
	return handlers.CustomLoggingHandler(io.Discard, h, s.logRequest)
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.logger.Info("request",
		zap.String("method", p.Request.Method),
		zap.String("path", p.URL.Path),
		zap.Int("status", p.StatusCode),
		zap.Int("size", p.Size),
		zap.Duration("duration", time.Since(p.TimeStamp)))
}

type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("panic in handler", zap.String("panic", fmt.Sprint(v...)))
}

// Run serves h on addr until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) validate(set string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		week, ok := s.week(w, r)
		if !ok {
			return
		}
		p, err := s.policy(r, set)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := s.svc.ValidateWeek(r.Context(), week, p)
		if err != nil {
			s.fail(w, week, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) shifts(w http.ResponseWriter, r *http.Request) {
	week, ok := s.week(w, r)
	if !ok {
		return
	}
	snap, err := s.svc.Schedule(r.Context(), week)
	if err != nil {
		s.fail(w, week, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) worklogs(w http.ResponseWriter, r *http.Request) {
	week, ok := s.week(w, r)
	if !ok {
		return
	}
	snap, err := s.svc.Worklogs(r.Context(), week)
	if err != nil {
		s.fail(w, week, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) totals(w http.ResponseWriter, r *http.Request) {
	week, ok := s.week(w, r)
	if !ok {
		return
	}
	totals, err := s.svc.DailyTotals(r.Context(), week)
	if err != nil {
		s.fail(w, week, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) onShift(w http.ResponseWriter, r *http.Request) {
	day, err := s.svc.ResolveDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	users, err := s.svc.OnShift(r.Context(), day)
	if err != nil {
		s.fail(w, timecalc.WeekWindow(day), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": timecalc.DateKey(day), "users": users})
}

func (s *Server) crossRef(w http.ResponseWriter, r *http.Request) {
	week, ok := s.week(w, r)
	if !ok {
		return
	}
	overlap, err := s.svc.CrossReference(r.Context(), week)
	if err != nil {
		s.fail(w, week, err)
		return
	}
	writeJSON(w, http.StatusOK, overlap)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	week, ok := s.week(w, r)
	if !ok {
		return
	}
	st, err := s.svc.Status(r.Context(), week)
	if err != nil {
		s.fail(w, week, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type syncResponse struct {
	Week   model.Week `json:"week"`
	ID     string     `json:"id,omitempty"`
	Count  int        `json:"count"`
	DryRun bool       `json:"dryRun"`
}

func (s *Server) syncShifts(w http.ResponseWriter, r *http.Request) {
	week, ok := s.week(w, r)
	if !ok {
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"
	snap, err := s.svc.SyncSchedule(r.Context(), week, dryRun)
	if err != nil {
		s.fail(w, week, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Week: week, ID: snap.ID, Count: snap.ShiftCount(), DryRun: dryRun})
}

func (s *Server) syncWorklogs(w http.ResponseWriter, r *http.Request) {
	week, ok := s.week(w, r)
	if !ok {
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"
	snap, err := s.svc.SyncWorklogs(r.Context(), week, dryRun)
	if err != nil {
		s.fail(w, week, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Week: week, ID: snap.ID, Count: snap.EntryCount(), DryRun: dryRun})
}

func (s *Server) week(w http.ResponseWriter, r *http.Request) (model.Week, bool) {
	week, err := s.svc.ResolveWeek(r.URL.Query().Get("week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return model.Week{}, false
	}
	return week, true
}

// policy applies the threshold and unmatched query parameters on top of the
// configured validation defaults.
func (s *Server) policy(r *http.Request, set string) (reconcile.Policy, error) {
	cfg := s.validation
	q := r.URL.Query()
	if v := q.Get("threshold"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(th) || math.IsInf(th, 0) || th <= 0 {
			return reconcile.Policy{}, fmt.Errorf("threshold must be a positive number, got %q", v)
		}
		cfg.ThresholdHours = th
	}
	switch v := q.Get("unmatched"); v {
	case "":
	case "omit":
		cfg.IncludeUnmatched = false
	case "include":
		cfg.IncludeUnmatched = true
	default:
		return reconcile.Policy{}, fmt.Errorf("unmatched must be omit or include, got %q", v)
	}
	return service.Policy(cfg, set)
}

// fail maps service errors to responses. Missing snapshots are a soft
// outcome and answer 200 with an insufficient_data status.
func (s *Server) fail(w http.ResponseWriter, week model.Week, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientData):
		writeJSON(w, http.StatusOK, map[string]string{"status": "insufficient_data", "week": week.Key()})
	case errors.Is(err, service.ErrProviderNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, service.ErrStorage):
		s.logger.Error("storage failure", zap.String("week", week.Key()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	case errors.Is(err, context.Canceled):
		s.logger.Debug("request canceled", zap.String("week", week.Key()))
	default:
		s.logger.Error("upstream failure", zap.String("week", week.Key()), zap.Error(err))
		writeError(w, http.StatusBadGateway, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
