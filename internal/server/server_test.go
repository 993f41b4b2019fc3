package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tiliavir/shiftcheck/internal/config"
	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/reconcile"
	"github.com/Tiliavir/shiftcheck/internal/server"
	"github.com/Tiliavir/shiftcheck/internal/service"
	"github.com/Tiliavir/shiftcheck/internal/storage"
)

var week = model.Week{
	Start: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
}

type fakeSchedules struct {
	err   error
	panic bool
}

func (f fakeSchedules) FetchSchedule(_ context.Context, w model.Week) (*model.ScheduleSnapshot, error) {
	if f.panic {
		panic("provider exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.ScheduleSnapshot{
		Week: w,
		Groups: map[string]model.ScheduleGroup{
			"g1": {GroupName: "Ops", Users: map[string]model.ScheduleUser{
				"u1": {Email: "alice@x.com", DisplayName: "Alice", Shifts: []model.ShiftRecord{
					{ID: "s1", DisplayName: "Day Shift", StartDateTime: "2024-01-08T06:00:00Z", EndDateTime: "2024-01-08T14:00:00Z"},
					{ID: "s2", DisplayName: "Training", StartDateTime: "2024-01-09T06:00:00Z", EndDateTime: "2024-01-09T14:00:00Z"},
					{ID: "s3", DisplayName: "Esprit", StartDateTime: "2024-01-10T06:00:00Z", EndDateTime: "2024-01-10T14:00:00Z"},
				}},
			}},
		},
	}, nil
}

type fakeWorklogs struct{}

func (fakeWorklogs) FetchWorklogs(_ context.Context, w model.Week) (*model.WorklogSnapshot, error) {
	return &model.WorklogSnapshot{
		Week: w,
		Projects: []model.ProjectWorklogs{{ProjectName: "OPS", Users: []model.WorklogUser{{
			Email: "alice@x.com",
			Issues: []model.IssueWorklogs{{IssueKey: "OPS-1", Worklogs: []model.Worklog{
				{Started: "2024-01-08T09:00:00.000+0000", TimeSpent: "7h 30m"},
				{Started: "2024-01-10T09:00:00.000+0000", TimeSpent: "1d"},
			}}},
		}}}},
	}, nil
}

func newTestServer(t *testing.T, schedules service.ScheduleProvider, origins ...string) *httptest.Server {
	t.Helper()
	svc := service.New(service.Options{
		Store:     storage.NewFileStore(t.TempDir()),
		Schedules: schedules,
		Worklogs:  fakeWorklogs{},
		Location:  time.UTC,
		Now:       func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) },
		Logger:    zap.NewNop(),
	})
	srv := httptest.NewServer(server.New(svc, config.Default().Validation, zap.NewNop()).Handler(origins))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func syncAll(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp, body := do(t, srv, http.MethodPost, "/api/sync/shifts")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 3, body["count"])
	resp, body = do(t, srv, http.MethodPost, "/api/sync/worklogs")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.EqualValues(t, 2, body["count"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	resp, body := do(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestValidatedBeforeSync(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	resp, body := do(t, srv, http.MethodGet, "/api/shifts/validated")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "insufficient_data", body["status"])
	assert.Equal(t, "2024-01-08", body["week"])

	resp, _ = do(t, srv, http.MethodPost, "/api/sync/shifts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = do(t, srv, http.MethodGet, "/api/shifts/validated")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "insufficient_data", body["status"], "schedule alone is not enough")
}

func TestValidatedShifts(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	syncAll(t, srv)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/shifts/validated?week=2024-01-12", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result reconcile.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	shifts := result["Ops"]["alice@x.com"].Shifts
	require.Len(t, shifts, 1)
	assert.Equal(t, "s1", shifts[0].ID)
	assert.True(t, shifts[0].Validated)
}

func TestBonusShiftsWithQueryOverrides(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	syncAll(t, srv)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/shifts/bonus?unmatched=include&threshold=9", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result reconcile.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	shifts := result["Ops"]["alice@x.com"].Shifts
	require.Len(t, shifts, 3, "unmatched shifts are included")
	for _, sh := range shifts {
		assert.False(t, sh.Validated, "%s: 8h is below a 9h threshold", sh.ID)
		assert.Equal(t, sh.ID == "s3", sh.Classified, sh.ID)
	}
}

func TestBadQuery(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	for _, path := range []string{
		"/api/shifts/validated?week=nope",
		"/api/shifts/validated?threshold=-1",
		"/api/shifts/validated?threshold=abc",
		"/api/shifts/validated?threshold=NaN",
		"/api/shifts/validated?threshold=%2BInf",
		"/api/shifts/bonus?threshold=Inf",
		"/api/shifts/today?date=01/10/2024",
		"/api/users/crossref?week=nope",
		"/api/shifts/bonus?unmatched=sometimes",
		"/api/status?week=2024-13-01",
	} {
		resp, body := do(t, srv, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.NotEmpty(t, body["error"], path)
	}
}

func TestSnapshotsAndTotals(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})

	resp, body := do(t, srv, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["schedule"])
	assert.Equal(t, "2024-W02", body["label"])

	syncAll(t, srv)

	resp, body = do(t, srv, http.MethodGet, "/api/shifts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "shiftsByGroup")

	resp, body = do(t, srv, http.MethodGet, "/api/worklogs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "data")

	resp, body = do(t, srv, http.MethodGet, "/api/worklogs/totals")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	alice, ok := body["alice@x.com"].(map[string]any)
	require.True(t, ok, body)
	assert.Contains(t, alice, "2024-01-08")

	resp, body = do(t, srv, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["schedule"])
	assert.NotNil(t, body["worklogs"])
}

func TestSyncDryRun(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	resp, body := do(t, srv, http.MethodPost, "/api/sync/shifts?dry_run=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["dryRun"])

	_, body = do(t, srv, http.MethodGet, "/api/shifts")
	assert.Equal(t, "insufficient_data", body["status"])
}

func TestSyncErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, _ := do(t, srv, http.MethodPost, "/api/sync/shifts")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	srv = newTestServer(t, fakeSchedules{err: errors.New("graph is down")})
	resp, body := do(t, srv, http.MethodPost, "/api/sync/shifts")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["error"], "graph is down")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/sync/shifts"},
		{http.MethodGet, "/api/sync/worklogs"},
		{http.MethodPost, "/api/shifts/validated"},
		{http.MethodDelete, "/api/status"},
	} {
		resp, _ := do(t, srv, tc.method, tc.path)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, tc.method+" "+tc.path)
	}

	resp, _ := do(t, srv, http.MethodGet, "/api/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUsersCrossRef(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	_, body := do(t, srv, http.MethodGet, "/api/users/crossref")
	assert.Equal(t, "insufficient_data", body["status"])

	syncAll(t, srv)

	resp, body := do(t, srv, http.MethodGet, "/api/users/crossref?week=2024-01-12")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"alice@x.com"}, body["commonUsersEmails"])
	assert.Equal(t, []any{}, body["usersInShiftsOnlyEmails"])
	assert.Equal(t, []any{}, body["usersInIssuesOnlyEmails"])
}

func TestShiftsToday(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{})
	_, body := do(t, srv, http.MethodGet, "/api/shifts/today")
	assert.Equal(t, "insufficient_data", body["status"])
	assert.Equal(t, "2024-01-08", body["week"])

	syncAll(t, srv)

	resp, body := do(t, srv, http.MethodGet, "/api/shifts/today")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2024-01-10", body["date"])
	users, ok := body["users"].([]any)
	require.True(t, ok, body)
	require.Len(t, users, 1)
	alice := users[0].(map[string]any)
	assert.Equal(t, "Ops", alice["groupName"])
	shifts := alice["shifts"].([]any)
	require.Len(t, shifts, 1)
	assert.Equal(t, "s3", shifts[0].(map[string]any)["id"])

	_, body = do(t, srv, http.MethodGet, "/api/shifts/today?date=2024-01-13")
	assert.Equal(t, []any{}, body["users"])
}

func TestRecoversFromPanic(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{panic: true})
	resp, _ := do(t, srv, http.MethodPost, "/api/sync/shifts")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, fakeSchedules{}, "https://app.example")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), zap.NewNop())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
