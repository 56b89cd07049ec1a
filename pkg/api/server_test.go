package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/somcheck/pkg/checker"
	"github.com/platinummonkey/somcheck/pkg/observability"
	"github.com/platinummonkey/somcheck/pkg/progress"
	"github.com/platinummonkey/somcheck/pkg/storage"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seededStore(t *testing.T) *storage.Store {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "issues.db")
	clock := func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	store, err := storage.Open(context.Background(), cfg, storage.WithLogger(quietLogger()), storage.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.WriteFile(context.Background(), storage.FileBatch{
		Project: "Neubau",
		File:    "haus_a.yaml",
		Entities: []storage.Entity{
			{GUID: "2O2Fr$t4X7Zf8NOew3FLOH", Name: "Wand 1", Type: "IfcWall", Classification: "1.1"},
			{GUID: "1Wx3kLp0u9Bc7Tt4Yh2ZqR", Name: "Wand 2", Type: "IfcWall", Classification: "1.1"},
		},
		Issues: []validation.Issue{
			{GUID: "2O2Fr$t4X7Zf8NOew3FLOH", Type: validation.IssueRange, Description: "IfcWall Maße:Breite is outside the allowed ranges", PropertySet: "Maße", Attribute: "Breite", Value: "15"},
			{GUID: "1Wx3kLp0u9Bc7Tt4Yh2ZqR", Type: validation.IssueEmptyValue, Description: "IfcWall has an empty attribute Maße:Material", PropertySet: "Maße", Attribute: "Material"},
			{GUID: "1Wx3kLp0u9Bc7Tt4Yh2ZqR", Type: validation.IssueGroupMissing, Description: "Element has no group assignment"},
		},
	})
	require.NoError(t, err)
	return store
}

type fakeRunner struct {
	startErr error
	started  []checker.Request
	active   bool
	report   *checker.Report
}

func (f *fakeRunner) Start(_ context.Context, req checker.Request) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, req)
	f.active = true
	f.report = &checker.Report{ID: "run-1", Project: req.Project, State: checker.StateImporting}
	return "run-1", nil
}

func (f *fakeRunner) Abort() bool { return f.active }

func (f *fakeRunner) Current() (*checker.Report, bool) { return f.report, f.report != nil }

func (f *fakeRunner) Progress() (progress.Snapshot, map[progress.Phase]progress.Snapshot) {
	snap := progress.Snapshot{Phase: progress.PhaseImporting, Percent: 50, Status: "importing haus_a.yaml", Total: 2}
	return snap, map[progress.Phase]progress.Snapshot{progress.PhaseImporting: snap}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestListIssues(t *testing.T) {
	s := NewServer(seededStore(t), nil, WithLogger(quietLogger()))
	h := s.Handler()

	tests := []struct {
		name   string
		query  string
		status int
		want   int
	}{
		{"all", "", http.StatusOK, 3},
		{"by type name", "?type=RANGE", http.StatusOK, 1},
		{"by type code", "?type=7", http.StatusOK, 1},
		{"by guid", "?guid=1Wx3kLp0u9Bc7Tt4Yh2ZqR", http.StatusOK, 2},
		{"by date", "?date=2024-03-01", http.StatusOK, 3},
		{"other date", "?date=2024-03-02", http.StatusOK, 0},
		{"other project", "?project=Altbau", http.StatusOK, 0},
		{"paged", "?limit=2&offset=2", http.StatusOK, 1},
		{"bad date", "?date=01.03.2024", http.StatusBadRequest, 0},
		{"bad type", "?type=SPELLING", http.StatusBadRequest, 0},
		{"bad limit", "?limit=many", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, "/api/v1/issues"+tt.query, "")
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			list := decode[IssueList](t, w)
			assert.Len(t, list.Issues, tt.want)
		})
	}

	w := do(t, h, http.MethodGet, "/api/v1/issues?type=RANGE", "")
	list := decode[IssueList](t, w)
	require.Len(t, list.Issues, 1)
	got := list.Issues[0]
	assert.Equal(t, "RANGE", got.Type)
	assert.Equal(t, int(validation.IssueRange), got.Code)
	assert.Equal(t, "2O2Fr$t4X7Zf8NOew3FLOH", got.GUID)
	assert.Equal(t, "2024-03-01", got.CreationDate)
	assert.Equal(t, "haus_a.yaml", got.File)
}

func TestIssueCounts(t *testing.T) {
	h := NewServer(seededStore(t), nil, WithLogger(quietLogger())).Handler()

	w := do(t, h, http.MethodGet, "/api/v1/issues/counts?project=Neubau", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CountsResponse](t, w)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, map[string]int{"RANGE": 1, "EMPTY_VALUE": 1, "GROUP_MISSING": 1}, resp.Counts)
}

func TestListIssueTypes(t *testing.T) {
	h := NewServer(seededStore(t), nil).Handler()

	w := do(t, h, http.MethodGet, "/api/v1/issue-types", "")
	require.Equal(t, http.StatusOK, w.Code)
	types := decode[[]IssueTypeResponse](t, w)
	require.Len(t, types, len(validation.IssueTypes()))
	assert.Equal(t, IssueTypeResponse{Code: 1, Name: "DATATYPE"}, types[0])
}

func TestListEntities(t *testing.T) {
	h := NewServer(seededStore(t), nil, WithLogger(quietLogger())).Handler()

	w := do(t, h, http.MethodGet, "/api/v1/entities?file=haus_a.yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[EntityList](t, w)
	require.Len(t, list.Entities, 2)
	assert.Equal(t, "1.1", list.Entities[0].Classification)

	w = do(t, h, http.MethodGet, "/api/v1/entities?file=none.yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entities":[],"limit":100,"offset":0}`, w.Body.String())
}

func TestStoreErrorIsInternal(t *testing.T) {
	store := seededStore(t)
	h := NewServer(store, nil, WithLogger(quietLogger())).Handler()
	require.NoError(t, store.Close())

	w := do(t, h, http.MethodGet, "/api/v1/issues", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "closed")
}

func TestChecks(t *testing.T) {
	t.Run("read-only server has no run routes", func(t *testing.T) {
		h := NewServer(seededStore(t), nil).Handler()
		w := do(t, h, http.MethodPost, "/api/v1/checks", `{"files":["a.yaml"]}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("start, progress and abort", func(t *testing.T) {
		runner := &fakeRunner{}
		h := NewServer(seededStore(t), runner, WithLogger(quietLogger())).Handler()

		w := do(t, h, http.MethodGet, "/api/v1/checks/current", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = do(t, h, http.MethodPost, "/api/v1/checks/current/abort", "")
		assert.Equal(t, http.StatusConflict, w.Code)

		w = do(t, h, http.MethodPost, "/api/v1/checks", `{"files":["haus_a.yaml","haus_b.yaml"],"project":"Neubau"}`)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		assert.Equal(t, "run-1", decode[StartCheckResponse](t, w).ID)
		assert.Equal(t, "/api/v1/checks/current", w.Header().Get("Location"))
		require.Len(t, runner.started, 1)
		assert.Equal(t, []string{"haus_a.yaml", "haus_b.yaml"}, runner.started[0].Files)

		w = do(t, h, http.MethodGet, "/api/v1/checks/current", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Report   checker.Report    `json:"report"`
			Progress progress.Snapshot `json:"progress"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "run-1", body.Report.ID)
		assert.Equal(t, 50, body.Progress.Percent)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

		w = do(t, h, http.MethodPost, "/api/v1/checks/current/abort", "")
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("conflict", func(t *testing.T) {
		runner := &fakeRunner{startErr: checker.ErrRunInProgress}
		h := NewServer(seededStore(t), runner, WithLogger(quietLogger())).Handler()
		w := do(t, h, http.MethodPost, "/api/v1/checks", `{"files":["haus_a.yaml"]}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid export target", func(t *testing.T) {
		runner := &fakeRunner{startErr: checker.RunFailure{Phase: checker.PhaseExport, Err: "parent directory does not exist"}}
		h := NewServer(seededStore(t), runner, WithLogger(quietLogger())).Handler()
		w := do(t, h, http.MethodPost, "/api/v1/checks", `{"files":["haus_a.yaml"]}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "parent directory does not exist")
	})

	t.Run("bad requests", func(t *testing.T) {
		runner := &fakeRunner{}
		h := NewServer(seededStore(t), runner, WithLogger(quietLogger()), WithModelRoot("/srv/models")).Handler()

		for _, body := range []string{`{}`, `{"files":[]}`, `{"files":"a.yaml"}`, `{"files":["../etc/passwd"]}`, `{"files":["/etc/passwd"]}`} {
			w := do(t, h, http.MethodPost, "/api/v1/checks", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
		assert.Empty(t, runner.started)

		w := do(t, h, http.MethodPost, "/api/v1/checks", `{"files":["2024/haus_a.yaml","/srv/models/haus_b.yaml"]}`)
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, []string{"/srv/models/2024/haus_a.yaml", "/srv/models/haus_b.yaml"}, runner.started[0].Files)
	})
}

func TestStartCheck_SymlinksStayInModelRoot(t *testing.T) {
	root := t.TempDir()
	elsewhere := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(elsewhere, "secret.yaml"), []byte("instances: []\n"), 0o600))
	require.NoError(t, os.Symlink(elsewhere, filepath.Join(root, "escape")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "2024"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "2024"), filepath.Join(root, "latest")))

	runner := &fakeRunner{}
	h := NewServer(seededStore(t), runner, WithLogger(quietLogger()), WithModelRoot(root)).Handler()

	for _, body := range []string{`{"files":["escape/secret.yaml"]}`, `{"files":["escape/missing.yaml"]}`} {
		w := do(t, h, http.MethodPost, "/api/v1/checks", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, w.Body.String(), "outside the model directory")
	}
	assert.Empty(t, runner.started)

	w := do(t, h, http.MethodPost, "/api/v1/checks", `{"files":["latest/haus_a.yaml"]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{filepath.Join(root, "latest", "haus_a.yaml")}, runner.started[0].Files)
}

func TestMetricsAndHealth(t *testing.T) {
	store := seededStore(t)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	h := NewServer(store, nil,
		WithLogger(quietLogger()),
		WithMetrics(metrics, registry),
		WithHealth(observability.NewHealthChecker(store.DB(), nil, "test")),
	).Handler()

	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	do(t, h, http.MethodGet, "/api/v1/issues?file=haus_a.yaml", "")
	w = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `path="/api/v1/issues"`)
	assert.NotContains(t, w.Body.String(), "haus_a.yaml")
}

func TestRequestIDHeader(t *testing.T) {
	h := NewServer(seededStore(t), nil, WithLogger(quietLogger())).Handler()
	w := do(t, h, http.MethodGet, "/api/v1/issue-types", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
