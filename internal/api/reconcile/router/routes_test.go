package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apirouter "github.com/mloperacde/cdeapp-planning-sub010/internal/api/router"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/global"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store/memstore"
)

const testToken = "secret-token"

func TestMain(m *testing.M) {
	_ = logger.Init(&logger.LogConfig{Level: "error", Format: "text", Output: "stdout"})
	global.InitValidator()
	code := m.Run()
	logger.Shutdown()
	os.Exit(code)
}

type envelope struct {
	Code    interface{}     `json:"code"`
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

func seedMachines(s *memstore.Store) {
	s.Seed("Machine",
		store.Document{"id": "L1", "codigo": "M01", "nombre": "Prensa"},
		store.Document{"id": "L2", "codigo": "M02", "nombre": "Torno"},
	)
	s.Seed("MachineMasterDatabase", store.Document{"id": "C1", "codigo": "M02"})
	s.Seed("MaintenanceSchedule",
		store.Document{"id": "S1", "machine_id": "L1"},
		store.Document{"id": "S2", "machine_id": "L2"},
		store.Document{"id": "S3", "machine_id": "GONE"},
	)
}

func newTestApp(t *testing.T, s *memstore.Store) *fiber.App {
	t.Helper()
	catalog, err := reconcile.NewCatalog("")
	require.NoError(t, err)
	history := reconcile.NewHistory(s, "reconcile_runs")
	runner := reconcile.NewRunner(s,
		reconcile.WithLogger(reconcile.DiscardLogger()),
		reconcile.WithAudit(func(logger.AuditAction) {}),
		reconcile.WithHistory(history),
	)

	app := fiber.New()
	require.NoError(t, apirouter.SetupRoutes(app, Register(Deps{
		Runner:     runner,
		Catalog:    catalog,
		History:    history,
		Store:      s,
		AdminToken: testToken,
	})))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string, authorized bool) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func TestAdminToken(t *testing.T) {
	app := newTestApp(t, memstore.New())

	status, env := doRequest(t, app, http.MethodGet, "/api/v1/reconcile/jobs", "", false)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, common.ErrCodeAuthToken.Code, env.Code)
	assert.Equal(t, "error", env.Status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconcile/jobs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListJobs(t *testing.T) {
	app := newTestApp(t, memstore.New())

	status, env := doRequest(t, app, http.MethodGet, "/api/v1/reconcile/jobs", "", true)
	require.Equal(t, http.StatusOK, status)

	var jobs []struct {
		Name       string `json:"name"`
		State      string `json:"state"`
		Dependents []struct {
			Collection string `json:"collection"`
		} `json:"dependents"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &jobs))
	require.Len(t, jobs, 3)
	assert.Equal(t, reconcile.JobEmployees, jobs[0].Name)
	assert.Equal(t, reconcile.JobLockerAssignments, jobs[1].Name)
	assert.Equal(t, reconcile.JobMachines, jobs[2].Name)
	assert.Equal(t, "idle", jobs[2].State)
	assert.Len(t, jobs[2].Dependents, 3)
}

func TestRunJob(t *testing.T) {
	s := memstore.New()
	seedMachines(s)
	app := newTestApp(t, s)

	status, env := doRequest(t, app, http.MethodPost, "/api/v1/reconcile/machines/run", `{"dryRun": false}`, true)
	require.Equal(t, http.StatusOK, status)

	var sum reconcile.Summary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, reconcile.StateDone, sum.State)
	assert.Equal(t, 1, sum.Migrated)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 2, sum.Updated)
	assert.Equal(t, 1, sum.BrokenReported)
	assert.Equal(t, 1, sum.BrokenRemaining)
	assert.Equal(t, 2, s.Count("MachineMasterDatabase"))

	// run gần nhất được lưu
	status, env = doRequest(t, app, http.MethodGet, "/api/v1/reconcile/machines/last", "", true)
	require.Equal(t, http.StatusOK, status)
	var last reconcile.Summary
	require.NoError(t, json.Unmarshal(env.Data, &last))
	assert.Equal(t, sum.RunID, last.RunID)
}

func TestRunJob_DeletePolicyEmptyBody(t *testing.T) {
	s := memstore.New()
	seedMachines(s)
	app := newTestApp(t, s)

	status, env := doRequest(t, app, http.MethodPost, "/api/v1/reconcile/machines/run", `{"policy": "delete"}`, true)
	require.Equal(t, http.StatusOK, status)
	var sum reconcile.Summary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, 1, sum.BrokenRemoved)
	assert.Equal(t, 0, sum.BrokenRemaining)
	_, exists := s.Get("MaintenanceSchedule", "S3")
	assert.False(t, exists)

	// body rỗng: chạy lại với policy mặc định, không còn gì để sửa
	status, env = doRequest(t, app, http.MethodPost, "/api/v1/reconcile/machines/run", "", true)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, 0, sum.Migrated)
	assert.Equal(t, 0, sum.Updated)
}

func TestRunJob_BadRequests(t *testing.T) {
	app := newTestApp(t, memstore.New())

	status, env := doRequest(t, app, http.MethodPost, "/api/v1/reconcile/unknown/run", `{}`, true)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, common.ErrCodeReconcileJob.Code, env.Code)

	status, env = doRequest(t, app, http.MethodPost, "/api/v1/reconcile/machines/run", `{"policy": "purge"}`, true)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, common.ErrCodeValidationInput.Code, env.Code)

	status, env = doRequest(t, app, http.MethodPost, "/api/v1/reconcile/machines/run", `{"dryRun": "yes"}`, true)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, common.ErrCodeValidationFormat.Code, env.Code)
}

func TestRunJob_AbortReturnsSummary(t *testing.T) {
	s := memstore.New()
	seedMachines(s)
	s.SetFault(func(op memstore.Op, collection, id string) error {
		if op == memstore.OpList && collection == "MaintenanceSchedule" {
			return errors.New("connection reset")
		}
		return nil
	})
	app := newTestApp(t, s)

	status, env := doRequest(t, app, http.MethodPost, "/api/v1/reconcile/machines/run", `{}`, true)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, common.ErrCodeReconcileRead.Code, env.Code)

	var sum reconcile.Summary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, reconcile.StateFailed, sum.State)
	assert.Equal(t, 0, sum.Migrated)
	assert.Equal(t, 1, s.Count("MachineMasterDatabase"))
}

func TestVerifyJob(t *testing.T) {
	s := memstore.New()
	seedMachines(s)
	app := newTestApp(t, s)

	status, env := doRequest(t, app, http.MethodGet, "/api/v1/reconcile/machines/verify", "", true)
	require.Equal(t, http.StatusOK, status)
	var report reconcile.VerifyReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 3, report.BrokenRemaining)
	assert.Equal(t, 3, report.ByCollection["MaintenanceSchedule"])
	assert.Equal(t, 0, s.Calls(memstore.OpUpdate))
}

func TestLastRun_NotFound(t *testing.T) {
	app := newTestApp(t, memstore.New())

	status, env := doRequest(t, app, http.MethodGet, "/api/v1/reconcile/machines/last", "", true)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, common.ErrCodeDatabaseQuery.Code, env.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, memstore.New())

	status, env := doRequest(t, app, http.MethodGet, "/api/v1/system/health", "", false)
	assert.Equal(t, http.StatusOK, status)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "healthy", data["status"])
}
