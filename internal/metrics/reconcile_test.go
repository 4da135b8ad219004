package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"
)

func TestObserveRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewReconcileMetrics(registry)
	require.NoError(t, err)

	start := time.Now()
	m.ObserveRun(&reconcile.Summary{
		Job: "machines", State: reconcile.StateDone,
		Migrated: 2, Updated: 3, BrokenRemoved: 1,
		Errors:        []reconcile.RecordError{{Label: "Machine/L1", Message: "x"}},
		DuplicateKeys: []reconcile.DuplicateKey{{Key: "m01"}},
		StartedAt:     start, FinishedAt: start.Add(time.Second),
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.runsTotal.WithLabelValues("machines", "done", "false")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.recordsTotal.WithLabelValues("machines", "migrated")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.recordsTotal.WithLabelValues("machines", "updated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordsTotal.WithLabelValues("machines", "broken_removed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordErrors.WithLabelValues("machines")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.duplicateKeys.WithLabelValues("machines")))
}

func TestObserveRun_DryRunSkipsRecordCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewReconcileMetrics(registry)
	require.NoError(t, err)

	m.ObserveRun(&reconcile.Summary{Job: "machines", State: reconcile.StateDone, DryRun: true, Migrated: 5})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.runsTotal.WithLabelValues("machines", "done", "true")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.recordsTotal))
}

func TestObserveVerify(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewReconcileMetrics(registry)
	require.NoError(t, err)

	m.ObserveVerify(&reconcile.VerifyReport{
		Job:              "employees",
		ByCollection:     map[string]int{"Absence": 2, "LockerAssignment": 0},
		FlaggedRemaining: 4,
		CheckedAt:        time.Unix(1700000000, 0),
	})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.brokenRemaining.WithLabelValues("employees", "Absence")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.brokenRemaining.WithLabelValues("employees", "LockerAssignment")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.flaggedRemaining.WithLabelValues("employees")))
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(m.lastVerified.WithLabelValues("employees")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	registry := NewRegistry()
	m, err := NewReconcileMetrics(registry)
	require.NoError(t, err)
	m.ObserveRun(&reconcile.Summary{Job: "machines", State: reconcile.StateFailed})

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `reconcile_runs_total{dry_run="false",job="machines",state="failed"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewReconcileMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewReconcileMetrics(registry)
	require.NoError(t, err)
	_, err = NewReconcileMetrics(registry)
	assert.Error(t, err)
}
