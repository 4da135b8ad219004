// Package metrics cung cấp Prometheus metrics cho các run hợp nhất
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"
)

// ReconcileMetrics chứa metrics của run và verify, theo job
type ReconcileMetrics struct {
	registry *prometheus.Registry

	// Run metrics
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	recordsTotal  *prometheus.CounterVec
	recordErrors  *prometheus.CounterVec
	duplicateKeys *prometheus.GaugeVec

	// Verify metrics
	brokenRemaining  *prometheus.GaugeVec
	flaggedRemaining *prometheus.GaugeVec
	lastVerified     *prometheus.GaugeVec
}

var _ reconcile.Observer = (*ReconcileMetrics)(nil)

// NewReconcileMetrics tạo và đăng ký metrics vào registry
func NewReconcileMetrics(registry *prometheus.Registry) (*ReconcileMetrics, error) {
	m := &ReconcileMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewRegistry tạo registry kèm Go runtime và process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler trả về http.Handler phục vụ /metrics của registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func (m *ReconcileMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Tổng số run hợp nhất theo kết quả",
		},
		[]string{"job", "state", "dry_run"}, // state: done, failed
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reconcile_run_duration_seconds",
			Help: "Thời gian chạy một run hợp nhất",
			// 0.1s .. ~400s: từ collection nhỏ tới snapshot 2000 document mỗi collection
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 13),
		},
		[]string{"job"},
	)

	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_records_total",
			Help: "Số bản ghi được xử lý theo loại kết quả",
		},
		[]string{"job", "outcome"}, // migrated, skipped, updated, broken_removed, broken_flagged, broken_reported, unresolved
	)

	m.recordErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_record_errors_total",
			Help: "Số lỗi từng bản ghi (run vẫn tiếp tục)",
		},
		[]string{"job"},
	)

	m.duplicateKeys = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reconcile_duplicate_keys",
			Help: "Số natural key có nhiều canonical ở run gần nhất",
		},
		[]string{"job"},
	)

	m.brokenRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reconcile_broken_remaining",
			Help: "Số tham chiếu hỏng còn lại ở lần kiểm tra gần nhất",
		},
		[]string{"job", "collection"},
	)

	m.flaggedRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reconcile_flagged_remaining",
			Help: "Số document đã đánh dấu hỏng ở lần kiểm tra gần nhất",
		},
		[]string{"job"},
	)

	m.lastVerified = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reconcile_last_verified_timestamp_seconds",
			Help: "Thời điểm kiểm tra tham chiếu gần nhất (unix)",
		},
		[]string{"job"},
	)
}

// Describe implements the Collector interface
func (m *ReconcileMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.recordsTotal.Describe(ch)
	m.recordErrors.Describe(ch)
	m.duplicateKeys.Describe(ch)
	m.brokenRemaining.Describe(ch)
	m.flaggedRemaining.Describe(ch)
	m.lastVerified.Describe(ch)
}

// Collect implements the Collector interface
func (m *ReconcileMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.recordsTotal.Collect(ch)
	m.recordErrors.Collect(ch)
	m.duplicateKeys.Collect(ch)
	m.brokenRemaining.Collect(ch)
	m.flaggedRemaining.Collect(ch)
	m.lastVerified.Collect(ch)
}

// ObserveRun ghi nhận kết quả một run
func (m *ReconcileMetrics) ObserveRun(s *reconcile.Summary) {
	dryRun := "false"
	if s.DryRun {
		dryRun = "true"
	}
	m.runsTotal.WithLabelValues(s.Job, string(s.State), dryRun).Inc()
	m.runDuration.WithLabelValues(s.Job).Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())

	if s.DryRun {
		// Chạy thử không ghi gì, không cộng vào bộ đếm bản ghi
		return
	}
	outcomes := map[string]int{
		"migrated":        s.Migrated,
		"skipped":         s.Skipped,
		"updated":         s.Updated,
		"broken_removed":  s.BrokenRemoved,
		"broken_flagged":  s.BrokenFlagged,
		"broken_reported": s.BrokenReported,
		"unresolved":      s.Unresolved,
	}
	for outcome, n := range outcomes {
		if n > 0 {
			m.recordsTotal.WithLabelValues(s.Job, outcome).Add(float64(n))
		}
	}
	if len(s.Errors) > 0 {
		m.recordErrors.WithLabelValues(s.Job).Add(float64(len(s.Errors)))
	}
	m.duplicateKeys.WithLabelValues(s.Job).Set(float64(len(s.DuplicateKeys)))
}

// ObserveVerify ghi nhận kết quả kiểm tra tham chiếu
func (m *ReconcileMetrics) ObserveVerify(r *reconcile.VerifyReport) {
	for collection, n := range r.ByCollection {
		m.brokenRemaining.WithLabelValues(r.Job, collection).Set(float64(n))
	}
	m.flaggedRemaining.WithLabelValues(r.Job).Set(float64(r.FlaggedRemaining))
	m.lastVerified.WithLabelValues(r.Job).Set(float64(r.CheckedAt.Unix()))
}
