package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"
)

// AuditWorker định kỳ kiểm tra tham chiếu của mọi job trong catalog.
// Chỉ đọc và ghi log/metrics (qua observer của runner), không tự sửa dữ liệu.
type AuditWorker struct {
	runner   *reconcile.Runner
	catalog  *reconcile.Catalog
	interval time.Duration // Khoảng thời gian giữa các lần chạy
	log      *logrus.Entry
}

// NewAuditWorker tạo AuditWorker. interval < 1 phút được nâng lên 1 phút.
func NewAuditWorker(runner *reconcile.Runner, catalog *reconcile.Catalog, interval time.Duration) *AuditWorker {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &AuditWorker{
		runner:   runner,
		catalog:  catalog,
		interval: interval,
		log:      logger.WithModule("audit_worker"),
	}
}

// WithLogger thay logger (dùng trong test)
func (w *AuditWorker) WithLogger(entry *logrus.Entry) *AuditWorker {
	w.log = entry
	return w
}

// Start chạy vòng lặp đến khi ctx bị hủy
func (w *AuditWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("🔎 [AUDIT] Starting reference audit worker...")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🔎 [AUDIT] Reference audit worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce kiểm tra tất cả job một lần, trả về report của các job kiểm tra được.
// Panic hoặc lỗi ở một job không chặn các job còn lại.
func (w *AuditWorker) RunOnce(ctx context.Context) map[string]*reconcile.VerifyReport {
	reports := make(map[string]*reconcile.VerifyReport)
	for _, name := range w.catalog.Names() {
		if ctx.Err() != nil {
			break
		}
		job, ok := w.catalog.Get(name)
		if !ok {
			continue
		}
		if report := w.verifyJob(ctx, job); report != nil {
			reports[name] = report
		}
	}
	return reports
}

func (w *AuditWorker) verifyJob(ctx context.Context, job *reconcile.Job) (report *reconcile.VerifyReport) {
	log := w.log.WithField("job", job.Name)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("🔎 [AUDIT] Panic khi kiểm tra tham chiếu, sẽ thử lại ở lần chạy tiếp theo")
			report = nil
		}
	}()

	report, err := w.runner.Verify(ctx, job)
	if err != nil {
		log.WithError(err).Warn("🔎 [AUDIT] Kiểm tra tham chiếu thất bại")
		return nil
	}

	fields := logrus.Fields{
		"brokenRemaining":  report.BrokenRemaining,
		"flaggedRemaining": report.FlaggedRemaining,
	}
	if report.Truncated {
		fields["truncated"] = report.TruncatedCollections
	}
	if report.OK() {
		log.WithFields(fields).Debug("🔎 [AUDIT] Không có tham chiếu hỏng")
	} else {
		log.WithFields(fields).WithField("byCollection", report.ByCollection).Warn("🔎 [AUDIT] Còn tham chiếu hỏng")
	}
	return report
}
