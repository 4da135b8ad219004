package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

const (
	DefaultReadLimit = 2000
	DefaultBatchSize = 20
)

// Observer nhận kết quả run/verify (metrics)
type Observer interface {
	ObserveRun(s *Summary)
	ObserveVerify(r *VerifyReport)
}

// RunOptions tùy chọn cho một run
type RunOptions struct {
	// DryRun tính toán đầy đủ nhưng không ghi gì vào store (biến thể audit chỉ đọc)
	DryRun bool `json:"dryRun"`
	// Policy ghi đè policy xử lý tham chiếu hỏng cho mọi dependent (rỗng = không ghi đè)
	Policy BrokenPolicy `json:"policy,omitempty" validate:"omitempty,oneof=delete flag report"`
}

// Runner chạy các job hợp nhất trên một store được inject.
// Mỗi job chỉ có tối đa một run cùng lúc trong process.
type Runner struct {
	store     store.Store
	log       *logrus.Entry
	audit     func(logger.AuditAction)
	observer  Observer
	history   *History
	limit     int
	batchSize int
	policy    BrokenPolicy
	now       func() time.Time

	mu      sync.Mutex
	running map[string]State
}

// Option cấu hình Runner
type Option func(*Runner)

// WithLogger đặt logger cho Runner
func WithLogger(entry *logrus.Entry) Option {
	return func(r *Runner) { r.log = entry }
}

// WithAudit đặt hàm ghi audit cho các thao tác ghi
func WithAudit(fn func(logger.AuditAction)) Option {
	return func(r *Runner) { r.audit = fn }
}

// WithObserver đặt observer (metrics)
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithHistory lưu summary mỗi run vào store
func WithHistory(h *History) Option {
	return func(r *Runner) { r.history = h }
}

// WithReadLimit đặt số document tối đa đọc mỗi collection
func WithReadLimit(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithBatchSize đặt số request ghi song song tối đa trong một bước
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithDefaultPolicy đặt policy mặc định cho dependent không khai báo policy
func WithDefaultPolicy(p BrokenPolicy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithClock đặt nguồn thời gian (test)
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner tạo Runner trên store
func NewRunner(s store.Store, opts ...Option) *Runner {
	r := &Runner{
		store:     s,
		audit:     logger.LogAction,
		limit:     DefaultReadLimit,
		batchSize: DefaultBatchSize,
		policy:    PolicyReport,
		now:       time.Now,
		running:   make(map[string]State),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.WithModule("reconcile")
	}
	if r.audit == nil {
		r.audit = func(logger.AuditAction) {}
	}
	return r
}

// DiscardLogger trả về logger không ghi gì (CLI quiet mode, test)
func DiscardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// runContext là trạng thái của một run đang chạy
type runContext struct {
	job     *Job
	opts    RunOptions
	summary *Summary
	tally   *tally
	log     *logrus.Entry
}

// markTruncated chép các collection bị cắt của snapshot vào summary
func (rc *runContext) markTruncated(snap *snapshot) {
	for _, name := range snap.truncated {
		rc.summary.markTruncated(name)
	}
}

// isAbort phân loại lỗi phải dừng cả run: hủy context, lỗi kết nối/transport và xác thực.
// Các lỗi khác của từng bản ghi được gom vào Summary.Errors.
func isAbort(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var e *common.Error
	if errors.As(err, &e) {
		switch e.Code.Code {
		case common.ErrCodeAuthToken.Code, common.ErrCodeDatabaseConnection.Code, common.ErrCodeReconcileRead.Code:
			return true
		}
	}
	return false
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[name]; busy {
		return false
	}
	r.running[name] = StateIdle
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}

// Running trả về trạng thái các run đang chạy theo tên job
func (r *Runner) Running() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]State, len(r.running))
	for name, state := range r.running {
		out[name] = state
	}
	return out
}

// enter chuyển run sang trạng thái mới
func (r *Runner) enter(rc *runContext, state State) {
	rc.summary.State = state
	r.mu.Lock()
	if _, ok := r.running[rc.job.Name]; ok {
		r.running[rc.job.Name] = state
	}
	r.mu.Unlock()
	rc.log.WithField("state", state).Debug("Chuyển trạng thái run")
}

// Run chạy đầy đủ quy trình hợp nhất cho job và trả về Summary.
// Khi run dừng vì lỗi, Summary (state = failed, bộ đếm tới thời điểm dừng) vẫn được
// trả về cùng với lỗi.
func (r *Runner) Run(ctx context.Context, job *Job, opts RunOptions) (*Summary, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParsePolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if !r.acquire(job.Name) {
		return nil, common.Wrap(common.ErrJobRunning, fmt.Errorf("job %q", job.Name))
	}
	defer r.release(job.Name)

	rc := &runContext{
		job:  job,
		opts: opts,
		summary: &Summary{
			RunID:                       uuid.NewString(),
			Job:                         job.Name,
			State:                       StateIdle,
			DryRun:                      opts.DryRun,
			Policy:                      opts.Policy,
			BrokenRemainingByCollection: map[string]int{},
			Errors:                      []RecordError{},
			StartedAt:                   r.now(),
		},
		tally: &tally{},
	}
	rc.log = r.log.WithFields(map[string]interface{}{
		"job":     job.Name,
		"run_id":  rc.summary.RunID,
		"dry_run": opts.DryRun,
	})
	rc.log.Info("Bắt đầu run hợp nhất")

	err := r.execute(ctx, rc)
	rc.tally.apply(rc.summary)

	sum := rc.summary
	sum.FinishedAt = r.now()
	sum.Timestamp = sum.FinishedAt.UTC().Format(time.RFC3339)
	fields := map[string]interface{}{
		"migrated":        sum.Migrated,
		"skipped":         sum.Skipped,
		"updated":         sum.Updated,
		"brokenRemoved":   sum.BrokenRemoved,
		"brokenFlagged":   sum.BrokenFlagged,
		"brokenRemaining": sum.BrokenRemaining,
		"errors":          len(sum.Errors),
		"truncated":       sum.TruncatedCollections,
		"duration":        sum.FinishedAt.Sub(sum.StartedAt).String(),
	}
	if err != nil {
		failedAt := sum.State
		r.enter(rc, StateFailed)
		sum.Error = err.Error()
		rc.log.WithError(err).WithFields(fields).WithField("failed_at", failedAt).Error("Run hợp nhất thất bại")
	} else {
		r.enter(rc, StateDone)
		rc.log.WithFields(fields).Info("Run hợp nhất hoàn tất")
	}

	if r.observer != nil {
		r.observer.ObserveRun(sum)
	}
	if r.history != nil {
		// Lưu lịch sử không ảnh hưởng kết quả run; dùng context riêng để run bị hủy vẫn được ghi lại
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if herr := r.history.Save(saveCtx, sum); herr != nil {
			rc.log.WithError(herr).Warn("Không lưu được lịch sử run")
		}
		cancel()
	}
	return sum, err
}

// execute chạy các bước: reading -> migrating -> rewriting -> verifying
func (r *Runner) execute(ctx context.Context, rc *runContext) error {
	job := rc.job

	r.enter(rc, StateReading)
	snap, err := r.readSnapshot(ctx, job, true)
	if err != nil {
		return err
	}
	rc.markTruncated(snap)
	idx := resolveKeys(snap.canonical, job.Canonical.KeyField)
	rc.summary.DuplicateKeys = idx.duplicates
	if len(idx.duplicates) > 0 {
		rc.log.WithField("duplicates", len(idx.duplicates)).Warn("Có canonical trùng natural key, dùng bản đầu tiên")
	}

	r.enter(rc, StateMigrating)
	mapping, err := r.migrate(ctx, rc, snap, idx)
	if err != nil {
		return err
	}

	r.enter(rc, StateRewriting)
	refs := &references{mapping: mapping, legacy: idSet(snap.legacy)}
	if rc.opts.DryRun {
		refs.canonical = idSet(snap.canonical)
	} else {
		// Đọc lại canonical sau migrate để tập id phản ánh đúng store
		fresh, err := r.readInto(ctx, snap, job.Canonical.Collection, r.readLimit(job))
		if err != nil {
			return err
		}
		refs.canonical = idSet(fresh)
	}
	for _, canonicalID := range mapping {
		refs.canonical[canonicalID] = true
	}
	refs.partial = snap.partialRefs(job)
	rc.markTruncated(snap)
	predicted, err := r.rewrite(ctx, rc, snap, refs)
	if err != nil {
		return err
	}

	r.enter(rc, StateVerifying)
	if rc.opts.DryRun {
		// Chạy thử không ghi gì nên đọc lại store không phản ánh kết quả; dùng số dự kiến
		for name, n := range predicted {
			rc.summary.BrokenRemainingByCollection[name] = n
			rc.summary.BrokenRemaining += n
		}
		return nil
	}
	report, err := r.verify(ctx, job)
	if err != nil {
		return err
	}
	rc.summary.BrokenRemaining = report.BrokenRemaining
	rc.summary.BrokenRemainingByCollection = report.ByCollection
	rc.summary.FlaggedRemaining = report.FlaggedRemaining
	for _, name := range report.TruncatedCollections {
		rc.summary.markTruncated(name)
	}
	if r.observer != nil {
		r.observer.ObserveVerify(report)
	}
	return nil
}
