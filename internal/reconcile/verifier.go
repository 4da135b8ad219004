package reconcile

import (
	"context"
	"time"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// VerifyReport là kết quả kiểm tra toàn vẹn tham chiếu
type VerifyReport struct {
	Job             string         `json:"job"`
	BrokenRemaining int            `json:"brokenRemaining"`
	ByCollection    map[string]int `json:"byCollection"`

	// FlaggedRemaining là số document đã đánh dấu hỏng (reconcile_broken), không tính vào BrokenRemaining
	FlaggedRemaining int       `json:"flaggedRemaining"`
	CheckedAt        time.Time `json:"checkedAt"`

	// Truncated: có collection vượt giới hạn đọc; nếu là canonical thì số hỏng có thể bị đếm dư
	Truncated            bool     `json:"truncated"`
	TruncatedCollections []string `json:"truncatedCollections,omitempty"`
}

// OK kiểm tra không còn tham chiếu hỏng
func (v *VerifyReport) OK() bool {
	return v.BrokenRemaining == 0
}

// countBroken đếm khóa ngoại khác rỗng không nằm trong tập canonical id
func countBroken(job *Job, canonical []store.Document, dependents map[string][]store.Document) *VerifyReport {
	ids := idSet(canonical)
	report := &VerifyReport{
		Job:          job.Name,
		ByCollection: make(map[string]int, len(job.Dependents)),
	}
	for _, dep := range job.Dependents {
		if _, ok := report.ByCollection[dep.Collection]; !ok {
			report.ByCollection[dep.Collection] = 0
		}
		for _, doc := range dependents[dep.Collection] {
			fk := doc.String(dep.ForeignKey)
			if fk == "" || ids[fk] {
				continue
			}
			if isFlagged(doc, fk) {
				report.FlaggedRemaining++
				continue
			}
			report.ByCollection[dep.Collection]++
			report.BrokenRemaining++
		}
	}
	return report
}

// verify đọc lại canonical và dependents rồi đếm tham chiếu hỏng
func (r *Runner) verify(ctx context.Context, job *Job) (*VerifyReport, error) {
	snap, err := r.readSnapshot(ctx, job, false)
	if err != nil {
		return nil, err
	}
	report := countBroken(job, snap.canonical, snap.dependents)
	report.CheckedAt = r.now()
	if len(snap.truncated) > 0 {
		report.Truncated = true
		report.TruncatedCollections = snap.truncated
	}
	return report, nil
}

// Verify chỉ chạy bước đọc và kiểm tra, không ghi gì
func (r *Runner) Verify(ctx context.Context, job *Job) (*VerifyReport, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	report, err := r.verify(ctx, job)
	if err != nil {
		return nil, err
	}
	r.log.WithFields(map[string]interface{}{
		"job":             job.Name,
		"brokenRemaining": report.BrokenRemaining,
		"byCollection":    report.ByCollection,
		"truncated":       report.TruncatedCollections,
	}).Info("Kiểm tra tham chiếu hoàn tất")
	if r.observer != nil {
		r.observer.ObserveVerify(report)
	}
	return report, nil
}
