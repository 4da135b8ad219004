// Package reconciledto chứa request/response của các endpoint hợp nhất
package reconciledto

import "github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"

// RunRequest là body của POST /reconcile/:job/run
type RunRequest struct {
	// DryRun chạy thử, không ghi gì vào store
	DryRun bool `json:"dryRun"`
	// Policy ghi đè policy cho mọi dependent (rỗng = theo định nghĩa job)
	Policy string `json:"policy" validate:"omitempty,oneof=delete flag report"`
}

// DependentInfo mô tả một collection phụ thuộc của job
type DependentInfo struct {
	Collection string `json:"collection"`
	ForeignKey string `json:"foreignKey"`
	Policy     string `json:"policy,omitempty"`
}

// JobInfo là thông tin job trả về ở GET /reconcile/jobs
type JobInfo struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Legacy        string          `json:"legacy"`
	Canonical     string          `json:"canonical"`
	KeyField      string          `json:"keyField"`
	SkipMigration bool            `json:"skipMigration"`
	Dependents    []DependentInfo `json:"dependents"`
	State         string          `json:"state"` // Trạng thái run hiện tại, "idle" nếu không chạy
}

// NewJobInfo dựng JobInfo từ định nghĩa job
func NewJobInfo(job *reconcile.Job, state reconcile.State) JobInfo {
	if state == "" {
		state = reconcile.StateIdle
	}
	info := JobInfo{
		Name:          job.Name,
		Description:   job.Description,
		Legacy:        job.Legacy.Collection,
		Canonical:     job.Canonical.Collection,
		KeyField:      job.Canonical.KeyField,
		SkipMigration: job.SkipMigration,
		Dependents:    make([]DependentInfo, 0, len(job.Dependents)),
		State:         string(state),
	}
	for _, dep := range job.Dependents {
		info.Dependents = append(info.Dependents, DependentInfo{
			Collection: dep.Collection,
			ForeignKey: dep.ForeignKey,
			Policy:     string(dep.Policy),
		})
	}
	return info
}
