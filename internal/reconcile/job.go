// Package reconcile hiện thực quy trình hợp nhất dữ liệu giữa collection cũ (legacy)
// và collection chuẩn (canonical/master), sửa khóa ngoại ở các collection phụ thuộc.
//
// Một run đi qua các bước: đọc snapshot -> resolve natural key -> migrate -> rewrite
// tham chiếu -> verify. Mỗi bước idempotent: run lại sau khi lỗi giữa chừng là an toàn
// vì mọi quyết định đều dựa trên snapshot đọc mới ở đầu run. Store không có transaction
// giữa các document nên không có rollback.
package reconcile

import (
	"fmt"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/global"
)

// BrokenPolicy quyết định xử lý document phụ thuộc có tham chiếu hỏng
type BrokenPolicy string

const (
	// PolicyDelete xóa document có tham chiếu hỏng
	PolicyDelete BrokenPolicy = "delete"
	// PolicyFlag đánh dấu document (reconcile_broken=true) và giữ lại
	PolicyFlag BrokenPolicy = "flag"
	// PolicyReport chỉ đếm và báo cáo, không ghi gì
	PolicyReport BrokenPolicy = "report"
)

// Các field được set khi PolicyFlag đánh dấu document
const (
	FlagField    = "reconcile_broken"
	FlagAtField  = "reconcile_broken_at"
	FlagRefField = "reconcile_broken_ref"
)

// ParsePolicy chuyển string sang BrokenPolicy, rỗng = "" (dùng policy mặc định)
func ParsePolicy(s string) (BrokenPolicy, error) {
	switch p := BrokenPolicy(s); p {
	case "", PolicyDelete, PolicyFlag, PolicyReport:
		return p, nil
	default:
		return "", common.Wrap(common.ErrInvalidInput, fmt.Errorf("policy không hợp lệ: %q (delete, flag, report)", s))
	}
}

// LegacySource mô tả collection cũ
type LegacySource struct {
	Collection string `yaml:"collection" json:"collection" validate:"required,collection_name"`
	KeyField   string `yaml:"keyField" json:"keyField" validate:"required,field_name"` // Natural key (mã máy, mã nhân viên)
}

// CanonicalTarget mô tả collection chuẩn
type CanonicalTarget struct {
	Collection      string `yaml:"collection" json:"collection" validate:"required,collection_name"`
	KeyField        string `yaml:"keyField" json:"keyField" validate:"required,field_name"`
	LegacyRefField  string `yaml:"legacyRefField" json:"legacyRefField" validate:"required,field_name"` // Back-reference về legacy id, set một lần
	SyncStatusField string `yaml:"syncStatusField,omitempty" json:"syncStatusField,omitempty" validate:"field_name"`
	SyncStatusValue string `yaml:"syncStatusValue,omitempty" json:"syncStatusValue,omitempty"`
}

// FieldMapping copy một field legacy sang canonical. To rỗng = giữ nguyên tên.
type FieldMapping struct {
	From string `yaml:"from" json:"from" validate:"required,field_name"`
	To   string `yaml:"to,omitempty" json:"to,omitempty" validate:"field_name"`
}

// Target trả về tên field đích
func (m FieldMapping) Target() string {
	if m.To == "" {
		return m.From
	}
	return m.To
}

// Sequence gom các field đánh số (tarea_1..tarea_6) thành một list có thứ tự
type Sequence struct {
	Prefix string `yaml:"prefix" json:"prefix" validate:"required,field_name"` // Ví dụ "tarea_"
	Max    int    `yaml:"max" json:"max" validate:"gte=1,lte=50"`
	Target string `yaml:"target" json:"target" validate:"required,field_name"` // Field list trên canonical
}

// Dependent mô tả collection giữ khóa ngoại trỏ vào legacy/canonical
type Dependent struct {
	Collection string       `yaml:"collection" json:"collection" validate:"required,collection_name"`
	ForeignKey string       `yaml:"foreignKey" json:"foreignKey" validate:"required,field_name"`
	Policy     BrokenPolicy `yaml:"policy,omitempty" json:"policy,omitempty" validate:"omitempty,oneof=delete flag report"`
}

// Job là định nghĩa một quy trình hợp nhất
type Job struct {
	Name        string                 `yaml:"name" json:"name" validate:"required,max=64"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Legacy      LegacySource           `yaml:"legacy" json:"legacy"`
	Canonical   CanonicalTarget        `yaml:"canonical" json:"canonical"`
	Fields      []FieldMapping         `yaml:"fields,omitempty" json:"fields,omitempty" validate:"dive"`
	Defaults    map[string]interface{} `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Sequences   []Sequence             `yaml:"sequences,omitempty" json:"sequences,omitempty" validate:"dive"`
	Dependents  []Dependent            `yaml:"dependents,omitempty" json:"dependents,omitempty" validate:"dive"`

	// SkipMigration: biến thể audit, không tạo canonical mới, chỉ map/rewrite/đếm
	SkipMigration bool `yaml:"skipMigration,omitempty" json:"skipMigration,omitempty"`
	// ReadLimit ghi đè giới hạn đọc mỗi collection (0 = dùng của Runner)
	ReadLimit int `yaml:"readLimit,omitempty" json:"readLimit,omitempty" validate:"gte=0,lte=100000"`
}

// Validate kiểm tra định nghĩa job
func (j *Job) Validate() error {
	if err := global.GetValidator().Struct(j); err != nil {
		return common.Wrap(common.ErrJobInvalid, fmt.Errorf("job %q: %w", j.Name, err))
	}
	if j.Legacy.Collection == j.Canonical.Collection {
		return common.Wrap(common.ErrJobInvalid, fmt.Errorf("job %q: legacy và canonical trùng collection %s", j.Name, j.Legacy.Collection))
	}
	for _, f := range j.Fields {
		for _, seq := range j.Sequences {
			if seq.Owns(f.From) {
				return common.Wrap(common.ErrJobInvalid, fmt.Errorf("job %q: field %s thuộc sequence %s, không copy riêng", j.Name, f.From, seq.Target))
			}
		}
	}
	seen := make(map[string]bool, len(j.Dependents))
	for _, d := range j.Dependents {
		key := d.Collection + "." + d.ForeignKey
		if seen[key] {
			return common.Wrap(common.ErrJobInvalid, fmt.Errorf("job %q: dependent %s khai báo hai lần", j.Name, key))
		}
		seen[key] = true
		if d.Collection == j.Canonical.Collection || d.Collection == j.Legacy.Collection {
			return common.Wrap(common.ErrJobInvalid, fmt.Errorf("job %q: dependent %s không được là legacy/canonical", j.Name, d.Collection))
		}
	}
	return nil
}

// Collections trả về tên các collection job đọc: legacy, canonical, rồi dependents
func (j *Job) Collections() []string {
	names := []string{j.Legacy.Collection, j.Canonical.Collection}
	for _, d := range j.Dependents {
		names = append(names, d.Collection)
	}
	return names
}
