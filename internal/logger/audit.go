package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditAction mô tả một thao tác ghi của run hợp nhất lên collection bên ngoài
type AuditAction struct {
	Action     string                 `json:"action"`      // create_canonical, rewrite_ref, delete_broken, flag_broken
	Job        string                 `json:"job"`         // Tên job hợp nhất
	RunID      string                 `json:"run_id"`      // ID của run
	Collection string                 `json:"collection"`  // Collection bị ảnh hưởng
	ResourceID string                 `json:"resource_id"` // ID document bị ảnh hưởng
	Details    map[string]interface{} `json:"details"`     // Chi tiết bổ sung
	Timestamp  time.Time              `json:"timestamp"`
}

// LogAction ghi một hành động audit
func LogAction(a AuditAction) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	GetAuditLogger().WithFields(logrus.Fields{
		"action":      a.Action,
		"job":         a.Job,
		"run_id":      a.RunID,
		"collection":  a.Collection,
		"resource_id": a.ResourceID,
		"details":     a.Details,
		"timestamp":   a.Timestamp,
	}).Info("Audit log")
}
