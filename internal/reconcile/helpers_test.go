package reconcile

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store/memstore"
)

const (
	legacyColl    = "Machine"
	canonicalColl = "MachineMasterDatabase"
	scheduleColl  = "MaintenanceSchedule"
	planningColl  = "ProductionPlanning"
)

// machineJob là job tối giản theo ví dụ máy: natural key "code", khóa ngoại machine_id
func machineJob(policy BrokenPolicy) *Job {
	return &Job{
		Name:   "test-machines",
		Legacy: LegacySource{Collection: legacyColl, KeyField: "code"},
		Canonical: CanonicalTarget{
			Collection:      canonicalColl,
			KeyField:        "code",
			LegacyRefField:  "machine_id_legacy",
			SyncStatusField: "sync_status",
			SyncStatusValue: "synced",
		},
		Fields:   []FieldMapping{{From: "name"}, {From: "code"}},
		Defaults: map[string]interface{}{"state": "operational"},
		Sequences: []Sequence{
			{Prefix: "tarea_", Max: 6, Target: "tareas"},
		},
		Dependents: []Dependent{
			{Collection: scheduleColl, ForeignKey: "machine_id", Policy: policy},
		},
	}
}

// auditRecorder ghi lại các audit action để kiểm tra
type auditRecorder struct {
	mu      sync.Mutex
	actions []logger.AuditAction
}

func (a *auditRecorder) record(action logger.AuditAction) {
	a.mu.Lock()
	a.actions = append(a.actions, action)
	a.mu.Unlock()
}

func (a *auditRecorder) count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, act := range a.actions {
		if act.Action == name {
			n++
		}
	}
	return n
}

func newTestRunner(s store.Store, opts ...Option) *Runner {
	base := []Option{
		WithLogger(DiscardLogger()),
		WithAudit(func(logger.AuditAction) {}),
	}
	return NewRunner(s, append(base, opts...)...)
}

// canonicalByLegacy trả về canonical có back-reference tới legacyID
func canonicalByLegacy(t *testing.T, s *memstore.Store, legacyID string) store.Document {
	t.Helper()
	var found []store.Document
	for _, doc := range s.All(canonicalColl) {
		if doc.String("machine_id_legacy") == legacyID {
			found = append(found, doc)
		}
	}
	require.Len(t, found, 1, "phải có đúng một canonical cho legacy %s", legacyID)
	return found[0]
}

// countByKey đếm canonical theo natural key đã chuẩn hóa
func countByKey(s *memstore.Store, key string) int {
	n := 0
	for _, doc := range s.All(canonicalColl) {
		if NormalizeKey(doc["code"]) == key {
			n++
		}
	}
	return n
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}
