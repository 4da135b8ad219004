package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store/memstore"
)

func TestVerify_CountsDanglingReferences(t *testing.T) {
	s := memstore.New()
	s.Seed(canonicalColl, store.Document{"id": "C1", "code": "M01"})
	s.Seed(scheduleColl,
		store.Document{"id": "D1", "machine_id": "C1"},
		store.Document{"id": "D2", "machine_id": "L1"},
		store.Document{"id": "D3", "machine_id": nil},
		store.Document{"id": "D4", "machine_id": ""},
		store.Document{"id": "D5"},
		store.Document{"id": "D6", "machine_id": "X", FlagField: true, FlagRefField: "X"},
		store.Document{"id": "D7", "machine_id": "Y", FlagField: true, FlagRefField: "OLD"},
	)
	s.Seed(planningColl, store.Document{"id": "P1", "machine_id": "GONE"})

	job := machineJob(PolicyReport)
	job.Dependents = append(job.Dependents, Dependent{Collection: planningColl, ForeignKey: "machine_id"})
	r := newTestRunner(s)

	report, err := r.Verify(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 3, report.BrokenRemaining)
	assert.Equal(t, map[string]int{scheduleColl: 2, planningColl: 1}, report.ByCollection)
	assert.Equal(t, 1, report.FlaggedRemaining, "đánh dấu với ref cũ thì vẫn tính là hỏng")
	assert.False(t, report.OK())
	assert.Equal(t, 1+len(job.Dependents), s.Calls(memstore.OpList), "verify không đọc legacy")
	assert.Equal(t, 0, s.Calls(memstore.OpUpdate)+s.Calls(memstore.OpDelete)+s.Calls(memstore.OpCreate))
}

func TestVerify_ReadFailure(t *testing.T) {
	s := memstore.New()
	s.SetFault(func(op memstore.Op, collection, id string) error {
		return errors.New("timeout")
	})
	r := newTestRunner(s)

	_, err := r.Verify(context.Background(), machineJob(PolicyReport))
	assert.ErrorIs(t, err, common.ErrReadSnapshot)
}

func TestVerify_AfterRunIsClean(t *testing.T) {
	s := memstore.New()
	seedScenario(s)
	r := newTestRunner(s)
	job := machineJob(PolicyDelete)

	_, err := r.Run(context.Background(), job, RunOptions{})
	require.NoError(t, err)

	report, err := r.Verify(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, report.OK())

	// Tham chiếu mới tới legacy id do traffic khác tạo sau run thì bị báo hỏng
	s.Seed(scheduleColl, store.Document{"id": "D9", "machine_id": "L2"})
	report, err = r.Verify(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, report.BrokenRemaining)
}

func TestHistory_LastReturnsLatest(t *testing.T) {
	s := memstore.New()
	h := NewHistory(s, "reconcile_runs")
	ctx := context.Background()

	_, err := h.Last(ctx, "machines")
	assert.ErrorIs(t, err, common.ErrNotFound)

	base := mustTime(t, "2026-01-10T10:00:00Z")
	require.NoError(t, h.Save(ctx, &Summary{RunID: "r1", Job: "machines", State: StateDone, FinishedAt: base, Errors: []RecordError{}}))
	require.NoError(t, h.Save(ctx, &Summary{RunID: "r3", Job: "employees", State: StateDone, FinishedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, h.Save(ctx, &Summary{
		RunID: "r2", Job: "machines", State: StateFailed, Error: "boom", FinishedAt: base.Add(time.Hour),
		Errors: []RecordError{{Label: "Machine/L1", Message: "x"}},
	}))

	last, err := h.Last(ctx, "machines")
	require.NoError(t, err)
	assert.Equal(t, "r2", last.RunID)
	assert.Equal(t, StateFailed, last.State)
	assert.Equal(t, "boom", last.Error)
	assert.Equal(t, []RecordError{{Label: "Machine/L1", Message: "x"}}, last.Errors)
	assert.True(t, base.Add(time.Hour).Equal(last.FinishedAt))

	// Bản lưu sau nhưng kết thúc sớm hơn không thay thế run mới nhất
	require.NoError(t, h.Save(ctx, &Summary{RunID: "r0", Job: "machines", State: StateDone, FinishedAt: base.Add(-time.Hour)}))
	last, err = h.Last(ctx, "machines")
	require.NoError(t, err)
	assert.Equal(t, "r2", last.RunID)
	assert.Equal(t, 3, s.Calls(memstore.OpFilter), "mỗi lần Last chỉ một truy vấn có sort/limit")
}
