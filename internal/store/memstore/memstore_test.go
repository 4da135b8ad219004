package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.Create(ctx, "Machine", store.Document{"id": "ignored", "codigo": "M01"})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", created.ID(), "id do store cấp")
	assert.Equal(t, 1, s.Count("Machine"))

	updated, err := s.Update(ctx, "Machine", created.ID(), store.Document{"nombre": "Torno"})
	require.NoError(t, err)
	assert.Equal(t, "M01", updated.String("codigo"))
	assert.Equal(t, "Torno", updated.String("nombre"))

	found, err := s.Filter(ctx, "Machine", store.Predicate{"codigo": "M01"}, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, s.Delete(ctx, "Machine", created.ID()))
	assert.Equal(t, 0, s.Count("Machine"))

	_, err = s.Update(ctx, "Machine", created.ID(), store.Document{"x": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "Machine", created.ID()), store.ErrNotFound)
}

func TestStore_ListSortAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("Employee",
		store.Document{"id": "E2", "codigo_empleado": "002"},
		store.Document{"id": "E1", "codigo_empleado": "001"},
		store.Document{"id": "E3", "codigo_empleado": "003"},
	)

	all, err := s.List(ctx, "Employee", store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "E2", all[0].ID(), "mặc định giữ thứ tự chèn")

	sorted, err := s.List(ctx, "Employee", store.ListOptions{Sort: "-codigo_empleado", Limit: 2})
	require.NoError(t, err)
	require.Len(t, sorted, 2)
	assert.Equal(t, "E3", sorted[0].ID())
	assert.Equal(t, "E2", sorted[1].ID())

	empty, err := s.List(ctx, "Unknown", store.ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_FilterSortAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("reconcile_runs",
		store.Document{"id": "R1", "job": "machines", "finishedAtMs": int64(9000)},
		store.Document{"id": "R2", "job": "machines", "finishedAtMs": int64(12000)},
		store.Document{"id": "R3", "job": "employees", "finishedAtMs": int64(20000)},
		store.Document{"id": "R4", "job": "machines", "finishedAtMs": int64(11000)},
	)

	latest, err := s.Filter(ctx, "reconcile_runs", store.Predicate{"job": "machines"},
		store.ListOptions{Sort: "-finishedAtMs", Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "R2", latest[0].ID(), "so sánh theo số, không theo chuỗi")
}

func TestStore_ReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("Machine", store.Document{"id": "L1", "codigo": "M01"})

	docs, err := s.List(ctx, "Machine", store.ListOptions{})
	require.NoError(t, err)
	docs[0]["codigo"] = "changed"

	got, ok := s.Get("Machine", "L1")
	require.True(t, ok)
	assert.Equal(t, "M01", got.String("codigo"))
}

func TestStore_FaultInjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("Machine", store.Document{"id": "L1"})
	boom := errors.New("boom")
	s.SetFault(func(op Op, collection, id string) error {
		if op == OpDelete && id == "L1" {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, s.Delete(ctx, "Machine", "L1"), boom)
	assert.Equal(t, 1, s.Count("Machine"))
	assert.Equal(t, 1, s.Calls(OpDelete))

	s.SetFault(nil)
	assert.NoError(t, s.Delete(ctx, "Machine", "L1"))
}
