package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry[int]()

	isNew, err := r.Register("a", 1)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = r.Register("a", 2)
	require.NoError(t, err)
	assert.False(t, isNew, "ghi đè phải trả về isNew=false")

	v, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, err = r.Register("", 3)
	assert.ErrorIs(t, err, common.ErrRequiredField)
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry[string]()
	_, _ = r.Register("machines", "m")
	_, _ = r.Register("employees", "e")
	_, _ = r.Register("locker-assignments", "l")

	assert.Equal(t, []string{"employees", "locker-assignments", "machines"}, r.Names())
	assert.Equal(t, 3, r.Len())

	_, ok := r.Get("unknown")
	assert.False(t, ok)
}
