package global

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedThing struct {
	Collection string `validate:"required,collection_name"`
	Field      string `validate:"field_name"`
	Note       string `validate:"no_xss"`
}

func TestCustomValidators(t *testing.T) {
	v := GetValidator()

	assert.NoError(t, v.Struct(namedThing{Collection: "MachineMasterDatabase", Field: "machine_id"}))
	assert.NoError(t, v.Struct(namedThing{Collection: "reconcile_runs"}), "field rỗng là optional")

	assert.Error(t, v.Struct(namedThing{Collection: "1Machine"}))
	assert.Error(t, v.Struct(namedThing{Collection: "Machine-old"}))
	assert.Error(t, v.Struct(namedThing{Collection: "Machine", Field: "$where"}))
	assert.Error(t, v.Struct(namedThing{Collection: "Machine", Note: "<script>alert(1)</script>"}))
}

func TestGetValidator_Singleton(t *testing.T) {
	assert.Same(t, GetValidator(), GetValidator())
}
