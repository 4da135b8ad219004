package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexSpecName(t *testing.T) {
	spec := IndexSpec{Collection: "MachineMasterDatabase", Fields: []string{"codigo"}}
	assert.Equal(t, "machinemasterdatabase_codigo", spec.Name())

	compound := IndexSpec{Collection: "reconcile_runs", Fields: []string{"job", "finishedAtMs"}}
	assert.Equal(t, "reconcile_runs_job_finishedatms", compound.Name())
}

func TestIndexSpecModel(t *testing.T) {
	m := IndexSpec{Collection: "Absence", Fields: []string{"employee_id", "fecha"}, Sparse: true}.model()
	assert.Equal(t, bson.D{{Key: "employee_id", Value: 1}, {Key: "fecha", Value: 1}}, m.Keys)
	assert.Equal(t, "absence_employee_id_fecha", *m.Options.Name)
	assert.True(t, *m.Options.Sparse)
}

func TestDedupeIndexSpecs(t *testing.T) {
	specs := DedupeIndexSpecs([]IndexSpec{
		{Collection: "MaintenanceSchedule", Fields: []string{"machine_id"}},
		{Collection: "Absence", Fields: []string{"employee_id"}},
		{Collection: "MaintenanceSchedule", Fields: []string{"machine_id"}},
		{Collection: "", Fields: []string{"x"}},
		{Collection: "Empty"},
	})
	if assert.Len(t, specs, 2) {
		assert.Equal(t, "Absence", specs[0].Collection)
		assert.Equal(t, "MaintenanceSchedule", specs[1].Collection)
	}
}

func TestIsIndexExistsError(t *testing.T) {
	assert.False(t, isIndexExistsError(nil))
	assert.True(t, isIndexExistsError(errors.New("Index with name: x already exists with different options")))
	assert.False(t, isIndexExistsError(errors.New("connection refused")))
}
