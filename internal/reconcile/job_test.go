package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
)

func TestBuiltinJobs_Valid(t *testing.T) {
	names := map[string]bool{}
	for _, job := range BuiltinJobs() {
		assert.NoError(t, job.Validate(), job.Name)
		names[job.Name] = true
	}
	assert.True(t, names[JobMachines])
	assert.True(t, names[JobEmployees])
	assert.True(t, names[JobLockerAssignments])
}

func TestBuiltinJobs_FreshCopies(t *testing.T) {
	a := BuiltinJobs()[0]
	a.Dependents[0].Policy = PolicyDelete
	b := BuiltinJobs()[0]
	assert.Empty(t, b.Dependents[0].Policy)
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(j *Job)
	}{
		{"thiếu tên", func(j *Job) { j.Name = "" }},
		{"collection sai định dạng", func(j *Job) { j.Legacy.Collection = "Machine old" }},
		{"field có $", func(j *Job) { j.Dependents[0].ForeignKey = "$machine" }},
		{"policy lạ", func(j *Job) { j.Dependents[0].Policy = "purge" }},
		{"legacy trùng canonical", func(j *Job) { j.Canonical.Collection = j.Legacy.Collection }},
		{"dependent là canonical", func(j *Job) { j.Dependents[0].Collection = canonicalColl }},
		{"dependent lặp", func(j *Job) { j.Dependents = append(j.Dependents, j.Dependents[0]) }},
		{"sequence max 0", func(j *Job) { j.Sequences[0].Max = 0 }},
		{"copy riêng field đánh số", func(j *Job) { j.Fields = append(j.Fields, FieldMapping{From: "tarea_2"}) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := machineJob(PolicyReport)
			tc.mutate(job)
			err := job.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrJobInvalid)
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"", "delete", "flag", "report"} {
		p, err := ParsePolicy(s)
		assert.NoError(t, err)
		assert.Equal(t, BrokenPolicy(s), p)
	}
	_, err := ParsePolicy("DELETE")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

const jobsYAML = `
jobs:
  - name: machines
    description: override
    legacy: {collection: Machine, keyField: codigo}
    canonical:
      collection: MachineMasterDatabase
      keyField: codigo
      legacyRefField: machine_id_legacy
    fields:
      - from: nombre
      - from: orden
        to: orden_visualizacion
    defaults:
      estado: Disponible
    sequences:
      - {prefix: tarea_, max: 6, target: tareas}
    dependents:
      - {collection: MachineAssignment, foreignKey: machine_id, policy: flag}
  - name: suppliers
    legacy: {collection: Supplier, keyField: cif}
    canonical: {collection: SupplierMaster, keyField: cif, legacyRefField: supplier_id_legacy}
    skipMigration: true
    readLimit: 500
    dependents:
      - {collection: PurchaseOrder, foreignKey: supplier_id}
`

func TestParseJobs(t *testing.T) {
	jobs, err := ParseJobs([]byte(jobsYAML))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	m := jobs[0]
	assert.Equal(t, "machines", m.Name)
	assert.Equal(t, "orden_visualizacion", m.Fields[1].Target())
	assert.Equal(t, "nombre", m.Fields[0].Target())
	assert.Equal(t, "Disponible", m.Defaults["estado"])
	assert.Equal(t, Sequence{Prefix: "tarea_", Max: 6, Target: "tareas"}, m.Sequences[0])
	assert.Equal(t, PolicyFlag, m.Dependents[0].Policy)

	s := jobs[1]
	assert.True(t, s.SkipMigration)
	assert.Equal(t, 500, s.ReadLimit)
}

func TestParseJobs_Invalid(t *testing.T) {
	_, err := ParseJobs([]byte("jobs: [ {name: x"))
	assert.ErrorIs(t, err, common.ErrJobInvalid)

	_, err = ParseJobs([]byte(`
jobs:
  - name: broken
    legacy: {collection: A, keyField: k}
    canonical: {collection: B, keyField: k}
`))
	assert.ErrorIs(t, err, common.ErrJobInvalid, "thiếu legacyRefField")

	dup := `
jobs:
  - {name: a, legacy: {collection: A, keyField: k}, canonical: {collection: B, keyField: k, legacyRefField: r}}
  - {name: a, legacy: {collection: A, keyField: k}, canonical: {collection: B, keyField: k, legacyRefField: r}}
`
	_, err = ParseJobs([]byte(dup))
	assert.ErrorIs(t, err, common.ErrJobInvalid)
}

func TestNewCatalog_FileOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(jobsYAML), 0o600))

	catalog, err := NewCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, []string{JobEmployees, JobLockerAssignments, JobMachines, "suppliers"}, catalog.Names())
	job, err := LookupJob(catalog, JobMachines)
	require.NoError(t, err)
	assert.Equal(t, "override", job.Description)

	_, err = LookupJob(catalog, "nope")
	assert.ErrorIs(t, err, common.ErrJobNotFound)
}

func TestNewCatalog_BuiltinOnly(t *testing.T) {
	catalog, err := NewCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.Len())

	_, err = NewCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
