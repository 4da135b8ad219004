package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

func TestSequenceFold(t *testing.T) {
	seq := Sequence{Prefix: "subtarea_", Max: 8, Target: "subtareas"}
	doc := store.Document{
		"subtarea_1": "Limpiar",
		"subtarea_2": "",
		"subtarea_3": nil,
		"subtarea_4": "Engrasar",
		"subtarea_8": "Revisar",
		"subtarea_9": "fuera de rango",
	}

	assert.Equal(t, []interface{}{"Limpiar", "Engrasar", "Revisar"}, seq.Fold(doc))
	assert.Equal(t, []interface{}{}, seq.Fold(store.Document{}))
}

func TestSequenceOwns(t *testing.T) {
	seq := Sequence{Prefix: "maquina_", Max: 10, Target: "maquinas"}

	assert.True(t, seq.Owns("maquina_1"))
	assert.True(t, seq.Owns("maquina_10"))
	assert.False(t, seq.Owns("maquina_11"))
	assert.False(t, seq.Owns("maquina_0"))
	assert.False(t, seq.Owns("maquina_01"))
	assert.False(t, seq.Owns("maquina_x"))
	assert.False(t, seq.Owns("maquinas"))
}

func TestBuildPayload(t *testing.T) {
	job := machineJob(PolicyReport)
	legacy := store.Document{
		"id":      "L1",
		"code":    "  M01 ",
		"name":    "Torno",
		"tarea_1": "Inspección",
		"tarea_3": "Calibración",
		"ignored": "no se copia",
	}

	payload := BuildPayload(job, legacy)

	assert.Equal(t, store.Document{
		"code":              "M01",
		"name":              "Torno",
		"tareas":            []interface{}{"Inspección", "Calibración"},
		"state":             "operational",
		"machine_id_legacy": "L1",
		"sync_status":       "synced",
	}, payload)
}

func TestBuildPayload_DefaultDoesNotOverrideValue(t *testing.T) {
	job := machineJob(PolicyReport)
	job.Fields = append(job.Fields, FieldMapping{From: "estado", To: "state"})

	payload := BuildPayload(job, store.Document{"id": "L1", "code": "M01", "estado": "Averiada"})
	assert.Equal(t, "Averiada", payload["state"])

	payload = BuildPayload(job, store.Document{"id": "L2", "code": "M02", "estado": " "})
	assert.Equal(t, "operational", payload["state"], "giá trị rỗng được thay bằng mặc định")
}

func TestResolveKeys_FirstWins(t *testing.T) {
	idx := resolveKeys([]store.Document{
		{"id": "C1", "code": "M01"},
		{"id": "C2", "code": " m01"},
		{"id": "C3", "code": "M01 "},
		{"id": "C4", "code": ""},
		{"id": "C5", "code": "M02"},
	}, "code")

	doc, ok := idx.lookup("m01")
	assert.True(t, ok)
	assert.Equal(t, "C1", doc.ID())
	assert.Equal(t, []DuplicateKey{{Key: "m01", WinnerID: "C1", Shadowed: []string{"C2", "C3"}}}, idx.duplicates)

	_, ok = idx.lookup("")
	assert.False(t, ok)
}

func TestSeedMapping(t *testing.T) {
	m := seedMapping([]store.Document{
		{"id": "C1", "ref": "L1"},
		{"id": "C2", "ref": "L1"},
		{"id": "C3"},
	}, "ref")

	assert.Equal(t, Mapping{"L1": "C1"}, m)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "emp-007", NormalizeKey("  EMP-007 "))
	assert.Equal(t, "42", NormalizeKey(42))
	assert.Equal(t, "", NormalizeKey(nil))
}
