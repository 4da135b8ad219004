package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocument_Accessors(t *testing.T) {
	d := Document{"id": "L1", "code": "M01", "count": 3, "empty": nil}

	assert.Equal(t, "L1", d.ID())
	assert.Equal(t, "M01", d.String("code"))
	assert.Equal(t, "3", d.String("count"))
	assert.Equal(t, "", d.String("missing"))
	assert.True(t, d.Has("code"))
	assert.False(t, d.Has("empty"))

	c := d.Clone()
	c["code"] = "M02"
	assert.Equal(t, "M01", d.String("code"), "Clone không được chia sẻ map gốc")
}

func TestPredicate_Match(t *testing.T) {
	d := Document{"id": "D1", "machine_id": "L1", "active": true}

	assert.True(t, Predicate{"machine_id": "L1"}.Match(d))
	assert.True(t, Predicate{"active": "true"}.Match(d), "so sánh theo dạng string")
	assert.False(t, Predicate{"machine_id": "L2"}.Match(d))
	assert.False(t, Predicate{"missing": "x"}.Match(d))
	assert.True(t, Predicate{"missing": nil}.Match(d), "nil khớp field không tồn tại")
	assert.True(t, Predicate{}.Match(d))
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{{"code": "b"}, {"code": "c"}, {"code": "a"}}

	SortDocuments(docs, "code")
	assert.Equal(t, []string{"a", "b", "c"}, codes(docs))

	SortDocuments(docs, "-code")
	assert.Equal(t, []string{"c", "b", "a"}, codes(docs))

	field, desc := SortSpec(" -created_date ")
	assert.Equal(t, "created_date", field)
	assert.True(t, desc)
}

func TestSortDocuments_NumbersCompareNumerically(t *testing.T) {
	docs := []Document{
		{"code": "late", "created_date": int64(10000)},
		{"code": "early", "created_date": int64(999)},
		{"code": "mid", "created_date": float64(5000)},
	}

	SortDocuments(docs, "created_date")
	assert.Equal(t, []string{"early", "mid", "late"}, codes(docs))

	SortDocuments(docs, "-created_date")
	assert.Equal(t, []string{"late", "mid", "early"}, codes(docs))
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, -1, CompareValues(int64(9), int64(10)))
	assert.Equal(t, 0, CompareValues(int(7), float64(7)))
	assert.Equal(t, 1, CompareValues("b", "a"))
	assert.Equal(t, -1, CompareValues(nil, "a"), "nil là chuỗi rỗng")

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, -1, CompareValues(t1, t1.Add(time.Hour)))
}

func codes(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.String("code"))
	}
	return out
}
