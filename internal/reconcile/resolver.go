package reconcile

import (
	"strings"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// NormalizeKey chuẩn hóa natural key: trim và lower-case
func NormalizeKey(v interface{}) string {
	return strings.ToLower(strings.TrimSpace(store.ValueString(v)))
}

// Mapping là ánh xạ legacy id -> canonical id, chỉ tồn tại trong một run
type Mapping map[string]string

// keyIndex là natural key đã chuẩn hóa -> canonical record đầu tiên mang key đó
type keyIndex struct {
	byKey      map[string]store.Document
	duplicates []DuplicateKey
}

// resolveKeys dựng keyIndex với quy tắc first-wins: bản ghi sau cùng key bị bỏ qua
// (không merge) và được liệt kê trong duplicates để người vận hành xử lý.
func resolveKeys(canonical []store.Document, keyField string) *keyIndex {
	idx := &keyIndex{byKey: make(map[string]store.Document, len(canonical))}
	dupPos := make(map[string]int)

	for _, doc := range canonical {
		key := NormalizeKey(doc[keyField])
		if key == "" {
			continue
		}
		winner, exists := idx.byKey[key]
		if !exists {
			idx.byKey[key] = doc
			continue
		}
		pos, seen := dupPos[key]
		if !seen {
			pos = len(idx.duplicates)
			dupPos[key] = pos
			idx.duplicates = append(idx.duplicates, DuplicateKey{Key: key, WinnerID: winner.ID()})
		}
		idx.duplicates[pos].Shadowed = append(idx.duplicates[pos].Shadowed, doc.ID())
	}
	return idx
}

// lookup tìm canonical theo key đã chuẩn hóa
func (idx *keyIndex) lookup(key string) (store.Document, bool) {
	doc, ok := idx.byKey[key]
	return doc, ok
}

// seedMapping khởi tạo Mapping từ back-reference của canonical đã có.
// Back-reference đã set không bao giờ bị trỏ lại sang legacy khác (first-wins).
func seedMapping(canonical []store.Document, legacyRefField string) Mapping {
	m := make(Mapping, len(canonical))
	for _, doc := range canonical {
		ref := doc.String(legacyRefField)
		if ref == "" {
			continue
		}
		if _, exists := m[ref]; !exists {
			m[ref] = doc.ID()
		}
	}
	return m
}
