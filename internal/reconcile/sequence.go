package reconcile

import (
	"fmt"
	"strings"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// FieldName trả về tên field đánh số thứ i (1-based), ví dụ tarea_3
func (s Sequence) FieldName(i int) string {
	return fmt.Sprintf("%s%d", s.Prefix, i)
}

// Fold gom các field đánh số khác rỗng của doc thành list theo đúng thứ tự số.
// Ô trống ở giữa bị bỏ qua; tối đa Max phần tử.
func (s Sequence) Fold(doc store.Document) []interface{} {
	items := make([]interface{}, 0, s.Max)
	for i := 1; i <= s.Max; i++ {
		v, ok := doc[s.FieldName(i)]
		if !ok || v == nil {
			continue
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			continue
		}
		items = append(items, v)
	}
	return items
}

// Owns kiểm tra field có thuộc sequence không (prefix + số trong [1, Max])
func (s Sequence) Owns(field string) bool {
	if !strings.HasPrefix(field, s.Prefix) {
		return false
	}
	var n int
	if _, err := fmt.Sscanf(field[len(s.Prefix):], "%d", &n); err != nil {
		return false
	}
	return n >= 1 && n <= s.Max && s.FieldName(n) == field
}
