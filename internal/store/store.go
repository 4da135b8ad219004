// Package store định nghĩa hợp đồng document store mà quy trình hợp nhất sử dụng:
// list / filter / create / update / delete trên các collection JSON-like.
// Các implementation: mongostore (MongoDB) và memstore (in-memory, cho test).
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
)

// IDField là key chứa id của document (server cấp khi create)
const IDField = "id"

// ErrNotFound được trả về khi update/delete một id không tồn tại
var ErrNotFound = common.ErrNotFound

// Document là một bản ghi dạng map, id nằm ở key "id"
type Document map[string]interface{}

// ID trả về id của document dưới dạng string ("" nếu không có)
func (d Document) ID() string {
	return ValueString(d[IDField])
}

// String trả về giá trị field dạng string, nil/không tồn tại -> ""
func (d Document) String(field string) string {
	return ValueString(d[field])
}

// Has kiểm tra field có tồn tại và khác nil
func (d Document) Has(field string) bool {
	v, ok := d[field]
	return ok && v != nil
}

// Clone trả về bản sao nông (shallow copy) của document
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ValueString chuyển một giá trị field sang string.
// nil -> "", string giữ nguyên, kiểu có String() dùng String(), còn lại dùng fmt.
func ValueString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Predicate là điều kiện lọc: mọi field phải bằng đúng giá trị (AND)
type Predicate map[string]interface{}

// Match kiểm tra document có thỏa predicate không (so sánh theo ValueString)
func (p Predicate) Match(d Document) bool {
	for field, want := range p {
		got, ok := d[field]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || ValueString(got) != ValueString(want) {
			return false
		}
	}
	return true
}

// ListOptions tùy chọn cho List
type ListOptions struct {
	// Sort theo dạng của platform: "field" tăng dần, "-field" giảm dần. Rỗng = thứ tự tự nhiên.
	Sort string
	// Limit số document tối đa (<= 0 = không giới hạn)
	Limit int
}

// SortSpec tách sort spec thành field và chiều sắp xếp
func SortSpec(spec string) (field string, desc bool) {
	spec = strings.TrimSpace(spec)
	if strings.HasPrefix(spec, "-") {
		return spec[1:], true
	}
	return strings.TrimPrefix(spec, "+"), false
}

// SortDocuments sắp xếp ổn định theo sort spec.
// Hai giá trị số so sánh theo số (created_date là unix milli), còn lại theo ValueString.
func SortDocuments(docs []Document, spec string) {
	field, desc := SortSpec(spec)
	if field == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		c := CompareValues(docs[i][field], docs[j][field])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// CompareValues trả về -1, 0, 1. Số so với số theo giá trị, time.Time theo thời điểm,
// còn lại theo chuỗi.
func CompareValues(a, b interface{}) int {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return cmp.Compare(x, y)
		}
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(ValueString(a), ValueString(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Store là hợp đồng document store dùng chung cho mọi job hợp nhất.
// Mọi thao tác là một network call độc lập: không có transaction giữa các document.
type Store interface {
	// List đọc document của collection theo sort và giới hạn
	List(ctx context.Context, collection string, opts ListOptions) ([]Document, error)
	// Filter đọc document thỏa predicate theo sort và giới hạn của opts
	Filter(ctx context.Context, collection string, pred Predicate, opts ListOptions) ([]Document, error)
	// Create tạo document mới, server cấp id, trả về document đã lưu
	Create(ctx context.Context, collection string, payload Document) (Document, error)
	// Update cập nhật một phần (partial) document theo id, trả về document sau cập nhật
	Update(ctx context.Context, collection string, id string, patch Document) (Document, error)
	// Delete xóa document theo id
	Delete(ctx context.Context, collection string, id string) error
}

// pinger là interface optional cho health check
type pinger interface {
	Ping(ctx context.Context) error
}

// Ping kiểm tra kết nối của store nếu implementation hỗ trợ
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
