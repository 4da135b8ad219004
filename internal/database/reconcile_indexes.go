// Package database - Kết nối MongoDB và index hỗ trợ các truy vấn của quy trình hợp nhất.
package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexSpec mô tả một index (single hoặc compound) trên collection
type IndexSpec struct {
	Collection string
	Fields     []string // Thứ tự field trong compound index, tất cả tăng dần
	Sparse     bool
}

// Name trả về tên index ổn định: <collection>_<field1>_<field2>
func (s IndexSpec) Name() string {
	parts := append([]string{s.Collection}, s.Fields...)
	return strings.ToLower(strings.ReplaceAll(strings.Join(parts, "_"), ".", "_"))
}

func (s IndexSpec) model() mongo.IndexModel {
	keys := bson.D{}
	for _, f := range s.Fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(s.Name()).SetSparse(s.Sparse),
	}
}

// DedupeIndexSpecs bỏ spec trùng (cùng tên) và sắp xếp theo tên
func DedupeIndexSpecs(specs []IndexSpec) []IndexSpec {
	seen := make(map[string]bool, len(specs))
	out := make([]IndexSpec, 0, len(specs))
	for _, s := range specs {
		if s.Collection == "" || len(s.Fields) == 0 || seen[s.Name()] {
			continue
		}
		seen[s.Name()] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// EnsureIndexes tạo các index nếu chưa có. Index đã tồn tại không phải lỗi.
func EnsureIndexes(ctx context.Context, db *mongo.Database, specs []IndexSpec) error {
	for _, spec := range DedupeIndexSpecs(specs) {
		if _, err := db.Collection(spec.Collection).Indexes().CreateOne(ctx, spec.model()); err != nil && !isIndexExistsError(err) {
			return fmt.Errorf("create index %s: %w", spec.Name(), err)
		}
	}
	return nil
}

func isIndexExistsError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "already exists") || strings.Contains(s, "duplicate")
}
