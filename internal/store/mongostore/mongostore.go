// Package mongostore triển khai store.Store trên MongoDB.
// Id của document được map "id" <-> "_id": ObjectID (hex) khi parse được, string nếu không.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

const (
	// CreatedField, UpdatedField là timestamp do store tự thêm (unix milli)
	CreatedField = "created_date"
	UpdatedField = "updated_date"
)

// Store là store.Store trên một MongoDB database
type Store struct {
	db *mongo.Database
}

var _ store.Store = (*Store)(nil)

// New tạo Store trên database đã kết nối
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// toObjectKey chuyển id dạng string sang giá trị _id
func toObjectKey(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// fromBSON chuyển document MongoDB sang store.Document.
// ObjectID ở top-level được đổi sang hex để so sánh khóa ngoại theo string.
func fromBSON(m bson.M) store.Document {
	doc := make(store.Document, len(m))
	for k, v := range m {
		if oid, ok := v.(primitive.ObjectID); ok {
			v = oid.Hex()
		}
		if k == "_id" {
			doc[store.IDField] = v
			continue
		}
		doc[k] = v
	}
	return doc
}

// toBSON chuyển payload sang bson.M, bỏ key "id"
func toBSON(d store.Document) bson.M {
	m := make(bson.M, len(d))
	for k, v := range d {
		if k == store.IDField || k == "_id" {
			continue
		}
		m[k] = v
	}
	return m
}

func (s *Store) find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]store.Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, common.ConvertMongoError(err)
	}

	// Đảm bảo luôn trả về mảng, không phải nil
	docs := make([]store.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, fromBSON(m))
	}
	return docs, nil
}

// List đọc document theo sort ("field" / "-field") và limit
func (s *Store) List(ctx context.Context, collection string, opts store.ListOptions) ([]store.Document, error) {
	return s.find(ctx, collection, bson.M{}, findOptions(opts))
}

// findOptions chuyển sort/limit của store sang FindOptions
func findOptions(opts store.ListOptions) *options.FindOptions {
	findOpts := options.Find()
	if field, desc := store.SortSpec(opts.Sort); field != "" {
		if field == store.IDField {
			field = "_id"
		}
		dir := 1
		if desc {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: field, Value: dir}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	return findOpts
}

// Filter đọc document thỏa predicate (so khớp bằng), sort/limit phía server
func (s *Store) Filter(ctx context.Context, collection string, pred store.Predicate, opts store.ListOptions) ([]store.Document, error) {
	filter := bson.M{}
	for field, value := range pred {
		if field == store.IDField {
			filter["_id"] = toObjectKey(store.ValueString(value))
			continue
		}
		filter[field] = value
	}
	return s.find(ctx, collection, filter, findOptions(opts))
}

// Create tạo document mới với _id là ObjectID mới
func (s *Store) Create(ctx context.Context, collection string, payload store.Document) (store.Document, error) {
	m := toBSON(payload)
	oid := primitive.NewObjectID()
	now := time.Now().UnixMilli()
	m["_id"] = oid
	m[CreatedField] = now
	m[UpdatedField] = now

	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		return nil, common.ConvertMongoError(err)
	}
	return fromBSON(m), nil
}

// Update set các field trong patch ($set) và trả về document sau cập nhật
func (s *Store) Update(ctx context.Context, collection, id string, patch store.Document) (store.Document, error) {
	set := toBSON(patch)
	set[UpdatedField] = time.Now().UnixMilli()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated bson.M
	err := s.db.Collection(collection).
		FindOneAndUpdate(ctx, bson.M{"_id": toObjectKey(id)}, bson.M{"$set": set}, opts).
		Decode(&updated)
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	return fromBSON(updated), nil
}

// Delete xóa document theo id
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": toObjectKey(id)})
	if err != nil {
		return common.ConvertMongoError(err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

// Ping kiểm tra kết nối MongoDB
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return common.ConvertMongoError(err)
	}
	return nil
}
