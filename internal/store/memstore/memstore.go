// Package memstore cung cấp store.Store in-memory, thread-safe, dùng cho test.
// Thứ tự List mặc định là thứ tự tạo document; id do store cấp tăng dần.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// Op là loại thao tác, dùng cho fault injection
type Op string

const (
	OpList   Op = "list"
	OpFilter Op = "filter"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// FaultFunc trả về lỗi để giả lập sự cố cho thao tác (collection, id) tương ứng.
// id rỗng với list/filter/create.
type FaultFunc func(op Op, collection, id string) error

type collection struct {
	order []string
	docs  map[string]store.Document
}

// Store là store in-memory
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	seq         int
	fault       FaultFunc
	calls       map[Op]int
}

var _ store.Store = (*Store)(nil)

// New tạo store rỗng
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		calls:       make(map[Op]int),
	}
}

// SetFault đặt hàm giả lập lỗi (nil = tắt)
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

// Calls trả về số lần gọi thao tác op (kể cả lần bị fault)
func (s *Store) Calls(op Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// Seed chèn document với id có sẵn (nếu doc không có id thì store tự cấp).
// Dùng để dựng dữ liệu test, không tính vào Calls.
func (s *Store) Seed(name string, docs ...store.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		doc := d.Clone()
		if doc.ID() == "" {
			doc[store.IDField] = s.nextIDLocked()
		}
		s.putLocked(name, doc)
	}
}

// Count trả về số document trong collection
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[name]; ok {
		return len(c.order)
	}
	return 0
}

// Get trả về bản sao document theo id
func (s *Store) Get(name, id string) (store.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, false
	}
	d, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// All trả về bản sao toàn bộ document theo thứ tự tạo
func (s *Store) All(name string) []store.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(name, nil)
}

func (s *Store) nextIDLocked() string {
	s.seq++
	return fmt.Sprintf("mem-%06d", s.seq)
}

func (s *Store) putLocked(name string, doc store.Document) {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]store.Document)}
		s.collections[name] = c
	}
	id := doc.ID()
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = doc
}

func (s *Store) snapshotLocked(name string, pred store.Predicate) []store.Document {
	out := []store.Document{}
	c, ok := s.collections[name]
	if !ok {
		return out
	}
	for _, id := range c.order {
		d := c.docs[id]
		if pred != nil && !pred.Match(d) {
			continue
		}
		out = append(out, d.Clone())
	}
	return out
}

// checkLocked ghi nhận lần gọi và chạy fault injection
func (s *Store) checkLocked(ctx context.Context, op Op, name, id string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.fault != nil {
		return s.fault(op, name, id)
	}
	return nil
}

// List đọc document, sort rồi cắt theo limit
func (s *Store) List(ctx context.Context, name string, opts store.ListOptions) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, OpList, name, ""); err != nil {
		return nil, err
	}
	return s.queryLocked(name, nil, opts), nil
}

// Filter đọc document thỏa predicate, sort rồi cắt theo limit
func (s *Store) Filter(ctx context.Context, name string, pred store.Predicate, opts store.ListOptions) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, OpFilter, name, ""); err != nil {
		return nil, err
	}
	return s.queryLocked(name, pred, opts), nil
}

func (s *Store) queryLocked(name string, pred store.Predicate, opts store.ListOptions) []store.Document {
	docs := s.snapshotLocked(name, pred)
	store.SortDocuments(docs, opts.Sort)
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs
}

// Create tạo document mới, bỏ qua id trong payload
func (s *Store) Create(ctx context.Context, name string, payload store.Document) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, OpCreate, name, ""); err != nil {
		return nil, err
	}
	doc := payload.Clone()
	doc[store.IDField] = s.nextIDLocked()
	s.putLocked(name, doc)
	return doc.Clone(), nil
}

// Update merge patch vào document (id trong patch bị bỏ qua)
func (s *Store) Update(ctx context.Context, name, id string, patch store.Document) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, OpUpdate, name, id); err != nil {
		return nil, err
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for k, v := range patch {
		if k == store.IDField {
			continue
		}
		doc[k] = v
	}
	return doc.Clone(), nil
}

// Delete xóa document theo id
func (s *Store) Delete(ctx context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, OpDelete, name, id); err != nil {
		return err
	}
	c, ok := s.collections[name]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Ping luôn thành công
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
