package reconcile

import (
	"context"
	"fmt"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// readSort: đọc theo thứ tự tạo để "bản đầu tiên" là bản cũ nhất
const readSort = "created_date"

// snapshot là dữ liệu đọc ở đầu run. Mọi quyết định của run dựa trên snapshot này.
type snapshot struct {
	legacy     []store.Document
	canonical  []store.Document
	dependents map[string][]store.Document // Theo tên collection
	truncated  []string                    // Collection có nhiều document hơn giới hạn đọc
}

func (s *snapshot) markTruncated(name string) {
	for _, n := range s.truncated {
		if n == name {
			return
		}
	}
	s.truncated = append(s.truncated, name)
}

func (s *snapshot) isTruncated(name string) bool {
	for _, n := range s.truncated {
		if n == name {
			return true
		}
	}
	return false
}

// readCollection đọc toàn bộ collection (tối đa limit document).
// Đọc dư một document để biết chắc collection có bị cắt hay không.
// Lỗi đọc luôn làm dừng run, không retry từng collection.
func (r *Runner) readCollection(ctx context.Context, name string, limit int) (docs []store.Document, truncated bool, err error) {
	opts := store.ListOptions{Sort: readSort}
	if limit > 0 {
		opts.Limit = limit + 1
	}
	docs, err = r.store.List(ctx, name, opts)
	if err != nil {
		return nil, false, common.Wrap(common.ErrReadSnapshot, fmt.Errorf("%s: %w", name, err))
	}
	if limit > 0 && len(docs) > limit {
		r.log.WithFields(map[string]interface{}{
			"collection": name,
			"limit":      limit,
		}).Warn("Collection vượt giới hạn đọc, snapshot không đầy đủ")
		return docs[:limit], true, nil
	}
	return docs, false, nil
}

// readLimit trả về giới hạn đọc của job (ưu tiên cấu hình trên job)
func (r *Runner) readLimit(job *Job) int {
	if job.ReadLimit > 0 {
		return job.ReadLimit
	}
	return r.limit
}

// readInto đọc collection và ghi nhận nếu bị cắt
func (r *Runner) readInto(ctx context.Context, snap *snapshot, name string, limit int) ([]store.Document, error) {
	docs, truncated, err := r.readCollection(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		snap.markTruncated(name)
	}
	return docs, nil
}

// readSnapshot đọc canonical, dependents và (nếu withLegacy) legacy
func (r *Runner) readSnapshot(ctx context.Context, job *Job, withLegacy bool) (*snapshot, error) {
	limit := r.readLimit(job)
	snap := &snapshot{dependents: make(map[string][]store.Document, len(job.Dependents))}

	var err error
	if withLegacy {
		if snap.legacy, err = r.readInto(ctx, snap, job.Legacy.Collection, limit); err != nil {
			return nil, err
		}
	}
	if snap.canonical, err = r.readInto(ctx, snap, job.Canonical.Collection, limit); err != nil {
		return nil, err
	}
	for _, dep := range job.Dependents {
		if _, done := snap.dependents[dep.Collection]; done {
			continue
		}
		docs, err := r.readInto(ctx, snap, dep.Collection, limit)
		if err != nil {
			return nil, err
		}
		snap.dependents[dep.Collection] = docs
	}
	return snap, nil
}

// partialRefs kiểm tra tập id dùng để phân loại khóa ngoại có bị thiếu không.
// Khi thiếu, một khóa ngoại "hỏng" có thể trỏ vào document nằm ngoài giới hạn đọc.
func (s *snapshot) partialRefs(job *Job) bool {
	return s.isTruncated(job.Legacy.Collection) || s.isTruncated(job.Canonical.Collection)
}

// idSet trả về tập id của các document
func idSet(docs []store.Document) map[string]bool {
	ids := make(map[string]bool, len(docs))
	for _, d := range docs {
		if id := d.ID(); id != "" {
			ids[id] = true
		}
	}
	return ids
}
