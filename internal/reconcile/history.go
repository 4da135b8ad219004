package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// FinishedAtField lưu thời điểm kết thúc (unix milli) để tìm run mới nhất
const FinishedAtField = "finishedAtMs"

// History lưu summary các run vào một collection của store.
// Đây là báo cáo tham khảo cho người vận hành; Mapping không bao giờ được lưu.
type History struct {
	store      store.Store
	collection string
}

// NewHistory tạo History trên collection
func NewHistory(s store.Store, collection string) *History {
	return &History{store: s, collection: collection}
}

// Save lưu summary
func (h *History) Save(ctx context.Context, sum *Summary) error {
	raw, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	doc := store.Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	doc[FinishedAtField] = sum.FinishedAt.UnixMilli()

	if _, err := h.store.Create(ctx, h.collection, doc); err != nil {
		return err
	}
	return nil
}

// Last trả về summary mới nhất của job, common.ErrNotFound nếu job chưa chạy lần nào
func (h *History) Last(ctx context.Context, job string) (*Summary, error) {
	docs, err := h.store.Filter(ctx, h.collection, store.Predicate{"job": job},
		store.ListOptions{Sort: "-" + FinishedAtField, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.Wrap(common.ErrNotFound, fmt.Errorf("chưa có run nào của job %q", job))
	}
	latest := docs[0]

	raw, err := json.Marshal(latest)
	if err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	var sum Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &sum, nil
}
