package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// ErrMissingKey: bản ghi legacy không có natural key, không thể migrate
var ErrMissingKey = errors.New("thiếu natural key")

// dryRunIDPrefix là tiền tố id dự đoán cho canonical sẽ được tạo khi chạy thử
const dryRunIDPrefix = "dryrun:"

// plannedCreate là một canonical cần tạo. followers là các legacy id trùng key,
// sẽ map vào cùng canonical được tạo.
type plannedCreate struct {
	legacy    store.Document
	key       string
	payload   store.Document
	followers []string
}

// BuildPayload dựng canonical payload từ bản ghi legacy: copy field 1:1, gom field đánh số
// thành list, điền giá trị mặc định, set back-reference và trạng thái đồng bộ.
func BuildPayload(job *Job, legacy store.Document) store.Document {
	payload := make(store.Document, len(job.Fields)+len(job.Defaults)+4)
	for _, f := range job.Fields {
		if v, ok := legacy[f.From]; ok && v != nil {
			payload[f.Target()] = v
		}
	}

	key := legacy[job.Legacy.KeyField]
	if s, ok := key.(string); ok {
		key = strings.TrimSpace(s)
	}
	payload[job.Canonical.KeyField] = key

	for _, seq := range job.Sequences {
		payload[seq.Target] = seq.Fold(legacy)
	}

	for field, def := range job.Defaults {
		if isBlank(payload[field]) {
			payload[field] = def
		}
	}

	payload[job.Canonical.LegacyRefField] = legacy.ID()
	if job.Canonical.SyncStatusField != "" {
		payload[job.Canonical.SyncStatusField] = job.Canonical.SyncStatusValue
	}
	return payload
}

func isBlank(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func legacyLabel(job *Job, doc store.Document) string {
	key := strings.TrimSpace(doc.String(job.Legacy.KeyField))
	if key == "" {
		return fmt.Sprintf("%s/%s", job.Legacy.Collection, doc.ID())
	}
	return fmt.Sprintf("%s/%s (%s)", job.Legacy.Collection, doc.ID(), key)
}

// migrate phân loại từng legacy record (skip / create), tạo canonical còn thiếu và
// trả về Mapping đầy đủ legacy id -> canonical id.
func (r *Runner) migrate(ctx context.Context, rc *runContext, snap *snapshot, idx *keyIndex) (Mapping, error) {
	job := rc.job
	mapping := seedMapping(snap.canonical, job.Canonical.LegacyRefField)

	planned := make(map[string]*plannedCreate)
	var order []*plannedCreate

	for _, doc := range snap.legacy {
		id := doc.ID()
		if id == "" {
			continue
		}
		if _, done := mapping[id]; done {
			rc.tally.add(&rc.tally.skipped, 1)
			continue
		}

		key := NormalizeKey(doc[job.Legacy.KeyField])
		if key == "" {
			rc.tally.fail(legacyLabel(job, doc), ErrMissingKey)
			continue
		}
		if canonical, ok := idx.lookup(key); ok {
			mapping[id] = canonical.ID()
			rc.tally.add(&rc.tally.skipped, 1)
			continue
		}
		if p, ok := planned[key]; ok {
			// Legacy trùng key: dùng chung canonical với bản đầu tiên
			p.followers = append(p.followers, id)
			rc.tally.add(&rc.tally.skipped, 1)
			continue
		}
		if job.SkipMigration {
			continue
		}

		p := &plannedCreate{legacy: doc, key: key, payload: BuildPayload(job, doc)}
		planned[key] = p
		order = append(order, p)
	}

	if len(order) == 0 {
		return mapping, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchSize)

	// Canonical bị cắt: key không thấy trong snapshot vẫn có thể đã tồn tại ngoài giới hạn đọc
	checkExisting := snap.isTruncated(job.Canonical.Collection)

	for _, p := range order {
		g.Go(func() error {
			if checkExisting {
				existingID, err := r.findCanonical(gctx, rc, p)
				if err != nil {
					if isAbort(err) {
						return err
					}
					rc.tally.fail(legacyLabel(job, p.legacy), err)
					return nil
				}
				if existingID != "" {
					mu.Lock()
					mapping[p.legacy.ID()] = existingID
					for _, follower := range p.followers {
						mapping[follower] = existingID
					}
					mu.Unlock()
					rc.tally.add(&rc.tally.skipped, 1)
					return nil
				}
			}

			canonicalID, err := r.createCanonical(gctx, rc, p)
			if err != nil {
				if isAbort(err) {
					return err
				}
				rc.tally.fail(legacyLabel(job, p.legacy), err)
				rc.log.WithError(err).WithField("legacy_id", p.legacy.ID()).Warn("Tạo canonical thất bại, bỏ qua bản ghi")
				return nil
			}

			mu.Lock()
			mapping[p.legacy.ID()] = canonicalID
			for _, follower := range p.followers {
				mapping[follower] = canonicalID
			}
			mu.Unlock()
			rc.tally.add(&rc.tally.migrated, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mapping, nil
}

// findCanonical tìm canonical có cùng giá trị khóa với legacy (so khớp đúng giá trị gốc)
func (r *Runner) findCanonical(ctx context.Context, rc *runContext, p *plannedCreate) (string, error) {
	job := rc.job
	docs, err := r.store.Filter(ctx, job.Canonical.Collection,
		store.Predicate{job.Canonical.KeyField: p.legacy[job.Legacy.KeyField]},
		store.ListOptions{Sort: readSort, Limit: 1})
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].ID(), nil
}

// createCanonical ghi một canonical mới (hoặc dự đoán id khi chạy thử)
func (r *Runner) createCanonical(ctx context.Context, rc *runContext, p *plannedCreate) (string, error) {
	job := rc.job
	if rc.opts.DryRun {
		return dryRunIDPrefix + p.legacy.ID(), nil
	}

	created, err := r.store.Create(ctx, job.Canonical.Collection, p.payload)
	if err != nil {
		return "", err
	}
	id := created.ID()
	if id == "" {
		return "", fmt.Errorf("store không trả về id cho canonical mới")
	}

	r.audit(logger.AuditAction{
		Action:     "create_canonical",
		Job:        job.Name,
		RunID:      rc.summary.RunID,
		Collection: job.Canonical.Collection,
		ResourceID: id,
		Details: logrus.Fields{
			"legacy_id": p.legacy.ID(),
			"key":       p.key,
			"followers": p.followers,
		},
	})
	return id, nil
}
