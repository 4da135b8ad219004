package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// refOutcome là kết quả phân loại khóa ngoại của một document phụ thuộc
type refOutcome int

const (
	refEmpty      refOutcome = iota // Khóa ngoại rỗng, không xét
	refValid                        // Đã trỏ vào canonical
	refRewrite                      // Trỏ vào legacy đã map, cần sửa
	refUnresolved                   // Trỏ vào legacy chưa map được
	refBroken                       // Không khớp legacy nào, không khớp canonical nào
)

// references là các tập id dùng để phân loại khóa ngoại
type references struct {
	mapping   Mapping
	canonical map[string]bool // Canonical id từ lần đọc mới sau migrate
	legacy    map[string]bool
	partial   bool // legacy/canonical vượt giới hạn đọc: refBroken chưa chắc là hỏng
}

func (refs *references) classify(fk string) refOutcome {
	switch {
	case fk == "":
		return refEmpty
	case refs.mapping[fk] != "" && refs.mapping[fk] != fk:
		return refRewrite
	case refs.canonical[fk]:
		return refValid
	case refs.legacy[fk]:
		return refUnresolved
	default:
		return refBroken
	}
}

// isFlagged kiểm tra document đã được đánh dấu hỏng với đúng tham chiếu hiện tại
func isFlagged(doc store.Document, fk string) bool {
	flagged, _ := doc[FlagField].(bool)
	return flagged && doc.String(FlagRefField) == fk
}

// resolvePolicy: policy của run > policy của dependent > mặc định của Runner
func (r *Runner) resolvePolicy(rc *runContext, dep Dependent) BrokenPolicy {
	if rc.opts.Policy != "" {
		return rc.opts.Policy
	}
	if dep.Policy != "" {
		return dep.Policy
	}
	if r.policy != "" {
		return r.policy
	}
	return PolicyReport
}

// rewrite sửa khóa ngoại của các dependent. Chỉ được gọi sau khi migrate xong vì
// Mapping chỉ đầy đủ lúc đó. Mỗi update/delete là một call độc lập; dừng giữa chừng thì
// run lại sẽ tiếp tục đúng vì record đã sửa sẽ được phân loại là valid.
//
// Trả về số tham chiếu hỏng dự kiến còn lại theo collection (dùng cho chạy thử).
func (r *Runner) rewrite(ctx context.Context, rc *runContext, snap *snapshot, refs *references) (map[string]int, error) {
	remaining := make(map[string]int, len(rc.job.Dependents))

	for _, dep := range rc.job.Dependents {
		policy := r.resolvePolicy(rc, dep)
		log := rc.log.WithFields(map[string]interface{}{
			"collection": dep.Collection,
			"foreignKey": dep.ForeignKey,
			"policy":     policy,
		})
		if refs.partial && policy != PolicyReport {
			log.Warn("Snapshot legacy/canonical không đầy đủ, tham chiếu hỏng chỉ được báo cáo")
			policy = PolicyReport
		}
		if _, ok := remaining[dep.Collection]; !ok {
			remaining[dep.Collection] = 0
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.batchSize)

		for _, doc := range snap.dependents[dep.Collection] {
			// Cùng collection có thể khai báo nhiều khóa ngoại; bỏ qua document đã xóa ở lượt trước
			if rc.tally.isDeleted(dependentLabel(dep, doc)) {
				continue
			}
			fk := doc.String(dep.ForeignKey)
			switch refs.classify(fk) {
			case refEmpty, refValid:
				continue

			case refRewrite:
				target := refs.mapping[fk]
				g.Go(func() error {
					return r.rewriteOne(gctx, rc, dep, doc, fk, target)
				})

			case refUnresolved:
				remaining[dep.Collection]++
				rc.tally.add(&rc.tally.unresolved, 1)

			case refBroken:
				switch policy {
				case PolicyDelete:
					g.Go(func() error {
						return r.deleteBroken(gctx, rc, dep, doc, fk)
					})
				case PolicyFlag:
					if isFlagged(doc, fk) {
						rc.tally.add(&rc.tally.brokenFlagged, 1)
						continue
					}
					g.Go(func() error {
						return r.flagBroken(gctx, rc, dep, doc, fk)
					})
				default:
					remaining[dep.Collection]++
					rc.tally.add(&rc.tally.reported, 1)
				}
			}
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		log.Debug("Đã xử lý tham chiếu của collection phụ thuộc")
	}
	return remaining, nil
}

func dependentLabel(dep Dependent, doc store.Document) string {
	return fmt.Sprintf("%s/%s", dep.Collection, doc.ID())
}

// recordFailure ghi lỗi từng bản ghi; trả về lỗi nếu đó là lỗi phải dừng run
func (r *Runner) recordFailure(rc *runContext, label string, err error) error {
	if isAbort(err) {
		return err
	}
	rc.tally.fail(label, err)
	rc.log.WithError(err).WithField("record", label).Warn("Ghi dependent thất bại, bỏ qua bản ghi")
	return nil
}

// rewriteOne trỏ khóa ngoại từ legacy id sang canonical id
func (r *Runner) rewriteOne(ctx context.Context, rc *runContext, dep Dependent, doc store.Document, from, to string) error {
	if !rc.opts.DryRun {
		if _, err := r.store.Update(ctx, dep.Collection, doc.ID(), store.Document{dep.ForeignKey: to}); err != nil {
			return r.recordFailure(rc, dependentLabel(dep, doc), err)
		}
		r.audit(logger.AuditAction{
			Action:     "rewrite_ref",
			Job:        rc.job.Name,
			RunID:      rc.summary.RunID,
			Collection: dep.Collection,
			ResourceID: doc.ID(),
			Details:    map[string]interface{}{"field": dep.ForeignKey, "from": from, "to": to},
		})
	}
	rc.tally.add(&rc.tally.updated, 1)
	return nil
}

// deleteBroken xóa document có tham chiếu hỏng
func (r *Runner) deleteBroken(ctx context.Context, rc *runContext, dep Dependent, doc store.Document, fk string) error {
	if !rc.opts.DryRun {
		if err := r.store.Delete(ctx, dep.Collection, doc.ID()); err != nil {
			return r.recordFailure(rc, dependentLabel(dep, doc), err)
		}
		r.audit(logger.AuditAction{
			Action:     "delete_broken",
			Job:        rc.job.Name,
			RunID:      rc.summary.RunID,
			Collection: dep.Collection,
			ResourceID: doc.ID(),
			Details:    map[string]interface{}{"field": dep.ForeignKey, "ref": fk},
		})
	}
	rc.tally.markDeleted(dependentLabel(dep, doc))
	rc.tally.add(&rc.tally.brokenRemoved, 1)
	return nil
}

// flagBroken đánh dấu document có tham chiếu hỏng, giữ nguyên khóa ngoại
func (r *Runner) flagBroken(ctx context.Context, rc *runContext, dep Dependent, doc store.Document, fk string) error {
	if !rc.opts.DryRun {
		patch := store.Document{
			FlagField:    true,
			FlagAtField:  r.now().UTC().Format(time.RFC3339),
			FlagRefField: fk,
		}
		if _, err := r.store.Update(ctx, dep.Collection, doc.ID(), patch); err != nil {
			return r.recordFailure(rc, dependentLabel(dep, doc), err)
		}
		r.audit(logger.AuditAction{
			Action:     "flag_broken",
			Job:        rc.job.Name,
			RunID:      rc.summary.RunID,
			Collection: dep.Collection,
			ResourceID: doc.ID(),
			Details:    map[string]interface{}{"field": dep.ForeignKey, "ref": fk},
		})
	}
	rc.tally.add(&rc.tally.brokenFlagged, 1)
	return nil
}
