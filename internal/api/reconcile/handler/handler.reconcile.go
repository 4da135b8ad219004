// Package reconcilehdl - Handler cho các endpoint quản trị quy trình hợp nhất:
// liệt kê job, chạy (hoặc chạy thử), kiểm tra tham chiếu, xem run gần nhất.
package reconcilehdl

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	basehdl "github.com/mloperacde/cdeapp-planning-sub010/internal/api/base/handler"
	reconciledto "github.com/mloperacde/cdeapp-planning-sub010/internal/api/reconcile/dto"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/common"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"
)

// ReconcileHandler xử lý các route /reconcile
type ReconcileHandler struct {
	basehdl.BaseHandler
	runner  *reconcile.Runner
	catalog *reconcile.Catalog
	history *reconcile.History // nil = không lưu lịch sử
}

// NewReconcileHandler tạo handler; history có thể nil
func NewReconcileHandler(runner *reconcile.Runner, catalog *reconcile.Catalog, history *reconcile.History) (*ReconcileHandler, error) {
	if runner == nil || catalog == nil {
		return nil, common.Wrap(common.ErrRequiredField, errors.New("runner và catalog là bắt buộc"))
	}
	return &ReconcileHandler{runner: runner, catalog: catalog, history: history}, nil
}

// lookupJob lấy job theo param :job, trả về lỗi ErrJobNotFound nếu không có
func (h *ReconcileHandler) lookupJob(c fiber.Ctx) (*reconcile.Job, error) {
	return reconcile.LookupJob(h.catalog, c.Params("job"))
}

// HandleListJobs xử lý GET /reconcile/jobs — danh sách job kèm trạng thái run hiện tại
func (h *ReconcileHandler) HandleListJobs(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		running := h.runner.Running()
		names := h.catalog.Names()
		jobs := make([]reconciledto.JobInfo, 0, len(names))
		for _, name := range names {
			job, ok := h.catalog.Get(name)
			if !ok {
				continue
			}
			jobs = append(jobs, reconciledto.NewJobInfo(job, running[name]))
		}
		return h.HandleResponse(c, jobs, nil)
	})
}

// HandleRun xử lý POST /reconcile/:job/run — body {dryRun, policy}.
// Run thất bại giữa chừng vẫn trả về summary (state = failed) trong data.
func (h *ReconcileHandler) HandleRun(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		job, err := h.lookupJob(c)
		if err != nil {
			return h.HandleResponse(c, nil, err)
		}

		var req reconciledto.RunRequest
		if err := h.ParseRequestBody(c, &req); err != nil {
			return h.HandleResponse(c, nil, err)
		}

		policy, err := reconcile.ParsePolicy(req.Policy)
		if err != nil {
			return h.HandleResponse(c, nil, err)
		}

		logger.WithRequest(c).WithFields(map[string]interface{}{
			"job":     job.Name,
			"dry_run": req.DryRun,
			"policy":  policy,
		}).Info("Yêu cầu chạy job hợp nhất")

		summary, err := h.runner.Run(c.Context(), job, reconcile.RunOptions{DryRun: req.DryRun, Policy: policy})
		if err != nil {
			if summary == nil {
				return h.HandleResponse(c, nil, err)
			}
			return runFailedResponse(c, summary, err)
		}
		return h.HandleResponse(c, summary, nil)
	})
}

// runFailedResponse trả về envelope lỗi kèm summary của run đã dừng
func runFailedResponse(c fiber.Ctx, summary *reconcile.Summary, err error) error {
	status := common.StatusInternalServerError
	code := common.ErrCodeInternalServer.Code
	message := common.MsgInternalError
	var customErr *common.Error
	if errors.As(err, &customErr) {
		status = customErr.StatusCode
		code = customErr.Code.Code
		message = customErr.Message
	}
	return basehdl.JSONResponse(c, status, fiber.Map{
		"code":    code,
		"message": message,
		"details": err.Error(),
		"data":    summary,
		"status":  "error",
	})
}

// HandleVerify xử lý GET /reconcile/:job/verify — đếm tham chiếu hỏng, không ghi gì
func (h *ReconcileHandler) HandleVerify(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		job, err := h.lookupJob(c)
		if err != nil {
			return h.HandleResponse(c, nil, err)
		}
		report, err := h.runner.Verify(c.Context(), job)
		return h.HandleResponse(c, report, err)
	})
}

// HandleLast xử lý GET /reconcile/:job/last — summary run gần nhất đã lưu
func (h *ReconcileHandler) HandleLast(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		job, err := h.lookupJob(c)
		if err != nil {
			return h.HandleResponse(c, nil, err)
		}
		if h.history == nil {
			return h.HandleResponse(c, nil, common.Wrap(common.ErrNotFound, errors.New("lịch sử run không được bật")))
		}
		summary, err := h.history.Last(c.Context(), job.Name)
		return h.HandleResponse(c, summary, err)
	})
}
