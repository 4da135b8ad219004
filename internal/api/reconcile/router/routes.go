// Package router đăng ký các route thuộc domain Reconcile và system health.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	basehdl "github.com/mloperacde/cdeapp-planning-sub010/internal/api/base/handler"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/api/middleware"
	reconcilehdl "github.com/mloperacde/cdeapp-planning-sub010/internal/api/reconcile/handler"
	apirouter "github.com/mloperacde/cdeapp-planning-sub010/internal/api/router"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/reconcile"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/store"
)

// Deps là các thành phần route reconcile cần
type Deps struct {
	Runner     *reconcile.Runner
	Catalog    *reconcile.Catalog
	History    *reconcile.History // nil = tắt /last
	Store      store.Store        // dùng cho health check
	AdminToken string             // rỗng = không xác thực
}

// Register trả về RegisterFunc đăng ký /reconcile/* (yêu cầu admin token) và /system/health
func Register(deps Deps) apirouter.RegisterFunc {
	return func(v1 fiber.Router, r *apirouter.Router) error {
		reconcileHandler, err := reconcilehdl.NewReconcileHandler(deps.Runner, deps.Catalog, deps.History)
		if err != nil {
			return fmt.Errorf("create reconcile handler: %w", err)
		}
		adminMiddleware := middleware.AdminTokenMiddleware(deps.AdminToken)
		mws := []fiber.Handler{adminMiddleware}

		apirouter.RegisterRouteWithMiddleware(v1, "/reconcile", fiber.MethodGet, "/jobs", mws, reconcileHandler.HandleListJobs)
		apirouter.RegisterRouteWithMiddleware(v1, "/reconcile", fiber.MethodPost, "/:job/run", mws, reconcileHandler.HandleRun)
		apirouter.RegisterRouteWithMiddleware(v1, "/reconcile", fiber.MethodGet, "/:job/verify", mws, reconcileHandler.HandleVerify)
		apirouter.RegisterRouteWithMiddleware(v1, "/reconcile", fiber.MethodGet, "/:job/last", mws, reconcileHandler.HandleLast)

		systemHandler := basehdl.NewSystemHandler(deps.Store)
		apirouter.RegisterRouteWithMiddleware(v1, "/system", fiber.MethodGet, "/health", nil, systemHandler.HandleHealth)
		return nil
	}
}
