package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/database"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/global"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/worker"
)

// initLogger khởi tạo logger cho toàn bộ ứng dụng (đọc cấu hình từ environment variables)
func initLogger() {
	if err := logger.Init(nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
	}
	logger.GetAppLogger().Info("Logger system initialized successfully")
}

// startAuditWorker chạy worker kiểm tra tham chiếu định kỳ nếu được bật
func startAuditWorker(ctx context.Context) {
	minutes := global.ServerConfig.Audit_IntervalMinutes
	log := logger.GetAppLogger()
	if minutes <= 0 {
		log.Info("🔎 [AUDIT] Reference audit worker disabled")
		return
	}

	w := worker.NewAuditWorker(services.Runner, services.Catalog, time.Duration(minutes)*time.Minute)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("🔎 [AUDIT] Worker goroutine panic")
			}
		}()
		w.Start(ctx)
	}()
}

// Hàm main
func main() {
	initLogger()
	defer logger.Shutdown()

	InitGlobal()
	defer database.CloseInstance(global.MongoDB_Session)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startAuditWorker(ctx)

	app := InitFiberApp()
	address := ":" + global.ServerConfig.Address
	log := logger.GetAppLogger()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
	}()

	log.WithFields(map[string]interface{}{
		"address":  address,
		"protocol": "HTTP",
	}).Info("Starting server with HTTP")
	if err := app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		log.Errorf("Error in Fiber Listen: %v", err)
	}
}
