// Command reconcile chạy quy trình hợp nhất từ dòng lệnh (cron, vận hành thủ công).
//
//	reconcile jobs
//	reconcile run --job machines [--dry-run] [--policy delete|flag|report]
//	reconcile verify --job employees
//
// Exit code: 0 thành công, 1 run dừng giữa chừng, 2 còn tham chiếu hỏng.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mloperacde/cdeapp-planning-sub010/internal/global"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/logger"
)

func main() {
	if err := logger.Init(nil); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
	}
	global.InitValidator()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand(connectMongo).ExecuteContext(ctx)
	stop()
	logger.Shutdown()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}
