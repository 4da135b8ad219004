package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mloperacde/cdeapp-planning-sub010/config"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/global"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/initsvc"
	"github.com/mloperacde/cdeapp-planning-sub010/internal/metrics"
)

// Services đã nối dây, dùng bởi router và worker
var services *initsvc.Services

// Hàm khởi tạo các biến toàn cục
func InitGlobal() {
	initValidator()        // Khởi tạo validator
	initConfig()           // Khởi tạo cấu hình server
	initDatabase_MongoDB() // Khởi tạo kết nối database và các service hợp nhất
}

// Hàm khởi tạo validator (đăng ký custom validators: collection_name, field_name, no_xss)
func initValidator() {
	global.InitValidator()
	logrus.Info("Initialized validator")
}

// Hàm khởi tạo cấu hình server
func initConfig() {
	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatalf("Failed to initialize config: %v", err)
	}
	global.ServerConfig = cfg
	logrus.Info("Initialized server config")
}

// Hàm khởi tạo kết nối database, runner hợp nhất và index
func initDatabase_MongoDB() {
	cfg := global.ServerConfig

	client, s, err := initsvc.ConnectMongo(cfg)
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err)
	}
	global.MongoDB_Session = client
	logrus.Info("Connected to MongoDB")

	services, err = initsvc.NewServices(cfg, s, metrics.NewRegistry())
	if err != nil {
		logrus.Fatalf("Failed to initialize reconcile services: %v", err)
	}

	// Khởi tạo các index cho các collection mà job truy vấn
	if err := initsvc.EnsureMongoIndexes(context.Background(), client, cfg, services.Catalog); err != nil {
		logrus.WithError(err).Warn("Failed to ensure reconcile indexes")
	} else {
		logrus.Info("Ensured reconcile indexes")
	}
}
