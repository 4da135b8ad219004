package global

import (
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mloperacde/cdeapp-planning-sub010/config"
)

// Các biến toàn cục, khởi tạo một lần khi process start
var (
	ServerConfig    *config.Configuration // Cấu hình server
	MongoDB_Session *mongo.Client         // Kết nối MongoDB dùng chung
)
