package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng
type Configuration struct {
	Address               string `env:"ADDRESS" envDefault:"8080" validate:"required"`             // Cổng server
	AdminToken            string `env:"ADMIN_TOKEN"`                                              // Bearer token cho các endpoint quản trị (rỗng = tắt xác thực)
	MongoDB_ConnectionURI string `env:"MONGODB_CONNECTION_URI,required" validate:"required"`      // URL kết nối cơ sở dữ liệu
	MongoDB_DBName_Data   string `env:"MONGODB_DBNAME_DATA,required" validate:"required"`         // Tên cơ sở dữ liệu chứa các entity
	CORS_Origins          string `env:"CORS_ORIGINS" envDefault:"*"`                              // Các origins được phép (phân cách bởi dấu phẩy, * = tất cả)
	CORS_AllowCredentials bool   `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`                // Cho phép gửi credentials
	RateLimit_Max         int    `env:"RATE_LIMIT_MAX" envDefault:"100" validate:"gte=0"`         // Số request tối đa trong window (0 = disable)
	RateLimit_Window      int    `env:"RATE_LIMIT_WINDOW" envDefault:"60" validate:"gte=1"`       // Thời gian window (giây)
	RateLimit_Enabled     bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`                     // Bật/tắt rate limiting

	// Reconcile Configuration
	Reconcile_JobsFile       string `env:"RECONCILE_JOBS_FILE"`                                                  // File YAML định nghĩa job (optional, ghi đè built-in)
	Reconcile_ReadLimit      int    `env:"RECONCILE_READ_LIMIT" envDefault:"2000" validate:"gte=1,lte=100000"`  // Số document tối đa đọc mỗi collection
	Reconcile_BatchSize      int    `env:"RECONCILE_BATCH_SIZE" envDefault:"20" validate:"gte=1,lte=200"`       // Số request song song tối đa mỗi bước
	Reconcile_BrokenPolicy   string `env:"RECONCILE_BROKEN_POLICY" envDefault:"report" validate:"oneof=delete flag report"`
	Reconcile_RunsCollection string `env:"RECONCILE_RUNS_COLLECTION" envDefault:"reconcile_runs"`                // Collection lưu lịch sử run (rỗng = không lưu)
	Audit_IntervalMinutes    int    `env:"AUDIT_INTERVAL_MINUTES" envDefault:"0" validate:"gte=0"`              // Chu kỳ worker kiểm tra tham chiếu (0 = tắt)
}

// getEnvPath trả về đường dẫn đến file env dựa trên môi trường
func getEnvPath() string {
	// Mặc định sử dụng môi trường development
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Tìm thư mục config/env, đi dần lên thư mục cha
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			return filepath.Join(envDir, fmt.Sprintf("%s.env", goEnv))
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig đọc cấu hình từ file env (nếu có) và biến môi trường.
// Không có file env không phải lỗi: biến có thể đến từ môi trường process (docker, systemd).
func NewConfig() (*Configuration, error) {
	if envPath := getEnvPath(); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("không thể load file env tại %s: %w", envPath, err)
			}
		}
	}

	cfg := Configuration{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("lỗi khi parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate kiểm tra các ràng buộc giá trị của cấu hình
func (c *Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config không hợp lệ: %w", err)
	}
	return nil
}
