package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Các driver lưu trữ
const (
	StoreDriverMongo  = "mongo"  // MongoDB thật
	StoreDriverMemory = "memory" // Store trong bộ nhớ, cho chạy local / demo
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng
type Configuration struct {
	Address               string `env:"ADDRESS" envDefault:"8080"`                  // Cổng server
	StoreDriver           string `env:"STORE_DRIVER" envDefault:"mongo"`            // mongo | memory
	MongoDB_ConnectionURI string `env:"MONGODB_CONNECTION_URI"`                     // URL kết nối cơ sở dữ liệu (bắt buộc khi STORE_DRIVER=mongo)
	MongoDB_DBName_Data   string `env:"MONGODB_DBNAME_DATA" envDefault:"valuetech"` // Tên cơ sở dữ liệu chứa các collection báo cáo
	InitIndexes           bool   `env:"INIT_INDEXES" envDefault:"true"`             // Tạo index cho các collection báo cáo khi khởi động
	ProvidersFile         string `env:"PROVIDERS_FILE"`                             // File YAML khai báo provider (rỗng = danh sách dựng sẵn)

	// Feed / Resolver
	Feed_Strategy           string `env:"FEED_STRATEGY" envDefault:"pipeline"`         // pipeline | fanout
	Feed_FanoutSlack        int64  `env:"FEED_FANOUT_SLACK" envDefault:"0"`            // Dòng dư mỗi provider ở fanout (0 = bằng limit)
	Feed_ProviderTimeoutMs  int    `env:"FEED_PROVIDER_TIMEOUT_MS" envDefault:"3000"`  // Timeout từng provider ở fanout
	Identity_AmbiguityCheck bool   `env:"IDENTITY_AMBIGUITY_CHECK" envDefault:"false"` // Log AmbiguousIdentity khi cùng mã báo cáo ở nhiều provider
	RequestTimeoutMs        int    `env:"REQUEST_TIMEOUT_MS" envDefault:"10000"`       // Deadline cho mỗi request gửi xuống service
	CORS_Origins            string `env:"CORS_ORIGINS" envDefault:"*"`                 // Các origins được phép (phân cách bởi dấu phẩy, * = tất cả)
	CORS_AllowCredentials   bool   `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`   // Cho phép gửi credentials
	RateLimit_Max           int    `env:"RATE_LIMIT_MAX" envDefault:"100"`             // Số request tối đa trong window (0 = disable rate limit)
	RateLimit_Window        int    `env:"RATE_LIMIT_WINDOW" envDefault:"60"`           // Thời gian window (giây)
	RateLimit_Enabled       bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`        // Bật/tắt rate limiting

	// Worker backfill trạng thái
	StatusBackfill_IntervalSec int     `env:"STATUS_BACKFILL_INTERVAL_SEC" envDefault:"0"` // Chu kỳ chạy (0 = tắt worker)
	StatusBackfill_Batch       int64   `env:"STATUS_BACKFILL_BATCH" envDefault:"50"`       // Số document tối đa mỗi provider mỗi lượt
	StatusBackfill_Rate        float64 `env:"STATUS_BACKFILL_RATE" envDefault:"0"`         // Số lần ghi tối đa mỗi giây (0 = không giới hạn)
}

// StatusBackfillInterval trả về chu kỳ worker backfill (0 = tắt)
func (c *Configuration) StatusBackfillInterval() time.Duration {
	return time.Duration(c.StatusBackfill_IntervalSec) * time.Second
}

// FeedProviderTimeout trả về timeout từng provider dạng time.Duration
func (c *Configuration) FeedProviderTimeout() time.Duration {
	return time.Duration(c.Feed_ProviderTimeoutMs) * time.Millisecond
}

// RequestTimeout trả về deadline của request dạng time.Duration (0 = không đặt)
func (c *Configuration) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// Validate kiểm tra các giá trị phụ thuộc nhau
func (c *Configuration) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreDriverMongo:
		if c.MongoDB_ConnectionURI == "" {
			return fmt.Errorf("MONGODB_CONNECTION_URI bắt buộc khi STORE_DRIVER=mongo")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER không hợp lệ: %q", c.StoreDriver)
	}

	c.Feed_Strategy = strings.ToLower(strings.TrimSpace(c.Feed_Strategy))
	if c.Feed_Strategy != "pipeline" && c.Feed_Strategy != "fanout" {
		return fmt.Errorf("FEED_STRATEGY không hợp lệ: %q", c.Feed_Strategy)
	}
	if c.Feed_FanoutSlack < 0 {
		return fmt.Errorf("FEED_FANOUT_SLACK không được âm")
	}
	if c.StatusBackfill_IntervalSec < 0 {
		return fmt.Errorf("STATUS_BACKFILL_INTERVAL_SEC không được âm")
	}
	if c.StatusBackfill_Rate < 0 {
		return fmt.Errorf("STATUS_BACKFILL_RATE không được âm")
	}
	return nil
}

// getEnvPath trả về đường dẫn đến file env dựa trên môi trường
func getEnvPath() string {
	// Mặc định sử dụng môi trường development
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	currentDir, err := os.Getwd()
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể lấy được thư mục hiện tại: %v\n", err)
		return ""
	}

	// Tìm thư mục config/env, đi dần lên thư mục cha
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			return filepath.Join(envDir, fmt.Sprintf("%s.env", env))
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig đọc cấu hình từ file env (nếu có) rồi từ biến môi trường.
// files rỗng thì dùng config/env/<GO_ENV>.env; không có file nào thì chỉ dùng biến môi trường.
func NewConfig(files ...string) *Configuration {
	if len(files) == 0 {
		if envPath := getEnvPath(); envPath != "" {
			files = []string{envPath}
		}
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			fmt.Printf("Bỏ qua file env %s: %v\n", f, err)
			continue
		}
		// godotenv.Load không ghi đè biến môi trường đã có
		if err := godotenv.Load(f); err != nil {
			fmt.Printf("Không thể load file env tại %s: %v\n", f, err)
			return nil
		}
	}

	cfg := Configuration{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Printf("Lỗi khi parse config: %+v\n", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Cấu hình không hợp lệ: %v\n", err)
		return nil
	}
	return &cfg
}
