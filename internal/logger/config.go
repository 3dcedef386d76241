package logger

import (
	"os"
	"strings"

	"github.com/caarlos0/env"
)

// LogConfig chứa cấu hình cho hệ thống logging
type LogConfig struct {
	// Log Level: trace, debug, info, warn, error, fatal
	Level string `env:"LOG_LEVEL"`

	// Log Format: json, text
	Format string `env:"LOG_FORMAT"`

	// Log Output: file, stdout, both
	Output string `env:"LOG_OUTPUT" envDefault:"stdout"`

	// Log Rotation
	MaxSize    int  `env:"LOG_MAX_SIZE" envDefault:"100"`  // MB
	MaxBackups int  `env:"LOG_MAX_BACKUPS" envDefault:"7"` // Số file cũ giữ lại
	MaxAge     int  `env:"LOG_MAX_AGE" envDefault:"7"`     // Số ngày giữ lại
	Compress   bool `env:"LOG_COMPRESS" envDefault:"true"` // Nén file cũ

	// Buffer của async hook
	BufferSize int `env:"LOG_BUFFER_SIZE" envDefault:"1000"`

	// Log Paths
	LogPath   string `env:"LOG_PATH" envDefault:"./logs"`
	AppFile   string `env:"LOG_APP_FILE" envDefault:"app.log"`
	AuditFile string `env:"LOG_AUDIT_FILE" envDefault:"audit.log"`
	ErrorFile string `env:"LOG_ERROR_FILE" envDefault:"error.log"`
}

// DefaultConfig trả về cấu hình mặc định, đã override từ environment variables
func DefaultConfig() *LogConfig {
	cfg := &LogConfig{}
	if err := env.Parse(cfg); err != nil {
		cfg = &LogConfig{Output: "stdout", MaxSize: 100, MaxBackups: 7, MaxAge: 7, Compress: true, BufferSize: 1000,
			LogPath: "./logs", AppFile: "app.log", AuditFile: "audit.log", ErrorFile: "error.log"}
	}

	// Level và format mặc định theo môi trường
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}
	if cfg.Level == "" {
		if goEnv == "development" {
			cfg.Level = "debug"
		} else {
			cfg.Level = "info"
		}
	}
	if cfg.Format == "" {
		if goEnv == "development" {
			cfg.Format = "text"
		} else {
			cfg.Format = "json"
		}
	}

	cfg.Level = strings.ToLower(cfg.Level)
	cfg.Format = strings.ToLower(cfg.Format)
	cfg.Output = strings.ToLower(cfg.Output)
	return cfg
}

// writesFile cho biết cấu hình có ghi ra file không
func (c *LogConfig) writesFile() bool {
	return c.Output == "file" || c.Output == "both"
}

// writesStdout cho biết cấu hình có ghi ra stdout không
func (c *LogConfig) writesStdout() bool {
	return c.Output == "stdout" || c.Output == "both"
}
