// Package logger khởi tạo các logger logrus theo tên (app, audit, error),
// ghi ra stdout và/hoặc file xoay vòng bằng lumberjack qua AsyncHook.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// loggers lưu các logger instances theo tên
	loggers   = make(map[string]*logrus.Logger)
	hooks     []*AsyncHook
	loggersMu sync.Mutex

	// config chứa cấu hình logging
	config *LogConfig
)

// Init khởi tạo hệ thống logging với cấu hình (nil = DefaultConfig)
func Init(cfg *LogConfig) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	config = cfg

	if cfg.writesFile() {
		if err := os.MkdirAll(cfg.LogPath, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
	}
	return nil
}

// GetLogger trả về logger theo tên, tạo mới nếu chưa có
func GetLogger(name string) *logrus.Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if config == nil {
		config = DefaultConfig()
	}

	if l, ok := loggers[name]; ok {
		return l
	}

	l := createLogger(name)
	loggers[name] = l
	return l
}

// createLogger tạo một logger mới với cấu hình hiện tại
func createLogger(name string) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "file",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				s := strings.Split(f.Function, ".")
				return s[len(s)-1], fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			},
		})
	}

	// ⚠️ Không dùng MultiWriter: file I/O chậm sẽ block cả stdout.
	// Tất cả writers đi qua AsyncHook, output chính bị discard.
	var writers []io.Writer
	if config.writesFile() {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFilePath(name),
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}
	if config.writesStdout() {
		writers = append(writers, os.Stdout)
	}
	if len(writers) > 0 {
		hook := NewAsyncHookWithWriters(writers, config.BufferSize)
		hooks = append(hooks, hook)
		l.AddHook(hook)
		l.SetOutput(io.Discard)
	}

	l.SetReportCaller(true)
	return l
}

// logFilePath trả về đường dẫn file log cho logger name
func logFilePath(name string) string {
	var filename string
	switch name {
	case "app":
		filename = config.AppFile
	case "audit":
		filename = config.AuditFile
	case "error":
		filename = config.ErrorFile
	default:
		filename = fmt.Sprintf("%s.log", name)
	}
	return filepath.Join(config.LogPath, filename)
}

// Shutdown flush và đóng tất cả async hooks (gọi khi server dừng)
func Shutdown() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, h := range hooks {
		_ = h.Close()
	}
	hooks = nil
}

// GetAppLogger trả về logger chính của ứng dụng
func GetAppLogger() *logrus.Logger {
	return GetLogger("app")
}

// GetAuditLogger trả về logger cho audit (batch update, ghi trạng thái)
func GetAuditLogger() *logrus.Logger {
	return GetLogger("audit")
}

// GetErrorLogger trả về logger cho errors
func GetErrorLogger() *logrus.Logger {
	return GetLogger("error")
}
