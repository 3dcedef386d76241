package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	reportrouter "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/router"
	apirouter "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/router"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/database"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/global"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/worker"
)

// shutdownTimeout là thời gian tối đa chờ request đang chạy khi tắt server
const shutdownTimeout = 10 * time.Second

// initLogger khởi tạo và cấu hình logger cho toàn bộ ứng dụng
func initLogger() {
	// Logger tự đọc biến môi trường LOG_* khi cfg = nil
	if err := logger.Init(nil); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	logger.GetAppLogger().Info("Logger system initialized successfully")
}

// startWorkers chạy các worker nền nếu được bật trong cấu hình
func startWorkers(ctx context.Context) {
	cfg := global.MongoDB_ServerConfig
	if cfg.StatusBackfillInterval() <= 0 {
		logger.GetAppLogger().Info("Status backfill worker disabled")
		return
	}
	w := worker.NewStatusBackfillWorker(global.ReportService.Status, cfg.StatusBackfillInterval(), cfg.StatusBackfill_Batch)
	go w.Start(ctx)
}

// main_thread khởi tạo và chạy Fiber server, dừng êm khi nhận SIGINT / SIGTERM
func main_thread() {
	log := logger.GetAppLogger()
	cfg := global.MongoDB_ServerConfig

	app, err := InitFiberApp(cfg, apirouter.RegisterSystemRoutes, reportrouter.Register)
	if err != nil {
		log.Fatalf("Failed to setup routes: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.WithField("signal", sig.String()).Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
	}()

	address := ":" + cfg.Address
	log.WithFields(map[string]interface{}{
		"address":  address,
		"protocol": "HTTP",
	}).Info("Starting server with HTTP")
	if err := app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		log.Fatalf("Error in Fiber Listen: %v", err)
	}
}

// Hàm main
func main() {
	// Khởi tạo logger
	initLogger()
	defer logger.Shutdown()

	// Khởi tạo các biến toàn cục
	InitGlobal()

	// Khởi tạo registry, provider và service báo cáo
	InitRegistry()

	// Worker nền dừng khi server dừng
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	startWorkers(workerCtx)

	// Chạy Fiber server trên main thread
	main_thread()
	stopWorkers()

	if err := database.CloseInstance(global.MongoDB_Session, shutdownTimeout); err != nil {
		logger.GetAppLogger().WithError(err).Error("Failed to close MongoDB")
	}
}
