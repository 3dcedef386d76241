package basehdl

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/config"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/global"
)

// SystemHandler xử lý các route liên quan đến system operations
type SystemHandler struct {
	pingTimeout time.Duration
}

// NewSystemHandler tạo một instance mới của SystemHandler
func NewSystemHandler() (*SystemHandler, error) {
	return &SystemHandler{pingTimeout: 2 * time.Second}, nil
}

// HandleHealth kiểm tra tình trạng hệ thống
// @Summary Kiểm tra tình trạng hệ thống
// @Description Kiểm tra trạng thái của API, store và danh sách provider
// @Produce json
// @Success 200 {object} map[string]interface{} "Hệ thống hoạt động bình thường"
// @Failure 503 {object} map[string]interface{} "Hệ thống đang gặp sự cố"
// @Router /system/health [get]
func (h *SystemHandler) HandleHealth(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.pingTimeout)
	defer cancel()

	services := fiber.Map{"api": "ok"}
	healthData := fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"services":  services,
	}

	if global.Providers != nil {
		healthData["providers"] = global.Providers.Names()
	} else {
		healthData["status"] = "degraded"
		services["providers"] = "not_initialized"
	}

	// Kiểm tra MongoDB connection
	switch {
	case global.MongoDB_Session != nil:
		if err := global.MongoDB_Session.Ping(ctx, nil); err != nil {
			healthData["status"] = "degraded"
			services["database"] = "error"
			healthData["database_error"] = err.Error()
			return JSONResponse(c, common.StatusServiceUnavailable, fiber.Map{
				"code":    common.StatusServiceUnavailable,
				"message": "Hệ thống đang gặp sự cố",
				"data":    healthData,
				"status":  "error",
			})
		}
		services["database"] = "ok"
	case global.MongoDB_ServerConfig != nil && global.MongoDB_ServerConfig.StoreDriver == config.StoreDriverMemory:
		services["database"] = "memory"
	default:
		healthData["status"] = "degraded"
		services["database"] = "not_initialized"
	}

	return JSONResponse(c, common.StatusOK, fiber.Map{
		"code":    common.StatusOK,
		"message": common.MsgSuccess,
		"data":    healthData,
		"status":  "success",
	})
}
