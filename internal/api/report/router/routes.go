// Package router đăng ký các route thuộc domain Report: tra cứu, batch, trạng thái, feed.
package router

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/middleware"
	reporthdl "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/handler"
	reportsvc "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/service"
	apirouter "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/router"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/global"
)

// Register đăng ký route report lên v1, dùng ReportService và cấu hình toàn cục
func Register(v1 fiber.Router, r *apirouter.Router) error {
	var timeout time.Duration
	if global.MongoDB_ServerConfig != nil {
		timeout = global.MongoDB_ServerConfig.RequestTimeout()
	}
	return RegisterWithService(global.ReportService, timeout)(v1, r)
}

// RegisterWithService trả về RegisterFunc gắn với một ReportService cụ thể
func RegisterWithService(svc *reportsvc.ReportService, requestTimeout time.Duration) apirouter.RegisterFunc {
	return func(v1 fiber.Router, r *apirouter.Router) error {
		reportHandler, err := reporthdl.NewReportHandler(svc, requestTimeout)
		if err != nil {
			return fmt.Errorf("create report handler: %w", err)
		}

		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "GET", "/external/:externalId", nil, reportHandler.HandleResolveExternal)
		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "GET", "/id/:id", nil, reportHandler.HandleResolveInternal)
		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "GET", "/id/:id/status", nil, reportHandler.HandleEvaluateStatus)
		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "PUT", "/id/:id/status", nil, reportHandler.HandleSetStatus)
		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "POST", "/id/:id/status/derive", nil, reportHandler.HandleDeriveStatus)
		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "POST", "/status/backfill", nil, reportHandler.HandleBackfillStatus)
		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "GET", "/batch/:batchId", nil, reportHandler.HandleListBatch)
		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "PUT", "/batch/:batchId", nil, reportHandler.HandleBatchUpdate)

		ownerContextMiddleware := middleware.OwnerContextMiddleware()
		apirouter.RegisterRouteWithMiddleware(v1, "/reports", "GET", "/feed", []fiber.Handler{ownerContextMiddleware}, reportHandler.HandleFeed)
		return nil
	}
}
