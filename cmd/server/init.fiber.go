package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/config"
	apirouter "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/router"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
)

// healthPath được bỏ qua bởi rate limit và recover
const healthPath = "/api/v1/system/health"

// errorHandler trả mọi lỗi chưa được handler xử lý theo envelope chuẩn
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	errorCode := common.ErrCodeInternalServer.Code

	var fe *fiber.Error
	var ce *common.Error
	switch {
	case errors.As(err, &ce):
		code = ce.StatusCode
		message = ce.Message
		errorCode = ce.Code.Code
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
		// Map HTTP status code to error code
		switch code {
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
			errorCode = common.ErrCodeValidationInput.Code
		case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
			errorCode = common.ErrCodeDatabaseQuery.Code
		case fiber.StatusTooManyRequests:
			errorCode = common.ErrCodeRateLimit.Code
		}
	}

	if code >= fiber.StatusInternalServerError {
		logger.WithRequest(c).WithFields(map[string]interface{}{
			"code":      code,
			"errorCode": errorCode,
			"message":   message,
		}).WithError(err).Error("Request error")
	}

	return c.Status(code).JSON(fiber.Map{
		"code":    errorCode,
		"message": message,
		"status":  "error",
	})
}

// InitFiberApp khởi tạo ứng dụng Fiber với các middleware cần thiết rồi đăng ký routes
func InitFiberApp(cfg *config.Configuration, regs ...apirouter.RegisterFunc) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		// =========================================
		// 1. CẤU HÌNH CƠ BẢN
		// =========================================
		AppName:       "ValueTech Report API",
		ServerHeader:  "ValueTech Report API",
		StrictRouting: true, // /foo và /foo/ là khác nhau
		CaseSensitive: true, // /Foo và /foo là khác nhau
		UnescapePath:  true, // Tự động decode URL-encoded paths

		// =========================================
		// 2. CẤU HÌNH PERFORMANCE
		// =========================================
		BodyLimit:       4 * 1024 * 1024, // Max size của request body (4MB)
		Concurrency:     256 * 1024,      // Số lượng goroutines tối đa
		ReadBufferSize:  4096,            // Buffer size cho request reading
		WriteBufferSize: 4096,            // Buffer size cho response writing

		// =========================================
		// 3. CẤU HÌNH TIMEOUT
		// =========================================
		ReadTimeout:  15 * time.Second,  // Timeout đọc request
		WriteTimeout: 30 * time.Second,  // Timeout ghi response
		IdleTimeout:  120 * time.Second, // Timeout cho idle connections

		// =========================================
		// 4. CẤU HÌNH ERROR HANDLING
		// =========================================
		ErrorHandler: errorHandler,
	})

	// =========================================
	// MIDDLEWARE STACK
	// =========================================

	// 1. Request ID Middleware - Tạo ID duy nhất cho mỗi request để trace
	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return fmt.Sprintf("%d", time.Now().UnixNano())
		},
	}))

	// 2. CORS Middleware - đặt trước các middleware khác để xử lý preflight
	var allowOrigins []string
	if cfg.CORS_Origins == "*" || cfg.CORS_Origins == "" {
		allowOrigins = []string{"*"}
	} else {
		for _, origin := range strings.Split(cfg.CORS_Origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowOrigins = append(allowOrigins, origin)
			}
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Request-ID",
			"X-Requested-With",
			"X-Owner-ID",
			"X-Scope-ID",
		},
		// Wildcard origin không đi cùng credentials
		AllowCredentials: cfg.CORS_AllowCredentials && allowOrigins[0] != "*",
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		MaxAge:           24 * 60 * 60, // Thời gian cache preflight requests (24 giờ)
	}))

	// 3. Security Headers Middleware
	app.Use(func(c fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	})

	// 4. Rate Limiting Middleware - chỉ bật khi Enabled và Max > 0
	log := logger.GetAppLogger()
	if cfg.RateLimit_Enabled && cfg.RateLimit_Max > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit_Max,
			Expiration: time.Duration(cfg.RateLimit_Window) * time.Second,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP() // Giới hạn theo IP
			},
			LimitReached: func(c fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"code":    common.ErrCodeRateLimit.Code,
					"message": "Quá nhiều yêu cầu, vui lòng thử lại sau",
					"status":  "error",
				})
			},
			Next: func(c fiber.Ctx) bool {
				// Bỏ qua rate limit cho health check và preflight
				return c.Path() == healthPath || c.Method() == fiber.MethodOptions
			},
		}))
		log.Infof("Rate limiting enabled: %d requests per %d seconds", cfg.RateLimit_Max, cfg.RateLimit_Window)
	} else {
		log.Info("Rate limiting disabled")
	}

	// 5. Recover Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			logger.WithRequest(c).WithField("panic", e).Error("Panic recovered")
		},
	}))

	if err := apirouter.SetupRoutes(app, regs...); err != nil {
		return nil, err
	}
	return app, nil
}
