package logger

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ContextKey là type cho context keys
type ContextKey string

const (
	// RequestIDKey là key cho request ID trong context
	RequestIDKey ContextKey = "requestID"
	// UserIDKey là key cho user ID trong context
	UserIDKey ContextKey = "userID"
)

// WithContext trả về logger entry kèm các fields lấy từ context
func WithContext(ctx context.Context) *logrus.Entry {
	entry := GetAppLogger().WithContext(ctx)
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}
	if userID := ctx.Value(UserIDKey); userID != nil {
		entry = entry.WithField("user_id", userID)
	}
	return entry
}

// ContextWithRequestID gắn request ID vào context để các service log kèm
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID lấy request ID từ Fiber (Locals của middleware requestid hoặc header)
func RequestID(c fiber.Ctx) string {
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		return rid
	}
	if rid := c.Get("X-Request-ID"); rid != "" {
		return rid
	}
	return c.GetRespHeader("X-Request-ID")
}

// WithRequest trả về logger entry với thông tin request từ Fiber
func WithRequest(c fiber.Ctx) *logrus.Entry {
	entry := GetAppLogger().WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"ip":     c.IP(),
	})
	if rid := RequestID(c); rid != "" {
		entry = entry.WithField("request_id", rid)
	}
	return entry
}

// WithFields trả về logger entry với các fields bổ sung
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return GetAppLogger().WithFields(logrus.Fields(fields))
}

// WithError trả về logger entry với error
func WithError(err error) *logrus.Entry {
	return GetAppLogger().WithError(err)
}

// WithModule trả về logger entry với module name (ví dụ: "resolver", "feed")
func WithModule(module string) *logrus.Entry {
	return GetAppLogger().WithField("module", module)
}

// WithCollection trả về logger entry với collection name
func WithCollection(collection string) *logrus.Entry {
	return GetAppLogger().WithField("collection", collection)
}

// WithModuleContext kết hợp WithContext và module
func WithModuleContext(ctx context.Context, module string) *logrus.Entry {
	return WithContext(ctx).WithField("module", module)
}
