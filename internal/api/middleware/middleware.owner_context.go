package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Các key Locals do OwnerContextMiddleware đặt
const (
	LocalOwnerID = "owner_id"
	LocalScopeID = "scope_id"
)

// OwnerContextMiddleware đọc owner / scope mặc định của request từ header
// - X-Owner-ID: id người sở hữu báo cáo
// - X-Scope-ID: văn phòng / công ty (tuỳ chọn)
// Handler ưu tiên query string, header chỉ dùng khi query không có.
func OwnerContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if owner := strings.TrimSpace(c.Get("X-Owner-ID")); owner != "" {
			c.Locals(LocalOwnerID, owner)
		}
		if scope := strings.TrimSpace(c.Get("X-Scope-ID")); scope != "" {
			c.Locals(LocalScopeID, scope)
		}
		return c.Next()
	}
}

// OwnerFromLocals trả về owner / scope đã được middleware đặt (rỗng nếu không có)
func OwnerFromLocals(c fiber.Ctx) (ownerID, scopeID string) {
	ownerID, _ = c.Locals(LocalOwnerID).(string)
	scopeID, _ = c.Locals(LocalScopeID).(string)
	return ownerID, scopeID
}
