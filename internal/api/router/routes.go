package router

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	basehdl "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/base/handler"
)

// ============================================================================
// CÁCH ĐĂNG KÝ MIDDLEWARE TRÊN FIBER V3
// ============================================================================
//
// Middleware truyền trực tiếp vào route (router.Get(path, mw, handler)) không được gọi
// ổn định trên fiber v3 beta. Luôn đăng ký qua RegisterRouteWithMiddleware:
//
//    ownerMiddleware := middleware.OwnerContextMiddleware()
//    RegisterRouteWithMiddleware(router, "/reports", "GET", "/feed", []fiber.Handler{ownerMiddleware}, handler)
//
// Middleware được gắn qua .Use() của group nên áp dụng cho mọi route cùng prefix.
//
// ============================================================================

// Router quản lý việc định tuyến cho API
type Router struct {
	app *fiber.App
}

// RoutePrefix chứa các prefix của API
type RoutePrefix struct {
	Base string // Prefix cơ bản (/api)
	V1   string // Prefix cho API version 1 (/api/v1)
}

// NewRoutePrefix tạo prefix mặc định
func NewRoutePrefix() RoutePrefix {
	base := "/api"
	return RoutePrefix{
		Base: base,
		V1:   base + "/v1",
	}
}

// NewRouter tạo router gắn với fiber app
func NewRouter(app *fiber.App) *Router {
	return &Router{
		app: app,
	}
}

// App trả về fiber app của router
func (r *Router) App() *fiber.App {
	return r.app
}

// RegisterRouteWithMiddleware đăng ký một route, middleware gắn qua .Use() của group prefix
func RegisterRouteWithMiddleware(router fiber.Router, prefix string, method string, path string, middlewares []fiber.Handler, handler fiber.Handler) {
	routeGroup := router.Group(prefix)
	for _, mw := range middlewares {
		routeGroup.Use(mw)
	}

	switch strings.ToUpper(method) {
	case fiber.MethodGet:
		routeGroup.Get(path, handler)
	case fiber.MethodPost:
		routeGroup.Post(path, handler)
	case fiber.MethodPut:
		routeGroup.Put(path, handler)
	case fiber.MethodPatch:
		routeGroup.Patch(path, handler)
	case fiber.MethodDelete:
		routeGroup.Delete(path, handler)
	}
}

// RegisterSystemRoutes đăng ký các route hệ thống (health)
func RegisterSystemRoutes(v1 fiber.Router, r *Router) error {
	systemHandler, err := basehdl.NewSystemHandler()
	if err != nil {
		return err
	}
	RegisterRouteWithMiddleware(v1, "/system", "GET", "/health", nil, systemHandler.HandleHealth)
	return nil
}

// RegisterFunc là hàm đăng ký route của một domain
type RegisterFunc func(v1 fiber.Router, r *Router) error

// SetupRoutes tạo group /api/v1 và gọi lần lượt các RegisterFunc
func SetupRoutes(app *fiber.App, regs ...RegisterFunc) error {
	prefix := NewRoutePrefix()
	v1 := app.Group(prefix.V1)
	r := NewRouter(app)
	for _, reg := range regs {
		if err := reg(v1, r); err != nil {
			return err
		}
	}
	return nil
}
