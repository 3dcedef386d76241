package global

import (
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/config"
	reportsvc "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/service"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/registry"
)

// Các biến toàn cục
var Validate *validator.Validate               // Biến để xác thực dữ liệu
var MongoDB_Session *mongo.Client              // Phiên kết nối tới MongoDB (nil khi STORE_DRIVER=memory)
var MongoDB_ServerConfig *config.Configuration // Cấu hình của server

// Các Registry
var RegistryCollections = registry.NewRegistry[*mongo.Collection]() // Registry chứa các collections báo cáo

// Domain report
var Providers *provider.Registry           // Danh sách provider theo thứ tự ưu tiên
var ReportService *reportsvc.ReportService // Service tra cứu, batch, trạng thái, feed
