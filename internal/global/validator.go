package global

import (
	"strings"

	"github.com/go-playground/validator/v10"

	reportmodels "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/models"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/utility"
)

// InitValidator khởi tạo và đăng ký các custom validator
func InitValidator() {
	// Khởi tạo validator
	Validate = validator.New()

	// Đăng ký các custom validator
	_ = Validate.RegisterValidation("no_xss", validateNoXSS)
	_ = Validate.RegisterValidation("no_operator", validateNoOperator)
	_ = Validate.RegisterValidation("field_path", validateFieldPath)
	_ = Validate.RegisterValidation("report_status", validateReportStatus)
	_ = Validate.RegisterValidation("object_id", validateObjectID)
}

// validateNoXSS kiểm tra XSS
func validateNoXSS(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	dangerousPatterns := []string{
		"<script",
		"javascript:",
		"onerror=",
		"onload=",
		"onclick=",
		"eval(",
		"document.cookie",
		"<iframe",
		"<object",
		"<embed",
	}

	value = strings.ToLower(value)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(value, pattern) {
			return false
		}
	}
	return true
}

// validateNoOperator chặn giá trị bắt đầu bằng '$' (toán tử Mongo) trong các id lọc
func validateNoOperator(fl validator.FieldLevel) bool {
	return !strings.HasPrefix(strings.TrimSpace(fl.Field().String()), "$")
}

// validateFieldPath kiểm tra đường dẫn field dạng "a.b.c": không rỗng, không có segment rỗng, không bắt đầu bằng '$'
func validateFieldPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" || strings.HasPrefix(seg, "$") {
			return false
		}
	}
	return true
}

// validateReportStatus chấp nhận mọi trạng thái báo cáo đã biết, không phân biệt hoa thường
func validateReportStatus(fl validator.FieldLevel) bool {
	_, err := reportmodels.ParseStatus(fl.Field().String())
	return err == nil
}

// validateObjectID chấp nhận các dạng ObjectId mà resolver quy đổi được
func validateObjectID(fl validator.FieldLevel) bool {
	_, ok := utility.CoerceObjectID(fl.Field().String())
	return ok
}
