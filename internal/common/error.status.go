package common

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// HTTP Status Code Constants
const (
	// Success Codes (2xx)
	StatusOK       = 200 // Thành công
	StatusAccepted = 202 // Yêu cầu được chấp nhận

	// Client Error Codes (4xx)
	StatusBadRequest      = 400 // Yêu cầu không hợp lệ
	StatusNotFound        = 404 // Không tìm thấy tài nguyên
	StatusConflict        = 409 // Xung đột dữ liệu
	StatusTooManyRequests = 429 // Quá nhiều yêu cầu

	// Server Error Codes (5xx)
	StatusInternalServerError = 500 // Lỗi server
	StatusBadGateway          = 502 // Lỗi từ collection phía sau
	StatusServiceUnavailable  = 503 // Dịch vụ không khả dụng
	StatusGatewayTimeout      = 504 // Hết thời gian chờ
)

// Response Messages
const (
	MsgSuccess         = "Thao tác thành công"
	MsgNotFound        = "Không tìm thấy tài nguyên"
	MsgInternalError   = "Lỗi hệ thống"
	MsgValidationError = "Dữ liệu không hợp lệ"
	MsgReportNotFound  = "Báo cáo không tồn tại"
)

// ErrorCode định nghĩa mã lỗi chi tiết
type ErrorCode struct {
	Code        string // Mã lỗi (ví dụ: DB_002)
	Category    string // Phân loại lỗi (ví dụ: Database)
	SubCategory string // Phân loại con (ví dụ: Query)
	Description string // Mô tả chi tiết
}

// Định nghĩa các mã lỗi theo hệ thống phân cấp
var (
	// System Errors (SYS_xxx)
	ErrCodeInternalServer = ErrorCode{
		Code:        "SYS_001",
		Category:    "System",
		SubCategory: "Internal",
		Description: "Lỗi hệ thống nội bộ",
	}

	ErrCodeRateLimit = ErrorCode{
		Code:        "SYS_002",
		Category:    "System",
		SubCategory: "RateLimit",
		Description: "Vượt quá giới hạn số request",
	}

	// Validation Errors (VAL_xxx)
	ErrCodeValidationInput = ErrorCode{
		Code:        "VAL_001",
		Category:    "Validation",
		SubCategory: "Input",
		Description: "Lỗi dữ liệu đầu vào",
	}

	ErrCodeValidationFormat = ErrorCode{
		Code:        "VAL_002",
		Category:    "Validation",
		SubCategory: "Format",
		Description: "Lỗi định dạng dữ liệu",
	}

	ErrCodeValidationIdentifier = ErrorCode{
		Code:        "VAL_003",
		Category:    "Validation",
		SubCategory: "Identifier",
		Description: "Định danh không hợp lệ",
	}

	// Database Errors (DB_xxx)
	ErrCodeDatabase = ErrorCode{
		Code:        "DB",
		Category:    "Database",
		SubCategory: "General",
		Description: "Lỗi cơ sở dữ liệu chung",
	}

	ErrCodeDatabaseConnection = ErrorCode{
		Code:        "DB_001",
		Category:    "Database",
		SubCategory: "Connection",
		Description: "Lỗi kết nối cơ sở dữ liệu",
	}

	ErrCodeDatabaseQuery = ErrorCode{
		Code:        "DB_002",
		Category:    "Database",
		SubCategory: "Query",
		Description: "Lỗi truy vấn dữ liệu",
	}

	// Provider Errors (PRV_xxx) - lỗi của một collection cụ thể trong registry
	ErrCodeProvider = ErrorCode{
		Code:        "PRV_001",
		Category:    "Provider",
		SubCategory: "Call",
		Description: "Lỗi khi gọi một provider",
	}

	// Batch Errors (BATCH_xxx)
	ErrCodeBatchUpdate = ErrorCode{
		Code:        "BATCH_001",
		Category:    "Batch",
		SubCategory: "Update",
		Description: "Cập nhật batch trên nhiều collection thất bại",
	}

	// Business Logic Errors (BIZ_xxx)
	ErrCodeBusinessState = ErrorCode{
		Code:        "BIZ_001",
		Category:    "Business",
		SubCategory: "State",
		Description: "Lỗi trạng thái nghiệp vụ",
	}
)

// Error định nghĩa cấu trúc lỗi chi tiết
type Error struct {
	Code       ErrorCode // Mã lỗi chi tiết
	Message    string    // Thông báo lỗi
	StatusCode int       // HTTP status code
	Details    any       // Thông tin chi tiết thêm về lỗi
	Cause      error     // Lỗi gốc (nếu có), hỗ trợ errors.Is / errors.As
}

// Error trả về message của lỗi
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap trả về lỗi gốc
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is so sánh theo mã lỗi và message, để các lỗi tạo lại bằng WithCause vẫn match sentinel
func (e *Error) Is(target error) bool {
	var targetErr *Error
	if !errors.As(target, &targetErr) {
		return false
	}
	return e.Code.Code == targetErr.Code.Code && e.Message == targetErr.Message
}

// WithCause trả về bản sao của lỗi với cause và details mới
func (e *Error) WithCause(cause error, details any) error {
	return &Error{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Details:    details,
		Cause:      cause,
	}
}

// NewError tạo một error mới với đầy đủ thông tin
func NewError(code ErrorCode, message string, statusCode int, details any) error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// Custom errors
var (
	// Validation Errors
	ErrInvalidInput      = NewError(ErrCodeValidationInput, "Dữ liệu đầu vào không hợp lệ", StatusBadRequest, nil)
	ErrInvalidFormat     = NewError(ErrCodeValidationFormat, "Định dạng dữ liệu không hợp lệ", StatusBadRequest, nil)
	ErrRequiredField     = NewError(ErrCodeValidationInput, "Thiếu thông tin bắt buộc", StatusBadRequest, nil)
	ErrInvalidIdentifier = NewError(ErrCodeValidationIdentifier, "Định danh báo cáo không hợp lệ", StatusBadRequest, nil)

	// Database Errors
	ErrNotFound   = NewError(ErrCodeDatabaseQuery, "Không tìm thấy dữ liệu", StatusNotFound, nil)
	ErrDuplicate  = NewError(ErrCodeDatabaseQuery, "Dữ liệu đã tồn tại", StatusConflict, nil)
	ErrConnection = NewError(ErrCodeDatabaseConnection, "Lỗi kết nối cơ sở dữ liệu", StatusServiceUnavailable, nil)

	// Provider / Batch Errors
	ErrProviderFailure   = NewError(ErrCodeProvider, "Lỗi khi truy vấn collection", StatusBadGateway, nil)
	ErrBatchUpdateFailed = NewError(ErrCodeBatchUpdate, "Cập nhật batch thất bại, một phần collection có thể đã được cập nhật; có thể thử lại an toàn", StatusBadGateway, nil)

	// Business Logic Errors
	ErrInvalidState = NewError(ErrCodeBusinessState, "Trạng thái không hợp lệ", StatusBadRequest, nil)
)

// ProviderFailureDetails là Details của ErrProviderFailure / ErrBatchUpdateFailed
type ProviderFailureDetails struct {
	Provider  string `json:"provider"`
	RetrySafe bool   `json:"retrySafe"`
}

// NewProviderError bọc lỗi của một provider thành ErrProviderFailure
func NewProviderError(provider string, cause error) error {
	return ErrProviderFailure.(*Error).WithCause(cause, ProviderFailureDetails{Provider: provider})
}

// NewBatchUpdateError bọc lỗi của một provider thành ErrBatchUpdateFailed (luôn retry-safe)
func NewBatchUpdateError(provider string, cause error) error {
	return ErrBatchUpdateFailed.(*Error).WithCause(cause, ProviderFailureDetails{Provider: provider, RetrySafe: true})
}

// MongoDB Error Messages
const (
	MsgMongoConnection = "Lỗi kết nối MongoDB"
	MsgMongoNetwork    = "Lỗi mạng khi kết nối MongoDB"
	MsgMongoTimeout    = "Kết nối MongoDB bị timeout"
	MsgMongoQuery      = "Lỗi truy vấn MongoDB"
	MsgMongoWrite      = "Lỗi ghi dữ liệu MongoDB"
	MsgMongoDuplicate  = "Dữ liệu trùng lặp trong MongoDB"
	MsgMongoSystem     = "Lỗi hệ thống MongoDB"
)

// MongoDB Specific Errors
var (
	ErrMongoConnection = NewError(ErrCodeDatabaseConnection, MsgMongoConnection, StatusServiceUnavailable, nil)
	ErrMongoNetwork    = NewError(ErrCodeDatabaseConnection, MsgMongoNetwork, StatusServiceUnavailable, nil)
	ErrMongoTimeout    = NewError(ErrCodeDatabaseConnection, MsgMongoTimeout, StatusGatewayTimeout, nil)
	ErrMongoQuery      = NewError(ErrCodeDatabaseQuery, MsgMongoQuery, StatusInternalServerError, nil)
	ErrMongoWrite      = NewError(ErrCodeDatabaseQuery, MsgMongoWrite, StatusInternalServerError, nil)
	ErrMongoDuplicate  = NewError(ErrCodeDatabaseQuery, MsgMongoDuplicate, StatusConflict, nil)
	ErrMongoSystem     = NewError(ErrCodeDatabase, MsgMongoSystem, StatusInternalServerError, nil)
)

// ConvertMongoError chuyển đổi lỗi MongoDB sang lỗi hệ thống.
// Lỗi gốc được giữ lại trong Cause, nên errors.Is(err, context.DeadlineExceeded) vẫn hoạt động.
func ConvertMongoError(err error) error {
	if err == nil {
		return nil
	}

	// Lỗi đã được chuẩn hóa thì giữ nguyên
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}

	var mongoErr mongo.CommandError
	if errors.As(err, &mongoErr) {
		switch {
		case mongoErr.Code >= 100 && mongoErr.Code < 200:
			return ErrMongoConnection.(*Error).WithCause(err, nil)
		case mongoErr.Code >= 300 && mongoErr.Code < 400:
			return ErrMongoQuery.(*Error).WithCause(err, nil)
		case mongoErr.Code >= 400 && mongoErr.Code < 500:
			return ErrMongoWrite.(*Error).WithCause(err, nil)
		}
	}

	if mongo.IsDuplicateKeyError(err) {
		return ErrMongoDuplicate.(*Error).WithCause(err, nil)
	}
	if mongo.IsNetworkError(err) {
		return ErrMongoNetwork.(*Error).WithCause(err, nil)
	}
	if mongo.IsTimeout(err) {
		return ErrMongoTimeout.(*Error).WithCause(err, nil)
	}

	return NewError(ErrCodeDatabase, "Lỗi tương tác với cơ sở dữ liệu", StatusInternalServerError, nil).(*Error).WithCause(err, nil)
}

// StatusCodeOf trả về HTTP status code tương ứng với lỗi
func StatusCodeOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return StatusInternalServerError
}
