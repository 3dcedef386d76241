package models

import (
	"fmt"
	"math"
	"strings"
)

// ReportStatus là trạng thái vòng đời ở mức báo cáo
type ReportStatus string

const (
	StatusNew        ReportStatus = "NEW"        // Chưa có mã báo cáo từ hệ thống bên ngoài
	StatusIncomplete ReportStatus = "INCOMPLETE" // Đã có mã, còn tài sản chưa hoàn tất (hoặc không có tài sản)
	StatusComplete   ReportStatus = "COMPLETE"   // Đã có mã, mọi tài sản đã hoàn tất
	StatusSent       ReportStatus = "SENT"       // Đã gửi, do sự kiện bên ngoài đặt trực tiếp
	StatusConfirmed  ReportStatus = "CONFIRMED"  // Đã xác nhận, do sự kiện bên ngoài đặt trực tiếp
)

// AllStatuses liệt kê mọi trạng thái hợp lệ
var AllStatuses = []ReportStatus{StatusNew, StatusIncomplete, StatusComplete, StatusSent, StatusConfirmed}

// GuardedStatuses là các trạng thái mà việc tính lại từ tài sản không được ghi đè
var GuardedStatuses = []ReportStatus{StatusSent, StatusConfirmed}

// ParseStatus chuẩn hóa chuỗi trạng thái (không phân biệt hoa thường)
func ParseStatus(s string) (ReportStatus, error) {
	st := ReportStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range AllStatuses {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("trạng thái không hợp lệ: %q", s)
}

// IsGuarded cho biết trạng thái có phải checkpoint do bên ngoài xác nhận không
func (s ReportStatus) IsGuarded() bool {
	return s == StatusSent || s == StatusConfirmed
}

// IsDerived cho biết trạng thái có thuộc nhóm được tính từ tài sản không
func (s ReportStatus) IsDerived() bool {
	return s == StatusNew || s == StatusIncomplete || s == StatusComplete
}

// IsDirect cho biết trạng thái có được phép đặt trực tiếp không
func (s ReportStatus) IsDirect() bool {
	return s.IsGuarded()
}

// SubmitState là trạng thái nộp của một tài sản: 0 = chưa xong, 1 = đã xong
type SubmitState int

const (
	SubmitIncomplete SubmitState = 0
	SubmitComplete   SubmitState = 1
)

// completeWords là các giá trị chuỗi được coi là "đã xong" ở các collection cũ
var completeWords = map[string]bool{
	"1": true, "true": true, "yes": true, "complete": true, "completed": true,
	"done": true, "submitted": true,
}

// ParseSubmitState chuẩn hóa giá trị submitState: hỗ trợ số 0/1, bool và chuỗi tương đương.
// Giá trị không nhận dạng được (kể cả nil) được coi là chưa xong.
func ParseSubmitState(v interface{}) SubmitState {
	switch s := v.(type) {
	case bool:
		if s {
			return SubmitComplete
		}
	case int:
		if s == 1 {
			return SubmitComplete
		}
	case int32:
		if s == 1 {
			return SubmitComplete
		}
	case int64:
		if s == 1 {
			return SubmitComplete
		}
	case float64:
		if !math.IsNaN(s) && s == 1 {
			return SubmitComplete
		}
	case string:
		if completeWords[strings.ToLower(strings.TrimSpace(s))] {
			return SubmitComplete
		}
	case SubmitState:
		return s
	}
	return SubmitIncomplete
}

// DeriveStatus tính trạng thái từ (mã báo cáo ngoài, trạng thái các tài sản).
// Là hàm thuần: không đọc trạng thái đã lưu, được gọi lại mỗi lần cần.
func DeriveStatus(externalID string, assets []SubmitState) ReportStatus {
	if strings.TrimSpace(externalID) == "" {
		return StatusNew
	}
	if len(assets) == 0 {
		return StatusIncomplete
	}
	for _, a := range assets {
		if a != SubmitComplete {
			return StatusIncomplete
		}
	}
	return StatusComplete
}
