// Package models chứa mô hình logic của báo cáo định giá, độc lập với collection vật lý.
package models

// Asset là một tài sản nhúng trong báo cáo. Thứ tự trong báo cáo có ý nghĩa (vị trí/trang).
type Asset struct {
	ID          string      `json:"id,omitempty"`
	Position    int         `json:"position"`
	SubmitState SubmitState `json:"submitState"`
}

// Report là báo cáo logic, dựng từ document của bất kỳ provider nào
type Report struct {
	ID         string       `json:"id"`                // Định danh nội bộ (_id)
	ExternalID string       `json:"reportId"`          // Mã báo cáo do hệ thống ngoài cấp, có thể rỗng
	BatchID    string       `json:"batchId,omitempty"` // Chỉ có ở các pipeline nhập theo batch
	Title      string       `json:"title,omitempty"`
	OwnerID    string       `json:"ownerId,omitempty"`
	ScopeID    string       `json:"scopeId,omitempty"` // Văn phòng / công ty
	Status     ReportStatus `json:"status,omitempty"`  // Trạng thái đang lưu
	Assets     []Asset      `json:"assets"`
	CreatedAt  int64        `json:"createdAt,omitempty"` // Unix milli
	UpdatedAt  int64        `json:"updatedAt,omitempty"` // Unix milli
	Provider   string       `json:"provider"`
}

// SubmitStates trả về trạng thái nộp của các tài sản theo đúng thứ tự
func (r *Report) SubmitStates() []SubmitState {
	out := make([]SubmitState, len(r.Assets))
	for i, a := range r.Assets {
		out[i] = a.SubmitState
	}
	return out
}

// DerivedStatus tính trạng thái suy ra của báo cáo
func (r *Report) DerivedStatus() ReportStatus {
	return DeriveStatus(r.ExternalID, r.SubmitStates())
}

// FeedItem là một dòng trong feed hợp nhất, đã chuẩn hóa về cùng một shape
type FeedItem struct {
	ID         string       `json:"id"`
	ExternalID string       `json:"reportId"`
	Title      string       `json:"title"`
	OwnerID    string       `json:"ownerId"`
	ScopeID    string       `json:"scopeId,omitempty"`
	Status     ReportStatus `json:"status,omitempty"`
	CreatedAt  int64        `json:"createdAt"` // Khóa sắp xếp đã chuẩn hóa (Unix milli)
	UpdatedAt  int64        `json:"updatedAt,omitempty"`
	Provider   string       `json:"provider"`
}
