// Package reportdto chứa DTO cho domain Report (tra cứu, batch, trạng thái, feed).
package reportdto

import (
	"go.mongodb.org/mongo-driver/bson"

	reportmodels "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/models"
)

// ReportBatchUpdateBody body cho PUT /reports/batch/:batchId
type ReportBatchUpdateBody struct {
	Fields map[string]interface{} `json:"fields" validate:"required,min=1,dive,keys,field_path,endkeys"` // Các field $set lên mọi document của batch
}

// ReportStatusBody body cho PUT /reports/id/:id/status (chỉ SENT / CONFIRMED)
type ReportStatusBody struct {
	Status string `json:"status" validate:"required,report_status"`
}

// ReportPagingQuery query phân trang chung
type ReportPagingQuery struct {
	Page  int64 `query:"page"`  // < 1 = trang 1
	Limit int64 `query:"limit"` // <= 0 = mặc định, tối đa 100
}

// ReportFeedQuery query cho GET /reports/feed
type ReportFeedQuery struct {
	OwnerID  string `query:"ownerId" validate:"required,no_xss,no_operator"`
	ScopeID  string `query:"scopeId" validate:"omitempty,no_xss,no_operator"` // Rỗng = không lọc scope
	Page     int64  `query:"page"`
	Limit    int64  `query:"limit"`
	Strategy string `query:"strategy" validate:"omitempty,oneof=pipeline fanout"` // Rỗng = FEED_STRATEGY
}

// ReportBackfillQuery là query của POST /reports/status/backfill
type ReportBackfillQuery struct {
	Limit int64 `query:"limit" validate:"omitempty,min=1,max=500"` // Số document tối đa mỗi provider
}

// ReportResolutionResponse là kết quả tra cứu một báo cáo
type ReportResolutionResponse struct {
	Provider string              `json:"provider"`
	Rank     int                 `json:"rank"`
	Report   reportmodels.Report `json:"report"`
	Document bson.M              `json:"document,omitempty"` // Document gốc, chỉ trả khi ?raw=true
}
