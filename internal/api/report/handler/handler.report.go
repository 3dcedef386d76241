// Package reporthdl chứa HTTP handler cho domain Report: tra cứu, batch, trạng thái, feed hợp nhất.
package reporthdl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	basehdl "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/base/handler"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/middleware"
	reportdto "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/dto"
	reportsvc "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/service"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/global"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
)

// ReportHandler xử lý API báo cáo trên mọi collection
type ReportHandler struct {
	ReportService  *reportsvc.ReportService
	validate       *validator.Validate
	requestTimeout time.Duration
}

// NewReportHandler tạo mới ReportHandler. requestTimeout <= 0 = không đặt deadline riêng.
func NewReportHandler(svc *reportsvc.ReportService, requestTimeout time.Duration) (*ReportHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("ReportService chưa được khởi tạo: %w", common.ErrRequiredField)
	}
	if global.Validate == nil {
		global.InitValidator()
	}
	return &ReportHandler{
		ReportService:  svc,
		validate:       global.Validate,
		requestTimeout: requestTimeout,
	}, nil
}

// requestContext gắn request ID và deadline của request vào context gửi xuống service
func (h *ReportHandler) requestContext(c fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := logger.ContextWithRequestID(c.Context(), logger.RequestID(c))
	if h.requestTimeout > 0 {
		return context.WithTimeout(ctx, h.requestTimeout)
	}
	return context.WithCancel(ctx)
}

func resolutionResponse(res *reportsvc.Resolution, raw bool) reportdto.ReportResolutionResponse {
	out := reportdto.ReportResolutionResponse{
		Provider: res.Provider.Name,
		Rank:     res.Provider.Rank,
		Report:   res.Report,
	}
	if raw {
		out.Document = res.Document
	}
	return out
}

// HandleResolveExternal xử lý GET /reports/external/:externalId
// URL: GET /api/v1/reports/external/R-1001?raw=true
func (h *ReportHandler) HandleResolveExternal(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		ctx, cancel := h.requestContext(c)
		defer cancel()

		res, err := h.ReportService.Resolver.ResolveByExternalID(ctx, c.Params("externalId"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, resolutionResponse(res, c.Query("raw") == "true"), nil)
	})
}

// HandleResolveInternal xử lý GET /reports/id/:id
// id nhận hex 24 ký tự, có thể bọc trong dấu nháy hoặc ObjectId("...")
func (h *ReportHandler) HandleResolveInternal(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		ctx, cancel := h.requestContext(c)
		defer cancel()

		res, err := h.ReportService.Resolver.ResolveByInternalID(ctx, c.Params("id"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, resolutionResponse(res, c.Query("raw") == "true"), nil)
	})
}

// HandleListBatch xử lý GET /reports/batch/:batchId?page=1&limit=10
func (h *ReportHandler) HandleListBatch(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		var q reportdto.ReportPagingQuery
		if err := c.Bind().Query(&q); err != nil {
			return basehdl.HandleValidationError(c, err)
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		page, err := h.ReportService.Resolver.ListBatch(ctx, c.Params("batchId"), q.Page, q.Limit)
		return basehdl.HandleResponse(c, page, err)
	})
}

// HandleBatchUpdate xử lý PUT /reports/batch/:batchId
// Body: {"fields": {"city": "Riyadh", "meta.valuer": "V-7"}}
func (h *ReportHandler) HandleBatchUpdate(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		var body reportdto.ReportBatchUpdateBody
		if err := c.Bind().Body(&body); err != nil {
			return basehdl.HandleValidationError(c, err)
		}
		if err := h.validate.Struct(body); err != nil {
			return basehdl.HandleValidationError(c, err)
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		res, err := h.ReportService.Batch.ApplyBatchUpdate(ctx, c.Params("batchId"), body.Fields)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, res, nil)
	})
}

// HandleEvaluateStatus xử lý GET /reports/id/:id/status (chỉ tính, không ghi)
func (h *ReportHandler) HandleEvaluateStatus(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		ctx, cancel := h.requestContext(c)
		defer cancel()

		ev, err := h.ReportService.Status.EvaluateStatus(ctx, c.Params("id"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, ev, nil)
	})
}

// HandleDeriveStatus xử lý POST /reports/id/:id/status/derive
func (h *ReportHandler) HandleDeriveStatus(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		ctx, cancel := h.requestContext(c)
		defer cancel()

		res, err := h.ReportService.Status.SetDerivedStatus(ctx, c.Params("id"))
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, res, nil)
	})
}

// HandleSetStatus xử lý PUT /reports/id/:id/status, body {"status": "SENT"}
func (h *ReportHandler) HandleSetStatus(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		var body reportdto.ReportStatusBody
		if err := c.Bind().Body(&body); err != nil {
			return basehdl.HandleValidationError(c, err)
		}
		if err := h.validate.Struct(body); err != nil {
			return basehdl.HandleValidationError(c, err)
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		res, err := h.ReportService.Status.SetDirectStatus(ctx, c.Params("id"), body.Status)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, res, nil)
	})
}

// HandleBackfillStatus xử lý POST /reports/status/backfill?limit=50
// Chạy ngay một lượt backfill trạng thái, giống một tick của worker.
func (h *ReportHandler) HandleBackfillStatus(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		var q reportdto.ReportBackfillQuery
		if err := c.Bind().Query(&q); err != nil {
			return basehdl.HandleValidationError(c, err)
		}
		if err := h.validate.Struct(q); err != nil {
			return basehdl.HandleValidationError(c, err)
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		res, err := h.ReportService.Status.BackfillMissingStatus(ctx, q.Limit)
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, res, nil)
	})
}

// HandleFeed xử lý GET /reports/feed?ownerId=&scopeId=&page=&limit=&strategy=
// ownerId / scopeId thiếu trong query thì lấy từ header X-Owner-ID / X-Scope-ID.
func (h *ReportHandler) HandleFeed(c fiber.Ctx) error {
	return basehdl.SafeHandlerWrapper(c, func() error {
		var q reportdto.ReportFeedQuery
		if err := c.Bind().Query(&q); err != nil {
			return basehdl.HandleValidationError(c, err)
		}
		ownerID, scopeID := middleware.OwnerFromLocals(c)
		if strings.TrimSpace(q.OwnerID) == "" {
			q.OwnerID = ownerID
		}
		if strings.TrimSpace(q.ScopeID) == "" {
			q.ScopeID = scopeID
		}
		q.Strategy = strings.ToLower(strings.TrimSpace(q.Strategy))
		if err := h.validate.Struct(q); err != nil {
			return basehdl.HandleValidationError(c, err)
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		page, err := h.ReportService.Feed.ListFeed(ctx, reportsvc.FeedQuery{
			OwnerID:  q.OwnerID,
			ScopeID:  q.ScopeID,
			Page:     q.Page,
			Limit:    q.Limit,
			Strategy: reportsvc.FeedStrategy(q.Strategy),
		})
		if err != nil {
			return basehdl.HandleResponse(c, nil, err)
		}
		return basehdl.HandleResponse(c, page, nil)
	})
}
