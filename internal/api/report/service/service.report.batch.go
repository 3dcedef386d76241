package reportsvc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
)

// BatchUpdateResult là tổng số document khớp / thay đổi trên mọi provider
type BatchUpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// BatchService ghi cùng một tập field lên mọi document của batch trên mọi provider có field batch
type BatchService struct {
	providers *provider.Registry
}

// NewBatchService tạo batch service
func NewBatchService(providers *provider.Registry) *BatchService {
	return &BatchService{providers: providers}
}

// ApplyBatchUpdate chạy $set song song trên tất cả provider có field batch, không lọc trước.
// Một provider lỗi thì cả thao tác lỗi (ErrBatchUpdateFailed) và không trả về số đếm một phần;
// một số provider có thể đã được ghi, gọi lại là an toàn vì $set ghi đè cùng giá trị.
func (s *BatchService) ApplyBatchUpdate(ctx context.Context, batchID string, fields map[string]interface{}) (BatchUpdateResult, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return BatchUpdateResult{}, fmt.Errorf("batch id rỗng: %w", common.ErrRequiredField)
	}
	if err := s.validateFields(fields); err != nil {
		return BatchUpdateResult{}, err
	}

	start := time.Now()
	providers := s.providers.WithBatchField()
	results := make([]provider.UpdateResult, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			set := make(bson.M, len(fields))
			for k, v := range fields {
				set[k] = v
			}
			res, err := p.Store.UpdateMany(gctx, p.BatchFilter(batchID), bson.M{"$set": set})
			if err != nil {
				return common.NewBatchUpdateError(p.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithModuleContext(ctx, "report.batch").WithError(err).WithField("batch_id", batchID).
			Error("Cập nhật batch thất bại")
		return BatchUpdateResult{}, err
	}

	var total BatchUpdateResult
	perProvider := make(logrus.Fields, len(providers))
	for i, r := range results {
		total.MatchedCount += r.MatchedCount
		total.ModifiedCount += r.ModifiedCount
		perProvider[providers[i].Name] = r.MatchedCount
	}

	logger.GetAuditLogger().WithFields(logrus.Fields{
		"action":     "batch_update",
		"batch_id":   batchID,
		"fields":     fieldNames(fields),
		"matched":    total.MatchedCount,
		"modified":   total.ModifiedCount,
		"providers":  perProvider,
		"duration":   time.Since(start).String(),
		"request_id": ctx.Value(logger.RequestIDKey),
	}).Info("Batch update")
	return total, nil
}

// validateFields: không rỗng, không operator, không path rỗng, không ghi _id hay field batch
func (s *BatchService) validateFields(fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields rỗng: %w", common.ErrRequiredField)
	}
	batchFields := s.providers.BatchFields()
	for k := range fields {
		if strings.HasPrefix(k, "$") {
			return fmt.Errorf("field %q không được là operator: %w", k, common.ErrInvalidInput)
		}
		segments := strings.Split(k, ".")
		for _, seg := range segments {
			if strings.TrimSpace(seg) == "" {
				return fmt.Errorf("field %q có đoạn path rỗng: %w", k, common.ErrInvalidInput)
			}
		}
		if segments[0] == "_id" || batchFields[segments[0]] {
			return fmt.Errorf("field %q không được phép cập nhật theo batch: %w", k, common.ErrInvalidInput)
		}
	}
	return nil
}

func fieldNames(fields map[string]interface{}) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
