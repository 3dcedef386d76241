package reportsvc

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/time/rate"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/utility"
)

// DefaultBackfillLimit là số document tối đa mỗi provider trong một lượt backfill
const DefaultBackfillLimit int64 = 50

// newBackfillLimiter tạo limiter cho lượt backfill; perSecond <= 0 = không giới hạn
func newBackfillLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// BackfillResult là kết quả một lượt backfill trạng thái
type BackfillResult struct {
	Scanned int `json:"scanned"` // Số document chưa có trạng thái đã đọc
	Applied int `json:"applied"` // Số document đã ghi trạng thái suy ra
	Skipped int `json:"skipped"` // Bị chặn vì đã được đặt SENT/CONFIRMED trong lúc chạy
	Failed  int `json:"failed"`  // Lỗi ghi hoặc provider lỗi
}

// BackfillMissingStatus ghi trạng thái suy ra cho các document chưa có field trạng thái.
// Mỗi provider xử lý tối đa limit document; provider lỗi được log rồi bỏ qua.
func (s *StatusService) BackfillMissingStatus(ctx context.Context, limit int64) (BackfillResult, error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}
	log := logger.WithModuleContext(ctx, "report_status_backfill")

	var out BackfillResult
	for _, p := range s.resolver.providers.List() {
		if p.StatusField == "" {
			continue
		}
		docs, err := p.Store.Find(ctx, bson.M{p.StatusField: bson.M{"$exists": false}}, provider.FindOptions{
			Limit: limit,
			Sort:  bson.D{{Key: "_id", Value: 1}},
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, common.ErrMongoTimeout.(*common.Error).WithCause(ctxErr, nil)
			}
			log.WithError(err).WithField("provider", p.Name).Warn("Không đọc được document chờ backfill")
			out.Failed++
			continue
		}

		for _, doc := range docs {
			if s.backfillLimiter != nil {
				if err := s.backfillLimiter.Wait(ctx); err != nil {
					return out, common.ErrMongoTimeout.(*common.Error).WithCause(err, nil)
				}
			}
			out.Scanned++
			res, err := s.applyDerived(ctx, p, doc, p.Normalize(doc))
			switch {
			case err != nil && ctx.Err() != nil:
				return out, common.ErrMongoTimeout.(*common.Error).WithCause(ctx.Err(), nil)
			case errors.Is(err, common.ErrNotFound):
				// Document bị xóa giữa lúc đọc và lúc ghi
			case err != nil:
				log.WithError(err).WithFields(logrus.Fields{"provider": p.Name, "id": utility.IDString(doc["_id"])}).Warn("Backfill trạng thái thất bại")
				out.Failed++
			case res.Applied:
				out.Applied++
			default:
				out.Skipped++
			}
		}
	}
	return out, nil
}
