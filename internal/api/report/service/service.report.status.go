package reportsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"

	reportmodels "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/models"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
)

// StatusResult là kết quả một lần ghi trạng thái
type StatusResult struct {
	ID       string                    `json:"id"`
	Provider string                    `json:"provider"`
	Status   reportmodels.ReportStatus `json:"status"`   // Trạng thái đang lưu sau thao tác
	Previous reportmodels.ReportStatus `json:"previous"` // Trạng thái đã lưu trước thao tác
	Applied  bool                      `json:"applied"`  // false = bị chặn vì trạng thái đang lưu là SENT/CONFIRMED
}

// StatusEvaluation là kết quả tính trạng thái không ghi
type StatusEvaluation struct {
	ID         string                    `json:"id"`
	Provider   string                    `json:"provider"`
	Derived    reportmodels.ReportStatus `json:"derived"`
	Stored     reportmodels.ReportStatus `json:"stored"`
	WouldApply bool                      `json:"wouldApply"`
}

// StatusService tính và ghi trạng thái báo cáo
type StatusService struct {
	resolver        *ResolverService
	now             func() time.Time
	backfillLimiter *rate.Limiter // nil = không giới hạn tốc độ ghi khi backfill
}

// NewStatusService tạo status service
func NewStatusService(resolver *ResolverService) *StatusService {
	return &StatusService{resolver: resolver, now: time.Now}
}

// guardedValues là các cách viết của SENT/CONFIRMED có thể gặp trong document
func guardedValues() bson.A {
	var out bson.A
	for _, st := range reportmodels.GuardedStatuses {
		s := string(st)
		lower := strings.ToLower(s)
		out = append(out, s, lower, strings.ToUpper(s[:1])+lower[1:])
	}
	return out
}

// EvaluateStatus tính trạng thái suy ra từ tài sản, không ghi gì
func (s *StatusService) EvaluateStatus(ctx context.Context, internalID string) (*StatusEvaluation, error) {
	res, err := s.resolver.ResolveByInternalID(ctx, internalID)
	if err != nil {
		return nil, err
	}
	derived := res.Report.DerivedStatus()
	return &StatusEvaluation{
		ID:         res.Report.ID,
		Provider:   res.Provider.Name,
		Derived:    derived,
		Stored:     res.Report.Status,
		WouldApply: !res.Report.Status.IsGuarded(),
	}, nil
}

// SetDerivedStatus tính lại trạng thái từ tài sản và ghi, trừ khi trạng thái đang lưu là SENT/CONFIRMED.
// Điều kiện chặn nằm trong filter của lệnh ghi nên không bị race với một lần đặt trực tiếp đồng thời.
func (s *StatusService) SetDerivedStatus(ctx context.Context, internalID string) (*StatusResult, error) {
	res, err := s.resolver.ResolveByInternalID(ctx, internalID)
	if err != nil {
		return nil, err
	}
	return s.applyDerived(ctx, res.Provider, res.Document, res.Report)
}

// applyDerived ghi trạng thái suy ra cho một document đã đọc từ provider p
func (s *StatusService) applyDerived(ctx context.Context, p *provider.Provider, doc bson.M, report reportmodels.Report) (*StatusResult, error) {
	if p.StatusField == "" {
		return nil, fmt.Errorf("provider %s không có field trạng thái: %w", p.Name, common.ErrInvalidState)
	}

	stored := report.Status
	derived := report.DerivedStatus()
	result := &StatusResult{ID: report.ID, Provider: p.Name, Previous: stored}

	if stored.IsGuarded() {
		result.Status, result.Applied = stored, false
		return result, nil
	}
	if stored == derived {
		result.Status, result.Applied = stored, true
		return result, nil
	}

	filter := bson.M{
		"_id":         doc["_id"],
		p.StatusField: bson.M{"$nin": guardedValues()},
	}
	upd, err := p.Store.UpdateMany(ctx, filter, bson.M{"$set": s.statusSet(p.StatusField, p.UpdatedAtField, derived)})
	if err != nil {
		return nil, common.NewProviderError(p.Name, err)
	}

	if upd.MatchedCount == 0 {
		// Trạng thái đã bị đặt trực tiếp giữa lúc đọc và lúc ghi
		current, err := p.Store.FindOne(ctx, bson.M{"_id": doc["_id"]}, nil)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, err
			}
			return nil, common.NewProviderError(p.Name, err)
		}
		result.Status, result.Applied = p.Normalize(current).Status, false
		return result, nil
	}

	result.Status, result.Applied = derived, true
	s.audit(ctx, "set_derived_status", result)
	return result, nil
}

// SetDirectStatus đặt trực tiếp SENT hoặc CONFIRMED, luôn được ghi bất kể trạng thái hiện tại
func (s *StatusService) SetDirectStatus(ctx context.Context, internalID string, status string) (*StatusResult, error) {
	st, err := reportmodels.ParseStatus(status)
	if err != nil || !st.IsDirect() {
		return nil, fmt.Errorf("chỉ được đặt trực tiếp SENT hoặc CONFIRMED, nhận %q: %w", status, common.ErrInvalidInput)
	}

	res, err := s.resolver.ResolveByInternalID(ctx, internalID)
	if err != nil {
		return nil, err
	}
	p := res.Provider
	if p.StatusField == "" {
		return nil, fmt.Errorf("provider %s không có field trạng thái: %w", p.Name, common.ErrInvalidState)
	}

	upd, err := p.Store.UpdateMany(ctx, bson.M{"_id": res.Document["_id"]}, bson.M{"$set": s.statusSet(p.StatusField, p.UpdatedAtField, st)})
	if err != nil {
		return nil, common.NewProviderError(p.Name, err)
	}
	if upd.MatchedCount == 0 {
		return nil, common.ErrNotFound
	}

	result := &StatusResult{ID: res.Report.ID, Provider: p.Name, Status: st, Previous: res.Report.Status, Applied: true}
	s.audit(ctx, "set_direct_status", result)
	return result, nil
}

func (s *StatusService) statusSet(statusField, updatedAtField string, st reportmodels.ReportStatus) bson.M {
	set := bson.M{statusField: string(st)}
	if updatedAtField != "" {
		set[updatedAtField] = primitive.NewDateTimeFromTime(s.now())
	}
	return set
}

func (s *StatusService) audit(ctx context.Context, action string, r *StatusResult) {
	logger.GetAuditLogger().WithFields(logrus.Fields{
		"action":     action,
		"id":         r.ID,
		"provider":   r.Provider,
		"previous":   r.Previous,
		"status":     r.Status,
		"request_id": ctx.Value(logger.RequestIDKey),
	}).Info("Report status")
}

// IsNotFound cho biết lỗi có phải "không tìm thấy báo cáo" không
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
