package reportsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	reportmodels "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/models"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/utility"
)

// Resolution là kết quả tra cứu: document gốc, provider chứa nó và báo cáo đã chuẩn hóa
type Resolution struct {
	Provider *provider.Provider
	Document bson.M
	Report   reportmodels.Report
}

// BatchPage là một trang document của một batch, lấy từ provider duy nhất chứa batch
type BatchPage struct {
	Provider string                `json:"provider"`
	BatchID  string                `json:"batchId"`
	Items    []reportmodels.Report `json:"items"`
	Total    int64                 `json:"total"`
	Page     int64                 `json:"page"`
	Limit    int64                 `json:"limit"`
}

// ResolverService tra cứu báo cáo theo định danh trên mọi provider, tuần tự theo thứ tự ưu tiên
type ResolverService struct {
	providers      *provider.Registry
	ambiguityCheck bool
}

// NewResolverService tạo resolver
func NewResolverService(providers *provider.Registry, ambiguityCheck bool) *ResolverService {
	return &ResolverService{providers: providers, ambiguityCheck: ambiguityCheck}
}

// ResolveByExternalID tìm báo cáo theo mã báo cáo ngoài.
// Dừng ở provider đầu tiên khớp; cùng mã ở nhiều provider thì luôn trả về provider có rank nhỏ nhất.
func (s *ResolverService) ResolveByExternalID(ctx context.Context, externalID string) (*Resolution, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("mã báo cáo rỗng: %w", common.ErrInvalidIdentifier)
	}

	providers := s.providers.List()
	res, idx, err := s.scan(ctx, "external_id", providers, func(p *provider.Provider) bson.M {
		return p.ExternalIDFilter(externalID)
	})
	if err != nil {
		return nil, err
	}
	if s.ambiguityCheck {
		s.checkAmbiguity(ctx, externalID, res, providers[idx+1:])
	}
	return res, nil
}

// ResolveByInternalID tìm báo cáo theo _id. Định danh được ép kiểu lỏng (ObjectId("..."), có ngoặc, viết hoa);
// chỉ trả ErrInvalidIdentifier khi không thể ép thành ObjectID.
func (s *ResolverService) ResolveByInternalID(ctx context.Context, internalID string) (*Resolution, error) {
	oid, ok := utility.CoerceObjectID(internalID)
	if !ok {
		return nil, fmt.Errorf("định danh nội bộ %q: %w", internalID, common.ErrInvalidIdentifier)
	}
	res, _, err := s.scan(ctx, "internal_id", s.providers.List(), func(*provider.Provider) bson.M {
		return bson.M{"_id": oid}
	})
	return res, err
}

// FindByBatchID trả về provider đầu tiên (theo thứ tự ưu tiên) có ít nhất một document thuộc batch
func (s *ResolverService) FindByBatchID(ctx context.Context, batchID string) (*provider.Provider, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("batch id rỗng: %w", common.ErrRequiredField)
	}
	res, _, err := s.scan(ctx, "batch_id", s.providers.WithBatchField(), func(p *provider.Provider) bson.M {
		return p.BatchFilter(batchID)
	}, bson.M{"_id": 1})
	if err != nil {
		return nil, err
	}
	return res.Provider, nil
}

// ListBatch liệt kê document của một batch từ provider chứa batch đó
func (s *ResolverService) ListBatch(ctx context.Context, batchID string, page, limit int64) (*BatchPage, error) {
	p, err := s.FindByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	batchID = strings.TrimSpace(batchID)
	page, limit = normalizePaging(page, limit)

	filter := p.BatchFilter(batchID)
	docs, err := p.Store.Find(ctx, filter, provider.FindOptions{
		Skip:  (page - 1) * limit,
		Limit: limit,
		Sort:  bson.D{{Key: "_id", Value: 1}},
	})
	if err != nil {
		return nil, common.NewProviderError(p.Name, err)
	}
	total, err := p.Store.CountDocuments(ctx, filter)
	if err != nil {
		return nil, common.NewProviderError(p.Name, err)
	}

	items := make([]reportmodels.Report, 0, len(docs))
	for _, d := range docs {
		items = append(items, p.Normalize(d))
	}
	return &BatchPage{Provider: p.Name, BatchID: batchID, Items: items, Total: total, Page: page, Limit: limit}, nil
}

// scan truy vấn tuần tự từng provider, dừng ở lần khớp đầu tiên.
// Provider lỗi được log warn và bỏ qua; nếu mọi provider đều lỗi thì trả ErrProviderFailure.
func (s *ResolverService) scan(ctx context.Context, kind string, providers []*provider.Provider, filterFor func(*provider.Provider) bson.M, projection ...bson.M) (*Resolution, int, error) {
	log := logger.WithModuleContext(ctx, "report.resolver").WithField("lookup", kind)

	var proj bson.M
	if len(projection) > 0 {
		proj = projection[0]
	}

	var lastErr error
	failed := 0
	for i, p := range providers {
		doc, err := p.Store.FindOne(ctx, filterFor(p), proj)
		if err == nil {
			return &Resolution{Provider: p, Document: doc, Report: p.Normalize(doc)}, i, nil
		}
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, -1, common.NewProviderError(p.Name, ctxErr)
		}
		failed++
		lastErr = common.NewProviderError(p.Name, err)
		log.WithError(err).WithField("provider", p.Name).Warn("Provider lỗi khi tra cứu, bỏ qua")
	}

	if failed > 0 && failed == len(providers) {
		return nil, -1, lastErr
	}
	log.Debug("Không tìm thấy báo cáo ở provider nào")
	return nil, -1, common.ErrNotFound
}

// checkAmbiguity dò các provider còn lại; cùng mã báo cáo nhưng khác owner thì log AmbiguousIdentity.
// Chỉ là chẩn đoán: kết quả trả về cho caller không đổi.
func (s *ResolverService) checkAmbiguity(ctx context.Context, externalID string, first *Resolution, rest []*provider.Provider) {
	owner := first.Report.OwnerID
	for _, p := range rest {
		doc, err := p.Store.FindOne(ctx, p.ExternalIDFilter(externalID), nil)
		if err != nil {
			continue
		}
		other := p.Owner(doc)
		if other == owner {
			continue
		}
		logger.WithModuleContext(ctx, "report.resolver").WithFields(logrus.Fields{
			"ambiguous_identity": true,
			"report_id":          externalID,
			"provider":           first.Provider.Name,
			"owner":              owner,
			"other_provider":     p.Name,
			"other_owner":        other,
		}).Warn("Mã báo cáo tồn tại ở nhiều provider với owner khác nhau")
	}
}
