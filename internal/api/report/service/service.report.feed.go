package reportsvc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	reportmodels "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/models"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/utility"
)

// FeedStrategy là cách gom báo cáo từ nhiều provider
type FeedStrategy string

const (
	// FeedStrategyPipeline: một aggregation pipeline với $unionWith, tổng chính xác
	FeedStrategyPipeline FeedStrategy = "pipeline"
	// FeedStrategyFanout: truy vấn song song từng provider rồi trộn trong bộ nhớ, tổng xấp xỉ
	FeedStrategyFanout FeedStrategy = "fanout"
)

// ParseFeedStrategy chuẩn hóa tên chiến lược
func ParseFeedStrategy(s string) (FeedStrategy, error) {
	switch FeedStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case FeedStrategyPipeline:
		return FeedStrategyPipeline, nil
	case FeedStrategyFanout:
		return FeedStrategyFanout, nil
	}
	return "", fmt.Errorf("chiến lược feed %q không hợp lệ: %w", s, common.ErrInvalidInput)
}

// FeedQuery là tham số của feed. ScopeID rỗng = không lọc theo scope; Strategy rỗng = mặc định của deployment.
type FeedQuery struct {
	OwnerID  string
	ScopeID  string
	Page     int64
	Limit    int64
	Strategy FeedStrategy
}

// FeedPage là một trang feed.
// Với fanout, Total là tổng số dòng đã tải vào bộ đệm trộn (Exact=false), không phải số đếm chính xác.
// Fanout cũng chỉ gần đúng về thứ tự khi một provider trộn kiểu timestamp (chuỗi ISO lẫn Date):
// store sắp theo thứ tự kiểu BSON (mọi Date đứng trên mọi String) trước khi cắt limitPer,
// nên document ghi ngày dạng chuỗi có thể bị cắt khỏi bộ đệm. Cần thứ tự đúng thì dùng pipeline.
type FeedPage struct {
	Items    []reportmodels.FeedItem `json:"items"`
	Total    int64                   `json:"total"`
	Exact    bool                    `json:"exact"`
	Page     int64                   `json:"page"`
	Limit    int64                   `json:"limit"`
	Strategy FeedStrategy            `json:"strategy"`
	Omitted  []string                `json:"omitted,omitempty"` // Provider bị bỏ qua vì lỗi / timeout (chỉ fanout)
}

// FeedService dựng feed hợp nhất của một owner trên mọi provider
type FeedService struct {
	providers       *provider.Registry
	strategy        FeedStrategy
	slack           int64
	providerTimeout time.Duration
}

// NewFeedService tạo feed service
func NewFeedService(providers *provider.Registry, opts Options) *FeedService {
	strategy := opts.FeedStrategy
	if strategy == "" {
		strategy = FeedStrategyPipeline
	}
	timeout := opts.ProviderTimeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &FeedService{
		providers:       providers,
		strategy:        strategy,
		slack:           opts.FanoutSlack,
		providerTimeout: timeout,
	}
}

// ListFeed trả về một trang báo cáo của owner, sắp xếp createdAt giảm dần (hòa thì _id giảm dần)
func (s *FeedService) ListFeed(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	q.OwnerID = strings.TrimSpace(q.OwnerID)
	q.ScopeID = strings.TrimSpace(q.ScopeID)
	if q.OwnerID == "" {
		return nil, fmt.Errorf("ownerId bắt buộc: %w", common.ErrRequiredField)
	}
	q.Page, q.Limit = normalizePaging(q.Page, q.Limit)

	strategy := s.strategy
	if q.Strategy != "" {
		st, err := ParseFeedStrategy(string(q.Strategy))
		if err != nil {
			return nil, err
		}
		strategy = st
	}

	if strategy == FeedStrategyFanout {
		return s.listFanout(ctx, q)
	}
	return s.listPipeline(ctx, q)
}

// FanoutCap là số dòng tối đa lấy từ mỗi provider: ceil(page*limit / n) + slack
func FanoutCap(page, limit int64, providerCount int, slack int64) int64 {
	if slack <= 0 {
		slack = limit
	}
	return utility.CeilDiv(page*limit, int64(providerCount)) + slack
}

func (s *FeedService) listFanout(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	log := logger.WithModuleContext(ctx, "report.feed").WithField("strategy", FeedStrategyFanout)
	providers := s.providers.List()
	limitPer := FanoutCap(q.Page, q.Limit, len(providers), s.slack)

	loaded := make([][]reportmodels.FeedItem, len(providers))
	omitted := make([]bool, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
			defer cancel()

			docs, err := p.Store.Find(pctx, p.FeedFilter(q.OwnerID, q.ScopeID), provider.FindOptions{
				Limit: limitPer,
				Sort:  fanoutSort(p),
			})
			if err != nil {
				omitted[i] = true
				if ctx.Err() == nil {
					log.WithError(err).WithField("provider", p.Name).Warn("Provider bị bỏ qua khỏi feed")
				}
				return nil
			}
			items := make([]reportmodels.FeedItem, 0, len(docs))
			for _, d := range docs {
				items = append(items, p.FeedItem(d))
			}
			loaded[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, common.ErrMongoTimeout.(*common.Error).WithCause(err, nil)
	}

	var merged []reportmodels.FeedItem
	var names []string
	for i, items := range loaded {
		if omitted[i] {
			names = append(names, providers[i].Name)
			continue
		}
		merged = append(merged, items...)
	}
	SortFeedItems(merged)

	page := &FeedPage{
		Items:    pageSlice(merged, q.Page, q.Limit),
		Total:    int64(len(merged)),
		Exact:    false,
		Page:     q.Page,
		Limit:    q.Limit,
		Strategy: FeedStrategyFanout,
		Omitted:  names,
	}
	return page, nil
}

// fanoutSort sắp trên giá trị thô của field thời gian; không đổi kiểu như BuildNormalizeStage
func fanoutSort(p *provider.Provider) bson.D {
	var sortKeys bson.D
	for _, f := range []string{p.CreatedAtField, p.UpdatedAtField} {
		if f != "" {
			sortKeys = append(sortKeys, bson.E{Key: f, Value: -1})
		}
	}
	return append(sortKeys, bson.E{Key: "_id", Value: -1})
}

// SortFeedItems sắp xếp createdAt giảm dần, hòa thì id giảm dần
func SortFeedItems(items []reportmodels.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt > items[j].CreatedAt
		}
		return items[i].ID > items[j].ID
	})
}

func pageSlice(items []reportmodels.FeedItem, page, limit int64) []reportmodels.FeedItem {
	start := (page - 1) * limit
	if start >= int64(len(items)) {
		return []reportmodels.FeedItem{}
	}
	end := start + limit
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[start:end]
}

func (s *FeedService) listPipeline(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	providers := s.providers.List()
	base := providers[0]
	pipeline := BuildFeedPipeline(providers, q.OwnerID, q.ScopeID, q.Page, q.Limit)

	out, err := base.Store.Aggregate(ctx, pipeline)
	if err != nil {
		logger.WithModuleContext(ctx, "report.feed").WithError(err).
			WithField("strategy", FeedStrategyPipeline).Error("Aggregation feed thất bại")
		return nil, common.NewProviderError(base.Name, err)
	}

	page := &FeedPage{
		Items:    []reportmodels.FeedItem{},
		Exact:    true,
		Page:     q.Page,
		Limit:    q.Limit,
		Strategy: FeedStrategyPipeline,
	}
	if len(out) == 0 {
		return page, nil
	}

	facet := out[0]
	if raw, ok := utility.GetPath(facet, facetItems); ok {
		for _, row := range utility.ToSlice(raw) {
			page.Items = append(page.Items, feedItemFromRow(row))
		}
	}
	if raw, ok := utility.GetPath(facet, facetTotal); ok {
		if counts := utility.ToSlice(raw); len(counts) > 0 {
			if v, ok := utility.GetPath(counts[0], facetCount); ok {
				page.Total, _ = utility.ToMillis(v)
			}
		}
	}
	return page, nil
}

// feedItemFromRow đọc một dòng đã normalize của pipeline
func feedItemFromRow(row interface{}) reportmodels.FeedItem {
	str := func(field string) string {
		v, _ := utility.GetPath(row, field)
		return utility.ToString(v)
	}
	num := func(field string) int64 {
		v, _ := utility.GetPath(row, field)
		n, _ := utility.ToMillis(v)
		return n
	}

	id, _ := utility.GetPath(row, "_id")
	item := reportmodels.FeedItem{
		ID:         utility.IDString(id),
		ExternalID: str(feedFieldReportID),
		Title:      str(feedFieldTitle),
		OwnerID:    str(feedFieldOwnerID),
		ScopeID:    str(feedFieldScopeID),
		CreatedAt:  num(feedFieldCreatedAt),
		UpdatedAt:  num(feedFieldUpdatedAt),
		Provider:   str(feedFieldProvider),
	}
	if st, err := reportmodels.ParseStatus(str(feedFieldStatus)); err == nil {
		item.Status = st
	}
	return item
}
