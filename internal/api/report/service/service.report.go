// Package reportsvc chứa các service nghiệp vụ trên báo cáo định giá nằm rải rác ở nhiều collection:
// tra cứu định danh, cập nhật theo batch, máy trạng thái và feed hợp nhất.
package reportsvc

import (
	"fmt"
	"time"

	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/common"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/provider"
)

const (
	DefaultPageLimit int64 = 10
	MaxPageLimit     int64 = 100

	DefaultProviderTimeout = 3 * time.Second
)

// Options cấu hình các service báo cáo
type Options struct {
	AmbiguityCheck  bool          // Dò tiếp các provider sau lần khớp đầu tiên để log AmbiguousIdentity
	FeedStrategy    FeedStrategy  // Chiến lược feed mặc định
	FanoutSlack     int64         // Số dòng dư mỗi provider ở chiến lược fanout; 0 = bằng limit
	ProviderTimeout time.Duration // Timeout cho từng provider ở chiến lược fanout
	BackfillRate    float64       // Số lần ghi trạng thái tối đa mỗi giây khi backfill; 0 = không giới hạn
}

// ReportService gom các service báo cáo dùng chung một provider registry
type ReportService struct {
	Resolver *ResolverService
	Batch    *BatchService
	Status   *StatusService
	Feed     *FeedService
}

// NewReportService tạo các service báo cáo từ provider registry
func NewReportService(providers *provider.Registry, opts Options) (*ReportService, error) {
	if providers == nil || providers.Len() == 0 {
		return nil, fmt.Errorf("provider registry chưa được khởi tạo: %w", common.ErrRequiredField)
	}
	if opts.FeedStrategy == "" {
		opts.FeedStrategy = FeedStrategyPipeline
	}
	if _, err := ParseFeedStrategy(string(opts.FeedStrategy)); err != nil {
		return nil, err
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if opts.BackfillRate < 0 {
		return nil, fmt.Errorf("BackfillRate không được âm: %w", common.ErrInvalidInput)
	}

	resolver := NewResolverService(providers, opts.AmbiguityCheck)
	status := NewStatusService(resolver)
	status.backfillLimiter = newBackfillLimiter(opts.BackfillRate)
	return &ReportService{
		Resolver: resolver,
		Batch:    NewBatchService(providers),
		Status:   status,
		Feed:     NewFeedService(providers, opts),
	}, nil
}

// normalizePaging chuẩn hóa page/limit: page < 1 → 1, limit <= 0 → mặc định, limit tối đa MaxPageLimit
func normalizePaging(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
