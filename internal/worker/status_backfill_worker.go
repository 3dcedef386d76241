package worker

import (
	"context"
	"time"

	reportsvc "github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/api/report/service"
	"github.com/sparkvisionsa/ValueTech-Backend-sub000/internal/logger"
)

// StatusBackfiller là phần của StatusService mà worker cần
type StatusBackfiller interface {
	BackfillMissingStatus(ctx context.Context, limit int64) (reportsvc.BackfillResult, error)
}

// StatusBackfillWorker định kỳ ghi trạng thái suy ra cho các báo cáo chưa có field trạng thái.
// Mỗi lượt xử lý tối đa batchSize document trên mỗi provider.
type StatusBackfillWorker struct {
	status    StatusBackfiller
	interval  time.Duration // Khoảng thời gian giữa các lần chạy
	batchSize int64         // Số document tối đa mỗi provider mỗi lần
}

// NewStatusBackfillWorker tạo mới StatusBackfillWorker.
// Tham số:
//   - status: thường là ReportService.Status
//   - interval: Khoảng thời gian giữa các lần chạy (mặc định: 5 phút)
//   - batchSize: Số document tối đa mỗi provider (mặc định: reportsvc.DefaultBackfillLimit)
func NewStatusBackfillWorker(status StatusBackfiller, interval time.Duration, batchSize int64) *StatusBackfillWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = reportsvc.DefaultBackfillLimit
	}
	return &StatusBackfillWorker{
		status:    status,
		interval:  interval,
		batchSize: batchSize,
	}
}

// RunOnce chạy một lượt backfill. Panic được recover và log, lượt sau vẫn chạy.
func (w *StatusBackfillWorker) RunOnce(ctx context.Context) (res reportsvc.BackfillResult, err error) {
	log := logger.GetAppLogger()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(map[string]interface{}{
				"panic": r,
			}).Error("[STATUS_BACKFILL] Panic khi backfill trạng thái, sẽ tiếp tục ở lần chạy tiếp theo")
		}
	}()

	res, err = w.status.BackfillMissingStatus(ctx, w.batchSize)
	if err != nil {
		log.WithError(err).Error("[STATUS_BACKFILL] Lỗi backfill trạng thái")
		return res, err
	}
	if res.Scanned > 0 || res.Failed > 0 {
		log.WithFields(map[string]interface{}{
			"scanned": res.Scanned,
			"applied": res.Applied,
			"skipped": res.Skipped,
			"failed":  res.Failed,
		}).Info("[STATUS_BACKFILL] Đã backfill trạng thái")
	}
	return res, nil
}

// Start chạy worker trong vòng lặp cho tới khi ctx bị hủy
func (w *StatusBackfillWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval":  w.interval.String(),
		"batchSize": w.batchSize,
	}).Info("[STATUS_BACKFILL] Starting Status Backfill Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("[STATUS_BACKFILL] Status Backfill Worker stopped")
			return
		case <-ticker.C:
			_, _ = w.RunOnce(ctx)
		}
	}
}
