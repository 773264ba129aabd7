package limiter

import (
	"context"
	"time"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/pkg/log"
	"github.com/thep200/star-history-crawler/pkg/metrics"
)

// Retrier bọc một call ra GitHub API với số lần thử lại có giới hạn.
// Chỉ lỗi 403 mới được thử lại, thời gian chờ giữa các lần do Governor quyết
// định. Mọi lỗi khác (404, lỗi mạng, 5xx) được trả về ngay cho caller.
type Retrier struct {
	Logger   log.Logger
	Config   *cfg.Config
	Governor *Governor
}

func NewRetrier(logger log.Logger, config *cfg.Config, governor *Governor) (*Retrier, error) {
	return &Retrier{
		Logger:   logger,
		Config:   config,
		Governor: governor,
	}, nil
}

func (r *Retrier) maxRetries() int {
	if r.Config.Crawler.MaxRetries > 0 {
		return r.Config.Crawler.MaxRetries
	}
	return 3
}

// Do thực hiện fn, thử lại tối đa maxRetries lần khi gặp 403.
// Khi hết lượt thử thì trả về lỗi gốc của lần gọi cuối cùng.
func (r *Retrier) Do(ctx context.Context, label string, fn func() error) error {
	maxRetries := r.maxRetries()

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !githubapi.IsRateLimit(err) {
			return err
		}

		if attempt > maxRetries {
			r.Logger.Error(ctx, "Đã hết %d lượt thử lại cho %s: %v", maxRetries, label, err)
			return err
		}

		// Ưu tiên thông tin quota có sẵn trong response 403,
		// nếu không có thì hỏi API /rate_limit
		snapshot, ok := r.Governor.SnapshotFromError(err)
		if !ok {
			snapshot = r.Governor.Snapshot(ctx)
		}

		wait := r.Governor.Decide(snapshot)
		r.Logger.Warn(ctx, "Rate limit hit khi gọi %s (lần thử %d/%d), chờ %v để thử lại",
			label, attempt, maxRetries, wait.Round(time.Second))
		metrics.RateLimitWaits.Inc()

		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Sleep chờ hết d hoặc đến khi context bị hủy.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
