// Gói limiter quản lý quota của GitHub API cho một token duy nhất.
// Governor đọc trạng thái quota và quyết định thời gian chờ; Retrier bọc
// từng call và ủy quyền quyết định chờ cho Governor. Mọi call site đều đi
// qua cặp này thay vì tự viết vòng retry riêng.

package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/pkg/log"
)

// Snapshot là trạng thái quota tại một thời điểm. Known = false nghĩa là
// không đọc được trạng thái (lỗi transport), caller phải coi như quota sắp cạn.
type Snapshot struct {
	Limit     int
	Used      int
	Remaining int
	Reset     int64
	Known     bool
}

// BatchPlan là kết quả chia lô theo ngân sách call mỗi giờ. Chỉ mang tính
// tham khảo cho operator, việc điều tiết thật sự do Governor quyết định.
type BatchPlan struct {
	ItemsPerBatch []int
	ItemsPerHour  int
	TotalBatches  int
}

type Governor struct {
	Logger log.Logger
	Config *cfg.Config
	Caller *githubapi.Caller
}

func NewGovernor(logger log.Logger, config *cfg.Config, caller *githubapi.Caller) (*Governor, error) {
	return &Governor{
		Logger: logger,
		Config: config,
		Caller: caller,
	}, nil
}

// Snapshot đọc trạng thái quota hiện tại từ API /rate_limit.
func (g *Governor) Snapshot(ctx context.Context) Snapshot {
	resp, err := g.Caller.GetRateLimit(ctx)
	if err != nil {
		g.Logger.Warn(ctx, "Không đọc được trạng thái rate limit: %v", err)
		return Snapshot{}
	}

	core := resp.Resources.Core
	return Snapshot{
		Limit:     core.Limit,
		Used:      core.Used,
		Remaining: core.Remaining,
		Reset:     core.Reset,
		Known:     true,
	}
}

// SnapshotFromError dựng snapshot từ header của một response 403 nếu có,
// tránh tốn thêm một call /rate_limit.
func (g *Governor) SnapshotFromError(err error) (Snapshot, bool) {
	var rle *githubapi.RateLimitError
	if !errors.As(err, &rle) || !rle.HasQuota {
		return Snapshot{}, false
	}
	return Snapshot{
		Remaining: rle.Remaining,
		Reset:     rle.Reset,
		Known:     true,
	}, true
}

// TimeUntilReset tính thời gian còn lại đến khi quota được reset.
func (g *Governor) TimeUntilReset(s Snapshot) time.Duration {
	wait := time.Until(time.Unix(s.Reset, 0))
	if wait < 0 {
		return 0
	}
	return wait
}

// Decide quyết định thời gian chờ trước khi gọi tiếp:
//   - quota đã cạn: chờ đến thời điểm reset cộng thêm biên an toàn
//   - 403 tạm thời hoặc không đọc được trạng thái: chờ ngắn cố định
func (g *Governor) Decide(s Snapshot) time.Duration {
	shortWait := time.Duration(g.Config.Crawler.ShortWaitSec) * time.Second
	if shortWait <= 0 {
		shortWait = 5 * time.Second
	}

	if !s.Known {
		return shortWait
	}

	if s.Remaining <= 0 || (s.Limit > 0 && s.Used >= s.Limit) {
		margin := time.Duration(g.Config.Crawler.ResetMarginSec) * time.Second
		if margin <= 0 {
			margin = 10 * time.Second
		}
		return g.TimeUntilReset(s) + margin
	}

	return shortWait
}

// EstimateBatch chia totalItems thành các lô vừa với ngân sách call một giờ.
// Lô cuối cùng mang phần dư.
func (g *Governor) EstimateBatch(totalItems, maxCallsPerHour, estimatedCallsPerItem int) BatchPlan {
	if estimatedCallsPerItem <= 0 {
		estimatedCallsPerItem = 1
	}

	itemsPerHour := maxCallsPerHour / estimatedCallsPerItem
	if itemsPerHour <= 0 {
		itemsPerHour = 1
	}

	plan := BatchPlan{ItemsPerHour: itemsPerHour}
	for remaining := totalItems; remaining > 0; remaining -= itemsPerHour {
		size := itemsPerHour
		if remaining < size {
			size = remaining
		}
		plan.ItemsPerBatch = append(plan.ItemsPerBatch, size)
	}
	plan.TotalBatches = len(plan.ItemsPerBatch)

	return plan
}
