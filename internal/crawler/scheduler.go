package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/internal/limiter"
	"github.com/thep200/star-history-crawler/internal/model"
	"github.com/thep200/star-history-crawler/pkg/db"
	"github.com/thep200/star-history-crawler/pkg/kafka"
	"github.com/thep200/star-history-crawler/pkg/log"
	"github.com/thep200/star-history-crawler/pkg/metrics"
	"gorm.io/gorm"
)

// Summary là kết quả của một lần chạy batch.
type Summary struct {
	Successful int
	Failed     int
	Skipped    int
	Duration   time.Duration
}

// Scheduler xử lý danh sách repository tuần tự, từng repo một, với delay cố
// định giữa các call. Không bao giờ fan-out giữa nhiều repo: quota danh nghĩa
// còn dư cũng không cứu được abuse detection khi bắn request theo burst.
type Scheduler struct {
	Logger     log.Logger
	Config     *cfg.Config
	Mysql      *db.Mysql
	RepoMd     *model.Repo
	SampleMd   *model.StarSample
	Assembler  *Assembler
	Governor   *limiter.Governor
	Checkpoint *CheckpointStore
	Producer   *kafka.Producer

	shutdownOnce sync.Once
}

func NewScheduler(
	logger log.Logger,
	config *cfg.Config,
	mysql *db.Mysql,
	assembler *Assembler,
	governor *limiter.Governor,
	checkpoint *CheckpointStore,
	producer *kafka.Producer,
) (*Scheduler, error) {
	repoMd, err := model.NewRepo(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create repo model: %w", err)
	}

	sampleMd, err := model.NewStarSample(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create star sample model: %w", err)
	}

	return &Scheduler{
		Logger:     logger,
		Config:     config,
		Mysql:      mysql,
		RepoMd:     repoMd,
		SampleMd:   sampleMd,
		Assembler:  assembler,
		Governor:   governor,
		Checkpoint: checkpoint,
		Producer:   producer,
	}, nil
}

// RunBatch xử lý danh sách repository với checkpoint sau mỗi repo.
// Lỗi của từng repo không làm hỏng cả batch; lỗi storage thì có, vì chạy
// tiếp mà không lưu được tiến độ sẽ đốt quota hai lần cho cùng một việc.
func (s *Scheduler) RunBatch(ctx context.Context, names []string) (*Summary, error) {
	startTime := time.Now()
	s.Logger.Info(ctx, "Bắt đầu batch scraping vào %s", startTime.Format(time.RFC3339))

	queue, err := s.Checkpoint.Load(names)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	if len(queue) == 0 {
		s.Logger.Info(ctx, "Không còn repository nào cần xử lý, run trước đã hoàn tất")
		summary.Duration = time.Since(startTime)
		s.Shutdown(ctx)
		return summary, nil
	}

	plan := s.Governor.EstimateBatch(len(queue), s.Config.Crawler.MaxApiCallsPerHour, s.Config.Crawler.EstimatedCallsPerRepo)
	s.Logger.Info(ctx, "Cần xử lý %s repositories, chia thành %d lô (~%d repo/giờ, ước tính %s)",
		humanize.Comma(int64(len(queue))), plan.TotalBatches, plan.ItemsPerHour,
		humanize.RelTime(startTime, startTime.Add(time.Duration(plan.TotalBatches)*time.Hour), "", ""))

	delay := time.Duration(s.Config.Crawler.InterCallDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 2500 * time.Millisecond
	}

	for i, name := range queue {
		if ctx.Err() != nil {
			s.Logger.Warn(ctx, "Batch bị ngắt sau %d/%d repositories", i, len(queue))
			break
		}

		// Ranh giới lô: kiểm tra quota trước khi bước vào lô mới thay vì
		// để 403 tự tìm đến
		if i > 0 && plan.ItemsPerHour > 0 && i%plan.ItemsPerHour == 0 {
			if err := s.waitForQuota(ctx, i/plan.ItemsPerHour+1, plan.TotalBatches); err != nil {
				// Chạy tiếp khi storage đã chết chỉ đốt quota cho những
				// repo không thể lưu được, dừng run và giữ tiến độ đã có
				s.Logger.Error(ctx, "Dừng batch trước lô mới: %v", err)
				summary.Duration = time.Since(startTime)
				s.Shutdown(ctx)
				return nil, err
			}
		}

		s.processOne(ctx, name, i+1, len(queue), summary)

		if i < len(queue)-1 {
			if err := limiter.Sleep(ctx, delay); err != nil {
				break
			}
		}
	}

	summary.Duration = time.Since(startTime)
	s.logSummary(ctx, startTime, summary)
	s.Shutdown(ctx)

	return summary, nil
}

// processOne xử lý một repository và ghi kết quả vào checkpoint.
func (s *Scheduler) processOne(ctx context.Context, name string, position, total int, summary *Summary) {
	repoID, err := s.RepoMd.LookupID(name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.Logger.Warn(ctx, "Bỏ qua %s: không resolve được trong storage", name)
		summary.Skipped++
		metrics.ReposSkipped.Inc()
		if err := s.Checkpoint.MarkSkipped(name); err != nil {
			s.Logger.Error(ctx, "Không ghi được checkpoint: %v", err)
		}
		return
	}
	if err != nil {
		// Lỗi storage giữa run là fatal, xử lý ở mức repo chỉ ghi nhận failed
		s.Logger.Error(ctx, "Lỗi tra cứu %s: %v", name, err)
		summary.Failed++
		metrics.ReposFailed.Inc()
		if err := s.Checkpoint.MarkFailed(name); err != nil {
			s.Logger.Error(ctx, "Không ghi được checkpoint: %v", err)
		}
		return
	}

	samples, err := s.Assembler.FetchHistory(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			// Run đang shutdown, bỏ repo này lại cho lần chạy sau
			return
		}

		if errors.Is(err, githubapi.ErrNotFound) {
			s.Logger.Warn(ctx, "%s không tồn tại hoặc chưa có sao nào", name)
		} else {
			s.Logger.Error(ctx, "Crawl %s thất bại sau khi hết retry: %v", name, err)
		}

		summary.Failed++
		metrics.ReposFailed.Inc()
		if err := s.Checkpoint.MarkFailed(name); err != nil {
			s.Logger.Error(ctx, "Không ghi được checkpoint: %v", err)
		}
		return
	}

	// Lưu series ngay khi crawl xong, không dồn đến cuối batch
	if err := s.persist(ctx, repoID, name, samples); err != nil {
		s.Logger.Error(ctx, "Không lưu được series của %s: %v", name, err)
		summary.Failed++
		metrics.ReposFailed.Inc()
		if err := s.Checkpoint.MarkFailed(name); err != nil {
			s.Logger.Error(ctx, "Không ghi được checkpoint: %v", err)
		}
		return
	}

	summary.Successful++
	metrics.ReposCompleted.Inc()
	if err := s.Checkpoint.MarkCompleted(name); err != nil {
		s.Logger.Error(ctx, "Không ghi được checkpoint: %v", err)
	}

	anchor := samples[len(samples)-1]
	s.Logger.Info(ctx, "Tiến độ: %d/%d - %s có %s sao, %d điểm lịch sử",
		position, total, name, humanize.Comma(int64(anchor.Count)), len(samples))
}

func (s *Scheduler) persist(ctx context.Context, repoID int64, name string, samples []model.StarSample) error {
	if err := s.SampleMd.ReplaceForRepo(repoID, samples); err != nil {
		return err
	}
	metrics.SamplesPersisted.Add(float64(len(samples)))

	// Anchor point là số sao chính xác, cập nhật luôn vào bảng repos
	anchor := samples[len(samples)-1]
	if err := s.RepoMd.UpdateStarCount(repoID, anchor.Count); err != nil {
		return err
	}

	if s.Producer != nil {
		points := make([]model.HistoryPoint, 0, len(samples))
		for _, sample := range samples {
			points = append(points, model.HistoryPoint{Date: sample.Date, Count: sample.Count})
		}
		message := model.HistoryMessage{RepoID: repoID, FullName: name, Points: points}
		if err := s.Producer.Publish(ctx, "history", message); err != nil {
			// Kafka chỉ là đường phụ, storage mới là nguồn chính
			s.Logger.Warn(ctx, "Không publish được history của %s: %v", name, err)
		}
	}

	return nil
}

// waitForQuota chờ trước ranh giới lô nếu quota không đủ cho lô kế tiếp.
// Sau một lần chờ dài, kết nối storage phải sống lại trước khi lưu tiếp;
// chết thì trả về lỗi để dừng cả run.
func (s *Scheduler) waitForQuota(ctx context.Context, batch, totalBatches int) error {
	snapshot := s.Governor.Snapshot(ctx)
	if snapshot.Known && snapshot.Remaining >= s.Config.Crawler.EstimatedCallsPerRepo {
		return nil
	}

	wait := s.Governor.Decide(snapshot)
	s.Logger.Warn(ctx, "Quota không đủ trước lô %d/%d, chờ %v",
		batch, totalBatches, wait.Round(time.Second))
	metrics.RateLimitWaits.Inc()

	if err := limiter.Sleep(ctx, wait); err != nil {
		return nil
	}

	if wait > s.pingAfterWait() {
		if err := s.Mysql.Ping(); err != nil {
			return fmt.Errorf("storage connection lost after quota wait: %w", err)
		}
	}
	return nil
}

// pingAfterWait là ngưỡng chờ mà sau đó kết nối storage phải được kiểm tra lại.
func (s *Scheduler) pingAfterWait() time.Duration {
	if s.Config.Crawler.StoragePingAfterWaitSec > 0 {
		return time.Duration(s.Config.Crawler.StoragePingAfterWaitSec) * time.Second
	}
	return 5 * time.Minute
}

// Shutdown flush checkpoint đúng một lần, dùng chung cho kết thúc bình thường
// và signal handler.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		if err := s.Checkpoint.Flush(); err != nil {
			s.Logger.Error(ctx, "Không flush được checkpoint khi shutdown: %v", err)
		}
		if s.Producer != nil {
			if err := s.Producer.Close(); err != nil {
				s.Logger.Error(ctx, "Không đóng được kafka producer: %v", err)
			}
		}
		s.Logger.Info(ctx, "Đã flush checkpoint, scheduler dừng")
	})
}

func (s *Scheduler) logSummary(ctx context.Context, startTime time.Time, summary *Summary) {
	endTime := time.Now()

	s.Logger.Info(ctx, "==== KẾT QUẢ BATCH SCRAPING ====")
	s.Logger.Info(ctx, "Thời gian bắt đầu: %s", startTime.Format(time.RFC3339))
	s.Logger.Info(ctx, "Thời gian kết thúc: %s", endTime.Format(time.RFC3339))
	s.Logger.Info(ctx, "Tổng thời gian thực hiện: %v", summary.Duration.Round(time.Second))
	s.Logger.Info(ctx, "Repositories thành công: %d", summary.Successful)
	s.Logger.Info(ctx, "Repositories thất bại: %d", summary.Failed)
	s.Logger.Info(ctx, "Repositories bỏ qua (không resolve được): %d", summary.Skipped)
	s.Logger.Info(ctx, "Repositories còn lại trong hàng đợi: %d", s.Checkpoint.Remaining())
}
