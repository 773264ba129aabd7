// Package api cung cấp facade public để tương tác với star-history crawler
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/crawler"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/internal/limiter"
	"github.com/thep200/star-history-crawler/internal/model"
	"github.com/thep200/star-history-crawler/pkg/db"
	"github.com/thep200/star-history-crawler/pkg/kafka"
	"github.com/thep200/star-history-crawler/pkg/log"
)

// RunStats chứa thống kê về lần chạy batch hiện tại hoặc gần nhất
type RunStats struct {
	IsRunning  bool      `json:"isRunning"`
	StartTime  time.Time `json:"startTime"`
	Duration   string    `json:"duration"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	LastError  string    `json:"lastError"`
}

// ScraperAPI cung cấp các API để tương tác với crawler
type ScraperAPI struct {
	ctx       context.Context
	config    *cfg.Config
	logger    log.Logger
	mysql     *db.Mysql
	caller    *githubapi.Caller
	governor  *limiter.Governor
	retrier   *limiter.Retrier
	assembler *crawler.Assembler
	producer  *kafka.Producer

	running bool
	statsMu sync.RWMutex
	stats   *RunStats
}

// NewScraperAPI tạo một instance mới của ScraperAPI
func NewScraperAPI() *ScraperAPI {
	return &ScraperAPI{
		stats: &RunStats{},
	}
}

// Initialize khởi tạo các thành phần cần thiết cho crawler
func (a *ScraperAPI) Initialize(ctx context.Context) error {
	a.ctx = ctx

	var err error

	// Load configuration
	loader, _ := cfg.NewViperLoader()
	a.config, err = loader.Load()
	if err != nil {
		a.logger, _ = log.NewCslLogger()
		a.logger.Error(a.ctx, "Failed to load configuration: %v", err)
		return err
	}

	// Set up logger
	a.logger, err = log.NewCslLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	// Set up database
	a.mysql, err = db.NewMysql(a.config)
	if err != nil {
		a.logger.Error(a.ctx, "Failed to connect to database: %v", err)
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set up crawler components
	a.caller = githubapi.NewCaller(a.logger, a.config)

	a.governor, err = limiter.NewGovernor(a.logger, a.config, a.caller)
	if err != nil {
		return fmt.Errorf("failed to create governor: %w", err)
	}

	a.retrier, err = limiter.NewRetrier(a.logger, a.config, a.governor)
	if err != nil {
		return fmt.Errorf("failed to create retrier: %w", err)
	}

	a.assembler, err = crawler.NewAssembler(a.logger, a.config, a.caller, a.retrier)
	if err != nil {
		return fmt.Errorf("failed to create assembler: %w", err)
	}

	if a.config.Kafka.Enabled {
		a.producer = kafka.NewProducer(a.config, a.logger, a.config.Kafka.Producer.TopicHistory)
	}

	// Migrate database tables
	return a.migrateDatabase()
}

// migrateDatabase đảm bảo các bảng cần thiết tồn tại
func (a *ScraperAPI) migrateDatabase() error {
	if a.mysql == nil {
		return errors.New("database connection not initialized")
	}

	repoMd, err := model.NewRepo(a.config, a.logger, a.mysql)
	if err != nil {
		return fmt.Errorf("failed to create repo model: %w", err)
	}

	sampleMd, err := model.NewStarSample(a.config, a.logger, a.mysql)
	if err != nil {
		return fmt.Errorf("failed to create star sample model: %w", err)
	}

	return a.mysql.Migrate(repoMd, sampleMd)
}

// FetchHistory dựng chuỗi điểm lịch sử sao cho một repository duy nhất
func (a *ScraperAPI) FetchHistory(fullName string) ([]model.StarSample, error) {
	if a.assembler == nil {
		return nil, errors.New("scraper is not initialized")
	}
	return a.assembler.FetchHistory(a.ctx, fullName)
}

// RunBatch chạy batch scraping cho danh sách repository.
// Danh sách rỗng nghĩa là lấy toàn bộ repository trong storage.
func (a *ScraperAPI) RunBatch(names []string) (*crawler.Summary, error) {
	a.statsMu.Lock()
	if a.running {
		a.statsMu.Unlock()
		return nil, errors.New("a batch run is already in progress")
	}
	a.running = true
	a.stats = &RunStats{IsRunning: true, StartTime: time.Now()}
	a.statsMu.Unlock()

	defer func() {
		a.statsMu.Lock()
		a.running = false
		a.stats.IsRunning = false
		a.statsMu.Unlock()
	}()

	if len(names) == 0 {
		repoMd, err := model.NewRepo(a.config, a.logger, a.mysql)
		if err != nil {
			return nil, fmt.Errorf("failed to create repo model: %w", err)
		}
		names, err = repoMd.AllFullNames()
		if err != nil {
			a.setLastError(err)
			return nil, err
		}
	}

	checkpoint, err := crawler.NewCheckpointStore(a.logger, a.config.Crawler.CheckpointDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	scheduler, err := crawler.NewScheduler(a.logger, a.config, a.mysql, a.assembler, a.governor, checkpoint, a.producer)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	summary, err := scheduler.RunBatch(a.ctx, names)
	if err != nil {
		a.setLastError(err)
		return nil, err
	}

	a.statsMu.Lock()
	a.stats.Successful = summary.Successful
	a.stats.Failed = summary.Failed
	a.stats.Skipped = summary.Skipped
	a.stats.Duration = summary.Duration.String()
	a.statsMu.Unlock()

	return summary, nil
}

// PersistHistory lưu một series đã fetch vào storage, tạo repository nếu chưa có.
func (a *ScraperAPI) PersistHistory(fullName string, samples []model.StarSample) error {
	user, name, ok := crawler.SplitFullName(fullName)
	if !ok {
		return fmt.Errorf("invalid repository full name: %q", fullName)
	}
	if len(samples) == 0 {
		return errors.New("empty sample series")
	}

	repoMd, err := model.NewRepo(a.config, a.logger, a.mysql)
	if err != nil {
		return fmt.Errorf("failed to create repo model: %w", err)
	}

	// Anchor point là điểm cuối cùng, mang số sao chính xác
	anchor := samples[len(samples)-1]
	if err := repoMd.Upsert(user, name, anchor.Count); err != nil {
		return err
	}

	repoID, err := repoMd.LookupID(fullName)
	if err != nil {
		return err
	}

	sampleMd, err := model.NewStarSample(a.config, a.logger, a.mysql)
	if err != nil {
		return fmt.Errorf("failed to create star sample model: %w", err)
	}

	return sampleMd.ReplaceForRepo(repoID, samples)
}

// GetRunStats trả về thống kê về lần chạy batch
func (a *ScraperAPI) GetRunStats() (*RunStats, error) {
	a.statsMu.RLock()
	defer a.statsMu.RUnlock()

	stats := *a.stats
	if stats.IsRunning {
		stats.Duration = time.Since(stats.StartTime).String()
	}

	return &stats, nil
}

func (a *ScraperAPI) setLastError(err error) {
	a.statsMu.Lock()
	a.stats.LastError = err.Error()
	a.statsMu.Unlock()
}

// GetDatabaseStatus kiểm tra trạng thái kết nối cơ sở dữ liệu
func (a *ScraperAPI) GetDatabaseStatus() (string, error) {
	if a.mysql == nil {
		return "Database not initialized", nil
	}

	if err := a.mysql.Ping(); err != nil {
		return "Database not connected: " + err.Error(), err
	}

	return "Database connected", nil
}
