package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/crawler"
	"github.com/thep200/star-history-crawler/internal/githubapi"
	"github.com/thep200/star-history-crawler/internal/limiter"
	"github.com/thep200/star-history-crawler/internal/model"
	"github.com/thep200/star-history-crawler/pkg/db"
	"github.com/thep200/star-history-crawler/pkg/kafka"
	"github.com/thep200/star-history-crawler/pkg/log"
	"github.com/thep200/star-history-crawler/pkg/metrics"
)

func main() {
	resetFlag := flag.Bool("reset", false, "Xóa checkpoint cũ và bắt đầu lại từ đầu")
	inputFlag := flag.String("input", "", "File chứa danh sách repository (mỗi dòng một owner/name), bỏ trống để lấy từ storage")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// loader, _ := cfg.NewMockLoader()
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := log.NewCslLogger()
	mysql, _ := db.NewMysql(config)
	repoMd, _ := model.NewRepo(config, logger, mysql)
	sampleMd, _ := model.NewStarSample(config, logger, mysql)

	// Migrate database
	if err := mysql.Migrate(repoMd, sampleMd); err != nil {
		logger.Error(ctx, "Không migrate được database: %v", err)
		os.Exit(1)
	}

	// Metrics listener cho các run kéo dài nhiều giờ (tùy chọn)
	metrics.Serve(config.Metrics.ListenAddr)

	// Dựng các thành phần crawler
	caller := githubapi.NewCaller(logger, config)
	governor, _ := limiter.NewGovernor(logger, config, caller)
	retrier, _ := limiter.NewRetrier(logger, config, governor)
	assembler, err := crawler.NewAssembler(logger, config, caller, retrier)
	if err != nil {
		logger.Error(ctx, "Không khởi tạo được assembler: %v", err)
		os.Exit(1)
	}

	checkpoint, _ := crawler.NewCheckpointStore(logger, config.Crawler.CheckpointDir)
	if *resetFlag {
		if err := checkpoint.Reset(); err != nil {
			logger.Error(ctx, "Không reset được checkpoint: %v", err)
			os.Exit(1)
		}
		logger.Info(ctx, "Đã xóa checkpoint cũ")
	}

	var producer *kafka.Producer
	if config.Kafka.Enabled {
		producer = kafka.NewProducer(config, logger, config.Kafka.Producer.TopicHistory)
	}

	scheduler, err := crawler.NewScheduler(logger, config, mysql, assembler, governor, checkpoint, producer)
	if err != nil {
		logger.Error(ctx, "Không khởi tạo được scheduler: %v", err)
		os.Exit(1)
	}

	// Danh sách công việc: file input hoặc toàn bộ repo trong storage
	var names []string
	if *inputFlag != "" {
		names, err = readNames(*inputFlag)
	} else {
		names, err = repoMd.AllFullNames()
	}
	if err != nil {
		logger.Error(ctx, "Không đọc được danh sách repository: %v", err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM: flush checkpoint với tiến độ đã tích lũy rồi thoát,
	// call đang bay được phép bỏ dở
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn(ctx, "Nhận tín hiệu dừng, flush checkpoint và thoát")
		cancel()
		scheduler.Shutdown(ctx)
	}()

	logger.Info(ctx, "Starting star history batch scraper")
	summary, err := scheduler.RunBatch(ctx, names)
	if err != nil {
		var corruption *crawler.CorruptionError
		if errors.As(err, &corruption) {
			logger.Error(ctx, "Checkpoint hỏng: %v", err)
			logger.Error(ctx, "Chạy lại với cờ -reset nếu chấp nhận bỏ tiến độ cũ")
		} else {
			logger.Error(ctx, "Batch run thất bại: %v", err)
		}
		os.Exit(1)
	}

	printSummary(summary)
}

func readNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			names = append(names, line)
		}
	}
	return names, scanner.Err()
}

func printSummary(summary *crawler.Summary) {
	green := color.New(color.FgGreen).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()
	yellow := color.New(color.FgYellow).SprintfFunc()

	fmt.Println("Batch run finished in", summary.Duration.Round(time.Second))
	fmt.Println(green("  successful: %d", summary.Successful))
	fmt.Println(red("  failed:     %d", summary.Failed))
	fmt.Println(yellow("  skipped:    %d", summary.Skipped))
}
