// Consumer nhận các HistoryMessage do scheduler publish và lưu vào storage.
// Đường Kafka là tùy chọn: scheduler luôn tự lưu trực tiếp, consumer phục vụ
// các deployment muốn tách việc ghi sang một process riêng.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thep200/star-history-crawler/cfg"
	"github.com/thep200/star-history-crawler/internal/model"
	"github.com/thep200/star-history-crawler/pkg/db"
	"github.com/thep200/star-history-crawler/pkg/kafka"
	"github.com/thep200/star-history-crawler/pkg/log"
)

func main() {
	// Load configuration
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, _ := log.NewCslLogger()

	// Setup database
	mysql, _ := db.NewMysql(config)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create models
	sampleModel, _ := model.NewStarSample(config, logger, mysql)

	if err := mysql.Migrate(sampleModel); err != nil {
		logger.Error(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	startHistoryConsumer(ctx, config, logger, sampleModel)

	// Wait for termination signal
	<-sigCh
	logger.Info(ctx, "Received shutdown signal, gracefully shutting down...")
	cancel()
}

func startHistoryConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, sampleModel *model.StarSample) {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicHistory, "history-consumer-group")

	// Register handler for history messages
	consumer.RegisterHandler("history", func(data []byte) error {
		var historyMsg model.HistoryMessage
		if err := json.Unmarshal(data, &historyMsg); err != nil {
			return fmt.Errorf("failed to unmarshal history message: %w", err)
		}

		samples := make([]model.StarSample, 0, len(historyMsg.Points))
		for _, point := range historyMsg.Points {
			samples = append(samples, model.StarSample{Date: point.Date, Count: point.Count})
		}

		// Save series to database
		if err := sampleModel.ReplaceForRepo(historyMsg.RepoID, samples); err != nil {
			return fmt.Errorf("failed to save history to database: %w", err)
		}

		logger.Info(ctx, "Saved %d points for %s", len(samples), historyMsg.FullName)
		return nil
	})

	// Start consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "History consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "History consumer started successfully")
}
