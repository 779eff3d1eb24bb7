package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/logging"
	"github.com/smukkama/energy-workshop/internal/queue"
	"github.com/smukkama/energy-workshop/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logger.Close()

	logger.Info("starting event journal", "topic", cfg.Kafka.TopicEvents)

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, "workshop-journal")
	defer consumer.Close()

	// Batch size: 100 events, flush interval: 5 seconds
	batchWriter := queue.NewBatchWriter(consumer, db, 100, 5*time.Second, logger.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batchWriter.Start(ctx)

	// Print consumer stats periodically
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := consumer.Stats()
				logger.Info("consumer stats", "messages", stats.Messages, "bytes", stats.Bytes, "errors", stats.Errors)
			}
		}
	}()

	logger.Info("event journal is running", "batch_size", 100, "flush_interval", 5*time.Second)

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	batchWriter.Stop()
	cancel()
	logger.Info("event journal stopped")
}
