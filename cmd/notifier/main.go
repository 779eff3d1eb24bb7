package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/smukkama/energy-workshop/internal/logging"
	"github.com/smukkama/energy-workshop/internal/notification"
	"github.com/smukkama/energy-workshop/internal/queue"
	"github.com/smukkama/energy-workshop/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logger.Close()

	logger.Info("starting notification service", "topic", cfg.Kafka.TopicEvents)

	notifier := notification.NewEmailNotifier(&cfg.SMTP, logger.Logger)

	// SMTP is optional, without it notifications are only logged
	if err := notifier.TestConnection(); err != nil {
		logger.Warn("SMTP unavailable, notifications will be logged only", "error", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, "workshop-notifier")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		queue.Relay(ctx, consumer, notification.Notifies, notifier.Notify, logger.Logger)
	}()

	logger.Info("notification service is running")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	cancel()
	<-done
}
