package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smukkama/energy-workshop/internal/analysis"
	"github.com/smukkama/energy-workshop/internal/broadcast"
	"github.com/smukkama/energy-workshop/internal/coordinator"
	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/httpapi"
	"github.com/smukkama/energy-workshop/internal/logging"
	"github.com/smukkama/energy-workshop/internal/metrics"
	"github.com/smukkama/energy-workshop/internal/optimizer"
	"github.com/smukkama/energy-workshop/internal/queue"
	"github.com/smukkama/energy-workshop/internal/status"
	"github.com/smukkama/energy-workshop/internal/timer"
	"github.com/smukkama/energy-workshop/internal/timeseries"
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

	logger.Info("starting workshop server", "teams", len(cfg.Workshop.TeamNames), "optimizer", cfg.Optimizer.Mode)

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()

	seeded, err := db.SeedTeams(ctx, cfg.Workshop.TeamNames, database.DefaultParameters())
	if err != nil {
		log.Fatalf("Failed to seed teams: %v", err)
	}
	if seeded > 0 {
		logger.Info("seeded teams", "count", seeded)
	}

	// A restart orphans every simulation that was running
	tracker := status.NewTracker(db)
	reset, err := tracker.ResetInterrupted(ctx)
	if err != nil {
		log.Fatalf("Failed to reset interrupted simulations: %v", err)
	}
	if reset > 0 {
		logger.Warn("reset interrupted simulations", "count", reset)
	}

	// Bundle cache
	var cache timeseries.Cache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, bundle cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			cache = timeseries.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
			logger.Info("bundle cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	extractor := timeseries.NewExtractor(cfg.Workshop.DumpsDir(), cache, logger.Logger)
	analysisService := analysis.NewService(cfg.Economics, cfg.Workshop.TablesDir(), extractor, logger.Logger)

	runner, err := optimizer.New(cfg.Optimizer, cfg.Workshop, logger.Logger)
	if err != nil {
		log.Fatalf("Failed to create optimizer: %v", err)
	}

	m := metrics.New()

	// Listener idle checks run on the scheduler
	scheduler := timer.NewScheduler()
	scheduler.Start()
	defer scheduler.Stop()

	hub := broadcast.NewHub(broadcast.HubConfig{
		MaxListeners: cfg.HTTP.MaxListeners,
		IdleTimeout:  cfg.HTTP.ListenerIdleTimeout,
	}, scheduler, logger.Logger)
	hub.SetGauge(m.ListenerGauge())
	defer hub.Close()

	publishers := broadcast.Multi{hub}
	if cfg.Kafka.Enabled {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.NumPartitions, 1); err != nil {
			logger.Warn("topic creation failed (may already exist)", "topic", cfg.Kafka.TopicEvents, "error", err)
		}
		producer := queue.NewEventProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, logger.Logger)
		defer producer.Close()
		publishers = append(publishers, producer)
		logger.Info("event journal enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.TopicEvents)
	}

	coord := coordinator.New(coordinator.Deps{
		Teams:     db,
		Tracker:   tracker,
		Runner:    runner,
		Results:   extractor,
		Analysis:  analysisService,
		Publisher: publishers,
		Metrics:   m,
		Logger:    logger.Logger,
	})

	api := httpapi.New(httpapi.Deps{
		Teams:     db,
		Simulator: coord,
		Results:   extractor,
		Analysis:  analysisService,
		Publisher: publishers,
		Hub:       hub,
		Upgrader:  broadcast.NewUpgrader(cfg.HTTP.AllowedOrigins),
		Metrics:   m,
		Logger:    logger.Logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.Handler(cfg.HTTP.AllowedOrigins, os.Stdout),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	logger.Info("workshop server is running", "port", cfg.HTTP.Port)

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}

	// Let a running batch finish so no team is left in running
	if batchID, running := coord.Running(); running {
		logger.Info("waiting for simulation batch", "batch_id", batchID)
	}
	coord.Wait()
}
