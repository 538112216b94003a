package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicflow/queue-api/internal/config"
	"github.com/clinicflow/queue-api/internal/repository/postgres"
	"github.com/clinicflow/queue-api/pkg/logger"
	"github.com/clinicflow/queue-api/pkg/messaging/redis"
	"github.com/clinicflow/queue-api/pkg/metrics"
	"github.com/clinicflow/queue-api/pkg/worker"
)

// workerConfig is read straight from the environment; the worker has no
// config file of its own.
type workerConfig struct {
	RedisURL        string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	EventChannel    string        `envconfig:"EVENT_CHANNEL" default:"clinicflow.events"`
	BatchSize       int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	PollInterval    time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	OutboxRetention time.Duration `envconfig:"OUTBOX_RETENTION" default:"168h"`
	PurgeSchedule   string        `envconfig:"OUTBOX_PURGE_SCHEDULE" default:"0 3 * * *"`
	SweepSchedule   string        `envconfig:"QUEUE_SWEEP_SCHEDULE" default:"55 23 * * *"`
	HealthPort      int           `envconfig:"HEALTH_PORT" default:"8081"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	_ = godotenv.Load()

	var wcfg workerConfig
	if err := envconfig.Process("worker", &wcfg); err != nil {
		log.Fatal().Err(err).Msg("failed to process worker config")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(wcfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	wlogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	}).WithFields(map[string]interface{}{"component": "worker"})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	brokerCfg := cfg.Redis.ToBrokerConfig()
	brokerCfg.URL = wcfg.RedisURL
	broker, err := redis.NewRedisBroker(brokerCfg, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	workerMetrics := metrics.NewMetrics("clinicflow", "worker")

	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)
	queueRepo := postgres.NewQueueRepository(baseRepo)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:    wcfg.BatchSize,
			PollInterval: wcfg.PollInterval,
			Channel:      wcfg.EventChannel,
		},
		wlogger,
		workerMetrics,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.New()

	// Purge processed outbox rows past retention.
	_, err = scheduler.AddFunc(wcfg.PurgeSchedule, func() {
		before := time.Now().Add(-wcfg.OutboxRetention)
		deleted, err := outboxRepo.DeleteProcessedBefore(ctx, before)
		if err != nil {
			wlogger.Error(err, "outbox purge failed")
			return
		}
		wlogger.Info("outbox purge complete", "deleted", deleted)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid outbox purge schedule")
	}

	// End-of-day sweep: queue entries still open at close get expired so
	// tomorrow starts from an empty board.
	_, err = scheduler.AddFunc(wcfg.SweepSchedule, func() {
		closed, err := queueRepo.CloseStaleEntries(ctx, time.Now())
		if err != nil {
			wlogger.Error(err, "queue sweep failed")
			return
		}
		wlogger.Info("queue sweep complete", "closed", closed)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid queue sweep schedule")
	}

	scheduler.Start()
	defer scheduler.Stop()

	setupHealthCheck(wcfg.HealthPort, wlogger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		wlogger.Info("shutting down")
		cancel()
	}()

	processor.Start(ctx)
}

func setupHealthCheck(port int, wlogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			wlogger.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
}
