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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicflow/queue-api/internal/announce"
	"github.com/clinicflow/queue-api/internal/config"
	"github.com/clinicflow/queue-api/internal/handler"
	appointmentHandler "github.com/clinicflow/queue-api/internal/handler/appointment"
	branchHandler "github.com/clinicflow/queue-api/internal/handler/branch"
	queueHandler "github.com/clinicflow/queue-api/internal/handler/queue"
	scheduleHandler "github.com/clinicflow/queue-api/internal/handler/schedule"
	"github.com/clinicflow/queue-api/internal/middleware"
	"github.com/clinicflow/queue-api/internal/repository/postgres"
	"github.com/clinicflow/queue-api/internal/router"
	queueService "github.com/clinicflow/queue-api/internal/service/queue"
	"github.com/clinicflow/queue-api/internal/service/scheduling"
	"github.com/clinicflow/queue-api/internal/service/survey"
	"github.com/clinicflow/queue-api/pkg/auth"
	"github.com/clinicflow/queue-api/pkg/logger"
	"github.com/clinicflow/queue-api/pkg/messaging/redis"
	"github.com/clinicflow/queue-api/pkg/metrics"
)

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	appMetrics := metrics.NewMetrics("clinicflow", "api")

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(baseRepo)
	branchRepo := postgres.NewBranchRepository(baseRepo)
	appointmentRepo := postgres.NewAppointmentRepository(baseRepo)
	servicePointRepo := postgres.NewServicePointRepository(baseRepo)
	queueRepo := postgres.NewQueueRepository(baseRepo)

	// Services
	schedulingSvc := scheduling.NewService(
		scheduleRepo,
		branchRepo,
		appointmentRepo,
		scheduling.Config{PolicyCacheTTL: cfg.Scheduling.PolicyCacheTTL()},
		appLogger,
		appMetrics,
	)
	surveySvc := survey.NewService(broker, cfg.Queue.SurveyChannel, appLogger)
	announcer := announce.NewBrokerAnnouncer(broker, cfg.Queue.AnnounceChannel, cfg.Announce)
	queueSvc := queueService.NewService(
		queueRepo,
		appointmentRepo,
		servicePointRepo,
		surveySvc,
		announcer,
		appLogger,
		appMetrics,
	)

	// Middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(auth.NewTokenVerifier(cfg.JWT.Secret))
	appointmentH := appointmentHandler.NewHandler(schedulingSvc)
	queueH := queueHandler.NewHandler(queueSvc)
	scheduleH := scheduleHandler.NewHandler(scheduleRepo)
	branchH := branchHandler.NewHandler(branchRepo, schedulingSvc)
	healthH := handler.NewHealthHandler(db)

	r := router.New(
		authMiddleware,
		appointmentH,
		queueH,
		scheduleH,
		branchH,
		healthH,
		router.Config{
			RateLimitRPS:   cfg.RateLimit.RPS,
			RateLimitBurst: cfg.RateLimit.Burst,
			RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig:     middleware.DefaultCORSConfig(),
			MetricsPrefix:  "clinicflow_http",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited")
}
