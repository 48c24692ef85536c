package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/config"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/database"
	kafkainfra "github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/kafka"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/logger"
	redisinfra "github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/redis"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/telemetry"
	postgresrepo "github.com/putYourWifeOuttaWork/fieldops-core/internal/repository/postgres"
	redisrepo "github.com/putYourWifeOuttaWork/fieldops-core/internal/repository/redis"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/middleware"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/transport/http/routes"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/usecase"
)

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	sweeper *usecase.Sweeper
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if _, err := telemetry.Attach(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	txManager := postgresrepo.NewTxManager(pool)

	principalCache := redisrepo.NewPrincipalCache(redisClient.Client(), cfg.Redis.PrincipalPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	accessService := usecase.NewAccessService(repos.Users, repos.Memberships, repos.Programs, principalCache, log)
	if cfg.Redis.PrincipalTTL > 0 {
		accessService = accessService.WithCacheTTL(cfg.Redis.PrincipalTTL)
	}

	historyService := usecase.NewHistoryService(repos.History, repos.Users, repos.Programs, eventPublisher, log)

	visitService := usecase.NewVisitService(
		repos.Sessions,
		repos.Submissions,
		repos.Observations,
		repos.Sites,
		repos.Programs,
		repos.Memberships,
		repos.Users,
		accessService,
		historyService,
		txManager,
		eventPublisher,
		log,
	)

	programService := usecase.NewProgramService(
		repos.Programs, repos.Memberships, repos.Observations, repos.Users,
		accessService, historyService, txManager, log,
	)

	userService := usecase.NewUserService(repos.Users, repos.Memberships, accessService, historyService, txManager, log)

	var sweeper *usecase.Sweeper
	if cfg.Sweep.Interval > 0 {
		sweeper, err = usecase.NewSweeper(visitService, log, usecase.SweeperOptions{
			Interval: cfg.Sweep.Interval,
		})
		if err != nil {
			_ = redisClient.Close()
			pool.Close()
			return nil, fmt.Errorf("init sweeper: %w", err)
		}
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Access:   accessService,
			Visits:   visitService,
			History:  historyService,
			Programs: programService,
			Users:    userService,
		},
	})

	return &Application{
		cfg:     cfg,
		engine:  engine,
		logger:  log,
		pool:    pool,
		redis:   redisClient,
		sweeper: sweeper,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	if a.sweeper != nil {
		go a.sweeper.Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting fieldops API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
