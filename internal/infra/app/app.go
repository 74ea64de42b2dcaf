package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/infra/audit"
	"github.com/arklim/library-staff-auth/internal/infra/breach"
	"github.com/arklim/library-staff-auth/internal/infra/config"
	"github.com/arklim/library-staff-auth/internal/infra/database"
	kafkainfra "github.com/arklim/library-staff-auth/internal/infra/kafka"
	"github.com/arklim/library-staff-auth/internal/infra/logger"
	redisinfra "github.com/arklim/library-staff-auth/internal/infra/redis"
	"github.com/arklim/library-staff-auth/internal/infra/security"
	"github.com/arklim/library-staff-auth/internal/infra/telemetry"
	postgresrepo "github.com/arklim/library-staff-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/library-staff-auth/internal/repository/redis"
	"github.com/arklim/library-staff-auth/internal/transport/http/middleware"
	"github.com/arklim/library-staff-auth/internal/transport/http/routes"
	"github.com/arklim/library-staff-auth/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.Attach(registry)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
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

	var (
		eventPublisher port.EventPublisher
		producer       *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log, metrics.ObservePublishFailure)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	auditRecorder := audit.NewRecorder(log,
		audit.WithStore(postgresrepo.NewAuditLogRepository(pool)),
		audit.WithPublisher(eventPublisher),
		audit.WithMetrics(metrics),
	)

	hasher, err := security.NewPasswordHasher(cfg.Password.Algorithm, cfg.Password.BcryptCost, security.Argon2Config{
		Memory:      cfg.Password.Argon2.Memory,
		Iterations:  cfg.Password.Argon2.Iterations,
		Parallelism: cfg.Password.Argon2.Parallelism,
		SaltLength:  cfg.Password.Argon2.SaltLength,
		KeyLength:   cfg.Password.Argon2.KeyLength,
	})
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	passwordPolicy := security.NewPasswordPolicy(security.NewStaffPasswordValidator(security.PasswordPolicySettings{
		MinLength:      cfg.Password.MinLength,
		MinZxcvbnScore: cfg.Password.MinZxcvbnScore,
	}))
	ids := security.NewULIDGenerator()
	tokens := security.NewSessionTokens()

	transactor := postgresrepo.NewTransactor(pool)
	repos := transactor.Repositories()

	terminationStore := redisrepo.NewSessionTerminationStore(redisClient.Client(), cfg.Redis.TerminationPrefix)
	sessionService := usecase.NewSessionService(repos.Sessions(), transactor, auditRecorder, usecase.SessionPolicy{
		AdminLimit:      cfg.Session.AdminLimit,
		StaffLimit:      cfg.Session.StaffLimit,
		IdleTimeout:     cfg.Session.IdleTimeout,
		AbsoluteTimeout: cfg.Session.AbsoluteTimeout,
		TerminationTTL:  cfg.Redis.TerminationTTL,
	}, log).WithTerminationStore(terminationStore)

	historyService := usecase.NewPasswordHistoryService(repos.PasswordHistory(), hasher, ids, cfg.Password.HistoryDepth, log)
	loginService := usecase.NewLoginService(transactor, repos.Staff(), hasher, tokens, sessionService, auditRecorder, log)
	accountService := usecase.NewStaffAccountService(transactor, repos.Staff(), hasher, security.NewSecurePasswordGenerator(), ids,
		historyService, sessionService, auditRecorder, cfg.Password.TemporaryLength, log)

	changeOpts := usecase.PasswordChangeOptions{
		BreachTimeout: cfg.Breach.Timeout,
		Degradation:   domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.Breach.DegradationPolicy)),
		Observer:      metrics,
	}
	if cfg.Breach.Enabled {
		changeOpts.Breach = breach.NewChecker(cfg.Breach.Endpoint, breach.WithTimeout(cfg.Breach.Timeout))
	}
	changeService := usecase.NewPasswordChangeService(transactor, repos.Staff(), hasher, passwordPolicy, historyService,
		sessionService, auditRecorder, changeOpts, log)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log).
		OnLimited(func(string) { metrics.ObserveRateLimited() })

	engine := routes.Register(routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		RateLimiter:    rateLimiter,
		Tokens:         tokens,
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		TracerProvider: tracer.Provider(),
		Database:       pool,
		Cache:          redisClient,
		Services: routes.ServiceSet{
			Login:          loginService,
			Sessions:       sessionService,
			PasswordChange: changeService,
			Accounts:       accountService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		tracer:   tracer,
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
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			_ = a.tracer.Shutdown(context.Background())
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting staff auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
