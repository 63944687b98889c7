// Package app wires together all dependencies and runs the identity service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/GlennOnyango/housing-nest-be/internal/auth"
	"github.com/GlennOnyango/housing-nest-be/internal/config"
	"github.com/GlennOnyango/housing-nest-be/internal/domain"
	"github.com/GlennOnyango/housing-nest-be/internal/event"
	handler "github.com/GlennOnyango/housing-nest-be/internal/handler/http"
	"github.com/GlennOnyango/housing-nest-be/internal/lockout"
	"github.com/GlennOnyango/housing-nest-be/internal/ratelimit"
	"github.com/GlennOnyango/housing-nest-be/internal/repository/postgres"
	"github.com/GlennOnyango/housing-nest-be/internal/service"
	"github.com/GlennOnyango/housing-nest-be/internal/token"
	"github.com/GlennOnyango/housing-nest-be/migrations"
	"github.com/GlennOnyango/housing-nest-be/pkg/database"
	"github.com/GlennOnyango/housing-nest-be/pkg/health"
	pkgkafka "github.com/GlennOnyango/housing-nest-be/pkg/kafka"
	"github.com/GlennOnyango/housing-nest-be/pkg/middleware"
	"github.com/GlennOnyango/housing-nest-be/pkg/tracing"
)

// App holds the long-lived components of the identity service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates an application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "identity",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        int32(cfg.DBMaxConns),
		MinConns:        int32(cfg.DBMinConns),
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "identity")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the per-address magic-link rate limiter.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)))

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	hasher := auth.NewHasher(auth.DefaultHasherConfig())
	totp := auth.NewTOTP(cfg.TOTPIssuer)

	identityRepo := postgres.NewIdentityRepository(pool)
	membershipRepo := postgres.NewMembershipRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	tokenStore := token.NewStore(tokenRepo, hasher)

	eventProducer := event.NewProducer(producer, logger)

	policy := lockout.Policy{
		Threshold: cfg.LockoutThreshold,
		BaseLock:  config.Duration(cfg.LockoutBase),
		MaxLock:   config.Duration(cfg.LockoutMax),
	}

	magicLinkLimiter := ratelimit.NewLimiter(redisClient, "magiclink",
		int64(cfg.MagicLinkRateLimit), config.Duration(cfg.MagicLinkRateWindow))

	accessExpiry := config.Duration(cfg.JWTAccessExpiry)
	pendingExpiry := config.Duration(cfg.MFAPendingTTL)

	tenantJWT := auth.NewJWTManager(cfg.TenantJWTSecret, domain.DomainTenant, accessExpiry, pendingExpiry)
	adminJWT := auth.NewJWTManager(cfg.AdminJWTSecret, domain.DomainAdmin, accessExpiry, pendingExpiry)

	authCfg := service.AuthConfig{
		RefreshTTL:      config.Duration(cfg.RefreshTTL),
		MagicLinkTTL:    config.Duration(cfg.MagicLinkTTL),
		RecoveryCodeTTL: config.Duration(cfg.RecoveryCodeTTL),
		RecoveryCodes:   8,
	}

	tenantCfg := authCfg
	tenantCfg.Domain = domain.DomainTenant
	tenantAuth := service.NewAuthService(tenantCfg, identityRepo, membershipRepo, tokenStore,
		hasher, totp, tenantJWT, policy, magicLinkLimiter, eventProducer, logger)

	adminCfg := authCfg
	adminCfg.Domain = domain.DomainAdmin
	adminAuth := service.NewAuthService(adminCfg, identityRepo, membershipRepo, tokenStore,
		hasher, totp, adminJWT, policy, nil, eventProducer, logger)

	linkService := service.NewLinkService(service.LinkConfig{
		InviteTTL:      config.Duration(cfg.InviteTTL),
		InvoiceLinkTTL: config.Duration(cfg.InvoiceLinkTTL),
	}, identityRepo, membershipRepo, tokenStore, eventProducer, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	// HTTP router.
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment
	router := handler.NewRouter(tenantAuth, adminAuth, linkService, healthHandler, logger, corsCfg)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: drain HTTP, flush
// spans, then close the producer, Redis, and the pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
