package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/brandcatalog/internal/cache"
	"github.com/utafrali/brandcatalog/internal/config"
	"github.com/utafrali/brandcatalog/internal/event"
	handler "github.com/utafrali/brandcatalog/internal/handler/http"
	"github.com/utafrali/brandcatalog/internal/repository/postgres"
	"github.com/utafrali/brandcatalog/internal/service"
	"github.com/utafrali/brandcatalog/internal/storage"
	"github.com/utafrali/brandcatalog/internal/storage/local"
	"github.com/utafrali/brandcatalog/internal/storage/memory"
	"github.com/utafrali/brandcatalog/migrations"
	"github.com/utafrali/brandcatalog/pkg/database"
	"github.com/utafrali/brandcatalog/pkg/health"
	"github.com/utafrali/brandcatalog/pkg/httpclient"
	"github.com/utafrali/brandcatalog/pkg/imaging"
	pkgkafka "github.com/utafrali/brandcatalog/pkg/kafka"
	"github.com/utafrali/brandcatalog/pkg/middleware"
	"github.com/utafrali/brandcatalog/pkg/slug"
	"github.com/utafrali/brandcatalog/pkg/tracing"
)

// publicMaxAge is the Cache-Control max-age for public brand pages.
const publicMaxAge = 300

// App wires together all dependencies and runs the brand catalog service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	shutdownTracer tracing.ShutdownFunc
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	shutdownTracer, err := tracing.InitTracer(initCtx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// PostgreSQL
	a.pool, err = database.NewPostgresPool(initCtx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(reg, a.pool, cfg.ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	if err := database.RunMigrations(initCtx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Redis detail cache. The catalog serves from PostgreSQL without it.
	var detailCache service.DetailCache
	a.redis, err = database.NewRedisClient(initCtx, cfg.Redis(), logger)
	if err != nil {
		logger.Warn("redis unavailable, brand detail cache disabled",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	} else {
		detailCache = cache.NewBrandCache(a.redis, cfg.BrandCacheTTL, reg)
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	}

	// Kafka
	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), pkgkafka.NewMetrics(reg), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	opts := service.Options{
		Slugs:            slug.NewGenerator(cfg.SlugMaxLength, cfg.SlugMaxAttempts),
		Images:           imaging.NewProcessor(cfg.Imaging()),
		Metrics:          service.NewMetrics(reg),
		LogoMaxBytes:     cfg.LogoMaxBytes,
		LogoContentTypes: cfg.LogoContentTypes,
	}
	if cfg.ImportFetchLogos {
		clientCfg := httpclient.DefaultConfig()
		clientCfg.Timeout = cfg.ImportFetchTimeout
		clientCfg.PublicOnly = true
		opts.Fetcher = httpclient.NewCircuitBreakerClient(
			httpclient.New(clientCfg),
			httpclient.DefaultBreakerConfig("logo-fetch"),
			httpclient.NewBreakerMetrics(reg),
			logger,
		)
	}

	repo := postgres.NewBrandRepository(a.pool)
	eventProducer := event.NewProducer(a.producer, logger)
	brandService := service.NewBrandService(repo, store, detailCache, eventProducer, opts, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", a.producer.Ping)

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	a.limiter = middleware.NewRateLimiter(cfg.UploadRateRPS, cfg.UploadRateBurst, 10*time.Minute).
		WithTrustedProxies(proxies)

	router := handler.NewRouter(brandService, store, healthHandler, handler.RouterConfig{
		ServiceName:    cfg.ServiceName,
		Tokens:         middleware.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer),
		Metrics:        middleware.NewHTTPMetrics(reg, cfg.ServiceName),
		Gatherer:       reg,
		UploadLimiter:  a.limiter,
		PublicMaxAge:   publicMaxAge,
		LogoMaxBytes:   cfg.LogoMaxBytes,
		ImportMaxBytes: cfg.ImportMaxBytes,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	ok = true
	return a, nil
}

func newStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return memory.New(cfg.MediaBaseURL), nil
	default:
		store, err := local.New(cfg.StorageDir, cfg.MediaBaseURL)
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		return store, nil
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go a.sweepLimiter(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.close()
		return err
	}

	return a.Shutdown()
}

// sweepLimiter drops idle upload rate limit buckets.
func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := a.limiter.Sweep()
			a.logger.Debug("swept upload rate limiter", slog.Int("active_clients", n))
		}
	}
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.close()

	if err := a.shutdownTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}

// close releases the connections opened by NewApp, in reverse order.
func (a *App) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
