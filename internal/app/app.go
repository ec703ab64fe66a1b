// Package app wires together the dependencies of the accesshubd binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/MrEthical07/accesshub"
	"github.com/MrEthical07/accesshub/internal/httpapi"
	"github.com/MrEthical07/accesshub/internal/tracing"
	otelexport "github.com/MrEthical07/accesshub/metrics/export/otel"
	promexport "github.com/MrEthical07/accesshub/metrics/export/prometheus"
	"github.com/MrEthical07/accesshub/notify"
	"github.com/MrEthical07/accesshub/userstore/memory"
	"github.com/MrEthical07/accesshub/userstore/postgres"
)

// App owns every long-lived resource of the service.
type App struct {
	cfg            Config
	logger         *slog.Logger
	engine         *accesshub.Engine
	redis          redis.UniversalClient
	miniredis      *miniredis.Miniredis
	pool           *pgxpool.Pool
	kafka          *notify.KafkaMailer
	otelMetrics    *otelexport.Exporter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Resources acquired before a failure are released before returning.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	// Tracing.
	tp, tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTel.Endpoint,
		SampleRate:     cfg.OTel.SampleRate,
		Enabled:        cfg.OTel.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Redis.
	if err := a.connectRedis(ctx); err != nil {
		return nil, err
	}

	// Credential store.
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	// Engine.
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	for _, w := range engineCfg.Lint() {
		logger.Warn("engine config lint",
			slog.String("code", w.Code),
			slog.String("severity", w.Severity.String()),
			slog.String("message", w.Message),
		)
	}
	if cfg.Auth.ProductionMode {
		if err := engineCfg.Lint().AsError(accesshub.LintHigh); err != nil {
			return nil, fmt.Errorf("engine config: %w", err)
		}
	}

	engine, err := accesshub.New().
		WithConfig(engineCfg).
		WithRedis(a.redis).
		WithCredentialStore(store).
		WithMailer(a.mailer()).
		WithLogger(logger).
		WithTracerProvider(tp).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine

	// Metrics.
	var metricsHandler http.Handler
	if cfg.HTTP.MetricsEnabled {
		metricsHandler, err = promexport.Handler(promexport.NewCollector(engine))
		if err != nil {
			return nil, fmt.Errorf("prometheus handler: %w", err)
		}
		a.otelMetrics, err = otelexport.NewExporter(otel.GetMeterProvider().Meter("accesshub"), engine)
		if err != nil {
			return nil, fmt.Errorf("otel metrics exporter: %w", err)
		}
	}

	// HTTP.
	router := httpapi.NewRouter(engine, httpapi.Options{
		Logger:     logger,
		Metrics:    metricsHandler,
		TrustProxy: cfg.HTTP.TrustProxy,
		Timeout:    cfg.HTTP.RequestTimeout,
	})
	a.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) connectRedis(ctx context.Context) error {
	addr := a.cfg.Redis.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		a.miniredis = mr
		addr = mr.Addr()
		a.logger.Warn("REDIS_ADDR not set, using embedded miniredis; sessions are lost on restart")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.redis = client
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.logger.Info("connected to Redis", slog.String("addr", addr))
	return nil
}

func (a *App) openStore(ctx context.Context) (accesshub.CredentialStore, error) {
	if a.cfg.Postgres.URL == "" {
		a.logger.Warn("DATABASE_URL not set, keeping users in memory")
		return memory.New(), nil
	}

	poolCfg, err := pgxpool.ParseConfig(a.cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if a.cfg.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = a.cfg.Postgres.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	a.logger.Info("connected to PostgreSQL", slog.String("database", poolCfg.ConnConfig.Database))

	if a.cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")
	}
	return postgres.New(pool), nil
}

func (a *App) mailer() accesshub.Mailer {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Warn("KAFKA_BROKERS not set, OTP codes are written to the log")
		return notify.NewLogMailer(a.logger)
	}
	a.kafka = notify.NewKafkaMailer(notify.KafkaConfig{
		Brokers: a.cfg.Kafka.Brokers,
		Topic:   a.cfg.Kafka.Topic,
		Source:  a.cfg.ServiceName,
	}, a.logger)
	a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.Kafka.Brokers))
	return notify.NewBreakerMailer(a.kafka, notify.DefaultBreakerConfig("otp-delivery"), a.logger)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.release()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// engine (flushes audit), Kafka producer, then the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	if a.httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer httpCancel()
		if err := a.httpServer.Shutdown(httpCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.release(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release closes everything except the HTTP server. It is safe to call on a
// partially built App.
func (a *App) release() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.otelMetrics != nil {
		if err := a.otelMetrics.Close(); err != nil {
			errs = append(errs, err)
		}
		a.otelMetrics = nil
	}

	if a.engine != nil {
		a.engine.Close()
		a.engine = nil
	}

	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.kafka = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
		a.redis = nil
	}

	if a.miniredis != nil {
		a.miniredis.Close()
		a.miniredis = nil
	}

	return errors.Join(errs...)
}
