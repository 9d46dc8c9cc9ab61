// Package app assembles the directory services from configuration. The HTTP
// server and the operator CLI share it so both run the same wiring.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trustdir/internal/device"
	"trustdir/internal/directory/applications"
	"trustdir/internal/directory/cache"
	"trustdir/internal/directory/handler"
	dirmetrics "trustdir/internal/directory/metrics"
	"trustdir/internal/directory/promotion"
	"trustdir/internal/directory/reports"
	"trustdir/internal/directory/resolve"
	"trustdir/internal/directory/search"
	"trustdir/internal/directory/store"
	"trustdir/internal/identity/canonical"
	jwttoken "trustdir/internal/jwt_token"
	"trustdir/internal/platform/alert"
	"trustdir/internal/platform/config"
	httpmetrics "trustdir/internal/platform/metrics"
	"trustdir/internal/platform/postgres"
	redisclient "trustdir/internal/platform/redis"
	rlmetrics "trustdir/internal/ratelimit/metrics"
	rlmiddleware "trustdir/internal/ratelimit/middleware"
	rlmodels "trustdir/internal/ratelimit/models"
	"trustdir/internal/ratelimit/store/bucket"
	httptransport "trustdir/internal/transport/http"
	"trustdir/pkg/platform/circuit"
	"trustdir/pkg/platform/events"
)

// Store is every persistence method the directory services use.
type Store interface {
	resolve.Store
	search.Store
	applications.Store
	promotion.Store
	reports.Store
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// App holds the wired services and the resources that must be closed.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Registry     *prometheus.Registry
	Store        Store
	Resolver     *resolve.Service
	Searcher     *search.Service
	Applications *applications.Service
	Promoter     *promotion.Service
	Reports      *reports.Service
	JWT          *jwttoken.JWTService

	db       *sql.DB
	redis    *redisclient.Client
	kafka    *events.Kafka
	alerter  *alert.Sentry
	postgres *store.PostgresStore
	limiter  *rlmiddleware.Middleware
}

// New connects the configured backends and builds every service.
// A partially built App is closed before an error is returned.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	canonical.DefaultRegion = cfg.Identity.DefaultRegion

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		JWT:      jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		a.db = db
		a.postgres = store.NewPostgres(db)
		a.Store = a.postgres
		if cfg.Database.AutoMigrate {
			if err := a.postgres.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
	} else {
		a.Logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory store")
		a.Store = store.NewInMemory()
	}

	a.redis, err = redisclient.New(ctx, cfg.Redis, a.Logger)
	if err != nil {
		return err
	}

	var resultCache resolve.Cache
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		if a.redis == nil {
			return errors.New("redis cache selected without a redis client")
		}
		resultCache = cache.NewRedis(a.redis.Client, cfg.Cache.TTL)
	case config.CacheNone:
		resultCache = cache.Noop{}
	default:
		resultCache = cache.NewMemory(cache.WithTTL(cfg.Cache.TTL), cache.WithMaxEntries(cfg.Cache.MaxEntries))
	}

	var publisher events.Publisher = events.NewLog(a.Logger)
	if len(cfg.Kafka.Brokers) > 0 {
		a.kafka, err = events.NewKafka(ctx, events.KafkaConfig{
			Brokers:           cfg.Kafka.Brokers,
			Topic:             cfg.Kafka.Topic,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		})
		if err != nil {
			return err
		}
		publisher = a.kafka
	}

	a.alerter, err = alert.NewSentry(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Server.Env,
	})
	if err != nil {
		return err
	}

	a.limiter = a.buildLimiter()

	m := dirmetrics.New(a.Registry)

	if a.Resolver, err = resolve.New(a.Store,
		resolve.WithLogger(a.Logger),
		resolve.WithMetrics(m),
		resolve.WithCache(resultCache),
		resolve.WithAlerter(a.alerter),
		resolve.WithIntegrityProbe(cfg.Identity.IntegrityProbe),
	); err != nil {
		return err
	}
	if a.Searcher, err = search.New(a.Store,
		search.WithLogger(a.Logger),
		search.WithMetrics(m),
		search.WithCache(resultCache),
	); err != nil {
		return err
	}
	if a.Applications, err = applications.New(a.Store, applications.WithLogger(a.Logger)); err != nil {
		return err
	}
	if a.Promoter, err = promotion.New(a.Store, a.Store,
		promotion.WithLogger(a.Logger),
		promotion.WithMetrics(m),
		promotion.WithPublisher(publisher),
	); err != nil {
		return err
	}
	if a.Reports, err = reports.New(a.Store, a.Store,
		reports.WithLogger(a.Logger),
		reports.WithMetrics(m),
		reports.WithPublisher(publisher),
	); err != nil {
		return err
	}
	return nil
}

// buildLimiter counts in Redis when it is configured and keeps an in-memory
// store behind a breaker for Redis outages.
func (a *App) buildLimiter() *rlmiddleware.Middleware {
	cfg := a.Config.Limits
	opts := []rlmiddleware.Option{
		rlmiddleware.WithDisabled(!cfg.Enabled),
		rlmiddleware.WithMetrics(rlmetrics.New(a.Registry)),
		rlmiddleware.WithLimit(rlmodels.ClassRead, rlmodels.Limit{RequestsPerWindow: cfg.ReadRequests, Window: cfg.Window}),
		rlmiddleware.WithLimit(rlmodels.ClassWrite, rlmodels.Limit{RequestsPerWindow: cfg.WriteRequests, Window: cfg.Window}),
	}
	if a.redis == nil {
		return rlmiddleware.New(bucket.New(), a.Logger, opts...)
	}
	opts = append(opts,
		rlmiddleware.WithFallback(bucket.New()),
		rlmiddleware.WithBreaker(circuit.New("ratelimit-redis")),
	)
	return rlmiddleware.New(bucket.NewRedis(a.redis.Client), a.Logger, opts...)
}

// Migrate applies the schema. It is a no-op in in-memory mode.
func (a *App) Migrate(ctx context.Context) error {
	if a.postgres == nil {
		return errors.New("migrate requires DATABASE_URL")
	}
	return a.postgres.Migrate(ctx)
}

// Router builds the HTTP handler for the server.
func (a *App) Router() http.Handler {
	dir := handler.New(handler.Services{
		Resolver:     a.Resolver,
		Searcher:     a.Searcher,
		Applications: a.Applications,
		Promoter:     a.Promoter,
		Reports:      a.Reports,
	}, jwttoken.NewJWTServiceAdapter(a.JWT), a.Logger)

	return httptransport.NewRouter(httptransport.Deps{
		Logger:         a.Logger,
		Metrics:        httpmetrics.New(a.Registry),
		Devices:        device.NewService(a.Config.Identity.Fingerprinting),
		Gatherer:       a.Registry,
		RequestTimeout: a.Config.Server.RequestTimeout,
		Checks:         a.checks(),
		RateLimit:      a.limiter.ByMethod(),
	}, dir)
}

func (a *App) checks() map[string]httptransport.CheckFunc {
	checks := map[string]httptransport.CheckFunc{}
	if a.postgres != nil {
		checks["database"] = a.postgres.Ping
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	if a.kafka != nil {
		checks["kafka"] = a.kafka.Ping
	}
	return checks
}

// Close releases every backend connection. Safe to call on a partial App.
func (a *App) Close() {
	if a.alerter != nil {
		a.alerter.Flush(2 * time.Second)
	}
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Error("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("failed to close database", "error", err)
		}
	}
}
