package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/adapter/chromedp_crawler"
	"github.com/user/price-reconciler/internal/adapter/filestore"
	"github.com/user/price-reconciler/internal/adapter/ftpstore"
	"github.com/user/price-reconciler/internal/adapter/inmem"
	"github.com/user/price-reconciler/internal/adapter/postgres"
	redis_adapter "github.com/user/price-reconciler/internal/adapter/redis"
	"github.com/user/price-reconciler/internal/catalog"
	"github.com/user/price-reconciler/internal/crawler"
	"github.com/user/price-reconciler/internal/delivery/http/handler"
	"github.com/user/price-reconciler/internal/extractor"
	"github.com/user/price-reconciler/internal/proxy"
	"github.com/user/price-reconciler/internal/report"
	"github.com/user/price-reconciler/internal/repository"
	"github.com/user/price-reconciler/internal/usecase"
	"github.com/user/price-reconciler/pkg/config"
	"github.com/user/price-reconciler/pkg/metrics"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	location   *time.Location
	store      repository.ObjectStore
	pool       *pgxpool.Pool
	rdb        *redis.Client
	runs       repository.RunRepository
	reconciler *usecase.Reconciler
	query      *usecase.RunQuery
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	metrics.Init()

	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, location: loc}

	if a.store, err = newObjectStore(cfg.Storage, logger); err != nil {
		return nil, err
	}

	if err := a.connectPostgres(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.connectRedis(ctx); err != nil {
		a.close()
		return nil, err
	}

	var lock repository.RunLock = inmem.NewRunLock()
	var prices repository.PriceCache = inmem.NewPriceCache()
	if a.rdb != nil {
		lock = redis_adapter.NewRunLockRepo(a.rdb, cfg.Crawl.Source)
		prices = redis_adapter.NewPriceCacheRepo(a.rdb, cfg.Crawl.Source)
	}

	crawlCfg := crawler.RunConfig{
		Source:            cfg.Crawl.Source,
		NavigationTimeout: cfg.Crawl.NavigationTimeout,
		SettleDelay:       cfg.Crawl.SettleDelay,
		InterItemDelay:    cfg.Crawl.InterItemDelay,
	}
	if err := crawlCfg.Validate(); err != nil {
		a.close()
		return nil, err
	}

	browsers := chromedp_crawler.NewBrowserFactory(chromedp_crawler.Options{
		Headless:          cfg.Crawl.Headless,
		Locale:            cfg.Crawl.Locale,
		NavigationTimeout: cfg.Crawl.NavigationTimeout,
		SnapshotTimeout:   cfg.Crawl.SnapshotTimeout,
		BlockedResources:  cfg.Crawl.BlockedResources,
	}, proxy.NewManager(cfg.Crawl.Proxies, cfg.Crawl.UserAgents), logger)

	ex := extractor.NewDefault(logger, extractor.Options{
		PriceProperty:  cfg.Crawl.PriceProperty,
		CurrencyMarker: cfg.Crawl.CurrencyMarker,
		MaxTextLen:     cfg.Crawl.MaxVisibleTextLen,
	})

	loader := catalog.NewLoader(catalog.Columns{
		SKU:       cfg.Catalog.Columns.SKU,
		Name:      cfg.Catalog.Columns.Name,
		BasePrice: cfg.Catalog.Columns.BasePrice,
		URL:       cfg.Catalog.Columns.URL,
	}, logger)

	deps := usecase.ReconcilerDeps{
		Catalog:    catalog.NewSource(afero.NewOsFs(), cfg.Catalog.Path, a.store, cfg.Catalog.Object, loader),
		Browsers:   browsers,
		Extractor:  ex,
		Publisher:  report.NewPublisher(a.store, cfg.Report.Prefix, loc, logger),
		Lock:       lock,
		PriceCache: prices,
		Runs:       a.runs,
	}

	a.reconciler = usecase.NewReconciler(usecase.ReconcilerConfig{
		Crawl:    crawlCfg,
		LockTTL:  cfg.Redis.LockTTL,
		PriceTTL: cfg.Redis.PriceTTL,
	}, deps, logger)
	a.query = usecase.NewRunQuery(deps.Runs)
	return a, nil
}

func newObjectStore(sc config.StorageConfig, logger *zap.Logger) (repository.ObjectStore, error) {
	switch sc.Driver {
	case "ftp":
		return ftpstore.New(ftpstore.Options{URL: sc.FTPURL, Timeout: sc.FTPTimeout, BaseURL: sc.PublicBaseURL}, logger)
	default:
		return filestore.New(afero.NewOsFs(), sc.LocalDir, sc.PublicBaseURL), nil
	}
}

func (a *app) connectPostgres(ctx context.Context) error {
	if a.cfg.Postgres.URL == "" {
		a.logger.Info("postgres.url not set, run history disabled")
		return nil
	}
	pool, err := pgxpool.New(ctx, a.cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.pool = pool
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	repo := postgres.NewRunRepo(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	a.runs = repo
	a.logger.Info("PostgreSQL connection pool established")
	return nil
}

func (a *app) connectRedis(ctx context.Context) error {
	if a.cfg.Redis.Addr == "" {
		a.logger.Info("redis.addr not set, using in-process run lock and price cache")
		return nil
	}
	a.rdb = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	a.logger.Info("Redis connection established")
	return nil
}

// healthChecks lists the configured backing services.
func (a *app) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if a.pool != nil {
		checks["postgres"] = a.pool.Ping
	}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	return checks
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("closing redis client", zap.Error(err))
		}
	}
}
