package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/crawler"
	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/extractor"
	"github.com/user/price-reconciler/internal/reconcile"
	"github.com/user/price-reconciler/internal/report"
	"github.com/user/price-reconciler/internal/repository"
	"github.com/user/price-reconciler/pkg/metrics"
)

// CatalogSource yields the products of one run.
type CatalogSource interface {
	Load(ctx context.Context) ([]entity.ProductRecord, error)
}

// ReportPublisher stores a rendered report and returns where it lives.
type ReportPublisher interface {
	Publish(ctx context.Context, stamp time.Time, data []byte) (*report.Publication, error)
}

// RunReport is what a completed run produced.
type RunReport struct {
	Run     *entity.Run
	Results []entity.ExtractionResult
	Summary reconcile.Summary
}

// ReconcilerDeps groups the collaborators of a Reconciler. Runs may be nil,
// which disables run history.
type ReconcilerDeps struct {
	Catalog    CatalogSource
	Browsers   repository.BrowserFactory
	Extractor  *extractor.Extractor
	Publisher  ReportPublisher
	Lock       repository.RunLock
	PriceCache repository.PriceCache
	Runs       repository.RunRepository
}

// ReconcilerConfig holds the run settings that are not part of the crawl.
type ReconcilerConfig struct {
	Crawl    crawler.RunConfig
	LockTTL  time.Duration
	PriceTTL time.Duration
}

// Reconciler executes complete reconciliation runs: catalog in, report and
// run history out.
type Reconciler struct {
	deps   ReconcilerDeps
	config ReconcilerConfig
	logger *zap.Logger

	now   func() time.Time
	newID func() string

	// lifetime bounds background runs; Shutdown cancels it.
	lifetime context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
}

func NewReconciler(cfg ReconcilerConfig, deps ReconcilerDeps, logger *zap.Logger) *Reconciler {
	metrics.Init()
	lifetime, stop := context.WithCancel(context.Background())
	return &Reconciler{
		deps:     deps,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		lifetime: lifetime,
		stop:     stop,
	}
}

// Execute runs one reconciliation in the caller's goroutine. It returns
// repository.ErrRunInProgress when another run holds the lock.
func (r *Reconciler) Execute(ctx context.Context) (*RunReport, error) {
	id := r.newID()
	if err := r.acquire(ctx, id); err != nil {
		return nil, err
	}
	defer r.release(ctx, id)
	return r.run(ctx, id)
}

// Trigger takes the run lock and starts the run in the background. It
// returns the new run's ID, or repository.ErrRunInProgress. The run outlives
// ctx and is only stopped by Shutdown.
func (r *Reconciler) Trigger(ctx context.Context) (string, error) {
	id := r.newID()
	if err := r.acquire(ctx, id); err != nil {
		return "", err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(r.lifetime, id)
		if _, err := r.run(r.lifetime, id); err != nil {
			r.logger.Error("background run failed", zap.String("run_id", id), zap.Error(err))
		}
	}()
	return id, nil
}

// Wait blocks until every run started by Trigger has finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Shutdown cancels background runs and waits for them to release the lock.
// A cancelled run publishes nothing.
func (r *Reconciler) Shutdown() {
	r.stop()
	r.wg.Wait()
}

func (r *Reconciler) acquire(ctx context.Context, id string) error {
	err := r.deps.Lock.Acquire(ctx, id, r.config.LockTTL)
	if errors.Is(err, repository.ErrRunInProgress) {
		metrics.RunsTotal.WithLabelValues("skipped").Inc()
		r.logger.Warn("run skipped, another run holds the lock", zap.String("run_id", id))
		return err
	}
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	return nil
}

func (r *Reconciler) release(ctx context.Context, id string) {
	if err := r.deps.Lock.Release(context.WithoutCancel(ctx), id); err != nil {
		r.logger.Error("failed to release run lock", zap.String("run_id", id), zap.Error(err))
	}
}

// keepLock extends the run lock every third of its TTL until ctx is done. A
// lost lock cancels the run, since another run may already have started.
func (r *Reconciler) keepLock(ctx context.Context, cancel context.CancelFunc, id string) {
	interval := r.config.LockTTL / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := r.deps.Lock.Extend(ctx, id, r.config.LockTTL)
			switch {
			case err == nil, ctx.Err() != nil:
			case errors.Is(err, repository.ErrLockLost):
				r.logger.Error("run lock lost, cancelling run", zap.String("run_id", id))
				cancel()
				return
			default:
				r.logger.Warn("failed to extend run lock", zap.String("run_id", id), zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) run(ctx context.Context, id string) (*RunReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	heartbeat := make(chan struct{})
	go func() {
		defer close(heartbeat)
		r.keepLock(ctx, cancel, id)
	}()
	defer func() {
		cancel()
		<-heartbeat
	}()

	rep, err := r.pipeline(ctx, id)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.RunsTotal.WithLabelValues("success").Inc()
	return rep, nil
}

func (r *Reconciler) pipeline(ctx context.Context, id string) (*RunReport, error) {
	log := r.logger.With(zap.String("run_id", id), zap.String("source", r.config.Crawl.Source))

	products, err := r.deps.Catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	stamp := r.now()
	log.Info("run started", zap.Int("products", len(products)), zap.Time("process_timestamp", stamp))

	nav, closeBrowser, err := r.deps.Browsers.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	results := crawler.NewOrchestrator(r.config.Crawl, nav, r.deps.Extractor, log).Run(ctx, stamp, products)
	closeBrowser()

	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled, report not published", zap.Error(err))
		return nil, fmt.Errorf("run %s cancelled: %w", id, err)
	}

	summary := reconcile.Summarize(results)
	metrics.LastRunOpportunities.Set(float64(summary.Opportunities))
	log.Info("crawl finished",
		zap.Int("total", summary.Total),
		zap.Int("priced", summary.Priced),
		zap.Int("opportunities", summary.Opportunities),
		zap.Int("indeterminate", summary.Indeterminate),
		zap.Int("failed", summary.Failed),
	)

	r.trackPriceChanges(ctx, log, results)

	data, err := report.Render(r.config.Crawl.Source, results)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	pub, err := r.deps.Publisher.Publish(ctx, stamp, data)
	if err != nil {
		return nil, fmt.Errorf("publish report: %w", err)
	}

	finished := r.now()
	run := &entity.Run{
		ID:            id,
		Source:        r.config.Crawl.Source,
		StartedAt:     stamp,
		FinishedAt:    &finished,
		Total:         summary.Total,
		Priced:        summary.Priced,
		Opportunities: summary.Opportunities,
		Failed:        summary.Failed,
		ReportName:    pub.Name,
		ReportLink:    pub.Link,
	}

	if r.deps.Runs != nil {
		if err := r.deps.Runs.Save(ctx, run, results); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
	}

	log.Info("run finished", zap.String("report", pub.Link), zap.Duration("elapsed", finished.Sub(stamp)))
	return &RunReport{Run: run, Results: results, Summary: summary}, nil
}

// trackPriceChanges compares each scraped price with the one cached by the
// previous run. Cache failures are logged and never fail the run.
func (r *Reconciler) trackPriceChanges(ctx context.Context, log *zap.Logger, results []entity.ExtractionResult) {
	if r.deps.PriceCache == nil {
		return
	}
	for _, res := range results {
		if res.ScrapedPrice == nil {
			continue
		}
		prev, found, err := r.deps.PriceCache.Swap(ctx, res.SKU, *res.ScrapedPrice, r.config.PriceTTL)
		if err != nil {
			log.Warn("price cache unavailable", zap.String("sku", res.SKU), zap.Error(err))
			return
		}
		if !found || prev == *res.ScrapedPrice {
			continue
		}
		direction := "down"
		if *res.ScrapedPrice > prev {
			direction = "up"
		}
		metrics.PriceChangesTotal.WithLabelValues(direction).Inc()
		log.Info("competitor price changed",
			zap.String("sku", res.SKU),
			zap.Int64("previous", prev),
			zap.Int64("current", *res.ScrapedPrice),
			zap.String("direction", direction),
		)
	}
}
