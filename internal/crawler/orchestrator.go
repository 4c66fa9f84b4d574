package crawler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/extractor"
	"github.com/user/price-reconciler/internal/repository"
	"github.com/user/price-reconciler/pkg/metrics"
	"github.com/user/price-reconciler/pkg/utils"
)

// Orchestrator visits catalog products one at a time and turns every visit
// into exactly one ExtractionResult.
type Orchestrator struct {
	config    RunConfig
	navigator repository.PageNavigator
	extractor *extractor.Extractor
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires an orchestrator around an already opened navigator.
func NewOrchestrator(cfg RunConfig, nav repository.PageNavigator, ex *extractor.Extractor, l *zap.Logger) *Orchestrator {
	metrics.Init()
	return &Orchestrator{
		config:    cfg,
		navigator: nav,
		extractor: ex,
		logger:    l,
		sleep:     sleepContext,
	}
}

// outcome is what a single attempt produced: a price (possibly absent) or a
// failure reason. It never escapes the item it belongs to.
type outcome struct {
	price    *int64
	strategy string
	status   entity.ItemStatus
	err      error
}

func success(ext extractor.Extraction) outcome {
	if ext.Price == nil {
		return outcome{status: entity.StatusNotFound, strategy: ext.Strategy}
	}
	return outcome{price: ext.Price, strategy: ext.Strategy, status: entity.StatusOK}
}

func failure(status entity.ItemStatus, err error) outcome {
	return outcome{status: status, err: err}
}

// Run processes products strictly in order and returns one result per
// product, in the same order. stamp is the run's timestamp and is copied
// unchanged onto every result. The inter-item delay follows every product
// except the last. A cancelled ctx stops further navigation; the remaining
// products are still emitted, marked cancelled.
func (o *Orchestrator) Run(ctx context.Context, stamp time.Time, products []entity.ProductRecord) []entity.ExtractionResult {
	results := make([]entity.ExtractionResult, 0, len(products))
	o.logger.Info("starting crawl",
		zap.String("source", o.config.Source),
		zap.Int("products", len(products)),
		zap.Time("process_timestamp", stamp),
		zap.Duration("navigation_timeout", o.config.NavigationTimeout),
	)

	for i, p := range products {
		var out outcome
		if err := ctx.Err(); err != nil {
			out = failure(entity.StatusCancelled, err)
		} else {
			out = o.attempt(ctx, p)
		}

		results = append(results, o.buildResult(p, out, stamp))
		metrics.ItemsProcessed.WithLabelValues(string(out.status)).Inc()

		if i < len(products)-1 && ctx.Err() == nil {
			if err := o.sleep(ctx, o.config.InterItemDelay); err != nil {
				o.logger.Info("run interrupted during pacing delay", zap.Error(err))
			}
		}
	}

	return results
}

func (o *Orchestrator) attempt(ctx context.Context, p entity.ProductRecord) outcome {
	o.logger.Info("processing product", zap.String("sku", p.SKU), zap.String("url", p.URL))

	start := time.Now()
	err := o.navigator.Navigate(ctx, p.URL)
	metrics.NavigationDuration.WithLabelValues(utils.Hostname(p.URL)).Observe(time.Since(start).Seconds())
	if err != nil {
		status := entity.StatusNavigationFailed
		switch {
		case errors.Is(err, repository.ErrNavigationTimeout):
			status = entity.StatusNavigationTimeout
		case ctx.Err() != nil:
			status = entity.StatusCancelled
		}
		o.logger.Warn("navigation failed", zap.String("sku", p.SKU), zap.String("url", p.URL),
			zap.String("status", string(status)), zap.Error(err))
		return failure(status, err)
	}

	if err := o.sleep(ctx, o.config.SettleDelay); err != nil {
		return failure(entity.StatusCancelled, err)
	}

	snapshot, err := o.navigator.Snapshot(ctx)
	if err != nil {
		o.logger.Warn("could not read page", zap.String("sku", p.SKU), zap.String("url", p.URL), zap.Error(err))
		return failure(entity.StatusExtractionFailed, err)
	}

	ext := o.extractor.Extract(snapshot)
	o.logger.Info("price extracted", zap.String("sku", p.SKU), zap.Stringer("price", ext))
	return success(ext)
}

func (o *Orchestrator) buildResult(p entity.ProductRecord, out outcome, stamp time.Time) entity.ExtractionResult {
	r := entity.ExtractionResult{
		SKU:              p.SKU,
		ProductName:      p.ProductName,
		BasePrice:        clonePrice(p.BasePrice),
		ScrapedPrice:     out.price,
		ProcessTimestamp: stamp,
		Source:           o.config.Source,
		URL:              p.URL,
		Status:           out.status,
		Strategy:         out.strategy,
	}
	if out.err != nil {
		r.FailureReason = out.err.Error()
	}
	return r
}

func clonePrice(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
