package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/adapter/inmem"
	"github.com/user/price-reconciler/internal/catalog"
	"github.com/user/price-reconciler/internal/crawler"
	"github.com/user/price-reconciler/internal/entity"
	"github.com/user/price-reconciler/internal/extractor"
	"github.com/user/price-reconciler/internal/report"
	"github.com/user/price-reconciler/internal/repository"
)

type fakeCatalog struct {
	products []entity.ProductRecord
	err      error
}

func (f *fakeCatalog) Load(context.Context) ([]entity.ProductRecord, error) {
	return f.products, f.err
}

// fakeBrowser serves fixed HTML per URL. URLs it does not know time out.
type fakeBrowser struct {
	pages   map[string]string
	current string
	opened  int
	closed  int
	gate    chan struct{}
}

func (b *fakeBrowser) Open(context.Context) (repository.PageNavigator, func(), error) {
	b.opened++
	return b, func() { b.closed++ }, nil
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if _, ok := b.pages[url]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrNavigationTimeout, url)
	}
	b.current = url
	return nil
}

func (b *fakeBrowser) Snapshot(context.Context) (string, error) {
	return b.pages[b.current], nil
}

type fakePublisher struct {
	stamp time.Time
	data  []byte
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, stamp time.Time, data []byte) (*report.Publication, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.stamp, p.data = stamp, data
	return &report.Publication{Name: "precios_djichile.xlsx", Link: "https://files.example/precios_djichile.xlsx"}, nil
}

type fakeRuns struct {
	mu      sync.Mutex
	run     *entity.Run
	results []entity.ExtractionResult
	saved   chan struct{}
}

func (f *fakeRuns) Save(_ context.Context, run *entity.Run, results []entity.ExtractionResult) error {
	f.mu.Lock()
	f.run, f.results = run, results
	f.mu.Unlock()
	if f.saved != nil {
		close(f.saved)
	}
	return nil
}

func (f *fakeRuns) Latest(context.Context) (*entity.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.run == nil {
		return nil, repository.ErrNotFound
	}
	return f.run, nil
}

func (f *fakeRuns) Results(_ context.Context, id string) ([]entity.ExtractionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.run == nil || f.run.ID != id {
		return nil, repository.ErrNotFound
	}
	return f.results, nil
}

func price(v int64) *int64 { return &v }

func metaPrice(v string) string {
	return `<html><head><meta property="product:price:amount" content="` + v + `"></head><body></body></html>`
}

type harness struct {
	rec       *Reconciler
	catalog   *fakeCatalog
	browser   *fakeBrowser
	publisher *fakePublisher
	runs      *fakeRuns
	lock      *inmem.RunLock
	prices    *inmem.PriceCache
}

func newHarness() *harness {
	h := &harness{
		catalog: &fakeCatalog{products: []entity.ProductRecord{
			{SKU: "A1", ProductName: "Dron", BasePrice: price(10000), URL: "u1"},
			{SKU: "A2", ProductName: "Gimbal", BasePrice: price(8000), URL: "u2"},
		}},
		browser:   &fakeBrowser{pages: map[string]string{"u1": metaPrice("9000")}},
		publisher: &fakePublisher{},
		runs:      &fakeRuns{},
		lock:      inmem.NewRunLock(),
		prices:    inmem.NewPriceCache(),
	}
	cfg := ReconcilerConfig{
		Crawl: crawler.RunConfig{
			Source:            "djichile",
			NavigationTimeout: time.Second,
			SettleDelay:       time.Millisecond,
			InterItemDelay:    time.Millisecond,
		},
		LockTTL:  time.Minute,
		PriceTTL: time.Hour,
	}
	h.rec = NewReconciler(cfg, ReconcilerDeps{
		Catalog:    h.catalog,
		Browsers:   h.browser,
		Extractor:  extractor.NewDefault(zap.NewNop(), extractor.Options{}),
		Publisher:  h.publisher,
		Lock:       h.lock,
		PriceCache: h.prices,
		Runs:       h.runs,
	}, zap.NewNop())
	h.rec.newID = func() string { return "run-1" }
	return h
}

func TestExecute(t *testing.T) {
	h := newHarness()
	start := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	ticks := 0
	h.rec.now = func() time.Time {
		ticks++
		return start.Add(time.Duration(ticks-1) * time.Minute)
	}

	rep, err := h.rec.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Results, 2)
	assert.Equal(t, int64(9000), *rep.Results[0].ScrapedPrice)
	assert.Equal(t, entity.StatusNavigationTimeout, rep.Results[1].Status)
	assert.Equal(t, start, rep.Results[0].ProcessTimestamp)
	assert.Equal(t, start, rep.Results[1].ProcessTimestamp)

	assert.Equal(t, 2, rep.Summary.Total)
	assert.Equal(t, 1, rep.Summary.Opportunities)
	assert.Equal(t, 1, rep.Summary.Failed)

	assert.Equal(t, "run-1", rep.Run.ID)
	assert.Equal(t, start, rep.Run.StartedAt)
	assert.Equal(t, start.Add(time.Minute), *rep.Run.FinishedAt)
	assert.Equal(t, "https://files.example/precios_djichile.xlsx", rep.Run.ReportLink)

	assert.Equal(t, start, h.publisher.stamp)
	f, err := excelize.OpenReader(bytes.NewReader(h.publisher.data))
	require.NoError(t, err)
	rows, err := f.GetRows("Precios djichile")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	f.Close()

	assert.Equal(t, rep.Run, h.runs.run)
	assert.Len(t, h.runs.results, 2)
	assert.Equal(t, 1, h.browser.opened)
	assert.Equal(t, 1, h.browser.closed)

	// The lock is free again.
	require.NoError(t, h.lock.Acquire(context.Background(), "other", time.Minute))
}

func TestExecute_LockHeld(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.lock.Acquire(context.Background(), "someone", time.Minute))

	_, err := h.rec.Execute(context.Background())
	assert.ErrorIs(t, err, repository.ErrRunInProgress)
	assert.Zero(t, h.browser.opened)
}

func TestExecute_MissingCatalogColumnIsFatal(t *testing.T) {
	h := newHarness()
	h.catalog.err = &catalog.MissingColumnError{Column: "link"}

	_, err := h.rec.Execute(context.Background())
	var missing *catalog.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Zero(t, h.browser.opened)
	assert.Nil(t, h.publisher.data)
	require.NoError(t, h.lock.Acquire(context.Background(), "other", time.Minute))
}

func TestExecute_PublishFailureSkipsHistory(t *testing.T) {
	h := newHarness()
	h.publisher.err = errors.New("ftp down")

	_, err := h.rec.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp down")
	assert.Nil(t, h.runs.run)
}

func TestExecute_WithoutHistory(t *testing.T) {
	h := newHarness()
	h.rec.deps.Runs = nil

	rep, err := h.rec.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Run.Total)
}

func TestExecute_Cancelled(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.rec.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, h.publisher.data)
	require.NoError(t, h.lock.Acquire(context.Background(), "other", time.Minute))
}

func TestExecute_TracksPriceChanges(t *testing.T) {
	h := newHarness()
	_, _, err := h.prices.Swap(context.Background(), "A1", 9500, time.Hour)
	require.NoError(t, err)

	_, err = h.rec.Execute(context.Background())
	require.NoError(t, err)

	prev, found, err := h.prices.Swap(context.Background(), "A1", 1, time.Hour)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(9000), prev)

	// A2 had no price, so nothing was cached for it.
	_, found, err = h.prices.Swap(context.Background(), "A2", 1, time.Hour)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTrigger(t *testing.T) {
	h := newHarness()
	h.browser.gate = make(chan struct{})
	h.runs.saved = make(chan struct{})

	id, err := h.rec.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	_, err = h.rec.Trigger(context.Background())
	assert.ErrorIs(t, err, repository.ErrRunInProgress)

	close(h.browser.gate)
	select {
	case <-h.runs.saved:
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not finish")
	}
	h.rec.Wait()

	require.NoError(t, h.lock.Acquire(context.Background(), "other", time.Minute))
}

func TestShutdown_CancelsBackgroundRun(t *testing.T) {
	h := newHarness()
	h.browser.gate = make(chan struct{})

	_, err := h.rec.Trigger(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		h.rec.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown waited for the crawl to finish")
	}

	assert.Nil(t, h.publisher.data)
	assert.Nil(t, h.runs.run)
	require.NoError(t, h.lock.Acquire(context.Background(), "other", time.Minute))
}

func TestExecute_RenewsLockDuringLongRun(t *testing.T) {
	h := newHarness()
	h.rec.config.LockTTL = 60 * time.Millisecond
	h.browser.gate = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := h.rec.Execute(context.Background())
		errCh <- err
	}()

	time.Sleep(250 * time.Millisecond)
	assert.ErrorIs(t, h.lock.Acquire(context.Background(), "other", time.Minute), repository.ErrRunInProgress)

	close(h.browser.gate)
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.NotNil(t, h.publisher.data)
}

// lostLock accepts the run but refuses every renewal.
type lostLock struct {
	*inmem.RunLock
}

func (lostLock) Extend(context.Context, string, time.Duration) error {
	return repository.ErrLockLost
}

func TestExecute_LostLockCancelsRun(t *testing.T) {
	h := newHarness()
	h.rec.deps.Lock = lostLock{RunLock: h.lock}
	h.rec.config.LockTTL = 30 * time.Millisecond
	h.browser.gate = make(chan struct{})

	_, err := h.rec.Execute(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, h.publisher.data)
}
