package chromedp_crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/proxy"
	"github.com/user/price-reconciler/internal/repository"
)

// Options configures the browser session opened for each run.
type Options struct {
	Headless          bool
	Locale            string
	NavigationTimeout time.Duration
	SnapshotTimeout   time.Duration
	BlockedResources  []string // CDP resource types, e.g. "Image"
}

// BrowserFactory opens one headless Chrome per run using chromedp.
type BrowserFactory struct {
	opts    Options
	proxies *proxy.Manager
	logger  *zap.Logger
}

// NewBrowserFactory creates a repository.BrowserFactory backed by chromedp.
func NewBrowserFactory(opts Options, proxies *proxy.Manager, logger *zap.Logger) *BrowserFactory {
	return &BrowserFactory{opts: opts, proxies: proxies, logger: logger}
}

// Open starts the browser and prepares a single tab: blocked sub-resources
// and locale are applied once and shared by every navigation of the run.
func (f *BrowserFactory) Open(ctx context.Context) (repository.PageNavigator, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if f.opts.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", f.opts.Locale))
	}
	if ua := f.proxies.GetUserAgent(); ua != "" {
		opts = append(opts, chromedp.UserAgent(ua))
	}
	if p := f.proxies.GetProxy(); p != "" {
		opts = append(opts, chromedp.ProxyServer(p))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(f.logger.Sugar().Debugf))
	closeFn := func() {
		tabCancel()
		allocCancel()
	}

	s := &session{
		ctx:     tabCtx,
		opts:    f.opts,
		blocked: resourceSet(f.opts.BlockedResources),
		logger:  f.logger,
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(s.setup)); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start browser session: %w", err)
	}

	f.logger.Info("browser session opened",
		zap.Bool("headless", f.opts.Headless),
		zap.String("locale", f.opts.Locale),
		zap.Strings("blocked_resources", f.opts.BlockedResources),
	)
	return s, closeFn, nil
}

type session struct {
	ctx     context.Context // tab context, lives for the whole run
	opts    Options
	blocked map[network.ResourceType]bool
	logger  *zap.Logger
}

func (s *session) setup(ctx context.Context) error {
	if len(s.blocked) > 0 {
		patterns := make([]*fetch.RequestPattern, 0, len(s.blocked))
		for rt := range s.blocked {
			patterns = append(patterns, &fetch.RequestPattern{URLPattern: "*", ResourceType: rt})
		}
		if err := fetch.Enable().WithPatterns(patterns).Do(ctx); err != nil {
			return fmt.Errorf("enable request interception: %w", err)
		}
	}
	if s.opts.Locale != "" {
		if err := emulation.SetLocaleOverride().WithLocale(s.opts.Locale).Do(ctx); err != nil {
			return fmt.Errorf("set locale %q: %w", s.opts.Locale, err)
		}
	}
	return nil
}

// onEvent aborts paused requests for blocked resource types. Prices live in
// markup and metadata, so nothing blocked here can change an extracted value.
func (s *session) onEvent(ev interface{}) {
	paused, ok := ev.(*fetch.EventRequestPaused)
	if !ok {
		return
	}
	go func() {
		c := chromedp.FromContext(s.ctx)
		ectx := cdp.WithExecutor(s.ctx, c.Target)
		var err error
		if s.blocked[paused.ResourceType] {
			err = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
		} else {
			err = fetch.ContinueRequest(paused.RequestID).Do(ectx)
		}
		if err != nil && s.ctx.Err() == nil {
			s.logger.Debug("could not resolve intercepted request",
				zap.String("resource_type", paused.ResourceType.String()), zap.Error(err))
		}
	}()
}

// Navigate loads url in the shared tab and returns once the new document has
// fired DOMContentLoaded. Scripts, stylesheets and frames still loading do not
// hold it up. The whole wait is bounded by the navigation timeout.
func (s *session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(s.ctx, s.opts.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		w := newDOMReadyWaiter()
		lctx, lcancel := context.WithCancel(ctx)
		defer lcancel()
		chromedp.ListenTarget(lctx, w.observe)

		_, loaderID, errorText, _, err := page.Navigate(url).Do(ctx)
		switch {
		case err != nil:
			return err
		case errorText != "":
			return fmt.Errorf("page load error %s", errorText)
		}
		return w.wait(ctx, loaderID)
	}))
	return navigationError(url, err, navCtx.Err(), s.opts.NavigationTimeout)
}

// domReadyWaiter records which documents, by loader ID, have reached
// DOMContentLoaded. Events can arrive before page.Navigate returns the loader
// ID, and a late event from an earlier document carries a different one.
type domReadyWaiter struct {
	mu     sync.Mutex
	ready  map[cdp.LoaderID]bool
	notify chan struct{}
}

func newDOMReadyWaiter() *domReadyWaiter {
	return &domReadyWaiter{ready: make(map[cdp.LoaderID]bool), notify: make(chan struct{}, 1)}
}

func (w *domReadyWaiter) observe(ev interface{}) {
	lc, ok := ev.(*page.EventLifecycleEvent)
	if !ok || lc.Name != "DOMContentLoaded" {
		return
	}
	w.mu.Lock()
	w.ready[lc.LoaderID] = true
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// wait blocks until loaderID is ready. An empty loader ID means the
// navigation stayed within the current document.
func (w *domReadyWaiter) wait(ctx context.Context, loaderID cdp.LoaderID) error {
	if loaderID == "" {
		return nil
	}
	for {
		w.mu.Lock()
		done := w.ready[loaderID]
		w.mu.Unlock()
		if done {
			return nil
		}
		select {
		case <-w.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns the current document's outer HTML.
func (s *session) Snapshot(ctx context.Context) (string, error) {
	snapCtx, cancel := context.WithTimeout(s.ctx, s.opts.SnapshotTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(snapCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: %v", repository.ErrSnapshotFailed, err)
	}
	return html, nil
}

func navigationError(url string, err, ctxErr error, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", repository.ErrNavigationTimeout, url, timeout)
	}
	return fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
}

func resourceSet(names []string) map[network.ResourceType]bool {
	set := make(map[network.ResourceType]bool, len(names))
	for _, n := range names {
		if n != "" {
			set[network.ResourceType(n)] = true
		}
	}
	return set
}
