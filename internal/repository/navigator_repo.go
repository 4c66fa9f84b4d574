package repository

import "context"

// PageNavigator drives the single browsing context shared by one run.
type PageNavigator interface {
	// Navigate loads url and waits until the document structure is ready.
	// Timeouts wrap ErrNavigationTimeout, every other fault ErrNavigationFailed.
	Navigate(ctx context.Context, url string) error
	// Snapshot returns the rendered DOM of the current page as HTML.
	Snapshot(ctx context.Context) (string, error)
}

// BrowserFactory opens a fresh browsing context for a run.
type BrowserFactory interface {
	Open(ctx context.Context) (PageNavigator, func(), error)
}
