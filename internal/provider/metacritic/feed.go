package metacritic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

// revealScript scrolls to the bottom of the page and clicks the load-more
// control when one is present. Doing both in one pass covers infinite
// scroll and button-gated feeds alike, and is idempotent when the feed is
// exhausted.
const revealScript = `(() => {
	window.scrollTo(0, document.body.scrollHeight);
	const btn = document.querySelector(
		'button.c-loadMoreButton, [data-testid="load-more"], button[aria-label="Load More"]');
	if (btn && !btn.disabled) { btn.click(); }
})()`

// feed is one live browser session on an entity's critic-reviews page.
type feed struct {
	provider *Provider
	locator  string
	tabCtx   context.Context
	cancel   context.CancelFunc
	release  func()
	logger   *zap.Logger

	mu       sync.Mutex
	snapshot string
	closed   bool
}

func (f *feed) navigate(ctx context.Context) error {
	return f.run(ctx, f.provider.cfg.NavTimeout, chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "en-US,en;q=0.9",
		}),
		chromedp.Navigate(f.provider.reviewsURL(f.locator)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	})
}

// RevealMore implements harvest.Feed.
func (f *feed) RevealMore(ctx context.Context) error {
	if err := f.provider.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("reveal rate limit: %w", err)
	}
	if err := f.run(ctx, f.provider.cfg.RequestTimeout, chromedp.Tasks{
		chromedp.Evaluate(revealScript, nil),
	}); err != nil {
		return fmt.Errorf("reveal more: %w", err)
	}
	return nil
}

// ExtractVisible implements harvest.Feed. It snapshots the DOM once and
// parses every visible review row out of it.
func (f *feed) ExtractVisible(ctx context.Context) ([]harvest.Item, error) {
	html, err := f.refreshSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract visible: %w", err)
	}
	return parseReviews(html), nil
}

// KnownTotal implements harvest.Feed, reading the declared review count
// from the last DOM snapshot. It never refetches; the count rides along
// with extraction.
func (f *feed) KnownTotal(_ context.Context) (int, bool) {
	f.mu.Lock()
	snapshot := f.snapshot
	f.mu.Unlock()
	if snapshot == "" {
		return 0, false
	}
	return parseKnownTotal(snapshot)
}

// Close implements harvest.Feed. It archives the final snapshot when an
// archiver is configured, then tears down the tab and frees the session
// slot. Safe to call on every exit path.
func (f *feed) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	snapshot := f.snapshot
	f.mu.Unlock()

	if f.provider.archiver != nil && snapshot != "" {
		name := snapshotName(f.locator)
		if uri, err := f.provider.archiver.Archive(ctx, name, []byte(snapshot)); err != nil {
			f.logger.Warn("snapshot archive failed", zap.Error(err))
		} else {
			f.logger.Debug("snapshot archived", zap.String("uri", uri))
		}
	}

	f.cancel()
	f.release()
	return nil
}

func (f *feed) refreshSnapshot(ctx context.Context) (string, error) {
	var html string
	if err := f.run(ctx, f.provider.cfg.RequestTimeout, chromedp.Tasks{
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.snapshot = html
	f.mu.Unlock()
	return html, nil
}

// run executes chromedp actions on the tab, bounded by its own timeout and
// cancelable from the caller's context.
func (f *feed) run(ctx context.Context, timeout time.Duration, tasks chromedp.Tasks) error {
	runCtx, cancel := context.WithTimeout(f.tabCtx, timeout)
	defer cancel()

	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, tasks); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// forwardCancel propagates the caller's cancellation into a chromedp run
// context, which is derived from the tab rather than the caller.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func snapshotName(locator string) string {
	sum := sha256.Sum256([]byte(locator))
	return fmt.Sprintf("%s_%s.html", sanitizeSlug(locator), hex.EncodeToString(sum[:8]))
}
