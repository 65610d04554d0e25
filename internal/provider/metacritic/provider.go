// Package metacritic implements the harvest.Provider capability against
// the movie catalog site: HTTP fast paths for listing, probe, and search,
// and headless browser sessions for the lazily-loaded review feed.
package metacritic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

// ErrBrowserDisabled indicates headless sessions were disabled via
// configuration; feeds cannot be opened.
var ErrBrowserDisabled = errors.New("browser disabled")

const maxBodyBytes = 4 << 20

// Config holds provider connection settings.
type Config struct {
	BaseURL        string
	UserAgent      string
	RequestTimeout time.Duration
	// HostQPS throttles every outbound call to the source host.
	HostQPS float64
	// MaxSessions caps concurrently open feed sessions.
	MaxSessions int
	// NavTimeout bounds a single browser navigation.
	NavTimeout time.Duration
	// RetryMax is the probe client's retry budget.
	RetryMax int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.metacritic.com"
	}
	if c.UserAgent == "" {
		c.UserAgent = "critic-harvester/0.1"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 20 * time.Second
	}
	if c.HostQPS <= 0 {
		c.HostQPS = 1.5
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 2
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 45 * time.Second
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	return c
}

// Archiver stores raw page snapshots for audit. Optional.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) (string, error)
}

// Provider implements harvest.Provider.
type Provider struct {
	cfg      Config
	logger   *zap.Logger
	probe    *retryablehttp.Client
	limiter  *rate.Limiter
	sem      chan struct{}
	archiver Archiver

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Option customizes a Provider.
type Option func(*Provider)

// WithArchiver attaches a raw-snapshot archiver.
func WithArchiver(a Archiver) Option {
	return func(p *Provider) { p.archiver = a }
}

// New builds a Provider and warms up the headless browser.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Provider, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	probe := retryablehttp.NewClient()
	probe.RetryMax = cfg.RetryMax
	probe.HTTPClient.Timeout = cfg.RequestTimeout
	probe.Logger = nil

	p := &Provider{
		cfg:     cfg,
		logger:  logger,
		probe:   probe,
		limiter: rate.NewLimiter(rate.Limit(cfg.HostQPS), 1),
		sem:     make(chan struct{}, cfg.MaxSessions),
	}
	for _, opt := range opts {
		opt(p)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocCancel()
		browserCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	return p, nil
}

// Close tears down the browser and allocator.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	return nil
}

// FetchListing implements harvest.Provider. An out-of-range page returns
// an empty slice, which the resolver reads as the end of the listing.
func (p *Provider) FetchListing(ctx context.Context, year, page int) ([]harvest.ListingEntry, error) {
	addr := fmt.Sprintf("%s/browse/movie/?releaseYearMin=%d&releaseYearMax=%d&page=%d",
		p.cfg.BaseURL, year, year, page+1)
	body, err := p.crawl(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("fetch listing year=%d page=%d: %w", year, page, err)
	}
	return parseListing(body), nil
}

// Probe implements harvest.Provider. A non-success status is a negative
// probe, not an error.
func (p *Provider) Probe(ctx context.Context, address string) (harvest.ProbeResult, error) {
	body, status, err := p.getWithStatus(ctx, p.movieURL(address))
	if err != nil {
		return harvest.ProbeResult{}, fmt.Errorf("probe %s: %w", address, err)
	}
	if status != http.StatusOK {
		return harvest.ProbeResult{}, nil
	}
	declaredTitle, declaredYear := parseProbe(body)
	return harvest.ProbeResult{
		OK:            true,
		DeclaredTitle: declaredTitle,
		DeclaredYear:  declaredYear,
	}, nil
}

// Search implements harvest.Provider.
func (p *Provider) Search(ctx context.Context, text string) ([]harvest.SearchHit, error) {
	addr := fmt.Sprintf("%s/search/%s/?category=2", p.cfg.BaseURL, url.PathEscape(text))
	body, err := p.crawl(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", text, err)
	}
	return parseSearchHits(body), nil
}

// OpenFeed implements harvest.Provider. It blocks until a session slot is
// free, navigates a fresh browser tab to the critic-reviews page, and
// returns the live feed. The slot is released when the feed closes.
func (p *Provider) OpenFeed(ctx context.Context, locator string) (harvest.Feed, error) {
	if p.browserCtx == nil {
		return nil, ErrBrowserDisabled
	}
	release, err := p.acquireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		release()
		return nil, fmt.Errorf("feed rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(p.browserCtx)
	f := &feed{
		provider: p,
		locator:  locator,
		tabCtx:   tabCtx,
		cancel:   cancelTab,
		release:  release,
		logger:   p.logger.With(zap.String("locator", locator)),
	}
	if err := f.navigate(ctx); err != nil {
		_ = f.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("open feed %s: %w", locator, err)
	}
	return f, nil
}

func (p *Provider) acquireSession(ctx context.Context) (func(), error) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire session slot: %w", ctx.Err())
	}
}

func (p *Provider) movieURL(locator string) string {
	return fmt.Sprintf("%s/movie/%s/", p.cfg.BaseURL, strings.Trim(locator, "/"))
}

func (p *Provider) reviewsURL(locator string) string {
	return fmt.Sprintf("%s/movie/%s/critic-reviews/", p.cfg.BaseURL, strings.Trim(locator, "/"))
}

// crawl fetches one catalog page through Colly and returns its body.
func (p *Provider) crawl(ctx context.Context, addr string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	var (
		body     string
		fetchErr error
	)
	c := colly.NewCollector(
		colly.UserAgent(p.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(p.cfg.RequestTimeout)
	c.OnResponse(func(r *colly.Response) {
		if len(r.Body) > maxBodyBytes {
			r.Body = r.Body[:maxBodyBytes]
		}
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(addr); err != nil {
		return "", fmt.Errorf("visit %s: %w", addr, err)
	}
	c.Wait()
	if fetchErr != nil {
		return "", fetchErr
	}
	return body, nil
}

// getWithStatus is the probe fast path: a plain GET with retries where a
// non-200 answer is data, not an error.
func (p *Provider) getWithStatus(ctx context.Context, addr string) (string, int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", 0, fmt.Errorf("rate limit: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	resp, err := p.probe.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("get %s: %w", addr, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(data), resp.StatusCode, nil
}
