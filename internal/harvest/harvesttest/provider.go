// Package harvesttest provides in-memory Provider and Feed stubs for
// resolver, engine, and scheduler tests.
package harvesttest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

// Provider is a scriptable in-memory harvest.Provider.
type Provider struct {
	mu sync.Mutex

	// ListingPages maps year to its ordered listing pages. Pages past the
	// end of the slice are empty, signaling the end of the listing.
	ListingPages map[int][][]harvest.ListingEntry
	ListingErr   error

	// Probes maps candidate addresses to probe results. Unknown addresses
	// answer with OK=false.
	Probes   map[string]harvest.ProbeResult
	ProbeErr error

	SearchHits []harvest.SearchHit
	SearchErr  error

	// Feeds maps locators to their feed stubs.
	Feeds   map[string]*Feed
	OpenErr error
	// OpenDelay simulates a slow session acquisition (watchdog tests).
	OpenDelay time.Duration

	listingCalls int
	probeCalls   int
	searchCalls  int
	opens        int
}

// FetchListing implements harvest.Provider.
func (p *Provider) FetchListing(_ context.Context, year, page int) ([]harvest.ListingEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listingCalls++
	if p.ListingErr != nil {
		return nil, p.ListingErr
	}
	pages := p.ListingPages[year]
	if page < 0 || page >= len(pages) {
		return nil, nil
	}
	return pages[page], nil
}

// Probe implements harvest.Provider.
func (p *Provider) Probe(_ context.Context, address string) (harvest.ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probeCalls++
	if p.ProbeErr != nil {
		return harvest.ProbeResult{}, p.ProbeErr
	}
	return p.Probes[address], nil
}

// Search implements harvest.Provider.
func (p *Provider) Search(_ context.Context, _ string) ([]harvest.SearchHit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searchCalls++
	if p.SearchErr != nil {
		return nil, p.SearchErr
	}
	return p.SearchHits, nil
}

// OpenFeed implements harvest.Provider.
func (p *Provider) OpenFeed(ctx context.Context, locator string) (harvest.Feed, error) {
	if p.OpenDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.OpenDelay):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	feed, ok := p.Feeds[locator]
	if !ok {
		return nil, fmt.Errorf("no feed scripted for locator %q", locator)
	}
	return feed, nil
}

// Opens reports how many feed sessions were acquired.
func (p *Provider) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

// ProbeCalls reports how many probes were issued.
func (p *Provider) ProbeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probeCalls
}

// Feed is a scriptable harvest.Feed. Batches[i] becomes visible after i
// reveal actions; Endless makes every reveal surface one fresh item
// instead.
type Feed struct {
	mu sync.Mutex

	Batches  [][]harvest.Item
	Endless  bool
	Total    int
	HasTotal bool

	// RevealErr fails every reveal; ExtractErr fails every extraction.
	RevealErr  error
	ExtractErr error

	reveals int
	endless []harvest.Item
	closed  bool
}

// RevealMore implements harvest.Feed.
func (f *Feed) RevealMore(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevealErr != nil {
		return f.RevealErr
	}
	f.reveals++
	if f.Endless {
		f.endless = append(f.endless, harvest.Item{Fields: map[string]string{
			"publication": fmt.Sprintf("outlet-%d", len(f.endless)),
		}})
	}
	return nil
}

// ExtractVisible implements harvest.Feed.
func (f *Feed) ExtractVisible(_ context.Context) ([]harvest.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExtractErr != nil {
		return nil, f.ExtractErr
	}
	if f.Endless {
		return append([]harvest.Item(nil), f.endless...), nil
	}
	limit := f.reveals + 1
	if limit > len(f.Batches) {
		limit = len(f.Batches)
	}
	var visible []harvest.Item
	for _, batch := range f.Batches[:limit] {
		visible = append(visible, batch...)
	}
	return visible, nil
}

// KnownTotal implements harvest.Feed.
func (f *Feed) KnownTotal(_ context.Context) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Total, f.HasTotal
}

// Close implements harvest.Feed.
func (f *Feed) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether the feed session was released.
func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
