package harvest

import "context"

// ListingEntry is one visible row of a year-scoped browse listing page.
type ListingEntry struct {
	DisplayName string
	Address     string
}

// SearchHit is one result row of a free-text search. DeclaredYear is zero
// when the source does not display one.
type SearchHit struct {
	DisplayName  string
	Address      string
	DeclaredYear int
}

// ProbeResult describes a direct probe of a candidate address. OK means
// the source answered with a success status for the address; DeclaredYear
// is zero when the page exposes none.
type ProbeResult struct {
	OK            bool
	DeclaredTitle string
	DeclaredYear  int
}

// Provider is the content-source capability consumed by the resolver and
// the harvest engine. All calls are fallible and may be slow; callers
// never assume success.
type Provider interface {
	// FetchListing returns the visible entries of one listing page for a
	// year. An empty slice signals the end of the listing.
	FetchListing(ctx context.Context, year, page int) ([]ListingEntry, error)

	// Probe checks a candidate address and reports the page's declared
	// title and year when it exists.
	Probe(ctx context.Context, address string) (ProbeResult, error)

	// Search issues a free-text search and returns the result rows top to
	// bottom.
	Search(ctx context.Context, text string) ([]SearchHit, error)

	// OpenFeed acquires a feed session for a resolved locator. The session
	// counts against the provider's concurrent-session cap until closed.
	OpenFeed(ctx context.Context, locator string) (Feed, error)
}

// Feed is an incrementally-revealed item collection scoped to one entity.
// Implementations guarantee RevealMore is idempotent to invoke repeatedly.
type Feed interface {
	// RevealMore triggers one reveal action (scroll, paging, or a
	// load-more control; a provider detail).
	RevealMore(ctx context.Context) error

	// ExtractVisible returns every currently visible item.
	ExtractVisible(ctx context.Context) ([]Item, error)

	// KnownTotal reports the source's declared total item count when one
	// is visible.
	KnownTotal(ctx context.Context) (int, bool)

	// Close releases the session. Safe to call on every exit path.
	Close(ctx context.Context) error
}
