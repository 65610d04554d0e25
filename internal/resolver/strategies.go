package resolver

import (
	"context"
	"html"

	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/title"
)

// ListingScan walks the year-scoped browse listing page by page and
// returns the first entry whose display name normalizes to the query's
// name. An empty page ends the scan early.
type ListingScan struct {
	MaxPages int
}

// Name implements Strategy.
func (s *ListingScan) Name() harvest.ResolveStrategy { return harvest.StrategyListingScan }

// Resolve implements Strategy.
func (s *ListingScan) Resolve(ctx context.Context, q harvest.Query, p harvest.Provider) (harvest.ResolvedEntity, bool, error) {
	want := title.Normalize(q.Name)
	if want == "" {
		return harvest.ResolvedEntity{}, false, nil
	}
	for page := 0; page < s.MaxPages; page++ {
		entries, err := p.FetchListing(ctx, q.Year, page)
		if err != nil {
			return harvest.ResolvedEntity{}, false, err
		}
		if len(entries) == 0 {
			break
		}
		for _, entry := range entries {
			if entry.Address == "" {
				continue
			}
			if title.Normalize(entry.DisplayName) == want {
				return harvest.ResolvedEntity{
					Query:    q,
					Locator:  entry.Address,
					Strategy: harvest.StrategyListingScan,
				}, true, nil
			}
		}
	}
	return harvest.ResolvedEntity{}, false, nil
}

// DirectGuess probes deterministic identifier candidates derived from the
// title and year, accepting the first probe whose declared title matches
// and whose declared year, when present, is within tolerance.
type DirectGuess struct {
	YearTolerance int
}

// Name implements Strategy.
func (s *DirectGuess) Name() harvest.ResolveStrategy { return harvest.StrategyDirectGuess }

// Resolve implements Strategy.
func (s *DirectGuess) Resolve(ctx context.Context, q harvest.Query, p harvest.Provider) (harvest.ResolvedEntity, bool, error) {
	for _, candidate := range title.Candidates(q.Name, q.Year) {
		probe, err := p.Probe(ctx, candidate)
		if err != nil {
			return harvest.ResolvedEntity{}, false, err
		}
		if !probe.OK {
			continue
		}
		if !title.Equal(probe.DeclaredTitle, q.Name) {
			continue
		}
		if !yearWithin(probe.DeclaredYear, q.Year, s.YearTolerance) {
			continue
		}
		return harvest.ResolvedEntity{
			Query:    q,
			Locator:  candidate,
			Strategy: harvest.StrategyDirectGuess,
		}, true, nil
	}
	return harvest.ResolvedEntity{}, false, nil
}

// Search issues a free-text search with the entity-decoded title and scans
// the results top to bottom.
type Search struct {
	YearTolerance int
}

// Name implements Strategy.
func (s *Search) Name() harvest.ResolveStrategy { return harvest.StrategySearch }

// Resolve implements Strategy.
func (s *Search) Resolve(ctx context.Context, q harvest.Query, p harvest.Provider) (harvest.ResolvedEntity, bool, error) {
	hits, err := p.Search(ctx, html.UnescapeString(q.Name))
	if err != nil {
		return harvest.ResolvedEntity{}, false, err
	}
	for _, hit := range hits {
		if hit.Address == "" {
			continue
		}
		if !title.Equal(hit.DisplayName, q.Name) {
			continue
		}
		if !yearWithin(hit.DeclaredYear, q.Year, s.YearTolerance) {
			continue
		}
		return harvest.ResolvedEntity{
			Query:    q,
			Locator:  hit.Address,
			Strategy: harvest.StrategySearch,
		}, true, nil
	}
	return harvest.ResolvedEntity{}, false, nil
}
