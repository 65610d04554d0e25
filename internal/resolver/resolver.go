// Package resolver maps loosely-specified queries to canonical source
// locators through an ordered chain of strategies.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

// ErrNotFound is the terminal outcome when every strategy exhausts without
// a match. It is a valid result, not a fault.
var ErrNotFound = errors.New("entity not found")

// Strategy is one resolution method. It reports (entity, true) on a match
// and (zero, false) when the query is not present as far as this method
// can tell. A returned error marks a transport fault; the resolver treats
// the whole strategy as having found nothing.
type Strategy interface {
	Name() harvest.ResolveStrategy
	Resolve(ctx context.Context, q harvest.Query, p harvest.Provider) (harvest.ResolvedEntity, bool, error)
}

// Config tunes the default strategy chain.
type Config struct {
	// MaxListingPages bounds the listing scan (default 15).
	MaxListingPages int
	// YearTolerance is the accepted distance between the query year and a
	// declared year (default 1).
	YearTolerance int
}

func (c Config) withDefaults() Config {
	if c.MaxListingPages <= 0 {
		c.MaxListingPages = 15
	}
	if c.YearTolerance <= 0 {
		c.YearTolerance = 1
	}
	return c
}

// Resolver folds a query over its strategy chain, short-circuiting on the
// first success.
type Resolver struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New constructs a Resolver over the given strategies, tried in order.
func New(logger *zap.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{strategies: strategies, logger: logger}
}

// NewDefault builds a Resolver with the standard chain: listing scan,
// direct guess, search.
func NewDefault(cfg Config, logger *zap.Logger) *Resolver {
	cfg = cfg.withDefaults()
	return New(logger,
		&ListingScan{MaxPages: cfg.MaxListingPages},
		&DirectGuess{YearTolerance: cfg.YearTolerance},
		&Search{YearTolerance: cfg.YearTolerance},
	)
}

// Resolve tries each strategy until one matches. Transport faults inside a
// strategy are swallowed and logged so a broken strategy never blocks the
// next one; only context cancellation propagates. Exhaustion returns
// ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, q harvest.Query, p harvest.Provider) (harvest.ResolvedEntity, error) {
	for _, s := range r.strategies {
		entity, ok, err := s.Resolve(ctx, q, p)
		if err != nil {
			if ctx.Err() != nil {
				return harvest.ResolvedEntity{}, fmt.Errorf("resolve %q: %w", q.Name, ctx.Err())
			}
			r.logger.Debug("strategy fault, trying next",
				zap.String("strategy", string(s.Name())),
				zap.String("query", q.Name),
				zap.Error(err),
			)
			continue
		}
		if ok {
			r.logger.Debug("query resolved",
				zap.String("strategy", string(s.Name())),
				zap.String("query", q.Name),
				zap.String("locator", entity.Locator),
			)
			return entity, nil
		}
	}
	return harvest.ResolvedEntity{}, fmt.Errorf("resolve %q (%d): %w", q.Name, q.Year, ErrNotFound)
}

func yearWithin(declared, want, tolerance int) bool {
	if declared == 0 {
		// Absence of a declared year is acceptable, not a mismatch.
		return true
	}
	diff := declared - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
