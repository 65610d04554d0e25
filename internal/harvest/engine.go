package harvest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config tunes one Engine. The zero value is usable; defaults below apply.
type Config struct {
	// StagnationThreshold is the consecutive no-progress iteration count
	// that ends a harvest (default 3).
	StagnationThreshold int
	// MaxIterations is the hard cap on reveal iterations (default 400).
	MaxIterations int
	// RevealAttempts is how many reveal actions run per iteration, to
	// absorb lazily-rendered content that needs more than one tick
	// (default 2).
	RevealAttempts int
	// SettleDelay is the wait after a reveal before re-extracting
	// (default 1200ms).
	SettleDelay time.Duration
}

const (
	defaultStagnationThreshold = 3
	defaultMaxIterations       = 400
	defaultRevealAttempts      = 2
	defaultSettleDelay         = 1200 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.StagnationThreshold <= 0 {
		c.StagnationThreshold = defaultStagnationThreshold
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.RevealAttempts <= 0 {
		c.RevealAttempts = defaultRevealAttempts
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = defaultSettleDelay
	}
	return c
}

// Engine drives the incremental harvest loop for resolved entities.
type Engine struct {
	cfg    Config
	policy Policy
	logger *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg: cfg,
		policy: Policy{
			StagnationThreshold: cfg.StagnationThreshold,
			MaxIterations:       cfg.MaxIterations,
		},
		logger: logger,
	}
}

// Harvest repeatedly reveals and extracts the entity's feed until the
// termination policy fires. Provider faults degrade to zero-progress
// iterations; only context cancellation returns an error, carrying the
// partial result accumulated so far.
func (e *Engine) Harvest(ctx context.Context, entity ResolvedEntity, provider Provider, keyFn KeyFunc) (Result, error) {
	res := Result{Entity: entity}

	feed, err := provider.OpenFeed(ctx, entity.Locator)
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("open feed: %w", ctx.Err())
		}
		e.logger.Warn("feed unavailable, harvesting nothing",
			zap.String("locator", entity.Locator),
			zap.Error(err),
		)
		res.Reason = Stagnated
		return res, nil
	}
	defer func() {
		if cerr := feed.Close(context.WithoutCancel(ctx)); cerr != nil {
			e.logger.Debug("close feed", zap.String("locator", entity.Locator), zap.Error(cerr))
		}
	}()

	dedup := NewDedup()
	res.Items = e.merge(ctx, feed, dedup, keyFn, res.Items)

	st := LoopState{Unique: dedup.Len()}
	for {
		if total, ok := feed.KnownTotal(ctx); ok {
			st.KnownTotal, st.TotalKnown = total, true
		}
		if reason, stop := e.policy.Evaluate(st); stop {
			res.Reason = reason
			e.logger.Debug("harvest finished",
				zap.String("locator", entity.Locator),
				zap.String("reason", string(reason)),
				zap.Int("items", len(res.Items)),
				zap.Int("iterations", st.Iteration),
			)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("harvest %s: %w", entity.Locator, err)
		}

		before := dedup.Len()
		e.reveal(ctx, feed, entity.Locator)
		if err := e.settle(ctx); err != nil {
			return res, fmt.Errorf("harvest %s: %w", entity.Locator, err)
		}
		res.Items = e.merge(ctx, feed, dedup, keyFn, res.Items)

		st.Iteration++
		if dedup.Len() > before {
			st.Stagnant = 0
		} else {
			st.Stagnant++
		}
		st.Unique = dedup.Len()
	}
}

// reveal invokes the feed's reveal action the configured number of times.
// Faults are swallowed; they surface as a zero-progress iteration.
func (e *Engine) reveal(ctx context.Context, feed Feed, locator string) {
	for i := 0; i < e.cfg.RevealAttempts; i++ {
		if ctx.Err() != nil {
			return
		}
		if err := feed.RevealMore(ctx); err != nil {
			e.logger.Debug("reveal fault", zap.String("locator", locator), zap.Error(err))
			return
		}
	}
}

// merge extracts the visible items and appends the newly unique ones in
// discovery order. Extraction faults yield no items this pass.
func (e *Engine) merge(ctx context.Context, feed Feed, dedup *Dedup, keyFn KeyFunc, items []Item) []Item {
	visible, err := feed.ExtractVisible(ctx)
	if err != nil {
		e.logger.Debug("extract fault", zap.Error(err))
		return items
	}
	for _, it := range visible {
		if dedup.Add(keyFn(it)) {
			items = append(items, it)
		}
	}
	return items
}

func (e *Engine) settle(ctx context.Context) error {
	timer := time.NewTimer(e.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
