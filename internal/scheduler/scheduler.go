// Package scheduler fans resolve+harvest pipelines out over a bounded
// worker pool, with a per-task watchdog and channel-based aggregation of
// the run outcome.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/progress"
	"github.com/filmdata/critic-harvester/internal/resolver"
)

// Pipeline runs resolve+harvest for one query. A nil error means a
// harvest happened; resolver.ErrNotFound marks chain exhaustion; context
// errors mark abandonment.
type Pipeline interface {
	Run(ctx context.Context, q harvest.Query) (harvest.Result, error)
}

// Config controls pool size and the per-task watchdog.
type Config struct {
	// Concurrency is the fixed worker count (default 4).
	Concurrency int
	// PerTaskDeadline bounds one resolve+harvest task (default 8m).
	PerTaskDeadline time.Duration
}

const (
	defaultConcurrency     = 4
	defaultPerTaskDeadline = 8 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.PerTaskDeadline <= 0 {
		c.PerTaskDeadline = defaultPerTaskDeadline
	}
	return c
}

// Scheduler owns the worker pool for one or more runs.
type Scheduler struct {
	cfg      Config
	pipeline Pipeline
	clock    harvest.Clock
	hub      *progress.Hub
	logger   *zap.Logger
}

// New constructs a Scheduler. hub may be nil.
func New(cfg Config, pipeline Pipeline, clock harvest.Clock, hub *progress.Hub, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		pipeline: pipeline,
		clock:    clock,
		hub:      hub,
		logger:   logger,
	}
}

type taskOutcome struct {
	query   harvest.Query
	result  harvest.Result
	failure harvest.FailureReason
	ok      bool
}

// RunAll dispatches every distinct query across the pool and blocks until
// all tasks settle. Each input query appears exactly once in the returned
// outcome: as a harvest, a NotFound failure, or a watchdog failure. A
// failing or timed-out task never affects its siblings.
func (s *Scheduler) RunAll(ctx context.Context, queries []harvest.Query) harvest.RunOutcome {
	deduped := dedupe(queries)
	outcome := harvest.RunOutcome{
		RunID:   uuid.NewString(),
		Started: s.clock.Now(),
	}
	s.hub.Emit(progress.Event{RunID: outcome.RunID, TS: outcome.Started, Stage: progress.StageRunStart})
	s.logger.Info("run started",
		zap.String("run_id", outcome.RunID),
		zap.Int("queries", len(deduped)),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	queue := make(chan harvest.Query)
	results := make(chan taskOutcome)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range queue {
				results <- s.runOne(ctx, outcome.RunID, q)
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, q := range deduped {
			select {
			case queue <- q:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	// Single-consumer aggregation: only this loop touches the outcome.
	settled := make(map[string]struct{}, len(deduped))
	for to := range results {
		settled[to.query.Key()] = struct{}{}
		if to.ok {
			outcome.Resolved = append(outcome.Resolved, to.result)
		} else {
			outcome.Unresolved = append(outcome.Unresolved, harvest.FailedQuery{Query: to.query, Reason: to.failure})
		}
	}

	// Queries never dispatched because the run context ended are still
	// accounted for.
	for _, q := range deduped {
		if _, ok := settled[q.Key()]; !ok {
			outcome.Unresolved = append(outcome.Unresolved, harvest.FailedQuery{Query: q, Reason: harvest.FailureWatchdog})
		}
	}

	outcome.Finished = s.clock.Now()
	s.hub.Emit(progress.Event{RunID: outcome.RunID, TS: outcome.Finished, Stage: progress.StageRunDone})
	s.logger.Info("run finished",
		zap.String("run_id", outcome.RunID),
		zap.Int("resolved", len(outcome.Resolved)),
		zap.Int("unresolved", len(outcome.Unresolved)),
		zap.Duration("dur", outcome.Finished.Sub(outcome.Started)),
	)
	return outcome
}

type taskResult struct {
	res harvest.Result
	err error
}

func (s *Scheduler) runOne(ctx context.Context, runID string, q harvest.Query) taskOutcome {
	start := s.clock.Now()
	s.hub.Emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageTaskStart, Query: q})

	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.PerTaskDeadline)
	defer cancel()

	// Buffered so an abandoned task can still finish its send and exit.
	done := make(chan taskResult, 1)
	go func() {
		res, err := s.pipeline.Run(taskCtx, q)
		done <- taskResult{res: res, err: err}
	}()

	select {
	case <-taskCtx.Done():
		// Watchdog fired (or the run was canceled). The task is abandoned;
		// any result arriving later is discarded.
		return s.fail(runID, q, harvest.FailureWatchdog, start)
	case tr := <-done:
		switch {
		case tr.err == nil:
			dur := s.clock.Now().Sub(start)
			s.hub.Emit(progress.Event{
				RunID:    runID,
				TS:       s.clock.Now(),
				Stage:    progress.StageTaskResolved,
				Query:    q,
				Strategy: tr.res.Entity.Strategy,
				Reason:   string(tr.res.Reason),
				Items:    len(tr.res.Items),
				Dur:      dur,
			})
			return taskOutcome{query: q, result: tr.res, ok: true}
		case errors.Is(tr.err, context.DeadlineExceeded), errors.Is(tr.err, context.Canceled):
			return s.fail(runID, q, harvest.FailureWatchdog, start)
		case errors.Is(tr.err, resolver.ErrNotFound):
			return s.fail(runID, q, harvest.FailureNotFound, start)
		default:
			s.logger.Error("pipeline returned unexpected error",
				zap.String("run_id", runID),
				zap.String("name", q.Name),
				zap.Error(tr.err),
			)
			return s.fail(runID, q, harvest.FailureNotFound, start)
		}
	}
}

func (s *Scheduler) fail(runID string, q harvest.Query, reason harvest.FailureReason, start time.Time) taskOutcome {
	now := s.clock.Now()
	s.hub.Emit(progress.Event{
		RunID:  runID,
		TS:     now,
		Stage:  progress.StageTaskFailed,
		Query:  q,
		Reason: string(reason),
		Dur:    now.Sub(start),
	})
	return taskOutcome{query: q, failure: reason}
}

func dedupe(queries []harvest.Query) []harvest.Query {
	seen := make(map[string]struct{}, len(queries))
	out := make([]harvest.Query, 0, len(queries))
	for _, q := range queries {
		key := q.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}
