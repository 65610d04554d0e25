package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filmdata/critic-harvester/internal/clock/system"
	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/harvest/harvesttest"
	"github.com/filmdata/critic-harvester/internal/resolver"
	"github.com/filmdata/critic-harvester/internal/scheduler"
)

func queries() []harvest.Query {
	return []harvest.Query{
		{Name: "Heat", Year: 1995},
		{Name: "Amélie", Year: 2001},
		{Name: "The Great Escape", Year: 2020},
	}
}

func okPipeline() scheduler.Pipeline {
	return scheduler.PipelineFunc(func(_ context.Context, q harvest.Query) (harvest.Result, error) {
		return harvest.Result{
			Entity: harvest.ResolvedEntity{Query: q, Locator: "L", Strategy: harvest.StrategyListingScan},
			Items:  []harvest.Item{{Fields: map[string]string{"publication": "Variety"}}},
			Reason: harvest.Stagnated,
		}, nil
	})
}

func TestRunAllResolvesEverything(t *testing.T) {
	t.Parallel()

	s := scheduler.New(scheduler.Config{Concurrency: 2, PerTaskDeadline: time.Second}, okPipeline(), system.New(), nil, nil)
	outcome := s.RunAll(context.Background(), queries())

	require.Len(t, outcome.Resolved, 3)
	require.Empty(t, outcome.Unresolved)
	require.NotEmpty(t, outcome.RunID)
	require.False(t, outcome.Finished.Before(outcome.Started))
}

func TestRunAllDeduplicatesQueries(t *testing.T) {
	t.Parallel()

	in := append(queries(),
		harvest.Query{Name: "HEAT", Year: 1995},
		harvest.Query{Name: "Amelie", Year: 2001},
	)
	s := scheduler.New(scheduler.Config{Concurrency: 4, PerTaskDeadline: time.Second}, okPipeline(), system.New(), nil, nil)
	outcome := s.RunAll(context.Background(), in)

	// Partition size equals the distinct query count after normalization.
	require.Equal(t, 3, len(outcome.Resolved)+len(outcome.Unresolved))
}

func TestRunAllWatchdogIsolation(t *testing.T) {
	t.Parallel()

	var completed atomic.Int32
	pipeline := scheduler.PipelineFunc(func(ctx context.Context, q harvest.Query) (harvest.Result, error) {
		if q.Name == "Heat" {
			// Unresponsive task: never finishes within the deadline.
			<-ctx.Done()
			return harvest.Result{}, ctx.Err()
		}
		completed.Add(1)
		return harvest.Result{
			Entity: harvest.ResolvedEntity{Query: q, Strategy: harvest.StrategySearch},
			Reason: harvest.KnownTotalReached,
		}, nil
	})

	s := scheduler.New(scheduler.Config{Concurrency: 3, PerTaskDeadline: 50 * time.Millisecond}, pipeline, system.New(), nil, nil)
	outcome := s.RunAll(context.Background(), queries())

	require.Len(t, outcome.Resolved, 2)
	require.Len(t, outcome.Unresolved, 1)
	require.Equal(t, "Heat", outcome.Unresolved[0].Query.Name)
	require.Equal(t, harvest.FailureWatchdog, outcome.Unresolved[0].Reason)
	require.Equal(t, int32(2), completed.Load())
}

func TestRunAllRecordsNotFound(t *testing.T) {
	t.Parallel()

	pipeline := scheduler.PipelineFunc(func(_ context.Context, q harvest.Query) (harvest.Result, error) {
		return harvest.Result{}, resolver.ErrNotFound
	})
	s := scheduler.New(scheduler.Config{Concurrency: 2, PerTaskDeadline: time.Second}, pipeline, system.New(), nil, nil)
	outcome := s.RunAll(context.Background(), queries())

	require.Empty(t, outcome.Resolved)
	require.Len(t, outcome.Unresolved, 3)
	for _, fq := range outcome.Unresolved {
		require.Equal(t, harvest.FailureNotFound, fq.Reason)
	}
}

func TestRunAllCanceledRunAccountsForEveryQuery(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := scheduler.New(scheduler.Config{Concurrency: 1, PerTaskDeadline: time.Second}, okPipeline(), system.New(), nil, nil)
	outcome := s.RunAll(ctx, queries())

	require.Equal(t, 3, len(outcome.Resolved)+len(outcome.Unresolved))
}

func TestHarvestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	feed := &harvesttest.Feed{
		Batches: [][]harvest.Item{
			{{Fields: map[string]string{"publication": "Variety", "author": "A", "score": "80"}}},
			{{Fields: map[string]string{"publication": "Empire", "author": "B", "score": "90"}}},
		},
		Total:    2,
		HasTotal: true,
	}
	provider := &harvesttest.Provider{
		ListingPages: map[int][][]harvest.ListingEntry{
			2020: {{{DisplayName: "The Great Escape", Address: "X"}}},
		},
		Feeds: map[string]*harvesttest.Feed{"X": feed},
	}

	pipeline := &scheduler.HarvestPipeline{
		Resolver: resolver.NewDefault(resolver.Config{MaxListingPages: 2}, nil),
		Engine: harvest.NewEngine(harvest.Config{
			StagnationThreshold: 2,
			MaxIterations:       10,
			RevealAttempts:      1,
			SettleDelay:         time.Millisecond,
		}, nil),
		Provider: provider,
		KeyFn:    harvest.FieldKey("publication", "author", "score"),
	}

	s := scheduler.New(scheduler.Config{Concurrency: 1, PerTaskDeadline: time.Second}, pipeline, system.New(), nil, nil)
	outcome := s.RunAll(context.Background(), []harvest.Query{{Name: "The Great Escape", Year: 2020}})

	require.Len(t, outcome.Resolved, 1)
	res := outcome.Resolved[0]
	require.Equal(t, harvest.StrategyListingScan, res.Entity.Strategy)
	require.Equal(t, harvest.KnownTotalReached, res.Reason)
	require.Len(t, res.Items, 2)
	require.True(t, feed.Closed())
}
