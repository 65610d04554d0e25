package harvest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/harvest/harvesttest"
)

func fastConfig() harvest.Config {
	return harvest.Config{
		StagnationThreshold: 3,
		MaxIterations:       50,
		RevealAttempts:      1,
		SettleDelay:         time.Millisecond,
	}
}

func review(pub, author, score string) harvest.Item {
	return harvest.Item{Fields: map[string]string{
		"publication": pub,
		"author":      author,
		"score":       score,
	}}
}

var reviewKey = harvest.FieldKey("publication", "author", "score")

func entity(locator string) harvest.ResolvedEntity {
	return harvest.ResolvedEntity{
		Query:    harvest.Query{Name: "Heat", Year: 1995},
		Locator:  locator,
		Strategy: harvest.StrategyListingScan,
	}
}

func TestHarvestKnownTotalReached(t *testing.T) {
	t.Parallel()

	feed := &harvesttest.Feed{
		Batches: [][]harvest.Item{
			{review("Variety", "A", "80"), review("Empire", "B", "90")},
			{review("Time", "C", "70"), review("Wired", "D", "60")},
		},
		Total:    4,
		HasTotal: true,
	}
	provider := &harvesttest.Provider{Feeds: map[string]*harvesttest.Feed{"L": feed}}
	engine := harvest.NewEngine(fastConfig(), nil)

	res, err := engine.Harvest(context.Background(), entity("L"), provider, reviewKey)
	require.NoError(t, err)
	require.Equal(t, harvest.KnownTotalReached, res.Reason)
	require.Len(t, res.Items, 4)
	require.True(t, feed.Closed())
}

func TestHarvestStagnates(t *testing.T) {
	t.Parallel()

	feed := &harvesttest.Feed{
		Batches: [][]harvest.Item{
			{review("Variety", "A", "80")},
			{review("Empire", "B", "90")},
		},
	}
	provider := &harvesttest.Provider{Feeds: map[string]*harvesttest.Feed{"L": feed}}
	engine := harvest.NewEngine(fastConfig(), nil)

	res, err := engine.Harvest(context.Background(), entity("L"), provider, reviewKey)
	require.NoError(t, err)
	require.Equal(t, harvest.Stagnated, res.Reason)
	require.Len(t, res.Items, 2)
}

func TestHarvestStepCapReached(t *testing.T) {
	t.Parallel()

	feed := &harvesttest.Feed{Endless: true}
	provider := &harvesttest.Provider{Feeds: map[string]*harvesttest.Feed{"L": feed}}
	cfg := fastConfig()
	cfg.MaxIterations = 5
	engine := harvest.NewEngine(cfg, nil)

	res, err := engine.Harvest(context.Background(), entity("L"), provider, harvest.FieldKey("publication"))
	require.NoError(t, err)
	require.Equal(t, harvest.StepCapReached, res.Reason)
	require.Len(t, res.Items, 5)
}

func TestHarvestDeduplicatesRepeatedObservations(t *testing.T) {
	t.Parallel()

	// The second batch re-lists the first item; only the first occurrence
	// survives, in discovery order.
	feed := &harvesttest.Feed{
		Batches: [][]harvest.Item{
			{review("Variety", "A", "80")},
			{review("VARIETY", "a", "80"), review("Empire", "B", "90")},
		},
	}
	provider := &harvesttest.Provider{Feeds: map[string]*harvesttest.Feed{"L": feed}}
	engine := harvest.NewEngine(fastConfig(), nil)

	res, err := engine.Harvest(context.Background(), entity("L"), provider, reviewKey)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.Equal(t, "Variety", res.Items[0].Field("publication"))
	require.Equal(t, "Empire", res.Items[1].Field("publication"))
}

func TestHarvestProviderFaultsDegradeToStagnation(t *testing.T) {
	t.Parallel()

	feed := &harvesttest.Feed{ExtractErr: errors.New("tab crashed")}
	provider := &harvesttest.Provider{Feeds: map[string]*harvesttest.Feed{"L": feed}}
	engine := harvest.NewEngine(fastConfig(), nil)

	res, err := engine.Harvest(context.Background(), entity("L"), provider, reviewKey)
	require.NoError(t, err)
	require.Equal(t, harvest.Stagnated, res.Reason)
	require.Empty(t, res.Items)
	require.True(t, feed.Closed())
}

func TestHarvestOpenFeedFault(t *testing.T) {
	t.Parallel()

	provider := &harvesttest.Provider{OpenErr: errors.New("session limit")}
	engine := harvest.NewEngine(fastConfig(), nil)

	res, err := engine.Harvest(context.Background(), entity("L"), provider, reviewKey)
	require.NoError(t, err)
	require.Equal(t, harvest.Stagnated, res.Reason)
	require.Empty(t, res.Items)
}

func TestHarvestContextCancellation(t *testing.T) {
	t.Parallel()

	feed := &harvesttest.Feed{Endless: true}
	provider := &harvesttest.Provider{Feeds: map[string]*harvesttest.Feed{"L": feed}}
	cfg := fastConfig()
	cfg.SettleDelay = 50 * time.Millisecond
	engine := harvest.NewEngine(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := engine.Harvest(ctx, entity("L"), provider, reviewKey)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, feed.Closed())
}
