// Package harvest defines the core types and the feed-harvesting engine
// shared across the resolver, scheduler, and sinks.
package harvest

import (
	"strconv"
	"time"

	"github.com/filmdata/critic-harvester/internal/title"
)

// Query is the immutable input unit: one named, year-scoped movie.
type Query struct {
	Name string
	Year int
}

// Key returns the scheduling identity for the query, built from the
// normalized name and the year. Two queries with equal keys are the same
// request regardless of casing, diacritics, or HTML entities.
func (q Query) Key() string {
	return title.Normalize(q.Name) + "|" + strconv.Itoa(q.Year)
}

// ResolveStrategy identifies which resolution method produced a locator.
type ResolveStrategy string

// Resolution strategies, in chain order.
const (
	StrategyListingScan ResolveStrategy = "listing_scan"
	StrategyDirectGuess ResolveStrategy = "direct_guess"
	StrategySearch      ResolveStrategy = "search"
)

// ResolvedEntity pairs a query with the opaque source locator it resolved
// to. Immutable once created.
type ResolvedEntity struct {
	Query    Query
	Locator  string
	Strategy ResolveStrategy
}

// Item is one observation extracted from the feed. The field set is
// provider-defined; the core only derives dedup keys from it.
type Item struct {
	Fields map[string]string
}

// Field returns the named field or empty when absent.
func (it Item) Field(name string) string {
	return it.Fields[name]
}

// KeyFunc derives the DedupKey for an item. Implementations must be pure
// functions of the item fields so repeated harvests of an unchanged feed
// converge to the same set.
type KeyFunc func(Item) string

// FieldKey builds a KeyFunc that joins the normalized values of the named
// fields with a pipe separator.
func FieldKey(names ...string) KeyFunc {
	return func(it Item) string {
		key := ""
		for i, n := range names {
			if i > 0 {
				key += "|"
			}
			key += title.Normalize(it.Fields[n])
		}
		return key
	}
}

// TerminationReason reports why a harvest loop stopped.
type TerminationReason string

// Harvest termination reasons. All are normal outcomes, not errors.
const (
	KnownTotalReached TerminationReason = "known_total_reached"
	Stagnated         TerminationReason = "stagnated"
	StepCapReached    TerminationReason = "step_cap_reached"
)

// Result is the outcome of harvesting one resolved entity. Items are in
// discovery order and contain no duplicate dedup keys.
type Result struct {
	Entity ResolvedEntity
	Items  []Item
	Reason TerminationReason
}

// FailureReason tags an unresolved query in the run outcome.
type FailureReason string

// Failure reasons recorded per query.
const (
	FailureNotFound FailureReason = "not_found"
	FailureWatchdog FailureReason = "watchdog_exceeded"
)

// FailedQuery records one query that produced no harvest.
type FailedQuery struct {
	Query  Query
	Reason FailureReason
}

// RunOutcome partitions all scheduled queries into harvests and failures.
// len(Resolved)+len(Unresolved) always equals the number of distinct
// queries after key-based deduplication.
type RunOutcome struct {
	RunID      string
	Resolved   []Result
	Unresolved []FailedQuery
	Started    time.Time
	Finished   time.Time
}

// Clock abstracts wall time for testability.
type Clock interface {
	Now() time.Time
}
