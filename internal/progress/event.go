// Package progress carries per-query run events from the scheduler to
// log, metrics, and status-snapshot sinks.
package progress

import (
	"time"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageTaskStart    Stage = "TASK_START"
	StageTaskResolved Stage = "TASK_RESOLVED"
	StageTaskFailed   Stage = "TASK_FAILED"
	StageRunDone      Stage = "RUN_DONE"
)

// Event captures one scheduler milestone.
type Event struct {
	// RunID identifies the run, shared by every event it emits.
	RunID string
	// TS is the emitter's UTC timestamp.
	TS time.Time
	// Stage is the milestone kind.
	Stage Stage
	// Query is set on task-scoped events.
	Query harvest.Query
	// Strategy is set on TASK_RESOLVED.
	Strategy harvest.ResolveStrategy
	// Reason carries the harvest termination reason (TASK_RESOLVED) or
	// the failure reason (TASK_FAILED).
	Reason string
	// Items is the harvested unique item count on TASK_RESOLVED.
	Items int
	// Dur is the task wall time on terminal task events.
	Dur time.Duration
}

// Sink consumes events. Implementations are called from the hub's single
// dispatch goroutine and must not block for long.
type Sink interface {
	Record(evt Event)
}
