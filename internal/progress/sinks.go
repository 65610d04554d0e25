package progress

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// LogSink writes events through a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(evt Event) {
	fields := []zap.Field{
		zap.String("run_id", evt.RunID),
		zap.String("stage", string(evt.Stage)),
	}
	switch evt.Stage {
	case StageTaskResolved:
		s.logger.Info("query harvested",
			append(fields,
				zap.String("name", evt.Query.Name),
				zap.Int("year", evt.Query.Year),
				zap.String("strategy", string(evt.Strategy)),
				zap.String("reason", evt.Reason),
				zap.Int("items", evt.Items),
				zap.Duration("dur", evt.Dur),
			)...)
	case StageTaskFailed:
		s.logger.Warn("query failed",
			append(fields,
				zap.String("name", evt.Query.Name),
				zap.Int("year", evt.Query.Year),
				zap.String("reason", evt.Reason),
				zap.Duration("dur", evt.Dur),
			)...)
	case StageTaskStart:
		s.logger.Debug("query started",
			append(fields,
				zap.String("name", evt.Query.Name),
				zap.Int("year", evt.Query.Year),
			)...)
	default:
		s.logger.Info("run milestone", fields...)
	}
}

// PrometheusSink exports run progress as Prometheus collectors.
type PrometheusSink struct {
	tasksCompleted *prometheus.CounterVec
	itemsHarvested prometheus.Counter
	terminations   *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against the given registry
// (the default registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_tasks_completed_total",
			Help: "Completed resolve+harvest tasks partitioned by outcome.",
		}, []string{"outcome"}),
		itemsHarvested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_items_total",
			Help: "Unique items harvested across all tasks.",
		}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_terminations_total",
			Help: "Harvest loop terminations partitioned by reason.",
		}, []string{"reason"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_task_duration_seconds",
			Help:    "Wall time per task partitioned by outcome.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{
		s.tasksCompleted, s.itemsHarvested, s.terminations, s.taskDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Record implements Sink.
func (s *PrometheusSink) Record(evt Event) {
	switch evt.Stage {
	case StageTaskResolved:
		s.tasksCompleted.WithLabelValues("resolved").Inc()
		s.itemsHarvested.Add(float64(evt.Items))
		s.terminations.WithLabelValues(evt.Reason).Inc()
		s.taskDuration.WithLabelValues("resolved").Observe(evt.Dur.Seconds())
	case StageTaskFailed:
		s.tasksCompleted.WithLabelValues(evt.Reason).Inc()
		s.taskDuration.WithLabelValues(evt.Reason).Observe(evt.Dur.Seconds())
	}
}

// Snapshot keeps a live aggregate of the run for the status endpoint.
type Snapshot struct {
	mu sync.Mutex

	runID     string
	started   int
	resolved  int
	failed    int
	items     int
	byReason  map[string]int
	byFailure map[string]int
}

// NewSnapshot constructs an empty Snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		byReason:  make(map[string]int),
		byFailure: make(map[string]int),
	}
}

// Record implements Sink.
func (s *Snapshot) Record(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = evt.RunID
	switch evt.Stage {
	case StageTaskStart:
		s.started++
	case StageTaskResolved:
		s.resolved++
		s.items += evt.Items
		s.byReason[evt.Reason]++
	case StageTaskFailed:
		s.failed++
		s.byFailure[evt.Reason]++
	}
}

// State is the JSON shape served by /statusz.
type State struct {
	RunID        string         `json:"run_id"`
	TasksStarted int            `json:"tasks_started"`
	Resolved     int            `json:"resolved"`
	Failed       int            `json:"failed"`
	Items        int            `json:"items"`
	Terminations map[string]int `json:"terminations"`
	Failures     map[string]int `json:"failures"`
}

// Current returns a copy of the aggregate state.
func (s *Snapshot) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		RunID:        s.runID,
		TasksStarted: s.started,
		Resolved:     s.resolved,
		Failed:       s.failed,
		Items:        s.items,
		Terminations: make(map[string]int, len(s.byReason)),
		Failures:     make(map[string]int, len(s.byFailure)),
	}
	for k, v := range s.byReason {
		st.Terminations[k] = v
	}
	for k, v := range s.byFailure {
		st.Failures[k] = v
	}
	return st
}
