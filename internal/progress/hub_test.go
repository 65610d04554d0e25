package progress

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

func TestHubDeliversInOrderAndDrains(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot()
	hub := NewHub(nil, snap)

	hub.Emit(Event{RunID: "r1", TS: time.Now(), Stage: StageTaskStart, Query: harvest.Query{Name: "Heat", Year: 1995}})
	hub.Emit(Event{RunID: "r1", TS: time.Now(), Stage: StageTaskResolved, Items: 12, Reason: string(harvest.Stagnated)})
	hub.Emit(Event{RunID: "r1", TS: time.Now(), Stage: StageTaskFailed, Reason: string(harvest.FailureNotFound)})
	hub.Close()

	st := snap.Current()
	require.Equal(t, "r1", st.RunID)
	require.Equal(t, 1, st.TasksStarted)
	require.Equal(t, 1, st.Resolved)
	require.Equal(t, 1, st.Failed)
	require.Equal(t, 12, st.Items)
	require.Equal(t, 1, st.Terminations[string(harvest.Stagnated)])
	require.Equal(t, 1, st.Failures[string(harvest.FailureNotFound)])
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(Event{Stage: StageRunStart})
	hub.Close()
}

func TestHubCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	hub.Close()
	hub.Close()
}

func TestPrometheusSinkRegisters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	sink.Record(Event{Stage: StageTaskResolved, Items: 3, Reason: string(harvest.KnownTotalReached), Dur: time.Second})
	sink.Record(Event{Stage: StageTaskFailed, Reason: string(harvest.FailureWatchdog), Dur: time.Second})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["harvester_tasks_completed_total"])
	require.True(t, names["harvester_items_total"])
	require.True(t, names["harvester_terminations_total"])

	// Registering the same collectors twice must fail loudly.
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
