package progress

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultBufferSize = 1024

// Hub fans events out to registered sinks from a single background
// goroutine. Emit never blocks; when the buffer is full the event is
// dropped and counted. A nil Hub is a no-op, so callers never need to
// guard their Emit sites.
type Hub struct {
	events  chan Event
	sinks   []Sink
	logger  *zap.Logger
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewHub starts a Hub over the given sinks.
func NewHub(logger *zap.Logger, sinks ...Sink) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		events: make(chan Event, defaultBufferSize),
		sinks:  append([]Sink(nil), sinks...),
		logger: logger,
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

// Emit enqueues an event for dispatch without blocking the caller.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
	}
}

// Close drains buffered events, then stops the dispatch goroutine. Safe to
// call more than once.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.closeOnce.Do(func() {
		close(h.events)
		<-h.done
		if n := h.dropped.Load(); n > 0 {
			h.logger.Warn("progress events dropped due to backpressure", zap.Int64("dropped", n))
		}
	})
}

func (h *Hub) run() {
	defer close(h.done)
	for evt := range h.events {
		for _, s := range h.sinks {
			s.Record(evt)
		}
	}
}
