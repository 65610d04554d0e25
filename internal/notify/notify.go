// Package notify publishes a run-completion summary so downstream
// consumers learn when fresh review files are available.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

// Publisher delivers a JSON payload to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Summary is the published run-completion payload.
type Summary struct {
	RunID      string         `json:"run_id"`
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	Items      int            `json:"items"`
	ByReason   map[string]int `json:"by_reason"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
}

// Notifier publishes run outcomes to a fixed topic.
type Notifier struct {
	pub    Publisher
	topic  string
	logger *zap.Logger
}

// New builds a Notifier. A nil publisher yields a no-op notifier.
func New(pub Publisher, topic string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, topic: topic, logger: logger}
}

// RunComplete publishes the outcome summary. Failures are reported but
// never abort the run; the harvested data is already on disk.
func (n *Notifier) RunComplete(ctx context.Context, outcome harvest.RunOutcome) error {
	if n == nil || n.pub == nil {
		return nil
	}
	summary := Summarize(outcome)
	id, err := n.pub.Publish(ctx, n.topic, summary)
	if err != nil {
		n.logger.Error("publish run summary", zap.Error(err))
		return fmt.Errorf("publish run summary: %w", err)
	}
	n.logger.Info("run summary published",
		zap.String("run_id", summary.RunID),
		zap.String("message_id", id))
	return nil
}

// Summarize flattens an outcome into the published payload.
func Summarize(outcome harvest.RunOutcome) Summary {
	byReason := make(map[string]int)
	items := 0
	for _, res := range outcome.Resolved {
		byReason[string(res.Reason)]++
		items += len(res.Items)
	}
	for _, fq := range outcome.Unresolved {
		byReason[string(fq.Reason)]++
	}
	return Summary{
		RunID:      outcome.RunID,
		Resolved:   len(outcome.Resolved),
		Unresolved: len(outcome.Unresolved),
		Items:      items,
		ByReason:   byReason,
		StartedAt:  outcome.Started.Format(time.RFC3339),
		FinishedAt: outcome.Finished.Format(time.RFC3339),
	}
}
