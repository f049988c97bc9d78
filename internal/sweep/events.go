package sweep

import (
	"context"
	"log/slog"
	"time"

	"TreasurySweep/pkg/logger"
)

// EventType names the scheduler lifecycle events observers can subscribe to.
type EventType string

const (
	EventIterationStarted   EventType = "iteration_started"
	EventIterationCompleted EventType = "iteration_completed"
	EventIterationSkipped   EventType = "iteration_skipped"
	EventIterationFailed    EventType = "iteration_failed"
	EventSweepCompleted     EventType = "sweep_completed"
	EventRunSummary         EventType = "run_summary"
)

// Event is the wire form of one scheduler occurrence.
type Event struct {
	Type       EventType `json:"type"`
	Iteration  int       `json:"iteration"`
	OccurredAt time.Time `json:"occurred_at"`

	// Iteration aggregates, set on completed/summary events.
	Attempted int    `json:"attempted,omitempty"`
	Succeeded int    `json:"succeeded,omitempty"`
	Skipped   int    `json:"skipped,omitempty"`
	Failed    int    `json:"failed,omitempty"`
	Swept     string `json:"swept,omitempty"`

	// Per-sweep fields, set on sweep_completed events.
	RealmID string `json:"realm_id,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Amount  string `json:"amount,omitempty"`
	TxHash  string `json:"tx_hash,omitempty"`

	Error string `json:"error,omitempty"`
}

// Publisher delivers scheduler events to an external observer.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the structured log. It is the default
// publisher when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher backed by the named component logger.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	if log == nil {
		log = logger.Named("sweep.events")
	}
	return &LogPublisher{logger: log}
}

// Publish logs the event at a level matching its type.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	attrs := []any{
		slog.String("type", string(event.Type)),
		slog.Int("iteration", event.Iteration),
	}
	switch event.Type {
	case EventIterationCompleted, EventRunSummary:
		attrs = append(attrs,
			slog.Int("attempted", event.Attempted),
			slog.Int("succeeded", event.Succeeded),
			slog.Int("skipped", event.Skipped),
			slog.Int("failed", event.Failed),
			slog.String("swept", event.Swept),
		)
		p.logger.Info("sweep event", attrs...)
	case EventIterationSkipped:
		p.logger.Warn("sweep event", attrs...)
	case EventIterationFailed:
		attrs = append(attrs, slog.String("error", event.Error))
		p.logger.Error("sweep event", attrs...)
	case EventSweepCompleted:
		attrs = append(attrs,
			slog.String("wallet", event.Wallet),
			slog.String("kind", event.Kind),
			slog.String("tx_hash", event.TxHash),
		)
		p.logger.Info("sweep event", attrs...)
	default:
		p.logger.Info("sweep event", attrs...)
	}
	return nil
}

// Close is a no-op for the log publisher.
func (p *LogPublisher) Close() error { return nil }
