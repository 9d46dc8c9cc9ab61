// Package events publishes domain events after a unit of work commits.
// Events are notifications: a failed publish never undoes the write that
// produced it.
package events

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"trustdir/pkg/requestcontext"
)

// Type names a domain event.
type Type string

const (
	TypeBusinessPromoted    Type = "business.promoted"
	TypeApplicationRejected Type = "application.rejected"
	TypeReportEscalated     Type = "report.escalated"
)

// Event is a transport-agnostic domain event.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	RequestID   string    `json:"request_id,omitempty"`
	Payload     any       `json:"payload,omitempty"`
}

// New builds an event stamped with the request time and request id in ctx.
func New(ctx context.Context, t Type, aggregateID string, payload any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		AggregateID: aggregateID,
		OccurredAt:  requestcontext.Now(ctx),
		RequestID:   requestcontext.RequestID(ctx),
		Payload:     payload,
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Memory keeps published events, for tests and dev mode.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// OfType returns published events of type t.
func (m *Memory) OfType(t Type) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Log writes events to a logger. Used when no broker is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, e Event) error {
	l.logger.InfoContext(ctx, "domain event",
		"event_id", e.ID,
		"event_type", string(e.Type),
		"aggregate_id", e.AggregateID,
		"request_id", e.RequestID,
	)
	return nil
}
