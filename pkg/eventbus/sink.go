// Package eventbus delivers evaluation and audit events to an external
// observer. Delivery is one-way and best-effort: a sink never blocks an
// evaluation and never alters its result.
package eventbus

import (
	"context"
	"log/slog"

	"github.com/rulekit/rulekit/pkg/events"
)

// Event is anything publishable to a sink.
type Event interface {
	GetType() events.EventType
}

// Sink receives engine events. Implementations must tolerate concurrent
// publishes.
type Sink interface {
	Publish(ctx context.Context, key string, event Event) error
	Close() error
}

// SlogSink logs every event; the zero-dependency default for hosts that
// only want visibility.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink writing to the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogSink{logger: logger}
}

func (s *SlogSink) Publish(_ context.Context, key string, event Event) error {
	s.logger.Info("Engine event", "key", key, "event_type", string(event.GetType()))

	return nil
}

func (s *SlogSink) Close() error {
	return nil
}
