package vault

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
)

// MemorySink keeps events in memory. It is safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []types.Event
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(events ...types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of every recorded event.
func (s *MemorySink) Events() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfKind returns the recorded events of one kind.
func (s *MemorySink) OfKind(kind types.EventKind) []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// MultiSink fans events out to several sinks and returns the first error.
type MultiSink []EventSink

func (m MultiSink) Record(events ...types.Event) error {
	var first error
	for _, s := range m {
		if err := s.Record(events...); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LogSink writes every event to a zerolog logger at info level.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a sink logging under the "vault_events" component.
func NewLogSink() *LogSink {
	return &LogSink{logger: logger.GetForComponent("vault_events")}
}

func (s *LogSink) Record(events ...types.Event) error {
	for _, e := range events {
		entry := s.logger.Info().
			Str("kind", string(e.Kind)).
			Str("opID", e.OpID.String()).
			Str("account", string(e.Account))
		if !e.To.IsZero() {
			entry = entry.Str("to", string(e.To))
		}
		if e.RequestID != 0 {
			entry = entry.Uint64("requestID", e.RequestID)
		}
		entry.
			Str("assets", e.Assets.String()).
			Str("shares", e.Shares.String()).
			Msg("Vault event")
	}
	return nil
}
