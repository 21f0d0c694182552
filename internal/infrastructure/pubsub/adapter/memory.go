package adapter

import (
	"context"
	"errors"
	"sync"

	"go-messenger/internal/infrastructure/pubsub/port"
)

// ErrInjected is returned by MemoryPublisher for channels marked as failing.
var ErrInjected = errors.New("pubsub: injected publish failure")

// MemoryPublisher records every accepted envelope. Publishing to a channel registered with
// Fail returns ErrInjected and records nothing. It backs tests and local tooling.
type MemoryPublisher struct {
	mu        sync.Mutex
	envelopes []port.Envelope
	failing   map[string]struct{}
	attempts  int
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{failing: make(map[string]struct{})}
}

var _ port.Publisher = (*MemoryPublisher)(nil)

// Fail makes future publishes on channel fail.
func (m *MemoryPublisher) Fail(channel string) {
	m.mu.Lock()
	m.failing[channel] = struct{}{}
	m.mu.Unlock()
}

func (m *MemoryPublisher) Publish(_ context.Context, channel, event string, payload any) error {
	env, err := port.NewEnvelope(channel, event, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if _, ok := m.failing[channel]; ok {
		return ErrInjected
	}
	m.envelopes = append(m.envelopes, env)
	return nil
}

// Envelopes returns a copy of the recorded envelopes in publish order.
func (m *MemoryPublisher) Envelopes() []port.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]port.Envelope, len(m.envelopes))
	copy(out, m.envelopes)
	return out
}

// Attempts counts publish calls including failed ones.
func (m *MemoryPublisher) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Reset clears recorded envelopes and attempts.
func (m *MemoryPublisher) Reset() {
	m.mu.Lock()
	m.envelopes = nil
	m.attempts = 0
	m.mu.Unlock()
}

func (m *MemoryPublisher) Close() error { return nil }
