package mqtt

import (
	"sync"

	"github.com/kilianp07/railflow/core/model"
	coremqtt "github.com/kilianp07/railflow/core/mqtt"
)

// ResultPublisher mirrors the core mqtt.ResultPublisher interface.
type ResultPublisher = coremqtt.ResultPublisher

// MockPublisher records published envelopes. It is used in tests.
type MockPublisher struct {
	mu        sync.Mutex
	Envelopes []model.ResultEnvelope
	Err       error
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// PublishResult records env or returns the configured error.
func (m *MockPublisher) PublishResult(env model.ResultEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Envelopes = append(m.Envelopes, env)
	return nil
}

// Published returns a copy of the recorded envelopes.
func (m *MockPublisher) Published() []model.ResultEnvelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ResultEnvelope(nil), m.Envelopes...)
}
