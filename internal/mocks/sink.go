package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/mailtriage/internal/events"
)

// MockSink implements events.EventHandler for testing
type MockSink struct {
	// SinkName is returned by Name; defaults to "mock"
	SinkName string

	// Custom behavior function
	HandleEventFn func(ctx context.Context, event *events.TriageEvent) error

	// Default response value
	Err error

	// Call tracking for verification
	HandleEventCalls struct {
		mu     sync.Mutex
		Count  int
		Events []*events.TriageEvent
	}
}

// Name implements the events.EventHandler interface
func (m *MockSink) Name() string {
	if m.SinkName == "" {
		return "mock"
	}
	return m.SinkName
}

// HandleEvent implements the events.EventHandler interface
func (m *MockSink) HandleEvent(ctx context.Context, event *events.TriageEvent) error {
	m.HandleEventCalls.mu.Lock()
	m.HandleEventCalls.Count++
	m.HandleEventCalls.Events = append(m.HandleEventCalls.Events, event)
	m.HandleEventCalls.mu.Unlock()

	if m.HandleEventFn != nil {
		return m.HandleEventFn(ctx, event)
	}
	return m.Err
}

// Received returns the events handled so far.
func (m *MockSink) Received() []*events.TriageEvent {
	m.HandleEventCalls.mu.Lock()
	defer m.HandleEventCalls.mu.Unlock()
	return append([]*events.TriageEvent(nil), m.HandleEventCalls.Events...)
}

// Keys returns the item keys of handled events in order.
func (m *MockSink) Keys() []string {
	m.HandleEventCalls.mu.Lock()
	defer m.HandleEventCalls.mu.Unlock()
	keys := make([]string, len(m.HandleEventCalls.Events))
	for i, e := range m.HandleEventCalls.Events {
		keys[i] = e.Key
	}
	return keys
}
