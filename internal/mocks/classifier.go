package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/mailtriage/internal/domain"
)

// MockClassifier implements classify.Classifier for testing
type MockClassifier struct {
	// Custom behavior function
	ClassifyFn func(ctx context.Context, email domain.Email) (domain.Classification, error)

	// Default response values
	Verdict domain.Classification
	Err     error

	// Call tracking for verification
	ClassifyCalls struct {
		mu    sync.Mutex
		Count int
		Keys  []string
	}
}

// Classify implements the classify.Classifier interface
func (m *MockClassifier) Classify(ctx context.Context, email domain.Email) (domain.Classification, error) {
	m.ClassifyCalls.mu.Lock()
	m.ClassifyCalls.Count++
	m.ClassifyCalls.Keys = append(m.ClassifyCalls.Keys, email.Key())
	m.ClassifyCalls.mu.Unlock()

	if m.ClassifyFn != nil {
		return m.ClassifyFn(ctx, email)
	}
	return m.Verdict, m.Err
}

// CallCount returns how many times Classify was called.
func (m *MockClassifier) CallCount() int {
	m.ClassifyCalls.mu.Lock()
	defer m.ClassifyCalls.mu.Unlock()
	return m.ClassifyCalls.Count
}

// CalledKeys returns the keys of classified emails in call order.
func (m *MockClassifier) CalledKeys() []string {
	m.ClassifyCalls.mu.Lock()
	defer m.ClassifyCalls.mu.Unlock()
	return append([]string(nil), m.ClassifyCalls.Keys...)
}
