package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/mailtriage/internal/domain"
)

// MockSource implements service.Source for testing
type MockSource struct {
	// Custom behavior function
	FetchFn func(ctx context.Context, lookback time.Duration, limit int) ([]domain.Email, error)

	// Default response values
	Emails []domain.Email
	Err    error

	// Call tracking for verification
	FetchCalls struct {
		mu        sync.Mutex
		Count     int
		Lookbacks []time.Duration
		Limits    []int
	}
}

// Fetch implements the service.Source interface. Without FetchFn it returns
// at most limit of Emails.
func (m *MockSource) Fetch(ctx context.Context, lookback time.Duration, limit int) ([]domain.Email, error) {
	m.FetchCalls.mu.Lock()
	m.FetchCalls.Count++
	m.FetchCalls.Lookbacks = append(m.FetchCalls.Lookbacks, lookback)
	m.FetchCalls.Limits = append(m.FetchCalls.Limits, limit)
	m.FetchCalls.mu.Unlock()

	if m.FetchFn != nil {
		return m.FetchFn(ctx, lookback, limit)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	emails := m.Emails
	if limit > 0 && len(emails) > limit {
		emails = emails[:limit]
	}
	return append([]domain.Email(nil), emails...), nil
}
