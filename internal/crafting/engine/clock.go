package engine

import (
	"context"
	"sync"
	"time"
)

// Clock is an abstraction for time operations, allowing backoff and
// inter-region delays to be instant in tests.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// NewRealClock creates a RealClock.
func NewRealClock() Clock {
	return RealClock{}
}

// Now returns the current system time in UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Sleep blocks for d unless ctx is cancelled first.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MockClock implements Clock with a controllable time. Sleep advances the
// clock without blocking and records the requested durations.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	sleeps  []time.Duration
}

// NewMockClock creates a MockClock starting at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Sleep advances the mock clock.
func (m *MockClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
	m.sleeps = append(m.sleeps, d)
	return nil
}

// Advance moves the mock clock forward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// Sleeps returns every duration passed to Sleep so far.
func (m *MockClock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.sleeps...)
}
