package lookup

import (
	"context"
	"sync"
	"time"
)

// Mock returns canned answers for testing.
type Mock struct {
	Delay  time.Duration
	Answer string
	Err    error

	mu        sync.Mutex
	questions []string
}

func (m *Mock) Invoke(ctx context.Context, question string) (string, error) {
	m.mu.Lock()
	m.questions = append(m.questions, question)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Answer == "" {
		return "We are open every day from noon to ten.", nil
	}
	return m.Answer, nil
}

// Questions returns every question received so far.
func (m *Mock) Questions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.questions...)
}
