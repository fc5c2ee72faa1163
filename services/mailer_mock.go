package services

import (
	"context"
	"sync"
)

// MockMailer records sent email instead of delivering it
type MockMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
	// Delivered receives every successfully recorded email when non-nil
	Delivered chan Email
}

// NewMockMailer creates a mock mailer
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

// FailWith makes every subsequent Send return err
func (m *MockMailer) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockMailer) Send(_ context.Context, email Email) error {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, email)
	m.mu.Unlock()

	if m.Delivered != nil {
		m.Delivered <- email
	}
	return nil
}

// Sent returns a copy of the recorded email
func (m *MockMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}
