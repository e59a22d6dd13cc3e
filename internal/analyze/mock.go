package analyze

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a canned Analyzer for tests and for running the relay without a
// configured LLM backend.
type Mock struct {
	mu    sync.Mutex
	calls int

	// Err, when set, is returned by every Analyze call.
	Err error

	// Text, when set, overrides the canned response.
	Text string
}

// Analyze records the call and returns the canned response.
func (m *Mock) Analyze(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.Text != "" {
		return m.Text, nil
	}
	return fmt.Sprintf("Received %d bytes of %s.", len(data), mimeType), nil
}

// Calls returns how many times Analyze was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
