package mock

import (
	"context"
	"sync"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, Reply is returned.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// Reply is the canned answer used when GenerateFunc is nil.
	Reply string

	mu        sync.Mutex
	callCount int
	prompts   []string
}

// NewMockGenerator creates a generator that always answers "mock answer".
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Reply: "mock answer"}
}

// Generate records prompt and returns the configured reply.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return m.Reply, nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the most recent prompt, or "" if none.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Reset clears recorded calls and the custom function.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	m.callCount = 0
	m.prompts = nil
	m.mu.Unlock()
	m.GenerateFunc = nil
}
