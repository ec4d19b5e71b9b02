package mocks

import (
	"fmt"

	"github.com/mcoot/boulder/internal/dependencies/ids"
)

// MockIDs is a mock implementation of ids.Generator for testing
type MockIDs struct {
	// Results is a queue of IDs to hand out before falling back to a counter
	Results []string
	index   int
	counter int
}

// Ensure MockIDs implements Generator
var _ ids.Generator = (*MockIDs)(nil)

// NewMockIDs creates a new MockIDs
func NewMockIDs() *MockIDs {
	return &MockIDs{}
}

// NewID returns the next queued ID, or "player-N" once the queue is drained
func (g *MockIDs) NewID() string {
	if g.index < len(g.Results) {
		id := g.Results[g.index]
		g.index++
		return id
	}
	g.counter++
	return fmt.Sprintf("player-%d", g.counter)
}

// Queue adds IDs to the result queue
func (g *MockIDs) Queue(values ...string) {
	g.Results = append(g.Results, values...)
}
