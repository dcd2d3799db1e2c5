package simple

import (
	"context"
	"sync"
)

// Generator hands out 1, 2, 3, ... and never reuses a value.
type Generator struct {
	mu      sync.Mutex
	counter int
}

func New() *Generator {
	//nolint:exhaustruct
	return &Generator{}
}

func (g *Generator) GetID(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter++

	return g.counter, nil
}

// Last returns the most recently issued id, 0 if none.
func (g *Generator) Last() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.counter
}
