package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns predetermined IDs in order, so stored plans and
// runs compare byte-for-byte across test runs.
//
// Safe for concurrent use.
type FixedIDGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDGenerator creates a generator that returns ids in order.
//
//	gen := NewFixedIDGenerator("plan-1", "run-1")
//	gen.Generate() // "plan-1"
//	gen.Generate() // "run-1"
//	gen.Generate() // panic: all IDs exhausted
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{ids: ids}
}

// SequentialIDs returns a generator of n IDs "<prefix>-1" .. "<prefix>-n".
func SequentialIDs(prefix string, n int) *FixedIDGenerator {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return NewFixedIDGenerator(ids...)
}

// Generate returns the next predetermined ID.
//
// Panics when all IDs have been consumed: the test created more records
// than it declared.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedIDGenerator: all IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
