package store

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces plan and run IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Clock stamps writes with strictly increasing revisions.
type Clock interface {
	Next() int64
}

// LogicalClock is a monotonic counter. Safe for concurrent use.
type LogicalClock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock whose first Next returns start+1.
func NewClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next revision.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last revision handed out.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}
