package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsIDsInOrder(t *testing.T) {
	gen := NewFixedIDGenerator("a", "b")

	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.PanicsWithValue(t, "FixedIDGenerator: all IDs exhausted", func() { gen.Generate() })
}

func TestSequentialIDs(t *testing.T) {
	gen := SequentialIDs("plan", 3)

	assert.Equal(t, "plan-1", gen.Generate())
	assert.Equal(t, "plan-2", gen.Generate())
	assert.Equal(t, "plan-3", gen.Generate())
}
