package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/chainql/internal/expr"
)

func TestFixtureSources(t *testing.T) {
	assert.Same(t, CookType, Cooks().ElementType())
	assert.Same(t, KitchenType, Kitchens().ElementType())
	assert.Equal(t, "[]Dish", Dishes().Type.String())
}

func TestFixtureLambdas(t *testing.T) {
	s := expr.NewParameter("s", CookType)
	assert.Equal(t, "s => s.Age", expr.Format(Field(s, "Age")))
	assert.Equal(t, "s => s", expr.Format(Identity(s)))
}

func TestMustSourcePanicsOnScalarType(t *testing.T) {
	assert.Panics(t, func() {
		mustSource("x", nil)
	})
}
