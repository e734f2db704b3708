package testutil

import "github.com/roach88/chainql/internal/expr"

// Element types of the fixture collections.
var (
	CookType    = expr.Named("Cook")
	KitchenType = expr.Named("Kitchen")
	DishType    = expr.Named("Dish")
)

// Cooks is a named collection of Cook rows.
func Cooks() *expr.ConstantSource {
	return mustSource("Cooks", CookType)
}

// Kitchens is a named collection of Kitchen rows.
func Kitchens() *expr.ConstantSource {
	return mustSource("Kitchens", KitchenType)
}

// Dishes is a named collection of Dish rows.
func Dishes() *expr.ConstantSource {
	return mustSource("Dishes", DishType)
}

func mustSource(name string, elem *expr.Type) *expr.ConstantSource {
	src, err := expr.NewConstantSource(name, expr.SequenceOf(elem), nil)
	if err != nil {
		panic(err)
	}
	return src
}

// Field returns p.name wrapped in a lambda over p.
func Field(p *expr.Parameter, name string) *expr.Lambda {
	return expr.NewLambda(p, expr.Field(p, name))
}

// Identity returns p => p.
func Identity(p *expr.Parameter) *expr.Lambda {
	return expr.NewLambda(p, p)
}
