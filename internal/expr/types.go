package expr

// Type is a resolved type descriptor. chainql performs no type inference;
// whoever builds the operation chain assigns types up front.
//
// A Type with a non-nil Elem is an enumerable collection of Elem.
type Type struct {
	Name string
	Elem *Type
}

// Named returns a scalar or record type.
func Named(name string) *Type {
	return &Type{Name: name}
}

// SequenceOf returns the collection type whose elements are elem.
func SequenceOf(elem *Type) *Type {
	return &Type{Name: "[]" + elem.String(), Elem: elem}
}

// IsSequence reports whether t is an enumerable collection type.
func (t *Type) IsSequence() bool {
	return t != nil && t.Elem != nil
}

// String returns the type name, or "?" for a nil type.
func (t *Type) String() string {
	if t == nil {
		return "?"
	}
	return t.Name
}

// Common scalar types.
var (
	Int    = Named("int")
	String = Named("string")
	Bool   = Named("bool")
)
