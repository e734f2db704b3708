package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/chainql/internal/ir"
)

// irValue converts a concrete CUE value into an IR value.
//
// Floats are rejected: IR values have no float variant.
func irValue(v cue.Value, field string) (ir.IRValue, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for i := 0; iter.Next(); i++ {
			elem, err := irValue(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			label := iter.Label()
			elem, err := irValue(iter.Value(), field+"."+label)
			if err != nil {
				return nil, err
			}
			obj[label] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "floating point values are not supported; use integers",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value of kind %s is not supported", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// stringField reads the optional string field name of v.
func stringField(v cue.Value, name, field string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, &CompileError{
			Field:   field + "." + name,
			Message: "must be a string",
			Pos:     f.Pos(),
		}
	}
	return s, true, nil
}

// requiredString reads the string field name of v, failing when absent.
func requiredString(v cue.Value, name, field string) (string, error) {
	s, ok, err := stringField(v, name, field)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	return s, nil
}
