package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/chainql/internal/ir"
)

// marshalParams converts SQL parameters to canonical JSON TEXT for storage.
func marshalParams(params []any) (string, error) {
	arr := make(ir.IRArray, len(params))
	for i, p := range params {
		v, err := ir.FromGo(p)
		if err != nil {
			return "", fmt.Errorf("marshal params: [%d]: %w", i, err)
		}
		arr[i] = v
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// unmarshalParams parses stored parameters back into database/sql values.
// Numbers are decoded through json.Number so int64 values above 2^53 keep
// their precision.
func unmarshalParams(data string) ([]any, error) {
	if data == "" || data == "[]" {
		return []any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	params := make([]any, len(raw))
	for i, r := range raw {
		v, err := ir.FromGo(r)
		if err != nil {
			return nil, fmt.Errorf("unmarshal params: [%d]: %w", i, err)
		}
		if params[i], err = ir.ToParam(v); err != nil {
			return nil, fmt.Errorf("unmarshal params: [%d]: %w", i, err)
		}
	}
	return params, nil
}
