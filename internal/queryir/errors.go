package queryir

import (
	"errors"
	"fmt"
)

// UsageError reports API misuse: a constructor called without a required
// argument, an index outside a collection, or a traversal position read
// outside its window.
type UsageError struct {
	Op      string
	Message string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage error: %s: %s", e.Op, e.Message)
}

// IsUsageError reports whether err wraps a *UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

func required(op, arg string) error {
	return &UsageError{Op: op, Message: arg + " is required"}
}
