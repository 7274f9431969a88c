package tensor

import (
	"fmt"
	"math"
)

// NumericInstabilityError reports an arithmetic operation that would have
// produced NaN or an infinity, such as a division by zero.
type NumericInstabilityError struct {
	Op    string  // operation that failed
	Index int     // flat index of the offending element, -1 for scalars
	Value float64 // offending value
}

func (e *NumericInstabilityError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("numeric instability in %s: value %g", e.Op, e.Value)
	}
	return fmt.Sprintf("numeric instability in %s: value %g at index %d", e.Op, e.Value, e.Index)
}

// CheckFinite returns a *NumericInstabilityError when v is NaN or infinite.
func CheckFinite(op string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &NumericInstabilityError{Op: op, Index: -1, Value: v}
	}
	return nil
}
