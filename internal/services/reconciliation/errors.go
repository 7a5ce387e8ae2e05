package reconciliation

import (
	"errors"
	"fmt"
)

// ErrNotFound means the payment or invoice id does not exist. Fatal to
// the call.
var ErrNotFound = errors.New("not found")

// ErrConflict means a concurrent update won the version check. The caller
// may retry.
var ErrConflict = errors.New("conflict: record changed concurrently")

// InvalidAllocationError rejects an entire Approve call: over-allocation,
// non-positive amount, cross-tenant invoice, or an illegal status
// transition. Nothing is committed.
type InvalidAllocationError struct {
	Reason string
}

func (e *InvalidAllocationError) Error() string {
	return "invalid allocation: " + e.Reason
}

func invalidAllocation(format string, args ...any) error {
	return &InvalidAllocationError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidAllocation reports whether err is an InvalidAllocationError.
func IsInvalidAllocation(err error) bool {
	var e *InvalidAllocationError
	return errors.As(err, &e)
}
