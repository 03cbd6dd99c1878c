package artifact

import (
	"errors"
	"strings"
)

// Error kinds surfaced by the service and repository. Callers classify with
// errors.Is, or errors.As for *ValidationError.
var (
	// ErrNotFound marks a referenced record or payload that does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrTransferFailed marks a remote store that was unreachable or
	// rejected the operation.
	ErrTransferFailed = errors.New("remote transfer failed")

	// ErrStorage marks a metadata store read or write failure.
	ErrStorage = errors.New("metadata storage failure")
)

// ValidationError aggregates every problem found in a submitted payload, so
// the operator sees the full list at once rather than one message per retry.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid artifact: " + strings.Join(e.Problems, "; ")
}

// AsValidation unwraps err into a *ValidationError when it carries one.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
