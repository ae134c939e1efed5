// README: Error kinds shared by all modules and mapped to HTTP status codes at the edge.
package types

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrState      = errors.New("invalid state transition")
	ErrForbidden  = errors.New("not allowed")
	ErrConflict   = errors.New("concurrent update, retry")
	ErrNotFound   = errors.New("not found")
)

// DomainError carries a caller-facing message and unwraps to one of the kinds above.
type DomainError struct {
	Kind error
	Msg  string
}

func (e *DomainError) Error() string {
	return e.Msg
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

// Errorf builds a DomainError of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &DomainError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Message returns the caller-facing text of err, falling back to err.Error().
func Message(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Msg
	}
	return err.Error()
}
