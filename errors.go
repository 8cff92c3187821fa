package algfetch

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/algfetch/property"
)

var (
	ErrNotFound            = errors.New("algfetch: algorithm not found")
	ErrInvalidState        = errors.New("algfetch: invalid context state")
	ErrBackendFailure      = errors.New("algfetch: backend failure")
	ErrUnsupported         = errors.New("algfetch: unsupported by implementation")
	ErrInvalidDispatch     = errors.New("algfetch: invalid dispatch table")
	ErrDuplicateProvider   = errors.New("algfetch: duplicate provider")
	ErrProviderUnavailable = errors.New("algfetch: provider unavailable")
	ErrKeyMismatch         = errors.New("algfetch: key belongs to a different provider")
	ErrClosed              = errors.New("algfetch: library closed")

	// ErrMalformedQuery is returned for property strings that fail to parse.
	ErrMalformedQuery = property.ErrMalformed
)

// FetchError describes a failed fetch.
type FetchError struct {
	Op         Operation
	Name       string // empty for fetch by number
	ID         int
	Properties string
	Err        error
}

func (e *FetchError) Error() string {
	sel := e.Name
	if sel == "" {
		sel = fmt.Sprintf("#%d", e.ID)
	}
	if e.Properties != "" {
		return fmt.Sprintf("fetch %s %q (%s): %v", e.Op, sel, e.Properties, e.Err)
	}
	return fmt.Sprintf("fetch %s %q: %v", e.Op, sel, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StateError is returned when a context call is made in the wrong lifecycle
// state. The backend is never invoked in that case.
type StateError struct {
	Op    Operation
	Call  string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("algfetch: %s %s not allowed in state %s", e.Op, e.Call, e.State)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// BackendError carries a failure reported by an implementation. It matches
// both ErrBackendFailure and the implementation's own error.
type BackendError struct {
	Op       Operation
	Call     string
	Provider string // empty for legacy
	Err      error
}

func (e *BackendError) Error() string {
	src := e.Provider
	if src == "" {
		src = "legacy"
	}
	return fmt.Sprintf("algfetch: %s %s via %s: %v", e.Op, e.Call, src, e.Err)
}

func (e *BackendError) Unwrap() []error {
	errs := make([]error, 0, 2)
	errs = append(errs, ErrBackendFailure)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
