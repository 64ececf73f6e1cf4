package definition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvariant marks a broken programming contract between collaborators.
// The driver treats any error matching it as fatal.
var ErrInvariant = errors.New("invariant violation")

type invariantError string

func (e invariantError) Error() string        { return string(e) }
func (e invariantError) Is(target error) bool { return target == ErrInvariant }

var (
	ErrDuplicateClass = invariantError("class registered twice")
	ErrFieldsSealed   = invariantError("field injected after layout was computed")
)

// Failure categories, matched with errors.Is.
var (
	ErrVerifyFailed     = errors.New("verification failed")
	ErrResolutionFailed = errors.New("resolution failed")
	ErrPrepareFailed    = errors.New("preparation failed")
	ErrClassNotFound    = errors.New("class not found")
	ErrCircularity      = errors.New("class circularity")
)

// VerifyError reports a type whose definition could not be verified.
type VerifyError struct {
	Type string
	Err  error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify %s: %v", e.Type, e.Err)
}

func (e *VerifyError) Unwrap() error        { return e.Err }
func (e *VerifyError) Is(target error) bool { return target == ErrVerifyFailed }

// ResolutionError reports a type that could not be resolved. Chain lists the
// type names from the failing type up to the ancestor at fault.
type ResolutionError struct {
	Type  string
	Chain []string
	Err   error
}

func (e *ResolutionError) Error() string {
	if len(e.Chain) > 1 {
		return fmt.Sprintf("resolve %s: %s: %v", e.Type, strings.Join(e.Chain, " -> "), e.Err)
	}
	return fmt.Sprintf("resolve %s: %v", e.Type, e.Err)
}

func (e *ResolutionError) Unwrap() error        { return e.Err }
func (e *ResolutionError) Is(target error) bool { return target == ErrResolutionFailed }

// PrepareError reports a type whose layout could not be prepared.
type PrepareError struct {
	Type string
	Err  error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("prepare %s: %v", e.Type, e.Err)
}

func (e *PrepareError) Unwrap() error        { return e.Err }
func (e *PrepareError) Is(target error) bool { return target == ErrPrepareFailed }

// chainOf extends the chain carried by an ancestor failure.
func chainOf(name string, err error) []string {
	var re *ResolutionError
	if errors.As(err, &re) {
		return append([]string{name}, re.Chain...)
	}
	return []string{name}
}
