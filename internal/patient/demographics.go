// Package patient compares filename-derived patient identity against the
// external demographics service and scores the match.
package patient

import (
	"context"
	"errors"
	"fmt"
)

// Details is the subset of the demographic record this service consumes.
type Details struct {
	// GivenNames in record order; the first entry is the primary given name.
	GivenNames []string
	// FamilyName may be multi-word or hyphenated.
	FamilyName string
	// DateOfBirth in ISO 8601 form (yyyy-mm-dd).
	DateOfBirth string
}

// Demographics is the external lookup collaborator. Implementations live
// outside this module; only the contract and error taxonomy are owned here.
type Demographics interface {
	// Lookup returns the demographic record for a 10-digit patient
	// identifier. A definitive absence is ErrPatientNotFound; a lookup that
	// could not complete wraps the cause in a TransientError.
	Lookup(ctx context.Context, nhsNumber string) (*Details, error)
}

// ErrPatientNotFound means the demographics service definitively reported
// that no record exists for the identifier. Permanent, never retried.
var ErrPatientNotFound = errors.New("patient not found in demographics service")

// TransientError wraps a lookup (or other infrastructure) failure that is
// expected to succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError for the named operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
