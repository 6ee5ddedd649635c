// Package policy decides whether a rule's script may run.
//
// The decision is a fixed lookup over [status.Status]. Any status missing
// from the table is denied.
package policy

import (
	"errors"
	"fmt"

	"github.com/pity-fox/cleantools/pkg/status"
)

// Reason explains a denial. Tampering, an unverifiable author and an
// internal verification failure are always reported separately.
type Reason int

const (
	// ReasonNone means execution is allowed.
	ReasonNone Reason = iota
	// ReasonTampered means the rule files differ from the sealed manifest.
	ReasonTampered
	// ReasonCannotVerify means the rule's author is redacted.
	ReasonCannotVerify
	// ReasonInternalError means verification could not be performed.
	ReasonInternalError
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "allowed"
	case ReasonTampered:
		return "tampered"
	case ReasonCannotVerify:
		return "cannot verify"
	case ReasonInternalError:
		return "internal error"
	}

	return fmt.Sprintf("reason(%d)", int(r))
}

// ErrDenied is wrapped by every [DeniedError].
var ErrDenied = errors.New("execution denied")

// DeniedError is returned by [Check] for a status that may not execute.
type DeniedError struct {
	Status status.Status
	Reason Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDenied, e.Reason)
}

// Unwrap returns [ErrDenied].
func (e *DeniedError) Unwrap() error {
	return ErrDenied
}

// Decision is the gate's verdict for one status.
type Decision struct {
	Reason  Reason
	Allowed bool
}

var table = map[status.Status]Decision{
	status.PlainUnencrypted:  {Allowed: true, Reason: ReasonNone},
	status.Valid:             {Allowed: true, Reason: ReasonNone},
	status.Tampered:          {Allowed: false, Reason: ReasonTampered},
	status.CannotVerify:      {Allowed: false, Reason: ReasonCannotVerify},
	status.VerificationError: {Allowed: false, Reason: ReasonInternalError},
}

// Decide returns the decision for s. Unknown statuses are denied as
// internal errors.
func Decide(s status.Status) Decision {
	if d, ok := table[s]; ok {
		return d
	}

	return Decision{Allowed: false, Reason: ReasonInternalError}
}

// Allow reports whether a rule with status s may execute.
func Allow(s status.Status) bool {
	return Decide(s).Allowed
}

// Check returns nil if s may execute, and a [*DeniedError] otherwise.
func Check(s status.Status) error {
	d := Decide(s)
	if d.Allowed {
		return nil
	}

	return &DeniedError{Status: s, Reason: d.Reason}
}
