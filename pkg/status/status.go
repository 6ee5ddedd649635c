// Package status defines the security classification assigned to a loaded rule.
package status

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the security classification of a loaded rule. It is computed on
// every load and never persisted.
type Status int

const (
	// PlainUnencrypted is a rule saved without encryption.
	PlainUnencrypted Status = iota
	// Valid is an encrypted rule whose manifest verified against its files.
	Valid
	// Tampered is an encrypted rule whose files differ from the manifest.
	Tampered
	// CannotVerify is an encrypted rule whose author is redacted, so the
	// manifest password is unknown.
	CannotVerify
	// VerificationError is a rule that could not be checked at all: missing
	// files, an undecryptable manifest, or unreadable metadata.
	VerificationError
)

// ErrUnknownStatus is returned when parsing an unrecognized status name.
var ErrUnknownStatus = errors.New("unknown status")

// All lists every status in declaration order.
var All = []Status{
	PlainUnencrypted,
	Valid,
	Tampered,
	CannotVerify,
	VerificationError,
}

var names = map[Status]string{
	PlainUnencrypted:  "plain",
	Valid:             "valid",
	Tampered:          "tampered",
	CannotVerify:      "cannot-verify",
	VerificationError: "verification-error",
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}

	return "unknown"
}

// MarshalText implements [encoding.TextMarshaler].
func (s Status) MarshalText() ([]byte, error) {
	if _, ok := names[s]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *Status) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}

	*s = v

	return nil
}

// Parse returns the status with the given name.
func Parse(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range names {
		if n == name {
			return s, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}
