// Package rule persists cleaning rules and classifies them on load.
//
// Each rule lives in its own directory under the store root:
//
//	<root>/<Name_with_underscores>/
//	    info.cleantool   metadata blocks (see [Info])
//	    rule.clean       action script
//	    rule.integrity   sealed manifest, encrypted rules only
//
// Encrypted rules persist a masked author. The original author is the
// manifest password and is never written to disk.
package rule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pity-fox/cleantools/pkg/status"
)

// DefaultVersion is used when a bundle has no version.
const DefaultVersion = "1.0"

var (
	// ErrInvalidBundle is returned when a bundle cannot be saved.
	ErrInvalidBundle = errors.New("invalid rule")
	// ErrNotFound is returned when a rule does not exist.
	ErrNotFound = errors.New("rule not found")
	// ErrIO wraps filesystem failures.
	ErrIO = errors.New("filesystem")
)

// Bundle is a named, versioned cleaning recipe.
type Bundle struct {
	// Name identifies the rule. Its storage key is [Key](Name).
	Name string `json:"name"`
	// Version is free-form, "1.0" by default.
	Version string `json:"version"`
	// Author is the author as stored. Encrypted rules store a masked author.
	Author string `json:"author"`
	// Description is free-form text.
	Description string `json:"description"`
	// Script is the action script.
	Script string `json:"script"`
	// Dir is the rule directory. Set on load.
	Dir string `json:"dir,omitempty"`
	// StatusMessage explains Status. Set on load.
	StatusMessage string `json:"statusMessage,omitempty"`
	// Encrypted is the intent at save time, and the detected claim on load.
	Encrypted bool `json:"encrypted"`
	// Status is the security classification. Set on load.
	Status status.Status `json:"status"`
}

// Key normalizes a rule name into its directory name.
func Key(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// Validate checks that the bundle can be saved.
func (b *Bundle) Validate() error {
	key := Key(b.Name)
	if key == "" {
		return errors.Join(ErrInvalidBundle, errors.New("name is required"))
	}
	if !validKey(key) {
		return errors.Join(ErrInvalidBundle, errors.New("name must not contain path separators"))
	}

	for _, f := range []struct {
		name, value string
		multiline   bool
	}{
		{name: "name", value: b.Name},
		{name: "version", value: b.Version},
		{name: "author", value: b.Author},
		{name: "description", value: b.Description, multiline: true},
	} {
		if !f.multiline && strings.ContainsAny(f.value, "\r\n") {
			return errors.Join(ErrInvalidBundle, fmt.Errorf("%s must be a single line", f.name))
		}
		if hasBraceLine(f.value) {
			return errors.Join(ErrInvalidBundle, fmt.Errorf("%s must not contain a line holding only a brace", f.name))
		}
	}

	return nil
}

// hasBraceLine reports whether value has a line that the info file format
// would read as a block delimiter.
func hasBraceLine(value string) bool {
	for line := range strings.SplitSeq(value, "\n") {
		if l := strings.TrimSpace(line); l == "{" || l == "}" {
			return true
		}
	}

	return false
}

// validKey reports whether key names a directory directly below the root.
func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

// EnsureDefaults fills in empty fields.
func (b *Bundle) EnsureDefaults() {
	if b.Version == "" {
		b.Version = DefaultVersion
	}
}

// Mask redacts an author, keeping only its first character.
func Mask(author string) string {
	r := []rune(author)

	switch n := len(r); {
	case n <= 1:
		return "*"
	case n == 2:
		return string(r[0]) + "*"
	default:
		return string(r[0]) + strings.Repeat("*", n-1)
	}
}

// IsMasked reports whether an author contains the redaction marker.
func IsMasked(author string) bool {
	return strings.Contains(author, "*")
}
