// Package manifest builds and verifies the sealed integrity record that
// protects the two companion files of an encrypted rule.
//
// The integrity file is a [seal] envelope whose password is the rule's
// original, unmasked author. It records the SHA-256 digest and size of the
// rule script and the info file, so that any later modification of either
// file is detected on load.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pity-fox/cleantools/pkg/fsutil"
	"github.com/pity-fox/cleantools/pkg/messages"
	"github.com/pity-fox/cleantools/pkg/seal"
	"github.com/pity-fox/cleantools/pkg/status"
)

const (
	// RuleFileName is the name of the action script inside a rule directory.
	RuleFileName = "rule.clean"
	// InfoFileName is the name of the metadata file inside a rule directory.
	InfoFileName = "info.cleantool"
	// IntegrityFileName is the name of the sealed integrity file.
	IntegrityFileName = "rule.integrity"
)

// ErrInvalidRecord is returned when a decrypted manifest is not a sealed record.
var ErrInvalidRecord = errors.New("invalid integrity record")

// Build seals an integrity record for the given file contents.
func Build(ruleData, infoData []byte, ruleName, infoName, author string, ts time.Time) ([]byte, error) {
	rec := &Record{
		RuleFile:  NewFileRecord(ruleName, ruleData),
		InfoFile:  NewFileRecord(infoName, infoData),
		Author:    author,
		Timestamp: ts.Unix(),
		Encrypted: true,
	}

	b, err := rec.Marshal()
	if err != nil {
		return nil, err
	}

	envelope, err := seal.Encrypt(b, author)
	if err != nil {
		return nil, fmt.Errorf("seal record: %w", err)
	}

	return envelope, nil
}

// Write builds the integrity file for the companion files in dir and writes
// it next to them.
func Write(dir, author string) (string, error) {
	rulePath := filepath.Join(dir, RuleFileName)
	infoPath := filepath.Join(dir, InfoFileName)

	ruleData, err := fsutil.ReadFile(rulePath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", RuleFileName, err)
	}

	infoData, err := fsutil.ReadFile(infoPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", InfoFileName, err)
	}

	ruleInfo, err := os.Stat(rulePath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", RuleFileName, err)
	}

	envelope, err := Build(ruleData, infoData, RuleFileName, InfoFileName, author, ruleInfo.ModTime())
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, IntegrityFileName)
	if err := fsutil.WriteFileAtomic(path, envelope, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", IntegrityFileName, err)
	}

	return path, nil
}

// Result is the outcome of [Verify].
type Result struct {
	// Err is the underlying failure, if any.
	Err error
	// Key identifies the human-readable explanation.
	Key messages.Key
	// File names the companion file that failed comparison, if any.
	File string
	// Status is the classification of the rule.
	Status status.Status
}

// Message formats the explanation with c.
func (r Result) Message(c messages.Catalog) string {
	switch r.Key {
	case messages.IntegrityTampered:
		return c.Sprintf(r.Key, r.File)
	case messages.IntegrityIOError:
		return c.Sprintf(r.Key, r.Err)
	}

	return c.Sprintf(r.Key)
}

func (r Result) String() string {
	return r.Message(messages.Default)
}

// Verify checks the companion files in dir against the integrity file,
// using authorClaim as the password. Cryptographic and filesystem failures
// are reported through the returned [Result], never as an error.
func Verify(dir, authorClaim string) Result {
	rulePath := filepath.Join(dir, RuleFileName)
	infoPath := filepath.Join(dir, InfoFileName)
	integrityPath := filepath.Join(dir, IntegrityFileName)

	for _, p := range []string{rulePath, infoPath, integrityPath} {
		if !fsutil.Exists(p) {
			return Result{
				Status: status.VerificationError,
				Key:    messages.IntegrityMissing,
				Err:    fmt.Errorf("%s: %w", filepath.Base(p), os.ErrNotExist),
			}
		}
	}

	rec, res, ok := openForVerify(integrityPath, authorClaim)
	if !ok {
		return res
	}

	for _, check := range []struct {
		path string
		want FileRecord
	}{
		{path: rulePath, want: rec.RuleFile},
		{path: infoPath, want: rec.InfoFile},
	} {
		match, err := matches(check.path, check.want)
		if err != nil {
			return Result{Status: status.VerificationError, Key: messages.IntegrityIOError, Err: err}
		}
		if !match {
			return Result{
				Status: status.Tampered,
				Key:    messages.IntegrityTampered,
				File:   filepath.Base(check.path),
			}
		}
	}

	return Result{Status: status.Valid, Key: messages.IntegrityValid}
}

// VerifyData checks ruleData and infoData, the companion file contents
// already read by the caller, against the integrity file in dir. The bytes
// that pass are exactly the bytes the caller holds, so a file replaced on
// disk after it was read cannot slip through.
func VerifyData(dir, authorClaim string, ruleData, infoData []byte) Result {
	integrityPath := filepath.Join(dir, IntegrityFileName)
	if !fsutil.Exists(integrityPath) {
		return Result{
			Status: status.VerificationError,
			Key:    messages.IntegrityMissing,
			Err:    fmt.Errorf("%s: %w", IntegrityFileName, os.ErrNotExist),
		}
	}

	rec, res, ok := openForVerify(integrityPath, authorClaim)
	if !ok {
		return res
	}

	for _, check := range []struct {
		want FileRecord
		data []byte
		name string
	}{
		{name: RuleFileName, data: ruleData, want: rec.RuleFile},
		{name: InfoFileName, data: infoData, want: rec.InfoFile},
	} {
		if int64(len(check.data)) != check.want.Size ||
			NewFileRecord(check.want.Name, check.data).Hash != check.want.Hash {
			return Result{Status: status.Tampered, Key: messages.IntegrityTampered, File: check.name}
		}
	}

	return Result{Status: status.Valid, Key: messages.IntegrityValid}
}

// openForVerify decrypts the record at path. On failure it returns the
// [Result] to report and false.
func openForVerify(path, authorClaim string) (*Record, Result, bool) {
	rec, err := open(path, authorClaim)
	if err == nil {
		return rec, Result{}, true
	}

	if errors.Is(err, seal.ErrAuthFailure) || errors.Is(err, ErrInvalidRecord) {
		return nil, Result{Status: status.VerificationError, Key: messages.IntegrityCorrupt, Err: err}, false
	}

	return nil, Result{Status: status.VerificationError, Key: messages.IntegrityIOError, Err: err}, false
}

// Inspect decrypts and returns the integrity record in dir.
func Inspect(dir, author string) (*Record, error) {
	return open(filepath.Join(dir, IntegrityFileName), author)
}

func open(path, author string) (*Record, error) {
	envelope, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IntegrityFileName, err)
	}

	plaintext, err := seal.Decrypt(envelope, author)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", IntegrityFileName, err)
	}

	rec, err := UnmarshalRecord(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if !rec.Encrypted {
		return nil, fmt.Errorf("%w: missing encrypted flag", ErrInvalidRecord)
	}

	return rec, nil
}

// matches compares the file at path with want. A size difference is
// decided without hashing.
func matches(path string, want FileRecord) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if info.Size() != want.Size {
		return false, nil
	}

	got, err := hashFile(path)
	if err != nil {
		return false, err
	}

	return got == want.Hash, nil
}
