package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// FileRecord describes the expected content of one companion file.
type FileRecord struct {
	// Hash is the hex-encoded SHA-256 digest of the file.
	Hash string `cbor:"hash"`
	// Name is the base name of the file inside the rule directory.
	Name string `cbor:"path"`
	// Size is the file length in bytes.
	Size int64 `cbor:"size"`
}

// Record is the sealed content of an integrity file.
type Record struct {
	RuleFile FileRecord `cbor:"rule_file"`
	InfoFile FileRecord `cbor:"info_file"`
	// Author is the original, unmasked author used as the sealing password.
	Author string `cbor:"author"`
	// Timestamp is the rule file modification time in Unix seconds.
	Timestamp int64 `cbor:"timestamp"`
	// Encrypted is always true for a sealed record.
	Encrypted bool `cbor:"encrypted"`
}

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same record
// always serializes to the same bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("manifest: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("manifest: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal serializes the record.
func (r *Record) Marshal() ([]byte, error) {
	b, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	return b, nil
}

// UnmarshalRecord decodes a serialized record.
func UnmarshalRecord(data []byte) (*Record, error) {
	r := &Record{}
	if err := decMode.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	return r, nil
}

// NewFileRecord computes the record for in-memory file content.
func NewFileRecord(name string, data []byte) FileRecord {
	sum := sha256.Sum256(data)

	return FileRecord{
		Hash: hex.EncodeToString(sum[:]),
		Size: int64(len(data)),
		Name: name,
	}
}

// hashFile streams the file at path through SHA-256.
func hashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Path is built from the rule directory.
	if err != nil {
		return "", fmt.Errorf("open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
