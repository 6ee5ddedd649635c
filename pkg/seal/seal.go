// Package seal provides password-based authenticated encryption.
//
// Sealed payloads are stored as a single envelope:
//
//	[Salt: 32 bytes] [Nonce: 16 bytes] [Tag: 16 bytes] [Ciphertext: N bytes]
//
// The key is derived from the password and salt with PBKDF2-HMAC-SHA256, and
// the payload is encrypted with AES-256-GCM. A fresh salt and nonce are drawn
// for every call to [Encrypt], so sealing the same payload twice never
// produces the same envelope.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the length of the random salt in bytes.
	SaltSize = 32
	// NonceSize is the length of the GCM nonce in bytes.
	NonceSize = 16
	// TagSize is the length of the GCM authentication tag in bytes.
	TagSize = 16
	// KeySize is the length of the derived AES-256 key in bytes.
	KeySize = 32
	// Iterations is the PBKDF2 iteration count.
	Iterations = 100_000

	// HeaderSize is the fixed envelope prefix preceding the ciphertext.
	HeaderSize = SaltSize + NonceSize + TagSize
)

// ErrAuthFailure is returned by [Decrypt] when the envelope does not
// authenticate under the given password. Wrong passwords, truncated
// envelopes and modified bytes all produce this error.
var ErrAuthFailure = errors.New("authentication failed")

// DeriveKey stretches password with salt into a [KeySize] byte key.
// Equal inputs always produce equal keys.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, Iterations, KeySize, sha256.New)
}

// Encrypt seals plaintext under password and returns the envelope.
// It only fails if the system random source fails.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	return encryptWithReader(rand.Reader, plaintext, password)
}

func encryptWithReader(r io.Reader, plaintext []byte, password string) ([]byte, error) {
	header := make([]byte, HeaderSize, HeaderSize+len(plaintext))

	salt := header[:SaltSize]
	nonce := header[SaltSize : SaltSize+NonceSize]

	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	aead, err := newAEAD(DeriveKey([]byte(password), salt))
	if err != nil {
		return nil, err
	}

	// Seal returns ciphertext||tag; the envelope stores the tag first.
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	copy(header[SaltSize+NonceSize:], tag)

	return append(header, ciphertext...), nil
}

// Decrypt opens an envelope produced by [Encrypt]. Any failure to
// authenticate, including a short envelope, is reported as
// [ErrAuthFailure] and no plaintext is returned.
func Decrypt(envelope []byte, password string) ([]byte, error) {
	if len(envelope) < HeaderSize {
		return nil, fmt.Errorf("%w: envelope is %d bytes, minimum is %d",
			ErrAuthFailure, len(envelope), HeaderSize)
	}

	salt := envelope[:SaltSize]
	nonce := envelope[SaltSize : SaltSize+NonceSize]
	tag := envelope[SaltSize+NonceSize : HeaderSize]
	ciphertext := envelope[HeaderSize:]

	aead, err := newAEAD(DeriveKey([]byte(password), salt))
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return aead, nil
}
