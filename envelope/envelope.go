// Package envelope encrypts credentials at rest. Each Seal derives a
// fresh key from the server master secret and a random per-operation
// salt, so two encryptions of the same credential never produce the same
// blob and key-derivation inputs can be inspected per blob.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"

	"github.com/jmcleod/keyrelay/internal/util"
)

const (
	saltSize      = 32
	nonceSize     = 12
	keySize       = 32
	kdfIterations = 100_000
)

// ErrDecryptionFailed is returned for every Open failure. The cause is
// deliberately not distinguished so a caller probing with crafted blobs
// cannot learn which step rejected them.
var ErrDecryptionFailed = errors.New("envelope: decryption failed")

// Sealer encrypts and decrypts credential blobs. The master secret is
// held in a memguard Enclave and only materialized for the duration of a
// key derivation.
type Sealer struct {
	master *memguard.Enclave
}

// NewSealer wraps the master secret in an Enclave. The caller's slice is
// wiped by memguard as part of sealing.
func NewSealer(masterSecret []byte) *Sealer {
	return &Sealer{master: memguard.NewEnclave(masterSecret)}
}

// Seal encrypts the credential and returns the blob as
// base64(salt ‖ nonce ‖ ciphertext+tag).
func (s *Sealer) Seal(credential []byte) (string, error) {
	salt, err := util.RandomBytes(saltSize)
	if err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key, err := s.deriveKey(salt)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce, err := util.RandomBytes(nonceSize)
	if err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	blob := make([]byte, 0, saltSize+nonceSize+len(credential)+gcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, credential, nil)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Open decrypts a blob produced by Seal. The key is re-derived from the
// salt embedded in the blob on every call — never cached. All failures
// collapse to ErrDecryptionFailed.
func (s *Sealer) Open(blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(raw) < saltSize+nonceSize {
		return nil, ErrDecryptionFailed
	}

	salt, nonce, cipherText := raw[:saltSize], raw[saltSize:saltSize+nonceSize], raw[saltSize+nonceSize:]

	key, err := s.deriveKey(salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer util.WipeBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plainText, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plainText, nil
}

func (s *Sealer) deriveKey(salt []byte) ([]byte, error) {
	buf, err := s.master.Open()
	if err != nil {
		return nil, fmt.Errorf("opening master secret: %w", err)
	}
	defer buf.Destroy()

	return pbkdf2.Key(buf.Bytes(), salt, kdfIterations, keySize, sha256.New), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
