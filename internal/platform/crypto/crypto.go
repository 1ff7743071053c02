// Package crypto seals credentials before they are written to a store.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Passthrough stores credentials as plaintext. Used when no key is configured.
type Passthrough struct{}

func (Passthrough) Seal(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (Passthrough) Open(sealed []byte) ([]byte, error)    { return sealed, nil }

type AESGCM struct {
	gcm cipher.AEAD
}

// NewAESGCM expects a hex encoded 32 byte key.
func NewAESGCM(hexKey string) (*AESGCM, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AESGCM{gcm: gcm}, nil
}

// Seal returns nonce || ciphertext || tag.
func (a *AESGCM) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, a.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return a.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (a *AESGCM) Open(sealed []byte) ([]byte, error) {
	n := a.gcm.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}
	plain, err := a.gcm.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plain, nil
}

// New picks AES-GCM when a key is configured and Passthrough otherwise.
func New(hexKey string) (Sealer, error) {
	if hexKey == "" {
		return Passthrough{}, nil
	}
	return NewAESGCM(hexKey)
}
