package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is returned when a sealed value cannot be decoded or authenticated
var ErrMalformed = errors.New("malformed ciphertext")

// Cipher seals short secrets (API keys) with AES-256-GCM.
// The key is derived from an arbitrary-length secret with SHA-256.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a cipher from secret; secret must be at least 16 bytes
func NewCipher(secret string) (*Cipher, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("secret must be at least 16 bytes, got %d", len(secret))
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create block cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext)
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrMalformed
	}

	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return string(plain), nil
}
