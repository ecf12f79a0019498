package crypto

import (
	"errors"
	"testing"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("0123456789abcdef-secret")
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	secret := "sk-test-key"
	sealed, err := c.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if sealed == secret {
		t.Fatal("ciphertext equals plaintext")
	}

	again, _ := c.Encrypt(secret)
	if again == sealed {
		t.Error("nonce reuse: identical ciphertexts")
	}

	plain, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plain != secret {
		t.Errorf("expected %q, got %q", secret, plain)
	}
}

func TestCipherRejectsTampering(t *testing.T) {
	c, _ := NewCipher("0123456789abcdef-secret")
	other, _ := NewCipher("fedcba9876543210-secret")

	sealed, _ := c.Encrypt("value")

	if _, err := other.Decrypt(sealed); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for wrong key, got %v", err)
	}
	if _, err := c.Decrypt("not base64!"); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for bad encoding, got %v", err)
	}
	if _, err := c.Decrypt("AAA="); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for short input, got %v", err)
	}
}

func TestNewCipherShortSecret(t *testing.T) {
	if _, err := NewCipher("short"); err == nil {
		t.Error("expected error for short secret")
	}
}
