package tokencipher

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	ciphertext, err := c.Encrypt("ya29.secret-access-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ciphertext == "ya29.secret-access-token" {
		t.Fatal("ciphertext equals plaintext")
	}

	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plaintext != "ya29.secret-access-token" {
		t.Fatalf("round trip mismatch: %q", plaintext)
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	if _, err := New(base64.StdEncoding.EncodeToString([]byte("short"))); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := New("not-base64!!!"); err == nil {
		t.Fatal("expected error for undecodable key")
	}
}

func TestDecryptRejectsTampered(t *testing.T) {
	c, _ := New(testKey())
	ciphertext, _ := c.Encrypt("refresh-token")

	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0xff
	if _, err := c.Decrypt(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Fatal("expected decrypt failure for tampered ciphertext")
	}
}
