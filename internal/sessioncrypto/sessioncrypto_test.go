package sessioncrypto

import (
	"bytes"
	"testing"
	"time"
)

func testKey() []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func samplePayload() *SessionPayload {
	return &SessionPayload{
		Cookies: []Cookie{
			{Name: "sessionid", Value: "abc123", Domain: ".instagram.com", Path: "/", HTTPOnly: true, Secure: true, SameSite: "Lax"},
			{Name: "csrftoken", Value: "tok", Domain: ".instagram.com", Path: "/"},
		},
		UserAgent:  "Mozilla/5.0 test",
		CapturedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewKeyLength(t *testing.T) {
	tests := []struct {
		name    string
		keyLen  int
		wantErr bool
	}{
		{name: "32 bytes", keyLen: 32, wantErr: false},
		{name: "31 bytes", keyLen: 31, wantErr: true},
		{name: "33 bytes", keyLen: 33, wantErr: true},
		{name: "empty", keyLen: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keyLen)
			_, err := New(key)
			if tt.wantErr && err == nil {
				t.Errorf("Expected error for %d-byte key", tt.keyLen)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error for %d-byte key: %v", tt.keyLen, err)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	original := samplePayload()
	enc, err := c.Encrypt(original)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if enc.Algorithm != Algorithm {
		t.Errorf("Expected algorithm %q, got %q", Algorithm, enc.Algorithm)
	}
	if enc.IV == "" || enc.Ciphertext == "" {
		t.Fatal("Expected non-empty IV and ciphertext")
	}

	decrypted, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	if decrypted.UserAgent != original.UserAgent {
		t.Errorf("User agent mismatch: got %q", decrypted.UserAgent)
	}
	if !decrypted.CapturedAt.Equal(original.CapturedAt) {
		t.Errorf("CapturedAt mismatch: got %v", decrypted.CapturedAt)
	}
	if len(decrypted.Cookies) != len(original.Cookies) {
		t.Fatalf("Expected %d cookies, got %d", len(original.Cookies), len(decrypted.Cookies))
	}
	for i, cookie := range decrypted.Cookies {
		if cookie != original.Cookies[i] {
			t.Errorf("Cookie %d mismatch: got %+v, want %+v", i, cookie, original.Cookies[i])
		}
	}
}

func TestRoundTripString(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	raw, err := c.EncryptToString(samplePayload())
	if err != nil {
		t.Fatalf("EncryptToString failed: %v", err)
	}

	decrypted, err := c.DecryptFromString(raw)
	if err != nil {
		t.Fatalf("DecryptFromString failed: %v", err)
	}
	if decrypted.UserAgent != "Mozilla/5.0 test" {
		t.Errorf("Unexpected user agent: %q", decrypted.UserAgent)
	}
}

func TestIVNeverReused(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	payload := samplePayload()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		enc, err := c.Encrypt(payload)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if seen[enc.IV] {
			t.Fatalf("IV reused after %d encryptions", i)
		}
		seen[enc.IV] = true
	}
}

func TestDecryptRejectsForeignAlgorithm(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	enc, err := c.Encrypt(samplePayload())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	enc.Algorithm = "aes-256-cbc"
	if _, err := c.Decrypt(enc); err == nil {
		t.Fatal("Expected error for mismatched algorithm")
	}
}

func TestDecryptRejectsBadIVLength(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	enc, err := c.Encrypt(samplePayload())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// A mangled session row must reject with an error, never panic
	tests := []struct {
		name string
		iv   string
	}{
		{name: "truncated", iv: "beef"},
		{name: "empty", iv: ""},
		{name: "oversized", iv: enc.IV + "00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Decrypt panicked on %s IV: %v", tt.name, r)
				}
			}()
			bad := *enc
			bad.IV = tt.iv
			if _, err := c.Decrypt(&bad); err == nil {
				t.Fatalf("Expected error for %s IV", tt.name)
			}
		})
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("Failed to create cipher: %v", err)
	}

	enc, err := c.Encrypt(samplePayload())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip a hex digit in the ciphertext
	tampered := []byte(enc.Ciphertext)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	enc.Ciphertext = string(tampered)

	if _, err := c.Decrypt(enc); err == nil {
		t.Fatal("Expected error for tampered ciphertext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	c1, _ := New(testKey())
	otherKey := testKey()
	otherKey[0] ^= 0xff
	c2, _ := New(otherKey)

	enc, err := c1.Encrypt(samplePayload())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := c2.Decrypt(enc); err == nil {
		t.Fatal("Expected error decrypting with wrong key")
	}
}

func TestCiphertextDiffersFromPlaintext(t *testing.T) {
	c, _ := New(testKey())
	enc, err := c.Encrypt(samplePayload())
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Contains([]byte(enc.Ciphertext), []byte("sessionid")) {
		t.Fatal("Ciphertext leaks plaintext")
	}
}
