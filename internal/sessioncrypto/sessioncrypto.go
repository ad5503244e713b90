// Package sessioncrypto encrypts browser session material at rest.
// Sessions are sealed with AES-256-GCM under a process-wide key; the
// plaintext payload never touches the database.
package sessioncrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Algorithm is the cipher identifier written into every encrypted
// payload. Decryption rejects payloads carrying any other identifier.
const Algorithm = "aes-256-gcm"

// KeySize is the required key length in bytes
const KeySize = 32

var (
	// ErrBadKeyLength is returned by New when the key is not 32 bytes
	ErrBadKeyLength = errors.New("encryption key must be exactly 32 bytes")

	// ErrAlgorithmMismatch is returned when a payload was sealed with a
	// different cipher than the one configured
	ErrAlgorithmMismatch = errors.New("payload algorithm does not match configured cipher")
)

// Cookie is one browser cookie captured from an authenticated session
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// SessionPayload is the decrypted session material: the ordered cookie
// list plus the user agent it was captured under
type SessionPayload struct {
	Cookies    []Cookie  `json:"cookies"`
	UserAgent  string    `json:"user_agent"`
	CapturedAt time.Time `json:"captured_at"`
}

// EncryptedPayload is the wire format stored inside the session row
type EncryptedPayload struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
	Algorithm  string `json:"algorithm"`
}

// Cipher seals and opens session payloads with a fixed 256-bit key
type Cipher struct {
	aead cipher.AEAD
}

// New creates a Cipher. The key must be exactly 32 bytes; a wrong-sized
// key fails here, never at first use.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w, got %d", ErrBadKeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals a payload with a fresh random IV
func (c *Cipher) Encrypt(payload *SessionPayload) (*EncryptedPayload, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session payload: %w", err)
	}

	iv := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext := c.aead.Seal(nil, iv, plaintext, nil)

	return &EncryptedPayload{
		IV:         hex.EncodeToString(iv),
		Ciphertext: hex.EncodeToString(ciphertext),
		Algorithm:  Algorithm,
	}, nil
}

// Decrypt opens a sealed payload. Payloads sealed under a different
// algorithm identifier are rejected before any cryptographic work.
func (c *Cipher) Decrypt(enc *EncryptedPayload) (*SessionPayload, error) {
	if enc.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrAlgorithmMismatch, enc.Algorithm, Algorithm)
	}

	iv, err := hex.DecodeString(enc.IV)
	if err != nil {
		return nil, fmt.Errorf("invalid IV encoding: %w", err)
	}
	// aead.Open panics on a wrong-sized nonce; a truncated or
	// foreign-written row must reject with an error instead
	if len(iv) != c.aead.NonceSize() {
		return nil, fmt.Errorf("invalid IV length: got %d bytes, want %d", len(iv), c.aead.NonceSize())
	}
	ciphertext, err := hex.DecodeString(enc.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	plaintext, err := c.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session payload: %w", err)
	}

	var payload SessionPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session payload: %w", err)
	}
	return &payload, nil
}

// EncryptToString seals a payload and serializes the wire format to the
// string stored in the session row
func (c *Cipher) EncryptToString(payload *SessionPayload) (string, error) {
	enc, err := c.Encrypt(payload)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(enc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal encrypted payload: %w", err)
	}
	return string(raw), nil
}

// DecryptFromString parses the stored wire format and opens it
func (c *Cipher) DecryptFromString(raw string) (*SessionPayload, error) {
	var enc EncryptedPayload
	if err := json.Unmarshal([]byte(raw), &enc); err != nil {
		return nil, fmt.Errorf("failed to parse encrypted payload: %w", err)
	}
	return c.Decrypt(&enc)
}
