package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// sealedPrefix marks column values written by Encryptor.Seal
const sealedPrefix = "enc:v1:"

// Column names bound into the ciphertext as associated data, so a value
// copied into another column fails to open.
const fieldContactEmail = "key_requests.contact_email"

var errNoEncryptionKey = errors.New("value is encrypted but no encryption key is configured")

// Encryptor seals personal data before it reaches the keys store.
// A nil *Encryptor stores values in plaintext.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor builds an AES-256-GCM Encryptor from a 64-character hex key.
// An empty key disables encryption and returns nil.
func NewEncryptor(hexKey string) (*Encryptor, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// Seal encrypts value for storage in field.
// The result is sealedPrefix followed by base64(nonce || ciphertext).
// Empty values and a nil Encryptor pass through unchanged.
func (e *Encryptor) Seal(field, value string) (string, error) {
	if e == nil || value == "" {
		return value, nil
	}

	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(value)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(value), []byte(field))
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without sealedPrefix predate encryption
// and are returned as stored.
func (e *Encryptor) Open(field, stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	if e == nil {
		return "", errNoEncryptionKey
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid encrypted value: %w", err)
	}
	n := e.aead.NonceSize()
	if len(raw) < n+e.aead.Overhead() {
		return "", errors.New("encrypted value too short")
	}

	plain, err := e.aead.Open(nil, raw[:n], raw[n:], []byte(field))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", field, err)
	}
	return string(plain), nil
}
