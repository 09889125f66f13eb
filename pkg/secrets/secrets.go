// Package secrets seals sensitive config values (search API keys) at rest
// with XChaCha20-Poly1305. Each value is bound to the name of the field it
// belongs to, so a sealed value copied into another field will not open.
package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "sealed:"

// KeyFile is the key file name, kept next to the config file.
const KeyFile = ".picomind_key"

var (
	ErrInvalidKey = errors.New("secrets: invalid key file")
	ErrMalformed  = errors.New("secrets: malformed sealed value")
)

var (
	keyEncoding   = base64.StdEncoding
	valueEncoding = base64.RawURLEncoding
)

// KeyRing seals and opens values with one key.
type KeyRing struct {
	aead cipher.AEAD
}

// OpenKeyRing reads the base64 key at keyPath. A missing file gets a fresh
// random key written with mode 0600.
func OpenKeyRing(keyPath string) (*KeyRing, error) {
	data, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		key, err := keyEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) != chacha20poly1305.KeySize {
			return nil, ErrInvalidKey
		}
		return newKeyRing(key)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("secrets: read key: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("secrets: generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0700); err != nil {
		return nil, fmt.Errorf("secrets: create key dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(keyEncoding.EncodeToString(key)+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("secrets: write key: %w", err)
	}
	return newKeyRing(key)
}

func newKeyRing(key []byte) (*KeyRing, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: cipher: %w", err)
	}
	return &KeyRing{aead: aead}, nil
}

// Seal encrypts plaintext for field. Empty and already sealed values are
// returned unchanged.
func (k *KeyRing) Seal(field, plaintext string) (string, error) {
	if plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	box := k.aead.Seal(nonce, nonce, []byte(plaintext), []byte(field))
	return sealedPrefix + valueEncoding.EncodeToString(box), nil
}

// Unseal opens a value sealed for field. Unsealed values pass through.
func (k *KeyRing) Unseal(field, value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return value, nil
	}
	box, err := valueEncoding.DecodeString(encoded)
	if err != nil || len(box) < k.aead.NonceSize()+k.aead.Overhead() {
		return "", fmt.Errorf("%w: %s", ErrMalformed, field)
	}
	n := k.aead.NonceSize()
	plain, err := k.aead.Open(nil, box[:n], box[n:], []byte(field))
	if err != nil {
		return "", fmt.Errorf("secrets: open %s: %w", field, err)
	}
	return string(plain), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
