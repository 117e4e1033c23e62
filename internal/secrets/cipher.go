package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher wraps an AEAD so everything written to the settings table that
// counts as a secret is authenticated: a tampered or truncated ciphertext
// decrypts to nothing, never to garbage.
type Cipher struct {
	key []byte
}

// NewCipher derives a fixed key from the passphrase.
func NewCipher(passphrase string) *Cipher {
	sum := sha256.Sum256([]byte(passphrase))
	return &Cipher{key: sum[:]}
}

// Encrypt returns base64(nonce || ciphertext || tag).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. The second return is false for malformed,
// truncated or tampered input.
func (c *Cipher) Decrypt(ciphertext string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", false
	}
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", false
	}
	if len(raw) < aead.NonceSize() {
		return "", false
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", false
	}
	return string(plain), true
}
