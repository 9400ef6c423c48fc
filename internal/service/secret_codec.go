package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var errCiphertextTooShort = errors.New("ciphertext too short")

// XChaChaSecretCipher encrypts MFA secrets at rest with XChaCha20-Poly1305.
// The random 24-byte nonce is prepended to the ciphertext and the whole blob
// is base64url encoded for storage in a text column.
type XChaChaSecretCipher struct {
	key []byte
}

func NewXChaChaSecretCipher(key []byte) (*XChaChaSecretCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secret cipher key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &XChaChaSecretCipher{key: key}, nil
}

func (c *XChaChaSecretCipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *XChaChaSecretCipher) Decrypt(encoded string) (string, error) {
	blob, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(blob) < aead.NonceSize() {
		return "", errCiphertextTooShort
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
