/**
 * @description
 * AES-GCM field encryption for sensitive linked-account columns. Values are
 * stored as base64(nonce || ciphertext); the random nonce makes equal
 * plaintexts produce different ciphertexts, so nothing here is usable for
 * equality lookups — duplicate detection uses the clear last-four digits.
 */

package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Codec encrypts and decrypts short string fields with a single symmetric key.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec from a raw AES key (16, 24, or 32 bytes).
func NewCodec(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals a plaintext field for storage.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("input data is empty")
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored field.
func (c *Codec) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plaintext), nil
}
