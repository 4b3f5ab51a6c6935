// Package encryption protects email addresses stored with user records.
//
// Ciphertexts are hex(nonce || tag || ciphertext) produced by AES-256-GCM with
// a fresh 12-byte nonce per call. Lookups use a keyed HMAC-SHA256 of the
// normalized address so matching never requires decrypting rows.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

const (
	nonceSize = 12
	tagSize   = 16
)

type emailCipher struct {
	aead    cipher.AEAD
	hmacKey []byte
}

// NewEmailCipher takes the encryption key as 64 hex characters and the HMAC key as raw text.
func NewEmailCipher(encryptionKeyHex, hmacKey string) (ports.EmailCipher, error) {
	key, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	if hmacKey == "" {
		return nil, errors.New("hmac key is required")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	return &emailCipher{aead: aead, hmacKey: []byte(hmacKey)}, nil
}

func (c *emailCipher) EncryptEmail(plain string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the tag after the ciphertext.
	sealed := c.aead.Seal(nil, nonce, []byte(plain), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return hex.EncodeToString(out), nil
}

func (c *emailCipher) DecryptEmail(ciphertext string) (string, error) {
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", domain.ErrDecryption)
	}
	if len(raw) < nonceSize+tagSize {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryption)
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", domain.ErrDecryption)
	}
	return string(plain), nil
}

func (c *emailCipher) HashEmail(plain string) string {
	mac := hmac.New(sha256.New, c.hmacKey)
	mac.Write([]byte(domain.NormalizeEmail(plain)))
	return hex.EncodeToString(mac.Sum(nil))
}
