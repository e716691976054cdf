// Package vault provides authenticated encryption for tenant-supplied
// credentials at rest.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/velocibid/velocibid/internal/config"
	"go.uber.org/zap"
)

const (
	keyLen   = 32
	nonceLen = 16
	tagLen   = 16
)

var (
	// ErrDecryptionFailed covers malformed envelopes and authentication
	// failures. No partial plaintext is ever returned.
	ErrDecryptionFailed = errors.New("decryption_failed")

	// ErrInvalidKey is returned at construction when the configured key
	// cannot be used in the current environment.
	ErrInvalidKey = errors.New("invalid_encryption_key")
)

// Vault encrypts and decrypts small secrets with AES-256-GCM. Every call
// uses a fresh random 16-byte nonce; the envelope is the delimited triple
// hex(iv):hex(tag):hex(ciphertext) so stored values are self-describing.
type Vault struct {
	key []byte
}

// New builds a Vault from the configured process-wide secret. In production
// the secret must be exactly 32 bytes; elsewhere a short or missing secret is
// zero-padded with a loud warning so local setups keep working.
func New(cfg config.Config, log *zap.Logger) (*Vault, error) {
	secret := cfg.EncryptionKey

	if len(secret) != keyLen {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("%w: APP_ENCRYPTION_KEY must be exactly %d bytes", ErrInvalidKey, keyLen)
		}
		log.Warn("APP_ENCRYPTION_KEY is not 32 bytes, padding for non-production use",
			zap.Int("length", len(secret)))
	}

	key := make([]byte, keyLen)
	copy(key, secret)

	return &Vault{key: key}, nil
}

// Encrypt seals plaintext into the envelope format.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := v.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	), nil
}

// Decrypt opens an envelope produced by Encrypt. Any structural defect or
// tag mismatch yields ErrDecryptionFailed.
func (v *Vault) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", ErrDecryptionFailed
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceLen {
		return "", ErrDecryptionFailed
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLen {
		return "", ErrDecryptionFailed
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrDecryptionFailed
	}

	aead, err := v.aead()
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceLen)
}
