package pollstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/coreflowhq/wabroker/internal/models"
)

// ErrNoEncryptionKey is returned at construction when no passphrase is
// configured. Poll secrets cannot be stored without one.
var ErrNoEncryptionKey = errors.New("poll secret passphrase is not configured")

const (
	envelopeVersion = 1
	gcmTagSize      = 16
)

// SecretCipher encrypts poll message secrets at rest. The key is derived
// once from the configured passphrase and used for every envelope this
// process produces.
type SecretCipher struct {
	aead cipher.AEAD
	key  []byte
}

// NewSecretCipher derives a 256-bit key from the passphrase and prepares the
// AEAD. An empty passphrase is fatal here.
func NewSecretCipher(passphrase string) (*SecretCipher, error) {
	if passphrase == "" {
		return nil, ErrNoEncryptionKey
	}

	key := sha256.Sum256([]byte(passphrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &SecretCipher{aead: aead, key: key[:]}, nil
}

// Encrypt seals the secret into a versioned envelope. A fresh nonce is drawn
// for every call so identical plaintexts never produce identical ciphertext.
func (c *SecretCipher) Encrypt(secret []byte) (*models.SecretEnvelope, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, secret, nil)
	ciphertext, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	return &models.SecretEnvelope{
		V:          envelopeVersion,
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Tag:        base64.StdEncoding.EncodeToString(tag),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens an envelope. Envelopes produced under a different key fail
// authentication and return an error; callers treat that as "secret absent".
func (c *SecretCipher) Decrypt(env *models.SecretEnvelope) ([]byte, error) {
	if env == nil {
		return nil, errors.New("no envelope")
	}
	if env.V != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.V)
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("failed to decode iv: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tag: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// Fingerprint is a keyed one-way hash of the raw secret, used for equality
// checks without decryption.
func (c *SecretCipher) Fingerprint(secret []byte) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(secret)
	return hex.EncodeToString(mac.Sum(nil))
}
