package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/laia-connect/billing/internal/config"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
)

// EncryptionService is the credential vault for tenant bank identifiers.
// It derives a single AES-256 key from the configured master secret and
// fails closed: a missing secret refuses construction, and a ciphertext
// that does not authenticate refuses to decrypt. There is no plaintext
// fallback anywhere.
type EncryptionService interface {
	// Encrypt encrypts plaintext using AES-GCM
	Encrypt(plaintext string) (string, error)

	// Decrypt decrypts ciphertext using AES-GCM
	Decrypt(ciphertext string) (string, error)

	// Hash creates a one-way hash of the input value using SHA-256
	Hash(value string) string
}

type aesEncryptionService struct {
	key    []byte
	logger *logger.Logger
}

// NewEncryptionService creates a new encryption service using the master key from config
func NewEncryptionService(cfg *config.Configuration, logger *logger.Logger) (EncryptionService, error) {
	if cfg.Secrets.EncryptionKey == "" {
		return nil, ierr.NewError("master encryption key not configured").
			WithHint("Set secrets.encryptionkey before starting the service").
			Mark(ierr.ErrSystem)
	}

	key := []byte(cfg.Secrets.EncryptionKey)

	// Derive a consistent 32-byte key (256 bits) for AES-256
	if len(key) != 32 {
		hasher := sha256.New()
		hasher.Write(key)
		key = hasher.Sum(nil)
	}

	return &aesEncryptionService{
		key:    key,
		logger: logger,
	}, nil
}

// Encrypt encrypts plaintext using AES-GCM and returns base64-encoded ciphertext
func (s *aesEncryptionService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ierr.NewError("cannot encrypt empty value").
			WithHint("Plaintext must not be empty").
			Mark(ierr.ErrValidation)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create cipher block").
			Mark(ierr.ErrSystem)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create GCM").
			Mark(ierr.ErrSystem)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to generate nonce").
			Mark(ierr.ErrSystem)
	}

	// Encrypt and authenticate the plaintext, nonce prefixed
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64-encoded ciphertext using AES-GCM
func (s *aesEncryptionService) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", ierr.NewError("cannot decrypt empty value").
			WithHint("Ciphertext must not be empty").
			Mark(ierr.ErrValidation)
	}

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to decode ciphertext").
			Mark(ierr.ErrSystem)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create cipher block").
			Mark(ierr.ErrSystem)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to create GCM").
			Mark(ierr.ErrSystem)
	}

	nonceSize := gcm.NonceSize()
	if len(decoded) < nonceSize {
		return "", ierr.NewError("ciphertext too short").
			WithHint("Stored ciphertext is corrupted").
			Mark(ierr.ErrSystem)
	}

	nonce, ciphertextBytes := decoded[:nonceSize], decoded[nonceSize:]

	// GCM authentication makes a wrong or rotated key fail here rather
	// than return corrupted plaintext
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Ciphertext failed integrity verification").
			Mark(ierr.ErrSystem)
	}

	return string(plaintext), nil
}

// Hash creates a one-way hash of the input value using SHA-256
func (s *aesEncryptionService) Hash(value string) string {
	if value == "" {
		return ""
	}

	hasher := sha256.New()
	hasher.Write([]byte(value))
	return hex.EncodeToString(hasher.Sum(nil))
}

// GenerateRandomKey generates a random 32-byte key for AES-256
func GenerateRandomKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
