package security

import (
	"encoding/base64"
	"testing"

	"github.com/laia-connect/billing/internal/config"
	ierr "github.com/laia-connect/billing/internal/errors"
	"github.com/laia-connect/billing/internal/logger"
	"github.com/stretchr/testify/suite"
)

type EncryptionServiceSuite struct {
	suite.Suite
	encryption EncryptionService
}

func TestEncryptionService(t *testing.T) {
	suite.Run(t, new(EncryptionServiceSuite))
}

func (s *EncryptionServiceSuite) SetupTest() {
	cfg := config.GetDefaultConfig()
	cfg.Secrets.EncryptionKey = "test-encryption-key-for-unit-tests-only"

	log, err := logger.NewLogger(cfg)
	s.Require().NoError(err)

	s.encryption, err = NewEncryptionService(cfg, log)
	s.Require().NoError(err)
}

func (s *EncryptionServiceSuite) TestRoundTrip() {
	plaintext := "FR1420041010050500013M02606"

	ciphertext, err := s.encryption.Encrypt(plaintext)
	s.NoError(err)
	s.NotEqual(plaintext, ciphertext)
	s.NotContains(ciphertext, "2004")

	decrypted, err := s.encryption.Decrypt(ciphertext)
	s.NoError(err)
	s.Equal(plaintext, decrypted)
}

func (s *EncryptionServiceSuite) TestNonceMakesCiphertextsDiffer() {
	first, err := s.encryption.Encrypt("BNPAFRPP")
	s.NoError(err)
	second, err := s.encryption.Encrypt("BNPAFRPP")
	s.NoError(err)
	s.NotEqual(first, second)
}

func (s *EncryptionServiceSuite) TestTamperedCiphertextRejected() {
	ciphertext, err := s.encryption.Encrypt("FR1420041010050500013M02606")
	s.NoError(err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	s.Require().NoError(err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = s.encryption.Decrypt(tampered)
	s.Error(err)
}

func (s *EncryptionServiceSuite) TestWrongKeyFailsAuthentication() {
	ciphertext, err := s.encryption.Encrypt("FR1420041010050500013M02606")
	s.NoError(err)

	cfg := config.GetDefaultConfig()
	cfg.Secrets.EncryptionKey = "a-completely-different-master-key"
	log, err := logger.NewLogger(cfg)
	s.Require().NoError(err)
	other, err := NewEncryptionService(cfg, log)
	s.Require().NoError(err)

	_, err = other.Decrypt(ciphertext)
	s.Error(err)
}

func (s *EncryptionServiceSuite) TestEmptyValuesRejected() {
	_, err := s.encryption.Encrypt("")
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.encryption.Decrypt("")
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *EncryptionServiceSuite) TestMissingKeyRefusesConstruction() {
	cfg := config.GetDefaultConfig()
	cfg.Secrets.EncryptionKey = ""
	log, err := logger.NewLogger(cfg)
	s.Require().NoError(err)

	_, err = NewEncryptionService(cfg, log)
	s.Error(err)
}

func (s *EncryptionServiceSuite) TestHashIsDeterministic() {
	s.Equal(s.encryption.Hash("value"), s.encryption.Hash("value"))
	s.NotEqual(s.encryption.Hash("value"), s.encryption.Hash("other"))
	s.Empty(s.encryption.Hash(""))
}
