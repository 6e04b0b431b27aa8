package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/secretbroker/internal/errors"
)

// Client secret hash policies accepted by NewClientSecretService.
const (
	HashPolicyModerate    = "moderate"
	HashPolicyInteractive = "interactive"
)

// clientSecretLength is the number of random bytes behind a generated client secret.
const clientSecretLength = 32

type clientSecretService struct {
	hasher *pwdhash.PasswordHasher
	// decoy is hashed at construction and verified against when there is no stored
	// hash, so unknown client ids cost as much as wrong secrets.
	decoy string
}

// NewClientSecretService returns an Argon2id backed ClientSecretService. An empty policy
// means HashPolicyModerate.
func NewClientSecretService(policy string) (ClientSecretService, error) {
	var (
		hasher *pwdhash.PasswordHasher
		err    error
	)
	switch policy {
	case "", HashPolicyModerate:
		hasher, err = pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	case HashPolicyInteractive:
		hasher, err = pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	default:
		return nil, fmt.Errorf("unknown client secret hash policy %q", policy)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create password hasher")
	}

	decoyBytes := make([]byte, clientSecretLength)
	if _, err := rand.Read(decoyBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate decoy secret")
	}
	decoy, err := hasher.Hash(decoyBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash decoy secret")
	}

	return &clientSecretService{hasher: hasher, decoy: decoy}, nil
}

// GenerateSecret returns a URL-safe base64 secret of 32 random bytes and its hash.
func (s *clientSecretService) GenerateSecret() (plainSecret string, hashedSecret string, err error) {
	randomBytes := make([]byte, clientSecretLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate random secret")
	}
	plainSecret = base64.URLEncoding.EncodeToString(randomBytes)

	hashedSecret, err = s.HashSecret(plainSecret)
	if err != nil {
		return "", "", err
	}
	return plainSecret, hashedSecret, nil
}

func (s *clientSecretService) HashSecret(plainSecret string) (string, error) {
	hashedSecret, err := s.hasher.Hash([]byte(plainSecret))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash secret")
	}
	return hashedSecret, nil
}

// CompareSecret verifies plainSecret in constant time. An empty hashedSecret is
// checked against the decoy and always reports false.
func (s *clientSecretService) CompareSecret(plainSecret string, hashedSecret string) bool {
	if hashedSecret == "" {
		_, _ = s.hasher.Verify([]byte(plainSecret), s.decoy)
		return false
	}
	ok, err := s.hasher.Verify([]byte(plainSecret), hashedSecret)
	return err == nil && ok
}
