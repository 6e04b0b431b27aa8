package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	apperrors "github.com/allisson/secretbroker/internal/errors"
)

const (
	// TokenPrefix marks bearer tokens issued by the broker so leaked tokens are easy to
	// recognize in logs and secret scanners.
	TokenPrefix = "sbt_"

	tokenEntropyBytes = 32
)

type tokenService struct{}

// NewTokenService returns a TokenService storing SHA-256 digests of tokens. Tokens
// carry 256 bits of entropy, so a fast unsalted digest is enough.
func NewTokenService() TokenService {
	return &tokenService{}
}

// GenerateToken returns a prefixed, unpadded base64url token and its digest.
func (t *tokenService) GenerateToken() (plainToken string, tokenHash string, err error) {
	randomBytes := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate random token")
	}

	plainToken = TokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return plainToken, t.HashToken(plainToken), nil
}

// HashToken returns the hex SHA-256 digest of the whole token, prefix included.
func (t *tokenService) HashToken(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}
