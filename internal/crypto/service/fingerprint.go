package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

const fingerprintInfo = "idempotency-fingerprint-v1"

// Fingerprinter computes keyed digests of request payloads so idempotency records
// can detect a changed payload without storing anything derived from plaintext
// that could be brute-forced offline.
type Fingerprinter struct {
	kekChain *cryptoDomain.KekChain
}

// NewFingerprinter creates a Fingerprinter keyed from the KEK chain.
func NewFingerprinter(kekChain *cryptoDomain.KekChain) *Fingerprinter {
	return &Fingerprinter{kekChain: kekChain}
}

// Sum returns "<kek id>:<hex hmac>" over the length-prefixed parts, keyed with
// the active KEK.
func (f *Fingerprinter) Sum(parts ...[]byte) (string, error) {
	return f.SumWith(f.kekChain.ActiveKekID(), parts...)
}

// SumWith is Sum keyed with a specific KEK, used to compare against a stored fingerprint.
func (f *Fingerprinter) SumWith(kekID string, parts ...[]byte) (string, error) {
	kek, ok := f.kekChain.Get(kekID)
	if !ok {
		return "", fmt.Errorf("%w: %s", cryptoDomain.ErrKekNotFound, kekID)
	}

	key := make([]byte, 32)
	defer cryptoDomain.Zero(key)
	reader := hkdf.New(sha256.New, kek.Key, nil, []byte(fingerprintInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return "", fmt.Errorf("failed to derive fingerprint key: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	var length [8]byte
	for _, part := range parts {
		binary.BigEndian.PutUint64(length[:], uint64(len(part)))
		mac.Write(length[:])
		mac.Write(part)
	}
	return kekID + ":" + hex.EncodeToString(mac.Sum(nil)), nil
}

// Matches reports whether parts produce the stored fingerprint.
func (f *Fingerprinter) Matches(stored string, parts ...[]byte) (bool, error) {
	kekID, _, ok := strings.Cut(stored, ":")
	if !ok {
		return false, nil
	}
	sum, err := f.SumWith(kekID, parts...)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(sum), []byte(stored)), nil
}
