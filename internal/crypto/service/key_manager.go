package service

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// kekAlgorithm is the AEAD used to wrap DEK material under a KEK.
const kekAlgorithm = cryptoDomain.AESGCM

// KeyManagerService implements KeyManager.
//
// DEK material is wrapped under the KEK with the DEK id and owner as additional
// data, so a wrapped key only unwraps on the row it was created for.
type KeyManagerService struct {
	aeadManager AEADManager
}

// NewKeyManager creates a new KeyManagerService instance with the provided AEADManager.
func NewKeyManager(aeadManager AEADManager) *KeyManagerService {
	return &KeyManagerService{
		aeadManager: aeadManager,
	}
}

// CreateDek generates a random 32-byte DEK for ownerID and wraps it under kek.
// The returned DEK is active with a zero usage count.
func (km *KeyManagerService) CreateDek(
	kek *cryptoDomain.Kek,
	ownerID string,
	alg cryptoDomain.Algorithm,
) (*cryptoDomain.Dek, error) {
	if ownerID == "" {
		return nil, cryptoDomain.ErrInvalidOwnerID
	}
	if _, err := cryptoDomain.ParseAlgorithm(string(alg)); err != nil {
		return nil, err
	}

	dekKey := make([]byte, cryptoDomain.KeySize)
	defer cryptoDomain.Zero(dekKey)
	if _, err := rand.Read(dekKey); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %w", err)
	}

	dek := &cryptoDomain.Dek{
		ID:        uuid.Must(uuid.NewV7()),
		OwnerID:   ownerID,
		KekID:     kek.ID,
		Algorithm: alg,
		Status:    cryptoDomain.DekStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	if err := km.wrap(dek, kek, dekKey); err != nil {
		return nil, err
	}
	return dek, nil
}

// DecryptDek unwraps the DEK key material with kek.
func (km *KeyManagerService) DecryptDek(dek *cryptoDomain.Dek, kek *cryptoDomain.Kek) ([]byte, error) {
	if dek.KekID != kek.ID {
		return nil, fmt.Errorf("%w: dek %s is wrapped under %s", cryptoDomain.ErrKekNotFound, dek.ID, dek.KekID)
	}

	aead, err := km.aeadManager.CreateCipher(kek.Key, kekAlgorithm)
	if err != nil {
		return nil, err
	}

	dekKey, err := aead.Decrypt(dek.EncryptedKey, dek.Nonce, dek.WrapAAD())
	if err != nil {
		return nil, err
	}
	return dekKey, nil
}

// RewrapDek unwraps with current and wraps again under target.
func (km *KeyManagerService) RewrapDek(dek *cryptoDomain.Dek, current, target *cryptoDomain.Kek) error {
	dekKey, err := km.DecryptDek(dek, current)
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(dekKey)

	return km.wrap(dek, target, dekKey)
}

func (km *KeyManagerService) wrap(dek *cryptoDomain.Dek, kek *cryptoDomain.Kek, dekKey []byte) error {
	aead, err := km.aeadManager.CreateCipher(kek.Key, kekAlgorithm)
	if err != nil {
		return err
	}

	encryptedKey, nonce, err := aead.Encrypt(dekKey, dek.WrapAAD())
	if err != nil {
		return fmt.Errorf("failed to encrypt DEK: %w", err)
	}

	dek.KekID = kek.ID
	dek.EncryptedKey = encryptedKey
	dek.Nonce = nonce
	return nil
}
