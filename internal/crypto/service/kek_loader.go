package service

import (
	"context"
	"fmt"
	"time"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	apperrors "github.com/allisson/secretbroker/internal/errors"
)

// KekLoaderConfig describes where the KEK chain comes from.
type KekLoaderConfig struct {
	// Raw is the KEKS value, "id:base64" entries separated by commas.
	Raw string
	// ActiveID is the KEK wrapping new DEKs.
	ActiveID string
	// KMSKeyURI, when set, means each entry is a KMS ciphertext to decrypt.
	KMSKeyURI string
	// Timeout bounds each KMS call.
	Timeout time.Duration
}

// LoadKekChain builds the in-memory KEK chain. With a KMS URI every entry is
// decrypted through the keeper, otherwise entries are the plaintext keys.
func LoadKekChain(ctx context.Context, cfg KekLoaderConfig, kms KMSService) (*cryptoDomain.KekChain, error) {
	entries, err := cryptoDomain.ParseKekEntries(cfg.Raw)
	if err != nil {
		return nil, err
	}

	keks := make([]*cryptoDomain.Kek, 0, len(entries))
	closeAll := func() {
		for _, kek := range keks {
			cryptoDomain.Zero(kek.Key)
		}
	}

	if cfg.KMSKeyURI == "" {
		for _, entry := range entries {
			keks = append(keks, &cryptoDomain.Kek{ID: entry.ID, Key: entry.Material})
		}
	} else {
		keeper, err := kms.OpenKeeper(ctx, cfg.KMSKeyURI)
		if err != nil {
			return nil, err
		}
		defer func() { _ = keeper.Close() }()

		for _, entry := range entries {
			key, err := decryptWithTimeout(ctx, keeper, entry.Material, cfg.Timeout)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("failed to decrypt KEK %s: %w", entry.ID, err)
			}
			keks = append(keks, &cryptoDomain.Kek{ID: entry.ID, Key: key})
		}
	}

	chain, err := cryptoDomain.NewKekChain(cfg.ActiveID, keks)
	if err != nil {
		closeAll()
		return nil, err
	}
	return chain, nil
}

// EncryptKek encrypts KEK material with the keeper so it can be placed in KEKS.
func EncryptKek(ctx context.Context, keeper KMSKeeper, key []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ciphertext, err := keeper.Encrypt(ctx, key)
	if err != nil {
		return nil, kmsError(ctx, err, "failed to encrypt KEK")
	}
	return ciphertext, nil
}

func decryptWithTimeout(ctx context.Context, keeper KMSKeeper, ciphertext []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	key, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, kmsError(ctx, err, "kms decrypt failed")
	}
	return key, nil
}

func kmsError(ctx context.Context, err error, message string) error {
	if ctx.Err() != nil {
		return apperrors.WrapCause(apperrors.ErrUnavailable, ctx.Err(), message)
	}
	return apperrors.Wrap(err, message)
}
