package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/secretbroker/internal/config"
	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	cryptoUsecase "github.com/allisson/secretbroker/internal/crypto/usecase"
	"github.com/allisson/secretbroker/internal/database"
	apperrors "github.com/allisson/secretbroker/internal/errors"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

// secretUseCase implements the SecretUseCase interface for managing secrets.
type secretUseCase struct {
	txManager       database.TxManager
	secretRepo      SecretRepository
	idempotencyRepo IdempotencyRepository
	envelope        cryptoUsecase.EnvelopeUseCase
	fingerprinter   Fingerprinter
	settings        config.SettingsProvider
	locks           *secretLocks
	logger          *slog.Logger
	now             func() time.Time
}

// NewSecretUseCase creates a new SecretUseCase.
func NewSecretUseCase(
	txManager database.TxManager,
	secretRepo SecretRepository,
	idempotencyRepo IdempotencyRepository,
	envelope cryptoUsecase.EnvelopeUseCase,
	fingerprinter Fingerprinter,
	settings config.SettingsProvider,
	logger *slog.Logger,
) SecretUseCase {
	return &secretUseCase{
		txManager:       txManager,
		secretRepo:      secretRepo,
		idempotencyRepo: idempotencyRepo,
		envelope:        envelope,
		fingerprinter:   fingerprinter,
		settings:        settings,
		locks:           newSecretLocks(),
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Put encrypts the plaintext and appends it as the next version.
func (s *secretUseCase) Put(
	ctx context.Context,
	input *secretsDomain.PutInput,
) (*secretsDomain.PutOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unlock, err := s.locks.lock(ctx, secretKey(input.OwnerID, input.Name))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var fingerprint string
	if input.IdempotencyKey != "" {
		fingerprint, err = s.fingerprinter.Sum([]byte(input.OwnerID), []byte(input.Name), input.Plaintext)
		if err != nil {
			return nil, err
		}

		// Replays are answered before spending a nonce on a DEK.
		output, err := s.replay(ctx, input)
		if err != nil || output != nil {
			return output, err
		}
	}

	envelope, err := s.envelope.Wrap(ctx, input.OwnerID, input.Plaintext)
	if err != nil {
		return nil, err
	}

	var output *secretsDomain.PutOutput
	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		now := s.now()
		if err := s.secretRepo.EnsureSecret(txCtx, input.OwnerID, input.Name, now); err != nil {
			return err
		}

		head, err := s.secretRepo.GetForUpdate(txCtx, input.OwnerID, input.Name)
		if err != nil {
			return err
		}

		// Authoritative check under the row lock; another process may have
		// committed the same key since the pre-check.
		if input.IdempotencyKey != "" {
			replayed, err := s.replay(txCtx, input)
			if err != nil {
				return err
			}
			if replayed != nil {
				output = replayed
				return nil
			}
		}

		version := head.NextVersion()
		if err := s.secretRepo.CreateVersion(txCtx, &secretsDomain.SecretVersion{
			OwnerID:    input.OwnerID,
			Name:       input.Name,
			Version:    version,
			DekID:      envelope.DekID,
			Ciphertext: envelope.Ciphertext,
			Nonce:      envelope.Nonce,
			Status:     secretsDomain.VersionStatusActive,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		head.LatestVersion = version
		head.ActiveVersion = &version
		head.UpdatedAt = now
		if err := s.secretRepo.UpdateHead(txCtx, head); err != nil {
			return err
		}

		if input.IdempotencyKey != "" {
			if err := s.idempotencyRepo.Save(txCtx, &secretsDomain.IdempotencyRecord{
				OwnerID:     input.OwnerID,
				Name:        input.Name,
				Key:         input.IdempotencyKey,
				RequestHash: fingerprint,
				Version:     version,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}

		output = &secretsDomain.PutOutput{Version: version, CreatedAt: now}
		return nil
	})
	if err != nil {
		if apperrors.Is(err, cryptoDomain.ErrNonceReuse) {
			s.logger.Error("nonce reuse rejected by storage",
				slog.String("owner_id", input.OwnerID),
				slog.String("name", input.Name),
				slog.String("dek_id", envelope.DekID.String()),
			)
		}
		return nil, err
	}

	if !output.Replayed {
		s.logger.Info("secret version stored",
			slog.String("owner_id", input.OwnerID),
			slog.String("name", input.Name),
			slog.Uint64("version", uint64(output.Version)),
			slog.String("dek_id", envelope.DekID.String()),
		)
	}
	return output, nil
}

// replay returns the recorded outcome for the put's idempotency key, nil when
// there is no live record, or ErrIdempotencyKeyReused when the payload differs.
func (s *secretUseCase) replay(
	ctx context.Context,
	input *secretsDomain.PutInput,
) (*secretsDomain.PutOutput, error) {
	record, err := s.idempotencyRepo.Get(ctx, input.OwnerID, input.Name, input.IdempotencyKey)
	if apperrors.Is(err, secretsDomain.ErrIdempotencyRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.now().Sub(record.CreatedAt) >= s.settings.Settings().IdempotencyTTL {
		return nil, nil
	}

	matches, err := s.fingerprinter.Matches(
		record.RequestHash,
		[]byte(input.OwnerID),
		[]byte(input.Name),
		input.Plaintext,
	)
	if err != nil {
		return nil, err
	}
	if !matches {
		return nil, secretsDomain.ErrIdempotencyKeyReused
	}
	return &secretsDomain.PutOutput{Version: record.Version, CreatedAt: record.CreatedAt, Replayed: true}, nil
}

// Get retrieves and decrypts a version of the secret.
func (s *secretUseCase) Get(
	ctx context.Context,
	ownerID, name string,
	version *uint,
) (*secretsDomain.SecretVersion, error) {
	if err := secretsDomain.ValidateRef(ownerID, name); err != nil {
		return nil, err
	}
	if version != nil {
		if err := secretsDomain.ValidateVersion(*version); err != nil {
			return nil, err
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	head, err := s.secretRepo.Get(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}

	target := head.ActiveVersion
	if version != nil {
		target = version
	}
	if target == nil {
		return nil, secretsDomain.ErrNoActiveVersion
	}

	secretVersion, err := s.secretRepo.GetVersion(ctx, ownerID, name, *target)
	if err != nil {
		return nil, err
	}
	if secretVersion.IsRevoked() {
		return nil, secretsDomain.ErrVersionRevoked
	}

	plaintext, err := s.envelope.Unwrap(ctx, secretVersion.Envelope())
	if err != nil {
		if apperrors.Is(err, apperrors.ErrIntegrity) {
			s.logger.Error("secret version failed integrity check",
				slog.String("owner_id", ownerID),
				slog.String("name", name),
				slog.Uint64("version", uint64(secretVersion.Version)),
				slog.String("dek_id", secretVersion.DekID.String()),
			)
		}
		return nil, err
	}

	secretVersion.Plaintext = plaintext
	return secretVersion, nil
}

// ListVersions returns the secret head and a page of version metadata.
func (s *secretUseCase) ListVersions(
	ctx context.Context,
	ownerID, name string,
	offset, limit int,
) (*secretsDomain.Secret, []*secretsDomain.SecretVersion, error) {
	if err := secretsDomain.ValidateRef(ownerID, name); err != nil {
		return nil, nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	head, err := s.secretRepo.Get(ctx, ownerID, name)
	if err != nil {
		return nil, nil, err
	}

	versions, err := s.secretRepo.ListVersions(ctx, ownerID, name, offset, limit)
	if err != nil {
		return nil, nil, err
	}
	return head, versions, nil
}

// Revoke revokes a version without promoting another.
func (s *secretUseCase) Revoke(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	var revoked *secretsDomain.SecretVersion
	var wasActive bool

	err := s.mutate(ctx, ownerID, name, version, func(
		txCtx context.Context,
		head *secretsDomain.Secret,
		target *secretsDomain.SecretVersion,
	) error {
		revoked = target
		if target.IsRevoked() {
			return nil
		}

		now := s.now()
		if err := s.secretRepo.RevokeVersion(txCtx, ownerID, name, version, now); err != nil {
			return err
		}
		target.Status = secretsDomain.VersionStatusRevoked
		target.RevokedAt = &now

		if head.IsActiveVersion(version) {
			wasActive = true
			head.ActiveVersion = nil
			head.UpdatedAt = now
			return s.secretRepo.UpdateHead(txCtx, head)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("secret version revoked",
		slog.String("owner_id", ownerID),
		slog.String("name", name),
		slog.Uint64("version", uint64(version)),
		slog.Bool("was_active", wasActive),
	)
	return revoked, nil
}

// Promote points the secret's active version at a non-revoked version.
func (s *secretUseCase) Promote(
	ctx context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	var promoted *secretsDomain.SecretVersion

	err := s.mutate(ctx, ownerID, name, version, func(
		txCtx context.Context,
		head *secretsDomain.Secret,
		target *secretsDomain.SecretVersion,
	) error {
		if target.IsRevoked() {
			return secretsDomain.ErrVersionRevoked
		}
		promoted = target
		if head.IsActiveVersion(version) {
			return nil
		}

		promotedVersion := version
		head.ActiveVersion = &promotedVersion
		head.UpdatedAt = s.now()
		return s.secretRepo.UpdateHead(txCtx, head)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("secret version promoted",
		slog.String("owner_id", ownerID),
		slog.String("name", name),
		slog.Uint64("version", uint64(version)),
	)
	return promoted, nil
}

// mutate runs fn under the secret lock in a transaction holding the head row lock.
func (s *secretUseCase) mutate(
	ctx context.Context,
	ownerID, name string,
	version uint,
	fn func(txCtx context.Context, head *secretsDomain.Secret, target *secretsDomain.SecretVersion) error,
) error {
	if err := secretsDomain.ValidateRef(ownerID, name); err != nil {
		return err
	}
	if err := secretsDomain.ValidateVersion(version); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unlock, err := s.locks.lock(ctx, secretKey(ownerID, name))
	if err != nil {
		return err
	}
	defer unlock()

	return s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		head, err := s.secretRepo.GetForUpdate(txCtx, ownerID, name)
		if err != nil {
			return err
		}
		target, err := s.secretRepo.GetVersion(txCtx, ownerID, name, version)
		if err != nil {
			return err
		}
		// Metadata only leaves this use case.
		target.Ciphertext = nil
		target.Nonce = nil
		return fn(txCtx, head, target)
	})
}

// PurgeIdempotencyKeys removes idempotency records older than the TTL.
func (s *secretUseCase) PurgeIdempotencyKeys(ctx context.Context, dryRun bool) (int64, error) {
	olderThan := s.now().Add(-s.settings.Settings().IdempotencyTTL)
	return s.idempotencyRepo.DeleteOlderThan(ctx, olderThan, dryRun)
}

func (s *secretUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.settings.Settings().StorageTimeout
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
