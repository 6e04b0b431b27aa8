package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/secretbroker/internal/config"
	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	cryptoService "github.com/allisson/secretbroker/internal/crypto/service"
	"github.com/allisson/secretbroker/internal/database"
	"github.com/allisson/secretbroker/internal/errors"
)

const (
	// maxWrapAttempts bounds how often Wrap retries after losing a rotation race.
	maxWrapAttempts = 3

	defaultRotationBatchSize   = 500
	defaultRotationConcurrency = 4
)

// EnvelopeOptions tunes the envelope engine.
type EnvelopeOptions struct {
	// Algorithm is the AEAD used by newly created DEKs.
	Algorithm cryptoDomain.Algorithm
	// RotationBatchSize bounds how many expired DEKs one sweep rotates.
	RotationBatchSize int
	// RotationConcurrency bounds how many owners a sweep rotates in parallel.
	RotationConcurrency int
}

// ownerSlot serializes DEK creation and rotation for one owner and publishes the
// owner's active DEK for lock-free reads.
type ownerSlot struct {
	mu     sync.Mutex
	active atomic.Pointer[cryptoDomain.Dek]
}

type envelopeUseCase struct {
	txManager   database.TxManager
	dekRepo     DekRepository
	keyManager  cryptoService.KeyManager
	aeadManager cryptoService.AEADManager
	nonceGuard  cryptoService.NonceGuard
	kekChain    *cryptoDomain.KekChain
	settings    config.SettingsProvider
	opts        EnvelopeOptions
	logger      *slog.Logger
	slots       sync.Map // owner id -> *ownerSlot
	now         func() time.Time
}

// NewEnvelopeUseCase creates the envelope encryption engine.
func NewEnvelopeUseCase(
	txManager database.TxManager,
	dekRepo DekRepository,
	keyManager cryptoService.KeyManager,
	aeadManager cryptoService.AEADManager,
	nonceGuard cryptoService.NonceGuard,
	kekChain *cryptoDomain.KekChain,
	settings config.SettingsProvider,
	opts EnvelopeOptions,
	logger *slog.Logger,
) EnvelopeUseCase {
	if opts.Algorithm == "" {
		opts.Algorithm = cryptoDomain.AESGCM
	}
	if opts.RotationBatchSize <= 0 {
		opts.RotationBatchSize = defaultRotationBatchSize
	}
	if opts.RotationConcurrency <= 0 {
		opts.RotationConcurrency = defaultRotationConcurrency
	}
	return &envelopeUseCase{
		txManager:   txManager,
		dekRepo:     dekRepo,
		keyManager:  keyManager,
		aeadManager: aeadManager,
		nonceGuard:  nonceGuard,
		kekChain:    kekChain,
		settings:    settings,
		opts:        opts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Wrap encrypts plaintext under the owner's active DEK.
func (e *envelopeUseCase) Wrap(
	ctx context.Context,
	ownerID string,
	plaintext []byte,
) (*cryptoDomain.Envelope, error) {
	if ownerID == "" {
		return nil, cryptoDomain.ErrInvalidOwnerID
	}

	ctx, cancel := e.withStorageTimeout(ctx)
	defer cancel()

	for attempt := 0; attempt < maxWrapAttempts; attempt++ {
		dek, err := e.activeDek(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		nonce, err := e.nonceGuard.Next(dek.ID)
		if err != nil {
			if errors.Is(err, cryptoDomain.ErrNonceGuardFull) {
				if err := e.rotateIfCurrent(ctx, ownerID, dek); err != nil {
					return nil, err
				}
				continue
			}
			if errors.Is(err, cryptoDomain.ErrNonceReuse) {
				e.logger.Error("nonce reuse detected, refusing to encrypt",
					slog.String("owner_id", ownerID),
					slog.String("dek_id", dek.ID.String()),
				)
			}
			return nil, err
		}

		usage, err := e.dekRepo.IncrementUsage(ctx, dek.ID)
		if err != nil {
			if errors.Is(err, cryptoDomain.ErrDekRetired) {
				// Rotated by another process; drop the stale DEK and reload.
				e.slot(ownerID).active.CompareAndSwap(dek, nil)
				e.nonceGuard.Forget(dek.ID)
				continue
			}
			return nil, err
		}
		if usage > e.maxUsages() {
			if err := e.rotateIfCurrent(ctx, ownerID, dek); err != nil {
				return nil, err
			}
			continue
		}

		ciphertext, err := e.seal(dek, nonce, plaintext)
		if err != nil {
			return nil, err
		}
		return &cryptoDomain.Envelope{
			OwnerID:    ownerID,
			Ciphertext: ciphertext,
			Nonce:      nonce,
			DekID:      dek.ID,
		}, nil
	}

	return nil, errors.Wrap(errors.ErrUnavailable, "could not obtain a usable dek")
}

// Unwrap decrypts an envelope with the DEK it names.
func (e *envelopeUseCase) Unwrap(ctx context.Context, envelope *cryptoDomain.Envelope) ([]byte, error) {
	if envelope == nil || envelope.OwnerID == "" || len(envelope.Nonce) != cryptoDomain.NonceSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	ctx, cancel := e.withStorageTimeout(ctx)
	defer cancel()

	dek, err := e.lookupDek(ctx, envelope)
	if err != nil {
		return nil, err
	}
	if dek.OwnerID != envelope.OwnerID {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	kek, ok := e.kekChain.Get(dek.KekID)
	if !ok {
		return nil, errors.Wrapf(cryptoDomain.ErrKekNotFound, "dek %s", dek.ID)
	}

	dekKey, err := e.keyManager.DecryptDek(dek, kek)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dekKey)

	aead, err := e.aeadManager.CreateCipher(dekKey, dek.Algorithm)
	if err != nil {
		return nil, err
	}
	return aead.Decrypt(envelope.Ciphertext, envelope.Nonce, cryptoDomain.DataAAD(envelope.OwnerID, dek.ID))
}

// RotateDek retires the owner's current DEK, if any, and creates a fresh one.
func (e *envelopeUseCase) RotateDek(ctx context.Context, ownerID string) (*cryptoDomain.Dek, error) {
	if ownerID == "" {
		return nil, cryptoDomain.ErrInvalidOwnerID
	}

	ctx, cancel := e.withStorageTimeout(ctx)
	defer cancel()

	slot := e.slot(ownerID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	// Storage is authoritative here: another process may have rotated already.
	current, err := e.dekRepo.GetActiveByOwner(ctx, ownerID)
	if err != nil && !errors.Is(err, cryptoDomain.ErrDekNotFound) {
		return nil, err
	}
	if errors.Is(err, cryptoDomain.ErrDekNotFound) {
		current = nil
	}

	dek, err := e.createDek(ctx, ownerID, current)
	if err != nil {
		return nil, err
	}
	slot.active.Store(dek)
	return dek, nil
}

// RotateExpiredDeks rotates active DEKs past the maximum age.
func (e *envelopeUseCase) RotateExpiredDeks(ctx context.Context) (int, error) {
	maxAge := e.settings.Settings().DEKMaxAge
	if maxAge <= 0 {
		return 0, nil
	}

	listCtx, cancel := e.withStorageTimeout(ctx)
	deks, err := e.dekRepo.ListActiveCreatedBefore(listCtx, e.now().Add(-maxAge), e.opts.RotationBatchSize)
	cancel()
	if err != nil {
		return 0, err
	}

	var rotated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.RotationConcurrency)

	for _, dek := range deks {
		g.Go(func() error {
			rotateCtx, cancel := e.withStorageTimeout(gctx)
			defer cancel()

			if err := e.rotateIfCurrent(rotateCtx, dek.OwnerID, dek); err != nil {
				e.logger.Warn("failed to rotate expired dek",
					slog.String("owner_id", dek.OwnerID),
					slog.String("dek_id", dek.ID.String()),
					slog.Any("error", err),
				)
				return nil
			}
			rotated.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(rotated.Load()), err
	}
	return int(rotated.Load()), ctx.Err()
}

// RewrapDeks re-wraps one batch of DEKs under the active KEK.
func (e *envelopeUseCase) RewrapDeks(ctx context.Context, batchSize int) (int, error) {
	target, ok := e.kekChain.Active()
	if !ok {
		return 0, cryptoDomain.ErrActiveKekNotFound
	}

	var rewrapped []*cryptoDomain.Dek
	err := e.txManager.WithTx(ctx, func(ctx context.Context) error {
		deks, err := e.dekRepo.ListNotWrappedBy(ctx, target.ID, batchSize)
		if err != nil {
			return err
		}

		for _, dek := range deks {
			current, ok := e.kekChain.Get(dek.KekID)
			if !ok {
				return errors.Wrapf(cryptoDomain.ErrKekNotFound, "dek %s is wrapped under %s", dek.ID, dek.KekID)
			}
			if err := e.keyManager.RewrapDek(dek, current, target); err != nil {
				return err
			}
			if err := e.dekRepo.UpdateWrapping(ctx, dek); err != nil {
				return err
			}
		}
		rewrapped = deks
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Cached active DEKs still carry the old wrapping; refresh them.
	for _, dek := range rewrapped {
		if value, ok := e.slots.Load(dek.OwnerID); ok {
			slot := value.(*ownerSlot)
			if cur := slot.active.Load(); cur != nil && cur.ID == dek.ID {
				slot.active.CompareAndSwap(cur, dek)
			}
		}
	}
	return len(rewrapped), nil
}

// activeDek returns the owner's usable DEK. The fast path reads the published
// DEK; the slow path takes the owner lock and checks again before touching storage.
func (e *envelopeUseCase) activeDek(ctx context.Context, ownerID string) (*cryptoDomain.Dek, error) {
	slot := e.slot(ownerID)
	if dek := slot.active.Load(); dek != nil && !e.expired(dek) {
		return dek, nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if dek := slot.active.Load(); dek != nil && !e.expired(dek) {
		return dek, nil
	}

	dek, err := e.dekRepo.GetActiveByOwner(ctx, ownerID)
	switch {
	case errors.Is(err, cryptoDomain.ErrDekNotFound):
		dek, err = e.createDek(ctx, ownerID, nil)
	case err != nil:
		return nil, err
	case e.expired(dek):
		dek, err = e.createDek(ctx, ownerID, dek)
	}
	if err != nil {
		return nil, err
	}

	slot.active.Store(dek)
	return dek, nil
}

// rotateIfCurrent rotates stale unless the owner has already moved past it.
func (e *envelopeUseCase) rotateIfCurrent(ctx context.Context, ownerID string, stale *cryptoDomain.Dek) error {
	slot := e.slot(ownerID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if cur := slot.active.Load(); cur != nil && cur.ID != stale.ID {
		return nil
	}

	dek, err := e.createDek(ctx, ownerID, stale)
	if err != nil {
		return err
	}
	slot.active.Store(dek)
	return nil
}

// createDek creates a new active DEK for the owner, retiring previous in the same
// transaction. When another process wins the race its DEK is returned instead.
// Callers must hold the owner's slot lock.
func (e *envelopeUseCase) createDek(
	ctx context.Context,
	ownerID string,
	previous *cryptoDomain.Dek,
) (*cryptoDomain.Dek, error) {
	kek, ok := e.kekChain.Active()
	if !ok {
		return nil, cryptoDomain.ErrActiveKekNotFound
	}

	dek, err := e.keyManager.CreateDek(kek, ownerID, e.opts.Algorithm)
	if err != nil {
		return nil, err
	}

	err = e.txManager.WithTx(ctx, func(ctx context.Context) error {
		if previous != nil {
			err := e.dekRepo.Retire(ctx, previous.ID, e.now())
			if err != nil && !errors.Is(err, cryptoDomain.ErrDekRetired) {
				return err
			}
		}
		return e.dekRepo.Create(ctx, dek)
	})
	if errors.Is(err, cryptoDomain.ErrActiveDekConflict) {
		return e.dekRepo.GetActiveByOwner(ctx, ownerID)
	}
	if err != nil {
		return nil, err
	}

	if previous != nil {
		e.nonceGuard.Forget(previous.ID)
		e.logger.Info("dek rotated",
			slog.String("owner_id", ownerID),
			slog.String("retired_dek_id", previous.ID.String()),
			slog.String("dek_id", dek.ID.String()),
		)
	} else {
		e.logger.Info("dek created",
			slog.String("owner_id", ownerID),
			slog.String("dek_id", dek.ID.String()),
		)
	}
	return dek, nil
}

// lookupDek prefers the published active DEK over a storage round trip.
func (e *envelopeUseCase) lookupDek(ctx context.Context, envelope *cryptoDomain.Envelope) (*cryptoDomain.Dek, error) {
	if value, ok := e.slots.Load(envelope.OwnerID); ok {
		if dek := value.(*ownerSlot).active.Load(); dek != nil && dek.ID == envelope.DekID {
			return dek, nil
		}
	}

	dek, err := e.dekRepo.Get(ctx, envelope.DekID)
	if errors.Is(err, cryptoDomain.ErrDekNotFound) {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return dek, err
}

func (e *envelopeUseCase) seal(dek *cryptoDomain.Dek, nonce, plaintext []byte) ([]byte, error) {
	kek, ok := e.kekChain.Get(dek.KekID)
	if !ok {
		return nil, errors.Wrapf(cryptoDomain.ErrKekNotFound, "dek %s", dek.ID)
	}

	dekKey, err := e.keyManager.DecryptDek(dek, kek)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dekKey)

	aead, err := e.aeadManager.CreateCipher(dekKey, dek.Algorithm)
	if err != nil {
		return nil, err
	}
	return aead.EncryptWithNonce(nonce, plaintext, cryptoDomain.DataAAD(dek.OwnerID, dek.ID))
}

func (e *envelopeUseCase) slot(ownerID string) *ownerSlot {
	if value, ok := e.slots.Load(ownerID); ok {
		return value.(*ownerSlot)
	}
	value, _ := e.slots.LoadOrStore(ownerID, &ownerSlot{})
	return value.(*ownerSlot)
}

// expired reports whether dek crossed a threshold by its stored state. Usage
// counted since it was loaded is checked against IncrementUsage results in Wrap.
func (e *envelopeUseCase) expired(dek *cryptoDomain.Dek) bool {
	s := e.settings.Settings()
	return dek.NeedsRotation(e.now(), s.DEKMaxAge, s.DEKMaxUsages)
}

func (e *envelopeUseCase) maxUsages() int64 {
	limit := e.settings.Settings().DEKMaxUsages
	if limit <= 0 || limit > cryptoDomain.MaxDekUsages {
		return cryptoDomain.MaxDekUsages
	}
	return limit
}

func (e *envelopeUseCase) withStorageTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.settings.Settings().StorageTimeout
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
