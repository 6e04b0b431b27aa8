// Package mocks provides test doubles for the crypto use cases.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

// MemoryDekRepository is an in-memory DekRepository enforcing one active DEK per
// owner, like the unique index of the SQL implementations. Stored DEKs are copied
// in and out so callers never share state with the repository.
type MemoryDekRepository struct {
	mu       sync.Mutex
	deks     map[uuid.UUID]*cryptoDomain.Dek
	creates  int
	getCalls int
}

// NewMemoryDekRepository creates an empty repository.
func NewMemoryDekRepository() *MemoryDekRepository {
	return &MemoryDekRepository{deks: make(map[uuid.UUID]*cryptoDomain.Dek)}
}

func (r *MemoryDekRepository) Create(_ context.Context, dek *cryptoDomain.Dek) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dek.IsActive() {
		for _, d := range r.deks {
			if d.OwnerID == dek.OwnerID && d.IsActive() {
				return cryptoDomain.ErrActiveDekConflict
			}
		}
	}
	r.deks[dek.ID] = copyDek(dek)
	r.creates++
	return nil
}

func (r *MemoryDekRepository) Get(_ context.Context, dekID uuid.UUID) (*cryptoDomain.Dek, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.getCalls++
	dek, ok := r.deks[dekID]
	if !ok {
		return nil, cryptoDomain.ErrDekNotFound
	}
	return copyDek(dek), nil
}

func (r *MemoryDekRepository) GetActiveByOwner(_ context.Context, ownerID string) (*cryptoDomain.Dek, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dek := range r.deks {
		if dek.OwnerID == ownerID && dek.IsActive() {
			return copyDek(dek), nil
		}
	}
	return nil, cryptoDomain.ErrDekNotFound
}

func (r *MemoryDekRepository) Retire(_ context.Context, dekID uuid.UUID, retiredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dek, ok := r.deks[dekID]
	if !ok || !dek.IsActive() {
		return cryptoDomain.ErrDekRetired
	}
	dek.Status = cryptoDomain.DekStatusRetired
	dek.RetiredAt = &retiredAt
	return nil
}

func (r *MemoryDekRepository) IncrementUsage(_ context.Context, dekID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dek, ok := r.deks[dekID]
	if !ok || !dek.IsActive() {
		return 0, cryptoDomain.ErrDekRetired
	}
	dek.UsageCount++
	return dek.UsageCount, nil
}

func (r *MemoryDekRepository) ListActiveCreatedBefore(
	_ context.Context,
	before time.Time,
	limit int,
) ([]*cryptoDomain.Dek, error) {
	return r.filter(limit, func(d *cryptoDomain.Dek) bool {
		return d.IsActive() && d.CreatedAt.Before(before)
	}), nil
}

func (r *MemoryDekRepository) ListNotWrappedBy(
	_ context.Context,
	kekID string,
	limit int,
) ([]*cryptoDomain.Dek, error) {
	return r.filter(limit, func(d *cryptoDomain.Dek) bool {
		return d.KekID != kekID
	}), nil
}

func (r *MemoryDekRepository) UpdateWrapping(_ context.Context, dek *cryptoDomain.Dek) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.deks[dek.ID]
	if !ok {
		return cryptoDomain.ErrDekNotFound
	}
	stored.KekID = dek.KekID
	stored.EncryptedKey = append([]byte(nil), dek.EncryptedKey...)
	stored.Nonce = append([]byte(nil), dek.Nonce...)
	return nil
}

// Put stores dek as is, bypassing the active DEK check. Tests use it to seed
// DEKs with a chosen age or usage count.
func (r *MemoryDekRepository) Put(dek *cryptoDomain.Dek) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deks[dek.ID] = copyDek(dek)
}

// ByOwner returns every DEK of an owner ordered by creation time.
func (r *MemoryDekRepository) ByOwner(ownerID string) []*cryptoDomain.Dek {
	return r.filter(0, func(d *cryptoDomain.Dek) bool { return d.OwnerID == ownerID })
}

// Creates returns how many DEKs were stored through Create.
func (r *MemoryDekRepository) Creates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

// GetCalls returns how many times Get was invoked.
func (r *MemoryDekRepository) GetCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getCalls
}

func (r *MemoryDekRepository) filter(limit int, keep func(*cryptoDomain.Dek) bool) []*cryptoDomain.Dek {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*cryptoDomain.Dek
	for _, dek := range r.deks {
		if keep(dek) {
			out = append(out, copyDek(dek))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func copyDek(dek *cryptoDomain.Dek) *cryptoDomain.Dek {
	c := *dek
	c.EncryptedKey = append([]byte(nil), dek.EncryptedKey...)
	c.Nonce = append([]byte(nil), dek.Nonce...)
	if dek.RetiredAt != nil {
		t := *dek.RetiredAt
		c.RetiredAt = &t
	}
	return &c
}
