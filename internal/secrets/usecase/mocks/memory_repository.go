package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
	secretsDomain "github.com/allisson/secretbroker/internal/secrets/domain"
)

type secretRef struct {
	ownerID string
	name    string
}

type nonceRef struct {
	dekID uuid.UUID
	nonce string
}

// MemorySecretRepository is an in-memory SecretRepository with the same uniqueness
// rules as the SQL schema. It does not implement row locks.
type MemorySecretRepository struct {
	mu       sync.Mutex
	secrets  map[secretRef]*secretsDomain.Secret
	versions map[secretRef][]*secretsDomain.SecretVersion
	nonces   map[nonceRef]struct{}
}

// NewMemorySecretRepository creates an empty repository.
func NewMemorySecretRepository() *MemorySecretRepository {
	return &MemorySecretRepository{
		secrets:  make(map[secretRef]*secretsDomain.Secret),
		versions: make(map[secretRef][]*secretsDomain.SecretVersion),
		nonces:   make(map[nonceRef]struct{}),
	}
}

func (r *MemorySecretRepository) EnsureSecret(_ context.Context, ownerID, name string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := secretRef{ownerID, name}
	if _, ok := r.secrets[ref]; !ok {
		r.secrets[ref] = &secretsDomain.Secret{OwnerID: ownerID, Name: name, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (r *MemorySecretRepository) Get(_ context.Context, ownerID, name string) (*secretsDomain.Secret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	secret, ok := r.secrets[secretRef{ownerID, name}]
	if !ok {
		return nil, secretsDomain.ErrSecretNotFound
	}
	return copySecret(secret), nil
}

func (r *MemorySecretRepository) GetForUpdate(ctx context.Context, ownerID, name string) (*secretsDomain.Secret, error) {
	return r.Get(ctx, ownerID, name)
}

func (r *MemorySecretRepository) UpdateHead(_ context.Context, secret *secretsDomain.Secret) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := secretRef{secret.OwnerID, secret.Name}
	if _, ok := r.secrets[ref]; !ok {
		return secretsDomain.ErrSecretNotFound
	}
	r.secrets[ref] = copySecret(secret)
	return nil
}

func (r *MemorySecretRepository) CreateVersion(_ context.Context, version *secretsDomain.SecretVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := secretRef{version.OwnerID, version.Name}
	for _, v := range r.versions[ref] {
		if v.Version == version.Version {
			return secretsDomain.ErrVersionConflict
		}
	}
	nonce := nonceRef{version.DekID, string(version.Nonce)}
	if _, ok := r.nonces[nonce]; ok {
		return cryptoDomain.ErrNonceReuse
	}
	r.nonces[nonce] = struct{}{}
	r.versions[ref] = append(r.versions[ref], copyVersion(version))
	return nil
}

func (r *MemorySecretRepository) GetVersion(
	_ context.Context,
	ownerID, name string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.versions[secretRef{ownerID, name}] {
		if v.Version == version {
			return copyVersion(v), nil
		}
	}
	return nil, secretsDomain.ErrVersionNotFound
}

func (r *MemorySecretRepository) ListVersions(
	_ context.Context,
	ownerID, name string,
	offset, limit int,
) ([]*secretsDomain.SecretVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.versions[secretRef{ownerID, name}]
	sorted := make([]*secretsDomain.SecretVersion, 0, len(all))
	for _, v := range all {
		c := copyVersion(v)
		c.Ciphertext = nil
		c.Nonce = nil
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	if offset >= len(sorted) {
		return []*secretsDomain.SecretVersion{}, nil
	}
	sorted = sorted[offset:]
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (r *MemorySecretRepository) RevokeVersion(
	_ context.Context,
	ownerID, name string,
	version uint,
	revokedAt time.Time,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.versions[secretRef{ownerID, name}] {
		if v.Version == version {
			if v.Status != secretsDomain.VersionStatusRevoked {
				v.Status = secretsDomain.VersionStatusRevoked
				v.RevokedAt = &revokedAt
			}
			return nil
		}
	}
	return secretsDomain.ErrVersionNotFound
}

// Versions returns every stored version number of a secret in insertion order.
func (r *MemorySecretRepository) Versions(ownerID, name string) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uint
	for _, v := range r.versions[secretRef{ownerID, name}] {
		out = append(out, v.Version)
	}
	return out
}

// MemoryIdempotencyRepository is an in-memory IdempotencyRepository.
type MemoryIdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]*secretsDomain.IdempotencyRecord
}

// NewMemoryIdempotencyRepository creates an empty repository.
func NewMemoryIdempotencyRepository() *MemoryIdempotencyRepository {
	return &MemoryIdempotencyRepository{records: make(map[string]*secretsDomain.IdempotencyRecord)}
}

func idempotencyKey(ownerID, name, key string) string {
	return ownerID + "\x00" + name + "\x00" + key
}

func (r *MemoryIdempotencyRepository) Get(
	_ context.Context,
	ownerID, name, key string,
) (*secretsDomain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[idempotencyKey(ownerID, name, key)]
	if !ok {
		return nil, secretsDomain.ErrIdempotencyRecordNotFound
	}
	c := *record
	return &c, nil
}

func (r *MemoryIdempotencyRepository) Save(_ context.Context, record *secretsDomain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *record
	r.records[idempotencyKey(record.OwnerID, record.Name, record.Key)] = &c
	return nil
}

func (r *MemoryIdempotencyRepository) DeleteOlderThan(
	_ context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for key, record := range r.records {
		if record.CreatedAt.Before(olderThan) {
			count++
			if !dryRun {
				delete(r.records, key)
			}
		}
	}
	return count, nil
}

// Records returns every stored record.
func (r *MemoryIdempotencyRepository) Records() []*secretsDomain.IdempotencyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*secretsDomain.IdempotencyRecord, 0, len(r.records))
	for _, record := range r.records {
		c := *record
		out = append(out, &c)
	}
	return out
}

func copySecret(secret *secretsDomain.Secret) *secretsDomain.Secret {
	c := *secret
	if secret.ActiveVersion != nil {
		v := *secret.ActiveVersion
		c.ActiveVersion = &v
	}
	return &c
}

func copyVersion(version *secretsDomain.SecretVersion) *secretsDomain.SecretVersion {
	c := *version
	c.Ciphertext = append([]byte(nil), version.Ciphertext...)
	c.Nonce = append([]byte(nil), version.Nonce...)
	c.Plaintext = nil
	if version.RevokedAt != nil {
		t := *version.RevokedAt
		c.RevokedAt = &t
	}
	return &c
}
