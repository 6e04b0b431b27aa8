package service

import (
	"crypto/rand"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/secretbroker/internal/crypto/domain"
)

const (
	// DefaultNonceGuardCapacity is the number of nonces remembered per DEK.
	DefaultNonceGuardCapacity = 1 << 20
	// DefaultNonceGuardTotal bounds the nonces remembered across all DEKs.
	DefaultNonceGuardTotal = 1 << 21
)

type nonce [cryptoDomain.NonceSize]byte

// MemoryNonceGuard remembers every nonce it issued per DEK in this process.
//
// Across processes and restarts the unique (dek_id, nonce) constraint on stored
// versions is the backstop. When a DEK's record reaches capacity Next fails with
// ErrNonceGuardFull and the DEK must be rotated. When the record of all DEKs
// reaches the total limit, the records of the least recently used other DEKs are
// dropped first.
type MemoryNonceGuard struct {
	mu       sync.Mutex
	capacity int
	total    int
	count    int
	seen     map[uuid.UUID]map[nonce]struct{}
	lru      []uuid.UUID
	random   func([]byte) (int, error)
}

// NewNonceGuard creates a MemoryNonceGuard with the default total limit. A
// non-positive capacity uses the default.
func NewNonceGuard(capacity int) *MemoryNonceGuard {
	return NewNonceGuardWithLimits(capacity, 0)
}

// NewNonceGuardWithLimits creates a MemoryNonceGuard remembering at most capacity
// nonces per DEK and total nonces overall. Non-positive values use the defaults.
func NewNonceGuardWithLimits(capacity, total int) *MemoryNonceGuard {
	if capacity <= 0 {
		capacity = DefaultNonceGuardCapacity
	}
	if total <= 0 {
		total = DefaultNonceGuardTotal
	}
	return &MemoryNonceGuard{
		capacity: capacity,
		total:    total,
		seen:     make(map[uuid.UUID]map[nonce]struct{}),
		random:   rand.Read,
	}
}

// Next draws a random nonce for dekID. It returns ErrNonceReuse rather than a nonce
// that was already issued for the same DEK.
func (g *MemoryNonceGuard) Next(dekID uuid.UUID) ([]byte, error) {
	var n nonce
	if _, err := g.random(n[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	issued, ok := g.seen[dekID]
	if !ok {
		issued = make(map[nonce]struct{})
		g.seen[dekID] = issued
	}
	g.touch(dekID)
	if _, dup := issued[n]; dup {
		return nil, fmt.Errorf("%w: dek %s", cryptoDomain.ErrNonceReuse, dekID)
	}
	if len(issued) >= g.capacity {
		return nil, fmt.Errorf("%w: dek %s", cryptoDomain.ErrNonceGuardFull, dekID)
	}
	for g.count >= g.total {
		if !g.evictOldest(dekID) {
			return nil, fmt.Errorf("%w: dek %s", cryptoDomain.ErrNonceGuardFull, dekID)
		}
	}
	issued[n] = struct{}{}
	g.count++

	return n[:], nil
}

// Forget drops the record of dekID.
func (g *MemoryNonceGuard) Forget(dekID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drop(dekID)
}

// Total returns how many nonces are recorded across all DEKs.
func (g *MemoryNonceGuard) Total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// touch moves dekID to the most recently used end of g.lru.
func (g *MemoryNonceGuard) touch(dekID uuid.UUID) {
	if n := len(g.lru); n > 0 && g.lru[n-1] == dekID {
		return
	}
	g.lru = slices.DeleteFunc(g.lru, func(id uuid.UUID) bool { return id == dekID })
	g.lru = append(g.lru, dekID)
}

// evictOldest drops the least recently used record other than keep.
func (g *MemoryNonceGuard) evictOldest(keep uuid.UUID) bool {
	for _, id := range g.lru {
		if id != keep {
			g.drop(id)
			return true
		}
	}
	return false
}

func (g *MemoryNonceGuard) drop(dekID uuid.UUID) {
	g.count -= len(g.seen[dekID])
	delete(g.seen, dekID)
	g.lru = slices.DeleteFunc(g.lru, func(id uuid.UUID) bool { return id == dekID })
}

// Issued returns how many nonces are recorded for dekID.
func (g *MemoryNonceGuard) Issued(dekID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen[dekID])
}
