package usecase

import (
	"context"
	"sync"

	apperrors "github.com/allisson/secretbroker/internal/errors"
)

// secretLocks serializes writers of the same secret while letting different
// secrets proceed in parallel. Entries are reference counted and dropped when
// the last holder or waiter leaves, so the map only holds secrets in use.
type secretLocks struct {
	mu    sync.Mutex
	locks map[string]*secretLock
}

type secretLock struct {
	ch   chan struct{}
	refs int
}

func newSecretLocks() *secretLocks {
	return &secretLocks{locks: make(map[string]*secretLock)}
}

// lock waits for the secret's lock until ctx is done. The returned function
// releases it.
func (s *secretLocks) lock(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &secretLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			s.release(key, l)
		}, nil
	case <-ctx.Done():
		s.release(key, l)
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, "timed out waiting for secret lock")
	}
}

func (s *secretLocks) release(key string, l *secretLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

func (s *secretLocks) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func secretKey(ownerID, name string) string {
	return ownerID + "\x00" + name
}
