// Package domain defines the envelope encryption model of the broker.
//
// The hierarchy has two tiers: a Key Encryption Key (KEK) injected at process
// start wraps per-owner Data Encryption Keys (DEKs), and DEKs encrypt secret
// values. KEKs live only in memory. DEKs are persisted wrapped and are unwrapped
// for the duration of a single operation.
package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// Kek is a Key Encryption Key. Key holds plaintext material and is never persisted.
type Kek struct {
	ID  string
	Key []byte
}

// KekEntry is one raw "id:base64" entry of the KEKS setting. Material is either
// the plaintext key or, when a KMS is configured, the KMS ciphertext of it.
type KekEntry struct {
	ID       string
	Material []byte
}

// ParseKekEntries parses the KEKS setting: a comma-separated list of "id:base64" entries.
func ParseKekEntries(raw string) ([]KekEntry, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrKeksNotSet
	}

	seen := make(map[string]struct{})
	var entries []KekEntry
	for part := range strings.SplitSeq(raw, ",") {
		id, encoded, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || id == "" || encoded == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKeksFormat, part)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKekID, id)
		}
		material, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidKekBase64, id, err)
		}
		seen[id] = struct{}{}
		entries = append(entries, KekEntry{ID: id, Material: material})
	}
	return entries, nil
}

// KekChain holds the loaded KEKs. The active one wraps new DEKs, the others
// remain available to unwrap DEKs created before a KEK rotation.
type KekChain struct {
	mu       sync.RWMutex
	activeID string
	keys     map[string]*Kek
}

// NewKekChain builds a chain from keks. Every key must be KeySize bytes and
// activeID must be one of them. The chain takes ownership of the key slices.
func NewKekChain(activeID string, keks []*Kek) (*KekChain, error) {
	if activeID == "" {
		return nil, ErrActiveKekIDNotSet
	}

	kc := &KekChain{
		activeID: activeID,
		keys:     make(map[string]*Kek, len(keks)),
	}
	for _, kek := range keks {
		if len(kek.Key) != KeySize {
			kc.Close()
			return nil, fmt.Errorf(
				"%w: kek %s must be %d bytes, got %d",
				ErrInvalidKeySize,
				kek.ID,
				KeySize,
				len(kek.Key),
			)
		}
		if _, dup := kc.keys[kek.ID]; dup {
			kc.Close()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKekID, kek.ID)
		}
		kc.keys[kek.ID] = kek
	}

	if _, ok := kc.keys[activeID]; !ok {
		kc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_KEK_ID=%s", ErrActiveKekNotFound, activeID)
	}
	return kc, nil
}

// ActiveKekID returns the id of the KEK used to wrap new DEKs.
func (k *KekChain) ActiveKekID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.activeID
}

// Active returns the active KEK.
func (k *KekChain) Active() (*Kek, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	kek, ok := k.keys[k.activeID]
	return kek, ok
}

// Get returns the KEK with the given id.
func (k *KekChain) Get(id string) (*Kek, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	kek, ok := k.keys[id]
	return kek, ok
}

// IDs returns the ids of all loaded KEKs.
func (k *KekChain) IDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	return ids
}

// Close zeroes every KEK and empties the chain.
func (k *KekChain) Close() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, kek := range k.keys {
		Zero(kek.Key)
	}
	clear(k.keys)
	k.activeID = ""
}
