// store.go - Content-addressed store boundary.
//
// The engine treats content addresses as opaque tokens: bytes go in, an
// address comes out, and the same address later returns the same bytes.
// Stores are append-only; nothing here deletes content.

package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
)

// ErrNotFound indicates a download for an address the store does not hold.
var ErrNotFound = errors.New("store: content not found")

// Store accepts raw bytes and returns a content address, and resolves a
// content address back to raw bytes.
type Store interface {
	Upload(ctx context.Context, data []byte) (string, error)
	Download(ctx context.Context, address string) ([]byte, error)
}

// MemoryStore is an in-process Store. Addresses are the hex BLAKE3 digest of
// the content, so identical bytes map to the same address. Safe for
// concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("store: empty content")
	}
	sum := blake3.Sum256(data)
	address := hex.EncodeToString(sum[:])
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[address]; !exists {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.blobs[address] = stored
	}
	return address, nil
}

func (s *MemoryStore) Download(_ context.Context, address string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, exists := s.blobs[address]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, address)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
