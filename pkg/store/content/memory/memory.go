// Package memory provides an in-memory chunk backend.
//
// Chunks live in a plain map guarded by an RWMutex. Nothing survives process
// restart, which makes this backend the default for tests and for callers
// that only need a scratch content store.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
)

// Backend implements content.Backend with a process-local map.
//
// Safe for concurrent use. Stored and returned slices are always copies, so
// callers can never mutate a chunk in place.
type Backend struct {
	mu     sync.RWMutex
	chunks map[metadata.ChunkID][]byte
}

var _ content.Backend = (*Backend)(nil)

// NewBackend creates an empty in-memory chunk backend.
func NewBackend() *Backend {
	return &Backend{chunks: make(map[metadata.ChunkID][]byte)}
}

// PutChunk stores a copy of data under id. Re-storing an existing id is a
// no-op; content addressing guarantees the bytes are identical anyway.
func (b *Backend) PutChunk(ctx context.Context, id metadata.ChunkID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.chunks[id]; ok {
		return nil
	}
	b.chunks[id] = bytes.Clone(data)
	return nil
}

// GetChunk returns a copy of the chunk bytes.
func (b *Backend) GetChunk(ctx context.Context, id metadata.ChunkID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.chunks[id]
	if !ok {
		return nil, metadata.NewStoreError(metadata.ErrNotFound, "chunk not found", string(id))
	}
	return bytes.Clone(data), nil
}

// HasChunk reports whether the chunk exists.
func (b *Backend) HasChunk(ctx context.Context, id metadata.ChunkID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.chunks[id]
	return ok, nil
}

// Len returns the number of stored chunks. Intended for tests asserting
// deduplication behavior.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}
