// Package memory provides an in-memory directory backend.
//
// Designed for tests, development and ephemeral deployments: all chains
// live in process memory and vanish on restart. The backend honors the full
// Backend contract, including compare-and-append serialization of
// concurrent persists, so it is a faithful stand-in for persistent
// backends in tests.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/vaultfs/pkg/metadata"
)

// chain holds one directory's version history.
type chain struct {
	// access is the capability requirement recorded at chain creation
	// (from the key's access level) and enforced on every fetch.
	access metadata.AccessLevel

	// versions is the append-only ordered chain, oldest first.
	versions []metadata.VersionID

	// snapshots maps version ID to serialized listing bytes.
	snapshots map[metadata.VersionID][]byte
}

func (c *chain) head() metadata.VersionID {
	return c.versions[len(c.versions)-1]
}

// Backend implements directory.Backend with in-process state.
//
// Thread safety: a single RWMutex guards all chains. AppendVersion holds
// the write lock across the head check and the append, which is what makes
// compare-and-append atomic: of two racing appends based on the same head,
// the second finds the head moved and fails with ErrConflict.
type Backend struct {
	mu     sync.RWMutex
	chains map[metadata.DirectoryID]*chain
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{chains: make(map[metadata.DirectoryID]*chain)}
}

// AppendVersion implements directory.Backend.
func (b *Backend) AppendVersion(ctx context.Context, key metadata.DirectoryKey, snapshot []byte, basedOn metadata.VersionID) (metadata.VersionID, error) {
	if err := ctx.Err(); err != nil {
		return "", metadata.WrapStorageFailure("append cancelled", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, exists := b.chains[key.ID]
	if !exists {
		if basedOn != "" {
			// The caller thinks it is updating an existing chain,
			// but none exists. Treat as a stale base.
			return "", metadata.NewStoreError(metadata.ErrConflict,
				"version chain does not exist for base version", string(key.ID))
		}
		c = &chain{
			access:    key.Access,
			snapshots: make(map[metadata.VersionID][]byte),
		}
		b.chains[key.ID] = c
	} else {
		if basedOn == "" {
			return "", metadata.NewStoreError(metadata.ErrConflict,
				"version chain already exists", string(key.ID))
		}
		if c.head() != basedOn {
			return "", metadata.NewStoreError(metadata.ErrConflict,
				"version chain head moved", string(key.ID))
		}
	}

	version := metadata.VersionID(uuid.NewString())
	c.versions = append(c.versions, version)
	c.snapshots[version] = bytes.Clone(snapshot)
	return version, nil
}

// ListVersions implements directory.Backend.
func (b *Backend) ListVersions(ctx context.Context, key metadata.DirectoryKey) ([]metadata.VersionID, error) {
	if err := ctx.Err(); err != nil {
		return nil, metadata.WrapStorageFailure("list cancelled", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	c, exists := b.chains[key.ID]
	if !exists {
		return nil, metadata.NewStoreError(metadata.ErrNotFound,
			"directory not found", string(key.ID))
	}

	versions := make([]metadata.VersionID, len(c.versions))
	copy(versions, c.versions)
	return versions, nil
}

// FetchVersion implements directory.Backend.
func (b *Backend) FetchVersion(ctx context.Context, key metadata.DirectoryKey, access metadata.AccessLevel, version metadata.VersionID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, metadata.WrapStorageFailure("fetch cancelled", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	c, exists := b.chains[key.ID]
	if !exists {
		return nil, metadata.NewStoreError(metadata.ErrNotFound,
			"directory not found", string(key.ID))
	}

	if !access.Satisfies(c.access) {
		return nil, metadata.NewStoreError(metadata.ErrAccessDenied,
			"access level does not satisfy directory capability", string(key.ID))
	}

	snapshot, exists := c.snapshots[version]
	if !exists {
		return nil, metadata.NewStoreError(metadata.ErrVersionNotFound,
			"version not found in chain", string(version))
	}
	return bytes.Clone(snapshot), nil
}
