// Package fs provides a chunk backend backed by the local filesystem.
//
// Each chunk is a single file under the base directory, sharded by the first
// two characters of its content address to keep directory fan-out bounded:
//
//	<base>/ab/abcdef1234...
//
// Writes go through a temp file in the same directory followed by a rename,
// so a chunk file is either absent or complete; a crash mid-write never
// leaves a truncated chunk behind.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
)

// Backend implements content.Backend on a local directory tree.
//
// Filesystem operations are thread-safe at the OS level, and because chunk
// IDs are content addresses concurrent writers of the same ID write the same
// bytes, so no extra locking is needed.
type Backend struct {
	basePath string
}

var _ content.Backend = (*Backend)(nil)

// NewBackend creates a filesystem chunk backend rooted at basePath,
// creating the directory if it does not exist.
func NewBackend(ctx context.Context, basePath string) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, metadata.WrapStorageFailure("create chunk directory", err)
	}

	return &Backend{basePath: basePath}, nil
}

// chunkPath returns the sharded path for a chunk ID.
func (b *Backend) chunkPath(id metadata.ChunkID) string {
	s := string(id)
	if len(s) < 2 {
		// Defensively handle malformed IDs; real IDs are 64 hex chars.
		return filepath.Join(b.basePath, "xx", s)
	}
	return filepath.Join(b.basePath, s[:2], s)
}

// PutChunk writes the chunk atomically via temp file + rename. Storing an
// ID that already exists is a no-op.
func (b *Backend) PutChunk(ctx context.Context, id metadata.ChunkID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := b.chunkPath(id)

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return metadata.WrapStorageFailure("stat chunk", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return metadata.WrapStorageFailure("create chunk shard directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".chunk-*")
	if err != nil {
		return metadata.WrapStorageFailure("create temp chunk file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return metadata.WrapStorageFailure("write chunk", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return metadata.WrapStorageFailure("close chunk file", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return metadata.WrapStorageFailure("commit chunk file", err)
	}

	return nil
}

// GetChunk reads the full chunk file.
func (b *Backend) GetChunk(ctx context.Context, id metadata.ChunkID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.chunkPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, metadata.NewStoreError(metadata.ErrNotFound, "chunk not found", string(id))
		}
		return nil, metadata.WrapStorageFailure(fmt.Sprintf("read chunk %s", id), err)
	}

	return data, nil
}

// HasChunk checks for the chunk file without reading it.
func (b *Backend) HasChunk(ctx context.Context, id metadata.ChunkID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(b.chunkPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, metadata.WrapStorageFailure("stat chunk", err)
}
