package fs_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
	"github.com/marmos91/vaultfs/pkg/store/content/fs"
	contenttesting "github.com/marmos91/vaultfs/pkg/store/content/testing"
)

func chunkAddress(data []byte) metadata.ChunkID {
	sum := sha256.Sum256(data)
	return metadata.ChunkID(hex.EncodeToString(sum[:]))
}

func TestFilesystemBackendConformance(t *testing.T) {
	suite := &contenttesting.BackendTestSuite{
		NewBackend: func(t *testing.T) content.Backend {
			backend, err := fs.NewBackend(context.Background(), t.TempDir())
			require.NoError(t, err)
			return backend
		},
	}
	suite.Run(t)
}

func TestBackendShardsChunkFiles(t *testing.T) {
	base := t.TempDir()
	backend, err := fs.NewBackend(context.Background(), base)
	require.NoError(t, err)

	data := []byte("sharded")
	id := chunkAddress(data)
	require.NoError(t, backend.PutChunk(context.Background(), id, data))

	// The chunk lands under a two-character shard directory.
	shard := filepath.Join(base, string(id)[:2], string(id))
	_, err = os.Stat(shard)
	assert.NoError(t, err)
}

func TestBackendLeavesNoTempFilesBehind(t *testing.T) {
	base := t.TempDir()
	backend, err := fs.NewBackend(context.Background(), base)
	require.NoError(t, err)

	data := []byte("committed atomically")
	id := chunkAddress(data)
	require.NoError(t, backend.PutChunk(context.Background(), id, data))

	var leftovers []string
	err = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Base(path) != string(id) {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
