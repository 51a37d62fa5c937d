package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/directory"
	directorytesting "github.com/marmos91/vaultfs/pkg/store/directory/testing"
)

// TestBadgerBackend runs the Backend conformance suite against the Badger
// implementation using an in-memory database.
func TestBadgerBackend(t *testing.T) {
	suite := &directorytesting.BackendTestSuite{
		NewBackend: func(t *testing.T) directory.Backend {
			backend, err := NewBackend(context.Background(), Config{InMemory: true})
			require.NoError(t, err)
			t.Cleanup(func() {
				require.NoError(t, backend.Close())
			})
			return backend
		},
	}
	suite.Run(t)
}

// TestBadgerBackendPersistsAcrossReopen checks that chains survive closing
// and reopening a disk-backed database.
func TestBadgerBackendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := NewBackend(ctx, Config{Path: dir})
	require.NoError(t, err)

	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	v1, err := backend.AppendVersion(ctx, key, []byte("persisted"), "")
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	reopened, err := NewBackend(ctx, Config{Path: dir})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, reopened.Close())
	}()

	versions, err := reopened.ListVersions(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []metadata.VersionID{v1}, versions)

	snapshot, err := reopened.FetchVersion(ctx, key, metadata.AccessPrivate, v1)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), snapshot)
}
