package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/directory"
	"github.com/marmos91/vaultfs/pkg/store/directory/memory"
)

func newStore(t *testing.T) *directory.Store {
	t.Helper()
	return directory.NewStore(memory.NewBackend(), metadata.MustCBORCodec(), nil)
}

// buildTree persists a three-level tree root <- middle <- leaf and returns
// the three current listings. Each parent references its child's persisted
// version.
func buildTree(t *testing.T, store *directory.Store) (root, middle, leaf metadata.DirectoryListing) {
	t.Helper()
	ctx := context.Background()

	rootKey := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	middleKey := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	leafKey := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)

	// Leaves first: children must be persisted before parents can pin
	// their versions.
	leaf = metadata.NewDirectoryListing(leafKey, &middleKey)
	result, err := store.Persist(ctx, leaf)
	require.NoError(t, err)
	leaf = result.Listing

	middle = metadata.NewDirectoryListing(middleKey, &rootKey)
	middle.PutChild(metadata.ChildRef{Key: leafKey, Version: leaf.Version})
	result, err = store.Persist(ctx, middle)
	require.NoError(t, err)
	middle = result.Listing

	root = metadata.NewDirectoryListing(rootKey, nil)
	root.PutChild(metadata.ChildRef{Key: middleKey, Version: middle.Version})
	result, err = store.Persist(ctx, root)
	require.NoError(t, err)
	root = result.Listing

	return root, middle, leaf
}

func TestPersistDraftCreatesFirstVersion(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	listing := metadata.NewDirectoryListing(key, nil)
	require.Empty(t, listing.Version, "a fresh listing must be a draft")

	result, err := store.Persist(ctx, listing)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Listing.Version)
	assert.Empty(t, result.Propagated)

	versions, err := store.GetVersions(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []metadata.VersionID{result.Listing.Version}, versions)
}

func TestPersistGrowsChain(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	listing := metadata.NewDirectoryListing(key, nil)

	var chain []metadata.VersionID
	for i := 0; i < 3; i++ {
		listing.UpsertFile(metadata.NewFileRecord("file", nil))
		result, err := store.Persist(ctx, listing)
		require.NoError(t, err)
		listing = result.Listing
		chain = append(chain, listing.Version)
	}

	versions, err := store.GetVersions(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, chain, versions, "chain must grow in persist order")
}

func TestPersistStaleListingConflicts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	result, err := store.Persist(ctx, metadata.NewDirectoryListing(key, nil))
	require.NoError(t, err)

	first := result.Listing
	second := first.Clone()

	// First writer wins.
	_, err = store.Persist(ctx, first)
	require.NoError(t, err)

	// Second writer persisted a copy based on the now-stale version.
	_, err = store.Persist(ctx, second)
	assert.True(t, metadata.HasCode(err, metadata.ErrConflict), "expected Conflict, got %v", err)

	// The caller-owned retry loop: re-fetch current, reapply, persist.
	current, err := store.GetCurrent(ctx, key, metadata.AccessPrivate)
	require.NoError(t, err)
	_, err = store.Persist(ctx, current)
	assert.NoError(t, err)
}

func TestPersistPropagatesToAllAncestors(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	root, middle, leaf := buildTree(t, store)

	// Mutate the leaf; the middle directory and the root must both be
	// re-persisted to pick up the new leaf version.
	leaf.UpsertFile(metadata.NewFileRecord("hello.txt", nil))
	result, err := store.Persist(ctx, leaf)
	require.NoError(t, err)

	require.Len(t, result.Propagated, 2, "propagation must walk to the root, not stop after one hop")
	assert.Equal(t, middle.Key, result.Propagated[0].Key, "immediate parent first")
	assert.Equal(t, root.Key, result.Propagated[1].Key, "root last")

	// The re-persisted middle pins the new leaf version.
	ref, ok := result.Propagated[0].Child(leaf.Key.ID)
	require.True(t, ok)
	assert.Equal(t, result.Listing.Version, ref.Version)

	// And the root pins the new middle version.
	ref, ok = result.Propagated[1].Child(middle.Key.ID)
	require.True(t, ok)
	assert.Equal(t, result.Propagated[0].Version, ref.Version)

	// Each ancestor's chain grew by one.
	for _, key := range []metadata.DirectoryKey{middle.Key, root.Key} {
		versions, err := store.GetVersions(ctx, key)
		require.NoError(t, err)
		assert.Len(t, versions, 2)
	}
}

func TestPersistPropagationStopsAtMatchingAncestor(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, middle, _ := buildTree(t, store)

	// Re-persisting the middle directory without touching the leaf
	// updates the root (whose reference to middle went stale) but walks
	// no further.
	middle.UpsertFile(metadata.NewFileRecord("readme.md", nil))
	result, err := store.Persist(ctx, middle)
	require.NoError(t, err)
	assert.Len(t, result.Propagated, 1, "only the root should need updating")
}

func TestPersistRootHasNoPropagation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	root, _, _ := buildTree(t, store)
	root.UpsertFile(metadata.NewFileRecord("root.txt", nil))
	result, err := store.Persist(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, result.Propagated)
}

func TestGetVersionsUnversionedKeyInvalid(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	key := metadata.NewDirectoryKey(100, false, metadata.AccessPrivate)
	_, err := store.Persist(ctx, metadata.NewDirectoryListing(key, nil))
	require.NoError(t, err)

	_, err = store.GetVersions(ctx, key)
	assert.True(t, metadata.HasCode(err, metadata.ErrInvalidOperation), "expected InvalidOperation, got %v", err)
}

func TestGetByVersionReconstructsHistory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	listing := metadata.NewDirectoryListing(key, nil)

	result, err := store.Persist(ctx, listing)
	require.NoError(t, err)
	emptyVersion := result.Listing.Version

	listing = result.Listing
	listing.UpsertFile(metadata.NewFileRecord("later.txt", []byte("meta")))
	result, err = store.Persist(ctx, listing)
	require.NoError(t, err)

	// The first snapshot still has no files.
	historical, err := store.GetByVersion(ctx, key, metadata.AccessPrivate, emptyVersion)
	require.NoError(t, err)
	assert.Empty(t, historical.Files)
	assert.Equal(t, emptyVersion, historical.Version)

	// The second snapshot has the file, metadata intact.
	current, err := store.GetByVersion(ctx, key, metadata.AccessPrivate, result.Listing.Version)
	require.NoError(t, err)
	record, ok := current.FindFile("later.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("meta"), record.UserMetadata)
}

func TestGetByVersionUnknownVersion(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	_, err := store.Persist(ctx, metadata.NewDirectoryListing(key, nil))
	require.NoError(t, err)

	_, err = store.GetByVersion(ctx, key, metadata.AccessPrivate, metadata.VersionID("ghost"))
	assert.True(t, metadata.HasCode(err, metadata.ErrVersionNotFound), "expected VersionNotFound, got %v", err)
}

func TestGetByVersionAccessDenied(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	result, err := store.Persist(ctx, metadata.NewDirectoryListing(key, nil))
	require.NoError(t, err)

	_, err = store.GetByVersion(ctx, key, metadata.AccessPublic, result.Listing.Version)
	assert.True(t, metadata.HasCode(err, metadata.ErrAccessDenied), "expected AccessDenied, got %v", err)
}
