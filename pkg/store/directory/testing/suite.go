// Package testing provides a reusable conformance suite for
// directory.Backend implementations.
//
// The suite tests the interface contract, not implementation details, so it
// runs unchanged against the memory and Badger backends (and any future
// one).
package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/directory"
)

// BackendTestSuite exercises a directory.Backend implementation.
//
// Usage:
//
//	func TestMemoryBackend(t *testing.T) {
//	    suite := &testing.BackendTestSuite{
//	        NewBackend: func(t *testing.T) directory.Backend {
//	            return memory.NewBackend()
//	        },
//	    }
//	    suite.Run(t)
//	}
type BackendTestSuite struct {
	// NewBackend creates a fresh backend for each test, ensuring
	// isolation. Cleanup should be registered on t.
	NewBackend func(t *testing.T) directory.Backend
}

// Run executes all tests in the suite.
func (s *BackendTestSuite) Run(t *testing.T) {
	t.Run("FirstAppendCreatesChain", s.testFirstAppendCreatesChain)
	t.Run("AppendGrowsChainInOrder", s.testAppendGrowsChainInOrder)
	t.Run("DraftAppendOnExistingChainConflicts", s.testDraftAppendOnExistingChainConflicts)
	t.Run("StaleBaseConflicts", s.testStaleBaseConflicts)
	t.Run("BaseOnMissingChainConflicts", s.testBaseOnMissingChainConflicts)
	t.Run("FetchRoundTrip", s.testFetchRoundTrip)
	t.Run("FetchUnknownVersion", s.testFetchUnknownVersion)
	t.Run("UnknownKeyNotFound", s.testUnknownKeyNotFound)
	t.Run("AccessLevelEnforced", s.testAccessLevelEnforced)
	t.Run("ConcurrentAppendsSerialize", s.testConcurrentAppendsSerialize)
}

func testKey(access metadata.AccessLevel) metadata.DirectoryKey {
	return metadata.NewDirectoryKey(100, true, access)
}

func (s *BackendTestSuite) testFirstAppendCreatesChain(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)

	version, err := backend.AppendVersion(context.Background(), key, []byte("snapshot-1"), "")
	require.NoError(t, err)
	require.NotEmpty(t, version)

	versions, err := backend.ListVersions(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []metadata.VersionID{version}, versions)
}

func (s *BackendTestSuite) testAppendGrowsChainInOrder(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)
	ctx := context.Background()

	v1, err := backend.AppendVersion(ctx, key, []byte("one"), "")
	require.NoError(t, err)
	v2, err := backend.AppendVersion(ctx, key, []byte("two"), v1)
	require.NoError(t, err)
	v3, err := backend.AppendVersion(ctx, key, []byte("three"), v2)
	require.NoError(t, err)

	versions, err := backend.ListVersions(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []metadata.VersionID{v1, v2, v3}, versions)
}

func (s *BackendTestSuite) testDraftAppendOnExistingChainConflicts(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)
	ctx := context.Background()

	_, err := backend.AppendVersion(ctx, key, []byte("one"), "")
	require.NoError(t, err)

	_, err = backend.AppendVersion(ctx, key, []byte("duplicate draft"), "")
	assert.True(t, metadata.HasCode(err, metadata.ErrConflict), "expected Conflict, got %v", err)
}

func (s *BackendTestSuite) testStaleBaseConflicts(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)
	ctx := context.Background()

	v1, err := backend.AppendVersion(ctx, key, []byte("one"), "")
	require.NoError(t, err)
	_, err = backend.AppendVersion(ctx, key, []byte("two"), v1)
	require.NoError(t, err)

	// v1 is no longer the head.
	_, err = backend.AppendVersion(ctx, key, []byte("stale"), v1)
	assert.True(t, metadata.HasCode(err, metadata.ErrConflict), "expected Conflict, got %v", err)

	versions, err := backend.ListVersions(ctx, key)
	require.NoError(t, err)
	assert.Len(t, versions, 2, "failed append must not grow the chain")
}

func (s *BackendTestSuite) testBaseOnMissingChainConflicts(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)

	_, err := backend.AppendVersion(context.Background(), key, []byte("x"), metadata.VersionID("ghost"))
	assert.True(t, metadata.HasCode(err, metadata.ErrConflict), "expected Conflict, got %v", err)
}

func (s *BackendTestSuite) testFetchRoundTrip(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)
	ctx := context.Background()

	v1, err := backend.AppendVersion(ctx, key, []byte("first snapshot"), "")
	require.NoError(t, err)
	v2, err := backend.AppendVersion(ctx, key, []byte("second snapshot"), v1)
	require.NoError(t, err)

	data, err := backend.FetchVersion(ctx, key, metadata.AccessPrivate, v1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first snapshot"), data)

	data, err = backend.FetchVersion(ctx, key, metadata.AccessPrivate, v2)
	require.NoError(t, err)
	assert.Equal(t, []byte("second snapshot"), data)

	// Historical snapshots stay reachable; fetch again to catch cache
	// corruption.
	data, err = backend.FetchVersion(ctx, key, metadata.AccessPrivate, v1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first snapshot"), data)
}

func (s *BackendTestSuite) testFetchUnknownVersion(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)
	ctx := context.Background()

	_, err := backend.AppendVersion(ctx, key, []byte("one"), "")
	require.NoError(t, err)

	_, err = backend.FetchVersion(ctx, key, metadata.AccessPrivate, metadata.VersionID("ghost"))
	assert.True(t, metadata.HasCode(err, metadata.ErrVersionNotFound), "expected VersionNotFound, got %v", err)
}

func (s *BackendTestSuite) testUnknownKeyNotFound(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)
	ctx := context.Background()

	_, err := backend.ListVersions(ctx, key)
	assert.True(t, metadata.HasCode(err, metadata.ErrNotFound), "expected NotFound, got %v", err)

	_, err = backend.FetchVersion(ctx, key, metadata.AccessPrivate, metadata.VersionID("v"))
	assert.True(t, metadata.HasCode(err, metadata.ErrNotFound), "expected NotFound, got %v", err)
}

func (s *BackendTestSuite) testAccessLevelEnforced(t *testing.T) {
	backend := s.NewBackend(t)
	ctx := context.Background()

	private := testKey(metadata.AccessPrivate)
	v1, err := backend.AppendVersion(ctx, private, []byte("secret"), "")
	require.NoError(t, err)

	_, err = backend.FetchVersion(ctx, private, metadata.AccessPublic, v1)
	assert.True(t, metadata.HasCode(err, metadata.ErrAccessDenied), "expected AccessDenied, got %v", err)

	public := testKey(metadata.AccessPublic)
	v1, err = backend.AppendVersion(ctx, public, []byte("open"), "")
	require.NoError(t, err)

	// Both capability levels can read a public chain.
	_, err = backend.FetchVersion(ctx, public, metadata.AccessPublic, v1)
	assert.NoError(t, err)
	_, err = backend.FetchVersion(ctx, public, metadata.AccessPrivate, v1)
	assert.NoError(t, err)
}

// testConcurrentAppendsSerialize checks the core optimistic-concurrency
// property: of two appends based on the same prior version, exactly one
// succeeds and the other fails with Conflict.
func (s *BackendTestSuite) testConcurrentAppendsSerialize(t *testing.T) {
	backend := s.NewBackend(t)
	key := testKey(metadata.AccessPrivate)
	ctx := context.Background()

	base, err := backend.AppendVersion(ctx, key, []byte("base"), "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = backend.AppendVersion(ctx, key, []byte("contender"), base)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case metadata.HasCode(err, metadata.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one append must win")
	assert.Equal(t, 1, conflicts, "the loser must fail with Conflict")

	versions, err := backend.ListVersions(ctx, key)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}
