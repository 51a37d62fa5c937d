// Package testing provides a conformance suite for content.Backend
// implementations.
//
// Every backend (memory, filesystem, S3) must exhibit identical semantics
// for chunk storage; the suite encodes those semantics once so each backend
// test file only has to supply a constructor.
package testing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
)

// BackendTestSuite runs the shared conformance tests against a backend.
//
// NewBackend is called once per subtest so every subtest starts from an
// empty store. Cleanup should be registered on t by the constructor.
type BackendTestSuite struct {
	NewBackend func(t *testing.T) content.Backend
}

// Run executes all conformance subtests.
func (s *BackendTestSuite) Run(t *testing.T) {
	t.Run("PutGetRoundTrip", s.testPutGetRoundTrip)
	t.Run("PutIsIdempotent", s.testPutIsIdempotent)
	t.Run("GetMissingChunk", s.testGetMissingChunk)
	t.Run("HasChunk", s.testHasChunk)
	t.Run("PutDoesNotAliasCallerBuffer", s.testPutDoesNotAliasCallerBuffer)
	t.Run("LargeChunk", s.testLargeChunk)
}

// addressOf computes the content address the chunking layer would assign.
func addressOf(data []byte) metadata.ChunkID {
	sum := sha256.Sum256(data)
	return metadata.ChunkID(hex.EncodeToString(sum[:]))
}

func (s *BackendTestSuite) testPutGetRoundTrip(t *testing.T) {
	backend := s.NewBackend(t)
	ctx := context.Background()

	data := []byte("the quick brown fox")
	id := addressOf(data)

	require.NoError(t, backend.PutChunk(ctx, id, data))

	got, err := backend.GetChunk(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func (s *BackendTestSuite) testPutIsIdempotent(t *testing.T) {
	backend := s.NewBackend(t)
	ctx := context.Background()

	data := []byte("stored twice, kept once")
	id := addressOf(data)

	require.NoError(t, backend.PutChunk(ctx, id, data))
	require.NoError(t, backend.PutChunk(ctx, id, data))

	got, err := backend.GetChunk(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func (s *BackendTestSuite) testGetMissingChunk(t *testing.T) {
	backend := s.NewBackend(t)
	ctx := context.Background()

	missing := addressOf([]byte("never stored"))
	_, err := backend.GetChunk(ctx, missing)
	assert.True(t, metadata.HasCode(err, metadata.ErrNotFound), "expected NotFound, got %v", err)
}

func (s *BackendTestSuite) testHasChunk(t *testing.T) {
	backend := s.NewBackend(t)
	ctx := context.Background()

	data := []byte("present")
	id := addressOf(data)

	exists, err := backend.HasChunk(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, backend.PutChunk(ctx, id, data))

	exists, err = backend.HasChunk(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func (s *BackendTestSuite) testPutDoesNotAliasCallerBuffer(t *testing.T) {
	backend := s.NewBackend(t)
	ctx := context.Background()

	data := []byte("mutable caller buffer")
	id := addressOf(data)

	require.NoError(t, backend.PutChunk(ctx, id, data))

	// Scribbling over the caller's slice must not corrupt the stored chunk.
	for i := range data {
		data[i] = 0
	}

	got, err := backend.GetChunk(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable caller buffer"), got)
}

func (s *BackendTestSuite) testLargeChunk(t *testing.T) {
	backend := s.NewBackend(t)
	ctx := context.Background()

	// A chunk at the top of the chunking layer's size range.
	data := bytes.Repeat([]byte{0xA5, 0x5A, 0x01}, content.MaxChunkSize/3)
	id := addressOf(data)

	require.NoError(t, backend.PutChunk(ctx, id, data))

	got, err := backend.GetChunk(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
