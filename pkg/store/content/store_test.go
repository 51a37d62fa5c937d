package content_test

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
	"github.com/marmos91/vaultfs/pkg/store/content/memory"
)

func newStore(t *testing.T) (*content.Store, *memory.Backend) {
	t.Helper()
	backend := memory.NewBackend()
	return content.NewStore(backend, nil), backend
}

// randomBytes returns deterministic pseudo-random data so chunk boundaries
// and content addresses are stable across test runs.
func randomBytes(seed int64, n int) []byte {
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, n)
	rng.Read(data)
	return data
}

func TestEncodeEmptyStream(t *testing.T) {
	store, backend := newStore(t)

	ref, err := store.Encode(context.Background(), bytes.NewReader(nil))
	require.NoError(t, err)

	assert.Equal(t, metadata.RefEmpty, ref.Kind)
	assert.Zero(t, ref.Size())
	assert.Zero(t, backend.Len(), "empty content must not touch the backend")
}

func TestEncodeSmallPayloadStaysInline(t *testing.T) {
	store, backend := newStore(t)

	data := randomBytes(1, content.InlineThreshold)
	ref, err := store.Encode(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, metadata.RefInline, ref.Kind)
	assert.Equal(t, uint64(len(data)), ref.Size())
	assert.Zero(t, backend.Len(), "inline content must not touch the backend")

	got, err := store.Decode(context.Background(), ref, 0, ref.Size())
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEncodeOverThresholdSpillsToChunks(t *testing.T) {
	store, backend := newStore(t)

	// One byte past the inline limit must go through the chunk path.
	data := randomBytes(2, content.InlineThreshold+1)
	ref, err := store.Encode(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, metadata.RefChunkMap, ref.Kind)
	assert.Equal(t, uint64(len(data)), ref.Size())
	assert.NotZero(t, backend.Len())

	got, err := store.Decode(context.Background(), ref, 0, ref.Size())
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEncodeLargePayloadRoundTrip(t *testing.T) {
	store, _ := newStore(t)

	// Larger than the max chunk size, so the map holds several chunks.
	data := randomBytes(3, 3*content.MaxChunkSize+12345)
	ref, err := store.Encode(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	require.Equal(t, metadata.RefChunkMap, ref.Kind)
	require.GreaterOrEqual(t, len(ref.Chunks), 2, "payload should span multiple chunks")

	// Chunk sizes must sum to the declared total.
	var sum uint64
	for _, cr := range ref.Chunks {
		sum += uint64(cr.Size)
	}
	assert.Equal(t, ref.Total, sum)

	got, err := store.Decode(context.Background(), ref, 0, ref.Size())
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEncodeIsDeterministic(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	data := randomBytes(4, 2*content.MaxChunkSize)

	first, err := store.Encode(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	second, err := store.Encode(ctx, bytes.NewReader(data))
	require.NoError(t, err)

	assert.True(t, first.Equal(second), "same bytes must yield the same reference")
}

func TestEncodeDeduplicatesChunks(t *testing.T) {
	store, backend := newStore(t)
	ctx := context.Background()

	data := randomBytes(5, 2*content.MaxChunkSize)

	_, err := store.Encode(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	stored := backend.Len()

	// Encoding the identical stream again stores nothing new.
	_, err = store.Encode(ctx, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, stored, backend.Len())
}

func TestDecodeSubranges(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	data := randomBytes(6, 2*content.MaxChunkSize+999)
	ref, err := store.Encode(ctx, bytes.NewReader(data))
	require.NoError(t, err)

	cases := []struct {
		name   string
		offset uint64
		length uint64
	}{
		{"Head", 0, 100},
		{"Tail", uint64(len(data)) - 100, 100},
		{"MiddleOfFirstChunk", 1000, 5000},
		{"AcrossChunkBoundary", uint64(ref.Chunks[0].Size) - 10, 20},
		{"WholeContent", 0, uint64(len(data))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.Decode(ctx, ref, tc.offset, tc.length)
			require.NoError(t, err)
			assert.Equal(t, data[tc.offset:tc.offset+tc.length], got)
		})
	}
}

func TestDecodeZeroLength(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ref, err := store.Encode(ctx, bytes.NewReader([]byte("short")))
	require.NoError(t, err)

	// Zero-length reads succeed anywhere inside the content, including at
	// the very end.
	got, err := store.Decode(ctx, ref, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.Decode(ctx, metadata.EmptyReference(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeOutOfRange(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ref, err := store.Encode(ctx, bytes.NewReader([]byte("short")))
	require.NoError(t, err)

	cases := []struct {
		name   string
		ref    metadata.Reference
		offset uint64
		length uint64
	}{
		{"OffsetPastEnd", ref, 6, 0},
		{"LengthPastEnd", ref, 0, 6},
		{"StraddlesEnd", ref, 3, 3},
		{"EmptyReferenceRead", metadata.EmptyReference(), 0, 1},
		{"Overflowing", ref, ^uint64(0), 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Decode(ctx, tc.ref, tc.offset, tc.length)
			assert.True(t, metadata.HasCode(err, metadata.ErrRange), "expected Range error, got %v", err)
		})
	}
}
