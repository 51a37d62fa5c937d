package metadata_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultfs/pkg/metadata"
)

// sampleListing builds a listing exercising every field the codec has to
// carry: files with metadata and chunked content, child references, and a
// parent back-reference.
func sampleListing(t *testing.T) metadata.DirectoryListing {
	t.Helper()

	parentKey := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	childKey := metadata.NewDirectoryKey(200, false, metadata.AccessPublic)

	listing := metadata.NewDirectoryListing(key, &parentKey)

	record := metadata.NewFileRecord("report.pdf", []byte{0x01, 0x02})
	record.Size = 1 << 20
	record.Content = metadata.ChunkMapReference(1<<20, []metadata.ChunkRef{
		{ID: "aaaa", Size: 1 << 19},
		{ID: "bbbb", Size: 1 << 19},
	})
	listing.UpsertFile(record)

	inline := metadata.NewFileRecord("tiny.txt", nil)
	inline.Content = metadata.InlineReference([]byte("hello"))
	inline.Size = 5
	listing.UpsertFile(inline)

	listing.PutChild(metadata.ChildRef{Key: childKey, Version: "v-abc"})

	return listing
}

func TestCodecListingRoundTripIsLossless(t *testing.T) {
	codec := metadata.MustCBORCodec()
	listing := sampleListing(t)

	data, err := codec.EncodeListing(listing)
	require.NoError(t, err)

	decoded, err := codec.DecodeListing(data)
	require.NoError(t, err)

	assert.Equal(t, listing.Key, decoded.Key)
	assert.Equal(t, listing.Parent, decoded.Parent)
	require.Len(t, decoded.Files, 2)
	for name, want := range listing.Files {
		got, ok := decoded.FindFile(name)
		require.True(t, ok, "file %q lost in round trip", name)
		assert.True(t, got.Equal(want), "file %q changed in round trip", name)
	}
	assert.Equal(t, listing.Subdirectories, decoded.Subdirectories)
}

func TestCodecPreservesTimePrecision(t *testing.T) {
	codec := metadata.MustCBORCodec()

	record := metadata.NewFileRecord("precise.txt", nil)
	record.CreatedAt = time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC)
	record.ModifiedAt = record.CreatedAt.Add(time.Nanosecond)

	data, err := codec.EncodeRecord(record)
	require.NoError(t, err)

	decoded, err := codec.DecodeRecord(data)
	require.NoError(t, err)

	// Nanosecond precision must survive: version coalescing compares
	// modification times for exact equality.
	assert.True(t, decoded.CreatedAt.Equal(record.CreatedAt))
	assert.True(t, decoded.ModifiedAt.Equal(record.ModifiedAt))
	assert.False(t, decoded.CreatedAt.Equal(decoded.ModifiedAt))
}

func TestCodecIsDeterministic(t *testing.T) {
	codec := metadata.MustCBORCodec()
	listing := sampleListing(t)

	first, err := codec.EncodeListing(listing)
	require.NoError(t, err)

	// Re-encode the same logical value several times; map iteration order
	// must never leak into the bytes.
	for i := 0; i < 10; i++ {
		again, err := codec.EncodeListing(listing.Clone())
		require.NoError(t, err)
		require.Equal(t, first, again, "encoding %d differs", i)
	}
}

func TestCodecDecodeNormalizesNilMaps(t *testing.T) {
	codec := metadata.MustCBORCodec()

	key := metadata.NewDirectoryKey(100, true, metadata.AccessPrivate)
	empty := metadata.NewDirectoryListing(key, nil)

	data, err := codec.EncodeListing(empty)
	require.NoError(t, err)

	decoded, err := codec.DecodeListing(data)
	require.NoError(t, err)

	// Decoded listings are always directly usable for upserts.
	assert.NotNil(t, decoded.Files)
	assert.NotNil(t, decoded.Subdirectories)
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := metadata.MustCBORCodec()

	_, err := codec.DecodeListing([]byte{0xff, 0x00, 0x13, 0x37})
	assert.Error(t, err)
}
