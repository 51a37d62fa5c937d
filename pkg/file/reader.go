package file

import (
	"context"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
)

// Reader serves ranged reads from one immutable content reference.
//
// The reference is fixed at construction; updates to the file after the
// Reader was obtained are invisible to it. Reads are deterministic:
// repeated reads of the same range return identical bytes.
type Reader struct {
	contents *content.Store
	ref      metadata.Reference
}

func newReader(contents *content.Store, ref metadata.Reference) *Reader {
	return &Reader{contents: contents, ref: ref.Clone()}
}

// Size returns the total content size in bytes. This is derived from the
// reference itself; no store round-trip happens.
func (r *Reader) Size() uint64 {
	return r.ref.Size()
}

// Read returns exactly length bytes starting at offset. A range extending
// past Size() yields a Range error, never a short read.
func (r *Reader) Read(ctx context.Context, offset, length uint64) ([]byte, error) {
	return r.contents.Decode(ctx, r.ref, offset, length)
}
