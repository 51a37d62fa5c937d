// Package content implements content-addressed storage for file data.
//
// File bytes never live inside directory listings. Instead, a file record
// carries a compact metadata.Reference describing where its bytes are:
// inline (small payloads), a chunk map (large payloads split into
// content-addressed chunks), or nothing at all (empty files). This package
// owns the translation in both directions.
//
// Separation of Concerns:
//
// The content store manages only raw bytes. It does NOT manage:
//   - File names, timestamps, user metadata → handled by metadata.FileRecord
//   - Directory structure and versioning → handled by store/directory
//   - Access control → enforced by the directory layer on listing fetch
//
// Deduplication:
// Chunks are keyed by the SHA-256 of their bytes, so identical regions of
// different files (or of different versions of the same file) share storage.
// Storing a chunk that already exists is a no-op.
package content

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/restic/chunker"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/metrics"
)

// ============================================================================
// Chunking Parameters
// ============================================================================

const (
	// InlineThreshold is the largest payload stored inline in the
	// metadata.Reference itself. Payloads at or below this size never touch
	// the chunk backend: the bytes ride along with the directory listing.
	InlineThreshold = 4096

	// MinChunkSize and MaxChunkSize bound the content-defined chunking.
	// Boundaries are picked by a rolling Rabin fingerprint, so insertions
	// near the start of a file shift at most a couple of chunks instead of
	// re-addressing the whole tail.
	MinChunkSize = 512 * 1024
	MaxChunkSize = 4 * 1024 * 1024
)

// chunkerPolynomial is the irreducible polynomial driving the Rabin
// fingerprint. It is fixed so that the same bytes always produce the same
// chunk boundaries (and therefore the same chunk IDs) across processes and
// restarts. Changing it would orphan every previously stored chunk.
const chunkerPolynomial = chunker.Pol(0x3DA3358B4DC173)

// ============================================================================
// Backend Interface
// ============================================================================

// Backend stores raw chunks keyed by their content address.
//
// Implementations are dumb byte buckets: they never interpret chunk contents
// and never see a metadata.Reference. The Store above them decides what a
// chunk is and how chunks compose into file content.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Because chunk IDs are content addresses, concurrent writers of the same ID
// are by definition writing the same bytes, so last-write-wins is harmless.
type Backend interface {
	// PutChunk stores a chunk under the given ID.
	//
	// The operation is idempotent: storing an ID that already exists
	// succeeds without rewriting. Implementations must not retain the data
	// slice after returning.
	PutChunk(ctx context.Context, id metadata.ChunkID, data []byte) error

	// GetChunk returns the full bytes of the chunk with the given ID.
	//
	// Returns a NotFound error when no such chunk exists.
	GetChunk(ctx context.Context, id metadata.ChunkID) ([]byte, error)

	// HasChunk reports whether a chunk with the given ID exists.
	//
	// A missing chunk is (false, nil), not an error.
	HasChunk(ctx context.Context, id metadata.ChunkID) (bool, error)
}

// ============================================================================
// Store
// ============================================================================

// Store turns byte streams into metadata.References and back.
//
// Encode consumes a reader and produces the smallest reference that can
// represent it: Empty for zero bytes, Inline up to InlineThreshold, and a
// chunk map beyond that. Decode serves arbitrary subranges of a reference
// without ever materializing more chunks than the range touches.
type Store struct {
	backend Backend
	metrics *metrics.ContentMetrics
}

// NewStore creates a content store on top of the given chunk backend.
// The metrics handle may be nil, in which case no metrics are recorded.
func NewStore(backend Backend, m *metrics.ContentMetrics) *Store {
	return &Store{backend: backend, metrics: m}
}

// Encode reads the stream to completion and stores it, returning a
// reference that describes the stored content.
//
// Small payloads (≤ InlineThreshold bytes) are captured inline and the
// backend is never touched. Larger payloads are split at content-defined
// boundaries; each chunk is stored under its SHA-256 address, skipping
// chunks the backend already holds.
//
// The input is always drained to EOF on success. On error the backend may
// hold some chunks of a reference that was never returned; they are
// harmless and reclaimable by garbage collection.
func (s *Store) Encode(ctx context.Context, r io.Reader) (metadata.Reference, error) {
	if err := ctx.Err(); err != nil {
		return metadata.Reference{}, err
	}

	// Peek one byte past the inline threshold to decide the representation
	// without committing anything to the backend.
	head := make([]byte, InlineThreshold+1)
	n, err := io.ReadFull(r, head)
	switch err {
	case io.EOF:
		s.metrics.AddEncodedBytes(0)
		return metadata.EmptyReference(), nil
	case io.ErrUnexpectedEOF, nil:
		// fall through
	default:
		return metadata.Reference{}, metadata.WrapStorageFailure("read content stream", err)
	}

	if n <= InlineThreshold {
		s.metrics.AddEncodedBytes(uint64(n))
		return metadata.InlineReference(head[:n]), nil
	}

	return s.encodeChunked(ctx, io.MultiReader(bytes.NewReader(head[:n]), r))
}

// encodeChunked splits the stream at content-defined boundaries and stores
// each chunk under its content address.
func (s *Store) encodeChunked(ctx context.Context, r io.Reader) (metadata.Reference, error) {
	cdc := chunker.NewWithBoundaries(r, chunkerPolynomial, MinChunkSize, MaxChunkSize)
	buf := make([]byte, MaxChunkSize)

	var refs []metadata.ChunkRef
	var total uint64

	for {
		if err := ctx.Err(); err != nil {
			return metadata.Reference{}, err
		}

		chunk, err := cdc.Next(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return metadata.Reference{}, metadata.WrapStorageFailure("chunk content stream", err)
		}

		id := chunkID(chunk.Data)

		exists, err := s.backend.HasChunk(ctx, id)
		if err != nil {
			return metadata.Reference{}, err
		}
		if exists {
			s.metrics.RecordChunkDeduplicated()
		} else {
			if err := s.backend.PutChunk(ctx, id, chunk.Data); err != nil {
				return metadata.Reference{}, err
			}
			s.metrics.RecordChunkStored()
		}

		refs = append(refs, metadata.ChunkRef{ID: id, Size: uint32(chunk.Length)})
		total += uint64(chunk.Length)
	}

	s.metrics.AddEncodedBytes(total)
	return metadata.ChunkMapReference(total, refs), nil
}

// Decode returns length bytes of the referenced content starting at offset.
//
// The requested range must lie entirely within the content: offset+length
// beyond ref.Size() yields a Range error, never a short read. A zero-length
// read at any valid offset (including the very end) returns an empty slice.
//
// For chunk-map references only the chunks the range intersects are
// fetched.
func (s *Store) Decode(ctx context.Context, ref metadata.Reference, offset, length uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := ref.Size()
	if offset > size || length > size-offset {
		return nil, metadata.NewStoreError(metadata.ErrRange,
			fmt.Sprintf("range [%d, %d) exceeds content size %d", offset, offset+length, size), "")
	}
	if length == 0 {
		return []byte{}, nil
	}

	switch ref.Kind {
	case metadata.RefInline:
		out := bytes.Clone(ref.Inline[offset : offset+length])
		s.metrics.AddDecodedBytes(length)
		return out, nil

	case metadata.RefChunkMap:
		out, err := s.decodeChunks(ctx, ref, offset, length)
		if err != nil {
			return nil, err
		}
		s.metrics.AddDecodedBytes(length)
		return out, nil

	default:
		// RefEmpty with length > 0 is caught by the range check above.
		return nil, metadata.NewStoreError(metadata.ErrInvalidOperation,
			fmt.Sprintf("cannot decode reference of kind %d", ref.Kind), "")
	}
}

// decodeChunks assembles a subrange from the chunks it intersects.
func (s *Store) decodeChunks(ctx context.Context, ref metadata.Reference, offset, length uint64) ([]byte, error) {
	out := make([]byte, 0, length)
	end := offset + length

	var pos uint64
	for _, cr := range ref.Chunks {
		chunkEnd := pos + uint64(cr.Size)
		if chunkEnd <= offset {
			pos = chunkEnd
			continue
		}
		if pos >= end {
			break
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.backend.GetChunk(ctx, cr.ID)
		if err != nil {
			return nil, err
		}
		if uint64(len(data)) != uint64(cr.Size) {
			return nil, metadata.NewStoreError(metadata.ErrStorageFailure,
				fmt.Sprintf("chunk %s: expected %d bytes, got %d", cr.ID, cr.Size, len(data)), string(cr.ID))
		}

		from := uint64(0)
		if offset > pos {
			from = offset - pos
		}
		to := uint64(cr.Size)
		if end < chunkEnd {
			to = end - pos
		}

		out = append(out, data[from:to]...)
		pos = chunkEnd
	}

	return out, nil
}

// chunkID computes the content address of a chunk.
func chunkID(data []byte) metadata.ChunkID {
	sum := sha256.Sum256(data)
	return metadata.ChunkID(hex.EncodeToString(sum[:]))
}
