package metadata

import "bytes"

// ============================================================================
// Content References
// ============================================================================

// RefKind discriminates the three shapes a content reference can take.
type RefKind uint8

const (
	// RefEmpty is the reference of a file that has never been written.
	// Its size is zero and it resolves to no bytes.
	RefEmpty RefKind = iota

	// RefInline carries the file's bytes directly inside the reference.
	// Content stores use this for payloads small enough that a chunk
	// round-trip would cost more than it saves.
	RefInline

	// RefChunkMap describes the file as an ordered list of
	// content-addressed chunks held by a content store.
	RefChunkMap
)

// ChunkID is the content address of a single stored chunk (hex-encoded
// SHA-256 of the chunk bytes). Identical data always yields the identical
// ID, which is what makes deduplication inside content stores possible.
type ChunkID string

// ChunkRef is one entry of a chunk map: which chunk, and how many bytes of
// the logical stream it covers. Logical offsets are implicit: chunk i starts
// where chunk i-1 ended.
type ChunkRef struct {
	// ID is the chunk's content address.
	ID ChunkID `cbor:"i"`

	// Size is the chunk length in bytes. Always non-zero.
	Size uint32 `cbor:"s"`
}

// Reference is the opaque, self-describing descriptor from which a file's
// byte stream is reconstructed. It is produced exclusively by
// ContentStore.Encode (surfaced through Writer.Close) and consumed by
// ContentStore.Decode (surfaced through Reader).
//
// Self-describing means the total size is derivable from the reference
// alone, without a round-trip to the content store; Reader.Size relies on
// this. The reference is independent of any file or directory naming: the
// same reference may be shared by any number of records.
type Reference struct {
	// Kind selects which of the remaining fields are meaningful.
	Kind RefKind `cbor:"k"`

	// Inline holds the payload for RefInline references.
	Inline []byte `cbor:"d,omitempty"`

	// Total is the logical stream size for RefChunkMap references.
	Total uint64 `cbor:"t,omitempty"`

	// Chunks is the ordered chunk map for RefChunkMap references.
	Chunks []ChunkRef `cbor:"c,omitempty"`
}

// EmptyReference returns the reference of never-written content.
func EmptyReference() Reference {
	return Reference{Kind: RefEmpty}
}

// InlineReference builds a reference carrying the payload itself. The data
// is copied so the reference does not alias caller-owned buffers.
func InlineReference(data []byte) Reference {
	return Reference{Kind: RefInline, Inline: bytes.Clone(data)}
}

// ChunkMapReference builds a reference over an ordered chunk map.
func ChunkMapReference(total uint64, chunks []ChunkRef) Reference {
	return Reference{Kind: RefChunkMap, Total: total, Chunks: chunks}
}

// Size returns the total number of bytes the reference resolves to.
// This is an O(1) metadata lookup; no store round-trip is involved.
func (r Reference) Size() uint64 {
	switch r.Kind {
	case RefInline:
		return uint64(len(r.Inline))
	case RefChunkMap:
		return r.Total
	default:
		return 0
	}
}

// Equal reports whether two references describe the same content layout.
func (r Reference) Equal(other Reference) bool {
	if r.Kind != other.Kind {
		return false
	}
	switch r.Kind {
	case RefEmpty:
		return true
	case RefInline:
		return bytes.Equal(r.Inline, other.Inline)
	case RefChunkMap:
		if r.Total != other.Total || len(r.Chunks) != len(other.Chunks) {
			return false
		}
		for i := range r.Chunks {
			if r.Chunks[i] != other.Chunks[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy that shares no mutable state with the receiver.
func (r Reference) Clone() Reference {
	clone := r
	clone.Inline = bytes.Clone(r.Inline)
	if r.Chunks != nil {
		clone.Chunks = make([]ChunkRef, len(r.Chunks))
		copy(clone.Chunks, r.Chunks)
	}
	return clone
}
