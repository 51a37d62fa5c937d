package metadata

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// FileRecord is a file's complete metadata entry inside one directory
// listing.
//
// Identity and naming follow two different rules:
//   - ID is assigned at creation and never changes afterwards, no matter
//     how often the file's content, name or metadata are updated. It is
//     what UpdateMetadata uses to locate the entry being renamed.
//   - Name is unique only among the siblings of one DirectoryListing.
//     Two different directories may each contain a "notes.txt" with no
//     relationship between them.
//
// Content is mutated in exactly one place: Writer.Close. Every other
// operation treats the reference as an opaque value to be carried around
// or compared.
type FileRecord struct {
	// ID is the file's stable identity, assigned once at creation.
	ID uuid.UUID `cbor:"i"`

	// Name is the file's name within its directory.
	Name string `cbor:"n"`

	// UserMetadata is an opaque byte payload owned entirely by the
	// caller. The library stores and returns it verbatim.
	UserMetadata []byte `cbor:"u,omitempty"`

	// Size is the logical content size in bytes. Kept in sync with
	// Content by Writer.Close.
	Size uint64 `cbor:"s"`

	// CreatedAt is the record's creation time (UTC).
	CreatedAt time.Time `cbor:"c"`

	// ModifiedAt is the last content-modification time (UTC). Version
	// coalescing in FileService.Versions keys off this field: two
	// adjacent directory versions with the same ModifiedAt for a file
	// report as a single file version.
	ModifiedAt time.Time `cbor:"m"`

	// Content describes how to reconstruct the file's bytes.
	Content Reference `cbor:"r"`
}

// NewFileRecord creates an empty record with a fresh ID and both timestamps
// set to the current time. The record carries no content until a Writer
// bound to it is closed.
func NewFileRecord(name string, userMetadata []byte) FileRecord {
	now := time.Now().UTC()
	return FileRecord{
		ID:           uuid.New(),
		Name:         name,
		UserMetadata: bytes.Clone(userMetadata),
		Size:         0,
		CreatedAt:    now,
		ModifiedAt:   now,
		Content:      EmptyReference(),
	}
}

// Equal reports field-for-field equality. This is the stale-write guard
// used by FileService.UpdateContent: a caller presenting a record that
// differs from the stored entry in any field is working from a stale read.
func (r FileRecord) Equal(other FileRecord) bool {
	return r.ID == other.ID &&
		r.Name == other.Name &&
		bytes.Equal(r.UserMetadata, other.UserMetadata) &&
		r.Size == other.Size &&
		r.CreatedAt.Equal(other.CreatedAt) &&
		r.ModifiedAt.Equal(other.ModifiedAt) &&
		r.Content.Equal(other.Content)
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (r FileRecord) Clone() FileRecord {
	clone := r
	clone.UserMetadata = bytes.Clone(r.UserMetadata)
	clone.Content = r.Content.Clone()
	return clone
}
