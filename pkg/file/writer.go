package file

import (
	"bytes"
	"context"
	"time"

	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
	"github.com/marmos91/vaultfs/pkg/store/directory"
)

// WriteMode selects how a Writer treats the file's existing content.
type WriteMode int

const (
	// Overwrite discards any existing content: the file ends up holding
	// exactly the bytes written through the Writer.
	Overwrite WriteMode = iota

	// Modify seeds the Writer with the file's current content, so byte
	// ranges the caller never writes keep their previous values.
	Modify
)

// bufferedWrite is one logical write queued for Close. Writes are kept in
// arrival order; when ranges overlap, later writes win.
type bufferedWrite struct {
	offset uint64
	data   []byte
}

// Writer accumulates writes against one file and commits them as a single
// atomic operation.
//
// Nothing is durable until Close succeeds: chunks are uploaded, the file
// record is updated, the listing is persisted and ancestors are propagated
// all inside Close. An abandoned Writer leaves no trace in either store, so
// discarding one requires no cleanup.
//
// A Writer is single-use and single-owner. Close consumes it whether it
// succeeds or fails; any Write or Close after that returns an
// InvalidOperation error. Writers are not safe for concurrent use.
type Writer struct {
	contents    *content.Store
	directories *directory.Store

	listing metadata.DirectoryListing
	record  metadata.FileRecord
	base    metadata.Reference

	writes []bufferedWrite
	closed bool
}

func newWriter(contents *content.Store, directories *directory.Store, listing metadata.DirectoryListing, record metadata.FileRecord, base metadata.Reference) *Writer {
	return &Writer{
		contents:    contents,
		directories: directories,
		listing:     listing.Clone(),
		record:      record.Clone(),
		base:        base.Clone(),
	}
}

// Write buffers data at the given logical offset. Writes may arrive in any
// order and may overlap; overlaps resolve in favor of the most recent
// write. No size ceiling is enforced here.
//
// The data is copied, so the caller may reuse its buffer immediately.
func (w *Writer) Write(data []byte, offset uint64) error {
	if w.closed {
		return metadata.NewStoreError(metadata.ErrInvalidOperation, "write on a closed writer", w.record.Name)
	}

	w.writes = append(w.writes, bufferedWrite{offset: offset, data: bytes.Clone(data)})
	return nil
}

// Close flushes all buffered writes, stores the resulting content, updates
// the file record (size, modification time, content reference), upserts it
// into the directory listing and persists the listing.
//
// The returned PersistResult carries the updated listing and every ancestor
// listing that was re-persisted during propagation; callers holding cached
// copies of those directories must refresh them from it.
//
// Close consumes the Writer: a second Close returns InvalidOperation
// regardless of the first one's outcome. If Close fails, no part of the
// update is visible anywhere.
func (w *Writer) Close(ctx context.Context) (*directory.PersistResult, error) {
	if w.closed {
		return nil, metadata.NewStoreError(metadata.ErrInvalidOperation, "writer already closed", w.record.Name)
	}
	w.closed = true

	buf, err := w.materialize(ctx)
	if err != nil {
		return nil, err
	}

	ref, err := w.contents.Encode(ctx, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}

	w.record.Content = ref
	w.record.Size = ref.Size()
	w.record.ModifiedAt = time.Now().UTC()
	w.listing.UpsertFile(w.record)

	return w.directories.Persist(ctx, w.listing)
}

// materialize assembles the final byte stream: the seed content (empty for
// Overwrite, the previous content for Modify) with every buffered write
// applied on top in arrival order. The result's length is the largest
// offset any source covered.
func (w *Writer) materialize(ctx context.Context) ([]byte, error) {
	size := w.base.Size()
	for _, bw := range w.writes {
		if end := bw.offset + uint64(len(bw.data)); end > size {
			size = end
		}
	}

	buf := make([]byte, size)
	if w.base.Size() > 0 {
		seed, err := w.contents.Decode(ctx, w.base, 0, w.base.Size())
		if err != nil {
			return nil, err
		}
		copy(buf, seed)
	}

	for _, bw := range w.writes {
		copy(buf[bw.offset:], bw.data)
	}

	return buf, nil
}
