// Package file implements file CRUD on top of the content and directory
// stores.
//
// The Service is the orchestration layer: it enforces naming and identity
// invariants inside a directory listing (unique names, stable file IDs,
// stale-write detection) and composes the two stores so that a content
// update and its directory persist always happen together, through a
// Writer's Close.
//
// Concurrency model: a DirectoryListing value is not safe for concurrent
// mutation; the Service assumes one writer at a time per directory subtree
// in-process. Cross-process races are resolved by the directory store's
// compare-and-append, which surfaces as a Conflict error the caller retries
// by re-fetching the current listing and reapplying its change. The Service
// itself never retries.
package file

import (
	"context"

	"github.com/marmos91/vaultfs/internal/logger"
	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/store/content"
	"github.com/marmos91/vaultfs/pkg/store/directory"
)

// Service orchestrates file operations against a content store and a
// directory store. Both are injected at construction; the Service holds no
// other state and is safe to share.
type Service struct {
	contents    *content.Store
	directories *directory.Store
}

// NewService creates a file service over the given stores.
func NewService(contents *content.Store, directories *directory.Store) *Service {
	return &Service{contents: contents, directories: directories}
}

// Create starts a new file with the given name in parent and returns a
// Writer for its initial content.
//
// Fails AlreadyExists if the name is already taken in parent. The file
// becomes visible in the listing only when the Writer is closed; until
// then the directory is untouched.
func (s *Service) Create(name string, userMetadata []byte, parent metadata.DirectoryListing) (*Writer, error) {
	if _, exists := parent.FindFile(name); exists {
		return nil, metadata.NewStoreError(metadata.ErrAlreadyExists, "file already exists", name)
	}

	record := metadata.NewFileRecord(name, userMetadata)
	logger.Debug("creating file %q (id %s) in directory %s", name, record.ID, parent.Key.ID)

	return newWriter(s.contents, s.directories, parent, record, metadata.EmptyReference()), nil
}

// Delete removes the named file from parent and persists the listing.
//
// Fails NotFound if the name is absent. The file's content is not erased
// from the content store: prior directory versions still reference it, and
// historical reads through them keep working.
func (s *Service) Delete(ctx context.Context, name string, parent metadata.DirectoryListing) (*directory.PersistResult, error) {
	listing := parent.Clone()
	if err := listing.RemoveFile(name); err != nil {
		return nil, err
	}

	logger.Debug("deleting file %q from directory %s", name, parent.Key.ID)
	return s.directories.Persist(ctx, listing)
}

// UpdateMetadata replaces the stored entry that shares record's ID with
// record, persisting the listing. This is the rename/metadata path; content
// is untouched.
//
// Fails NotFound when no entry carries record's ID. When the update renames
// the file and the new name collides with a different sibling, fails
// AlreadyExists and leaves the listing unchanged.
func (s *Service) UpdateMetadata(ctx context.Context, record metadata.FileRecord, parent metadata.DirectoryListing) (*directory.PersistResult, error) {
	stored, ok := parent.FindFileByID(record.ID)
	if !ok {
		return nil, metadata.NewStoreError(metadata.ErrNotFound, "file not found", record.Name)
	}

	if record.Name != stored.Name {
		if _, taken := parent.FindFile(record.Name); taken {
			return nil, metadata.NewStoreError(metadata.ErrAlreadyExists, "name already in use", record.Name)
		}
	}

	listing := parent.Clone()
	listing.UpsertFile(record)

	logger.Debug("updating metadata of file %s (%q -> %q) in directory %s",
		record.ID, stored.Name, record.Name, parent.Key.ID)
	return s.directories.Persist(ctx, listing)
}

// UpdateContent returns a Writer for rewriting the named file's content.
//
// The record the caller passes must match the stored entry field for field;
// any difference means the caller is working from a stale snapshot and the
// operation fails Conflict before anything is written. Fails NotFound when
// the name is absent.
//
// The mode decides the seed: Overwrite starts from empty, Modify starts
// from the file's current content.
func (s *Service) UpdateContent(record metadata.FileRecord, mode WriteMode, parent metadata.DirectoryListing) (*Writer, error) {
	stored, ok := parent.FindFile(record.Name)
	if !ok {
		return nil, metadata.NewStoreError(metadata.ErrNotFound, "file not found", record.Name)
	}

	if !record.Equal(stored) {
		return nil, metadata.NewStoreError(metadata.ErrConflict, "file record is stale", record.Name)
	}

	base := metadata.EmptyReference()
	if mode == Modify {
		base = stored.Content
	}

	return newWriter(s.contents, s.directories, parent, stored, base), nil
}

// Read returns a Reader over the record's current content reference. No
// persistence side effects.
func (s *Service) Read(record metadata.FileRecord) *Reader {
	return newReader(s.contents, record.Content)
}

// Versions returns the distinct historical snapshots of the named file,
// oldest first.
//
// The parent's version chain is walked oldest to newest; a snapshot is
// reported only when the file's modification time differs from the
// previously reported one, so consecutive directory versions that changed
// for unrelated reasons (sibling edits, propagation) collapse into a
// single entry.
//
// Fails NotFound when the file appears in no version of the directory, and
// InvalidOperation when the parent key is unversioned.
func (s *Service) Versions(ctx context.Context, record metadata.FileRecord, parent metadata.DirectoryListing) ([]metadata.FileRecord, error) {
	versions, err := s.directories.GetVersions(ctx, parent.Key)
	if err != nil {
		return nil, err
	}

	var out []metadata.FileRecord
	for _, version := range versions {
		snapshot, err := s.directories.GetByVersion(ctx, parent.Key, parent.Key.Access, version)
		if err != nil {
			return nil, err
		}

		entry, ok := snapshot.FindFile(record.Name)
		if !ok {
			continue
		}

		if len(out) == 0 || !entry.ModifiedAt.Equal(out[len(out)-1].ModifiedAt) {
			out = append(out, entry)
		}
	}

	if len(out) == 0 {
		return nil, metadata.NewStoreError(metadata.ErrNotFound, "file not found in any version", record.Name)
	}

	return out, nil
}
