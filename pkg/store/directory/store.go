// Package directory persists directory snapshots as append-only version
// chains and propagates identity changes up the containment tree.
//
// Every directory is identified by a metadata.DirectoryKey. Persisting a
// listing appends one snapshot to the chain keyed by that directory; the
// chain's last element is the directory's "current" version. Because a
// parent listing pins the versions of its children (metadata.ChildRef),
// persisting a child changes what the parent should point at, which in turn
// produces a new parent version, and so on upward. Store.Persist performs
// that walk to a fixed point and reports every ancestor it re-persisted.
//
// Concurrency is optimistic: appends are compare-and-append against the
// chain head, concurrent persists of the same directory serialize at the
// backend, and the loser gets ErrConflict. The store never retries on its
// own - the retry loop belongs to the caller, which must re-fetch the
// current snapshot and reapply its intended change.
package directory

import (
	"context"

	"github.com/marmos91/vaultfs/internal/logger"
	"github.com/marmos91/vaultfs/pkg/metadata"
	"github.com/marmos91/vaultfs/pkg/metrics"
)

// ============================================================================
// Backend Interface
// ============================================================================

// Backend is the storage capability the directory store is built on.
// Implementations persist opaque snapshot bytes per (directory, version)
// and maintain the per-directory ordered version chain.
//
// Thread safety: implementations must be safe for concurrent use, and
// AppendVersion for a given key must be atomic with respect to the chain
// head check (two racing appends based on the same head must not both
// succeed).
type Backend interface {
	// AppendVersion appends a snapshot as the next version of the chain
	// keyed by key, provided the chain's current head equals basedOn.
	// An empty basedOn asserts the chain does not exist yet (first
	// persist of a draft).
	//
	// Returns the new version ID, or an error with code:
	//   - ErrConflict if the head moved (or, for a draft, the chain
	//     already exists): compare-and-append failed
	//   - ErrStorageFailure for backend errors
	AppendVersion(ctx context.Context, key metadata.DirectoryKey, snapshot []byte, basedOn metadata.VersionID) (metadata.VersionID, error)

	// ListVersions returns the ordered version chain for key, oldest
	// first. Fails with ErrNotFound if the key has never been persisted.
	ListVersions(ctx context.Context, key metadata.DirectoryKey) ([]metadata.VersionID, error)

	// FetchVersion returns the snapshot bytes stored at (key, version).
	// The access level is the caller's capability; the backend rejects
	// the fetch with ErrAccessDenied if it does not satisfy the level
	// the chain was created with. Fails with ErrNotFound for unknown
	// keys and ErrVersionNotFound for unknown versions.
	FetchVersion(ctx context.Context, key metadata.DirectoryKey, access metadata.AccessLevel, version metadata.VersionID) ([]byte, error)
}

// ============================================================================
// Store
// ============================================================================

// Store implements directory versioning and upward propagation on top of a
// Backend and a snapshot codec.
//
// The store itself is stateless; all state lives in the backend. A single
// Store may be shared freely across goroutines.
type Store struct {
	backend Backend
	codec   metadata.Codec
	metrics *metrics.DirectoryMetrics
}

// NewStore creates a directory store. The metrics argument may be nil.
func NewStore(backend Backend, codec metadata.Codec, m *metrics.DirectoryMetrics) *Store {
	return &Store{backend: backend, codec: codec, metrics: m}
}

// PersistResult reports the outcome of one Persist call.
type PersistResult struct {
	// Listing is the persisted listing with its Version set to the newly
	// appended chain position. Callers replace their working copy with
	// this value.
	Listing metadata.DirectoryListing

	// Propagated contains every ancestor listing that was re-persisted
	// to pick up the new child version, ordered from the immediate
	// parent upward. Callers holding cached copies of any ancestor must
	// refresh them from here; an empty slice means no ancestor needed
	// updating.
	Propagated []metadata.DirectoryListing
}

// Persist appends the listing as the next version of its chain and then
// walks the containment tree upward, re-persisting every ancestor whose
// stored child reference became stale, until an ancestor already matches or
// the root is reached.
//
// State machine per directory: a draft (empty Version) becomes
// Persisted(v1) on first persist, and Persisted(vN) becomes
// Persisted(vN+1) on each subsequent one. The chain only grows; there is no
// terminal state.
//
// Errors:
//   - ErrConflict if the chain head moved since the listing was read
//     (compare-and-append failed, here or on any ancestor). The caller
//     must re-fetch and reapply; the store does not retry.
//   - ErrStorageFailure for backend errors.
func (s *Store) Persist(ctx context.Context, listing metadata.DirectoryListing) (*PersistResult, error) {
	updated, err := s.appendOne(ctx, listing)
	if err != nil {
		s.recordPersist(err)
		return nil, err
	}

	result := &PersistResult{Listing: updated}

	// Walk upward by key lookup. Child refs are non-owning, so each hop
	// re-fetches the ancestor's current snapshot from the backend; there
	// are no live parent pointers to follow and therefore no cycles.
	child := updated
	for child.Parent != nil {
		parentKey := *child.Parent

		parent, err := s.GetCurrent(ctx, parentKey, parentKey.Access)
		if metadata.HasCode(err, metadata.ErrNotFound) {
			// The parent was never persisted; there is no stored
			// reference to update.
			break
		}
		if err != nil {
			s.recordPersist(err)
			return nil, err
		}

		ref, ok := parent.Child(child.Key.ID)
		if !ok || ref.Version == child.Version {
			// Ancestor already matches (or does not reference the
			// child); the fixed point is reached.
			break
		}

		parent.PutChild(metadata.ChildRef{Key: child.Key, Version: child.Version})
		parentUpdated, err := s.appendOne(ctx, parent)
		if err != nil {
			s.recordPersist(err)
			return nil, err
		}

		logger.Debug("propagated directory version: child=%s parent=%s version=%s",
			child.Key.ID, parentUpdated.Key.ID, parentUpdated.Version)

		result.Propagated = append(result.Propagated, parentUpdated)
		child = parentUpdated
	}

	s.metrics.RecordPersist("ok")
	s.metrics.ObservePropagation(len(result.Propagated))
	return result, nil
}

// GetVersions returns the ordered version chain for key, oldest first.
//
// Errors:
//   - ErrNotFound if the key has never been persisted
//   - ErrInvalidOperation if the key is not versioned
func (s *Store) GetVersions(ctx context.Context, key metadata.DirectoryKey) ([]metadata.VersionID, error) {
	if !key.Versioned {
		return nil, metadata.NewStoreError(metadata.ErrInvalidOperation,
			"directory is not versioned", string(key.ID))
	}
	return s.backend.ListVersions(ctx, key)
}

// GetByVersion reconstructs the historical snapshot stored at (key,
// version).
//
// Errors:
//   - ErrNotFound if the key has never been persisted
//   - ErrVersionNotFound if the version is absent from the chain
//   - ErrAccessDenied if access does not satisfy the key's level
func (s *Store) GetByVersion(ctx context.Context, key metadata.DirectoryKey, access metadata.AccessLevel, version metadata.VersionID) (metadata.DirectoryListing, error) {
	data, err := s.backend.FetchVersion(ctx, key, access, version)
	if err != nil {
		return metadata.DirectoryListing{}, err
	}
	s.metrics.RecordVersionFetch()

	listing, err := s.codec.DecodeListing(data)
	if err != nil {
		return metadata.DirectoryListing{}, err
	}
	listing.Version = version
	return listing, nil
}

// GetCurrent returns the chain's latest snapshot for key.
//
// Errors: as GetByVersion, minus ErrVersionNotFound.
func (s *Store) GetCurrent(ctx context.Context, key metadata.DirectoryKey, access metadata.AccessLevel) (metadata.DirectoryListing, error) {
	versions, err := s.backend.ListVersions(ctx, key)
	if err != nil {
		return metadata.DirectoryListing{}, err
	}
	return s.GetByVersion(ctx, key, access, versions[len(versions)-1])
}

// appendOne serializes the listing and appends it to its chain, returning
// the listing stamped with its new version.
func (s *Store) appendOne(ctx context.Context, listing metadata.DirectoryListing) (metadata.DirectoryListing, error) {
	data, err := s.codec.EncodeListing(listing)
	if err != nil {
		return metadata.DirectoryListing{}, err
	}

	version, err := s.backend.AppendVersion(ctx, listing.Key, data, listing.Version)
	if err != nil {
		return metadata.DirectoryListing{}, err
	}

	listing.Version = version
	return listing, nil
}

// recordPersist classifies a persist failure for metrics.
func (s *Store) recordPersist(err error) {
	if metadata.HasCode(err, metadata.ErrConflict) {
		s.metrics.RecordPersist("conflict")
		return
	}
	s.metrics.RecordPersist("error")
}
