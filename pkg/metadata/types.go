package metadata

import (
	"github.com/google/uuid"
)

// ============================================================================
// Core Identity Types
// ============================================================================

// DirectoryID is the opaque identifier of a directory, stable across every
// version of that directory. Generated as a UUID v4 string.
type DirectoryID string

// VersionID identifies one persisted snapshot within a directory's version
// chain. The empty string means "draft": an in-memory listing that has never
// been persisted (or, when passed as the expected base of a persist, that
// the chain must not exist yet).
type VersionID string

// AccessLevel is the capability required to fetch a directory's snapshots.
//
// The level is fixed in the DirectoryKey at creation time and enforced by
// the directory backend on every fetch. It is deliberately coarse: policy
// beyond this single capability check lives outside this library.
type AccessLevel int

const (
	// AccessPublic grants read access to any caller.
	AccessPublic AccessLevel = iota

	// AccessPrivate restricts access to callers holding the private
	// capability.
	AccessPrivate
)

// String returns a human-readable name for logging and errors.
func (a AccessLevel) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Satisfies reports whether a caller holding this level may access data
// guarded by the required level. Private satisfies everything; public
// satisfies only public.
func (a AccessLevel) Satisfies(required AccessLevel) bool {
	return a >= required
}

// ============================================================================
// DirectoryKey
// ============================================================================

// DirectoryKey is the stable identity of a directory across all of its
// persisted versions. It is immutable once created: every snapshot of the
// directory, and every reference to it from a parent listing, carries the
// same key.
//
// The key intentionally contains no version information. Version identity
// lives in the chain (see store/directory); parents pin child versions via
// ChildRef.
type DirectoryKey struct {
	// ID is the directory's opaque identifier.
	ID DirectoryID `cbor:"i"`

	// TypeTag partitions the key space by application-defined directory
	// kind. Two directories with equal IDs but different tags are
	// distinct.
	TypeTag uint64 `cbor:"t"`

	// Versioned indicates whether historical snapshots of this directory
	// may be enumerated. Unversioned directories still persist through
	// the same chain mechanism, but version listing is rejected with
	// ErrInvalidOperation.
	Versioned bool `cbor:"v"`

	// Access is the capability required to fetch this directory's
	// snapshots.
	Access AccessLevel `cbor:"a"`
}

// NewDirectoryKey creates a key with a fresh random ID.
func NewDirectoryKey(typeTag uint64, versioned bool, access AccessLevel) DirectoryKey {
	return DirectoryKey{
		ID:        DirectoryID(uuid.NewString()),
		TypeTag:   typeTag,
		Versioned: versioned,
		Access:    access,
	}
}

// ============================================================================
// ChildRef
// ============================================================================

// ChildRef is a parent directory's reference to one of its children: the
// child's stable key plus the child version the parent was last updated to
// point at.
//
// The reference is non-owning. Holding a ChildRef never implies holding the
// child listing itself; children are always re-fetched by key. This is what
// keeps the containment tree free of reference cycles: upward propagation
// walks keys, never live pointers.
type ChildRef struct {
	// Key is the child's stable identity.
	Key DirectoryKey `cbor:"k"`

	// Version is the child version this reference was last synchronized
	// to. When a child persists a new version, propagation rewrites this
	// field in the parent (producing a new parent version, and so on up
	// the tree).
	Version VersionID `cbor:"v"`
}
