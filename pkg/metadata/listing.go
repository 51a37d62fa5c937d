package metadata

import (
	"maps"

	"github.com/google/uuid"
)

// DirectoryListing is one immutable snapshot of a directory: its files, its
// child-directory references and a back-reference to its parent.
//
// There is no in-place update semantic at this layer. Callers mutate a
// listing value in memory (UpsertFile, RemoveFile, PutChild, ...) and then
// hand it to the directory store, which appends it as the next version of
// the chain identified by Key. The previously persisted snapshots are never
// touched.
//
// Ownership model:
//   - Files are owned by the listing; the records live inside the snapshot.
//   - Subdirectories are NOT owned. They are ChildRefs: stable keys plus
//     pinned child versions. The child listings themselves live in their
//     own chains.
//   - Parent is a non-owning back-reference by key, absent for the root.
//
// A DirectoryListing value is not safe for concurrent mutation. The
// concurrency model is single writer per directory subtree in-process;
// cross-process races are resolved by the store's compare-and-append check,
// not by locks here.
type DirectoryListing struct {
	// Key is the directory's stable identity.
	Key DirectoryKey `cbor:"k"`

	// Version is the chain position this snapshot was loaded from (or
	// assigned on persist). Empty for a draft that has never been
	// persisted. It is derived state, not snapshot content, so it is
	// excluded from serialization.
	Version VersionID `cbor:"-"`

	// Files maps name to record. Names are unique by construction of
	// this map; order is irrelevant.
	Files map[string]FileRecord `cbor:"f"`

	// Subdirectories maps child directory ID to the child reference.
	Subdirectories map[DirectoryID]ChildRef `cbor:"d"`

	// Parent is the key of the containing directory, nil for the root.
	Parent *DirectoryKey `cbor:"p,omitempty"`
}

// NewDirectoryListing creates an empty draft listing. Pass a nil parent for
// the root directory.
func NewDirectoryListing(key DirectoryKey, parent *DirectoryKey) DirectoryListing {
	var parentCopy *DirectoryKey
	if parent != nil {
		p := *parent
		parentCopy = &p
	}
	return DirectoryListing{
		Key:            key,
		Files:          make(map[string]FileRecord),
		Subdirectories: make(map[DirectoryID]ChildRef),
		Parent:         parentCopy,
	}
}

// FindFile looks up a record by name.
func (l *DirectoryListing) FindFile(name string) (FileRecord, bool) {
	record, ok := l.Files[name]
	return record, ok
}

// FindFileByID looks up a record by its stable ID, which survives renames.
func (l *DirectoryListing) FindFileByID(id uuid.UUID) (FileRecord, bool) {
	for _, record := range l.Files {
		if record.ID == id {
			return record, true
		}
	}
	return FileRecord{}, false
}

// UpsertFile inserts or replaces a record. Replacement is by ID: if an
// entry with the same ID exists under a different name (a rename), the old
// name is removed so the ID occurs at most once in the listing.
func (l *DirectoryListing) UpsertFile(record FileRecord) {
	if l.Files == nil {
		l.Files = make(map[string]FileRecord)
	}
	for name, existing := range l.Files {
		if existing.ID == record.ID && name != record.Name {
			delete(l.Files, name)
			break
		}
	}
	l.Files[record.Name] = record
}

// RemoveFile deletes the entry with the given name. Returns ErrNotFound if
// no such entry exists.
func (l *DirectoryListing) RemoveFile(name string) error {
	if _, ok := l.Files[name]; !ok {
		return NewStoreError(ErrNotFound, "file not found", name)
	}
	delete(l.Files, name)
	return nil
}

// Child returns the reference to the child directory with the given ID.
func (l *DirectoryListing) Child(id DirectoryID) (ChildRef, bool) {
	ref, ok := l.Subdirectories[id]
	return ref, ok
}

// PutChild inserts or replaces a child-directory reference.
func (l *DirectoryListing) PutChild(ref ChildRef) {
	if l.Subdirectories == nil {
		l.Subdirectories = make(map[DirectoryID]ChildRef)
	}
	l.Subdirectories[ref.Key.ID] = ref
}

// RemoveChild deletes the reference to the child with the given ID.
// Returns ErrNotFound if the child is not referenced.
func (l *DirectoryListing) RemoveChild(id DirectoryID) error {
	if _, ok := l.Subdirectories[id]; !ok {
		return NewStoreError(ErrNotFound, "subdirectory not found", string(id))
	}
	delete(l.Subdirectories, id)
	return nil
}

// Clone returns a deep copy sharing no mutable state with the receiver.
// Useful for callers that want to keep a pristine snapshot around while
// preparing a mutation.
func (l *DirectoryListing) Clone() DirectoryListing {
	clone := *l
	clone.Files = make(map[string]FileRecord, len(l.Files))
	for name, record := range l.Files {
		clone.Files[name] = record.Clone()
	}
	clone.Subdirectories = maps.Clone(l.Subdirectories)
	if clone.Subdirectories == nil {
		clone.Subdirectories = make(map[DirectoryID]ChildRef)
	}
	if l.Parent != nil {
		p := *l.Parent
		clone.Parent = &p
	}
	return clone
}
