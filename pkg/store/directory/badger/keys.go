package badger

import (
	"fmt"

	"github.com/marmos91/vaultfs/pkg/metadata"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so prefixed keys organize the two data
// types the backend holds into logical namespaces:
//
// Data Type        Prefix  Key Format             Value
// =====================================================================
// Chain Records    "c:"    c:<directoryID>        chainRecord (JSON)
// Snapshots        "v:"    v:<directoryID>:<vid>  snapshot bytes (opaque)
//
// Rationale:
//
// 1. Chain Records (c:)
//    - One entry per directory, holding the ordered version IDs and the
//      access level fixed at chain creation.
//    - The record is small (version IDs only); the head check and append
//      of compare-and-append touch exactly this one key, which keeps the
//      transaction's conflict window minimal.
//
// 2. Snapshots (v:)
//    - One entry per persisted version, written once and never modified.
//      Immutability is what makes the read-side cache trivially correct.
//    - Snapshot bytes are opaque to the backend; the codec above decides
//      the format.

func chainKey(id metadata.DirectoryID) []byte {
	return fmt.Appendf(nil, "c:%s", id)
}

func snapshotKey(id metadata.DirectoryID, version metadata.VersionID) []byte {
	return fmt.Appendf(nil, "v:%s:%s", id, version)
}

// cacheKey is the ristretto key for a snapshot.
func cacheKey(id metadata.DirectoryID, version metadata.VersionID) string {
	return string(id) + ":" + string(version)
}
