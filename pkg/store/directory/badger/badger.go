// Package badger provides a persistent directory backend on BadgerDB.
//
// This implementation is suitable for production deployments where version
// chains must survive restarts. Chains and snapshots are stored under
// namespaced keys (see keys.go); compare-and-append runs inside a single
// Badger read-write transaction, which serializes racing persists of the
// same directory.
//
// Because persisted snapshots are immutable, the backend keeps a ristretto
// read cache keyed by (directory, version): version walks such as
// FileService.Versions hit the same snapshots repeatedly and skip the
// database entirely after the first fetch.
package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"

	"github.com/marmos91/vaultfs/internal/logger"
	"github.com/marmos91/vaultfs/pkg/metadata"
)

// chainRecord is the persisted per-directory chain state.
type chainRecord struct {
	// Access is the capability requirement recorded at chain creation.
	Access metadata.AccessLevel `json:"access"`

	// Versions is the append-only ordered chain, oldest first.
	Versions []metadata.VersionID `json:"versions"`
}

// Config contains configuration for the Badger directory backend.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path"`

	// InMemory runs Badger without touching disk. Useful for tests.
	InMemory bool `mapstructure:"in_memory"`

	// SnapshotCacheBytes bounds the ristretto snapshot cache.
	// 0 selects the default of 64 MiB; negative disables the cache.
	SnapshotCacheBytes int64 `mapstructure:"snapshot_cache_bytes"`
}

// Backend implements directory.Backend on BadgerDB.
type Backend struct {
	db    *badger.DB
	cache *ristretto.Cache[string, []byte]
}

// NewBackend opens (or creates) the database and prepares the snapshot
// cache. Callers own the returned backend and must Close it.
func NewBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, metadata.WrapStorageFailure("open cancelled", err)
	}

	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger backend: path is required")
	}

	options := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	db, err := badger.Open(options)
	if err != nil {
		return nil, metadata.WrapStorageFailure("failed to open badger database", err)
	}

	backend := &Backend{db: db}

	cacheBytes := cfg.SnapshotCacheBytes
	if cacheBytes == 0 {
		cacheBytes = 64 << 20
	}
	if cacheBytes > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: 1e5,
			MaxCost:     cacheBytes,
			BufferItems: 64,
		})
		if err != nil {
			_ = db.Close()
			return nil, metadata.WrapStorageFailure("failed to create snapshot cache", err)
		}
		backend.cache = cache
	}

	logger.Info("badger directory backend opened: path=%s in_memory=%v", cfg.Path, cfg.InMemory)
	return backend, nil
}

// Close releases the database and the cache.
func (b *Backend) Close() error {
	if b.cache != nil {
		b.cache.Close()
	}
	return b.db.Close()
}

// AppendVersion implements directory.Backend.
//
// The head check and the append run in one read-write transaction. Badger
// detects conflicting transactions at commit; both a failed head check and
// a commit-time conflict surface as ErrConflict, so racing persists based
// on the same prior version resolve to exactly one winner.
func (b *Backend) AppendVersion(ctx context.Context, key metadata.DirectoryKey, snapshot []byte, basedOn metadata.VersionID) (metadata.VersionID, error) {
	if err := ctx.Err(); err != nil {
		return "", metadata.WrapStorageFailure("append cancelled", err)
	}

	version := metadata.VersionID(uuid.NewString())

	err := b.db.Update(func(txn *badger.Txn) error {
		record, err := b.readChain(txn, key.ID)
		switch {
		case metadata.HasCode(err, metadata.ErrNotFound):
			if basedOn != "" {
				return metadata.NewStoreError(metadata.ErrConflict,
					"version chain does not exist for base version", string(key.ID))
			}
			record = &chainRecord{Access: key.Access}
		case err != nil:
			return err
		default:
			if basedOn == "" {
				return metadata.NewStoreError(metadata.ErrConflict,
					"version chain already exists", string(key.ID))
			}
			if record.Versions[len(record.Versions)-1] != basedOn {
				return metadata.NewStoreError(metadata.ErrConflict,
					"version chain head moved", string(key.ID))
			}
		}

		record.Versions = append(record.Versions, version)

		encoded, err := json.Marshal(record)
		if err != nil {
			return metadata.WrapStorageFailure("failed to encode chain record", err)
		}
		if err := txn.Set(chainKey(key.ID), encoded); err != nil {
			return metadata.WrapStorageFailure("failed to write chain record", err)
		}
		if err := txn.Set(snapshotKey(key.ID, version), snapshot); err != nil {
			return metadata.WrapStorageFailure("failed to write snapshot", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return "", metadata.NewStoreError(metadata.ErrConflict,
				"concurrent append detected", string(key.ID))
		}
		var storeErr *metadata.StoreError
		if errors.As(err, &storeErr) {
			return "", storeErr
		}
		return "", metadata.WrapStorageFailure("append transaction failed", err)
	}

	return version, nil
}

// ListVersions implements directory.Backend.
func (b *Backend) ListVersions(ctx context.Context, key metadata.DirectoryKey) ([]metadata.VersionID, error) {
	if err := ctx.Err(); err != nil {
		return nil, metadata.WrapStorageFailure("list cancelled", err)
	}

	var versions []metadata.VersionID
	err := b.db.View(func(txn *badger.Txn) error {
		record, err := b.readChain(txn, key.ID)
		if err != nil {
			return err
		}
		versions = record.Versions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// FetchVersion implements directory.Backend.
func (b *Backend) FetchVersion(ctx context.Context, key metadata.DirectoryKey, access metadata.AccessLevel, version metadata.VersionID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, metadata.WrapStorageFailure("fetch cancelled", err)
	}

	// The access check needs the chain record even on a cache hit, so the
	// capability cannot be bypassed by a warm cache.
	var chainAccess metadata.AccessLevel
	err := b.db.View(func(txn *badger.Txn) error {
		record, err := b.readChain(txn, key.ID)
		if err != nil {
			return err
		}
		chainAccess = record.Access
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !access.Satisfies(chainAccess) {
		return nil, metadata.NewStoreError(metadata.ErrAccessDenied,
			"access level does not satisfy directory capability", string(key.ID))
	}

	if b.cache != nil {
		if snapshot, ok := b.cache.Get(cacheKey(key.ID, version)); ok {
			return bytes.Clone(snapshot), nil
		}
	}

	var snapshot []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(key.ID, version))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return metadata.NewStoreError(metadata.ErrVersionNotFound,
				"version not found in chain", string(version))
		}
		if err != nil {
			return metadata.WrapStorageFailure("failed to read snapshot", err)
		}
		snapshot, err = item.ValueCopy(nil)
		if err != nil {
			return metadata.WrapStorageFailure("failed to copy snapshot", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		b.cache.Set(cacheKey(key.ID, version), bytes.Clone(snapshot), int64(len(snapshot)))
	}
	return snapshot, nil
}

// readChain loads and decodes the chain record inside a transaction.
func (b *Backend) readChain(txn *badger.Txn, id metadata.DirectoryID) (*chainRecord, error) {
	item, err := txn.Get(chainKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewStoreError(metadata.ErrNotFound,
			"directory not found", string(id))
	}
	if err != nil {
		return nil, metadata.WrapStorageFailure("failed to read chain record", err)
	}

	encoded, err := item.ValueCopy(nil)
	if err != nil {
		return nil, metadata.WrapStorageFailure("failed to copy chain record", err)
	}

	var record chainRecord
	if err := json.Unmarshal(encoded, &record); err != nil {
		return nil, metadata.WrapStorageFailure("failed to decode chain record", err)
	}
	return &record, nil
}
