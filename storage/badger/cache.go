package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"go.uber.org/zap"
)

// VectorCache implements storage.VectorCache for BadgerDB.
type VectorCache struct {
	backend *Backend
	owned   bool
	logger  *zap.Logger
}

var _ storage.VectorCache = (*VectorCache)(nil)

// NewVectorCache opens (or creates) a vector cache in dir.
func NewVectorCache(dir string) (storage.VectorCache, error) {
	backend, err := OpenBackend(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector cache: %w", err)
	}
	return newVectorCache(backend, true), nil
}

// NewVectorCacheWithBackend creates a cache on an existing backend.
// Closing the cache leaves the backend open.
func NewVectorCacheWithBackend(backend *Backend) *VectorCache {
	return newVectorCache(backend, false)
}

func newVectorCache(backend *Backend, owned bool) *VectorCache {
	return &VectorCache{
		backend: backend,
		owned:   owned,
		logger:  backend.logger.Named("vector-cache"),
	}
}

func (c *VectorCache) GetVector(ctx context.Context, namespace string, key core.ID) ([]float32, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var vector []float32
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeVectorKey(namespace, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decodeErr error
			vector, decodeErr = storage.UnmarshalVector(val)
			return decodeErr
		})
	}, false)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case errors.Is(err, storage.ErrTruncatedData), errors.Is(err, storage.ErrSerializationFailed):
		// A corrupt entry is treated as a miss and overwritten by the next put.
		c.logger.Warn("discarding corrupt cache entry", zap.String("namespace", namespace), zap.Error(err))
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return vector, true, nil
}

func (c *VectorCache) PutVector(ctx context.Context, namespace string, key core.ID, vector []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: refusing to cache an empty vector", storage.ErrInvalidQuery)
	}
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeVectorKey(namespace, key), storage.MarshalVector(vector)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Count returns the number of vectors cached under namespace.
func (c *VectorCache) Count(ctx context.Context, namespace string) (int, error) {
	n := 0
	err := c.scanNamespace(namespace, func(key []byte) error {
		n++
		return ctx.Err()
	})
	return n, err
}

// Purge removes every vector cached under namespace and returns how many were removed.
func (c *VectorCache) Purge(ctx context.Context, namespace string) (int, error) {
	var keys [][]byte
	err := c.scanNamespace(namespace, func(key []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return ctx.Err()
	})
	if err != nil {
		return 0, err
	}

	wb := c.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	c.logger.Info("purged vector cache", zap.String("namespace", namespace), zap.Int("count", len(keys)))
	return len(keys), nil
}

// scanNamespace visits the keys of one namespace. Keys of namespaces that
// merely share the prefix are skipped by length.
func (c *VectorCache) scanNamespace(namespace string, fn func(key []byte) error) error {
	prefix := makeNamespacePrefix(namespace)
	return c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) != len(prefix)+8 {
				continue
			}
			if err := fn(key); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// Close closes the cache and, when the cache opened it, the backend.
func (c *VectorCache) Close() error {
	if !c.owned {
		return nil
	}
	return c.backend.Close()
}
