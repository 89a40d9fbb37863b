package cache

import (
	"github.com/gomlx/bertdata/internal/files"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// BoltBucket is the bucket holding the entries of a BoltStore.
const BoltBucket = "datasets"

// BoltStore keeps all entries in one bbolt database file, keyed by Key.String().
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the bbolt database at dbPath. It must be closed after use.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	dbPath, err := files.ReplaceTildeInDir(dbPath)
	if err != nil {
		return nil, err
	}
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open cache database %q", dbPath)
	}
	return &BoltStore{db: db}, nil
}

// Close the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *BoltStore) Get(key Key) (data []byte, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BoltBucket))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key.String()))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid during the transaction.
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	return
}

// Put implements Store.
func (s *BoltStore) Put(key Key, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BoltBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key.String()), data)
	})
	return errors.Wrapf(err, "failed to store %s in the cache database", key)
}
