package favorites

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// Compile-time interface check.
var _ Store = (*BadgerStore)(nil)

var (
	likedPrefix = []byte("liked/")
	seqKey      = []byte("meta/like-seq")
)

// BadgerStore keeps liked ids in an embedded Badger database so they
// survive restarts without a database server.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewBadgerStore opens (or creates) a store in dir. An empty dir keeps the
// data in memory only.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	seq, err := db.GetSequence(seqKey, 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open like sequence: %w", err)
	}

	return &BadgerStore{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to release like sequence: %w", err)
	}
	return s.db.Close()
}

func likedKey(id string) []byte {
	return append(append([]byte{}, likedPrefix...), id...)
}

// Like stores id with the next sequence number. Already liked ids keep
// their original position.
func (s *BadgerStore) Like(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := likedKey(id)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to read liked recipe: %w", err)
		}

		n, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("failed to allocate like sequence: %w", err)
		}
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, n)
		if err := txn.Set(key, val); err != nil {
			return fmt.Errorf("failed to save liked recipe: %w", err)
		}
		return nil
	})
}

// Unlike deletes id.
func (s *BadgerStore) Unlike(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(likedKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete liked recipe: %w", err)
	}
	return nil
}

// IsLiked reports whether id is stored.
func (s *BadgerStore) IsLiked(ctx context.Context, id string) (bool, error) {
	var liked bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(likedKey(id))
		switch {
		case err == nil:
			liked = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("failed to read liked recipe: %w", err)
	}
	return liked, nil
}

// List returns liked ids ordered by when they were liked.
func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	type entry struct {
		id  string
		seq uint64
	}
	var entries []entry

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: likedPrefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(bytes.TrimPrefix(item.KeyCopy(nil), likedPrefix))
			err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("corrupt like entry for %s", id)
				}
				entries = append(entries, entry{id: id, seq: binary.BigEndian.Uint64(val)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list liked recipes: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}
