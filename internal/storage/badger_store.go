// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no entity is stored under an ID
var ErrNotFound = errors.New("entity not found")

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// BadgerStore provides generic storage operations over one key prefix
type BadgerStore struct {
	db     *badger.DB
	prefix string
	codec  *Codec
}

// Option configures a BadgerStore
type Option func(*BadgerStore)

// WithCodec compresses values on the way in and out
func WithCodec(c *Codec) Option {
	return func(s *BadgerStore) { s.codec = c }
}

func NewBadgerStore(db *badger.DB, prefix string, opts ...Option) *BadgerStore {
	s := &BadgerStore{
		db:     db,
		prefix: prefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying database so callers can span several stores
// with one transaction
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) stripPrefix(key []byte) string {
	return strings.TrimPrefix(string(key), s.prefix+":")
}

func (s *BadgerStore) encode(entity Entity) ([]byte, error) {
	if entity.GetID() == "" {
		return nil, fmt.Errorf("entity ID cannot be empty")
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("marshaling entity: %w", err)
	}
	if s.codec != nil {
		data = s.codec.Encode(data)
	}
	return data, nil
}

func (s *BadgerStore) decode(item *badger.Item) ([]byte, error) {
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if s.codec != nil {
		return s.codec.Decode(val)
	}
	return val, nil
}

func (s *BadgerStore) Create(entity Entity) error {
	data, err := s.encode(entity)
	if err != nil {
		return err
	}

	key := s.makeKey(entity.GetID())
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("entity already exists: %s", entity.GetID())
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return txn.Set(key, data)
	})
}

func (s *BadgerStore) Get(id string, entity Entity) error {
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		val, err := s.decode(item)
		if err != nil {
			return err
		}
		return json.Unmarshal(val, entity)
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func (s *BadgerStore) Update(entity Entity) error {
	data, err := s.encode(entity)
	if err != nil {
		return err
	}

	key := s.makeKey(entity.GetID())
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, entity.GetID())
		} else if err != nil {
			return err
		}

		return txn.Set(key, data)
	})
}

// Put writes the entity whether or not it already exists
func (s *BadgerStore) Put(entity Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.PutTxn(txn, entity)
	})
}

// PutTxn is Put inside a caller-owned transaction
func (s *BadgerStore) PutTxn(txn *badger.Txn, entity Entity) error {
	data, err := s.encode(entity)
	if err != nil {
		return err
	}
	return txn.Set(s.makeKey(entity.GetID()), data)
}

func (s *BadgerStore) Delete(id string) error {
	key := s.makeKey(id)

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		} else if err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// ClearTxn deletes every key under the prefix inside a caller-owned transaction
func (s *BadgerStore) ClearTxn(txn *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	prefix := []byte(s.prefix + ":")
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return fmt.Errorf("deleting %s: %w", s.stripPrefix(k), err)
		}
	}
	return nil
}

// List decodes every entity under the prefix, in key order, into results,
// which must be a pointer to a slice
func (s *BadgerStore) List(results any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		values := []json.RawMessage{}

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := s.decode(it.Item())
			if err != nil {
				return err
			}
			values = append(values, val)
		}

		// Marshal collected values into final result
		data, err := json.Marshal(values)
		if err != nil {
			return err
		}

		return json.Unmarshal(data, results)
	})

	if err != nil {
		return fmt.Errorf("listing entities: %w", err)
	}
	return nil
}

// Keys returns the IDs stored under the prefix, in key order
func (s *BadgerStore) Keys() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(s.prefix + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, s.stripPrefix(it.Item().Key()))
		}
		return nil
	})
	return ids, err
}
