package db

import (
	"errors"
	"fmt"

	"github.com/eric2788/vidpost/pkg/pool"
	"go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("key not found")

// Bucket stores gob encoded values of type T under string keys.
type Bucket[T any] struct {
	db         *bbolt.DB
	name       []byte
	serializer *pool.Serializer
}

// NewBucket creates the bucket when it does not exist yet.
func NewBucket[T any](c *Client, name string) (*Bucket[T], error) {
	if err := c.BoltDB.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	}); err != nil {
		return nil, err
	}
	return &Bucket[T]{
		db:         c.BoltDB,
		name:       []byte(name),
		serializer: pool.NewSerializer(),
	}, nil
}

func (b *Bucket[T]) Put(key string, value *T) error {
	data, err := b.serializer.Serialize(value)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", key, err)
	}
	return b.update(func(bucket *bbolt.Bucket) error {
		return bucket.Put([]byte(key), data)
	})
}

// Get returns ErrNotFound when key is absent.
func (b *Bucket[T]) Get(key string) (*T, error) {
	var value *T
	err := b.view(func(bucket *bbolt.Bucket) error {
		data := bucket.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		value = new(T)
		return b.serializer.Deserialize(data, value)
	})
	return value, err
}

func (b *Bucket[T]) Delete(key string) error {
	return b.update(func(bucket *bbolt.Bucket) error {
		return bucket.Delete([]byte(key))
	})
}

// List returns every value in key order.
func (b *Bucket[T]) List() ([]*T, error) {
	var values []*T
	err := b.view(func(bucket *bbolt.Bucket) error {
		return bucket.ForEach(func(k, v []byte) error {
			value := new(T)
			if err := b.serializer.Deserialize(v, value); err != nil {
				return fmt.Errorf("deserialize %s: %w", string(k), err)
			}
			values = append(values, value)
			return nil
		})
	})
	return values, err
}

func (b *Bucket[T]) Count() (int, error) {
	var count int
	err := b.view(func(bucket *bbolt.Bucket) error {
		count = bucket.Stats().KeyN
		return nil
	})
	return count, err
}

func (b *Bucket[T]) update(fn func(bucket *bbolt.Bucket) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.name)
		if bucket == nil {
			return fmt.Errorf("bucket %q not found", b.name)
		}
		return fn(bucket)
	})
}

func (b *Bucket[T]) view(fn func(bucket *bbolt.Bucket) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.name)
		if bucket == nil {
			return fmt.Errorf("bucket %q not found", b.name)
		}
		return fn(bucket)
	})
}
