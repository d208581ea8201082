// Package natskv is the shared tier of the oracle result cache: a NATS
// JetStream key-value bucket visible to every coordinator instance, so
// one instance's oracle call saves the others the round trip.
package natskv

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache adapts a JetStream KeyValue bucket to the cache port.
type Cache struct {
	kv jetstream.KeyValue
}

// New wraps an existing bucket. Expiry comes from the bucket's TTL, set
// when the bucket is created.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// Get reads the key from the bucket; an absent key is a miss, not an
// error.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set writes the key. The per-entry TTL is ignored; the bucket TTL
// governs expiry for every entry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, key, value)
	return err
}

// Delete removes the key; deleting an absent key is a no-op.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
