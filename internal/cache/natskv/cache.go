// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package natskv implements cache.Cache on a NATS JetStream key-value bucket,
// for deployments where several server processes share one store cache.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Cache wraps a JetStream KeyValue bucket. Entry TTL is configured on the
// bucket, not per key.
type Cache struct {
	kv jetstream.KeyValue
}

// New wraps an existing bucket.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// Connect dials url and opens (creating if needed) bucket with the given
// entry ttl. The returned close func drains the connection.
func Connect(ctx context.Context, url, bucket string, ttl time.Duration) (*Cache, func(), error) {
	nc, err := nats.Connect(url, nats.Name("storefront"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "store records by slug",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to open kv bucket %s: %w", bucket, err)
	}

	return New(kv), func() { _ = nc.Drain() }, nil
}

// Get returns the value stored under key. Keys outside the NATS key
// alphabet can never be stored and are reported as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, kvKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores value under key; ttl is ignored in favour of the bucket TTL.
// Keys outside the NATS key alphabet are skipped.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, kvKey(key), value)
	if errors.Is(err, jetstream.ErrInvalidKey) {
		return nil
	}
	return err
}

// kvKey maps cache keys onto the NATS key alphabet, which has no ':'.
func kvKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}
