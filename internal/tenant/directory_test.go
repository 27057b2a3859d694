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

package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tenant), args.Error(1)
}

// memCache is a map-backed cache.Cache that records TTLs and can fail on demand.
type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func storeA() *Tenant {
	welcome := "Welcome to Store A"
	return &Tenant{
		ID:             "0190a6f0-0000-7000-8000-00000000000a",
		Name:           "Store A",
		Slug:           "a",
		WelcomeMessage: &welcome,
		Theme:          DefaultTheme,
	}
}

// TestPurpose: Validates the read-through cache: a cold lookup hits storage and populates the cache, a warm one does not.
// Scope: Unit Test
// Security: Availability of store resolution
// Expected: Storage is queried exactly once across two lookups; the entry is cached under "store:a" for one hour.
// Test Case ID: DIR-01
func TestDirectory_ResolveBySlug_CachesAfterFirstLookup(t *testing.T) {
	repo := new(mockRepo)
	c := newMemCache()
	dir := NewDirectory(repo, c, 0)
	ctx := context.Background()

	repo.On("GetBySlug", mock.Anything, "a").Return(storeA(), nil).Once()

	first, err := dir.ResolveBySlug(ctx, "a")
	require.NoError(t, err)
	second, err := dir.ResolveBySlug(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Welcome to Store A", *second.WelcomeMessage)
	assert.Contains(t, c.data, "store:a")
	assert.Equal(t, time.Hour, c.ttls["store:a"])
	repo.AssertNumberOfCalls(t, "GetBySlug", 1)
}

// TestPurpose: Validates that unknown slugs are reported as not found and never negatively cached.
// Scope: Unit Test
// Security: Store enumeration does not poison the cache
// Expected: ErrTenantNotFound on each call, storage queried on every call, nothing cached.
// Test Case ID: DIR-02
func TestDirectory_ResolveBySlug_NotFoundIsNotCached(t *testing.T) {
	repo := new(mockRepo)
	c := newMemCache()
	dir := NewDirectory(repo, c, time.Minute)
	ctx := context.Background()

	repo.On("GetBySlug", mock.Anything, "zzz").Return(nil, ErrTenantNotFound)

	for i := 0; i < 2; i++ {
		got, err := dir.ResolveBySlug(ctx, "zzz")
		assert.ErrorIs(t, err, ErrTenantNotFound)
		assert.Nil(t, got)
	}
	assert.Empty(t, c.data)
	repo.AssertNumberOfCalls(t, "GetBySlug", 2)
}

// TestPurpose: Validates that storage failures are not confused with a missing store.
// Scope: Unit Test
// Security: Fail-closed error propagation
// Expected: A wrapped storage error is returned that is not ErrTenantNotFound.
// Test Case ID: DIR-03
func TestDirectory_ResolveBySlug_StorageErrorPropagates(t *testing.T) {
	repo := new(mockRepo)
	dir := NewDirectory(repo, newMemCache(), time.Minute)
	dbErr := errors.New("connection refused")

	repo.On("GetBySlug", mock.Anything, "a").Return(nil, dbErr)

	_, err := dir.ResolveBySlug(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrTenantNotFound)
}

// TestPurpose: Validates that a cache read failure surfaces as a lookup failure.
// Scope: Unit Test
// Security: Fail-closed error propagation
// Expected: Error is returned and storage is not consulted.
// Test Case ID: DIR-04
func TestDirectory_ResolveBySlug_CacheReadErrorPropagates(t *testing.T) {
	repo := new(mockRepo)
	c := newMemCache()
	c.getErr = errors.New("cache unavailable")
	dir := NewDirectory(repo, c, time.Minute)

	_, err := dir.ResolveBySlug(context.Background(), "a")
	assert.ErrorIs(t, err, c.getErr)
	repo.AssertNotCalled(t, "GetBySlug", mock.Anything, mock.Anything)
}

// TestPurpose: Validates that cache population is best effort.
// Scope: Unit Test
// Expected: A failing cache write still returns the store loaded from storage.
// Test Case ID: DIR-05
func TestDirectory_ResolveBySlug_CacheWriteErrorIsIgnored(t *testing.T) {
	repo := new(mockRepo)
	c := newMemCache()
	c.setErr = errors.New("cache full")
	dir := NewDirectory(repo, c, time.Minute)

	repo.On("GetBySlug", mock.Anything, "a").Return(storeA(), nil)

	got, err := dir.ResolveBySlug(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Slug)
}

// TestPurpose: Validates that corrupt cache entries fall back to storage and are overwritten.
// Scope: Unit Test
// Expected: Store is loaded from storage and the cache entry becomes valid JSON.
// Test Case ID: DIR-06
func TestDirectory_ResolveBySlug_CorruptEntryFallsBackToStorage(t *testing.T) {
	repo := new(mockRepo)
	c := newMemCache()
	c.data["store:a"] = []byte("{not json")
	dir := NewDirectory(repo, c, time.Minute)

	repo.On("GetBySlug", mock.Anything, "a").Return(storeA(), nil).Once()

	got, err := dir.ResolveBySlug(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Store A", got.Name)

	var cached Tenant
	require.NoError(t, json.Unmarshal(c.data["store:a"], &cached))
	assert.Equal(t, got.ID, cached.ID)
}

func TestDirectory_CacheKey(t *testing.T) {
	assert.Equal(t, "store:a", CacheKey("a"))
}

// TestPurpose: Validates that each lookup is counted with its result.
// Scope: Unit Test
// Expected: One miss, one hit and one not_found are recorded.
// Test Case ID: DIR-07
func TestDirectory_RecordsLookupResults(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	counter, err := provider.Meter("test").Int64Counter("tenant.directory.lookups")
	require.NoError(t, err)

	repo := new(mockRepo)
	repo.On("GetBySlug", mock.Anything, "a").Return(storeA(), nil).Once()
	repo.On("GetBySlug", mock.Anything, "zzz").Return(nil, ErrTenantNotFound)
	dir := NewDirectory(repo, newMemCache(), time.Minute, WithLookupCounter(counter))
	ctx := context.Background()

	_, _ = dir.ResolveBySlug(ctx, "a")
	_, _ = dir.ResolveBySlug(ctx, "a")
	_, _ = dir.ResolveBySlug(ctx, "zzz")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("result"))
		got[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"miss": 1, "hit": 1, "not_found": 1}, got)
}
