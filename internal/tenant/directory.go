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
	"fmt"
	"log/slog"
	"time"

	"github.com/opentrusty/storefront/internal/cache"
	"github.com/opentrusty/storefront/internal/observability/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCacheTTL bounds how long a store record may be served from cache.
const DefaultCacheTTL = time.Hour

const cacheKeyPrefix = "store:"

// Lookup results recorded on the lookups counter.
const (
	resultHit      = "hit"
	resultMiss     = "miss"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Directory resolves stores by slug through a read-through cache.
type Directory struct {
	repo    Repository
	cache   cache.Cache
	ttl     time.Duration
	lookups metric.Int64Counter
	tracer  trace.Tracer
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithLookupCounter records each lookup with a "result" attribute.
func WithLookupCounter(c metric.Int64Counter) DirectoryOption {
	return func(d *Directory) {
		d.lookups = c
	}
}

// NewDirectory creates a directory. A non-positive ttl means DefaultCacheTTL.
func NewDirectory(repo Repository, c cache.Cache, ttl time.Duration, opts ...DirectoryOption) *Directory {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	d := &Directory{
		repo:   repo,
		cache:  c,
		ttl:    ttl,
		tracer: otel.Tracer("github.com/opentrusty/storefront/internal/tenant"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CacheKey returns the cache key for slug.
func CacheKey(slug string) string {
	return cacheKeyPrefix + slug
}

// ResolveBySlug returns the store for slug, or ErrTenantNotFound. Cache and
// storage failures are returned as errors distinct from ErrTenantNotFound.
// Unknown slugs are not cached, so each such lookup reaches storage.
func (d *Directory) ResolveBySlug(ctx context.Context, slug string) (*Tenant, error) {
	ctx, span := d.tracer.Start(ctx, "tenant.ResolveBySlug",
		trace.WithAttributes(attribute.String("tenant.slug", slug)))
	defer span.End()

	t, result, err := d.resolve(ctx, slug)
	d.record(ctx, result)
	span.SetAttributes(attribute.String("tenant.lookup_result", result))
	if err != nil && !errors.Is(err, ErrTenantNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store lookup failed")
	}
	return t, err
}

func (d *Directory) resolve(ctx context.Context, slug string) (*Tenant, string, error) {
	key := CacheKey(slug)

	raw, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		return nil, resultError, fmt.Errorf("failed to read store cache: %w", err)
	}
	if ok {
		var t Tenant
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, resultHit, nil
		}
		slog.WarnContext(ctx, "discarding undecodable store cache entry",
			logger.Component("tenant"),
			logger.CacheKey(key),
		)
	}

	t, err := d.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, resultNotFound, ErrTenantNotFound
		}
		return nil, resultError, fmt.Errorf("failed to load store %q: %w", slug, err)
	}

	encoded, err := json.Marshal(t)
	if err == nil {
		err = d.cache.Set(ctx, key, encoded, d.ttl)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to populate store cache",
			logger.Component("tenant"),
			logger.CacheKey(key),
			logger.Error(err),
		)
	}

	return t, resultMiss, nil
}

func (d *Directory) record(ctx context.Context, result string) {
	if d.lookups == nil {
		return
	}
	d.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
