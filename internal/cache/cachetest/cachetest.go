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

// Package cachetest holds a shared behaviour suite for cache.Cache implementations.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/opentrusty/storefront/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises the contract every cache backend must honour.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "store:a", []byte(`{"slug":"a"}`), time.Minute))
		val, ok, err := c.Get(ctx, "store:a")
		require.NoError(t, err)
		require.True(t, ok, "expected hit after Set")
		assert.Equal(t, `{"slug":"a"}`, string(val))
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "store:missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "store:b", []byte("v1"), time.Minute))
		require.NoError(t, c.Set(ctx, "store:b", []byte("v2"), time.Minute))
		val, ok, err := c.Get(ctx, "store:b")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v2", string(val))
	})

	t.Run("UnusualKey", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "store:a*b")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, c.Set(ctx, "store:a~b", []byte("v"), time.Minute))
	})
}
