// Copyright 2025 Arion Yau
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

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"loaner/internal/protocol"
)

func testResponse(t *testing.T, id string) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewResponse(id, protocol.IDPayload{ID: id})
	require.NoError(t, err)
	return msg
}

func TestNonceCache(t *testing.T) {
	t.Run("creates cache with invalid parameters", func(t *testing.T) {
		cache := NewNonceCache(0, 0)
		defer cache.Shutdown()

		assert.Equal(t, 1000, cache.maxSize)
		assert.Equal(t, 5*time.Minute, cache.expiration)
	})

	t.Run("replays stored response", func(t *testing.T) {
		cache := NewNonceCache(10, time.Minute)
		defer cache.Shutdown()

		resp := testResponse(t, "req-1")
		cache.StoreResponse(protocol.CreateLaptop, "req-1", resp)

		got, found := cache.CheckNonce(protocol.CreateLaptop, "req-1")
		require.True(t, found)
		assert.Same(t, resp, got)
	})

	t.Run("scopes nonces per request type", func(t *testing.T) {
		cache := NewNonceCache(10, time.Minute)
		defer cache.Shutdown()

		cache.StoreResponse(protocol.CreateLaptop, "req-1", testResponse(t, "req-1"))

		_, found := cache.CheckNonce(protocol.CreateStudent, "req-1")
		assert.False(t, found)
	})

	t.Run("ignores empty nonce", func(t *testing.T) {
		cache := NewNonceCache(10, time.Minute)
		defer cache.Shutdown()

		cache.StoreResponse(protocol.CreateLaptop, "", testResponse(t, ""))
		_, found := cache.CheckNonce(protocol.CreateLaptop, "")
		assert.False(t, found)
		assert.Zero(t, cache.Len())
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewNonceCache(2, time.Minute)
		defer cache.Shutdown()

		cache.StoreResponse(protocol.CreateLaptop, "a", testResponse(t, "a"))
		cache.StoreResponse(protocol.CreateLaptop, "b", testResponse(t, "b"))
		cache.StoreResponse(protocol.CreateLaptop, "c", testResponse(t, "c"))

		_, found := cache.CheckNonce(protocol.CreateLaptop, "a")
		assert.False(t, found)
		assert.Equal(t, 2, cache.Len())
	})

	t.Run("expires old responses", func(t *testing.T) {
		cache := NewNonceCache(10, 20*time.Millisecond)
		defer cache.Shutdown()

		cache.StoreResponse(protocol.DeleteLaptop, "old", testResponse(t, "old"))
		time.Sleep(40 * time.Millisecond)

		_, found := cache.CheckNonce(protocol.DeleteLaptop, "old")
		assert.False(t, found)
	})
}

func TestNonceCacheCleanup(t *testing.T) {
	cache := NewNonceCache(10, time.Minute)
	defer cache.Shutdown()

	cache.StoreResponse(protocol.CreateLaptop, "a", testResponse(t, "a"))
	cache.StoreResponse(protocol.CreateStudent, "b", testResponse(t, "b"))

	assert.Zero(t, cache.performCleanup(time.Now()))
	assert.Equal(t, 2, cache.Len())

	assert.Equal(t, 2, cache.performCleanup(time.Now().Add(2*time.Minute)))
	assert.Zero(t, cache.Len())
}

func TestNonceCacheShutdown(t *testing.T) {
	cache := NewNonceCache(10, time.Minute)
	cache.StoreResponse(protocol.CreateLaptop, "a", testResponse(t, "a"))

	cache.Shutdown()
	cache.Shutdown()

	assert.Zero(t, cache.Len())
}
