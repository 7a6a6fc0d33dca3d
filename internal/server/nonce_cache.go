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
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"loaner/internal/protocol"
)

// NonceResponse is a cached reply to one mutating request
type NonceResponse struct {
	Nonce     string            `json:"nonce"`
	Response  *protocol.Message `json:"response"`
	Timestamp time.Time         `json:"timestamp"`
}

// NonceCache replays the reply of a mutating request whose id was already
// seen, so a client retrying after a lost response does not create a second
// laptop or reservation. Entries are grouped per request type.
type NonceCache struct {
	caches     map[protocol.RequestType]*lru.Cache[string, *NonceResponse]
	mutex      sync.RWMutex
	maxSize    int
	expiration time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewNonceCache creates a new nonce cache
func NewNonceCache(maxSize int, expiration time.Duration) *NonceCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}

	nc := &NonceCache{
		caches:     make(map[protocol.RequestType]*lru.Cache[string, *NonceResponse]),
		maxSize:    maxSize,
		expiration: expiration,
		stop:       make(chan struct{}),
	}

	go nc.cleanupExpired()

	return nc
}

// getCache gets or creates the cache for one request type
func (nc *NonceCache) getCache(reqType protocol.RequestType) *lru.Cache[string, *NonceResponse] {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	cache, exists := nc.caches[reqType]
	if !exists {
		cache, _ = lru.New[string, *NonceResponse](nc.maxSize)
		nc.caches[reqType] = cache
	}

	return cache
}

// CheckNonce returns the cached reply for nonce if it is still fresh
func (nc *NonceCache) CheckNonce(reqType protocol.RequestType, nonce string) (*protocol.Message, bool) {
	if nonce == "" {
		return nil, false
	}

	cache := nc.getCache(reqType)

	if cached, found := cache.Get(nonce); found {
		if time.Since(cached.Timestamp) > nc.expiration {
			cache.Remove(nonce)
			return nil, false
		}
		return cached.Response, true
	}

	return nil, false
}

// StoreResponse remembers the reply sent for nonce
func (nc *NonceCache) StoreResponse(reqType protocol.RequestType, nonce string, response *protocol.Message) {
	if nonce == "" {
		return
	}

	nc.getCache(reqType).Add(nonce, &NonceResponse{
		Nonce:     nonce,
		Response:  response,
		Timestamp: time.Now(),
	})
}

// Len returns the number of cached replies across all request types
func (nc *NonceCache) Len() int {
	nc.mutex.RLock()
	defer nc.mutex.RUnlock()

	total := 0
	for _, cache := range nc.caches {
		total += cache.Len()
	}
	return total
}

// cleanupExpired runs a periodic cleanup of expired replies
func (nc *NonceCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			nc.performCleanup(time.Now())
		case <-nc.stop:
			return
		}
	}
}

// performCleanup removes replies older than the expiration
func (nc *NonceCache) performCleanup(now time.Time) int {
	nc.mutex.RLock()
	caches := make([]*lru.Cache[string, *NonceResponse], 0, len(nc.caches))
	for _, cache := range nc.caches {
		caches = append(caches, cache)
	}
	nc.mutex.RUnlock()

	expired := 0
	for _, cache := range caches {
		for _, nonce := range cache.Keys() {
			if value, found := cache.Peek(nonce); found && now.Sub(value.Timestamp) > nc.expiration {
				cache.Remove(nonce)
				expired++
			}
		}
	}
	return expired
}

// Shutdown stops the cleanup routine and drops every entry
func (nc *NonceCache) Shutdown() {
	nc.stopOnce.Do(func() { close(nc.stop) })

	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	for _, cache := range nc.caches {
		cache.Purge()
	}
	nc.caches = make(map[protocol.RequestType]*lru.Cache[string, *NonceResponse])
}
