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

	"github.com/rs/zerolog"
	"loaner/internal/logger"
	"loaner/internal/protocol"
)

// Peer is a registered receiver of broadcasts
type Peer interface {
	ID() string
	// Push queues msg, waiting a bounded time for room, and reports whether
	// it was accepted
	Push(msg *protocol.Message) bool
	Close()
}

// Registry is the set of sessions that asked to receive broadcasts
type Registry struct {
	peers   map[string]Peer
	mu      sync.RWMutex
	metrics *Metrics
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		peers:   make(map[string]Peer),
		metrics: metrics,
		logger:  logger.GetLogger("registry"),
	}
}

// Register adds p. Registering the same peer twice is a no-op.
func (r *Registry) Register(p Peer) bool {
	r.mu.Lock()
	_, existed := r.peers[p.ID()]
	r.peers[p.ID()] = p
	count := len(r.peers)
	r.mu.Unlock()

	if !existed {
		r.logger.Debug().Str("session_id", p.ID()).Int("sessions", count).Msg("Session registered")
	}
	return !existed
}

// Deregister removes the peer with id. Unknown ids are ignored.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	_, existed := r.peers[id]
	delete(r.peers, id)
	count := len(r.peers)
	r.mu.Unlock()

	if existed {
		r.logger.Debug().Str("session_id", id).Int("sessions", count).Msg("Session deregistered")
	}
	return existed
}

// Broadcast pushes msg to every registered peer. The peer list is copied
// under the lock and pushed to outside it. A peer that cannot take the
// message is removed and closed. Returns the number of peers reached.
func (r *Registry) Broadcast(msg *protocol.Message) int {
	r.mu.RLock()
	peers := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, p := range peers {
		if p.Push(msg) {
			delivered++
			continue
		}
		if r.Deregister(p.ID()) {
			r.metrics.pushDropped()
			r.logger.Warn().Str("session_id", p.ID()).Str("event", msg.Type).Msg("Push failed, dropping session")
		}
		p.Close()
	}

	if delivered > 0 {
		r.logger.Debug().Str("event", msg.Type).Int("recipients", delivered).Msg("Broadcast sent")
	}
	return delivered
}

// Len returns the number of registered peers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// IDs returns the ids of the registered peers
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}
