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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"loaner/internal/protocol"
)

type fakePeer struct {
	id     string
	refuse bool

	mu     sync.Mutex
	got    []*protocol.Message
	closed bool
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Push(msg *protocol.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refuse || p.closed {
		return false
	}
	p.got = append(p.got, msg)
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakePeer) received() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func testEvent(t *testing.T) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewEvent(protocol.EventLaptopCreated, protocol.IDPayload{ID: "x"})
	require.NoError(t, err)
	return msg
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakePeer{id: "a"}

	assert.True(t, r.Register(a))
	assert.False(t, r.Register(a), "second registration is a no-op")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"a"}, r.IDs())

	assert.True(t, r.Deregister("a"))
	assert.False(t, r.Deregister("a"))
	assert.False(t, r.Deregister("unknown"))
	assert.Zero(t, r.Len())
}

func TestRegistryBroadcast(t *testing.T) {
	r := NewRegistry(nil)
	peers := []*fakePeer{{id: "a"}, {id: "b"}, {id: "c"}}
	for _, p := range peers {
		r.Register(p)
	}

	assert.Equal(t, 3, r.Broadcast(testEvent(t)))
	for _, p := range peers {
		assert.Equal(t, 1, p.received(), "peer %s", p.id)
	}

	r.Deregister("b")
	assert.Equal(t, 2, r.Broadcast(testEvent(t)))
	assert.Equal(t, 1, peers[1].received(), "deregistered peer receives nothing")
}

func TestRegistryDropsFailedPeers(t *testing.T) {
	metrics := NewMetrics()
	r := NewRegistry(metrics)
	healthy := &fakePeer{id: "healthy"}
	stuck := &fakePeer{id: "stuck", refuse: true}
	r.Register(healthy)
	r.Register(stuck)

	assert.Equal(t, 1, r.Broadcast(testEvent(t)))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"healthy"}, r.IDs())
	assert.True(t, stuck.isClosed())
	assert.False(t, healthy.isClosed())

	assert.Equal(t, 1, r.Broadcast(testEvent(t)))
	assert.Equal(t, 2, healthy.received())
}

func TestRegistryConcurrentBroadcast(t *testing.T) {
	r := NewRegistry(nil)
	peers := make([]*fakePeer, 10)
	for i := range peers {
		peers[i] = &fakePeer{id: string(rune('a' + i))}
		r.Register(peers[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Broadcast(testEvent(t))
		}()
	}
	// Registrations racing with broadcasts must not deadlock or panic
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(&fakePeer{id: string(rune('A' + i))})
		}(i)
	}
	wg.Wait()

	for _, p := range peers {
		assert.Equal(t, 20, p.received())
	}
	assert.Equal(t, 20, r.Len())
}
