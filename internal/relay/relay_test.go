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

package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"loaner/internal/protocol"
)

func TestPublishAfterClose(t *testing.T) {
	pub, err := NewPublisher("tcp://127.0.0.1:*")
	require.NoError(t, err)
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	msg, err := protocol.NewEvent(protocol.EventLaptopCreated, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, pub.Publish(msg), ErrClosed)
}

func TestRelayDeliversSubscribedTopics(t *testing.T) {
	pub, err := NewPublisher("tcp://127.0.0.1:*")
	require.NoError(t, err)
	defer pub.Close()
	assert.NotContains(t, pub.Address(), "*")

	sub, err := NewSubscriber(pub.Address(), protocol.EventQueueUpdated)
	require.NoError(t, err)
	defer sub.Close()

	var (
		mu  sync.Mutex
		got []*protocol.Message
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sub.Run(ctx, func(msg *protocol.Message) {
			mu.Lock()
			got = append(got, msg)
			mu.Unlock()
		})
	}()

	ignored, err := protocol.NewEvent(protocol.EventLaptopCreated, protocol.IDPayload{ID: "x"})
	require.NoError(t, err)
	wanted, err := protocol.NewEvent(protocol.EventQueueUpdated, protocol.IDPayload{ID: "y"})
	require.NoError(t, err)

	// PUB drops messages until the subscription has propagated, so keep publishing
	assert.Eventually(t, func() bool {
		_ = pub.Publish(ignored)
		_ = pub.Publish(wanted)
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	for _, msg := range got {
		assert.Equal(t, string(protocol.EventQueueUpdated), msg.Type)
	}
	assert.Positive(t, pub.Sent())
}
