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

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"loaner/internal/protocol"
)

func bufferedSession(size int, pushTimeout time.Duration) *Session {
	return &Session{
		id:          "test",
		send:        make(chan *protocol.Message, size),
		done:        make(chan struct{}),
		pushTimeout: pushTimeout,
		logger:      zerolog.Nop(),
	}
}

func TestSessionPush(t *testing.T) {
	event := testEvent(t)

	t.Run("waits for the writer to make room", func(t *testing.T) {
		s := bufferedSession(1, 2*time.Second)
		require.True(t, s.Push(event))

		go func() {
			time.Sleep(50 * time.Millisecond)
			<-s.send
		}()
		assert.True(t, s.Push(event), "a full buffer that drains in time is not a failure")
	})

	t.Run("gives up on a stalled writer", func(t *testing.T) {
		s := bufferedSession(1, 50*time.Millisecond)
		require.True(t, s.Push(event))

		start := time.Now()
		assert.False(t, s.Push(event))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("fails at once without a timeout", func(t *testing.T) {
		s := bufferedSession(1, 0)
		require.True(t, s.Push(event))
		assert.False(t, s.Push(event))
	})

	t.Run("closed session", func(t *testing.T) {
		s := bufferedSession(1, time.Second)
		close(s.done)
		assert.False(t, s.Push(event))
	})
}
