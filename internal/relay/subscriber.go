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
	"encoding/json"
	"fmt"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	"github.com/rs/zerolog"
	"loaner/internal/logger"
	"loaner/internal/protocol"
)

// pollInterval bounds how long Run waits for an event before checking ctx
const pollInterval = 250 * time.Millisecond

// Subscriber follows a Publisher. With no topics it receives every event.
type Subscriber struct {
	address string
	topics  []string
	socket  *zmq4.Socket
	logger  zerolog.Logger
}

// NewSubscriber connects a SUB socket to address filtered on topics
func NewSubscriber(address string, topics ...protocol.EventType) (*Subscriber, error) {
	s := &Subscriber{
		address: address,
		logger:  logger.GetLogger("relay"),
	}
	for _, topic := range topics {
		s.topics = append(s.topics, string(topic))
	}
	if len(s.topics) == 0 {
		s.topics = []string{""}
	}

	socket, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	defer func() {
		if err != nil {
			socket.Close()
		}
	}()

	if err = socket.SetLinger(0); err != nil {
		return nil, fmt.Errorf("failed to set linger: %w", err)
	}

	if err = socket.SetRcvtimeo(pollInterval); err != nil {
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}

	for _, topic := range s.topics {
		if err = socket.SetSubscribe(topic); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %q: %w", topic, err)
		}
	}

	if err = socket.Connect(address); err != nil {
		return nil, fmt.Errorf("failed to connect to relay %s: %w", address, err)
	}

	s.socket = socket
	s.logger.Info().Str("address", address).Strs("topics", s.topics).Msg("Subscribed to event relay")
	return s, nil
}

// Run delivers events to handle until ctx is cancelled. Malformed messages
// are logged and skipped.
func (s *Subscriber) Run(ctx context.Context, handle func(*protocol.Message)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		parts, err := s.socket.RecvMessageBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			return fmt.Errorf("failed to receive event: %w", err)
		}

		if len(parts) != 2 {
			s.logger.Warn().Int("parts_count", len(parts)).Msg("Received malformed event (unexpected parts)")
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(parts[1], &msg); err != nil {
			s.logger.Warn().Err(err).Str("topic", string(parts[0])).Msg("Received malformed event body")
			continue
		}
		handle(&msg)
	}
}

// Close disconnects the socket
func (s *Subscriber) Close() error {
	if s.socket == nil {
		return nil
	}
	err := s.socket.Close()
	s.socket = nil
	return err
}
