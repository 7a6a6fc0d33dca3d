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

// Package relay mirrors server events onto a ZeroMQ PUB socket so that
// dashboards and scripts can follow the loan system without holding a
// protocol session open.
//
// Every event is sent as a two-part message: the event type, which doubles
// as the subscription topic, followed by the JSON envelope.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pebbe/zmq4"
	"github.com/rs/zerolog"
	"loaner/internal/logger"
	"loaner/internal/protocol"
)

// ErrClosed is returned by Publish after Close
var ErrClosed = errors.New("relay is closed")

// Publisher owns the PUB socket. zmq sockets are not goroutine safe, so every
// send happens under mutex.
type Publisher struct {
	address string
	socket  *zmq4.Socket
	mutex   sync.Mutex
	sent    uint64
	logger  zerolog.Logger
}

// NewPublisher binds a PUB socket on address, e.g. "tcp://*:5556"
func NewPublisher(address string) (*Publisher, error) {
	p := &Publisher{
		address: address,
		logger:  logger.GetLogger("relay"),
	}

	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	defer func() {
		if err != nil {
			socket.Close()
		}
	}()

	if err = socket.SetLinger(0); err != nil {
		return nil, fmt.Errorf("failed to set linger: %w", err)
	}

	if err = socket.SetSndhwm(1000); err != nil {
		return nil, fmt.Errorf("failed to set send high watermark: %w", err)
	}

	if err = socket.Bind(address); err != nil {
		return nil, fmt.Errorf("failed to bind relay to %s: %w", address, err)
	}

	p.socket = socket
	if endpoint, epErr := socket.GetLastEndpoint(); epErr == nil {
		p.address = endpoint
	}

	p.logger.Info().Str("address", p.address).Msg("Event relay bound")
	return p, nil
}

// Address returns the bound endpoint, with any wildcard port resolved
func (p *Publisher) Address() string {
	return p.address
}

// Publish sends msg under its type as topic. Subscribers that are not
// connected simply miss it.
func (p *Publisher) Publish(msg *protocol.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.socket == nil {
		return ErrClosed
	}
	if _, err := p.socket.SendMessageDontwait(msg.Type, body); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Type, err)
	}
	p.sent++
	return nil
}

// Sent returns the number of events published so far
func (p *Publisher) Sent() uint64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.sent
}

// Close unbinds the socket. Later publishes return ErrClosed.
func (p *Publisher) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.socket == nil {
		return nil
	}
	err := p.socket.Close()
	p.socket = nil

	p.logger.Info().Uint64("events_sent", p.sent).Msg("Event relay closed")
	return err
}
