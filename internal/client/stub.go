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

// Package client is the remote side of the loaner protocol. A Stub holds one
// connection, issues one request at a time and hands every unsolicited push
// to its observers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"loaner/internal/logger"
	"loaner/internal/protocol"
)

// Observer receives pushes. It runs on the listener goroutine, so it must not
// call back into the stub synchronously.
type Observer interface {
	OnEvent(msg *protocol.Message)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(msg *protocol.Message)

func (f ObserverFunc) OnEvent(msg *protocol.Message) { f(msg) }

// connection is one dialled socket and its listener
type connection struct {
	conn net.Conn
	enc  *protocol.Encoder
	lost chan struct{}
	once sync.Once
}

func (c *connection) teardown() {
	c.once.Do(func() {
		close(c.lost)
		c.conn.Close()
	})
}

// Stub is the client side proxy of one server session
type Stub struct {
	config Config

	call      sync.Mutex
	write     sync.Mutex
	mutex     sync.RWMutex
	current   *connection
	waiting   string
	responses chan *protocol.Message
	closed    bool
	sessionID string

	observers    map[int]Observer
	nextObserver int

	logger zerolog.Logger
}

// New creates a stub; Connect opens the connection
func New(config Config) *Stub {
	config.setDefaults()
	return &Stub{
		config:    config,
		responses: make(chan *protocol.Message, 1),
		observers: make(map[int]Observer),
		logger:    logger.GetLogger("client").With().Str("server", config.Address).Logger(),
	}
}

// Dial creates a stub and connects it
func Dial(ctx context.Context, config Config) (*Stub, error) {
	s := New(config)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect opens the connection if it is not already open
func (s *Stub) Connect(ctx context.Context) error {
	s.call.Lock()
	defer s.call.Unlock()
	return s.ensureConnected(ctx, false)
}

// Subscribe adds an observer and returns a function that removes it
func (s *Stub) Subscribe(o Observer) func() {
	s.mutex.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = o
	s.mutex.Unlock()

	return func() {
		s.mutex.Lock()
		delete(s.observers, id)
		s.mutex.Unlock()
	}
}

// Connected reports whether a connection is currently open
func (s *Stub) Connected() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current != nil
}

// SessionID returns the id announced in the last welcome push
func (s *Stub) SessionID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.sessionID
}

// Close says goodbye to the server and releases the connection. The stub
// cannot be reused.
func (s *Stub) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	current := s.current
	s.current = nil
	s.mutex.Unlock()

	if current == nil {
		return nil
	}

	if bye, err := protocol.NewRequest(protocol.Disconnect, uuid.New().String(), nil); err == nil {
		current.conn.SetWriteDeadline(time.Now().Add(time.Second))
		s.write.Lock()
		current.enc.Encode(bye)
		s.write.Unlock()
	}
	current.teardown()
	s.logger.Info().Msg("Client closed")
	return nil
}

// Call sends one request and decodes the response payload into out, which
// may be nil. Only one call is in flight per stub; concurrent callers queue.
func (s *Stub) Call(ctx context.Context, reqType protocol.RequestType, payload, out interface{}) error {
	s.call.Lock()
	defer s.call.Unlock()

	if err := s.ensureConnected(ctx, true); err != nil {
		return err
	}
	return s.roundTrip(ctx, reqType, payload, out)
}

// ensureConnected dials when no connection is open. A call that finds the
// stub disconnected gets exactly one attempt.
func (s *Stub) ensureConnected(ctx context.Context, reconnect bool) error {
	s.mutex.RLock()
	closed, connected := s.closed, s.current != nil
	s.mutex.RUnlock()

	if closed {
		return ErrClosed
	}
	if connected {
		return nil
	}
	if reconnect {
		s.logger.Info().Msg("Connection lost, reconnecting")
	}

	if err := s.dial(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	if s.config.Subscribe {
		if err := s.roundTrip(ctx, protocol.NewClient, nil, nil); err != nil {
			s.drop(nil)
			return fmt.Errorf("%w: failed to subscribe: %v", ErrNotConnected, err)
		}
	}
	return nil
}

func (s *Stub) dial(ctx context.Context) error {
	dialer := net.Dialer{Timeout: s.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.config.Address, err)
	}

	c := &connection{
		conn: conn,
		enc:  protocol.NewEncoder(conn),
		lost: make(chan struct{}),
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		conn.Close()
		return ErrClosed
	}
	s.current = c
	s.mutex.Unlock()

	go s.listen(c, protocol.NewDecoder(conn, s.config.MaxFrameBytes))

	s.logger.Info().Str("local_addr", conn.LocalAddr().String()).Msg("Connected")
	return nil
}

// drop forgets c, or whatever connection is current when c is nil
func (s *Stub) drop(c *connection) {
	s.mutex.Lock()
	if c == nil {
		c = s.current
	}
	if c != nil && s.current == c {
		s.current = nil
	}
	s.mutex.Unlock()

	if c != nil {
		c.teardown()
	}
}

func (s *Stub) roundTrip(ctx context.Context, reqType protocol.RequestType, payload, out interface{}) error {
	id := uuid.New().String()
	req, err := protocol.NewRequest(reqType, id, payload)
	if err != nil {
		return err
	}

	// Anything still buffered belongs to a call that already gave up
	select {
	case stale := <-s.responses:
		s.logger.Debug().Str("request_id", stale.ID).Msg("Discarding stale response")
	default:
	}

	s.mutex.Lock()
	c := s.current
	if c == nil {
		s.mutex.Unlock()
		return ErrNotConnected
	}
	s.waiting = id
	s.mutex.Unlock()

	s.write.Lock()
	err = c.enc.Encode(req)
	s.write.Unlock()

	defer func() {
		s.mutex.Lock()
		s.waiting = ""
		s.mutex.Unlock()
	}()

	if err != nil {
		s.drop(c)
		return fmt.Errorf("%w: failed to send %s: %v", ErrNotConnected, reqType, err)
	}

	timer := time.NewTimer(s.config.Timeout)
	defer timer.Stop()

	for {
		select {
		case resp := <-s.responses:
			if resp.ID != id {
				continue
			}
			if resp.Error != nil {
				return &RemoteError{Request: reqType, Err: resp.Error}
			}
			if out == nil || len(resp.Payload) == 0 {
				return nil
			}
			if err := json.Unmarshal(resp.Payload, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", reqType, err)
			}
			return nil
		case <-timer.C:
			s.logger.Warn().Str("request_type", string(reqType)).Dur("timeout", s.config.Timeout).Msg("Request timeout")
			return fmt.Errorf("%s: %w after %v", reqType, ErrTimeout, s.config.Timeout)
		case <-c.lost:
			return fmt.Errorf("%s: %w", reqType, ErrNotConnected)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// listen is the single reader of c. Responses go to the waiting call, every
// other message to the observers.
func (s *Stub) listen(c *connection, dec *protocol.Decoder) {
	defer s.drop(c)

	for {
		msg, err := dec.Decode()
		if err != nil {
			select {
			case <-c.lost:
			default:
				s.logger.Warn().Err(err).Msg("Connection lost")
			}
			return
		}

		switch {
		case msg.IsResponse():
			s.deliver(msg)
		case msg.Type == string(protocol.EventDisconnect):
			s.logger.Info().Msg("Server closed the session")
			s.drop(c)
			s.notify(msg)
			return
		default:
			if msg.Type == string(protocol.EventWelcome) {
				var welcome protocol.Welcome
				if err := msg.Decode(&welcome); err == nil {
					s.mutex.Lock()
					s.sessionID = welcome.SessionID
					s.mutex.Unlock()
				}
			}
			s.notify(msg)
		}
	}
}

func (s *Stub) deliver(msg *protocol.Message) {
	s.mutex.RLock()
	waiting := s.waiting
	s.mutex.RUnlock()

	if waiting == "" || msg.ID != waiting {
		s.logger.Debug().Str("request_id", msg.ID).Msg("Dropping unsolicited response")
		return
	}
	select {
	case s.responses <- msg:
	default:
		s.logger.Warn().Str("request_id", msg.ID).Msg("Response slot full, dropping response")
	}
}

func (s *Stub) notify(msg *protocol.Message) {
	s.mutex.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mutex.RUnlock()

	for _, o := range observers {
		o.OnEvent(msg)
	}
}

// IsTimeout reports whether err is a response timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
