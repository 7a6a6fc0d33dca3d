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
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"loaner/internal/protocol"
)

// Session serves one client connection. Requests are read and answered
// one at a time on the caller's goroutine; every outbound frame, replies
// and pushes alike, goes through the send channel to a single writer.
type Session struct {
	id     string
	conn   net.Conn
	server *Server
	dec    *protocol.Decoder
	enc    *protocol.Encoder

	send      chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
	pushTimeout  time.Duration
	logger       zerolog.Logger
}

func newSession(srv *Server, conn net.Conn) *Session {
	id := uuid.New().String()
	return &Session{
		id:           id,
		conn:         conn,
		server:       srv,
		dec:          protocol.NewDecoder(conn, srv.config.Server.MaxFrameBytes),
		enc:          protocol.NewEncoder(conn),
		send:         make(chan *protocol.Message, srv.config.Server.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: srv.config.GetWriteTimeout(),
		pushTimeout:  srv.config.GetPushTimeout(),
		logger: srv.logger.With().
			Str("session_id", id).
			Str("remote_addr", conn.RemoteAddr().String()).
			Logger(),
	}
}

// ID returns the session id announced in the welcome push
func (s *Session) ID() string {
	return s.id
}

// Push queues an unsolicited message. When the buffer is full it waits up
// to the push timeout for the writer to make room; a closed session or a
// writer that stays stuck for that long reports false.
func (s *Session) Push(msg *protocol.Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- msg:
		return true
	default:
	}
	if s.pushTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(s.pushTimeout)
	defer timer.Stop()

	select {
	case s.send <- msg:
		return true
	case <-s.done:
		return false
	case <-timer.C:
		s.logger.Warn().Str("event", msg.Type).Dur("waited", s.pushTimeout).Msg("Send buffer stayed full")
		return false
	}
}

// reply queues the response to the current request. Unlike Push it waits
// for buffer space, since the writer is draining and the peer is waiting.
func (s *Session) reply(msg *protocol.Message) bool {
	select {
	case s.send <- msg:
		return true
	case <-s.done:
		return false
	}
}

// Close tears down the connection. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Done is closed once the session has been torn down
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run serves the connection until the peer goes away or the session is closed
func (s *Session) Run(ctx context.Context) {
	s.server.metrics.sessionOpened()
	defer s.server.metrics.sessionClosed()

	defer func() {
		s.server.registry.Deregister(s.id)
		s.Close()
		s.logger.Info().Msg("Session closed")
	}()

	go s.writeLoop()

	welcome, err := protocol.NewEvent(protocol.EventWelcome, protocol.Welcome{
		SessionID: s.id,
		Protocol:  protocol.PROTOCOL_VERSION,
		Server:    s.server.name,
		Time:      time.Now().UTC(),
	})
	if err == nil {
		s.Push(welcome)
	}
	s.logger.Info().Msg("Session started")

	for {
		msg, err := s.dec.Decode()
		if err != nil {
			s.logReadError(err)
			return
		}

		if protocol.RequestType(msg.Type) == protocol.Disconnect {
			s.logger.Debug().Msg("Client requested disconnect")
			return
		}

		resp := s.server.handle(ctx, s, msg)
		if resp != nil && !s.reply(resp) {
			return
		}
	}
}

func (s *Session) logReadError(err error) {
	select {
	case <-s.done:
		return
	default:
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		s.logger.Debug().Msg("Peer closed connection")
		return
	}
	s.logger.Warn().Err(err).Msg("Read failed")
}

// writeLoop is the only goroutine that writes to the connection.
// A disconnect push is the last frame written before the session closes.
func (s *Session) writeLoop() {
	for {
		select {
		case msg := <-s.send:
			if s.writeTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if err := s.enc.Encode(msg); err != nil {
				s.logger.Debug().Err(err).Msg("Write failed")
				s.Close()
				return
			}
			if msg.Type == string(protocol.EventDisconnect) {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
