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

// Package server accepts client connections, runs one Session per
// connection on a bounded worker pool and fans engine events out to every
// registered session.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"loaner/internal/engine"
	"loaner/internal/inventory"
	"loaner/internal/logger"
	"loaner/internal/protocol"
	"loaner/internal/store"
)

// EventSink receives a copy of every broadcast, e.g. the ZeroMQ relay
type EventSink interface {
	Publish(msg *protocol.Message) error
}

// Server is the connection acceptor and the owner of all sessions
type Server struct {
	config   *Config
	name     string
	engine   *engine.Engine
	registry *Registry
	metrics  *Metrics
	nonces   *NonceCache
	sinks    []EventSink
	table    map[protocol.RequestType]handlerFunc

	listener net.Listener
	sessions map[string]*Session
	mutex    sync.RWMutex
	group    *errgroup.Group
	served   chan struct{}
	serving  atomic.Bool
	closing  atomic.Bool
	started  time.Time

	logger zerolog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithMetrics enables Prometheus collection
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithEventSink mirrors every broadcast to sink
func WithEventSink(sink EventSink) Option {
	return func(s *Server) { s.sinks = append(s.sinks, sink) }
}

// WithName sets the server name announced in the welcome push
func WithName(name string) Option {
	return func(s *Server) { s.name = name }
}

// New creates a server on top of st. The engine is created here so that
// its notifier is this server.
func New(config *Config, st store.Store, opts ...Option) *Server {
	s := &Server{
		config:   config,
		name:     "loaner",
		sessions: make(map[string]*Session),
		served:   make(chan struct{}),
		logger:   logger.GetLogger("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.group = new(errgroup.Group)
	s.group.SetLimit(config.Server.Workers)
	s.registry = NewRegistry(s.metrics)
	s.nonces = NewNonceCache(config.Idempotency.CacheSize, config.GetIdempotencyExpiration())
	s.engine = engine.New(st, s, engine.WithPolicy(config.Policy))
	s.table = s.handlers()
	return s
}

// Engine returns the domain engine used by every session
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Registry returns the broadcast registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the bound listener address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the configured address
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Address, err)
	}
	s.listener = listener
	s.started = time.Now()

	s.logger.Info().
		Str("address", listener.Addr().String()).
		Int("workers", s.config.Server.Workers).
		Msg("Server listening")
	return nil
}

// Start binds the listener and serves in the background
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	go func() {
		if err := s.Serve(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Accept loop failed")
		}
	}()
	return nil
}

// Serve accepts connections until the listener is closed. Each connection
// becomes a Session on the worker pool; when every worker is busy the accept
// loop waits for one to free up.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	if !s.serving.CompareAndSwap(false, true) {
		return errors.New("server is already serving")
	}
	defer close(s.served)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		sess := newSession(s, conn)
		s.track(sess)
		if s.closing.Load() {
			sess.Close()
		}

		run := func() error {
			defer s.untrack(sess)
			sess.Run(ctx)
			return nil
		}
		if !s.group.TryGo(run) {
			s.logger.Warn().Str("remote_addr", conn.RemoteAddr().String()).Msg("Worker pool saturated, connection waiting")
			s.group.Go(run)
		}
	}
}

func (s *Server) track(sess *Session) {
	s.mutex.Lock()
	s.sessions[sess.ID()] = sess
	s.mutex.Unlock()
}

func (s *Server) untrack(sess *Session) {
	s.mutex.Lock()
	delete(s.sessions, sess.ID())
	s.mutex.Unlock()
}

func (s *Server) liveSessions() []*Session {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// SessionCount returns the number of connected sessions, registered or not
func (s *Server) SessionCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

// Shutdown stops accepting, tells every session to disconnect and waits for
// them to finish until ctx expires, after which the rest are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info().Msg("Shutting down server")

	if s.listener != nil {
		s.listener.Close()
	}

	bye, _ := protocol.NewEvent(protocol.EventDisconnect, nil)
	for _, sess := range s.liveSessions() {
		if !sess.Push(bye) {
			sess.Close()
		}
	}

	waited := make(chan struct{})
	go func() {
		if s.serving.Load() {
			<-s.served
		}
		s.group.Wait()
		close(waited)
	}()

	var err error
	select {
	case <-waited:
	case <-ctx.Done():
		for _, sess := range s.liveSessions() {
			sess.Close()
		}
		<-waited
		err = ctx.Err()
	}

	s.nonces.Shutdown()
	s.logger.Info().Msg("Server stopped")
	return err
}

// Notify implements engine.Notifier: every committed change is broadcast to
// the registered sessions and mirrored to the configured sinks
func (s *Server) Notify(event protocol.EventType, payload interface{}) {
	msg, err := protocol.NewEvent(event, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", string(event)).Msg("Failed to encode event")
		return
	}

	s.metrics.observeEvent(event, payload)
	s.registry.Broadcast(msg)

	for _, sink := range s.sinks {
		if err := sink.Publish(msg); err != nil {
			s.logger.Warn().Err(err).Str("event", string(event)).Msg("Failed to mirror event")
		}
	}
}

// Status is the summary served by the status API
type Status struct {
	Address    string         `json:"address"`
	Uptime     string         `json:"uptime"`
	Sessions   int            `json:"sessions"`
	Registered int            `json:"registered"`
	Workers    int            `json:"workers"`
	Queues     map[string]int `json:"queues"`
	Laptops    map[string]int `json:"laptops"`
	Policy     engine.Policy  `json:"policy"`
}

// Status collects a point-in-time summary
func (s *Server) Status(ctx context.Context) (*Status, error) {
	status := &Status{
		Sessions:   s.SessionCount(),
		Registered: s.registry.Len(),
		Workers:    s.config.Server.Workers,
		Queues:     make(map[string]int),
		Laptops:    make(map[string]int),
		Policy:     s.engine.Policy(),
	}
	if addr := s.Addr(); addr != nil {
		status.Address = addr.String()
		status.Uptime = time.Since(s.started).Round(time.Second).String()
	}

	for _, class := range inventory.Classes() {
		entries, err := s.engine.Queue(ctx, class)
		if err != nil {
			return nil, err
		}
		status.Queues[string(class)] = len(entries)
	}

	laptops, err := s.engine.ListLaptops(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, laptop := range laptops {
		status.Laptops[string(laptop.State)]++
	}
	return status, nil
}
