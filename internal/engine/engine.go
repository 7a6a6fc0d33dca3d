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

// Package engine implements the loan coordination rules on top of a Store.
//
// The engine keeps no state between calls. Everything that must hold across
// concurrent sessions is enforced by the store's atomic claim operations;
// the engine only decides what to claim and what to announce.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"loaner/internal/inventory"
	"loaner/internal/logger"
	"loaner/internal/protocol"
	"loaner/internal/store"
)

// Notifier receives every state change the engine commits
type Notifier interface {
	Notify(event protocol.EventType, payload interface{})
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(event protocol.EventType, payload interface{})

func (f NotifierFunc) Notify(event protocol.EventType, payload interface{}) {
	f(event, payload)
}

type nopNotifier struct{}

func (nopNotifier) Notify(protocol.EventType, interface{}) {}

// Policy holds the switches for behaviour that deployments may want to tighten.
// The zero value keeps the permissive behaviour.
type Policy struct {
	// GuardLaptopDelete refuses to delete a laptop with an ACTIVE reservation
	GuardLaptopDelete bool `yaml:"guard_laptop_delete" json:"guard_laptop_delete"`
	// AutoDrainOnReturn runs a drain pass after every completed or cancelled reservation
	AutoDrainOnReturn bool `yaml:"auto_drain_on_return" json:"auto_drain_on_return"`
	// RejectDuplicateQueueEntries refuses to queue a student twice in the same class
	RejectDuplicateQueueEntries bool `yaml:"reject_duplicate_queue_entries" json:"reject_duplicate_queue_entries"`
}

// Engine is the stateless domain facade
type Engine struct {
	store    store.Store
	notifier Notifier
	policy   Policy
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithPolicy sets the policy switches
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. A nil notifier discards events.
func New(st store.Store, notifier Notifier, opts ...Option) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	e := &Engine{
		store:    st,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.GetLogger("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the active policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Ping checks the store
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

func (e *Engine) notify(event protocol.EventType, payload interface{}) {
	e.notifier.Notify(event, payload)
}

// fail passes domain errors through untouched. Anything else is an
// infrastructure failure: it is logged and announced as server_error.
func (e *Engine) fail(op string, err error) error {
	if err == nil || protocol.IsDomainError(err) {
		return err
	}
	e.logger.Error().Err(err).Str("operation", op).Msg("Persistence failure")
	e.notify(protocol.EventServerError, protocol.ServerError{Operation: op, Message: err.Error()})
	return fmt.Errorf("%s: %w", op, err)
}

// Snapshot returns the full state pushed to a newly registered client
func (e *Engine) Snapshot(ctx context.Context) (*protocol.Snapshot, error) {
	laptops, err := e.store.ListLaptops(ctx, nil)
	if err != nil {
		return nil, e.fail("snapshot", err)
	}
	students, err := e.store.ListStudents(ctx, nil)
	if err != nil {
		return nil, e.fail("snapshot", err)
	}
	reservations, err := e.store.ListReservations(ctx, true)
	if err != nil {
		return nil, e.fail("snapshot", err)
	}
	high, err := e.store.ListQueue(ctx, inventory.ClassHigh)
	if err != nil {
		return nil, e.fail("snapshot", err)
	}
	low, err := e.store.ListQueue(ctx, inventory.ClassLow)
	if err != nil {
		return nil, e.fail("snapshot", err)
	}

	return &protocol.Snapshot{
		Laptops:      laptops,
		Students:     students,
		Reservations: reservations,
		HighQueue:    high,
		LowQueue:     low,
	}, nil
}
