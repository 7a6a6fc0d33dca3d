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

package engine

import (
	"context"
	"errors"
	"fmt"

	"loaner/internal/inventory"
	"loaner/internal/protocol"
)

// Queue returns the waitlist of class in FIFO order
func (e *Engine) Queue(ctx context.Context, class inventory.PerformanceClass) ([]*inventory.QueueEntry, error) {
	if !class.Valid() {
		return nil, &inventory.ValidationError{Field: "class", Reason: fmt.Sprintf("unknown performance class %q", class)}
	}
	entries, err := e.store.ListQueue(ctx, class)
	if err != nil {
		return nil, e.fail("get_queue", err)
	}
	return entries, nil
}

// AddToQueue appends an existing student to the waitlist of class.
// The class must be the one the student requires.
func (e *Engine) AddToQueue(ctx context.Context, studentID string, class inventory.PerformanceClass) (*inventory.QueueEntry, error) {
	if !class.Valid() {
		return nil, &inventory.ValidationError{Field: "class", Reason: fmt.Sprintf("unknown performance class %q", class)}
	}
	if _, err := e.studentForQueue(ctx, studentID, class); err != nil {
		return nil, err
	}

	entry, err := e.enqueue(ctx, studentID, class)
	if err != nil {
		return nil, e.fail("add_to_queue", err)
	}

	e.logger.Info().Str("student_id", studentID).Str("class", string(class)).Int64("seq", entry.Seq).Msg("Student queued")
	e.notify(protocol.QueueAddedEvent(class), entry)
	e.announceQueue(ctx, class)
	return entry, nil
}

func (e *Engine) enqueue(ctx context.Context, studentID string, class inventory.PerformanceClass) (*inventory.QueueEntry, error) {
	if e.policy.RejectDuplicateQueueEntries {
		queued, err := e.store.IsQueued(ctx, studentID, class)
		if err != nil {
			return nil, err
		}
		if queued {
			return nil, fmt.Errorf("%w: %s in %s queue", inventory.ErrAlreadyQueued, studentID, class)
		}
	}
	return e.store.Enqueue(ctx, studentID, class, e.now())
}

// DrainQueues is the explicit batch pass that matches waiting students to
// AVAILABLE laptops. Each class queue is walked in FIFO order, HIGH before
// LOW. The walk of a class stops at the first entry that cannot be served;
// later entries are never served ahead of an earlier one.
func (e *Engine) DrainQueues(ctx context.Context) (*protocol.DrainResult, error) {
	result := &protocol.DrainResult{}

	for _, class := range inventory.Classes() {
		served, err := e.drainClass(ctx, class)
		switch class {
		case inventory.ClassHigh:
			result.High = served
		case inventory.ClassLow:
			result.Low = served
		}
		result.Created += served
		if served > 0 {
			e.announceQueue(ctx, class)
		}
		if err != nil {
			return result, e.fail("process_queues", err)
		}
	}

	if result.Created > 0 {
		e.logger.Info().Int("high", result.High).Int("low", result.Low).Msg("Queues drained")
	}
	return result, nil
}

func (e *Engine) drainClass(ctx context.Context, class inventory.PerformanceClass) (int, error) {
	entries, err := e.store.ListQueue(ctx, class)
	if err != nil {
		return 0, err
	}

	served := 0
	for _, entry := range entries {
		claim, err := e.store.ClaimForQueueEntry(ctx, entry, e.now())
		switch {
		case err == nil:
		case errors.Is(err, inventory.ErrNoLaptopAvailable):
			return served, nil
		case errors.Is(err, inventory.ErrNotFound):
			// entry removed by a concurrent delete
			continue
		default:
			return served, err
		}

		served++
		e.logger.Debug().
			Str("student_id", entry.StudentID).
			Str("laptop_id", claim.Laptop.ID).
			Str("reservation_id", claim.Reservation.ID).
			Msg("Queue entry served")
		e.announceClaim(claim.Reservation, claim.Laptop)
	}
	return served, nil
}

func (e *Engine) announceQueue(ctx context.Context, class inventory.PerformanceClass) {
	entries, err := e.store.ListQueue(ctx, class)
	if err != nil {
		e.logger.Warn().Err(err).Str("class", string(class)).Msg("Failed to load queue for broadcast")
		return
	}
	e.notify(protocol.EventQueueUpdated, protocol.QueueUpdate{Class: class, Entries: entries})
}
