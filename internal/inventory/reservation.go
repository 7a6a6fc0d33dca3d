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

package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

// CanTransition reports whether from -> to is allowed.
// The only legal moves are ACTIVE -> COMPLETED and ACTIVE -> CANCELLED.
func (s ReservationStatus) CanTransition(to ReservationStatus) error {
	if s != ReservationActive {
		return fmt.Errorf("%w: status is %s", ErrReservationNotActive, s)
	}
	if !to.Terminal() {
		return invalid("status", "%q is not a terminal status", to)
	}
	return nil
}

// Reservation binds one student to one laptop
type Reservation struct {
	ID        string            `json:"id"`
	StudentID string            `json:"student_id"`
	LaptopID  string            `json:"laptop_id"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	ClosedAt  *time.Time        `json:"closed_at,omitempty"`
}

// NewReservation returns an ACTIVE reservation
func NewReservation(studentID, laptopID string, now time.Time) *Reservation {
	return &Reservation{
		ID:        uuid.New().String(),
		StudentID: studentID,
		LaptopID:  laptopID,
		Status:    ReservationActive,
		CreatedAt: now.UTC(),
	}
}

// QueueEntry is one waiting student in a class scoped FIFO queue
type QueueEntry struct {
	Seq        int64            `json:"seq"`
	StudentID  string           `json:"student_id"`
	Class      PerformanceClass `json:"class"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}
