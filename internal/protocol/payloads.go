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

package protocol

import (
	"time"

	"loaner/internal/inventory"
)

// Request payloads

// IDPayload addresses one laptop, student or reservation
type IDPayload struct {
	ID string `json:"id"`
}

// ClassPayload selects a performance class
type ClassPayload struct {
	Class inventory.PerformanceClass `json:"class"`
}

// UpdateLaptopPayload replaces the descriptive fields of a laptop
type UpdateLaptopPayload struct {
	ID string `json:"id"`
	inventory.LaptopSpec
}

// CreateReservationPayload binds a named student to a named laptop
type CreateReservationPayload struct {
	StudentID string `json:"student_id"`
	LaptopID  string `json:"laptop_id"`
}

// Response and event payloads

// Welcome is the first push on every connection
type Welcome struct {
	SessionID string    `json:"session_id"`
	Protocol  string    `json:"protocol"`
	Server    string    `json:"server"`
	Time      time.Time `json:"time"`
}

// Snapshot is the one time state dump sent after new_client
type Snapshot struct {
	Laptops      []*inventory.Laptop      `json:"laptops"`
	Students     []*inventory.Student     `json:"students"`
	Reservations []*inventory.Reservation `json:"reservations"`
	HighQueue    []*inventory.QueueEntry  `json:"high_queue"`
	LowQueue     []*inventory.QueueEntry  `json:"low_queue"`
}

// Outcome of registering a student
type Outcome string

const (
	OutcomeAssigned Outcome = "assigned"
	OutcomeQueued   Outcome = "queued"
)

// Assignment is the result of create_student
type Assignment struct {
	Outcome     Outcome                `json:"outcome"`
	Student     *inventory.Student     `json:"student"`
	Reservation *inventory.Reservation `json:"reservation,omitempty"`
	Laptop      *inventory.Laptop      `json:"laptop,omitempty"`
	QueueEntry  *inventory.QueueEntry  `json:"queue_entry,omitempty"`
}

// ReservationChange carries a reservation together with the laptop it moved
type ReservationChange struct {
	Reservation *inventory.Reservation `json:"reservation"`
	Laptop      *inventory.Laptop      `json:"laptop,omitempty"`
}

// QueueUpdate is the full content of one class queue after a change
type QueueUpdate struct {
	Class   inventory.PerformanceClass `json:"class"`
	Entries []*inventory.QueueEntry    `json:"entries"`
}

// DrainResult reports how many reservations one drain pass created
type DrainResult struct {
	Created int `json:"created"`
	High    int `json:"high"`
	Low     int `json:"low"`
}

// Count is a bare integer result
type Count struct {
	Count int `json:"count"`
}

// Pong answers ping
type Pong struct {
	Time time.Time `json:"time"`
}

// ServerError is broadcast when a request fails on infrastructure
type ServerError struct {
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

// QueueAddedEvent returns the push announcing a new entry in the queue of class
func QueueAddedEvent(class inventory.PerformanceClass) EventType {
	if class == inventory.ClassHigh {
		return EventStudentAddedToHighQueue
	}
	return EventStudentAddedToLowQueue
}
