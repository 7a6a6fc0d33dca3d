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

// Package store is the durable persistence layer for laptops, students,
// reservations and waitlist entries.
//
// Every cross-client invariant lives here. A laptop is only ever moved to
// LOANED by a conditional update that also requires it to still be
// AVAILABLE, and the reservation row is written in the same transaction, so
// two concurrent claims for the last laptop of a class cannot both succeed.
package store

import (
	"context"
	"time"

	"loaner/internal/inventory"
)

// Claim is the result of a successful atomic bind
type Claim struct {
	Reservation *inventory.Reservation `json:"reservation"`
	Laptop      *inventory.Laptop      `json:"laptop"`
}

// Store is the persistence collaborator consumed by the engine
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	CreateLaptop(ctx context.Context, laptop *inventory.Laptop) error
	GetLaptop(ctx context.Context, id string) (*inventory.Laptop, error)
	// ListLaptops returns laptops in creation order; a nil state returns all of them
	ListLaptops(ctx context.Context, state *inventory.LaptopState) ([]*inventory.Laptop, error)
	// PeekAvailableLaptop returns the laptop ClaimLaptop would currently pick, without claiming it
	PeekAvailableLaptop(ctx context.Context, class inventory.PerformanceClass) (*inventory.Laptop, error)
	UpdateLaptop(ctx context.Context, laptop *inventory.Laptop) error
	// SetLaptopState writes state only if the current state equals from
	SetLaptopState(ctx context.Context, id string, from, to inventory.LaptopState) (*inventory.Laptop, error)
	DeleteLaptop(ctx context.Context, id string) error
	// DeleteIdleLaptop deletes the laptop only if no ACTIVE reservation
	// references it, in the same statement; otherwise ErrLaptopOnLoan
	DeleteIdleLaptop(ctx context.Context, id string) error
	HasActiveReservation(ctx context.Context, laptopID string) (bool, error)

	CreateStudent(ctx context.Context, student *inventory.Student) error
	GetStudent(ctx context.Context, id string) (*inventory.Student, error)
	// ListStudents returns students in creation order; a nil class returns all of them
	ListStudents(ctx context.Context, class *inventory.PerformanceClass) ([]*inventory.Student, error)
	CountStudents(ctx context.Context) (int, error)
	UpdateStudent(ctx context.Context, student *inventory.Student) error
	DeleteStudent(ctx context.Context, id string) error

	// ClaimLaptop atomically picks one AVAILABLE laptop of class, flips it to
	// LOANED and creates an ACTIVE reservation for studentID. It returns
	// inventory.ErrNoLaptopAvailable when nothing could be claimed.
	ClaimLaptop(ctx context.Context, class inventory.PerformanceClass, studentID string, now time.Time) (*Claim, error)
	// ClaimSpecificLaptop is ClaimLaptop for one named laptop
	ClaimSpecificLaptop(ctx context.Context, laptopID, studentID string, now time.Time) (*Claim, error)
	// ClaimForQueueEntry is ClaimLaptop that also removes the queue entry in the same transaction
	ClaimForQueueEntry(ctx context.Context, entry *inventory.QueueEntry, now time.Time) (*Claim, error)
	// CloseReservation moves an ACTIVE reservation to a terminal status and
	// returns its laptop to AVAILABLE in one transaction
	CloseReservation(ctx context.Context, id string, status inventory.ReservationStatus, now time.Time) (*Claim, error)
	GetReservation(ctx context.Context, id string) (*inventory.Reservation, error)
	ListReservations(ctx context.Context, activeOnly bool) ([]*inventory.Reservation, error)

	Enqueue(ctx context.Context, studentID string, class inventory.PerformanceClass, now time.Time) (*inventory.QueueEntry, error)
	// ListQueue returns the entries of one class in FIFO order
	ListQueue(ctx context.Context, class inventory.PerformanceClass) ([]*inventory.QueueEntry, error)
	IsQueued(ctx context.Context, studentID string, class inventory.PerformanceClass) (bool, error)
}
