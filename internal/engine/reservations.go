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
	"fmt"

	"loaner/internal/inventory"
	"loaner/internal/protocol"
)

// CreateReservation binds a named student to a named laptop using the same
// atomic claim as registration
func (e *Engine) CreateReservation(ctx context.Context, studentID, laptopID string) (*protocol.ReservationChange, error) {
	student, err := e.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	laptop, err := e.GetLaptop(ctx, laptopID)
	if err != nil {
		return nil, err
	}
	if laptop.Class != student.RequiredClass {
		return nil, &inventory.ValidationError{
			Field:  "laptop_id",
			Reason: fmt.Sprintf("student %s requires a %s laptop, %s is %s", studentID, student.RequiredClass, laptopID, laptop.Class),
		}
	}

	claim, err := e.store.ClaimSpecificLaptop(ctx, laptopID, studentID, e.now())
	if err != nil {
		return nil, e.fail("create_reservation", err)
	}

	e.logger.Info().
		Str("reservation_id", claim.Reservation.ID).
		Str("student_id", studentID).
		Str("laptop_id", laptopID).
		Msg("Reservation created")
	e.announceClaim(claim.Reservation, claim.Laptop)
	return &protocol.ReservationChange{Reservation: claim.Reservation, Laptop: claim.Laptop}, nil
}

func (e *Engine) GetReservation(ctx context.Context, id string) (*inventory.Reservation, error) {
	reservation, err := e.store.GetReservation(ctx, id)
	if err != nil {
		return nil, e.fail("get_reservation", err)
	}
	return reservation, nil
}

func (e *Engine) ListReservations(ctx context.Context, activeOnly bool) ([]*inventory.Reservation, error) {
	reservations, err := e.store.ListReservations(ctx, activeOnly)
	if err != nil {
		return nil, e.fail("list_reservations", err)
	}
	return reservations, nil
}

// CompleteReservation closes an ACTIVE reservation as COMPLETED and returns its laptop
func (e *Engine) CompleteReservation(ctx context.Context, id string) (*protocol.ReservationChange, error) {
	return e.closeReservation(ctx, id, inventory.ReservationCompleted)
}

// CancelReservation closes an ACTIVE reservation as CANCELLED and returns its laptop
func (e *Engine) CancelReservation(ctx context.Context, id string) (*protocol.ReservationChange, error) {
	return e.closeReservation(ctx, id, inventory.ReservationCancelled)
}

// closeReservation leaves the waitlists alone unless AutoDrainOnReturn is set
func (e *Engine) closeReservation(ctx context.Context, id string, status inventory.ReservationStatus) (*protocol.ReservationChange, error) {
	op := "complete_reservation"
	event := protocol.EventReservationCompleted
	if status == inventory.ReservationCancelled {
		op = "cancel_reservation"
		event = protocol.EventReservationCancelled
	}

	if id == "" {
		return nil, &inventory.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	claim, err := e.store.CloseReservation(ctx, id, status, e.now())
	if err != nil {
		return nil, e.fail(op, err)
	}

	e.logger.Info().Str("reservation_id", id).Str("status", string(status)).Msg("Reservation closed")
	change := &protocol.ReservationChange{Reservation: claim.Reservation, Laptop: claim.Laptop}
	e.notify(event, change)
	if claim.Laptop != nil {
		e.notify(protocol.EventLaptopStateChanged, claim.Laptop)
	}

	if e.policy.AutoDrainOnReturn {
		if _, err := e.DrainQueues(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("Drain after return failed")
		}
	}
	return change, nil
}

func (e *Engine) announceClaim(reservation *inventory.Reservation, laptop *inventory.Laptop) {
	e.notify(protocol.EventLaptopStateChanged, laptop)
	e.notify(protocol.EventReservationCreated, protocol.ReservationChange{Reservation: reservation, Laptop: laptop})
}
