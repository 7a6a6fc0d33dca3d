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

// RegisterStudent validates and stores a student, then tries to hand them a
// laptop of their required class straight away. When no laptop can be
// claimed the student is appended to the waitlist of that class instead.
func (e *Engine) RegisterStudent(ctx context.Context, student *inventory.Student) (*protocol.Assignment, error) {
	if student == nil {
		return nil, &inventory.ValidationError{Field: "student", Reason: "missing profile"}
	}
	now := e.now()
	student.Normalize()
	if err := student.Validate(now); err != nil {
		return nil, err
	}
	student.CreatedAt = now.UTC()

	if err := e.store.CreateStudent(ctx, student); err != nil {
		return nil, e.fail("create_student", err)
	}
	log := e.logger.With().Str("student_id", student.ID).Str("class", string(student.RequiredClass)).Logger()
	log.Info().Msg("Student registered")
	e.notify(protocol.EventStudentCreated, student)

	claim, err := e.store.ClaimLaptop(ctx, student.RequiredClass, student.ID, now)
	if err == nil {
		log.Info().Str("laptop_id", claim.Laptop.ID).Str("reservation_id", claim.Reservation.ID).Msg("Laptop assigned")
		e.announceClaim(claim.Reservation, claim.Laptop)
		return &protocol.Assignment{
			Outcome:     protocol.OutcomeAssigned,
			Student:     student,
			Reservation: claim.Reservation,
			Laptop:      claim.Laptop,
		}, nil
	}
	if !errors.Is(err, inventory.ErrNoLaptopAvailable) {
		// A failed bind is treated like an empty shelf
		log.Warn().Err(err).Msg("Claim failed, queueing student")
	}

	entry, err := e.enqueue(ctx, student.ID, student.RequiredClass)
	if err != nil {
		return nil, e.fail("create_student", err)
	}
	log.Info().Int64("seq", entry.Seq).Msg("Student queued")
	e.announceQueue(ctx, student.RequiredClass)

	return &protocol.Assignment{
		Outcome:    protocol.OutcomeQueued,
		Student:    student,
		QueueEntry: entry,
	}, nil
}

func (e *Engine) GetStudent(ctx context.Context, id string) (*inventory.Student, error) {
	if err := inventory.ValidateStudentID(id); err != nil {
		return nil, err
	}
	student, err := e.store.GetStudent(ctx, id)
	if err != nil {
		return nil, e.fail("get_student", err)
	}
	return student, nil
}

// ListStudents returns every student, or only those requiring class when it is not nil
func (e *Engine) ListStudents(ctx context.Context, class *inventory.PerformanceClass) ([]*inventory.Student, error) {
	students, err := e.store.ListStudents(ctx, class)
	if err != nil {
		return nil, e.fail("list_students", err)
	}
	return students, nil
}

func (e *Engine) CountStudents(ctx context.Context) (int, error) {
	n, err := e.store.CountStudents(ctx)
	if err != nil {
		return 0, e.fail("get_student_count", err)
	}
	return n, nil
}

// UpdateStudent replaces a student's profile. The id and required class are fixed.
func (e *Engine) UpdateStudent(ctx context.Context, student *inventory.Student) (*inventory.Student, error) {
	if student == nil {
		return nil, &inventory.ValidationError{Field: "student", Reason: "missing profile"}
	}
	student.Normalize()
	current, err := e.GetStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	if student.RequiredClass == "" {
		student.RequiredClass = current.RequiredClass
	}
	if student.RequiredClass != current.RequiredClass {
		return nil, &inventory.ValidationError{Field: "required_class", Reason: "performance class cannot change after registration"}
	}
	if err := student.Validate(e.now()); err != nil {
		return nil, err
	}
	student.CreatedAt = current.CreatedAt

	if err := e.store.UpdateStudent(ctx, student); err != nil {
		return nil, e.fail("update_student", err)
	}

	e.notify(protocol.EventStudentUpdated, student)
	return student, nil
}

// DeleteStudent removes a student together with their waitlist entries.
// Reservations are kept for history.
func (e *Engine) DeleteStudent(ctx context.Context, id string) error {
	student, err := e.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	queued, err := e.store.IsQueued(ctx, id, student.RequiredClass)
	if err != nil {
		return e.fail("delete_student", err)
	}

	if err := e.store.DeleteStudent(ctx, id); err != nil {
		return e.fail("delete_student", err)
	}

	e.logger.Info().Str("student_id", id).Msg("Student deleted")
	e.notify(protocol.EventStudentDeleted, protocol.IDPayload{ID: id})
	if queued {
		e.announceQueue(ctx, student.RequiredClass)
	}
	return nil
}

func (e *Engine) studentForQueue(ctx context.Context, id string, class inventory.PerformanceClass) (*inventory.Student, error) {
	student, err := e.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if student.RequiredClass != class {
		return nil, &inventory.ValidationError{
			Field:  "class",
			Reason: fmt.Sprintf("student %s requires a %s laptop", id, student.RequiredClass),
		}
	}
	return student, nil
}
