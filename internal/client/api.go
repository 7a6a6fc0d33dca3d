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

package client

import (
	"context"

	"loaner/internal/inventory"
	"loaner/internal/protocol"
)

// Typed wrappers around Call, one per request type

// Register subscribes this connection to broadcasts. The snapshot arrives
// as a push before the call returns.
func (s *Stub) Register(ctx context.Context) (*protocol.Welcome, error) {
	var out protocol.Welcome
	if err := s.Call(ctx, protocol.NewClient, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Stub) Ping(ctx context.Context) (*protocol.Pong, error) {
	var out protocol.Pong
	if err := s.Call(ctx, protocol.Ping, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Laptops

func (s *Stub) Laptops(ctx context.Context) ([]*inventory.Laptop, error) {
	return s.laptops(ctx, protocol.GetAllLaptops)
}

func (s *Stub) AvailableLaptops(ctx context.Context) ([]*inventory.Laptop, error) {
	return s.laptops(ctx, protocol.GetAvailableLaptops)
}

func (s *Stub) LoanedLaptops(ctx context.Context) ([]*inventory.Laptop, error) {
	return s.laptops(ctx, protocol.GetLoanedLaptops)
}

func (s *Stub) laptops(ctx context.Context, reqType protocol.RequestType) ([]*inventory.Laptop, error) {
	var out []*inventory.Laptop
	if err := s.Call(ctx, reqType, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NextAvailableLaptop returns the laptop a registration of class would get
func (s *Stub) NextAvailableLaptop(ctx context.Context, class inventory.PerformanceClass) (*inventory.Laptop, error) {
	return s.laptop(ctx, protocol.GetNextAvailableLaptop, protocol.ClassPayload{Class: class})
}

func (s *Stub) Laptop(ctx context.Context, id string) (*inventory.Laptop, error) {
	return s.laptop(ctx, protocol.GetLaptopByUUID, protocol.IDPayload{ID: id})
}

func (s *Stub) CreateLaptop(ctx context.Context, spec inventory.LaptopSpec) (*inventory.Laptop, error) {
	return s.laptop(ctx, protocol.CreateLaptop, spec)
}

func (s *Stub) UpdateLaptop(ctx context.Context, id string, spec inventory.LaptopSpec) (*inventory.Laptop, error) {
	return s.laptop(ctx, protocol.UpdateLaptop, protocol.UpdateLaptopPayload{ID: id, LaptopSpec: spec})
}

// ToggleLaptopState flips a laptop between available and loaned
func (s *Stub) ToggleLaptopState(ctx context.Context, id string) (*inventory.Laptop, error) {
	return s.laptop(ctx, protocol.UpdateLaptopState, protocol.IDPayload{ID: id})
}

func (s *Stub) DeleteLaptop(ctx context.Context, id string) error {
	return s.Call(ctx, protocol.DeleteLaptop, protocol.IDPayload{ID: id}, nil)
}

func (s *Stub) laptop(ctx context.Context, reqType protocol.RequestType, payload interface{}) (*inventory.Laptop, error) {
	var out inventory.Laptop
	if err := s.Call(ctx, reqType, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Students

func (s *Stub) Students(ctx context.Context) ([]*inventory.Student, error) {
	return s.students(ctx, protocol.GetAllStudents)
}

// StudentsByClass lists the students that require class
func (s *Stub) StudentsByClass(ctx context.Context, class inventory.PerformanceClass) ([]*inventory.Student, error) {
	if class == inventory.ClassHigh {
		return s.students(ctx, protocol.GetHighPowerStudents)
	}
	return s.students(ctx, protocol.GetLowPowerStudents)
}

func (s *Stub) students(ctx context.Context, reqType protocol.RequestType) ([]*inventory.Student, error) {
	var out []*inventory.Student
	if err := s.Call(ctx, reqType, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Stub) StudentCount(ctx context.Context) (int, error) {
	var out protocol.Count
	if err := s.Call(ctx, protocol.GetStudentCount, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (s *Stub) Student(ctx context.Context, id string) (*inventory.Student, error) {
	var out inventory.Student
	if err := s.Call(ctx, protocol.GetStudentByID, protocol.IDPayload{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateStudent registers a student, who either gets a laptop at once or
// joins the queue of their class
func (s *Stub) CreateStudent(ctx context.Context, student inventory.Student) (*protocol.Assignment, error) {
	var out protocol.Assignment
	if err := s.Call(ctx, protocol.CreateStudent, student, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Stub) UpdateStudent(ctx context.Context, student inventory.Student) (*inventory.Student, error) {
	var out inventory.Student
	if err := s.Call(ctx, protocol.UpdateStudent, student, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Stub) DeleteStudent(ctx context.Context, id string) error {
	return s.Call(ctx, protocol.DeleteStudent, protocol.IDPayload{ID: id}, nil)
}

// Reservations

func (s *Stub) CreateReservation(ctx context.Context, studentID, laptopID string) (*protocol.ReservationChange, error) {
	return s.reservationChange(ctx, protocol.CreateReservation, protocol.CreateReservationPayload{
		StudentID: studentID,
		LaptopID:  laptopID,
	})
}

func (s *Stub) ActiveReservations(ctx context.Context) ([]*inventory.Reservation, error) {
	return s.reservations(ctx, protocol.GetActiveReservations)
}

func (s *Stub) Reservations(ctx context.Context) ([]*inventory.Reservation, error) {
	return s.reservations(ctx, protocol.GetAllReservations)
}

func (s *Stub) reservations(ctx context.Context, reqType protocol.RequestType) ([]*inventory.Reservation, error) {
	var out []*inventory.Reservation
	if err := s.Call(ctx, reqType, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Stub) Reservation(ctx context.Context, id string) (*inventory.Reservation, error) {
	var out inventory.Reservation
	if err := s.Call(ctx, protocol.GetReservationByID, protocol.IDPayload{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Stub) CompleteReservation(ctx context.Context, id string) (*protocol.ReservationChange, error) {
	return s.reservationChange(ctx, protocol.CompleteReservation, protocol.IDPayload{ID: id})
}

func (s *Stub) CancelReservation(ctx context.Context, id string) (*protocol.ReservationChange, error) {
	return s.reservationChange(ctx, protocol.CancelReservation, protocol.IDPayload{ID: id})
}

func (s *Stub) reservationChange(ctx context.Context, reqType protocol.RequestType, payload interface{}) (*protocol.ReservationChange, error) {
	var out protocol.ReservationChange
	if err := s.Call(ctx, reqType, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Queues

// Queue returns the waitlist of class in FIFO order
func (s *Stub) Queue(ctx context.Context, class inventory.PerformanceClass) ([]*inventory.QueueEntry, error) {
	reqType := protocol.GetLowPerformanceQueue
	if class == inventory.ClassHigh {
		reqType = protocol.GetHighPerformanceQueue
	}
	var out []*inventory.QueueEntry
	if err := s.Call(ctx, reqType, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddToQueue appends an existing student to the waitlist of class
func (s *Stub) AddToQueue(ctx context.Context, studentID string, class inventory.PerformanceClass) (*inventory.QueueEntry, error) {
	reqType := protocol.AddToLowQueue
	if class == inventory.ClassHigh {
		reqType = protocol.AddToHighQueue
	}
	var out inventory.QueueEntry
	if err := s.Call(ctx, reqType, protocol.IDPayload{ID: studentID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessQueues runs one drain pass over both waitlists
func (s *Stub) ProcessQueues(ctx context.Context) (*protocol.DrainResult, error) {
	var out protocol.DrainResult
	if err := s.Call(ctx, protocol.ProcessQueues, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
