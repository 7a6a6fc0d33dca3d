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

// Package protocol defines the loaner wire protocol: a closed catalogue of
// request and event types, their payloads, and a length-prefixed JSON framing.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Protocol constants
const (
	// PROTOCOL_VERSION is announced in the welcome push
	PROTOCOL_VERSION = "LOANER01"

	// DEFAULT_PORT is the listening port when none is configured
	DEFAULT_PORT = 8888

	// TypeResponse tags every reply to a request
	TypeResponse = "response"
)

// RequestType is a client to server message tag
type RequestType string

const (
	// lifecycle
	NewClient  RequestType = "new_client"
	Disconnect RequestType = "disconnect"
	Ping       RequestType = "ping"

	// laptops
	GetAllLaptops          RequestType = "get_all_laptops"
	GetAvailableLaptops    RequestType = "get_available_laptops"
	GetLoanedLaptops       RequestType = "get_loaned_laptops"
	GetNextAvailableLaptop RequestType = "get_next_available_laptop"
	GetLaptopByUUID        RequestType = "get_laptop_by_uuid"
	CreateLaptop           RequestType = "create_laptop"
	UpdateLaptop           RequestType = "update_laptop"
	UpdateLaptopState      RequestType = "update_laptop_state"
	DeleteLaptop           RequestType = "delete_laptop"

	// students
	GetAllStudents       RequestType = "get_all_students"
	GetStudentCount      RequestType = "get_student_count"
	GetStudentByID       RequestType = "get_student_by_id"
	GetHighPowerStudents RequestType = "get_high_power_students"
	GetLowPowerStudents  RequestType = "get_low_power_students"
	CreateStudent        RequestType = "create_student"
	UpdateStudent        RequestType = "update_student"
	DeleteStudent        RequestType = "delete_student"

	// reservations
	CreateReservation     RequestType = "create_reservation"
	GetActiveReservations RequestType = "get_active_reservations"
	GetAllReservations    RequestType = "get_all_reservations"
	GetReservationByID    RequestType = "get_reservation_by_id"
	CompleteReservation   RequestType = "complete_reservation"
	CancelReservation     RequestType = "cancel_reservation"

	// queues
	GetHighPerformanceQueue RequestType = "get_high_performance_queue"
	GetLowPerformanceQueue  RequestType = "get_low_performance_queue"
	AddToHighQueue          RequestType = "add_to_high_queue"
	AddToLowQueue           RequestType = "add_to_low_queue"
	ProcessQueues           RequestType = "process_queues"
)

var requests = []RequestType{
	NewClient, Disconnect, Ping,
	GetAllLaptops, GetAvailableLaptops, GetLoanedLaptops, GetNextAvailableLaptop, GetLaptopByUUID,
	CreateLaptop, UpdateLaptop, UpdateLaptopState, DeleteLaptop,
	GetAllStudents, GetStudentCount, GetStudentByID, GetHighPowerStudents, GetLowPowerStudents,
	CreateStudent, UpdateStudent, DeleteStudent,
	CreateReservation, GetActiveReservations, GetAllReservations, GetReservationByID,
	CompleteReservation, CancelReservation,
	GetHighPerformanceQueue, GetLowPerformanceQueue, AddToHighQueue, AddToLowQueue, ProcessQueues,
}

var mutating = map[RequestType]bool{
	CreateLaptop:        true,
	UpdateLaptop:        true,
	UpdateLaptopState:   true,
	DeleteLaptop:        true,
	CreateStudent:       true,
	UpdateStudent:       true,
	DeleteStudent:       true,
	CreateReservation:   true,
	CompleteReservation: true,
	CancelReservation:   true,
	AddToHighQueue:      true,
	AddToLowQueue:       true,
	ProcessQueues:       true,
}

// Requests returns every request type the server understands
func Requests() []RequestType {
	out := make([]RequestType, len(requests))
	copy(out, requests)
	return out
}

// Known reports whether r is part of the catalogue
func (r RequestType) Known() bool {
	for _, known := range requests {
		if r == known {
			return true
		}
	}
	return false
}

// Mutating reports whether r changes server state
func (r RequestType) Mutating() bool {
	return mutating[r]
}

// EventType is an unsolicited server to client push tag
type EventType string

const (
	EventWelcome    EventType = "welcome"
	EventSnapshot   EventType = "snapshot"
	EventDisconnect EventType = "disconnect"

	EventLaptopCreated      EventType = "laptop_created"
	EventLaptopUpdated      EventType = "laptop_updated"
	EventLaptopDeleted      EventType = "laptop_deleted"
	EventLaptopStateChanged EventType = "laptop_state_changed"

	EventStudentCreated EventType = "student_created"
	EventStudentUpdated EventType = "student_updated"
	EventStudentDeleted EventType = "student_deleted"

	EventReservationCreated   EventType = "reservation_created"
	EventReservationCompleted EventType = "reservation_completed"
	EventReservationCancelled EventType = "reservation_cancelled"

	EventQueueUpdated            EventType = "queue_updated"
	EventStudentAddedToHighQueue EventType = "student_added_to_high_queue"
	EventStudentAddedToLowQueue  EventType = "student_added_to_low_queue"

	EventServerError EventType = "server_error"
)

// Message is the single envelope used for requests, responses and pushes
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage builds a message of any type with payload encoded as JSON
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	msg := &Message{Type: msgType, Timestamp: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// NewRequest builds a request carrying the client generated id
func NewRequest(reqType RequestType, id string, payload interface{}) (*Message, error) {
	msg, err := NewMessage(string(reqType), payload)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewEvent builds an unsolicited push
func NewEvent(event EventType, payload interface{}) (*Message, error) {
	return NewMessage(string(event), payload)
}

// NewResponse builds a successful reply to the request with the given id
func NewResponse(id string, payload interface{}) (*Message, error) {
	msg, err := NewMessage(TypeResponse, payload)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewErrorResponse builds a failed reply to the request with the given id
func NewErrorResponse(id string, err error) *Message {
	return &Message{
		Type:      TypeResponse,
		ID:        id,
		Error:     ErrorFrom(err),
		Timestamp: time.Now().UTC(),
	}
}

// IsResponse reports whether the message answers a request
func (m *Message) IsResponse() bool {
	return m.Type == TypeResponse
}

// Decode unmarshals the payload into v
func (m *Message) Decode(v interface{}) error {
	if len(m.Payload) == 0 {
		return &Error{Code: CodeBadRequest, Message: fmt.Sprintf("%s: missing payload", m.Type)}
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return &Error{Code: CodeBadRequest, Message: fmt.Sprintf("%s: malformed payload: %v", m.Type, err)}
	}
	return nil
}
