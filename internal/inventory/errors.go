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
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a laptop, student, reservation or queue entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoLaptopAvailable is returned when a claim finds no AVAILABLE laptop of the requested class,
	// or loses the race for the last one.
	ErrNoLaptopAvailable = errors.New("no laptop available")

	// ErrReservationNotActive is returned when completing or cancelling a reservation that is already closed.
	ErrReservationNotActive = errors.New("reservation is not active")

	// ErrLaptopOnLoan is returned when an operation requires an AVAILABLE laptop.
	ErrLaptopOnLoan = errors.New("laptop is on loan")

	// ErrAlreadyQueued is returned when duplicate queue entries are rejected.
	ErrAlreadyQueued = errors.New("student is already queued")

	// ErrConflict is returned on unique key violations.
	ErrConflict = errors.New("already exists")
)

// ValidationError describes a rejected field value
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
