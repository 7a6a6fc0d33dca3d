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
	"errors"
	"fmt"
	"strings"

	"loaner/internal/inventory"
)

// ErrorCode classifies a failed request
type ErrorCode string

const (
	CodeValidation    ErrorCode = "validation"
	CodeNotFound      ErrorCode = "not_found"
	CodeConflict      ErrorCode = "conflict"
	CodeUnavailable   ErrorCode = "unavailable"
	CodeNotActive     ErrorCode = "not_active"
	CodeOnLoan        ErrorCode = "on_loan"
	CodeAlreadyQueued ErrorCode = "already_queued"
	CodeBadRequest    ErrorCode = "bad_request"
	CodeInternal      ErrorCode = "internal"
)

// Error is the structured error carried by a failed response
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap maps the code back onto the matching inventory error so callers
// can use errors.Is and errors.As on the client side
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeValidation:
		return &inventory.ValidationError{Field: e.Field, Reason: strings.TrimPrefix(e.Message, "invalid "+e.Field+": ")}
	case CodeNotFound:
		return inventory.ErrNotFound
	case CodeConflict:
		return inventory.ErrConflict
	case CodeUnavailable:
		return inventory.ErrNoLaptopAvailable
	case CodeNotActive:
		return inventory.ErrReservationNotActive
	case CodeOnLoan:
		return inventory.ErrLaptopOnLoan
	case CodeAlreadyQueued:
		return inventory.ErrAlreadyQueued
	}
	return nil
}

// ErrorFrom classifies err into a wire error
func ErrorFrom(err error) *Error {
	if err == nil {
		return nil
	}

	var wire *Error
	if errors.As(err, &wire) {
		return wire
	}

	var ve *inventory.ValidationError
	switch {
	case errors.As(err, &ve):
		return &Error{Code: CodeValidation, Message: err.Error(), Field: ve.Field}
	case errors.Is(err, inventory.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, inventory.ErrNoLaptopAvailable):
		return &Error{Code: CodeUnavailable, Message: err.Error()}
	case errors.Is(err, inventory.ErrReservationNotActive):
		return &Error{Code: CodeNotActive, Message: err.Error()}
	case errors.Is(err, inventory.ErrLaptopOnLoan):
		return &Error{Code: CodeOnLoan, Message: err.Error()}
	case errors.Is(err, inventory.ErrAlreadyQueued):
		return &Error{Code: CodeAlreadyQueued, Message: err.Error()}
	case errors.Is(err, inventory.ErrConflict):
		return &Error{Code: CodeConflict, Message: err.Error()}
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// IsDomainError reports whether err is an expected outcome of a request
// rather than an infrastructure failure
func IsDomainError(err error) bool {
	return err != nil && ErrorFrom(err).Code != CodeInternal
}
