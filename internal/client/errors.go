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
	"errors"
	"fmt"

	"loaner/internal/protocol"
)

var (
	// ErrTimeout is returned when no response arrived in time
	ErrTimeout = errors.New("request timed out")
	// ErrNotConnected is returned when the connection is down and the single reconnect attempt failed
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("client is closed")
)

// RemoteError is an error response from the server. It unwraps to the
// matching inventory sentinel, so errors.Is(err, inventory.ErrNotFound) works
// on the client side too.
type RemoteError struct {
	Request protocol.RequestType
	Err     *protocol.Error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Request, e.Err.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Code returns the wire error code
func (e *RemoteError) Code() protocol.ErrorCode {
	return e.Err.Code
}
