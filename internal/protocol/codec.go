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
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameBytes bounds a single frame when no limit is configured
const DefaultMaxFrameBytes = 1 << 20

// frameHeaderSize is the big-endian uint32 length prefix
const frameHeaderSize = 4

// ErrFrameTooLarge is returned for frames above the configured limit.
// It is a transport error: the stream cannot be resynchronised.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Encoder writes length-prefixed JSON envelopes. Not safe for concurrent use.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode writes one frame and flushes it
func (e *Encoder) Encode(msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := e.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := e.w.Write(body); err != nil {
		return err
	}
	return e.w.Flush()
}

// Decoder reads length-prefixed JSON envelopes. Not safe for concurrent use.
type Decoder struct {
	r        *bufio.Reader
	maxFrame int
}

// NewDecoder returns a decoder reading from r. A non-positive maxFrame uses DefaultMaxFrameBytes.
func NewDecoder(r io.Reader, maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &Decoder{r: bufio.NewReader(r), maxFrame: maxFrame}
}

// Decode blocks until one full frame has been read.
// io.EOF is returned unchanged when the peer closed between frames.
func (d *Decoder) Decode() (*Message, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if int64(size) > int64(d.maxFrame) {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, size, d.maxFrame)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("malformed frame: missing type")
	}
	return &msg, nil
}
