// Copyright 2025 LazySync Authors
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

package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"lazysync/internal/common"
)

// MaxFrameSize bounds a single frame's JSON body. A directory listing that
// large indicates a corrupt length prefix, not a real snapshot.
const MaxFrameSize = 16 << 20

// Frames are a 4-byte big-endian body length followed by the JSON body.
// Length prefixing delimits messages unambiguously on a pipelined stream;
// no byte value that can occur inside a file name is load-bearing.

// Marshal encodes a message into a single framed byte slice.
func Marshal(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal frame body: %w", err)
	}
	if len(body) > MaxFrameSize {
		return nil, fmt.Errorf("frame body %d bytes exceeds limit", len(body))
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	return buf, nil
}

// Unmarshal decodes a single framed message into v. The slice must contain
// exactly one complete frame.
func Unmarshal(frame []byte, v any) error {
	if len(frame) < 4 {
		return fmt.Errorf("%w: short frame header", common.ErrMalformed)
	}
	size := binary.BigEndian.Uint32(frame)
	if size > MaxFrameSize {
		return fmt.Errorf("%w: frame size %d exceeds limit", common.ErrMalformed, size)
	}
	if uint32(len(frame)-4) != size {
		return fmt.Errorf("%w: frame body truncated", common.ErrMalformed)
	}
	if err := json.Unmarshal(frame[4:], v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformed, err)
	}
	return nil
}

// Encoder writes framed messages to a stream. Not safe for concurrent use;
// callers serialize writes.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode frames v and writes it in a single Write call so concurrent-looking
// writers upstream can never interleave partial frames.
func (e *Encoder) Encode(v any) error {
	frame, err := Marshal(v)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Decoder reads framed messages from a stream.
type Decoder struct {
	r io.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads the next frame into v. Returns io.EOF on a clean close at a
// frame boundary; anything else that cuts a frame short or fails to parse
// wraps common.ErrMalformed.
func (d *Decoder) Decode(v any) error {
	var header [4]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("%w: reading frame header: %v", common.ErrMalformed, err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return fmt.Errorf("%w: frame size %d exceeds limit", common.ErrMalformed, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(d.r, body); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: frame body truncated", common.ErrMalformed)
		}
		return fmt.Errorf("%w: reading frame body: %v", common.ErrMalformed, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformed, err)
	}
	return nil
}
