// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "fmt"

// Decoder states
const (
	stateIdle = iota // waiting for the leading DLE
	stateBody        // collecting id, length, data and checksum
)

// Decoder implements the frame decoder state machine. Bytes are fed one
// at a time; a frame is returned once its DLE ETX trailer arrives.
type Decoder struct {
	state   int
	dleSeen bool
	buffer  []byte
	index   int
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state: stateIdle,
		// id + length + payload + checksum
		buffer: make([]byte, MaxPayloadSize+3),
	}
}

// Reset drops any partial frame and waits for the next DLE
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.dleSeen = false
	d.index = 0
}

// InFrame reports whether a frame has started but not yet ended.
func (d *Decoder) InFrame() bool {
	return d.state == stateBody
}

// DecodeByte processes a single byte through the decoder state machine.
// It returns a completed frame, or nil if the frame is incomplete.
// Checksum failures are returned as *ChecksumError.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if d.state == stateIdle {
		if b == DLE {
			d.state = stateBody
			d.index = 0
			d.dleSeen = false
		}
		return nil, nil
	}

	if d.dleSeen {
		d.dleSeen = false
		switch b {
		case ETX:
			return d.finish()
		case DLE:
			// Doubled DLE is one data byte
		default:
			// A lone DLE starts a new frame; whatever came before is lost
			lost := d.index
			d.index = 0
			d.buffer[d.index] = b
			d.index++
			return nil, fmt.Errorf("%w: unescaped DLE after %d bytes", ErrFraming, lost)
		}
	} else if b == DLE {
		d.dleSeen = true
		return nil, nil
	} else if b == ETX && d.index == 0 {
		// We synced on the trailer of a frame we missed
		d.Reset()
		return nil, nil
	}

	if d.index >= len(d.buffer) {
		id := d.buffer[0]
		d.Reset()
		return nil, &OversizeError{ID: id}
	}
	d.buffer[d.index] = b
	d.index++
	return nil, nil
}

func (d *Decoder) finish() (*Frame, error) {
	n := d.index
	d.Reset()

	if n < 3 {
		return nil, fmt.Errorf("%w: short frame of %d bytes", ErrFraming, n)
	}

	var sum byte
	for _, b := range d.buffer[:n] {
		sum += b
	}
	id := d.buffer[0]
	if sum != 0 {
		return nil, &ChecksumError{ID: id, Sum: sum}
	}

	// The length byte is only checked, never trusted for framing
	length := d.buffer[1]
	payload := make([]byte, n-3)
	copy(payload, d.buffer[2:n-1])

	return &Frame{
		ID:             id,
		Payload:        payload,
		LengthMismatch: byte(len(payload)) != length,
	}, nil
}
