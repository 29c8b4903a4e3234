// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "fmt"

// Frame is one link-layer unit: a packet identifier and its payload.
type Frame struct {
	ID      byte
	Payload []byte

	// LengthMismatch is set when the length byte disagreed with the
	// payload actually received. The frame is still delivered.
	LengthMismatch bool
}

// Checksum returns the byte that makes id, length and payload sum to zero.
func Checksum(id byte, payload []byte) byte {
	sum := id + byte(len(payload))
	for _, b := range payload {
		sum += b
	}
	return -sum
}

// EncodeFrame builds the wire form of a frame:
//
//	DLE id len data... chk DLE ETX
//
// The length, every data byte and the checksum are doubled when they equal
// DLE.
func EncodeFrame(id byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, 2*len(payload)+10)
	frame = append(frame, DLE, id)
	frame = stuffByte(frame, byte(len(payload)))
	for _, b := range payload {
		frame = stuffByte(frame, b)
	}
	frame = stuffByte(frame, Checksum(id, payload))
	frame = append(frame, DLE, ETX)

	return frame, nil
}

func stuffByte(dst []byte, b byte) []byte {
	if b == DLE {
		dst = append(dst, DLE)
	}
	return append(dst, b)
}

// DecodeFrame decodes exactly one complete wire frame.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder()
	for i, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			if i != len(data)-1 {
				return nil, fmt.Errorf("%w: %d trailing bytes", ErrFraming, len(data)-1-i)
			}
			return frame, nil
		}
	}
	return nil, fmt.Errorf("%w: incomplete frame", ErrFraming)
}
