// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooLarge is returned when a payload exceeds MaxPayloadSize,
	// on encode or while receiving.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFraming is returned when a DLE is followed by anything but DLE
	// or ETX.
	ErrFraming = errors.New("framing error")

	// ErrFrameStalled is returned when the peer stops sending in the
	// middle of a frame. It is fatal, not a timeout.
	ErrFrameStalled = errors.New("frame stalled mid-transmission")

	// ErrNak is returned when the peer rejected a frame.
	ErrNak = errors.New("frame rejected by peer")

	// ErrNoResponse is returned when neither ack nor nak arrived.
	ErrNoResponse = errors.New("no response from peer")

	// ErrSendFailed matches every *SendError.
	ErrSendFailed = errors.New("send failed")
)

// ChecksumError reports a frame whose checksum did not sum to zero.
type ChecksumError struct {
	ID  byte
	Sum byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch on %s frame: sum 0x%02X", PacketName(e.ID), e.Sum)
}

// OversizeError reports a received frame that outgrew MaxPayloadSize.
// ID is the packet id the frame started with.
type OversizeError struct {
	ID byte
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("%s frame has more than %d payload bytes", PacketName(e.ID), MaxPayloadSize)
}

func (e *OversizeError) Unwrap() error {
	return ErrFrameTooLarge
}

// SendError is returned by SendAndWait once every attempt failed. Err is
// the cause of the last attempt.
type SendError struct {
	ID       byte
	Attempts int
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s failed after %d attempts: %v", PacketName(e.ID), e.Attempts, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}
