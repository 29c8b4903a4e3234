// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by ReadByte when no byte arrived in time.
	ErrTimeout = errors.New("transport: read timeout")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport: closed")

	// ErrConnectionClosed is returned when the websocket peer went away.
	ErrConnectionClosed = errors.New("transport: websocket connection closed")
)

// Error is a failure of the underlying descriptor. It is fatal for the
// session using the transport.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s on %s: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err came from the descriptor rather than from a
// read timeout.
func IsFatal(err error) bool {
	var te *Error
	return errors.As(err, &te) || errors.Is(err, ErrClosed)
}
