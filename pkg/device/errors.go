// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/records"
	"github.com/Thermoquad/garlink/pkg/transport"
)

var (
	// ErrNoResponse is returned when the device stayed silent through
	// every retry.
	ErrNoResponse = errors.New("no response from device")

	// ErrNaked is returned when the device rejected a frame on every
	// attempt.
	ErrNaked = errors.New("device rejected frame")

	ErrMalformedCapability   = records.ErrMalformedCapability
	ErrUnsupportedRecordType = records.ErrUnsupportedRecordType

	// ErrTransportFailure wraps transport errors and stalled frames.
	// The session cannot continue after one.
	ErrTransportFailure = errors.New("transport failure")

	// ErrTransportBusy is returned by Open when another session holds the
	// transport.
	ErrTransportBusy = errors.New("transport already in use by another session")

	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrBusy is returned when an operation starts while another one is
	// still running.
	ErrBusy = errors.New("session busy")

	// ErrListTooLong is returned by Upload for a list whose record count
	// does not fit the transfer begin packet.
	ErrListTooLong = errors.New("transfer list longer than 65535 records")
)

// OperationError adds the failing operation to an error
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// TransferError is returned by Upload when a record could not be sent.
// Sent counts the records of the list the device acknowledged.
type TransferError struct {
	Kind  records.Command
	Index int
	Sent  int
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload %s: record %d: %v (%d sent, transfer aborted)", e.Kind, e.Index+1, e.Err, e.Sent)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// classify maps link and transport errors onto the session taxonomy. The
// original error stays in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case link.IsFatal(err):
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	case errors.Is(err, link.ErrNak):
		return fmt.Errorf("%w: %w", ErrNaked, err)
	case errors.Is(err, link.ErrFrameTooLarge), errors.As(err, new(*link.ChecksumError)):
		return fmt.Errorf("%w: %w", ErrTransportFailure, err)
	case errors.Is(err, link.ErrNoResponse), errors.Is(err, transport.ErrTimeout):
		return fmt.Errorf("%w: %w", ErrNoResponse, err)
	default:
		return err
	}
}

// corruptFrame reports whether err is a damaged frame that can be naked
// and received again, and the packet id to nak.
func corruptFrame(err error) (byte, bool) {
	var ce *link.ChecksumError
	if errors.As(err, &ce) {
		return ce.ID, true
	}
	var oe *link.OversizeError
	if errors.As(err, &oe) {
		return oe.ID, true
	}
	return 0, false
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Err: err}
}
