// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/garlink/pkg/link"
)

var (
	// ErrUnknownVariant matches every *UnknownVariantError.
	ErrUnknownVariant = errors.New("unknown record variant")

	// ErrUnsupportedRecordType is returned when a record cannot be carried
	// by a packet, or converted to the layout the device expects.
	ErrUnsupportedRecordType = errors.New("unsupported record type")

	// ErrMalformedCapability is returned for a protocol array whose length
	// is not a whole number of entries.
	ErrMalformedCapability = errors.New("malformed capability array")

	// ErrRecordTooLarge is returned when an encoded record does not fit
	// in one frame.
	ErrRecordTooLarge = errors.New("record too large for one frame")
)

// UnknownVariantError reports a payload whose layout the codec does not
// know. The record is still returned as a Raw value.
type UnknownVariantError struct {
	ID   byte
	Type DataType
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown %s layout %s", link.PacketName(e.ID), e.Type)
}

func (e *UnknownVariantError) Is(target error) bool {
	return target == ErrUnknownVariant
}
