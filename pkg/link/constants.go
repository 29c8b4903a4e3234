// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"
	"time"
)

// Framing bytes
const (
	DLE = 0x10
	ETX = 0x03
)

// MaxPayloadSize is the largest payload a frame carries.
const MaxPayloadSize = 256

// Packet identifiers
const (
	PidAck             = 6
	PidCommand         = 10
	PidTransferEnd     = 12
	PidUTCData         = 14
	PidNak             = 21
	PidTransferBegin   = 27
	PidRouteHeader     = 29
	PidRouteWaypoint   = 30
	PidTrackData       = 34
	PidWaypointData    = 35
	PidRouteLink       = 98
	PidTrackHeader     = 99
	PidCapabilities    = 253
	PidProductRequest  = 254
	PidProductResponse = 255
)

// Timing and retry defaults
const (
	// ByteTimeout bounds the wait for each byte once a frame has started.
	ByteTimeout = 10 * time.Second

	// DefaultAckTimeout is the wait for an ack after each send.
	DefaultAckTimeout = 2 * time.Second

	DefaultSendRetries = 5
	DefaultAckRetries  = 3
)

// PacketName returns the human-readable name for a packet identifier
func PacketName(id byte) string {
	switch id {
	case PidAck:
		return "ACK"
	case PidCommand:
		return "COMMAND"
	case PidTransferEnd:
		return "XFER_END"
	case PidUTCData:
		return "UTC_DATA"
	case PidNak:
		return "NAK"
	case PidTransferBegin:
		return "XFER_BEGIN"
	case PidRouteHeader:
		return "RTE_HDR"
	case PidRouteWaypoint:
		return "RTE_WPT_DATA"
	case PidTrackData:
		return "TRK_DATA"
	case PidWaypointData:
		return "WPT_DATA"
	case PidRouteLink:
		return "RTE_LINK"
	case PidTrackHeader:
		return "TRK_HDR"
	case PidCapabilities:
		return "PROTOCOL_ARRAY"
	case PidProductRequest:
		return "PRODUCT_RQST"
	case PidProductResponse:
		return "PRODUCT_DATA"
	default:
		return fmt.Sprintf("UNKNOWN_%d", id)
	}
}
