// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"fmt"

	"github.com/Thermoquad/garlink/pkg/link"
)

// DataType identifies a record layout (D100, D201, ...).
type DataType uint16

// Known record layouts
const (
	DNone DataType = 0

	D100 DataType = 100
	D101 DataType = 101
	D102 DataType = 102
	D103 DataType = 103
	D104 DataType = 104
	D105 DataType = 105
	D106 DataType = 106
	D107 DataType = 107
	D108 DataType = 108
	D109 DataType = 109

	D200 DataType = 200
	D201 DataType = 201
	D202 DataType = 202
	D210 DataType = 210

	D300 DataType = 300
	D301 DataType = 301
	D310 DataType = 310

	D600 DataType = 600
)

func (d DataType) String() string {
	if d == DNone {
		return "none"
	}
	return fmt.Sprintf("D%03d", uint16(d))
}

// Slot names one entry of a capability set.
type Slot int

// Capability slots
const (
	SlotWaypoint Slot = iota
	SlotRouteHeader
	SlotRouteWaypoint
	SlotRouteLink
	SlotTrackPoint
	SlotTrackHeader
)

func (s Slot) String() string {
	switch s {
	case SlotWaypoint:
		return "waypoint"
	case SlotRouteHeader:
		return "route header"
	case SlotRouteWaypoint:
		return "route waypoint"
	case SlotRouteLink:
		return "route link"
	case SlotTrackPoint:
		return "track point"
	case SlotTrackHeader:
		return "track header"
	default:
		return fmt.Sprintf("slot %d", int(s))
	}
}

// Slots lists every capability slot in display order.
var Slots = []Slot{SlotWaypoint, SlotRouteHeader, SlotRouteWaypoint, SlotRouteLink, SlotTrackPoint, SlotTrackHeader}

// SlotForPacket returns the capability slot that selects the layout of a
// data packet. Control packets have no slot.
func SlotForPacket(id byte) (Slot, bool) {
	switch id {
	case link.PidWaypointData:
		return SlotWaypoint, true
	case link.PidRouteHeader:
		return SlotRouteHeader, true
	case link.PidRouteWaypoint:
		return SlotRouteWaypoint, true
	case link.PidRouteLink:
		return SlotRouteLink, true
	case link.PidTrackData:
		return SlotTrackPoint, true
	case link.PidTrackHeader:
		return SlotTrackHeader, true
	default:
		return 0, false
	}
}

// Command is a device command code, also used as the transfer-end tag.
type Command uint16

// Device commands
const (
	CmdAbortTransfer     Command = 0
	CmdTransferRoutes    Command = 4
	CmdTransferTime      Command = 5
	CmdTransferTracks    Command = 6
	CmdTransferWaypoints Command = 7
)

func (c Command) String() string {
	switch c {
	case CmdAbortTransfer:
		return "abort"
	case CmdTransferRoutes:
		return "routes"
	case CmdTransferTime:
		return "time"
	case CmdTransferTracks:
		return "tracks"
	case CmdTransferWaypoints:
		return "waypoints"
	default:
		return fmt.Sprintf("command %d", uint16(c))
	}
}
