// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Capabilities selects the record layout for each data packet.
type Capabilities struct {
	Waypoint      DataType
	RouteHeader   DataType
	RouteWaypoint DataType
	RouteLink     DataType
	TrackPoint    DataType
	TrackHeader   DataType
}

// DefaultCapabilities returns the oldest known layouts, used by units
// that never send a protocol array.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Waypoint:      D100,
		RouteHeader:   D200,
		RouteWaypoint: D100,
		RouteLink:     D210,
		TrackPoint:    D300,
		TrackHeader:   D310,
	}
}

// Get returns the layout selected for a slot
func (c Capabilities) Get(s Slot) DataType {
	switch s {
	case SlotWaypoint:
		return c.Waypoint
	case SlotRouteHeader:
		return c.RouteHeader
	case SlotRouteWaypoint:
		return c.RouteWaypoint
	case SlotRouteLink:
		return c.RouteLink
	case SlotTrackPoint:
		return c.TrackPoint
	case SlotTrackHeader:
		return c.TrackHeader
	default:
		return DNone
	}
}

// Set selects the layout for a slot
func (c *Capabilities) Set(s Slot, dt DataType) {
	switch s {
	case SlotWaypoint:
		c.Waypoint = dt
	case SlotRouteHeader:
		c.RouteHeader = dt
	case SlotRouteWaypoint:
		c.RouteWaypoint = dt
	case SlotRouteLink:
		c.RouteLink = dt
	case SlotTrackPoint:
		c.TrackPoint = dt
	case SlotTrackHeader:
		c.TrackHeader = dt
	}
}

// ForPacket returns the layout used by a data packet.
func (c Capabilities) ForPacket(id byte) (DataType, bool) {
	slot, ok := SlotForPacket(id)
	if !ok {
		return DNone, false
	}
	return c.Get(slot), true
}

func (c Capabilities) String() string {
	parts := make([]string, 0, len(Slots))
	for _, s := range Slots {
		parts = append(parts, fmt.Sprintf("%s=%s", s, c.Get(s)))
	}
	return strings.Join(parts, " ")
}

// Protocol is one tag/number entry of a protocol array, e.g. A100 or D108.
type Protocol struct {
	Tag    byte
	Number uint16
}

// Protocol tags
const (
	TagPhysical    = 'P'
	TagLink        = 'L'
	TagApplication = 'A'
	TagData        = 'D'
)

func (p Protocol) String() string {
	return fmt.Sprintf("%c%03d", p.Tag, p.Number)
}

// ProtocolArray is the capability packet a unit sends after identifying.
type ProtocolArray struct {
	Protocols []Protocol
}

func (ProtocolArray) DataType() DataType { return DNone }

func (a ProtocolArray) put(w *writer) {
	for _, p := range a.Protocols {
		w.u8(p.Tag)
		w.u16(p.Number)
	}
}

// ParseProtocols splits a capability payload into 3-byte entries.
func ParseProtocols(payload []byte) ([]Protocol, error) {
	if len(payload)%3 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 3", ErrMalformedCapability, len(payload))
	}
	protocols := make([]Protocol, 0, len(payload)/3)
	for i := 0; i < len(payload); i += 3 {
		protocols = append(protocols, Protocol{
			Tag:    payload[i],
			Number: binary.LittleEndian.Uint16(payload[i+1:]),
		})
	}
	return protocols, nil
}

// applicationSlots maps an application protocol to the slots its data
// protocols fill, in order.
var applicationSlots = map[uint16][]Slot{
	100: {SlotWaypoint},
	200: {SlotRouteHeader, SlotRouteWaypoint},
	201: {SlotRouteHeader, SlotRouteWaypoint, SlotRouteLink},
	300: {SlotTrackPoint},
	301: {SlotTrackHeader, SlotTrackPoint},
	302: {SlotTrackHeader, SlotTrackPoint},
}

// Assignment records what one data protocol entry did.
type Assignment struct {
	Application Protocol
	Data        Protocol
	Slot        Slot

	// Assigned is false when no slot takes the entry: no application
	// precedes it, the application is not one we transfer, or it has more
	// data protocols than we know about.
	Assigned bool

	// Repeated is set when the slot was already filled earlier in the same
	// array. The later entry wins, but such devices deserve a manual look.
	Repeated bool
}

// Apply assigns slots from a protocol array. Each 'A' entry starts a new
// application and each following 'D' entry fills that application's next
// slot. 'P' and 'L' entries end the application context.
func (c Capabilities) Apply(protocols []Protocol) (Capabilities, []Assignment) {
	var assignments []Assignment
	var app Protocol
	inApp := false
	index := 0
	filled := make(map[Slot]bool)

	for _, p := range protocols {
		switch p.Tag {
		case TagApplication:
			app = p
			inApp = true
			index = 0
		case TagData:
			a := Assignment{Application: app, Data: p}
			if inApp {
				slots := applicationSlots[app.Number]
				if index < len(slots) {
					a.Slot = slots[index]
					a.Assigned = true
					a.Repeated = filled[a.Slot]
					filled[a.Slot] = true
					c.Set(a.Slot, DataType(p.Number))
				}
				index++
			}
			assignments = append(assignments, a)
		default:
			inApp = false
		}
	}

	return c, assignments
}
