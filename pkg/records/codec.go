// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"fmt"

	"github.com/Thermoquad/garlink/pkg/link"
)

// MaxRecordSize is the largest encoded record. The frame length byte
// cannot describe anything longer.
const MaxRecordSize = 255

// Codec translates between packet payloads and records using the layouts
// of one capability set.
type Codec struct {
	caps Capabilities
}

// NewCodec creates a codec for a capability set
func NewCodec(caps Capabilities) *Codec {
	return &Codec{caps: caps}
}

// Capabilities returns the set the codec was created with
func (c *Codec) Capabilities() Capabilities {
	return c.caps
}

// Layout returns the record layout of packet id. Packets whose layout does
// not depend on the capability set give DNone.
func (c *Codec) Layout(id byte) DataType {
	if id == link.PidUTCData {
		return D600
	}
	if dt, ok := c.caps.ForPacket(id); ok {
		return dt
	}
	return DNone
}

// Decode decodes the payload of packet id. An unknown layout returns the
// payload as Raw together with an *UnknownVariantError. A packet the codec
// does not carry returns Raw and ErrUnsupportedRecordType.
func (c *Codec) Decode(id byte, payload []byte) (Record, error) {
	return DecodeAs(id, c.Layout(id), payload)
}

// DecodeAs decodes payload as layout dt. The layout is ignored for
// control packets.
func DecodeAs(id byte, dt DataType, payload []byte) (Record, error) {
	switch id {
	case link.PidTransferBegin:
		return TransferBegin{Count: newReader(payload).u16()}, nil
	case link.PidTransferEnd:
		return TransferEnd{Command: Command(newReader(payload).u16())}, nil
	case link.PidCommand:
		return CommandRecord{Command: Command(newReader(payload).u16())}, nil
	case link.PidUTCData:
		return decodeUTCTime(payload), nil
	case link.PidProductResponse:
		return DecodeProduct(payload), nil
	case link.PidCapabilities:
		protocols, err := ParseProtocols(payload)
		if err != nil {
			return raw(id, dt, payload), err
		}
		return ProtocolArray{Protocols: protocols}, nil
	}

	slot, ok := SlotForPacket(id)
	if !ok {
		return raw(id, dt, payload), fmt.Errorf("%w: packet %s", ErrUnsupportedRecordType, link.PacketName(id))
	}

	var rec Record
	switch slot {
	case SlotWaypoint, SlotRouteWaypoint:
		rec, ok = decodeWaypoint(dt, payload)
	case SlotRouteHeader:
		rec, ok = decodeRouteHeader(dt, payload)
	case SlotRouteLink:
		rec, ok = decodeRouteLink(dt, payload)
	case SlotTrackPoint:
		rec, ok = decodeTrackPoint(dt, payload)
	case SlotTrackHeader:
		rec, ok = decodeTrackHeader(dt, payload)
	}
	if !ok {
		return raw(id, dt, payload), &UnknownVariantError{ID: id, Type: dt}
	}
	return rec, nil
}

func raw(id byte, dt DataType, payload []byte) Raw {
	return Raw{ID: id, Type: dt, Data: append([]byte(nil), payload...)}
}

// Encode encodes rec as the payload of packet id. Data records are first
// converted to the layout the capability set selects for id. Raw records
// are sent as they are, and only when their layout is the device's.
func (c *Codec) Encode(id byte, rec Record) ([]byte, error) {
	if r, ok := rec.(Raw); ok {
		if r.ID != id {
			return nil, fmt.Errorf("%w: raw %s payload sent as %s", ErrUnsupportedRecordType,
				link.PacketName(r.ID), link.PacketName(id))
		}
		if dt := c.Layout(id); r.Type != DNone && r.Type != dt {
			return nil, fmt.Errorf("%w: raw %s payload for a device using %s", ErrUnsupportedRecordType, r.Type, dt)
		}
		return checkSize(r.Data)
	}

	if dt := c.Layout(id); dt != DNone {
		converted, err := Convert(rec, dt)
		if err != nil {
			return nil, err
		}
		rec = converted
	}
	return checkSize(Marshal(rec))
}

// Marshal encodes rec in its own layout
func Marshal(rec Record) []byte {
	var w writer
	rec.put(&w)
	return w.buf
}

func checkSize(payload []byte) ([]byte, error) {
	if len(payload) > MaxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(payload))
	}
	return payload, nil
}

// Convert returns rec in layout dt. Conversion only happens within a
// category, e.g. D103 to D108 waypoints. Symbol and display numbering is
// copied, not translated between layouts.
func Convert(rec Record, dt DataType) (Record, error) {
	if rec.DataType() == dt {
		return rec, nil
	}

	var (
		out Record
		err error
		ok  bool
	)
	switch {
	case dt >= D100 && dt <= D109:
		var wp Waypoint
		if wp, ok = rec.(Waypoint); ok {
			out, err = NewWaypoint(dt, wp.Fields())
		}
	case dt >= D200 && dt <= D202:
		var h RouteHeader
		if h, ok = rec.(RouteHeader); ok {
			out, err = NewRouteHeader(dt, h.Fields())
		}
	case dt == D210:
		var l RouteLink
		if l, ok = rec.(RouteLink); ok {
			out, err = NewRouteLink(dt, l.Fields())
		}
	case dt == D300 || dt == D301:
		var p TrackPoint
		if p, ok = rec.(TrackPoint); ok {
			out, err = NewTrackPoint(dt, p.Fields())
		}
	case dt == D310:
		var h TrackHeader
		if h, ok = rec.(TrackHeader); ok {
			out, err = NewTrackHeader(dt, h.Fields())
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot convert %s to %s", ErrUnsupportedRecordType, rec.DataType(), dt)
	}
	return out, err
}
