// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import "fmt"

// TrackPointFields is the layout independent view of a track point.
type TrackPointFields struct {
	Position Position
	Time     Timestamp
	Altitude float32
	Depth    float32
	NewTrack bool
}

// TrackPoint is one of the track point layouts D300 and D301.
type TrackPoint interface {
	Record
	Fields() TrackPointFields
}

// TrackPointD300 is a position and time.
type TrackPointD300 struct {
	Position Position
	Time     Timestamp
	NewTrack bool
}

// TrackPointD301 adds altitude and depth.
type TrackPointD301 struct {
	Position Position
	Time     Timestamp
	Altitude float32
	Depth    float32
	NewTrack bool
}

func (TrackPointD300) DataType() DataType { return D300 }
func (TrackPointD301) DataType() DataType { return D301 }

func (p TrackPointD300) put(w *writer) {
	w.position(p.Position)
	w.u32(uint32(p.Time))
	w.u8(boolByte(p.NewTrack))
}

func (p TrackPointD301) put(w *writer) {
	w.position(p.Position)
	w.u32(uint32(p.Time))
	w.f32(p.Altitude)
	w.f32(p.Depth)
	w.u8(boolByte(p.NewTrack))
}

func (p TrackPointD300) Fields() TrackPointFields {
	return TrackPointFields{
		Position: p.Position,
		Time:     p.Time,
		Altitude: Unknown,
		Depth:    Unknown,
		NewTrack: p.NewTrack,
	}
}

func (p TrackPointD301) Fields() TrackPointFields {
	return TrackPointFields{
		Position: p.Position,
		Time:     p.Time,
		Altitude: p.Altitude,
		Depth:    p.Depth,
		NewTrack: p.NewTrack,
	}
}

func decodeTrackPoint(dt DataType, payload []byte) (TrackPoint, bool) {
	r := newReader(payload)
	switch dt {
	case D300:
		var p TrackPointD300
		p.Position = r.position()
		p.Time = Timestamp(r.u32())
		p.NewTrack = r.u8() != 0
		return p, true
	case D301:
		var p TrackPointD301
		p.Position = r.position()
		p.Time = Timestamp(r.u32())
		p.Altitude = r.f32()
		p.Depth = r.f32()
		p.NewTrack = r.u8() != 0
		return p, true
	}
	return nil, false
}

// NewTrackPoint builds the layout dt
func NewTrackPoint(dt DataType, f TrackPointFields) (TrackPoint, error) {
	switch dt {
	case D300:
		return TrackPointD300{Position: f.Position, Time: f.Time, NewTrack: f.NewTrack}, nil
	case D301:
		return TrackPointD301{Position: f.Position, Time: f.Time, Altitude: f.Altitude, Depth: f.Depth, NewTrack: f.NewTrack}, nil
	}
	return nil, fmt.Errorf("%w: %s is not a track point layout", ErrUnsupportedRecordType, dt)
}

// TrackHeaderFields is the layout independent view of a track header.
type TrackHeaderFields struct {
	Display bool
	Color   uint8
	Ident   string
}

// TrackHeader is a track header layout. D310 is the only one.
type TrackHeader interface {
	Record
	Fields() TrackHeaderFields
}

// TrackHeaderD310 starts a named track on units with A301/A302.
type TrackHeaderD310 struct {
	Display bool
	Color   uint8
	Ident   string
}

func (TrackHeaderD310) DataType() DataType { return D310 }

func (h TrackHeaderD310) put(w *writer) {
	w.u8(boolByte(h.Display))
	w.u8(h.Color)
	w.cstring(h.Ident)
}

func (h TrackHeaderD310) Fields() TrackHeaderFields {
	return TrackHeaderFields(h)
}

func decodeTrackHeader(dt DataType, payload []byte) (TrackHeader, bool) {
	if dt != D310 {
		return nil, false
	}
	r := newReader(payload)
	var h TrackHeaderD310
	h.Display = r.u8() != 0
	h.Color = r.u8()
	h.Ident = r.cstring()
	return h, true
}

// NewTrackHeader builds the layout dt
func NewTrackHeader(dt DataType, f TrackHeaderFields) (TrackHeader, error) {
	if dt != D310 {
		return nil, fmt.Errorf("%w: %s is not a track header layout", ErrUnsupportedRecordType, dt)
	}
	return TrackHeaderD310(f), nil
}
