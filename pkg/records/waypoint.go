// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import "fmt"

// Fixed field widths of the legacy layouts
const (
	IdentLen         = 6
	CommentLen       = 40
	RouteCommentLen  = 20
	SubclassLen      = 18
	ShortSubclassLen = 13
)

// Waypoint attribute bytes required by the newer layouts
const (
	attrD108 = 0x60
	attrD109 = 0x70
	dtypD109 = 0x01
)

// WaypointFields is the layout independent view of a waypoint. Fields a
// layout lacks hold their absent value: zero, "" or Unknown.
type WaypointFields struct {
	Ident     string
	Position  Position
	Comment   string
	Symbol    uint16
	Display   uint8
	Color     uint8
	Class     uint8
	Subclass  []byte
	Altitude  float32
	Depth     float32
	Distance  float32
	State     string
	Country   string
	Facility  string
	City      string
	Address   string
	CrossRoad string
	LinkIdent string
	ETE       uint32
}

// NewWaypointFields returns fields with every float marked unknown.
func NewWaypointFields(ident string, pos Position) WaypointFields {
	return WaypointFields{
		Ident:    ident,
		Position: pos,
		Altitude: Unknown,
		Depth:    Unknown,
		Distance: Unknown,
	}
}

// Waypoint is one of the waypoint layouts D100 to D109.
type Waypoint interface {
	Record
	Fields() WaypointFields
}

// WaypointD100 is used by the oldest units (GPS 38/40/45, GPS II).
type WaypointD100 struct {
	Ident    string
	Position Position
	Comment  string
}

// WaypointD101 adds distance and a one byte symbol.
type WaypointD101 struct {
	Ident    string
	Position Position
	Comment  string
	Distance float32
	Symbol   uint8
}

// WaypointD102 adds distance and a two byte symbol.
type WaypointD102 struct {
	Ident    string
	Position Position
	Comment  string
	Distance float32
	Symbol   uint16
}

// WaypointD103 adds a one byte symbol and display option (GPS 12/48).
type WaypointD103 struct {
	Ident    string
	Position Position
	Comment  string
	Symbol   uint8
	Display  uint8
}

// WaypointD104 adds distance, symbol and display option (GPS III).
type WaypointD104 struct {
	Ident    string
	Position Position
	Comment  string
	Distance float32
	Symbol   uint16
	Display  uint8
}

// WaypointD105 has a free-form identifier and no comment.
type WaypointD105 struct {
	Position Position
	Symbol   uint16
	Ident    string
}

// WaypointD106 carries a class and a link identifier.
type WaypointD106 struct {
	Class     uint8
	Subclass  [ShortSubclassLen]byte
	Position  Position
	Symbol    uint16
	Ident     string
	LinkIdent string
}

// WaypointD107 adds symbol, display option, distance and color.
type WaypointD107 struct {
	Ident    string
	Position Position
	Comment  string
	Symbol   uint8
	Display  uint8
	Distance float32
	Color    uint8
}

// WaypointD108 is used by the eMap and eTrex family.
type WaypointD108 struct {
	Class      uint8
	Color      uint8
	Display    uint8
	Attributes uint8
	Symbol     uint16
	Subclass   [SubclassLen]byte
	Position   Position
	Altitude   float32
	Depth      float32
	Distance   float32
	State      string
	Country    string
	Ident      string
	Comment    string
	Facility   string
	City       string
	Address    string
	CrossRoad  string
}

// WaypointD109 extends D108 with a packed display/color byte and an
// estimated time en route.
type WaypointD109 struct {
	PacketType   uint8
	Class        uint8
	DisplayColor uint8
	Attributes   uint8
	Symbol       uint16
	Subclass     [SubclassLen]byte
	Position     Position
	Altitude     float32
	Depth        float32
	Distance     float32
	State        string
	Country      string
	ETE          uint32
	Ident        string
	Comment      string
	Facility     string
	City         string
	Address      string
	CrossRoad    string
}

func (WaypointD100) DataType() DataType { return D100 }
func (WaypointD101) DataType() DataType { return D101 }
func (WaypointD102) DataType() DataType { return D102 }
func (WaypointD103) DataType() DataType { return D103 }
func (WaypointD104) DataType() DataType { return D104 }
func (WaypointD105) DataType() DataType { return D105 }
func (WaypointD106) DataType() DataType { return D106 }
func (WaypointD107) DataType() DataType { return D107 }
func (WaypointD108) DataType() DataType { return D108 }
func (WaypointD109) DataType() DataType { return D109 }

// The first four layouts share ident, position, an unused word and comment.
func putLegacy(w *writer, ident string, pos Position, comment string) {
	w.fixed(ident, IdentLen)
	w.position(pos)
	w.u32(0)
	w.fixed(comment, CommentLen)
}

func readLegacy(r *reader) (ident string, pos Position, comment string) {
	ident = r.fixed(IdentLen)
	pos = r.position()
	r.u32()
	comment = r.fixed(CommentLen)
	return ident, pos, comment
}

func (wp WaypointD100) put(w *writer) {
	putLegacy(w, wp.Ident, wp.Position, wp.Comment)
}

func (wp WaypointD101) put(w *writer) {
	putLegacy(w, wp.Ident, wp.Position, wp.Comment)
	w.f32(wp.Distance)
	w.u8(wp.Symbol)
}

func (wp WaypointD102) put(w *writer) {
	putLegacy(w, wp.Ident, wp.Position, wp.Comment)
	w.f32(wp.Distance)
	w.u16(wp.Symbol)
}

func (wp WaypointD103) put(w *writer) {
	putLegacy(w, wp.Ident, wp.Position, wp.Comment)
	w.u8(wp.Symbol)
	w.u8(wp.Display)
}

func (wp WaypointD104) put(w *writer) {
	putLegacy(w, wp.Ident, wp.Position, wp.Comment)
	w.f32(wp.Distance)
	w.u16(wp.Symbol)
	w.u8(wp.Display)
}

func (wp WaypointD105) put(w *writer) {
	w.position(wp.Position)
	w.u16(wp.Symbol)
	w.cstring(wp.Ident)
}

func (wp WaypointD106) put(w *writer) {
	w.u8(wp.Class)
	w.raw(wp.Subclass[:])
	w.position(wp.Position)
	w.u16(wp.Symbol)
	w.cstring(wp.Ident)
	w.cstring(wp.LinkIdent)
}

func (wp WaypointD107) put(w *writer) {
	putLegacy(w, wp.Ident, wp.Position, wp.Comment)
	w.u8(wp.Symbol)
	w.u8(wp.Display)
	w.f32(wp.Distance)
	w.u8(wp.Color)
}

func (wp WaypointD108) put(w *writer) {
	w.u8(wp.Class)
	w.u8(wp.Color)
	w.u8(wp.Display)
	w.u8(wp.Attributes)
	w.u16(wp.Symbol)
	w.raw(wp.Subclass[:])
	w.position(wp.Position)
	w.f32(wp.Altitude)
	w.f32(wp.Depth)
	w.f32(wp.Distance)
	w.fixed(wp.State, 2)
	w.fixed(wp.Country, 2)
	w.cstring(wp.Ident)
	w.cstring(wp.Comment)
	w.cstring(wp.Facility)
	w.cstring(wp.City)
	w.cstring(wp.Address)
	w.cstring(wp.CrossRoad)
}

func (wp WaypointD109) put(w *writer) {
	w.u8(wp.PacketType)
	w.u8(wp.Class)
	w.u8(wp.DisplayColor)
	w.u8(wp.Attributes)
	w.u16(wp.Symbol)
	w.raw(wp.Subclass[:])
	w.position(wp.Position)
	w.f32(wp.Altitude)
	w.f32(wp.Depth)
	w.f32(wp.Distance)
	w.fixed(wp.State, 2)
	w.fixed(wp.Country, 2)
	w.u32(wp.ETE)
	w.cstring(wp.Ident)
	w.cstring(wp.Comment)
	w.cstring(wp.Facility)
	w.cstring(wp.City)
	w.cstring(wp.Address)
	w.cstring(wp.CrossRoad)
}

func decodeWaypoint(dt DataType, payload []byte) (Waypoint, bool) {
	r := newReader(payload)
	switch dt {
	case D100:
		var wp WaypointD100
		wp.Ident, wp.Position, wp.Comment = readLegacy(r)
		return wp, true
	case D101:
		var wp WaypointD101
		wp.Ident, wp.Position, wp.Comment = readLegacy(r)
		wp.Distance = r.f32()
		wp.Symbol = r.u8()
		return wp, true
	case D102:
		var wp WaypointD102
		wp.Ident, wp.Position, wp.Comment = readLegacy(r)
		wp.Distance = r.f32()
		wp.Symbol = r.u16()
		return wp, true
	case D103:
		var wp WaypointD103
		wp.Ident, wp.Position, wp.Comment = readLegacy(r)
		wp.Symbol = r.u8()
		wp.Display = r.u8()
		return wp, true
	case D104:
		var wp WaypointD104
		wp.Ident, wp.Position, wp.Comment = readLegacy(r)
		wp.Distance = r.f32()
		wp.Symbol = r.u16()
		wp.Display = r.u8()
		return wp, true
	case D105:
		var wp WaypointD105
		wp.Position = r.position()
		wp.Symbol = r.u16()
		wp.Ident = r.cstring()
		return wp, true
	case D106:
		var wp WaypointD106
		wp.Class = r.u8()
		r.raw(wp.Subclass[:])
		wp.Position = r.position()
		wp.Symbol = r.u16()
		wp.Ident = r.cstring()
		wp.LinkIdent = r.cstring()
		return wp, true
	case D107:
		var wp WaypointD107
		wp.Ident, wp.Position, wp.Comment = readLegacy(r)
		wp.Symbol = r.u8()
		wp.Display = r.u8()
		wp.Distance = r.f32()
		wp.Color = r.u8()
		return wp, true
	case D108:
		var wp WaypointD108
		wp.Class = r.u8()
		wp.Color = r.u8()
		wp.Display = r.u8()
		wp.Attributes = r.u8()
		wp.Symbol = r.u16()
		r.raw(wp.Subclass[:])
		wp.Position = r.position()
		wp.Altitude = r.f32()
		wp.Depth = r.f32()
		wp.Distance = r.f32()
		wp.State = r.fixed(2)
		wp.Country = r.fixed(2)
		wp.Ident = r.cstring()
		wp.Comment = r.cstring()
		wp.Facility = r.cstring()
		wp.City = r.cstring()
		wp.Address = r.cstring()
		wp.CrossRoad = r.cstring()
		return wp, true
	case D109:
		var wp WaypointD109
		wp.PacketType = r.u8()
		wp.Class = r.u8()
		wp.DisplayColor = r.u8()
		wp.Attributes = r.u8()
		wp.Symbol = r.u16()
		r.raw(wp.Subclass[:])
		wp.Position = r.position()
		wp.Altitude = r.f32()
		wp.Depth = r.f32()
		wp.Distance = r.f32()
		wp.State = r.fixed(2)
		wp.Country = r.fixed(2)
		wp.ETE = r.u32()
		wp.Ident = r.cstring()
		wp.Comment = r.cstring()
		wp.Facility = r.cstring()
		wp.City = r.cstring()
		wp.Address = r.cstring()
		wp.CrossRoad = r.cstring()
		return wp, true
	}
	return nil, false
}

func (wp WaypointD100) Fields() WaypointFields {
	f := NewWaypointFields(wp.Ident, wp.Position)
	f.Comment = wp.Comment
	return f
}

func (wp WaypointD101) Fields() WaypointFields {
	f := NewWaypointFields(wp.Ident, wp.Position)
	f.Comment = wp.Comment
	f.Distance = wp.Distance
	f.Symbol = uint16(wp.Symbol)
	return f
}

func (wp WaypointD102) Fields() WaypointFields {
	f := NewWaypointFields(wp.Ident, wp.Position)
	f.Comment = wp.Comment
	f.Distance = wp.Distance
	f.Symbol = wp.Symbol
	return f
}

func (wp WaypointD103) Fields() WaypointFields {
	f := NewWaypointFields(wp.Ident, wp.Position)
	f.Comment = wp.Comment
	f.Symbol = uint16(wp.Symbol)
	f.Display = wp.Display
	return f
}

func (wp WaypointD104) Fields() WaypointFields {
	f := NewWaypointFields(wp.Ident, wp.Position)
	f.Comment = wp.Comment
	f.Distance = wp.Distance
	f.Symbol = wp.Symbol
	f.Display = wp.Display
	return f
}

func (wp WaypointD105) Fields() WaypointFields {
	f := NewWaypointFields(wp.Ident, wp.Position)
	f.Symbol = wp.Symbol
	return f
}

func (wp WaypointD106) Fields() WaypointFields {
	f := NewWaypointFields(wp.Ident, wp.Position)
	f.Class = wp.Class
	f.Subclass = append([]byte(nil), wp.Subclass[:]...)
	f.Symbol = wp.Symbol
	f.LinkIdent = wp.LinkIdent
	return f
}

func (wp WaypointD107) Fields() WaypointFields {
	f := NewWaypointFields(wp.Ident, wp.Position)
	f.Comment = wp.Comment
	f.Symbol = uint16(wp.Symbol)
	f.Display = wp.Display
	f.Distance = wp.Distance
	f.Color = wp.Color
	return f
}

func (wp WaypointD108) Fields() WaypointFields {
	return WaypointFields{
		Ident:     wp.Ident,
		Position:  wp.Position,
		Comment:   wp.Comment,
		Symbol:    wp.Symbol,
		Display:   wp.Display,
		Color:     wp.Color,
		Class:     wp.Class,
		Subclass:  append([]byte(nil), wp.Subclass[:]...),
		Altitude:  wp.Altitude,
		Depth:     wp.Depth,
		Distance:  wp.Distance,
		State:     wp.State,
		Country:   wp.Country,
		Facility:  wp.Facility,
		City:      wp.City,
		Address:   wp.Address,
		CrossRoad: wp.CrossRoad,
	}
}

func (wp WaypointD109) Fields() WaypointFields {
	return WaypointFields{
		Ident:     wp.Ident,
		Position:  wp.Position,
		Comment:   wp.Comment,
		Symbol:    wp.Symbol,
		Display:   wp.DisplayColor >> 5 & 0x03,
		Color:     wp.DisplayColor & 0x1F,
		Class:     wp.Class,
		Subclass:  append([]byte(nil), wp.Subclass[:]...),
		Altitude:  wp.Altitude,
		Depth:     wp.Depth,
		Distance:  wp.Distance,
		State:     wp.State,
		Country:   wp.Country,
		Facility:  wp.Facility,
		City:      wp.City,
		Address:   wp.Address,
		CrossRoad: wp.CrossRoad,
		ETE:       wp.ETE,
	}
}

// userSubclass is the subclass a user waypoint carries in D108/D109.
func userSubclass(src []byte) [SubclassLen]byte {
	var sc [SubclassLen]byte
	if len(src) > 0 {
		copy(sc[:], src)
		return sc
	}
	for i := 6; i < SubclassLen; i++ {
		sc[i] = 0xFF
	}
	return sc
}

// NewWaypoint builds the layout dt from layout independent fields.
func NewWaypoint(dt DataType, f WaypointFields) (Waypoint, error) {
	switch dt {
	case D100:
		return WaypointD100{Ident: f.Ident, Position: f.Position, Comment: f.Comment}, nil
	case D101:
		return WaypointD101{Ident: f.Ident, Position: f.Position, Comment: f.Comment, Distance: f.Distance, Symbol: uint8(f.Symbol)}, nil
	case D102:
		return WaypointD102{Ident: f.Ident, Position: f.Position, Comment: f.Comment, Distance: f.Distance, Symbol: f.Symbol}, nil
	case D103:
		return WaypointD103{Ident: f.Ident, Position: f.Position, Comment: f.Comment, Symbol: uint8(f.Symbol), Display: f.Display}, nil
	case D104:
		return WaypointD104{Ident: f.Ident, Position: f.Position, Comment: f.Comment, Distance: f.Distance, Symbol: f.Symbol, Display: f.Display}, nil
	case D105:
		return WaypointD105{Position: f.Position, Symbol: f.Symbol, Ident: f.Ident}, nil
	case D106:
		wp := WaypointD106{Class: f.Class, Position: f.Position, Symbol: f.Symbol, Ident: f.Ident, LinkIdent: f.LinkIdent}
		copy(wp.Subclass[:], f.Subclass)
		return wp, nil
	case D107:
		return WaypointD107{Ident: f.Ident, Position: f.Position, Comment: f.Comment, Symbol: uint8(f.Symbol), Display: f.Display, Distance: f.Distance, Color: f.Color}, nil
	case D108:
		return WaypointD108{
			Class:      f.Class,
			Color:      f.Color,
			Display:    f.Display,
			Attributes: attrD108,
			Symbol:     f.Symbol,
			Subclass:   userSubclass(f.Subclass),
			Position:   f.Position,
			Altitude:   f.Altitude,
			Depth:      f.Depth,
			Distance:   f.Distance,
			State:      f.State,
			Country:    f.Country,
			Ident:      f.Ident,
			Comment:    f.Comment,
			Facility:   f.Facility,
			City:       f.City,
			Address:    f.Address,
			CrossRoad:  f.CrossRoad,
		}, nil
	case D109:
		return WaypointD109{
			PacketType:   dtypD109,
			Class:        f.Class,
			DisplayColor: (f.Display&0x03)<<5 | f.Color&0x1F,
			Attributes:   attrD109,
			Symbol:       f.Symbol,
			Subclass:     userSubclass(f.Subclass),
			Position:     f.Position,
			Altitude:     f.Altitude,
			Depth:        f.Depth,
			Distance:     f.Distance,
			State:        f.State,
			Country:      f.Country,
			ETE:          f.ETE,
			Ident:        f.Ident,
			Comment:      f.Comment,
			Facility:     f.Facility,
			City:         f.City,
			Address:      f.Address,
			CrossRoad:    f.CrossRoad,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s is not a waypoint layout", ErrUnsupportedRecordType, dt)
}
