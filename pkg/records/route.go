// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import "fmt"

// RouteHeaderFields is the layout independent view of a route header.
type RouteHeaderFields struct {
	Number  uint8
	Comment string
	Ident   string
}

// RouteHeader is one of the route header layouts D200 to D202.
type RouteHeader interface {
	Record
	Fields() RouteHeaderFields
}

// RouteHeaderD200 is a bare route number.
type RouteHeaderD200 struct {
	Number uint8
}

// RouteHeaderD201 is a route number with a short comment.
type RouteHeaderD201 struct {
	Number  uint8
	Comment string
}

// RouteHeaderD202 names a route by a free-form identifier.
type RouteHeaderD202 struct {
	Ident string
}

func (RouteHeaderD200) DataType() DataType { return D200 }
func (RouteHeaderD201) DataType() DataType { return D201 }
func (RouteHeaderD202) DataType() DataType { return D202 }

func (h RouteHeaderD200) put(w *writer) { w.u8(h.Number) }

func (h RouteHeaderD201) put(w *writer) {
	w.u8(h.Number)
	w.fixed(h.Comment, RouteCommentLen)
}

func (h RouteHeaderD202) put(w *writer) { w.cstring(h.Ident) }

func (h RouteHeaderD200) Fields() RouteHeaderFields {
	return RouteHeaderFields{Number: h.Number}
}

func (h RouteHeaderD201) Fields() RouteHeaderFields {
	return RouteHeaderFields{Number: h.Number, Comment: h.Comment}
}

func (h RouteHeaderD202) Fields() RouteHeaderFields {
	return RouteHeaderFields{Ident: h.Ident}
}

func decodeRouteHeader(dt DataType, payload []byte) (RouteHeader, bool) {
	r := newReader(payload)
	switch dt {
	case D200:
		return RouteHeaderD200{Number: r.u8()}, true
	case D201:
		var h RouteHeaderD201
		h.Number = r.u8()
		h.Comment = r.fixed(RouteCommentLen)
		return h, true
	case D202:
		return RouteHeaderD202{Ident: r.cstring()}, true
	}
	return nil, false
}

// NewRouteHeader builds the layout dt. A D202 header without an ident
// takes the route number as its name.
func NewRouteHeader(dt DataType, f RouteHeaderFields) (RouteHeader, error) {
	switch dt {
	case D200:
		return RouteHeaderD200{Number: f.Number}, nil
	case D201:
		return RouteHeaderD201{Number: f.Number, Comment: f.Comment}, nil
	case D202:
		ident := f.Ident
		if ident == "" {
			ident = fmt.Sprintf("%d", f.Number)
		}
		return RouteHeaderD202{Ident: ident}, nil
	}
	return nil, fmt.Errorf("%w: %s is not a route header layout", ErrUnsupportedRecordType, dt)
}

// LinkClass is the kind of leg between two route waypoints.
type LinkClass uint16

// Route link classes
const (
	LinkLine   LinkClass = 0
	LinkLink   LinkClass = 1
	LinkNet    LinkClass = 2
	LinkDirect LinkClass = 3
	LinkSnap   LinkClass = 0xFF
)

func (c LinkClass) String() string {
	switch c {
	case LinkLine:
		return "line"
	case LinkLink:
		return "link"
	case LinkNet:
		return "net"
	case LinkDirect:
		return "direct"
	case LinkSnap:
		return "snap"
	default:
		return fmt.Sprintf("class %d", uint16(c))
	}
}

// RouteLinkFields is the layout independent view of a route link.
type RouteLinkFields struct {
	Class    LinkClass
	Subclass []byte
	Ident    string
}

// RouteLink is a route link layout. D210 is the only one.
type RouteLink interface {
	Record
	Fields() RouteLinkFields
}

// RouteLinkD210 describes the leg that follows a route waypoint.
type RouteLinkD210 struct {
	Class    LinkClass
	Subclass [SubclassLen]byte
	Ident    string
}

func (RouteLinkD210) DataType() DataType { return D210 }

func (l RouteLinkD210) put(w *writer) {
	w.u16(uint16(l.Class))
	w.raw(l.Subclass[:])
	w.cstring(l.Ident)
}

func (l RouteLinkD210) Fields() RouteLinkFields {
	return RouteLinkFields{
		Class:    l.Class,
		Subclass: append([]byte(nil), l.Subclass[:]...),
		Ident:    l.Ident,
	}
}

func decodeRouteLink(dt DataType, payload []byte) (RouteLink, bool) {
	if dt != D210 {
		return nil, false
	}
	r := newReader(payload)
	var l RouteLinkD210
	l.Class = LinkClass(r.u16())
	r.raw(l.Subclass[:])
	l.Ident = r.cstring()
	return l, true
}

// NewRouteLink builds the layout dt. Line and snap links get the user
// subclass when none is given.
func NewRouteLink(dt DataType, f RouteLinkFields) (RouteLink, error) {
	if dt != D210 {
		return nil, fmt.Errorf("%w: %s is not a route link layout", ErrUnsupportedRecordType, dt)
	}
	l := RouteLinkD210{Class: f.Class, Ident: f.Ident}
	if len(f.Subclass) == 0 && (f.Class == LinkLine || f.Class == LinkSnap) {
		l.Subclass = userSubclass(nil)
	} else {
		copy(l.Subclass[:], f.Subclass)
	}
	return l, nil
}
