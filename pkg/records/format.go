// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"fmt"
	"strings"
)

// Format formats a record into a single human-readable line
func Format(rec Record) string {
	switch r := rec.(type) {
	case Waypoint:
		return formatWaypoint(r)
	case RouteHeader:
		return formatRouteHeader(r)
	case RouteLink:
		f := r.Fields()
		if f.Ident != "" {
			return fmt.Sprintf(" link %s %s", f.Class, f.Ident)
		}
		return fmt.Sprintf(" link %s", f.Class)
	case TrackPoint:
		return formatTrackPoint(r)
	case TrackHeader:
		return fmt.Sprintf("Track: %s", r.Fields().Ident)
	case UTCTime:
		return fmt.Sprintf("[UTC %s]", r)
	case Product:
		return r.String()
	case ProtocolArray:
		names := make([]string, 0, len(r.Protocols))
		for _, p := range r.Protocols {
			names = append(names, p.String())
		}
		return strings.Join(names, " ")
	case Raw:
		return fmt.Sprintf("[unknown %s layout %s, %d bytes]", strings.ToLower(packetLabel(r.ID)), r.Type, len(r.Data))
	default:
		return fmt.Sprintf("[%T]", rec)
	}
}

func packetLabel(id byte) string {
	if slot, ok := SlotForPacket(id); ok {
		return slot.String()
	}
	return fmt.Sprintf("packet %d", id)
}

// FormatBegin formats the start of a download
func FormatBegin(kind Command, count int) string {
	return fmt.Sprintf("[%s, %d records]", kind, count)
}

// FormatEnd formats the record count summary at the end of a download
func FormatEnd(received, expected int) string {
	return fmt.Sprintf("[end transfer, %d/%d records]", received, expected)
}

func formatWaypoint(wp Waypoint) string {
	f := wp.Fields()
	line := fmt.Sprintf("%-6s %s %d/%d", f.Ident, f.Position, f.Symbol, f.Display)
	if f.Comment != "" {
		line += " " + f.Comment
	}
	if !IsUnknown(f.Altitude) {
		line += fmt.Sprintf(" alt=%.1f", f.Altitude)
	}
	return line
}

func formatRouteHeader(h RouteHeader) string {
	f := h.Fields()
	switch h.DataType() {
	case D202:
		return "**" + f.Ident
	case D201:
		if f.Comment != "" {
			return fmt.Sprintf("**%d %s", f.Number, f.Comment)
		}
	}
	return fmt.Sprintf("**%d", f.Number)
}

func formatTrackPoint(p TrackPoint) string {
	f := p.Fields()
	line := f.Position.String()
	if p.DataType() == D301 {
		line += fmt.Sprintf(" %s %s", formatFloat(f.Altitude), formatFloat(f.Depth))
	}
	line += " " + f.Time.String()
	if f.NewTrack {
		line += " start"
	}
	return line
}

func formatFloat(v float32) string {
	if IsUnknown(v) {
		return "-"
	}
	return fmt.Sprintf("%f", v)
}
