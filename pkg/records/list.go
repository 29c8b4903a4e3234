// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import "github.com/Thermoquad/garlink/pkg/link"

// Item is one record of a transfer together with the packet that carries
// it. A waypoint travels as wpt_data on its own and as rte_wpt_data inside
// a route.
type Item struct {
	ID     byte
	Record Record
}

// TransferList is an ordered list of records of one transfer kind.
type TransferList struct {
	Kind  Command
	Items []Item

	// Expected is the count announced by the sender, set on download.
	Expected int

	// EndTag is the command carried by the transfer end packet. It is
	// CmdAbortTransfer when the sender aborted.
	EndTag Command

	// Complete is set once the transfer end (or UTC record) was seen.
	Complete bool
}

// NewTransferList creates an empty list of the given kind
func NewTransferList(kind Command) *TransferList {
	return &TransferList{Kind: kind, EndTag: kind}
}

// Add appends a record carried by packet id
func (l *TransferList) Add(id byte, rec Record) {
	l.Items = append(l.Items, Item{ID: id, Record: rec})
}

// AddWaypoint appends a stand-alone waypoint
func (l *TransferList) AddWaypoint(wp Waypoint) {
	l.Add(link.PidWaypointData, wp)
}

// AddRoute appends a route: its header, then each waypoint followed by
// the link to the next one when links are given.
func (l *TransferList) AddRoute(hdr RouteHeader, wps []Waypoint, links []RouteLink) {
	l.Add(link.PidRouteHeader, hdr)
	for i, wp := range wps {
		l.Add(link.PidRouteWaypoint, wp)
		if i < len(links) && i < len(wps)-1 {
			l.Add(link.PidRouteLink, links[i])
		}
	}
}

// AddTrack appends a track header, when given, and its points
func (l *TransferList) AddTrack(hdr TrackHeader, points []TrackPoint) {
	if hdr != nil {
		l.Add(link.PidTrackHeader, hdr)
	}
	for _, p := range points {
		l.Add(link.PidTrackData, p)
	}
}

// Len returns the number of records
func (l *TransferList) Len() int {
	return len(l.Items)
}

// CountMismatch reports whether a downloaded list holds a different number
// of records than was announced.
func (l *TransferList) CountMismatch() bool {
	return l.Complete && l.Kind != CmdTransferTime && l.Expected != len(l.Items)
}
