// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"D100", WaypointD100{Ident: "HOME01", Position: home, Comment: "DOOR"}, "HOME01  37.500000 -122.300000 0/0 DOOR"},
		{"D104", WaypointD104{Ident: "X", Position: home, Symbol: 150, Display: 5, Distance: Unknown}, "X       37.500000 -122.300000 150/5"},
		{"D200", RouteHeaderD200{Number: 4}, "**4"},
		{"D201", RouteHeaderD201{Number: 4, Comment: "HOME"}, "**4 HOME"},
		{"D202", RouteHeaderD202{Ident: "Home"}, "**Home"},
		{"D210", RouteLinkD210{Class: LinkSnap}, " link snap"},
		{"D210 ident", RouteLinkD210{Class: 7, Ident: "x"}, " link class 7 x"},
		{"D300", TrackPointD300{Position: home, Time: 86400, NewTrack: true}, " 37.500000 -122.300000 1990-01-01 00:00:00 start"},
		{"D301", TrackPointD301{Position: home, Altitude: 2, Depth: Unknown}, " 37.500000 -122.300000 2.000000 - unknown"},
		{"D310", TrackHeaderD310{Ident: "ACTIVE LOG"}, "Track: ACTIVE LOG"},
		{"D600", UTCTimeFrom(time.Date(2026, 10, 18, 9, 5, 7, 0, time.UTC)), "[UTC 2026-10-18 09:05:07]"},
		{"raw", Raw{ID: 35, Type: 150, Data: []byte{1}}, "[unknown waypoint layout D150, 1 bytes]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.rec))
		})
	}

	assert.Equal(t, "[waypoints, 2 records]", FormatBegin(CmdTransferWaypoints, 2))
	assert.Equal(t, "[end transfer, 1/2 records]", FormatEnd(1, 2))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		rec   Record
		types []AnomalyType
	}{
		{"good", WaypointD100{Ident: "HOME01", Position: home}, nil},
		{"missing ident", WaypointD100{Position: home}, []AnomalyType{AnomalyIdent}},
		{"long ident", WaypointD103{Ident: "HOME001"}, []AnomalyType{AnomalyIdent}},
		{"bad char", WaypointD100{Ident: "A*B"}, []AnomalyType{AnomalyIdent}},
		{"free form ident", WaypointD108{Ident: "Home *sweet* home", Altitude: Unknown, Depth: Unknown, Distance: Unknown}, nil},
		{"latitude", WaypointD100{Ident: "N", Position: Position{Lat: SemicircleFromDegrees(120)}}, []AnomalyType{AnomalyPosition}},
		{"long comment", WaypointD100{Ident: "C", Comment: strings.Repeat("C", 41)}, []AnomalyType{AnomalyComment}},
		{"future track", TrackPointD300{Time: TimestampFrom(time.Now().Add(48 * time.Hour))}, []AnomalyType{AnomalyTime}},
		{"raw", Raw{Type: 150}, []AnomalyType{AnomalyUnknownLayout}},
		{"too large", WaypointD108{Ident: strings.Repeat("I", 250)}, []AnomalyType{AnomalyTooLarge}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []AnomalyType
			for _, v := range Validate(tt.rec) {
				got = append(got, v.Type)
			}
			assert.Equal(t, tt.types, got)
		})
	}
}

func TestValidateList(t *testing.T) {
	l := NewTransferList(CmdTransferWaypoints)
	l.AddWaypoint(WaypointD100{Ident: "OK"})
	l.AddWaypoint(WaypointD100{})

	result := ValidateList(l)
	assert.Len(t, result, 1)
	assert.Contains(t, result, 1)
}
