// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protocols(entries ...string) []Protocol {
	out := make([]Protocol, 0, len(entries))
	for _, e := range entries {
		var n uint16
		for _, c := range e[1:] {
			n = n*10 + uint16(c-'0')
		}
		out = append(out, Protocol{Tag: e[0], Number: n})
	}
	return out
}

func TestParseProtocols(t *testing.T) {
	payload := []byte{'P', 0, 0, 'L', 1, 0, 'A', 100, 0, 'D', 108, 0}
	got, err := ParseProtocols(payload)
	require.NoError(t, err)
	assert.Equal(t, protocols("P000", "L001", "A100", "D108"), got)

	_, err = ParseProtocols([]byte{'A', 100, 0, 'D'})
	assert.ErrorIs(t, err, ErrMalformedCapability)

	got, err = ParseProtocols(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProtocolArray_Marshal(t *testing.T) {
	arr := ProtocolArray{Protocols: protocols("A201", "D202")}
	assert.Equal(t, []byte{'A', 201, 0, 'D', 202, 0}, Marshal(arr))
}

func TestCapabilities_Apply(t *testing.T) {
	tests := []struct {
		name      string
		protocols []Protocol
		want      Capabilities
	}{
		{
			name:      "empty array keeps defaults",
			protocols: nil,
			want:      DefaultCapabilities(),
		},
		{
			name: "etrex",
			protocols: protocols("P000", "L001", "A010", "A100", "D108",
				"A201", "D202", "D108", "D210", "A301", "D310", "D301", "A500"),
			want: Capabilities{
				Waypoint:      D108,
				RouteHeader:   D202,
				RouteWaypoint: D108,
				RouteLink:     D210,
				TrackPoint:    D301,
				TrackHeader:   D310,
			},
		},
		{
			name:      "A200 fills header and route waypoint",
			protocols: protocols("A200", "D201", "D103"),
			want: Capabilities{
				Waypoint:      D100,
				RouteHeader:   D201,
				RouteWaypoint: D103,
				RouteLink:     D210,
				TrackPoint:    D300,
				TrackHeader:   D310,
			},
		},
		{
			name:      "A300 fills track point only",
			protocols: protocols("A300", "D300"),
			want:      DefaultCapabilities(),
		},
		{
			name:      "link entry ends application context",
			protocols: protocols("A100", "L001", "D103"),
			want:      DefaultCapabilities(),
		},
		{
			name:      "data before any application is ignored",
			protocols: protocols("D104", "A100", "D102"),
			want: Capabilities{
				Waypoint:      D102,
				RouteHeader:   D200,
				RouteWaypoint: D100,
				RouteLink:     D210,
				TrackPoint:    D300,
				TrackHeader:   D310,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := DefaultCapabilities().Apply(tt.protocols)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCapabilities_ApplyAssignments(t *testing.T) {
	_, assignments := DefaultCapabilities().Apply(protocols("A100", "D100", "A200", "D201", "D103", "D999", "P000", "D105"))
	require.Len(t, assignments, 5)

	assert.True(t, assignments[0].Assigned)
	assert.Equal(t, SlotWaypoint, assignments[0].Slot)

	assert.Equal(t, SlotRouteWaypoint, assignments[2].Slot)
	assert.Equal(t, "A200", assignments[2].Application.String())

	// more data protocols than the application has slots
	assert.False(t, assignments[3].Assigned)
	assert.Equal(t, "D999", assignments[3].Data.String())

	// after a physical entry
	assert.False(t, assignments[4].Assigned)
}

func TestCapabilities_RepeatedSlotLaterWins(t *testing.T) {
	got, assignments := DefaultCapabilities().Apply(protocols("A100", "D103", "A100", "D108"))
	assert.Equal(t, D108, got.Waypoint)

	require.Len(t, assignments, 2)
	assert.False(t, assignments[0].Repeated)
	assert.True(t, assignments[1].Repeated)
	assert.True(t, assignments[1].Assigned)
}

func TestCapabilities_ForPacket(t *testing.T) {
	caps := DefaultCapabilities()
	caps.Set(SlotTrackPoint, D301)

	dt, ok := caps.ForPacket(34)
	assert.True(t, ok)
	assert.Equal(t, D301, dt)

	_, ok = caps.ForPacket(27)
	assert.False(t, ok)

	assert.Equal(t, "waypoint=D100 route header=D200 route waypoint=D100 route link=D210 track point=D301 track header=D310", caps.String())
}
