// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/garlink/pkg/link"
)

func TestArchive_RoundTrip(t *testing.T) {
	waypoints := NewTransferList(CmdTransferWaypoints)
	waypoints.AddWaypoint(WaypointD100{Ident: "HOME01", Position: home})
	waypoints.AddWaypoint(WaypointD108{Ident: "Work", Position: home, Altitude: Unknown, Depth: Unknown, Distance: 1, Subclass: userSubclass(nil)})
	waypoints.Add(link.PidWaypointData, Raw{ID: link.PidWaypointData, Type: 150, Data: []byte{1, 2, 3}})

	routes := NewTransferList(CmdTransferRoutes)
	routes.AddRoute(RouteHeaderD201{Number: 1, Comment: "COMMUTE"},
		[]Waypoint{WaypointD100{Ident: "A"}, WaypointD100{Ident: "B"}},
		[]RouteLink{RouteLinkD210{Class: LinkDirect}})

	tracks := NewTransferList(CmdTransferTracks)
	tracks.AddTrack(TrackHeaderD310{Ident: "LOG"}, []TrackPoint{
		TrackPointD301{Position: home, Time: 100, Altitude: 5, Depth: Unknown, NewTrack: true},
	})

	caps := DefaultCapabilities()
	caps.Waypoint = D108
	product := &Product{ID: 77, Version: 390, Description: "eTrex"}

	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, NewArchive(product, caps, waypoints, routes, tracks)))

	a, err := ReadArchive(&buf)
	require.NoError(t, err)
	assert.Equal(t, ArchiveVersion, a.Version)
	assert.Equal(t, &ArchiveProduct{ID: 77, Version: 390, Description: "eTrex"}, a.Product)
	assert.Equal(t, caps, a.CapabilitySet())

	lists, err := a.TransferLists()
	require.NoError(t, err)
	require.Len(t, lists, 3)

	for i, want := range []*TransferList{waypoints, routes, tracks} {
		assert.Equal(t, want.Kind, lists[i].Kind)
		assert.Equal(t, want.Items, lists[i].Items)
		assert.Equal(t, want.Len(), lists[i].Expected)
	}

	// header, A, link, B
	assert.Equal(t, []byte{link.PidRouteHeader, link.PidRouteWaypoint, link.PidRouteLink, link.PidRouteWaypoint},
		[]byte{routes.Items[0].ID, routes.Items[1].ID, routes.Items[2].ID, routes.Items[3].ID})
}

func TestReadArchive_Errors(t *testing.T) {
	_, err := ReadArchive(bytes.NewReader([]byte{0xFF, 0x00}))
	assert.Error(t, err)

	data, err := cbor.Marshal(Archive{Version: ArchiveVersion + 1})
	require.NoError(t, err)
	_, err = ReadArchive(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrArchiveVersion)
}

func TestArchive_BadItem(t *testing.T) {
	a := &Archive{
		Version: ArchiveVersion,
		Lists:   []ArchiveList{{Kind: uint16(CmdTransferWaypoints), Items: []ArchiveItem{{ID: 200, Data: []byte{1}}}}},
	}
	_, err := a.TransferLists()
	assert.ErrorIs(t, err, ErrUnsupportedRecordType)
}
