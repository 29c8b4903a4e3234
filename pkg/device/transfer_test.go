// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/records"
)

var (
	homeWaypoint = records.WaypointD100{Ident: "HOME01", Position: records.PositionFromDegrees(37.5, -122.3), Comment: "FRONT DOOR"}
	workWaypoint = records.WaypointD100{Ident: "WORK01", Position: records.PositionFromDegrees(37.79, -122.4)}
)

// onCommand answers a device command with an ack and the given frames
func onCommand(frames ...link.Frame) func(p *peer, f link.Frame) {
	return func(p *peer, f link.Frame) {
		if f.ID != link.PidCommand {
			return
		}
		p.ack(f.ID)
		for _, fr := range frames {
			p.send(fr.ID, fr.Payload)
		}
	}
}

func frame(id byte, payload []byte) link.Frame {
	return link.Frame{ID: id, Payload: payload}
}

type recorder struct {
	kind     records.Command
	begin    int
	items    []records.Item
	received int
	expected int
	ended    bool
}

func (r *recorder) TransferBegin(kind records.Command, count int) {
	r.kind = kind
	r.begin = count
}

func (r *recorder) Record(item records.Item) {
	r.items = append(r.items, item)
}

func (r *recorder) TransferEnd(received, expected int) {
	r.ended = true
	r.received = received
	r.expected = expected
}

func TestDownload_Waypoints(t *testing.T) {
	p := newPeer(t, onCommand(
		frame(link.PidTransferBegin, []byte{2, 0}),
		frame(link.PidWaypointData, records.Marshal(homeWaypoint)),
		frame(link.PidWaypointData, records.Marshal(workWaypoint)),
		frame(link.PidTransferEnd, []byte{7, 0}),
	))

	var progress []Progress
	s, err := Open(p, WithProgress(func(pr Progress) { progress = append(progress, pr) }))
	require.NoError(t, err)

	rec := &recorder{}
	list, err := s.Download(context.Background(), records.CmdTransferWaypoints, rec)
	require.NoError(t, err)

	require.Len(t, rec.items, 2)
	home := rec.items[0].Record.(records.WaypointD100)
	assert.Equal(t, "HOME01", home.Ident)
	assert.InDelta(t, 37.5, home.Position.Lat.Degrees(), 1e-6)
	assert.InDelta(t, -122.3, home.Position.Lon.Degrees(), 1e-6)
	assert.Equal(t, "FRONT DOOR", home.Comment)
	assert.Equal(t, "WORK01", rec.items[1].Record.(records.WaypointD100).Ident)

	assert.Equal(t, records.CmdTransferWaypoints, rec.kind)
	assert.Equal(t, 2, rec.begin)
	assert.True(t, rec.ended)
	assert.Equal(t, 2, rec.received)
	assert.Equal(t, 2, rec.expected)

	assert.True(t, list.Complete)
	assert.Equal(t, 2, list.Len())
	assert.Equal(t, records.CmdTransferWaypoints, list.EndTag)
	assert.False(t, list.CountMismatch())

	// command, then one ack per received frame
	assert.Equal(t, []byte{link.PidCommand, link.PidAck, link.PidAck, link.PidAck, link.PidAck}, p.sent())
	assert.Equal(t, []byte{byte(records.CmdTransferWaypoints), 0}, p.frames[0].Payload)
	for i, id := range []byte{link.PidTransferBegin, link.PidWaypointData, link.PidWaypointData, link.PidTransferEnd} {
		assert.Equal(t, id, p.frames[i+1].Payload[0])
	}

	require.Len(t, progress, 2)
	assert.Equal(t, Progress{Direction: DirectionDownload, Kind: records.CmdTransferWaypoints, Done: 2, Total: 2}, progress[1])
	assert.Equal(t, StateIdle, s.State())
}

func TestDownload_CountMismatch(t *testing.T) {
	p := newPeer(t, onCommand(
		frame(link.PidTransferBegin, []byte{3, 0}),
		frame(link.PidWaypointData, records.Marshal(homeWaypoint)),
		frame(link.PidTransferEnd, []byte{7, 0}),
	))
	s, err := Open(p)
	require.NoError(t, err)

	rec := &recorder{}
	list, err := s.Download(context.Background(), records.CmdTransferWaypoints, rec)
	require.NoError(t, err)
	assert.True(t, list.CountMismatch())
	assert.Equal(t, 1, rec.received)
	assert.Equal(t, 3, rec.expected)
}

func TestDownload_UnknownVariantForwardedAsRaw(t *testing.T) {
	caps := protocolPayload(proto('A', 100), proto('D', 150))
	p := newPeer(t, identifying(caps, onCommand(
		frame(link.PidTransferBegin, []byte{1, 0}),
		frame(link.PidWaypointData, []byte{1, 2, 3}),
		frame(link.PidTransferEnd, []byte{7, 0}),
	)))
	s, err := Open(p)
	require.NoError(t, err)

	_, _, err = s.Connect(context.Background())
	require.NoError(t, err)

	list, err := s.Download(context.Background(), records.CmdTransferWaypoints, nil)
	require.NoError(t, err)
	require.Equal(t, 1, list.Len())
	assert.Equal(t, records.Raw{ID: link.PidWaypointData, Type: 150, Data: []byte{1, 2, 3}}, list.Items[0].Record)
	assert.Equal(t, StateReady, s.State())
}

func TestDownload_ChecksumFailureIsNaked(t *testing.T) {
	p := newPeer(t, func(p *peer, f link.Frame) {
		if f.ID != link.PidCommand {
			return
		}
		p.ack(f.ID)
		p.send(link.PidTransferBegin, []byte{1, 0})
		p.sendCorrupt(link.PidWaypointData, records.Marshal(homeWaypoint))
		p.send(link.PidWaypointData, records.Marshal(homeWaypoint))
		p.send(link.PidTransferEnd, []byte{7, 0})
	})
	s, err := Open(p)
	require.NoError(t, err)

	list, err := s.Download(context.Background(), records.CmdTransferWaypoints, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Len())
	assert.Equal(t, []byte{link.PidCommand, link.PidAck, link.PidNak, link.PidAck, link.PidAck}, p.sent())
	assert.Equal(t, []byte{link.PidWaypointData, 0}, p.frames[2].Payload)
}

func TestDownload_OversizedFrameIsRecovered(t *testing.T) {
	p := newPeer(t, func(p *peer, f link.Frame) {
		if f.ID != link.PidCommand {
			return
		}
		p.ack(f.ID)
		p.send(link.PidTransferBegin, []byte{1, 0})

		// A run of line noise between DLE and DLE ETX
		p.in = append(p.in, link.DLE)
		p.in = append(p.in, bytes.Repeat([]byte{0x41}, 300)...)
		p.in = append(p.in, link.DLE, link.ETX)

		p.send(link.PidWaypointData, records.Marshal(homeWaypoint))
		p.send(link.PidTransferEnd, []byte{7, 0})
	})
	s, err := Open(p)
	require.NoError(t, err)

	list, err := s.Download(context.Background(), records.CmdTransferWaypoints, nil)
	require.NoError(t, err)
	assert.True(t, list.Complete)
	require.Equal(t, 1, list.Len())
	assert.Equal(t, homeWaypoint, list.Items[0].Record)
	assert.Equal(t, []byte{link.PidCommand, link.PidAck, link.PidNak, link.PidAck, link.PidAck}, p.sent())
	assert.Equal(t, []byte{0x41, 0}, p.frames[2].Payload)
}

func TestDownload_TooManyOversizedFrames(t *testing.T) {
	p := newPeer(t, func(p *peer, f link.Frame) {
		if f.ID != link.PidCommand {
			return
		}
		p.ack(f.ID)
		for i := 0; i < MaxChecksumFailures; i++ {
			p.in = append(p.in, link.DLE)
			p.in = append(p.in, bytes.Repeat([]byte{0x41}, 300)...)
			p.in = append(p.in, link.DLE, link.ETX)
		}
	})
	s, err := Open(p)
	require.NoError(t, err)

	_, err = s.Download(context.Background(), records.CmdTransferWaypoints, nil)
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.ErrorIs(t, err, link.ErrFrameTooLarge)
}

func TestDownload_TooManyChecksumFailures(t *testing.T) {
	p := newPeer(t, func(p *peer, f link.Frame) {
		if f.ID != link.PidCommand {
			return
		}
		p.ack(f.ID)
		for i := 0; i < MaxChecksumFailures; i++ {
			p.sendCorrupt(link.PidWaypointData, records.Marshal(homeWaypoint))
		}
	})
	s, err := Open(p)
	require.NoError(t, err)

	list, err := s.Download(context.Background(), records.CmdTransferWaypoints, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportFailure)

	var ce *link.ChecksumError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, list.Len())
}

func TestDownload_TimeoutReturnsPartialList(t *testing.T) {
	p := newPeer(t, onCommand(
		frame(link.PidTransferBegin, []byte{2, 0}),
		frame(link.PidWaypointData, records.Marshal(homeWaypoint)),
	))
	s, err := Open(p)
	require.NoError(t, err)

	list, err := s.Download(context.Background(), records.CmdTransferWaypoints, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResponse)
	require.NotNil(t, list)
	assert.Equal(t, 1, list.Len())
	assert.Equal(t, 2, list.Expected)
	assert.False(t, list.Complete)
}

func TestDownload_CommandNaked(t *testing.T) {
	p := newPeer(t, func(p *peer, f link.Frame) {
		if f.ID == link.PidCommand {
			p.nak(f.ID)
		}
	})
	s, err := Open(p)
	require.NoError(t, err)

	list, err := s.Download(context.Background(), records.CmdTransferTracks, nil)
	assert.ErrorIs(t, err, ErrNaked)
	assert.Equal(t, 0, list.Len())
	assert.Len(t, p.frames, link.DefaultSendRetries)
}

func TestDownload_Tracks(t *testing.T) {
	hdr := records.TrackHeaderD310{Display: true, Color: 3, Ident: "ACTIVE LOG"}
	pt := records.TrackPointD301{Position: homeWaypoint.Position, Time: 1000, Altitude: 10, Depth: records.Unknown, NewTrack: true}

	caps := protocolPayload(proto('A', 301), proto('D', 310), proto('D', 301))
	p := newPeer(t, identifying(caps, onCommand(
		frame(link.PidTransferBegin, []byte{2, 0}),
		frame(link.PidTrackHeader, records.Marshal(hdr)),
		frame(link.PidTrackData, records.Marshal(pt)),
		frame(link.PidTransferEnd, []byte{6, 0}),
	)))
	s, err := Open(p)
	require.NoError(t, err)
	_, _, err = s.Connect(context.Background())
	require.NoError(t, err)

	list, err := s.Download(context.Background(), records.CmdTransferTracks, nil)
	require.NoError(t, err)
	assert.Equal(t, []records.Item{
		{ID: link.PidTrackHeader, Record: hdr},
		{ID: link.PidTrackData, Record: pt},
	}, list.Items)
}

func TestDownloadTime(t *testing.T) {
	utc := records.UTCTime{Month: 10, Day: 18, Year: 2026, Hour: 7, Minute: 30, Second: 0}
	p := newPeer(t, onCommand(frame(link.PidUTCData, records.Marshal(utc))))
	s, err := Open(p)
	require.NoError(t, err)

	got, err := s.DownloadTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, utc, got)
	assert.Equal(t, []byte{link.PidCommand, link.PidAck}, p.sent())
	assert.Equal(t, []byte{byte(records.CmdTransferTime), 0}, p.frames[0].Payload)
	assert.Equal(t, []byte{link.PidUTCData, 0}, p.frames[1].Payload)
}

func TestAbort(t *testing.T) {
	p := newPeer(t, onCommand())
	s, err := Open(p)
	require.NoError(t, err)

	require.NoError(t, s.Abort(context.Background()))
	assert.Equal(t, []byte{0, 0}, p.frames[0].Payload)
}

// ackAll acks every frame except acks and naks
func ackAll(p *peer, f link.Frame) {
	if f.ID != link.PidAck && f.ID != link.PidNak {
		p.ack(f.ID)
	}
}

func TestUpload(t *testing.T) {
	p := newPeer(t, ackAll)

	var states []State
	var s *Session
	s, err := Open(p, WithProgress(func(Progress) { states = append(states, s.State()) }))
	require.NoError(t, err)

	wpts := records.NewTransferList(records.CmdTransferWaypoints)
	wpts.AddWaypoint(homeWaypoint)
	wpts.AddWaypoint(workWaypoint)

	routes := records.NewTransferList(records.CmdTransferRoutes)
	routes.AddRoute(records.RouteHeaderD200{Number: 1}, []records.Waypoint{homeWaypoint, workWaypoint}, nil)

	require.NoError(t, s.Upload(context.Background(), wpts, routes))

	assert.Equal(t, []byte{
		link.PidTransferBegin, link.PidWaypointData, link.PidWaypointData, link.PidTransferEnd,
		link.PidTransferBegin, link.PidRouteHeader, link.PidRouteWaypoint, link.PidRouteWaypoint, link.PidTransferEnd,
	}, p.sent())
	assert.Equal(t, []byte{2, 0}, p.frames[0].Payload)
	assert.Equal(t, records.Marshal(homeWaypoint), p.frames[1].Payload)
	assert.Equal(t, []byte{byte(records.CmdTransferWaypoints), 0}, p.frames[3].Payload)
	assert.Equal(t, []byte{3, 0}, p.frames[4].Payload)
	assert.Equal(t, []byte{byte(records.CmdTransferRoutes), 0}, p.frames[8].Payload)

	assert.Equal(t, []State{StateUploading, StateUploading, StateUploading, StateUploading, StateUploading}, states)
	assert.Equal(t, StateIdle, s.State())
}

func TestUpload_ConvertsToDeviceLayout(t *testing.T) {
	caps := protocolPayload(proto('A', 100), proto('D', 108))
	p := newPeer(t, identifying(caps, ackAll))
	s, err := Open(p)
	require.NoError(t, err)
	_, _, err = s.Connect(context.Background())
	require.NoError(t, err)

	l := records.NewTransferList(records.CmdTransferWaypoints)
	l.AddWaypoint(homeWaypoint)
	require.NoError(t, s.Upload(context.Background(), l))

	data := p.data()
	require.Len(t, data, 4) // product request, begin, waypoint, end
	rec, err := records.DecodeAs(link.PidWaypointData, records.D108, data[2].Payload)
	require.NoError(t, err)
	wp := rec.(records.WaypointD108)
	assert.Equal(t, "HOME01", wp.Ident)
	assert.Equal(t, "FRONT DOOR", wp.Comment)
	assert.Equal(t, homeWaypoint.Position, wp.Position)
}

func TestUpload_AbortsOnRejectedRecord(t *testing.T) {
	p := newPeer(t, func(p *peer, f link.Frame) {
		if f.ID == link.PidWaypointData && bytes.HasPrefix(f.Payload, []byte("WPT002")) {
			p.nak(f.ID)
			return
		}
		ackAll(p, f)
	})
	s, err := Open(p)
	require.NoError(t, err)

	wpts := records.NewTransferList(records.CmdTransferWaypoints)
	for _, ident := range []string{"WPT001", "WPT002", "WPT003"} {
		wpts.AddWaypoint(records.WaypointD100{Ident: ident})
	}
	tracks := records.NewTransferList(records.CmdTransferTracks)
	tracks.AddTrack(nil, []records.TrackPoint{records.TrackPointD300{}})

	err = s.Upload(context.Background(), wpts, tracks)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNaked)

	var te *TransferError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, records.CmdTransferWaypoints, te.Kind)
	assert.Equal(t, 1, te.Index)
	assert.Equal(t, 1, te.Sent)

	// begin, first record, five tries of the second, abort
	assert.Equal(t, []byte{
		link.PidTransferBegin, link.PidWaypointData,
		link.PidWaypointData, link.PidWaypointData, link.PidWaypointData, link.PidWaypointData, link.PidWaypointData,
		link.PidTransferEnd,
	}, p.sent())
	assert.Equal(t, []byte{byte(records.CmdAbortTransfer), 0}, p.frames[len(p.frames)-1].Payload)

	for _, f := range p.frames {
		assert.False(t, bytes.HasPrefix(f.Payload, []byte("WPT003")))
		assert.NotEqual(t, byte(link.PidTrackData), f.ID)
	}
}

func TestUpload_EncodeFailureSendsNothing(t *testing.T) {
	p := newPeer(t, ackAll)
	s, err := Open(p)
	require.NoError(t, err)

	l := records.NewTransferList(records.CmdTransferWaypoints)
	l.AddWaypoint(homeWaypoint)
	l.Add(link.PidWaypointData, records.TrackPointD300{})

	err = s.Upload(context.Background(), l)
	assert.ErrorIs(t, err, ErrUnsupportedRecordType)
	assert.Empty(t, p.frames)
}

func TestUpload_ListTooLong(t *testing.T) {
	p := newPeer(t, ackAll)
	s, err := Open(p)
	require.NoError(t, err)

	l := records.NewTransferList(records.CmdTransferTracks)
	point := records.TrackPointD300{Position: records.PositionFromDegrees(1, 2)}
	for i := 0; i <= math.MaxUint16; i++ {
		l.Add(link.PidTrackData, point)
	}

	err = s.Upload(context.Background(), l)
	assert.ErrorIs(t, err, ErrListTooLong)
	assert.Empty(t, p.frames)
}
