// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/garlink/pkg/device"
	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/records"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(exitWith(2, "connection error: %w", errors.New("no such port"))))

	wrapped := fmt.Errorf("dump: %w", exitWith(1, "%w", device.ErrNoResponse))
	assert.Equal(t, 1, ExitCode(wrapped))
	assert.ErrorIs(t, wrapped, device.ErrNoResponse)
}

func setFlags(t *testing.T, w, r, tr, tm bool) {
	t.Helper()
	oldW, oldR, oldT, oldTm := dumpWaypoints, dumpRoutes, dumpTracks, dumpTime
	dumpWaypoints, dumpRoutes, dumpTracks, dumpTime = w, r, tr, tm
	t.Cleanup(func() {
		dumpWaypoints, dumpRoutes, dumpTracks, dumpTime = oldW, oldR, oldT, oldTm
	})
}

func TestDumpKinds(t *testing.T) {
	all := []records.Command{records.CmdTransferWaypoints, records.CmdTransferRoutes, records.CmdTransferTracks}

	setFlags(t, false, false, false, false)
	assert.Equal(t, all, dumpKinds())

	setFlags(t, false, true, true, false)
	assert.Equal(t, []records.Command{records.CmdTransferRoutes, records.CmdTransferTracks}, dumpKinds())

	setFlags(t, false, false, false, true)
	assert.Empty(t, dumpKinds())

	setFlags(t, true, false, false, true)
	assert.Equal(t, []records.Command{records.CmdTransferWaypoints}, dumpKinds())
}

func TestSelectLists(t *testing.T) {
	wpts := records.NewTransferList(records.CmdTransferWaypoints)
	rtes := records.NewTransferList(records.CmdTransferRoutes)
	trks := records.NewTransferList(records.CmdTransferTracks)
	lists := []*records.TransferList{wpts, rtes, trks}

	old := [3]bool{loadWaypoints, loadRoutes, loadTracks}
	t.Cleanup(func() { loadWaypoints, loadRoutes, loadTracks = old[0], old[1], old[2] })

	loadWaypoints, loadRoutes, loadTracks = false, false, false
	assert.Equal(t, lists, selectLists(lists))

	loadWaypoints, loadRoutes, loadTracks = true, false, true
	assert.Equal(t, []*records.TransferList{wpts, trks}, selectLists(lists))
}

func TestLayoutChanges(t *testing.T) {
	from := records.DefaultCapabilities()
	assert.Empty(t, layoutChanges(from, from))

	to := from
	to.Waypoint = records.D108
	lines := layoutChanges(from, to)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "archive uses D100, unit uses D108")
}

func TestArchiveFile(t *testing.T) {
	home := records.WaypointD100{Ident: "HOME01", Position: records.PositionFromDegrees(37.5, -122.3), Comment: "FRONT DOOR"}
	wpts := records.NewTransferList(records.CmdTransferWaypoints)
	wpts.Add(link.PidWaypointData, home)

	product := records.Product{ID: 13, Version: 390, Description: "GPS 12"}
	path := filepath.Join(t.TempDir(), "dump.cbor")
	require.NoError(t, writeArchive(path, records.NewArchive(&product, records.DefaultCapabilities(), wpts)))

	a, err := readArchive(path)
	require.NoError(t, err)
	require.NotNil(t, a.Product)
	assert.Equal(t, "GPS 12", a.Product.Description)

	lists, err := a.TransferLists()
	require.NoError(t, err)
	require.Len(t, lists, 1)
	require.Equal(t, 1, lists[0].Len())

	wp, ok := lists[0].Items[0].Record.(records.Waypoint)
	require.True(t, ok)
	assert.Equal(t, "HOME01", wp.Fields().Ident)

	_, err = readArchive(filepath.Join(t.TempDir(), "missing.cbor"))
	assert.Error(t, err)
}

func TestFormatProtocols(t *testing.T) {
	var protocols []records.Protocol
	for i := 0; i < 9; i++ {
		protocols = append(protocols, records.Protocol{Tag: records.TagData, Number: uint16(100 + i)})
	}
	assert.Equal(t, "D100 D101 D102 D103 D104 D105 D106 D107\n  D108", formatProtocols(protocols))
	assert.Equal(t, "", formatProtocols(nil))
}

func TestFormatFrame(t *testing.T) {
	codec := records.NewCodec(records.DefaultCapabilities())

	tests := []struct {
		name  string
		frame link.Frame
		want  []string
	}{
		{"ack", link.Frame{ID: link.PidAck, Payload: []byte{link.PidCommand, 0}}, []string{"ACK (6)", "for COMMAND"}},
		{"transfer begin", link.Frame{ID: link.PidTransferBegin, Payload: []byte{3, 0}}, []string{"3 records follow"}},
		{"transfer end", link.Frame{ID: link.PidTransferEnd, Payload: []byte{7, 0}}, []string{"end of waypoints"}},
		{"capabilities", link.Frame{ID: link.PidCapabilities, Payload: []byte{'P', 0, 0, 'A', 100, 0}}, []string{"P000 A100"}},
		{"unknown packet", link.Frame{ID: 77, Payload: []byte("AB")}, []string{"UNKNOWN_77", "41 42"}},
		{"length mismatch", link.Frame{ID: link.PidProductRequest, LengthMismatch: true}, []string{"length byte disagrees"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := formatFrame(codec, &tt.frame)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0 seconds", formatUptime(0))
	assert.Equal(t, "1 second", formatUptime(time.Second))
	assert.Equal(t, "2 minutes and 5 seconds", formatUptime(125*time.Second))
	assert.Equal(t, "1 day, 1 hour, and 1 minute", formatUptime(25*time.Hour+time.Minute))
}

func TestEventLog(t *testing.T) {
	l := newEventLog(3)
	for i := 0; i < 5; i++ {
		l.add(fmt.Sprintf("event %d", i), i%2 == 1)
	}
	require.Len(t, l.entries, 3)
	assert.Equal(t, "event 2", l.entries[0].message)
	assert.True(t, l.entries[1].isError)
	assert.Contains(t, l.render(60, 2), "event 4")
	assert.NotContains(t, l.render(60, 2), "event 2")
}

func newTestBrowseModel(t *testing.T) (browseModel, *sessionManager) {
	t.Helper()
	sm := &sessionManager{ops: make(chan operation, 1)}
	conn := &connection{info: "Serial: test", stats: link.NewStatistics()}
	m := initialBrowseModel(sm, conn)

	next, _ := m.Update(connectedMsg{
		connInfo: conn.info,
		product:  records.Product{ID: 13, Version: 390, Description: "GPS 12"},
		caps:     records.DefaultCapabilities(),
		conn:     conn,
	})
	return next.(browseModel), sm
}

func TestBrowseModel_StartsSelectedTransfer(t *testing.T) {
	m, sm := newTestBrowseModel(t)
	assert.True(t, m.connected)
	assert.False(t, m.busy)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(browseModel)
	assert.True(t, m.busy)

	select {
	case op := <-sm.ops:
		assert.Equal(t, records.CmdTransferWaypoints, op.kind)
	default:
		t.Fatal("no operation queued")
	}

	// A second request while busy is refused
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, sm.ops)
}

func TestBrowseModel_Records(t *testing.T) {
	m, _ := newTestBrowseModel(t)
	home := records.WaypointD100{Ident: "HOME01", Position: records.PositionFromDegrees(37.5, -122.3)}

	next, _ := m.Update(transferBeginMsg{kind: records.CmdTransferWaypoints, count: 2})
	next, _ = next.Update(recordBatchMsg{{item: records.Item{ID: link.PidWaypointData, Record: home}}})
	next, _ = next.Update(transferEndMsg{received: 1, expected: 2})
	m = next.(browseModel)

	require.Len(t, m.lines, 3)
	assert.Equal(t, "[waypoints, 2 records]", m.lines[0])
	assert.Contains(t, m.lines[1], "HOME01")
	assert.Equal(t, "[end transfer, 1/2 records]", m.lines[2])
	assert.Equal(t, 1, m.received)
	assert.True(t, m.events.entries[len(m.events.entries)-1].isError)
}

func TestBrowseModel_TransportFailure(t *testing.T) {
	m, _ := newTestBrowseModel(t)
	m.busy = true

	list := records.NewTransferList(records.CmdTransferTracks)
	list.Add(link.PidTrackData, records.TrackPointD300{Position: records.PositionFromDegrees(1, 2)})

	next, _ := m.Update(operationDoneMsg{
		op:   operation{kind: records.CmdTransferTracks},
		list: list,
		err:  fmt.Errorf("%w: read: closed", device.ErrTransportFailure),
	})
	m = next.(browseModel)

	assert.False(t, m.busy)
	assert.True(t, m.connectionLost)
	assert.Same(t, list, m.lists[records.CmdTransferTracks])
}

// gatedSender holds its first Send until gate is closed
type gatedSender struct {
	calls   atomic.Int32
	entered chan struct{}
	gate    chan struct{}

	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *gatedSender) Send(msg tea.Msg) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func TestSessionManager_EndTransferAfterPendingBatch(t *testing.T) {
	out := &gatedSender{entered: make(chan struct{}), gate: make(chan struct{})}
	sm := &sessionManager{p: out, done: make(chan struct{}), batch: make(chan recordMsg, 8)}
	wp := func(ident string) recordMsg {
		return recordMsg{item: records.Item{ID: link.PidWaypointData, Record: records.WaypointD100{Ident: ident}}}
	}

	sm.batch <- wp("A")
	sm.batch <- wp("B")
	go sm.flush()
	<-out.entered

	// A and B are drained but not yet sent when the transfer ends
	sm.batch <- wp("C")
	ended := make(chan struct{})
	go func() {
		sm.endTransfer(3, 3)
		close(ended)
	}()

	close(out.gate)
	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("end of transfer never sent")
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	require.Len(t, out.msgs, 3)
	assert.Len(t, out.msgs[0], 2)
	assert.Equal(t, recordBatchMsg{wp("C")}, out.msgs[1])
	assert.Equal(t, transferEndMsg{received: 3, expected: 3}, out.msgs[2])
}
