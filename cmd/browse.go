// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/garlink/pkg/device"
	"github.com/Thermoquad/garlink/pkg/records"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Interactive TUI for transfers",
	Long: `Pick a transfer from a list and watch the records arrive.

The TUI identifies the unit first, then offers waypoint, route and track
downloads, the unit's clock, and an abort. Link statistics and an event log
are shown below the records. Downloaded lists can be saved to an archive
with 's'.

Keys: arrows/j/k select, enter start, s save, r reconnect, q quit.

Supports both serial and WebSocket connections.`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

// sessionManager runs device operations for the TUI on one goroutine and
// reports back through tea messages. The session is only touched here.
type sessionManager struct {
	conn *connection
	mu   sync.RWMutex
	p    sender
	ops  chan operation
	done chan struct{}

	batch   chan recordMsg
	flushMu sync.Mutex
}

// sender is the part of *tea.Program the session manager uses
type sender interface {
	Send(msg tea.Msg)
}

// operation is one request from the TUI
type operation struct {
	kind    records.Command
	time    bool
	abort   bool
	connect bool
	reopen  bool
}

// Messages
type connectedMsg struct {
	connInfo string
	product  records.Product
	caps     records.Capabilities
	conn     *connection
}
type connectFailedMsg struct{ err error }
type transferBeginMsg struct {
	kind  records.Command
	count int
}
type recordMsg struct {
	item records.Item
}
type recordBatchMsg []recordMsg
type transferEndMsg struct {
	received int
	expected int
}
type operationDoneMsg struct {
	op   operation
	list *records.TransferList
	utc  *records.UTCTime
	err  error
}

func runBrowse(cmd *cobra.Command, args []string) error {
	conn, err := openSession(nil)
	if err != nil {
		return err
	}

	sm := &sessionManager{
		conn:  conn,
		ops:   make(chan operation, 1),
		done:  make(chan struct{}),
		batch: make(chan recordMsg, 256),
	}

	m := initialBrowseModel(sm, conn)
	p := tea.NewProgram(m, tea.WithAltScreen())
	sm.p = p

	go sm.run(cmd.Context())
	go sm.batchLoop()
	sm.ops <- operation{connect: true}

	_, err = p.Run()
	close(sm.done)
	sm.getConn().Close()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// request queues an operation unless one is already waiting
func (sm *sessionManager) request(op operation) bool {
	select {
	case sm.ops <- op:
		return true
	default:
		return false
	}
}

func (sm *sessionManager) getConn() *connection {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.conn
}

func (sm *sessionManager) setConn(conn *connection) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.conn = conn
}

func (sm *sessionManager) run(ctx context.Context) {
	for {
		select {
		case <-sm.done:
			return
		case op := <-sm.ops:
			sm.execute(ctx, op)
		}
	}
}

func (sm *sessionManager) execute(ctx context.Context, op operation) {
	conn := sm.getConn()
	s := conn.session

	switch {
	case op.connect:
		if op.reopen {
			if conn = sm.reconnect(); conn == nil {
				return
			}
			s = conn.session
		}
		product, caps, err := s.Connect(ctx)
		if err != nil {
			sm.p.Send(connectFailedMsg{err: err})
			return
		}
		sm.p.Send(connectedMsg{connInfo: conn.info, product: product, caps: caps, conn: conn})

	case op.abort:
		sm.p.Send(operationDoneMsg{op: op, err: s.Abort(ctx)})

	case op.time:
		t, err := s.DownloadTime(ctx)
		msg := operationDoneMsg{op: op, err: err}
		if err == nil {
			msg.utc = &t
		}
		sm.p.Send(msg)

	default:
		consumer := device.ConsumerFuncs{
			Begin: func(kind records.Command, count int) {
				sm.p.Send(transferBeginMsg{kind: kind, count: count})
			},
			Item: func(item records.Item) {
				select {
				case sm.batch <- recordMsg{item: item}:
				case <-sm.done:
				}
			},
			End: sm.endTransfer,
		}
		list, err := s.Download(ctx, op.kind, consumer)
		sm.flush()
		sm.p.Send(operationDoneMsg{op: op, list: list, err: err})
	}
}

// batchLoop sends records to the TUI at a fixed rate
func (sm *sessionManager) batchLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			sm.flush()
		}
	}
}

// endTransfer sends the records still queued, then the end of the transfer
func (sm *sessionManager) endTransfer(received, expected int) {
	sm.flush()
	sm.p.Send(transferEndMsg{received: received, expected: expected})
}

// flush drains and sends queued records. Flushes run one at a time so a
// batch is never sent after records queued behind it.
func (sm *sessionManager) flush() {
	sm.flushMu.Lock()
	defer sm.flushMu.Unlock()

	var batch recordBatchMsg

drainLoop:
	for {
		select {
		case msg := <-sm.batch:
			batch = append(batch, msg)
		default:
			break drainLoop
		}
	}

	if len(batch) > 0 {
		sm.p.Send(batch)
	}
}

// reconnect reopens the transport with exponential backoff. Returns nil
// if shutdown was requested during reconnection.
func (sm *sessionManager) reconnect() *connection {
	sm.getConn().Close()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-sm.done:
			return nil
		case <-time.After(backoff):
		}

		conn, err := openSession(nil)
		if err == nil {
			sm.setConn(conn)
			return conn
		}
		sm.p.Send(connectFailedMsg{err: err})

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
