// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/transport"
)

// peer is a scripted device. Every frame the session writes is decoded,
// recorded and handed to respond, which queues the device's answer.
// Reads with nothing queued time out at once.
type peer struct {
	t       *testing.T
	in      []byte
	frames  []link.Frame
	respond func(p *peer, f link.Frame)
	claimed bool
	closed  bool
}

func newPeer(t *testing.T, respond func(p *peer, f link.Frame)) *peer {
	return &peer{t: t, respond: respond}
}

func (p *peer) ReadByte(timeout time.Duration) (byte, error) {
	if p.closed {
		return 0, transport.ErrClosed
	}
	if len(p.in) == 0 {
		return 0, transport.ErrTimeout
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func (p *peer) Write(data []byte) error {
	if p.closed {
		return transport.ErrClosed
	}
	f, err := link.DecodeFrame(data)
	require.NoError(p.t, err)
	p.frames = append(p.frames, *f)
	if p.respond != nil {
		p.respond(p, *f)
	}
	return nil
}

func (p *peer) Close() error {
	p.closed = true
	return nil
}

func (p *peer) Debug() int   { return 0 }
func (p *peer) Name() string { return "peer" }

func (p *peer) Claim() bool {
	if p.claimed {
		return false
	}
	p.claimed = true
	return true
}

func (p *peer) Release() {
	p.claimed = false
}

// send queues a frame for the session to read
func (p *peer) send(id byte, payload []byte) {
	frame, err := link.EncodeFrame(id, payload)
	require.NoError(p.t, err)
	p.in = append(p.in, frame...)
}

// sendCorrupt queues a frame whose first payload byte was altered
func (p *peer) sendCorrupt(id byte, payload []byte) {
	frame, err := link.EncodeFrame(id, payload)
	require.NoError(p.t, err)
	frame[3] ^= 0x01
	p.in = append(p.in, frame...)
}

func (p *peer) ack(id byte) { p.send(link.PidAck, []byte{id, 0}) }
func (p *peer) nak(id byte) { p.send(link.PidNak, []byte{id, 0}) }

// sent returns the ids of the frames the session wrote
func (p *peer) sent() []byte {
	ids := make([]byte, 0, len(p.frames))
	for _, f := range p.frames {
		ids = append(ids, f.ID)
	}
	return ids
}

// data returns the frames the session wrote, without acks and naks
func (p *peer) data() []link.Frame {
	var out []link.Frame
	for _, f := range p.frames {
		if f.ID != link.PidAck && f.ID != link.PidNak {
			out = append(out, f)
		}
	}
	return out
}
