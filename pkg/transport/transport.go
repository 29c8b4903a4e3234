// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"io"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/loopholelabs/logging/types"
)

// BufferSize is the size of the read-ahead buffer. One underlying read
// refills at most this many bytes.
const BufferSize = 512

// DumpLevel is the debug level at which every read and write is passed to
// the dump function.
const DumpLevel = 5

// Block makes ReadByte wait without a deadline.
const Block time.Duration = -1

// Transport is a byte stream to a device with per-read timeouts.
type Transport interface {
	// ReadByte returns the next byte. A zero timeout polls, a negative
	// timeout blocks. ErrTimeout is returned when nothing arrived in time.
	ReadByte(timeout time.Duration) (byte, error)
	// Write sends all of p or fails.
	Write(p []byte) error
	Close() error
	// Debug is the verbosity level fixed when the transport was opened.
	Debug() int
	Name() string
}

// Conn is the raw connection below a Port. Read must return (0, nil) only
// when the read timeout set by SetReadTimeout expired; any other short read
// carries an error.
type Conn interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Option configures a Port
type Option func(*Port)

// WithDebug sets the verbosity level.
func WithDebug(level int) Option {
	return func(p *Port) {
		p.debug = level
	}
}

// WithDump replaces the byte dump function used at DumpLevel.
func WithDump(fn DumpFunc) Option {
	return func(p *Port) {
		p.dump = fn
	}
}

// WithLogger sets the logger used for transport failures.
func WithLogger(log types.Logger) Option {
	return func(p *Port) {
		p.log = log
	}
}

// Port is a Transport over a Conn with a read-ahead buffer.
type Port struct {
	conn  Conn
	name  string
	debug int
	dump  DumpFunc
	log   types.Logger

	buf  [BufferSize]byte
	head int
	tail int

	claimed atomic.Bool
	closed  atomic.Bool
}

// NewPort wraps conn. The name is used in errors and logs.
func NewPort(conn Conn, name string, opts ...Option) *Port {
	p := &Port{
		conn: conn,
		name: name,
		dump: Display(nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the device path or URL the port was opened on
func (p *Port) Name() string {
	return p.name
}

// Debug returns the verbosity level
func (p *Port) Debug() int {
	return p.debug
}

// Buffered returns the number of bytes read ahead but not yet consumed.
func (p *Port) Buffered() int {
	return p.tail - p.head
}

// ReadByte returns one byte from the read-ahead buffer, refilling it from
// the connection when it is empty.
func (p *Port) ReadByte(timeout time.Duration) (byte, error) {
	if p.head == p.tail {
		if err := p.fill(timeout); err != nil {
			return 0, err
		}
	}
	b := p.buf[p.head]
	p.head++
	return b, nil
}

func (p *Port) fill(timeout time.Duration) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if timeout < 0 {
		timeout = Block
	}
	if err := p.conn.SetReadTimeout(timeout); err != nil {
		return p.fail("set read timeout", err)
	}

	for {
		n, err := p.conn.Read(p.buf[:])
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return p.fail("read", err)
		}
		if n == 0 {
			return ErrTimeout
		}
		p.head = 0
		p.tail = n
		if p.debug >= DumpLevel && p.dump != nil {
			p.dump('<', p.buf[:n])
		}
		return nil
	}
}

// Write loops until the connection accepted every byte.
func (p *Port) Write(data []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if p.debug >= DumpLevel && p.dump != nil {
		p.dump('>', data)
	}
	for len(data) > 0 {
		n, err := p.conn.Write(data)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return p.fail("write", err)
		}
		if n <= 0 {
			return p.fail("write", io.ErrShortWrite)
		}
		data = data[n:]
	}
	return nil
}

// Close closes the underlying connection. Closing twice is a no-op.
func (p *Port) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if err := p.conn.Close(); err != nil {
		return p.fail("close", err)
	}
	return nil
}

// Claim marks the port as owned by a session. It returns false if another
// owner already holds it.
func (p *Port) Claim() bool {
	return p.claimed.CompareAndSwap(false, true)
}

// Release gives up a claim taken with Claim.
func (p *Port) Release() {
	p.claimed.Store(false)
}

func (p *Port) fail(op string, err error) error {
	if p.log != nil {
		p.log.Debug().Str("port", p.name).Str("op", op).Err(err).Msg("transport failure")
	}
	return &Error{Op: op, Name: p.name, Err: err}
}
