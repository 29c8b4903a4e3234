// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"time"

	"github.com/Thermoquad/garlink/pkg/transport"
	"github.com/loopholelabs/logging/types"
)

// Port is the part of a transport the link needs.
type Port interface {
	ReadByte(timeout time.Duration) (byte, error)
	Write(p []byte) error
}

// Option configures a Link
type Option func(*Link)

// WithRetries sets the send_and_wait and wait_for_ack bounds.
func WithRetries(send, ack int) Option {
	return func(l *Link) {
		if send > 0 {
			l.sendRetries = send
		}
		if ack > 0 {
			l.ackRetries = ack
		}
	}
}

// WithByteTimeout sets the per-byte wait once a frame has started.
func WithByteTimeout(d time.Duration) Option {
	return func(l *Link) {
		l.byteTimeout = d
	}
}

// WithObserver receives frame and error events.
func WithObserver(o Observer) Option {
	return func(l *Link) {
		l.observer = o
	}
}

// WithLogger sets the logger for frame traces and retries.
func WithLogger(log types.Logger) Option {
	return func(l *Link) {
		l.log = log
	}
}

// Link sends and receives frames over a Port with ack/nak handling.
// It is not safe for concurrent use.
type Link struct {
	port        Port
	decoder     *Decoder
	sendRetries int
	ackRetries  int
	byteTimeout time.Duration
	observer    Observer
	log         types.Logger
}

// New creates a Link over port.
func New(port Port, opts ...Option) *Link {
	l := &Link{
		port:        port,
		decoder:     NewDecoder(),
		sendRetries: DefaultSendRetries,
		ackRetries:  DefaultAckRetries,
		byteTimeout: ByteTimeout,
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Send encodes and writes one frame without waiting for an ack.
func (l *Link) Send(id byte, payload []byte) error {
	frame, err := EncodeFrame(id, payload)
	if err != nil {
		return err
	}
	return l.write(id, payload, frame)
}

func (l *Link) write(id byte, payload, frame []byte) error {
	if err := l.port.Write(frame); err != nil {
		return err
	}
	l.observer.FrameSent(id, len(payload))
	if l.log != nil {
		l.log.Trace().Str("packet", PacketName(id)).Int("length", len(payload)).Msg("frame sent")
	}
	return nil
}

// SendAck acknowledges a frame of the given type. Byte 0 of the payload
// is the acknowledged id, byte 1 is padding.
func (l *Link) SendAck(id byte) error {
	return l.Send(PidAck, []byte{id, 0})
}

// SendNak rejects a frame of the given type.
func (l *Link) SendNak(id byte) error {
	return l.Send(PidNak, []byte{id, 0})
}

// Receive waits up to timeout for a frame to start, then reads it with
// ByteTimeout per byte. A timeout before the frame starts returns
// transport.ErrTimeout, also when only noise arrived; a stall after it
// started returns ErrFrameStalled.
func (l *Link) Receive(timeout time.Duration) (*Frame, error) {
	l.decoder.Reset()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		wait := timeout
		if l.decoder.InFrame() {
			wait = l.byteTimeout
		} else if !deadline.IsZero() {
			// Line noise between frames must not extend the wait
			if time.Now().After(deadline) {
				return nil, transport.ErrTimeout
			}
			wait = max(time.Until(deadline), 0)
		}

		b, err := l.port.ReadByte(wait)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) && l.decoder.InFrame() {
				l.decoder.Reset()
				l.observer.FrameError(ErrFrameStalled)
				return nil, ErrFrameStalled
			}
			return nil, err
		}

		frame, err := l.decoder.DecodeByte(b)
		if err != nil {
			l.observer.FrameError(err)
			if l.log != nil {
				l.log.Debug().Err(err).Msg("frame dropped")
			}
			if errors.Is(err, ErrFraming) {
				// Resynchronise on the next frame
				continue
			}
			return nil, err
		}
		if frame == nil {
			continue
		}

		l.observer.FrameReceived(frame.ID, len(frame.Payload))
		if l.log != nil {
			l.log.Trace().Str("packet", PacketName(frame.ID)).Int("length", len(frame.Payload)).Msg("frame received")
			if frame.LengthMismatch {
				l.log.Warn().Str("packet", PacketName(frame.ID)).Int("length", len(frame.Payload)).Msg("frame length byte disagrees with payload")
			}
		}
		return frame, nil
	}
}

// WaitForAck waits for the peer to ack or nak a frame of type id. Frames
// of other types and receive errors use up one of the attempts.
func (l *Link) WaitForAck(id byte, timeout time.Duration) error {
	for attempt := 0; attempt < l.ackRetries; attempt++ {
		frame, err := l.Receive(timeout)
		if err != nil {
			if IsFatal(err) {
				return err
			}
			continue
		}

		switch frame.ID {
		case PidAck:
			if len(frame.Payload) > 0 && frame.Payload[0] == id {
				return nil
			}
		case PidNak:
			if len(frame.Payload) == 0 || frame.Payload[0] == id {
				l.observer.Nak(id)
				return ErrNak
			}
		}
		if l.log != nil {
			l.log.Debug().Str("waiting", PacketName(id)).Str("packet", PacketName(frame.ID)).Msg("unexpected frame while waiting for ack")
		}
	}
	return ErrNoResponse
}

// SendAndWait sends a frame and waits for its ack, resending the whole
// frame on nak or silence. It gives up with a *SendError once the retry
// bound is spent. Transport failures and stalled frames return at once.
func (l *Link) SendAndWait(id byte, payload []byte, timeout time.Duration) error {
	frame, err := EncodeFrame(id, payload)
	if err != nil {
		return err
	}

	var last error
	for attempt := 1; attempt <= l.sendRetries; attempt++ {
		if attempt > 1 {
			l.observer.Retry(id)
			if l.log != nil {
				l.log.Debug().Str("packet", PacketName(id)).Int("attempt", attempt).Err(last).Msg("retry: send and wait")
			}
		}
		if err := l.write(id, payload, frame); err != nil {
			return err
		}

		err := l.WaitForAck(id, timeout)
		if err == nil {
			return nil
		}
		if IsFatal(err) {
			return err
		}
		last = err
	}

	return &SendError{ID: id, Attempts: l.sendRetries, Err: last}
}

// IsFatal reports whether err ends the session rather than one attempt.
func IsFatal(err error) bool {
	return transport.IsFatal(err) || errors.Is(err, ErrFrameStalled)
}
