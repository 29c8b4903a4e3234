// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/loopholelabs/logging/types"

	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/records"
	"github.com/Thermoquad/garlink/pkg/transport"
)

// claimer is implemented by transports that allow one session at a time
type claimer interface {
	Claim() bool
	Release()
}

// Session talks to one device over one transport. Operations are
// synchronous and must not overlap. The capability set is fixed once
// negotiation has run.
type Session struct {
	id      uuid.UUID
	t       transport.Transport
	link    *link.Link
	opts    options
	log     types.Logger
	debug   int
	claimed bool

	mu         sync.Mutex
	state      State
	caps       records.Capabilities
	codec      *records.Codec
	negotiated bool
	product    *records.Product
	protocols  []records.Protocol
}

// Open starts a session on t. It fails with ErrTransportBusy when another
// session already holds t.
func Open(t transport.Transport, opts ...Option) (*Session, error) {
	o := options{timeouts: DefaultTimeouts()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		id:    uuid.New(),
		t:     t,
		opts:  o,
		log:   o.log,
		debug: t.Debug(),
		state: StateIdle,
		caps:  records.DefaultCapabilities(),
	}
	s.codec = records.NewCodec(s.caps)

	if c, ok := t.(claimer); ok {
		if !c.Claim() {
			return nil, fmt.Errorf("%w: %s", ErrTransportBusy, t.Name())
		}
		s.claimed = true
	}

	linkOpts := []link.Option{link.WithRetries(o.sendRetries, o.ackRetries)}
	if o.observer != nil {
		linkOpts = append(linkOpts, link.WithObserver(o.observer))
	}
	if o.log != nil {
		linkOpts = append(linkOpts, link.WithLogger(o.log))
	}
	s.link = link.New(t, linkOpts...)

	if s.log != nil {
		s.log.Debug().
			Str("session", s.id.String()).
			Str("transport", t.Name()).
			Int("debug", s.debug).
			Msg("session opened")
	}
	return s, nil
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id.String()
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capabilities returns the active capability set
func (s *Session) Capabilities() records.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Protocols returns the protocol array the device sent, if any
func (s *Session) Protocols() []records.Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]records.Protocol(nil), s.protocols...)
}

// Product returns the identification from the last Identify, or nil
func (s *Session) Product() *records.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product
}

// Codec returns the record codec for the active capability set
func (s *Session) Codec() *records.Codec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec
}

// begin moves a resting session into an operation state.
func (s *Session) begin(op string, next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return opError(op, ErrSessionClosed)
	}
	if !s.state.resting() {
		return opError(op, fmt.Errorf("%w: %s", ErrBusy, s.state))
	}
	s.state = next
	return nil
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = next
	}
}

// finish returns to Ready once negotiated, Idle before.
func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	if s.negotiated {
		s.state = StateReady
	} else {
		s.state = StateIdle
	}
}

func (s *Session) nak(id byte) {
	if err := s.link.SendNak(id); err != nil && s.log != nil {
		s.log.Debug().Str("session", s.id.String()).Str("packet", link.PacketName(id)).Err(err).Msg("failed to send nak")
	}
}

// Identify asks the device for its product id, software version and
// description.
func (s *Session) Identify(ctx context.Context) (records.Product, error) {
	if err := s.begin("identify", StateIdentifying); err != nil {
		return records.Product{}, err
	}
	defer s.finish()

	product, err := s.identify(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Error().Str("session", s.id.String()).Err(err).Msg("identify failed")
		}
		return records.Product{}, opError("identify", err)
	}

	s.mu.Lock()
	s.product = &product
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info().
			Str("session", s.id.String()).
			Uint16("product", product.ID).
			Str("version", product.VersionString()).
			Str("description", product.Description).
			Msg("device identified")
	}
	return product, nil
}

func (s *Session) identify(ctx context.Context) (records.Product, error) {
	var last error
	for attempt := 1; attempt <= identifyAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return records.Product{}, err
		}
		if attempt > 1 && s.log != nil {
			s.log.Debug().Str("session", s.id.String()).Int("attempt", attempt).Err(last).Msg("retry: product request")
		}

		if err := s.link.SendAndWait(link.PidProductRequest, nil, s.opts.timeouts.Ack); err != nil {
			if link.IsFatal(err) {
				return records.Product{}, classify(err)
			}
			last = err
			continue
		}

		frame, err := s.link.Receive(s.opts.timeouts.Product)
		if err != nil {
			if link.IsFatal(err) {
				return records.Product{}, classify(err)
			}
			last = err
			if id, ok := corruptFrame(err); ok {
				s.nak(id)
			}
			continue
		}

		if frame.ID != link.PidProductResponse {
			s.nak(frame.ID)
			last = fmt.Errorf("unexpected %s frame", link.PacketName(frame.ID))
			continue
		}

		if err := s.link.SendAck(frame.ID); err != nil {
			return records.Product{}, classify(err)
		}
		return records.DecodeProduct(frame.Payload), nil
	}

	return records.Product{}, fmt.Errorf("%w: product request failed after %d attempts: %w", ErrNoResponse, identifyAttempts, last)
}

// NegotiateCapabilities waits for the protocol array a unit sends after
// identifying and applies it. Units that send none keep the default set,
// which is not an error. It runs at most once per session.
func (s *Session) NegotiateCapabilities(ctx context.Context) (records.Capabilities, error) {
	s.mu.Lock()
	if s.negotiated {
		caps := s.caps
		s.mu.Unlock()
		return caps, nil
	}
	s.mu.Unlock()

	if err := s.begin("negotiate", StateNegotiating); err != nil {
		return records.Capabilities{}, err
	}
	defer s.finish()

	protocols, err := s.receiveProtocols(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Error().Str("session", s.id.String()).Err(err).Msg("capability negotiation failed")
		}
		return records.Capabilities{}, opError("negotiate", err)
	}

	caps := records.DefaultCapabilities()
	if protocols != nil {
		var assignments []records.Assignment
		caps, assignments = caps.Apply(protocols)
		s.logAssignments(assignments)
	} else if s.log != nil {
		s.log.Info().Str("session", s.id.String()).Msg("no protocol array, using default capabilities")
	}

	s.mu.Lock()
	s.caps = caps
	s.codec = records.NewCodec(caps)
	s.protocols = protocols
	s.negotiated = true
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info().Str("session", s.id.String()).Str("capabilities", caps.String()).Msg("capabilities negotiated")
	}
	return caps, nil
}

// receiveProtocols returns nil protocols when the device sent none.
func (s *Session) receiveProtocols(ctx context.Context) ([]records.Protocol, error) {
	for attempt := 0; attempt < capabilityAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := s.link.Receive(s.opts.timeouts.Capability)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				return nil, nil
			}
			if link.IsFatal(err) {
				return nil, classify(err)
			}
			if id, ok := corruptFrame(err); ok {
				s.nak(id)
			}
			continue
		}

		if frame.ID != link.PidCapabilities {
			s.nak(frame.ID)
			continue
		}

		if err := s.link.SendAck(frame.ID); err != nil {
			return nil, classify(err)
		}
		protocols, err := records.ParseProtocols(frame.Payload)
		if err != nil {
			return nil, err
		}
		if protocols == nil {
			protocols = []records.Protocol{}
		}
		return protocols, nil
	}
	return nil, nil
}

func (s *Session) logAssignments(assignments []records.Assignment) {
	if s.log == nil {
		return
	}
	for _, a := range assignments {
		switch {
		case a.Repeated:
			s.log.Warn().
				Str("session", s.id.String()).
				Str("application", a.Application.String()).
				Str("data", a.Data.String()).
				Str("slot", a.Slot.String()).
				Msg("capability slot assigned twice, later entry wins")
		case !a.Assigned:
			s.log.Debug().
				Str("session", s.id.String()).
				Str("application", a.Application.String()).
				Str("data", a.Data.String()).
				Msg("data protocol ignored")
		default:
			s.log.Debug().
				Str("session", s.id.String()).
				Str("slot", a.Slot.String()).
				Str("data", a.Data.String()).
				Msg("capability assigned")
		}
	}
}

// Connect identifies the device and negotiates capabilities
func (s *Session) Connect(ctx context.Context) (records.Product, records.Capabilities, error) {
	product, err := s.Identify(ctx)
	if err != nil {
		return records.Product{}, records.Capabilities{}, err
	}
	caps, err := s.NegotiateCapabilities(ctx)
	if err != nil {
		return product, records.Capabilities{}, err
	}
	return product, caps, nil
}

// Close ends the session, releases the transport claim and closes the
// transport. It is safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	if s.claimed {
		s.t.(claimer).Release()
	}
	if s.log != nil {
		s.log.Debug().Str("session", s.id.String()).Msg("session closed")
	}
	return s.t.Close()
}
