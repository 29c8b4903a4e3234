// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"time"

	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/records"
	"github.com/loopholelabs/logging/types"
)

// Default waits, matching what the units expect
const (
	DefaultAckTimeout        = link.DefaultAckTimeout
	DefaultReceiveTimeout    = 2 * time.Second
	DefaultProductTimeout    = 5 * time.Second
	DefaultCapabilityTimeout = 3 * time.Second
)

const (
	identifyAttempts   = 5
	capabilityAttempts = 5

	// MaxChecksumFailures is the number of consecutive corrupt or
	// oversized frames after which a download gives up.
	MaxChecksumFailures = 5
)

// Timeouts groups the waits of a session. Zero fields keep their default.
type Timeouts struct {
	Ack        time.Duration
	Receive    time.Duration
	Product    time.Duration
	Capability time.Duration
}

// DefaultTimeouts returns the default waits
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Ack:        DefaultAckTimeout,
		Receive:    DefaultReceiveTimeout,
		Product:    DefaultProductTimeout,
		Capability: DefaultCapabilityTimeout,
	}
}

// Direction of a transfer
type Direction int

const (
	DirectionDownload Direction = iota
	DirectionUpload
)

func (d Direction) String() string {
	if d == DirectionUpload {
		return "upload"
	}
	return "download"
}

// Progress is reported once per record transferred
type Progress struct {
	Direction Direction
	Kind      records.Command
	Done      int
	Total     int
}

// Option configures a Session
type Option func(*options)

type options struct {
	timeouts    Timeouts
	sendRetries int
	ackRetries  int
	observer    link.Observer
	progress    func(Progress)
	log         types.Logger
}

// WithTimeouts overrides the non-zero waits in t
func WithTimeouts(t Timeouts) Option {
	return func(o *options) {
		if t.Ack > 0 {
			o.timeouts.Ack = t.Ack
		}
		if t.Receive > 0 {
			o.timeouts.Receive = t.Receive
		}
		if t.Product > 0 {
			o.timeouts.Product = t.Product
		}
		if t.Capability > 0 {
			o.timeouts.Capability = t.Capability
		}
	}
}

// WithRetries sets the send and ack retry bounds of the link
func WithRetries(send, ack int) Option {
	return func(o *options) {
		o.sendRetries = send
		o.ackRetries = ack
	}
}

// WithObserver receives link events, e.g. link.Statistics or metrics.
func WithObserver(obs link.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithProgress is called after every record of a transfer
func WithProgress(fn func(Progress)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithLogger sets the session logger. The link logs through it too.
func WithLogger(log types.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}
