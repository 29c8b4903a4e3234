// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

// Observer receives link events. Implementations must be cheap; they run
// inline with frame processing.
type Observer interface {
	FrameSent(id byte, length int)
	FrameReceived(id byte, length int)
	FrameError(err error)
	Retry(id byte)
	Nak(id byte)
}

type nopObserver struct{}

func (nopObserver) FrameSent(byte, int)     {}
func (nopObserver) FrameReceived(byte, int) {}
func (nopObserver) FrameError(error)        {}
func (nopObserver) Retry(byte)              {}
func (nopObserver) Nak(byte)                {}

type multiObserver []Observer

// Observers fans events out to every non-nil observer.
func Observers(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) FrameSent(id byte, length int) {
	for _, o := range m {
		o.FrameSent(id, length)
	}
}

func (m multiObserver) FrameReceived(id byte, length int) {
	for _, o := range m {
		o.FrameReceived(id, length)
	}
}

func (m multiObserver) FrameError(err error) {
	for _, o := range m {
		o.FrameError(err)
	}
}

func (m multiObserver) Retry(id byte) {
	for _, o := range m {
		o.Retry(id)
	}
}

func (m multiObserver) Nak(id byte) {
	for _, o := range m {
		o.Nak(id)
	}
}
