// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import "github.com/Thermoquad/garlink/pkg/records"

// Consumer receives a download as it arrives
type Consumer interface {
	// TransferBegin is called for the transfer begin record
	TransferBegin(kind records.Command, count int)
	// Record is called for every decoded record, Raw ones included
	Record(item records.Item)
	// TransferEnd is called when the transfer end (or the UTC record) was
	// received.
	TransferEnd(received, expected int)
}

// ConsumerFuncs adapts plain functions to a Consumer. Nil fields are
// skipped.
type ConsumerFuncs struct {
	Begin func(kind records.Command, count int)
	Item  func(item records.Item)
	End   func(received, expected int)
}

func (c ConsumerFuncs) TransferBegin(kind records.Command, count int) {
	if c.Begin != nil {
		c.Begin(kind, count)
	}
}

func (c ConsumerFuncs) Record(item records.Item) {
	if c.Item != nil {
		c.Item(item)
	}
}

func (c ConsumerFuncs) TransferEnd(received, expected int) {
	if c.End != nil {
		c.End(received, expected)
	}
}
