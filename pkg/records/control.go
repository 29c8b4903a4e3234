// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"fmt"
	"time"
)

// Product is the identification a unit returns for a product request.
type Product struct {
	ID          uint16
	Version     uint16
	Description string
	Extra       []string
}

func (Product) DataType() DataType { return DNone }

func (p Product) put(w *writer) {
	w.u16(p.ID)
	w.u16(p.Version)
	w.cstring(p.Description)
	for _, s := range p.Extra {
		w.cstring(s)
	}
}

// VersionString formats the software version as major.minor, e.g. 390 is
// "3.90".
func (p Product) VersionString() string {
	return fmt.Sprintf("%d.%02d", p.Version/100, p.Version%100)
}

func (p Product) String() string {
	return fmt.Sprintf("%s (product %d, software %s)", p.Description, p.ID, p.VersionString())
}

// DecodeProduct decodes a product response payload
func DecodeProduct(payload []byte) Product {
	r := newReader(payload)
	p := Product{
		ID:          r.u16(),
		Version:     r.u16(),
		Description: r.cstring(),
	}
	for r.off < len(r.b) {
		if s := r.cstring(); s != "" {
			p.Extra = append(p.Extra, s)
		}
	}
	return p
}

// TransferBegin announces the number of records that follow.
type TransferBegin struct {
	Count uint16
}

func (TransferBegin) DataType() DataType { return DNone }

func (b TransferBegin) put(w *writer) { w.u16(b.Count) }

// TransferEnd closes a transfer. Command is the transfer kind, or
// CmdAbortTransfer when the sender gave up.
type TransferEnd struct {
	Command Command
}

func (TransferEnd) DataType() DataType { return DNone }

func (e TransferEnd) put(w *writer) { w.u16(uint16(e.Command)) }

// CommandRecord is the payload of a command packet.
type CommandRecord struct {
	Command Command
}

func (CommandRecord) DataType() DataType { return DNone }

func (c CommandRecord) put(w *writer) { w.u16(uint16(c.Command)) }

// UTCTime is the D600 date and time record.
type UTCTime struct {
	Month  uint8
	Day    uint8
	Year   uint16
	Hour   uint16
	Minute uint8
	Second uint8
}

func (UTCTime) DataType() DataType { return D600 }

func (u UTCTime) put(w *writer) {
	w.u8(u.Month)
	w.u8(u.Day)
	w.u16(u.Year)
	w.u16(u.Hour)
	w.u8(u.Minute)
	w.u8(u.Second)
}

// Time converts to a UTC time.Time
func (u UTCTime) Time() time.Time {
	return time.Date(int(u.Year), time.Month(u.Month), int(u.Day),
		int(u.Hour), int(u.Minute), int(u.Second), 0, time.UTC)
}

// UTCTimeFrom converts a time.Time
func UTCTimeFrom(t time.Time) UTCTime {
	t = t.UTC()
	return UTCTime{
		Month:  uint8(t.Month()),
		Day:    uint8(t.Day()),
		Year:   uint16(t.Year()),
		Hour:   uint16(t.Hour()),
		Minute: uint8(t.Minute()),
		Second: uint8(t.Second()),
	}
}

func (u UTCTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", u.Year, u.Month, u.Day, u.Hour, u.Minute, u.Second)
}

func decodeUTCTime(payload []byte) UTCTime {
	r := newReader(payload)
	return UTCTime{
		Month:  r.u8(),
		Day:    r.u8(),
		Year:   r.u16(),
		Hour:   r.u16(),
		Minute: r.u8(),
		Second: r.u8(),
	}
}

// Raw keeps a payload the codec could not decode. It encodes back to the
// same bytes.
type Raw struct {
	ID   byte
	Type DataType
	Data []byte
}

func (r Raw) DataType() DataType { return r.Type }

func (r Raw) put(w *writer) { w.raw(r.Data) }
