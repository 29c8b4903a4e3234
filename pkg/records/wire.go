// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Record is one decoded application unit. Records are values; the codec
// never changes one after creating it.
type Record interface {
	// DataType is the wire layout of the record.
	DataType() DataType
	put(w *writer)
}

// reader pulls little-endian fields off a payload. A field that does not
// fit in what is left decodes to its absent value and exhausts the reader,
// so no later field is read either.
type reader struct {
	b   []byte
	off int
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) take(n int) []byte {
	if r.off+n > len(r.b) {
		r.off = len(r.b)
		return nil
	}
	field := r.b[r.off : r.off+n]
	r.off += n
	return field
}

func (r *reader) u8() uint8 {
	if f := r.take(1); f != nil {
		return f[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if f := r.take(2); f != nil {
		return binary.LittleEndian.Uint16(f)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if f := r.take(4); f != nil {
		return binary.LittleEndian.Uint32(f)
	}
	return 0
}

func (r *reader) f32() float32 {
	if f := r.take(4); f != nil {
		return Float32(f)
	}
	return Unknown
}

func (r *reader) position() Position {
	lat := Semicircle(int32(r.u32()))
	lon := Semicircle(int32(r.u32()))
	return Position{Lat: lat, Lon: lon}
}

// fixed reads a space padded field of n bytes.
func (r *reader) fixed(n int) string {
	f := r.take(n)
	if f == nil {
		return ""
	}
	if i := bytes.IndexByte(f, 0); i >= 0 {
		f = f[:i]
	}
	return strings.TrimRight(string(f), " ")
}

// raw copies n bytes into dst.
func (r *reader) raw(dst []byte) {
	if f := r.take(len(dst)); f != nil {
		copy(dst, f)
	}
}

// cstring reads a NUL terminated string. A missing terminator ends the
// string at the end of the payload.
func (r *reader) cstring() string {
	if r.off >= len(r.b) {
		return ""
	}
	rest := r.b[r.off:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		r.off += i + 1
		return string(rest[:i])
	}
	r.off = len(r.b)
	return string(rest)
}

// writer appends little-endian fields to a growing payload.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) f32(v float32) {
	w.buf = AppendFloat32(w.buf, v)
}

func (w *writer) position(p Position) {
	w.u32(uint32(p.Lat))
	w.u32(uint32(p.Lon))
}

// fixed writes s uppercased, truncated or space padded to n bytes.
func (w *writer) fixed(s string, n int) {
	s = strings.ToUpper(s)
	if len(s) > n {
		s = s[:n]
	}
	w.buf = append(w.buf, s...)
	for i := len(s); i < n; i++ {
		w.buf = append(w.buf, ' ')
	}
}

func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) cstring(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
