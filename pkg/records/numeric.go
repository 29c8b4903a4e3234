// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Semicircle is the device angle unit: 2^31 semicircles are 180 degrees.
type Semicircle int32

const semicirclesPerDegree = float64(1<<31) / 180

// Degrees converts to floating point degrees
func (s Semicircle) Degrees() float64 {
	return float64(s) * 180 / float64(1<<31)
}

// SemicircleFromDegrees converts degrees, rounding to the nearest unit and
// clamping to the representable range.
func SemicircleFromDegrees(deg float64) Semicircle {
	v := math.Round(deg * semicirclesPerDegree)
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return Semicircle(v)
}

// Position is a latitude/longitude pair in semicircles.
type Position struct {
	Lat Semicircle
	Lon Semicircle
}

// PositionFromDegrees builds a Position from degrees
func PositionFromDegrees(lat, lon float64) Position {
	return Position{Lat: SemicircleFromDegrees(lat), Lon: SemicircleFromDegrees(lon)}
}

func (p Position) String() string {
	return fmt.Sprintf("%10f %11f", p.Lat.Degrees(), p.Lon.Degrees())
}

// unknownBits is the float pattern units use for "no value".
const unknownBits = 0x69045951

// Unknown is the float value meaning "no value" for altitude, depth and
// distance fields. It is also what absent float fields decode to.
var Unknown = math.Float32frombits(unknownBits)

// IsUnknown compares by bit pattern, so it is exact.
func IsUnknown(f float32) bool {
	return math.Float32bits(f) == unknownBits
}

// Float32 decodes a little-endian IEEE-754 single from b[0:4].
func Float32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// PutFloat32 encodes f little-endian into b[0:4].
func PutFloat32(b []byte, f float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(f))
}

// AppendFloat32 appends f little-endian.
func AppendFloat32(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
}

// Epoch is the zero of device timestamps, 1989-12-31 00:00:00 UTC.
var Epoch = time.Unix(631065600, 0).UTC()

// Timestamp is seconds since Epoch.
type Timestamp uint32

// NoTimestamp marks a track point without a valid time.
const NoTimestamp Timestamp = 0xFFFFFFFF

// Time converts to a time.Time. Zero and NoTimestamp give the zero Time.
func (t Timestamp) Time() time.Time {
	if t == 0 || t == NoTimestamp {
		return time.Time{}
	}
	return Epoch.Add(time.Duration(t) * time.Second)
}

// TimestampFrom converts a time.Time. Times before Epoch give 0.
func TimestampFrom(t time.Time) Timestamp {
	if t.IsZero() || t.Before(Epoch) {
		return 0
	}
	secs := t.Unix() - Epoch.Unix()
	if secs >= int64(NoTimestamp) {
		return NoTimestamp - 1
	}
	return Timestamp(secs)
}

func (t Timestamp) String() string {
	if tm := t.Time(); !tm.IsZero() {
		return tm.Format("2006-01-02 15:04:05")
	}
	return "unknown"
}
