// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package records

import (
	"fmt"
	"time"
)

// AnomalyType represents different kinds of record problems
type AnomalyType int

const (
	AnomalyPosition AnomalyType = iota
	AnomalyIdent
	AnomalyComment
	AnomalyTime
	AnomalyTooLarge
	AnomalyUnknownLayout
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyPosition:
		return "position"
	case AnomalyIdent:
		return "ident"
	case AnomalyComment:
		return "comment"
	case AnomalyTime:
		return "time"
	case AnomalyTooLarge:
		return "size"
	case AnomalyUnknownLayout:
		return "layout"
	default:
		return "unknown"
	}
}

// ValidationError represents a record validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// latest track time accepted by Validate, relative to now
const trackTimeSlack = 24 * time.Hour

// Validate checks a record before upload.
// Returns a slice of validation errors (empty if the record is fine)
func Validate(rec Record) []ValidationError {
	errors := []ValidationError{}

	if n := len(Marshal(rec)); n > MaxRecordSize {
		errors = append(errors, ValidationError{
			Type:    AnomalyTooLarge,
			Message: fmt.Sprintf("%s record is %d bytes (max %d)", rec.DataType(), n, MaxRecordSize),
			Details: map[string]interface{}{"length": n, "max": MaxRecordSize},
		})
	}

	switch r := rec.(type) {
	case Waypoint:
		errors = append(errors, validateWaypoint(r)...)
	case TrackPoint:
		errors = append(errors, validateTrackPoint(r)...)
	case Raw:
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownLayout,
			Message: fmt.Sprintf("%s record kept as raw bytes", r.Type),
			Details: map[string]interface{}{"type": uint16(r.Type)},
		})
	}

	return errors
}

func validatePosition(p Position) []ValidationError {
	lat, lon := p.Lat.Degrees(), p.Lon.Degrees()
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return []ValidationError{{
			Type:    AnomalyPosition,
			Message: fmt.Sprintf("Position out of range (lat=%f, lon=%f)", lat, lon),
			Details: map[string]interface{}{"lat": lat, "lon": lon},
		}}
	}
	return nil
}

// validIdentChar reports whether the older units accept c in a fixed ident.
// Letters are uppercased on encode.
func validIdentChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == ' ' || c == '-'
}

// validateWaypoint validates fields against the limits of the layout
func validateWaypoint(wp Waypoint) []ValidationError {
	f := wp.Fields()
	errors := validatePosition(f.Position)

	fixedLayout := wp.DataType() <= D104 || wp.DataType() == D107
	if f.Ident == "" {
		errors = append(errors, ValidationError{
			Type:    AnomalyIdent,
			Message: "Waypoint has no ident",
			Details: map[string]interface{}{},
		})
	}
	if fixedLayout {
		if len(f.Ident) > IdentLen {
			errors = append(errors, ValidationError{
				Type:    AnomalyIdent,
				Message: fmt.Sprintf("Ident %q longer than %d characters", f.Ident, IdentLen),
				Details: map[string]interface{}{"ident": f.Ident, "max": IdentLen},
			})
		}
		for i := 0; i < len(f.Ident); i++ {
			if !validIdentChar(f.Ident[i]) {
				errors = append(errors, ValidationError{
					Type:    AnomalyIdent,
					Message: fmt.Sprintf("Ident %q has invalid character %q", f.Ident, f.Ident[i]),
					Details: map[string]interface{}{"ident": f.Ident, "offset": i},
				})
				break
			}
		}
		if len(f.Comment) > CommentLen {
			errors = append(errors, ValidationError{
				Type:    AnomalyComment,
				Message: fmt.Sprintf("Comment longer than %d characters", CommentLen),
				Details: map[string]interface{}{"length": len(f.Comment), "max": CommentLen},
			})
		}
	}

	return errors
}

// validateTrackPoint validates position and timestamp
func validateTrackPoint(p TrackPoint) []ValidationError {
	f := p.Fields()
	errors := validatePosition(f.Position)

	if f.Time != 0 && f.Time != NoTimestamp {
		if t := f.Time.Time(); t.After(time.Now().Add(trackTimeSlack)) {
			errors = append(errors, ValidationError{
				Type:    AnomalyTime,
				Message: fmt.Sprintf("Track time %s is in the future", f.Time),
				Details: map[string]interface{}{"time": uint32(f.Time)},
			})
		}
	}

	return errors
}

// ValidateList validates every record of a list, keyed by item index
func ValidateList(l *TransferList) map[int][]ValidationError {
	result := make(map[int][]ValidationError)
	for i, item := range l.Items {
		if errs := Validate(item.Record); len(errs) > 0 {
			result[i] = errs
		}
	}
	return result
}
