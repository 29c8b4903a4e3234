// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

// State is the position of a session in its lifecycle
type State int

const (
	StateIdle State = iota
	StateIdentifying
	StateNegotiating
	StateReady
	StateCommanding
	StateDownloading
	StateUploading
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIdentifying:
		return "identifying"
	case StateNegotiating:
		return "negotiating"
	case StateReady:
		return "ready"
	case StateCommanding:
		return "commanding"
	case StateDownloading:
		return "downloading"
	case StateUploading:
		return "uploading"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// resting reports whether a new operation may start from s
func (s State) resting() bool {
	return s == StateIdle || s == StateReady
}
