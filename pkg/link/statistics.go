// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of link statistics
type Counters struct {
	StartTime time.Time

	FramesSent     uint64
	FramesReceived uint64
	BytesSent      uint64
	BytesReceived  uint64
	ChecksumErrors uint64
	FramingErrors  uint64
	OversizeFrames uint64
	StalledFrames  uint64
	Retries        uint64
	Naks           uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// Errors returns the total of all frame errors
func (c Counters) Errors() uint64 {
	return c.ChecksumErrors + c.FramingErrors + c.OversizeFrames + c.StalledFrames
}

// Statistics tracks frame counts and error rates. It is an Observer and
// is safe to read from another goroutine.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{c: Counters{StartTime: time.Now()}}
}

func (s *Statistics) FrameSent(id byte, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.FramesSent++
	s.c.BytesSent += uint64(length)
}

func (s *Statistics) FrameReceived(id byte, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.FramesReceived++
	s.c.BytesReceived += uint64(length)
}

func (s *Statistics) FrameError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ce *ChecksumError
	switch {
	case errors.As(err, &ce):
		s.c.ChecksumErrors++
	case errors.Is(err, ErrFrameTooLarge):
		s.c.OversizeFrames++
	case errors.Is(err, ErrFrameStalled):
		s.c.StalledFrames++
	default:
		s.c.FramingErrors++
	}
}

func (s *Statistics) Retry(id byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Retries++
}

func (s *Statistics) Nak(id byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Naks++
}

// Snapshot returns the counters with rates calculated
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	c := s.c
	s.mu.Unlock()

	elapsed := time.Since(c.StartTime).Seconds()
	if elapsed > 0 {
		c.FrameRate = float64(c.FramesSent+c.FramesReceived) / elapsed
		c.ErrorRate = float64(c.Errors()) / elapsed
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// String returns a formatted statistics summary
func (c Counters) String() string {
	total := c.FramesSent + c.FramesReceived
	var errorPercent float64
	if total > 0 {
		errorPercent = float64(c.Errors()) * 100.0 / float64(total)
	}

	elapsed := time.Since(c.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames Sent:     %8d (%d bytes)\n", c.FramesSent, c.BytesSent)
	result += fmt.Sprintf("Frames Received: %8d (%d bytes)\n", c.FramesReceived, c.BytesReceived)

	if c.Errors() > 0 {
		result += fmt.Sprintf("Frame Errors:    %8d (%.1f%%)\n", c.Errors(), errorPercent)
		if c.ChecksumErrors > 0 {
			result += fmt.Sprintf("  Checksum:         %5d\n", c.ChecksumErrors)
		}
		if c.FramingErrors > 0 {
			result += fmt.Sprintf("  Framing:          %5d\n", c.FramingErrors)
		}
		if c.OversizeFrames > 0 {
			result += fmt.Sprintf("  Oversize:         %5d\n", c.OversizeFrames)
		}
		if c.StalledFrames > 0 {
			result += fmt.Sprintf("  Stalled:          %5d\n", c.StalledFrames)
		}
	}
	if c.Retries > 0 || c.Naks > 0 {
		result += fmt.Sprintf("Retries:         %8d\n", c.Retries)
		result += fmt.Sprintf("Naks:            %8d\n", c.Naks)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", c.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", c.ErrorRate)
	result += "=====================================\n"

	return result
}
