// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the rate handheld units use out of the box.
const DefaultBaudRate = 9600

// serialConn wraps a serial port
type serialConn struct {
	port serial.Port
}

func (s *serialConn) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *serialConn) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialConn) Close() error {
	return s.port.Close()
}

func (s *serialConn) SetReadTimeout(t time.Duration) error {
	if t < 0 {
		t = serial.NoTimeout
	}
	return s.port.SetReadTimeout(t)
}

// OpenSerial opens a serial port at 8N1 and wraps it in a Port.
func OpenSerial(path string, baudRate int, opts ...Option) (*Port, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	// Drop whatever the unit sent before we were listening
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to reset serial port %s: %w", path, err)
	}

	return NewPort(&serialConn{port: port}, path, opts...), nil
}

// ListSerialPorts returns the serial ports present on the system.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
