// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/garlink/pkg/device"
	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/transport"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("GARLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket transport based on
// flags. The second result describes the connection for headers.
func OpenConnection() (*transport.Port, string, error) {
	opts := []transport.Option{
		transport.WithDebug(debugLevel),
		transport.WithLogger(log),
	}

	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		port, err := transport.DialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify, opts...)
		if err != nil {
			return nil, "", err
		}
		return port, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		port, err := transport.OpenSerial(portName, baudRate, opts...)
		if err != nil {
			return nil, "", err
		}
		return port, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// connection is an open session together with its link statistics
type connection struct {
	name    string
	info    string
	session *device.Session
	stats   *link.Statistics
}

// openSession opens the transport and starts a device session with the
// configured timeouts, retries, logger and metrics.
func openSession(progress func(device.Progress)) (*connection, error) {
	port, info, err := OpenConnection()
	if err != nil {
		return nil, exitWith(2, "connection error: %w", err)
	}

	timeouts, err := cfg.DeviceTimeouts()
	if err != nil {
		port.Close()
		return nil, err
	}

	stats := link.NewStatistics()
	observer := link.Observer(stats)
	if linkMetric != nil {
		observer = link.Observers(stats, linkMetric.LinkObserver(port.Name()))
		progress = chainProgress(progress, linkMetric.Progress(port.Name()))
	}

	opts := []device.Option{
		device.WithTimeouts(timeouts),
		device.WithRetries(cfg.SendRetries(), cfg.AckRetries()),
		device.WithObserver(observer),
		device.WithLogger(log),
	}
	if progress != nil {
		opts = append(opts, device.WithProgress(progress))
	}

	s, err := device.Open(port, opts...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return &connection{name: port.Name(), info: info, session: s, stats: stats}, nil
}

func chainProgress(fns ...func(device.Progress)) func(device.Progress) {
	return func(p device.Progress) {
		for _, fn := range fns {
			if fn != nil {
				fn(p)
			}
		}
	}
}

// connect identifies the unit and negotiates capabilities, printing both
func (c *connection) connect(ctx context.Context) error {
	product, caps, err := c.session.Connect(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Device: %s\n", product)
	fmt.Printf("Capabilities: %s\n\n", caps)
	return nil
}

func (c *connection) Close() error {
	if linkMetric != nil {
		linkMetric.Remove(c.name)
	}
	return c.session.Close()
}
