// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/transport"
)

var (
	packetTestTimeout int
	packetTestPoke    bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test the connection by waiting for a valid frame",
	Long: `Wait for a valid frame on the connection until timeout.

Invalid bytes and frames with a bad checksum are counted and skipped; the
test passes on the first complete frame. Most units only talk when spoken
to, so --poke sends one product request first.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing cabling or a WebSocket serial bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	packetTestCmd.Flags().BoolVar(&packetTestPoke, "poke", false, "Send a product request before waiting")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	port, connInfo, err := OpenConnection()
	if err != nil {
		return exitWith(2, "connection error: %w", err)
	}
	defer port.Close()

	fmt.Printf("garlink - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)

	stats := link.NewStatistics()
	l := link.New(port, link.WithObserver(stats), link.WithLogger(log))

	if packetTestPoke {
		if err := l.Send(link.PidProductRequest, nil); err != nil {
			return exitWith(2, "send failed: %w", err)
		}
		fmt.Printf("Sent %s\n", link.PacketName(link.PidProductRequest))
	}
	fmt.Printf("Waiting for valid frame...\n\n")

	deadline := time.Now().Add(time.Duration(packetTestTimeout) * time.Second)
	ctx := cmd.Context()
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			return exitWith(1, "TIMEOUT: no valid frame received within %d seconds", packetTestTimeout)
		}

		frame, err := l.Receive(min(remaining, time.Second))
		if err != nil {
			if transport.IsFatal(err) {
				return exitWith(2, "read error: %w", err)
			}
			if !errors.Is(err, transport.ErrTimeout) {
				fmt.Printf("(skipped: %v)\n", err)
			}
			continue
		}

		if errs := stats.Snapshot().Errors(); errs > 0 {
			fmt.Printf("(skipped %d bad frames before this one)\n", errs)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (%d)\n", link.PacketName(frame.ID), frame.ID)
		fmt.Printf("  Length: %d bytes\n", len(frame.Payload))
		fmt.Printf("  Checksum: 0x%02X\n", link.Checksum(frame.ID, frame.Payload))
		return nil
	}
}
