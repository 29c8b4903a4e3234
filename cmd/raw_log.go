// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/records"
	"github.com/Thermoquad/garlink/pkg/transport"
)

var rawLogAck bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display every frame on the line in human-readable format",
	Long: `Continuously decode and display frames as they arrive.

Each frame is shown with a timestamp, its packet type and length, and the
record it carries decoded with the default layouts. Payloads that cannot be
decoded are shown as a hex dump.

The log is passive: nothing is sent unless --ack is given, in which case
every frame is acknowledged so a unit that is sending a transfer keeps
going.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogAck, "ack", false, "Acknowledge every frame received")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	port, connInfo, err := OpenConnection()
	if err != nil {
		return exitWith(2, "connection error: %w", err)
	}
	defer port.Close()

	fmt.Printf("garlink - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := link.NewStatistics()
	l := link.New(port, link.WithObserver(stats), link.WithLogger(log))
	codec := records.NewCodec(records.DefaultCapabilities())
	ctx := cmd.Context()

	for ctx.Err() == nil {
		frame, err := l.Receive(500 * time.Millisecond)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			if transport.IsFatal(err) {
				fmt.Printf("Connection closed: %v\n", err)
				break
			}
			fmt.Printf("[ERROR] %v\n", err)
			continue
		}

		fmt.Print(formatFrame(codec, frame))
		if rawLogAck && frame.ID != link.PidAck && frame.ID != link.PidNak {
			if err := l.SendAck(frame.ID); err != nil {
				fmt.Printf("[ERROR] ack: %v\n", err)
			}
		}
	}

	fmt.Printf("\n%s", stats)
	return nil
}

// formatFrame renders one frame with its decoded record or a hex dump
func formatFrame(codec *records.Codec, f *link.Frame) string {
	result := fmt.Sprintf("[%s] %s (%d) len=%d\n",
		time.Now().Format("15:04:05.000"), link.PacketName(f.ID), f.ID, len(f.Payload))
	if f.LengthMismatch {
		result += "  (length byte disagrees with payload)\n"
	}

	switch f.ID {
	case link.PidAck, link.PidNak:
		if len(f.Payload) > 0 {
			result += fmt.Sprintf("  for %s\n", link.PacketName(f.Payload[0]))
		}
		return result
	case link.PidProductRequest:
		return result
	case link.PidCapabilities:
		protocols, err := records.ParseProtocols(f.Payload)
		if err == nil {
			return result + "  " + formatProtocols(protocols) + "\n"
		}
	}

	rec, err := codec.Decode(f.ID, f.Payload)
	if err == nil {
		return result + "  " + formatRecord(rec) + "\n"
	}
	for _, line := range transport.FormatDump('<', f.Payload) {
		result += line + "\n"
	}
	return result
}

func formatRecord(rec records.Record) string {
	switch r := rec.(type) {
	case records.Product:
		return r.String()
	case records.TransferBegin:
		return fmt.Sprintf("%d records follow", r.Count)
	case records.TransferEnd:
		return fmt.Sprintf("end of %s", r.Command)
	case records.CommandRecord:
		return r.Command.String()
	}
	return records.Format(rec)
}
