// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/garlink/pkg/records"
	"github.com/Thermoquad/garlink/pkg/transport"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Show the protocol array a unit reports and the layouts in use",
	Long: `Identify the unit, wait for its PROTOCOL_ARRAY and show how each data
protocol was assigned.

Units that send no protocol array use the oldest layouts (D100 waypoints,
D200 route headers, D300 track points). Entries garlink cannot use are
listed as ignored; a slot assigned twice is flagged.

Exit codes:
  0 - Capabilities known
  1 - Negotiation failed
  2 - Connection error`,
	RunE: runCapabilities,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.ListSerialPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(portsCmd)
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	conn, err := openSession(nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("garlink - Capabilities\n")
	fmt.Printf("Connection: %s\n\n", conn.info)

	product, caps, err := conn.session.Connect(cmd.Context())
	if err != nil {
		return exitWith(1, "%w", err)
	}
	fmt.Printf("Device: %s\n\n", product)

	protocols := conn.session.Protocols()
	if len(protocols) == 0 {
		fmt.Printf("No protocol array received, using defaults\n\n")
	} else {
		fmt.Printf("Protocol array (%d entries):\n", len(protocols))
		fmt.Printf("  %s\n\n", formatProtocols(protocols))

		_, assignments := records.DefaultCapabilities().Apply(protocols)
		fmt.Printf("Assignments:\n")
		for _, a := range assignments {
			app := "-"
			if a.Application.Tag != 0 {
				app = a.Application.String()
			}
			switch {
			case a.Repeated:
				fmt.Printf("  %-5s %-5s -> %-16s (repeated, this entry wins)\n", app, a.Data, a.Slot)
			case a.Assigned:
				fmt.Printf("  %-5s %-5s -> %s\n", app, a.Data, a.Slot)
			default:
				fmt.Printf("  %-5s %-5s    ignored\n", app, a.Data)
			}
		}
		fmt.Println()
	}

	fmt.Printf("--- Layouts in use ---\n")
	for _, slot := range records.Slots {
		fmt.Printf("  %-16s %s\n", slot, caps.Get(slot))
	}
	return nil
}

// formatProtocols wraps the array eight entries to a line
func formatProtocols(protocols []records.Protocol) string {
	var b strings.Builder
	for i, p := range protocols {
		if i > 0 {
			if i%8 == 0 {
				b.WriteString("\n  ")
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(p.String())
	}
	return b.String()
}
