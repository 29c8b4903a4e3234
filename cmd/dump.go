// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/garlink/pkg/device"
	"github.com/Thermoquad/garlink/pkg/records"
)

var (
	dumpWaypoints bool
	dumpRoutes    bool
	dumpTracks    bool
	dumpTime      bool
	dumpOutput    string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Download waypoints, routes and tracks from the unit",
	Long: `Identify the unit, then download the requested transfers and print
every record as it arrives.

Without -w, -r or -t all three are downloaded. --time asks for the unit's
UTC date and time instead of (or in addition to) a transfer.

With --output the downloaded lists are also written to a CBOR archive
that "garlink load" can send back, to this unit or another one.

Exit codes:
  0 - Every transfer completed
  1 - A transfer failed; the archive holds what was received
  2 - Connection error`,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().BoolVarP(&dumpWaypoints, "waypoints", "w", false, "Download waypoints")
	dumpCmd.Flags().BoolVarP(&dumpRoutes, "routes", "r", false, "Download routes")
	dumpCmd.Flags().BoolVarP(&dumpTracks, "tracks", "t", false, "Download the track log")
	dumpCmd.Flags().BoolVar(&dumpTime, "time", false, "Download the unit's date and time")
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "", "Write the downloaded lists to this archive file")
}

// dumpKinds returns the transfers selected by flags
func dumpKinds() []records.Command {
	var kinds []records.Command
	if dumpWaypoints {
		kinds = append(kinds, records.CmdTransferWaypoints)
	}
	if dumpRoutes {
		kinds = append(kinds, records.CmdTransferRoutes)
	}
	if dumpTracks {
		kinds = append(kinds, records.CmdTransferTracks)
	}
	if len(kinds) == 0 && !dumpTime {
		kinds = []records.Command{records.CmdTransferWaypoints, records.CmdTransferRoutes, records.CmdTransferTracks}
	}
	return kinds
}

// printer writes a download in the same notation for every kind
func printer() device.Consumer {
	return device.ConsumerFuncs{
		Begin: func(kind records.Command, count int) {
			fmt.Println(records.FormatBegin(kind, count))
		},
		Item: func(item records.Item) {
			fmt.Println(records.Format(item.Record))
		},
		End: func(received, expected int) {
			fmt.Println(records.FormatEnd(received, expected))
			if received != expected {
				fmt.Fprintf(os.Stderr, "warning: unit announced %d records, sent %d\n", expected, received)
			}
			fmt.Println()
		},
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	conn, err := openSession(nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := cmd.Context()
	product, caps, err := conn.session.Connect(ctx)
	if err != nil {
		return exitWith(1, "%w", err)
	}
	fmt.Printf("[product %d, version %s: %s]\n\n", product.ID, product.VersionString(), product.Description)

	var lists []*records.TransferList
	var failed error
	for _, kind := range dumpKinds() {
		list, err := conn.session.Download(ctx, kind, printer())
		if list != nil && list.Len() > 0 {
			lists = append(lists, list)
		}
		if err != nil {
			failed = err
			break
		}
	}

	if failed == nil && dumpTime {
		t, err := conn.session.DownloadTime(ctx)
		if err != nil {
			failed = err
		} else {
			fmt.Printf("[time %s]\n\n", t)
		}
	}

	if dumpOutput != "" {
		if err := writeArchive(dumpOutput, records.NewArchive(&product, caps, lists...)); err != nil {
			return err
		}
		fmt.Printf("Wrote %d lists to %s\n", len(lists), dumpOutput)
	}

	if debugLevel > 0 {
		fmt.Printf("\n%s", conn.stats)
	}
	if failed != nil {
		return exitWith(1, "%w", failed)
	}
	return nil
}

func writeArchive(path string, a *records.Archive) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	if err := records.WriteArchive(f, a); err != nil {
		f.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return f.Close()
}
