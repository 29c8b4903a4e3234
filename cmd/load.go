// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/garlink/pkg/device"
	"github.com/Thermoquad/garlink/pkg/records"
)

var (
	loadWaypoints bool
	loadRoutes    bool
	loadTracks    bool
	loadDryRun    bool
	loadForce     bool
)

var loadCmd = &cobra.Command{
	Use:   "load ARCHIVE",
	Short: "Upload the lists of an archive to the unit",
	Long: `Read an archive written by "garlink dump --output" and send its lists to
the unit.

Every record is checked first: positions out of range, idents the unit will
not accept, over-long comments and track times far in the future are
reported. Records are converted to the layouts the unit reports, so an
archive taken from an old unit can be loaded into a newer one.

Without -w, -r or -t every list in the archive is sent.

Exit codes:
  0 - Everything sent (or checked, with --dry-run)
  1 - Validation problems or a failed transfer
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().BoolVarP(&loadWaypoints, "waypoints", "w", false, "Send waypoint lists")
	loadCmd.Flags().BoolVarP(&loadRoutes, "routes", "r", false, "Send route lists")
	loadCmd.Flags().BoolVarP(&loadTracks, "tracks", "t", false, "Send track lists")
	loadCmd.Flags().BoolVarP(&loadDryRun, "dry-run", "n", false, "Check the archive without connecting")
	loadCmd.Flags().BoolVarP(&loadForce, "force", "f", false, "Send even when records fail the check")
}

func readArchive(path string) (*records.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return records.ReadArchive(f)
}

// selectLists keeps the lists whose kind was asked for
func selectLists(lists []*records.TransferList) []*records.TransferList {
	if !loadWaypoints && !loadRoutes && !loadTracks {
		return lists
	}
	var out []*records.TransferList
	for _, l := range lists {
		switch {
		case l.Kind == records.CmdTransferWaypoints && loadWaypoints,
			l.Kind == records.CmdTransferRoutes && loadRoutes,
			l.Kind == records.CmdTransferTracks && loadTracks:
			out = append(out, l)
		}
	}
	return out
}

// checkLists prints validation problems and returns how many records had any
func checkLists(lists []*records.TransferList) int {
	bad := 0
	for _, l := range lists {
		problems := records.ValidateList(l)
		fmt.Printf("%s: %d problems\n", records.FormatBegin(l.Kind, l.Len()), len(problems))
		for i, item := range l.Items {
			errs, ok := problems[i]
			if !ok {
				continue
			}
			bad++
			fmt.Printf("  #%d %s\n", i+1, records.Format(item.Record))
			for _, e := range errs {
				fmt.Printf("     %s: %s\n", e.Type, e.Message)
			}
		}
	}
	return bad
}

// layoutChanges describes every slot whose layout differs between the
// unit an archive was taken from and the unit it is sent to
func layoutChanges(from, to records.Capabilities) []string {
	var lines []string
	for _, slot := range records.Slots {
		if a, b := from.Get(slot), to.Get(slot); a != b {
			lines = append(lines, fmt.Sprintf("%s: archive uses %s, unit uses %s; records are converted", slot, a, b))
		}
	}
	return lines
}

func runLoad(cmd *cobra.Command, args []string) error {
	archive, err := readArchive(args[0])
	if err != nil {
		return err
	}
	lists, err := archive.TransferLists()
	if err != nil {
		return err
	}
	lists = selectLists(lists)

	fmt.Printf("garlink - Load\n")
	fmt.Printf("Archive: %s (%s)\n", args[0], time.Unix(archive.Created, 0).Format(time.DateTime))
	if p := archive.Product; p != nil {
		fmt.Printf("Taken from: %s\n", records.Product{ID: p.ID, Version: p.Version, Description: p.Description})
	}
	fmt.Println()

	if len(lists) == 0 {
		fmt.Println("Nothing to send")
		return nil
	}

	bad := checkLists(lists)
	fmt.Println()
	if bad > 0 && !loadForce {
		return exitWith(1, "%d records failed the check (use --force to send anyway)", bad)
	}
	if loadDryRun {
		return nil
	}

	conn, err := openSession(func(p device.Progress) {
		fmt.Printf("\r%s %s: %d/%d", p.Direction, p.Kind, p.Done, p.Total)
		if p.Done == p.Total {
			fmt.Println()
		}
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", conn.info)
	if err := conn.connect(cmd.Context()); err != nil {
		return exitWith(1, "%w", err)
	}

	for _, line := range layoutChanges(archive.CapabilitySet(), conn.session.Capabilities()) {
		fmt.Println(line)
	}

	if err := conn.session.Upload(cmd.Context(), lists...); err != nil {
		fmt.Println()
		var te *device.TransferError
		if errors.As(err, &te) {
			fmt.Fprintf(os.Stderr, "%s transfer stopped at record %d; %d records reached the unit\n", te.Kind, te.Index+1, te.Sent)
		}
		return exitWith(1, "%w", err)
	}

	total := 0
	for _, l := range lists {
		total += l.Len()
	}
	fmt.Printf("Sent %d records in %d lists\n", total, len(lists))
	if debugLevel > 0 {
		fmt.Printf("\n%s", conn.stats)
	}
	return nil
}
