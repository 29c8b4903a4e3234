// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// garlink - Garmin GPS serial protocol tool
//
// Transfers waypoints, routes and tracks to and from handheld GPS units
// over a serial port or a WebSocket serial bridge.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/garlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
