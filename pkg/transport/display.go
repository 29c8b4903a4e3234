// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DumpFunc receives raw bytes crossing the transport. Direction is '<' for
// bytes read and '>' for bytes written.
type DumpFunc func(direction byte, data []byte)

// Display returns a DumpFunc printing 16 bytes per row as hex followed by
// the printable characters. A nil writer means stderr.
func Display(w io.Writer) DumpFunc {
	return func(direction byte, data []byte) {
		out := w
		if out == nil {
			out = os.Stderr
		}
		for _, line := range FormatDump(direction, data) {
			fmt.Fprintln(out, line)
		}
	}
}

// FormatDump renders data as dump rows.
func FormatDump(direction byte, data []byte) []string {
	var lines []string
	for len(data) > 0 {
		n := min(len(data), 16)
		row := data[:n]
		data = data[n:]

		var hex, ascii strings.Builder
		for i, b := range row {
			fmt.Fprintf(&hex, "%02x ", b)
			if b >= 0x20 && b < 0x7f {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
			if i == 7 {
				hex.WriteByte(' ')
				ascii.WriteByte(' ')
			}
		}
		lines = append(lines, fmt.Sprintf(" %c  %-52s%s", direction, hex.String(), ascii.String()))
	}
	return lines
}
