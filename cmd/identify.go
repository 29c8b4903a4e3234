// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var identifyTimeout int

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Ask the unit for its product id, software version and description",
	Long: `Send PRODUCT_RQST and print the PRODUCT_DATA answer.

The unit is retried several times, so this is also the quickest way to
check that cabling, baud rate and the unit's interface setting are right.

Exit codes:
  0 - Unit identified
  1 - No answer
  2 - Connection error`,
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	identifyCmd.Flags().IntVar(&identifyTimeout, "timeout", 60, "Give up after this many seconds")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	conn, err := openSession(nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("garlink - Identify\n")
	fmt.Printf("Connection: %s\n\n", conn.info)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(identifyTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	product, err := conn.session.Identify(ctx)
	if err != nil {
		return exitWith(1, "%w", err)
	}

	fmt.Printf("Product ID:  %d\n", product.ID)
	fmt.Printf("Software:    %s\n", product.VersionString())
	fmt.Printf("Description: %s\n", product.Description)
	for _, extra := range product.Extra {
		fmt.Printf("             %s\n", extra)
	}
	fmt.Printf("\nAnswered in %v\n", time.Since(start).Round(time.Millisecond))

	if debugLevel > 0 {
		fmt.Printf("\n%s", conn.stats)
	}
	return nil
}
