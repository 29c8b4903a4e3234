// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/garlink/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write the default settings to the file named by --config
($HOME/.garlink.hcl unless given). An existing file is kept unless --force
is set.`,
	// The existing file may be the broken one being replaced
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings in effect after flags and the configuration file",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("%s exists (use --force to overwrite)", configPath)
	}

	def := config.Default()
	if portName != "" {
		def.Port = portName
	}
	if err := os.WriteFile(configPath, def.Encode(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	effective := *cfg
	effective.Port = portName
	effective.Baud = baudRate
	effective.Debug = debugLevel
	effective.Metrics = metricsAddr
	if wsURL != "" || wsUsername != "" || wsNoSSLVerify {
		effective.WebSocket = &config.WebSocketSchema{
			URL:         wsURL,
			Username:    wsUsername,
			NoSSLVerify: wsNoSSLVerify,
		}
	}
	fmt.Printf("# %s\n", configPath)
	os.Stdout.Write(effective.Encode())
	return nil
}
