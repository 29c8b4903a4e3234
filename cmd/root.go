// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/loopholelabs/logging"
	"github.com/loopholelabs/logging/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/garlink/pkg/config"
	"github.com/Thermoquad/garlink/pkg/metrics"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	debugLevel  int
	configPath  string
	metricsAddr string

	// Set up by PersistentPreRunE
	cfg        *config.Schema
	log        types.RootLogger
	linkMetric *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "garlink",
	Short: "Garmin GPS serial protocol tool",
	Long: `garlink - transfer waypoints, routes and tracks to and from handheld
GPS units that speak the Garmin serial protocol.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

The WebSocket mode talks to a serial bridge that forwards raw bytes. For
authentication the password is read from the GARLINK_PASSWORD environment
variable, or prompted interactively if not set. There is no --password flag
so credentials stay out of shell history.

Defaults can be kept in an HCL file (see "garlink config init").`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	home, _ := os.UserHomeDir()

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().IntVarP(&debugLevel, "debug", "d", 0, "Debug level (1 info, 2 debug, 3 trace, 5 byte dump)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", filepath.Join(home, ".garlink.hcl"), "Configuration file")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (e.g. :2112)")
}

// setup loads the configuration file, then builds the logger and metrics.
// Flags given on the command line win over the file.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Read(configPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		return err
	}
	applyConfig(cmd, cfg)

	log = logging.New(logging.Zerolog, "garlink", os.Stderr)
	switch {
	case debugLevel >= 3:
		log.SetLevel(types.TraceLevel)
	case debugLevel == 2:
		log.SetLevel(types.DebugLevel)
	case debugLevel == 1:
		log.SetLevel(types.InfoLevel)
	default:
		log.SetLevel(types.WarnLevel)
	}

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		linkMetric = metrics.New(reg, metrics.DefaultConfig())

		// Add the default go metrics
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error().Str("addr", metricsAddr).Err(err).Msg("metrics server stopped")
			}
		}()
	}
	return nil
}

func applyConfig(cmd *cobra.Command, c *config.Schema) {
	flags := cmd.Flags()
	if !flags.Changed("port") && c.Port != "" {
		portName = c.Port
	}
	if !flags.Changed("baud") && c.Baud > 0 {
		baudRate = c.Baud
	}
	if !flags.Changed("debug") && c.Debug > 0 {
		debugLevel = c.Debug
	}
	if !flags.Changed("metrics") && c.Metrics != "" {
		metricsAddr = c.Metrics
	}
	if ws := c.WebSocket; ws != nil {
		if !flags.Changed("url") && ws.URL != "" {
			wsURL = ws.URL
		}
		if !flags.Changed("username") && ws.Username != "" {
			wsUsername = ws.Username
		}
		if !flags.Changed("no-ssl-verify") && ws.NoSSLVerify {
			wsNoSSLVerify = true
		}
	}
}

// Execute runs the root command. Ctrl+C cancels the running operation
// between frames.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && log != nil {
		log.Debug().Err(err).Msg("command failed")
	}
	return err
}

// exitError carries a process exit status out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode returns the status for err: 0 for nil, the carried code for an
// exit error, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func exitWith(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}
