// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config reads and writes the garlink HCL configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/Thermoquad/garlink/pkg/device"
)

// DefaultBaud is the rate every unit speaks at power-on
const DefaultBaud = 9600

var ErrInvalid = errors.New("invalid configuration")

type Schema struct {
	Port      string           `hcl:"port,optional"`
	Baud      int              `hcl:"baud,optional"`
	Debug     int              `hcl:"debug,optional"`
	Metrics   string           `hcl:"metrics,optional"`
	Timeouts  *TimeoutsSchema  `hcl:"timeouts,block"`
	Retries   *RetriesSchema   `hcl:"retries,block"`
	WebSocket *WebSocketSchema `hcl:"websocket,block"`
}

// TimeoutsSchema holds duration strings such as "2s" or "500ms"
type TimeoutsSchema struct {
	Ack        string `hcl:"ack,optional"`
	Receive    string `hcl:"receive,optional"`
	Product    string `hcl:"product,optional"`
	Capability string `hcl:"capability,optional"`
}

type RetriesSchema struct {
	Send int `hcl:"send,optional"`
	Ack  int `hcl:"ack,optional"`
}

type WebSocketSchema struct {
	URL         string `hcl:"url,optional"`
	Username    string `hcl:"username,optional"`
	NoSSLVerify bool   `hcl:"no_ssl_verify,optional"`
}

// Default returns the configuration written by `config init`
func Default() *Schema {
	t := device.DefaultTimeouts()
	return &Schema{
		Baud: DefaultBaud,
		Timeouts: &TimeoutsSchema{
			Ack:        t.Ack.String(),
			Receive:    t.Receive.String(),
			Product:    t.Product.String(),
			Capability: t.Capability.String(),
		},
		Retries: &RetriesSchema{
			Send: 5,
			Ack:  3,
		},
	}
}

// Read decodes the file at path. A missing file returns an error matching
// fs.ErrNotExist.
func Read(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	s := new(Schema)
	if err := s.Decode(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *Schema) Decode(data []byte) error {
	file, diag := hclsyntax.ParseConfig(data, "", hcl.Pos{Line: 1, Column: 1})
	if diag.HasErrors() {
		return diag.Errs()[0]
	}

	diag = gohcl.DecodeBody(file.Body, nil, s)
	if diag.HasErrors() {
		return diag.Errs()[0]
	}

	return s.Validate()
}

func (s *Schema) Encode() []byte {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(s, f.Body())
	return f.Bytes()
}

// Validate checks values that HCL typing cannot
func (s *Schema) Validate() error {
	if s.Baud < 0 {
		return fmt.Errorf("%w: baud %d", ErrInvalid, s.Baud)
	}
	if s.Debug < 0 {
		return fmt.Errorf("%w: debug %d", ErrInvalid, s.Debug)
	}
	if s.Retries != nil && (s.Retries.Send < 0 || s.Retries.Ack < 0) {
		return fmt.Errorf("%w: negative retries", ErrInvalid)
	}
	_, err := s.DeviceTimeouts()
	return err
}

// DeviceTimeouts converts the timeouts block. Unset entries are zero,
// which device.WithTimeouts leaves at their defaults.
func (s *Schema) DeviceTimeouts() (device.Timeouts, error) {
	var t device.Timeouts
	if s.Timeouts == nil {
		return t, nil
	}

	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"ack", s.Timeouts.Ack, &t.Ack},
		{"receive", s.Timeouts.Receive, &t.Receive},
		{"product", s.Timeouts.Product, &t.Product},
		{"capability", s.Timeouts.Capability, &t.Capability},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return device.Timeouts{}, fmt.Errorf("%w: timeouts.%s: %w", ErrInvalid, f.name, err)
		}
		if d <= 0 {
			return device.Timeouts{}, fmt.Errorf("%w: timeouts.%s must be positive", ErrInvalid, f.name)
		}
		*f.dst = d
	}
	return t, nil
}

// SendRetries returns the configured send retries, or 0 when unset
func (s *Schema) SendRetries() int {
	if s.Retries == nil {
		return 0
	}
	return s.Retries.Send
}

// AckRetries returns the configured ack retries, or 0 when unset
func (s *Schema) AckRetries() int {
	if s.Retries == nil {
		return 0
	}
	return s.Retries.Ack
}
