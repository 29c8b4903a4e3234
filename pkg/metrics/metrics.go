// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports link and transfer activity to Prometheus.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/garlink/pkg/device"
	"github.com/Thermoquad/garlink/pkg/link"
	"github.com/Thermoquad/garlink/pkg/transport"
)

type Config struct {
	Namespace   string
	SubLink     string
	SubTransfer string
}

func DefaultConfig() *Config {
	return &Config{
		Namespace:   "garlink",
		SubLink:     "link",
		SubTransfer: "transfer",
	}
}

// Metrics holds the collectors. Each device gets its own label value.
type Metrics struct {
	reg    prometheus.Registerer
	lock   sync.Mutex
	config *Config

	// link
	linkFramesSent  *prometheus.CounterVec
	linkBytesSent   *prometheus.CounterVec
	linkFramesRecv  *prometheus.CounterVec
	linkBytesRecv   *prometheus.CounterVec
	linkErrors      *prometheus.CounterVec
	linkRetries     *prometheus.CounterVec
	linkNaks        *prometheus.CounterVec
	linkLastFrameID *prometheus.GaugeVec

	// transfer
	transferDone  *prometheus.GaugeVec
	transferTotal *prometheus.GaugeVec
	transferRecs  *prometheus.CounterVec
}

func New(reg prometheus.Registerer, config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	met := &Metrics{
		config: config,
		reg:    reg,
		// Link
		linkFramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.SubLink, Name: "frames_sent", Help: "Frames sent"}, []string{"device", "packet"}),
		linkBytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.SubLink, Name: "payload_bytes_sent", Help: "Payload bytes sent"}, []string{"device"}),
		linkFramesRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.SubLink, Name: "frames_received", Help: "Frames received"}, []string{"device", "packet"}),
		linkBytesRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.SubLink, Name: "payload_bytes_received", Help: "Payload bytes received"}, []string{"device"}),
		linkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.SubLink, Name: "frame_errors", Help: "Frame errors by kind"}, []string{"device", "kind"}),
		linkRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.SubLink, Name: "retries", Help: "Frame resends"}, []string{"device", "packet"}),
		linkNaks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.SubLink, Name: "naks", Help: "Frames rejected by the device"}, []string{"device", "packet"}),
		linkLastFrameID: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace, Subsystem: config.SubLink, Name: "last_frame_id", Help: "Id of the last frame received"}, []string{"device"}),

		// Transfer
		transferDone: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace, Subsystem: config.SubTransfer, Name: "done", Help: "Records transferred in the current transfer"}, []string{"device", "direction", "kind"}),
		transferTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace, Subsystem: config.SubTransfer, Name: "total", Help: "Records announced for the current transfer"}, []string{"device", "direction", "kind"}),
		transferRecs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.SubTransfer, Name: "records", Help: "Records transferred"}, []string{"device", "direction"}),
	}

	reg.MustRegister(met.linkFramesSent, met.linkBytesSent, met.linkFramesRecv, met.linkBytesRecv,
		met.linkErrors, met.linkRetries, met.linkNaks, met.linkLastFrameID)

	reg.MustRegister(met.transferDone, met.transferTotal, met.transferRecs)

	return met
}

// LinkObserver returns a link.Observer that counts into this set under
// the given device label.
func (m *Metrics) LinkObserver(dev string) link.Observer {
	return &linkObserver{m: m, dev: dev}
}

// Progress returns a progress callback for device.WithProgress
func (m *Metrics) Progress(dev string) func(device.Progress) {
	return func(p device.Progress) {
		dir := p.Direction.String()
		kind := p.Kind.String()
		m.transferDone.WithLabelValues(dev, dir, kind).Set(float64(p.Done))
		m.transferTotal.WithLabelValues(dev, dir, kind).Set(float64(p.Total))
		m.transferRecs.WithLabelValues(dev, dir).Inc()
	}
}

// Remove drops every series carrying the device label
func (m *Metrics) Remove(dev string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	labels := prometheus.Labels{"device": dev}
	m.linkFramesSent.DeletePartialMatch(labels)
	m.linkBytesSent.DeletePartialMatch(labels)
	m.linkFramesRecv.DeletePartialMatch(labels)
	m.linkBytesRecv.DeletePartialMatch(labels)
	m.linkErrors.DeletePartialMatch(labels)
	m.linkRetries.DeletePartialMatch(labels)
	m.linkNaks.DeletePartialMatch(labels)
	m.linkLastFrameID.DeletePartialMatch(labels)
	m.transferDone.DeletePartialMatch(labels)
	m.transferTotal.DeletePartialMatch(labels)
	m.transferRecs.DeletePartialMatch(labels)
}

type linkObserver struct {
	m   *Metrics
	dev string
}

func (o *linkObserver) FrameSent(id byte, length int) {
	o.m.linkFramesSent.WithLabelValues(o.dev, link.PacketName(id)).Inc()
	o.m.linkBytesSent.WithLabelValues(o.dev).Add(float64(length))
}

func (o *linkObserver) FrameReceived(id byte, length int) {
	o.m.linkFramesRecv.WithLabelValues(o.dev, link.PacketName(id)).Inc()
	o.m.linkBytesRecv.WithLabelValues(o.dev).Add(float64(length))
	o.m.linkLastFrameID.WithLabelValues(o.dev).Set(float64(id))
}

func (o *linkObserver) FrameError(err error) {
	o.m.linkErrors.WithLabelValues(o.dev, errorKind(err)).Inc()
}

func (o *linkObserver) Retry(id byte) {
	o.m.linkRetries.WithLabelValues(o.dev, link.PacketName(id)).Inc()
}

func (o *linkObserver) Nak(id byte) {
	o.m.linkNaks.WithLabelValues(o.dev, link.PacketName(id)).Inc()
}

// errorKind keeps the label set small
func errorKind(err error) string {
	var ce *link.ChecksumError
	switch {
	case errors.As(err, &ce):
		return "checksum"
	case errors.Is(err, link.ErrFraming):
		return "framing"
	case errors.Is(err, link.ErrFrameTooLarge):
		return "too_large"
	case errors.Is(err, link.ErrFrameStalled):
		return "stalled"
	case errors.Is(err, transport.ErrTimeout):
		return "timeout"
	case transport.IsFatal(err):
		return "transport"
	default:
		return "other"
	}
}
