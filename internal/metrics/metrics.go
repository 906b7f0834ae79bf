// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes bridge activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

const namespace = "tuyastat"

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// BridgeMetrics records bridge events. It implements bridge.Recorder.
type BridgeMetrics struct {
	FramesReceived  *prometheus.CounterVec // labels: type
	FramesInvalid   *prometheus.CounterVec // labels: anomaly
	FramesRejected  *prometheus.CounterVec // labels: reason
	DataPoints      *prometheus.CounterVec // labels: class
	DecodeFailures  *prometheus.CounterVec // labels: dpid
	PropertyChanges *prometheus.CounterVec // labels: property, origin
	FramesSent      *prometheus.CounterVec // labels: type
	WriteErrors     prometheus.Counter
}

var _ bridge.Recorder = (*BridgeMetrics)(nil)

// NewBridgeMetrics registers and returns the bridge metrics.
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Checksum-valid frames received from the MCU.",
		}, []string{"type"}),
		FramesInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_anomalies_total",
			Help:      "Structural anomalies found in checksum-valid frames.",
		}, []string{"anomaly"}),
		FramesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Frames dropped by the decoder.",
		}, []string{"reason"}),
		DataPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datapoints_total",
			Help:      "Dispatched data points by classification.",
		}, []string{"class"}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datapoint_decode_failures_total",
			Help:      "Mapped data points whose value could not be applied.",
		}, []string{"dpid"}),
		PropertyChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_changes_total",
			Help:      "Property value changes by origin.",
		}, []string{"property", "origin"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the MCU.",
		}, []string{"type"}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Frames the transport failed to write.",
		}),
	}
	reg.MustRegister(m.FramesReceived, m.FramesInvalid, m.FramesRejected, m.DataPoints, m.DecodeFailures,
		m.PropertyChanges, m.FramesSent, m.WriteErrors)
	return m
}

func hexLabel(b uint8) string {
	return fmt.Sprintf("0x%02X", b)
}

func (m *BridgeMetrics) FrameReceived(frameType uint8) {
	m.FramesReceived.WithLabelValues(hexLabel(frameType)).Inc()
}

func (m *BridgeMetrics) FrameInvalid(_ uint8, issues []tuya.ValidationError) {
	for _, issue := range issues {
		m.FramesInvalid.WithLabelValues(issue.Type.String()).Inc()
	}
}

func (m *BridgeMetrics) FrameRejected(reason string) {
	m.FramesRejected.WithLabelValues(reason).Inc()
}

func (m *BridgeMetrics) DataPoint(_ uint8, class string) {
	m.DataPoints.WithLabelValues(class).Inc()
}

func (m *BridgeMetrics) DecodeFailure(dpid uint8) {
	m.DecodeFailures.WithLabelValues(hexLabel(dpid)).Inc()
}

func (m *BridgeMetrics) PropertyChanged(id, origin string) {
	m.PropertyChanges.WithLabelValues(id, origin).Inc()
}

func (m *BridgeMetrics) FrameSent(frameType uint8) {
	m.FramesSent.WithLabelValues(hexLabel(frameType)).Inc()
}

func (m *BridgeMetrics) WriteError() {
	m.WriteErrors.Inc()
}
