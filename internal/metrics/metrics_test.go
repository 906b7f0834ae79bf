// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/device"
	"github.com/Thermoquad/tuyastat/pkg/property"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func newBridge(t *testing.T, out io.Writer) (*bridge.Bridge, *BridgeMetrics) {
	t.Helper()
	reg := property.NewRegistry()
	model, err := device.Build(device.ME102H(), reg)
	require.NoError(t, err)

	m := NewBridgeMetrics(prometheus.NewRegistry())
	return bridge.New(model, reg, out, bridge.Options{Recorder: m}), m
}

func TestBridgeMetrics(t *testing.T) {
	var out bytes.Buffer
	b, m := newBridge(t, &out)

	status := tuya.MustEncodeFrame(tuya.NewStatusReport(
		tuya.DataPoint{ID: 0x2B, Type: tuya.DataTypeEnum, Value: []byte{0x01}}, // mapped
		tuya.DataPoint{ID: 0x24, Type: tuya.DataTypeBool, Value: []byte{0x01}}, // ignored
		tuya.DataPoint{ID: 0x99, Type: tuya.DataTypeBool, Value: []byte{0x01}}, // unknown
		tuya.DataPoint{ID: 0x02, Type: tuya.DataTypeEnum, Value: []byte{0x09}}, // out of range
	))
	corrupt := append([]byte(nil), status...)
	corrupt[len(corrupt)-1]++

	_, _ = b.Write(status)
	_, _ = b.Write(corrupt)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("0x07")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesRejected.WithLabelValues("checksum")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DataPoints.WithLabelValues("mapped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DataPoints.WithLabelValues("ignored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DataPoints.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeFailures.WithLabelValues("0x02")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PropertyChanges.WithLabelValues("sensorSelection", bridge.OriginDevice)))

	require.NoError(t, b.Set("deviceOn", true))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PropertyChanges.WithLabelValues("deviceOn", bridge.OriginLocal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("0x06")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WriteErrors))

	// A status report carrying a 2-byte VALUE
	_, _ = b.Write(tuya.MustEncodeFrame(tuya.NewStatusReport(
		tuya.DataPoint{ID: 0x18, Type: tuya.DataTypeValue, Value: []byte{0x00, 0x16}},
	)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesInvalid.WithLabelValues("value_width")))
}

func TestBridgeMetricsWriteError(t *testing.T) {
	b, m := newBridge(t, brokenWriter{})

	assert.Error(t, b.Heartbeat())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WriteErrors))
	assert.Equal(t, 0, testutil.CollectAndCount(m.FramesSent))
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	m := NewBridgeMetrics(reg)
	m.FrameReceived(tuya.TypeHeartbeat)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tuyastat_frames_received_total{type="0x00"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewBridgeMetrics(reg)
	assert.Panics(t, func() { NewBridgeMetrics(reg) })
}
