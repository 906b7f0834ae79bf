// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Thermoquad/tuyastat/pkg/device"
	"github.com/Thermoquad/tuyastat/pkg/property"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

// loadModel builds the configured device model into a fresh registry
func loadModel() (*device.Model, *property.Registry, error) {
	var (
		spec device.ModelSpec
		err  error
	)
	if cfg.Device.ModelFile != "" {
		spec, err = device.LoadModelSpec(cfg.Device.ModelFile)
	} else {
		spec, err = device.Builtin(cfg.Device.Model)
	}
	if err != nil {
		return nil, nil, err
	}

	reg := property.NewRegistry()
	model, err := device.Build(spec, reg)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("device model loaded",
		zap.String("model", model.Name()),
		zap.Int("properties", reg.Len()),
		zap.Int("ignored", len(model.IgnoredDPIDs())))
	return model, reg, nil
}

// describeDataPoint explains a data point through the model without
// touching any property.
func describeDataPoint(model *device.Model, dp tuya.DataPoint) string {
	e, class := model.Lookup(dp.ID)
	switch class {
	case device.Mapped:
		v, err := e.Decode(dp)
		if err != nil {
			return fmt.Sprintf("    -> %s: %v\n", e.Property.ID(), err)
		}
		return fmt.Sprintf("    -> %s = %s\n", e.Property.ID(), formatValue(e.Property, v))
	case device.Ignored:
		return fmt.Sprintf("    -> ignored (%s)\n", model.IgnoredNote(dp.ID))
	default:
		return "    -> unrecognized\n"
	}
}

func formatValue(p *property.Property, v any) string {
	switch v := v.(type) {
	case bool:
		if v {
			return "on"
		}
		return "off"
	case float64:
		if p.Unit() == "celsius" {
			return fmt.Sprintf("%g °C", v)
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatFrame formats a frame and interprets its data points with model
func formatFrame(model *device.Model, f *tuya.Frame) string {
	if !f.IsDataPointFrame() || model == nil {
		return tuya.FormatFrame(f)
	}

	out := tuya.FormatFrame(f)
	points, _ := f.DataPoints()
	for _, dp := range points {
		out += describeDataPoint(model, dp)
	}
	return out
}

// errStopReading ends readFrames without error
var errStopReading = errors.New("stop reading")

// readFrames reads r until it fails or onFrame returns errStopReading.
// Decoder errors go to onError when it is not nil. io.EOF and a closed
// WebSocket end reading without error.
func readFrames(r io.Reader, onFrame func(*tuya.Frame) error, onError func(error)) error {
	decoder := tuya.NewDecoder()
	buf := make([]byte, 256)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			frames, errs := decoder.Decode(buf[:n])
			if onError != nil {
				for _, e := range errs {
					onError(e)
				}
			}
			for _, f := range frames {
				if ferr := onFrame(f); ferr != nil {
					if errors.Is(ferr, errStopReading) {
						return nil
					}
					return ferr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				logger.Info("connection closed")
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}
