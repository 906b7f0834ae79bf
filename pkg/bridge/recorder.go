// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import "github.com/Thermoquad/tuyastat/pkg/tuya"

// Recorder receives bridge events for external instrumentation.
type Recorder interface {
	// FrameReceived is called for every checksum-valid frame.
	FrameReceived(frameType uint8)

	// FrameInvalid is called for a checksum-valid frame with structural
	// anomalies, after FrameReceived.
	FrameInvalid(frameType uint8, issues []tuya.ValidationError)

	// FrameRejected is called for every frame the decoder dropped.
	// reason is "checksum" or "too_large".
	FrameRejected(reason string)

	// DataPoint is called for every dispatched data point with its
	// classification ("mapped", "ignored" or "unknown").
	DataPoint(dpid uint8, class string)

	// DecodeFailure is called when a mapped data point could not be applied.
	DecodeFailure(dpid uint8)

	// PropertyChanged is called when a property changed, with its origin
	// ("device" or "local").
	PropertyChanged(id, origin string)

	// FrameSent is called after a frame was written to the transport.
	FrameSent(frameType uint8)

	// WriteError is called when the transport rejected a frame.
	WriteError()
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) FrameReceived(uint8)                        {}
func (NopRecorder) FrameInvalid(uint8, []tuya.ValidationError) {}
func (NopRecorder) FrameRejected(string)                       {}
func (NopRecorder) DataPoint(uint8, string)                    {}
func (NopRecorder) DecodeFailure(uint8)                        {}
func (NopRecorder) PropertyChanged(string, string)             {}
func (NopRecorder) FrameSent(uint8)                            {}
func (NopRecorder) WriteError()                                {}
