// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import (
	"encoding/binary"
	"fmt"
)

// EncodeFrame encodes a Frame to wire format.
// Length and checksum are recomputed from the frame's data.
func EncodeFrame(f *Frame) ([]byte, error) {
	return EncodeFrameFromValues(f.Version(), f.Type(), f.Data())
}

// EncodeFrameFromValues creates a complete wire-formatted frame
func EncodeFrameFromValues(version, frameType uint8, data []byte) ([]byte, error) {
	if len(data) > MaxDataSize {
		return nil, &FrameError{Length: len(data), Err: ErrFrameTooLarge}
	}

	frame := make([]byte, 0, HeaderSize+len(data)+ChecksumSize)
	frame = append(frame, HeaderByte1, HeaderByte2, version, frameType)
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(data)))
	frame = append(frame, data...)

	return append(frame, Checksum(frame)), nil
}

// MustEncodeFrame encodes a frame and panics on error.
// Only use it with frames built by the command constructors.
func MustEncodeFrame(f *Frame) []byte {
	data, err := EncodeFrame(f)
	if err != nil {
		panic(fmt.Sprintf("tuya: encode error: %v", err))
	}
	return data
}

// EncodeDataPoint builds the outbound write command for a single data point.
// The caller-supplied payload determines both length fields.
func EncodeDataPoint(dpid uint8, dataType DataType, payload []byte) ([]byte, error) {
	if len(payload) > MaxDataSize-DPHeaderSize {
		return nil, &FrameError{Length: len(payload) + DPHeaderSize, Err: ErrFrameTooLarge}
	}
	data := AppendDataPoint(make([]byte, 0, DPHeaderSize+len(payload)), DataPoint{
		ID:    dpid,
		Type:  dataType,
		Value: payload,
	})
	return EncodeFrameFromValues(VersionModule, TypeSetDataPoint, data)
}
