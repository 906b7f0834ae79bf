// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Frame represents a decoded (or to be encoded) Tuya MCU frame
type Frame struct {
	version   uint8
	frameType uint8
	data      []byte
	checksum  uint8
	timestamp time.Time
}

// DataPoint is a single data point unit carried in a frame's data section
type DataPoint struct {
	ID    uint8
	Type  DataType
	Value []byte
}

// NewFrame creates a frame from its fields. The checksum is computed.
func NewFrame(version, frameType uint8, data []byte) *Frame {
	f := &Frame{
		version:   version,
		frameType: frameType,
		data:      data,
		timestamp: time.Now(),
	}
	f.checksum = Checksum(f.headerAndData())
	return f
}

// newDecodedFrame builds a frame from validated raw bytes
func newDecodedFrame(raw []byte) *Frame {
	data := make([]byte, len(raw)-minFrameBytes)
	copy(data, raw[HeaderSize:len(raw)-ChecksumSize])
	return &Frame{
		version:   raw[2],
		frameType: raw[3],
		data:      data,
		checksum:  raw[len(raw)-1],
		timestamp: time.Now(),
	}
}

func (f *Frame) headerAndData() []byte {
	buf := make([]byte, 0, HeaderSize+len(f.data))
	buf = append(buf, HeaderByte1, HeaderByte2, f.version, f.frameType)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.data)))
	return append(buf, f.data...)
}

// Version returns the protocol version byte
func (f *Frame) Version() uint8 {
	return f.version
}

// Type returns the frame type (command) byte
func (f *Frame) Type() uint8 {
	return f.frameType
}

// Data returns the frame's data section
func (f *Frame) Data() []byte {
	return f.data
}

// Length returns the data section length
func (f *Frame) Length() int {
	return len(f.data)
}

// Checksum returns the frame checksum
func (f *Frame) Checksum() uint8 {
	return f.checksum
}

// Timestamp returns the decode (or creation) time
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Equal reports whether two frames carry the same wire content
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.version == o.version &&
		f.frameType == o.frameType &&
		f.checksum == o.checksum &&
		bytes.Equal(f.data, o.data)
}

// IsDataPointFrame reports whether the frame type carries data point units
func (f *Frame) IsDataPointFrame() bool {
	return f.frameType == TypeStatusReport || f.frameType == TypeSetDataPoint
}

// DataPoints parses every data point unit in the data section.
// Units are returned in wire order. A truncated unit is an error.
func (f *Frame) DataPoints() ([]DataPoint, error) {
	if !f.IsDataPointFrame() {
		return nil, ErrNotDataPoint
	}
	var points []DataPoint
	rest := f.data
	for len(rest) > 0 {
		if len(rest) < DPHeaderSize {
			return points, fmt.Errorf("%w: %d trailing bytes", ErrPayloadSize, len(rest))
		}
		n := int(binary.BigEndian.Uint16(rest[2:4]))
		if len(rest) < DPHeaderSize+n {
			return points, fmt.Errorf("%w: dpid 0x%02X declares %d bytes, %d available",
				ErrPayloadSize, rest[0], n, len(rest)-DPHeaderSize)
		}
		points = append(points, DataPoint{
			ID:    rest[0],
			Type:  DataType(rest[1]),
			Value: rest[DPHeaderSize : DPHeaderSize+n],
		})
		rest = rest[DPHeaderSize+n:]
	}
	if len(points) == 0 {
		return nil, ErrNotDataPoint
	}
	return points, nil
}

// DataPoint returns the first data point unit of the frame.
// When a later unit is truncated the first unit is returned together with
// the parse error.
func (f *Frame) DataPoint() (DataPoint, error) {
	points, err := f.DataPoints()
	if len(points) == 0 {
		return DataPoint{}, err
	}
	return points[0], err
}

// AppendDataPoint appends the wire encoding of dp to buf
func AppendDataPoint(buf []byte, dp DataPoint) []byte {
	buf = append(buf, dp.ID, byte(dp.Type))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(dp.Value)))
	return append(buf, dp.Value...)
}
