// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package tuya provides a Go implementation of the Tuya MCU serial protocol
// as spoken by the microcontroller of Tuya based WiFi thermostats.
//
// The MCU and the WiFi module exchange frames of the form
//
//	[0x55][0xAA][version][type][lenHi][lenLo][data...][checksum]
//
// where the checksum is the low byte of the sum of every preceding byte.
// Status reports and write commands carry one or more data points in the
// data section: [dpid][dataType][lenHi][lenLo][value...].
//
// This package only deals with framing, checksums and data point values.
// Mapping data points to device properties lives in package device.
package tuya

// Protocol framing bytes
const (
	HeaderByte1 = 0x55
	HeaderByte2 = 0xAA
)

// Protocol versions. The MCU reports with version 3, the module writes with 0.
const (
	VersionModule = 0x00
	VersionMCU    = 0x03
)

// Frame size limits
const (
	HeaderSize    = 6 // 55 AA ver type lenHi lenLo
	ChecksumSize  = 1
	DPHeaderSize  = 4 // dpid type lenHi lenLo
	MaxDataSize   = 1024
	MaxFrameSize  = HeaderSize + MaxDataSize + ChecksumSize
	minFrameBytes = HeaderSize + ChecksumSize
)

// Frame types
const (
	TypeHeartbeat       = 0x00
	TypeProductQuery    = 0x01
	TypeWorkingMode     = 0x02
	TypeWifiState       = 0x03
	TypeWifiReset       = 0x04
	TypeWifiResetSelect = 0x05
	TypeSetDataPoint    = 0x06
	TypeStatusReport    = 0x07
	TypeQueryStatus     = 0x08
	TypeLocalTime       = 0x1C
)

// DataType identifies the encoding of a data point value
type DataType uint8

// Data type values
const (
	DataTypeRaw    DataType = 0x00
	DataTypeBool   DataType = 0x01
	DataTypeValue  DataType = 0x02
	DataTypeString DataType = 0x03
	DataTypeEnum   DataType = 0x04
	DataTypeBitmap DataType = 0x05
)

// String returns the protocol name of the data type
func (t DataType) String() string {
	return FormatDataType(t)
}

// Valid reports whether t is one of the known data types
func (t DataType) Valid() bool {
	return t <= DataTypeBitmap
}

// fixedWidth returns the value width for data types with a fixed size
func (t DataType) fixedWidth() (int, bool) {
	switch t {
	case DataTypeBool, DataTypeEnum:
		return 1, true
	case DataTypeValue:
		return 4, true
	}
	return 0, false
}

// Heartbeat response values
const (
	HeartbeatFirst = 0x00 // first heartbeat after MCU power-up
	HeartbeatAlive = 0x01
)

// WifiStatus values for TypeWifiState
type WifiStatus uint8

// WiFi status values
const (
	WifiSmartConfig  WifiStatus = 0x00
	WifiAPConfig     WifiStatus = 0x01
	WifiNotConnected WifiStatus = 0x02
	WifiConnected    WifiStatus = 0x03
	WifiCloud        WifiStatus = 0x04
	WifiLowPower     WifiStatus = 0x05
)

// Decoder states
const (
	StateAwaitingHeader = iota
	StateAccumulatingPayload
	StateValidatingChecksum
)
