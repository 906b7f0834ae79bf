// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import "time"

// Command builder functions create module → MCU frames ready for encoding.

// NewHeartbeat creates a HEARTBEAT frame (0x00).
// The MCU answers 0x00 on the first heartbeat after power-up, 0x01 afterwards.
func NewHeartbeat() *Frame {
	return NewFrame(VersionModule, TypeHeartbeat, nil)
}

// NewProductQuery creates a PRODUCT_QUERY frame (0x01).
// The MCU answers with a JSON product description.
func NewProductQuery() *Frame {
	return NewFrame(VersionModule, TypeProductQuery, nil)
}

// NewWorkingModeQuery creates a WORKING_MODE frame (0x02)
func NewWorkingModeQuery() *Frame {
	return NewFrame(VersionModule, TypeWorkingMode, nil)
}

// NewWifiState creates a WIFI_STATE frame (0x03) reporting the module's network status
func NewWifiState(status WifiStatus) *Frame {
	return NewFrame(VersionModule, TypeWifiState, []byte{byte(status)})
}

// NewQueryStatus creates a QUERY_STATUS frame (0x08).
// The MCU reports every data point in response.
func NewQueryStatus() *Frame {
	return NewFrame(VersionModule, TypeQueryStatus, nil)
}

// NewLocalTime creates a LOCAL_TIME response frame (0x1C).
// Layout: valid flag, year-2000, month, day, hour, minute, second, weekday (Monday=1).
func NewLocalTime(t time.Time) *Frame {
	weekday := byte(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	data := []byte{
		0x01,
		byte(t.Year() - 2000),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
		weekday,
	}
	return NewFrame(VersionModule, TypeLocalTime, data)
}

// NewSetDataPoint creates a SET_DATAPOINT frame (0x06) for one data point
func NewSetDataPoint(dpid uint8, dataType DataType, payload []byte) *Frame {
	data := AppendDataPoint(nil, DataPoint{ID: dpid, Type: dataType, Value: payload})
	return NewFrame(VersionModule, TypeSetDataPoint, data)
}

// NewStatusReport creates a STATUS_REPORT frame (0x07) as sent by the MCU.
// Used by simulators and tests.
func NewStatusReport(points ...DataPoint) *Frame {
	var data []byte
	for _, dp := range points {
		data = AppendDataPoint(data, dp)
	}
	return NewFrame(VersionMCU, TypeStatusReport, data)
}
