// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	frameType := FormatFrameType(f.Type())

	result := fmt.Sprintf("[%s] %s (0x%02X) ver=%d len=%d\n", timestamp, frameType, f.Type(), f.Version(), f.Length())
	result += FormatFrameData(f)

	return result
}

// FormatFrameType returns the human-readable name for a frame type
func FormatFrameType(frameType uint8) string {
	switch frameType {
	case TypeHeartbeat:
		return "HEARTBEAT"
	case TypeProductQuery:
		return "PRODUCT_QUERY"
	case TypeWorkingMode:
		return "WORKING_MODE"
	case TypeWifiState:
		return "WIFI_STATE"
	case TypeWifiReset:
		return "WIFI_RESET"
	case TypeWifiResetSelect:
		return "WIFI_RESET_SELECT"
	case TypeSetDataPoint:
		return "SET_DATAPOINT"
	case TypeStatusReport:
		return "STATUS_REPORT"
	case TypeQueryStatus:
		return "QUERY_STATUS"
	case TypeLocalTime:
		return "LOCAL_TIME"
	default:
		return "UNKNOWN"
	}
}

// FormatDataType returns the protocol name for a data type
func FormatDataType(t DataType) string {
	switch t {
	case DataTypeRaw:
		return "RAW"
	case DataTypeBool:
		return "BOOL"
	case DataTypeValue:
		return "VALUE"
	case DataTypeString:
		return "STRING"
	case DataTypeEnum:
		return "ENUM"
	case DataTypeBitmap:
		return "BITMAP"
	default:
		return "UNKNOWN"
	}
}

// FormatFrameData formats the data section based on frame type
func FormatFrameData(f *Frame) string {
	data := f.Data()

	switch f.Type() {
	case TypeHeartbeat:
		if len(data) == 0 {
			return "  (request)\n"
		}
		if data[0] == HeartbeatFirst {
			return "  MCU: first heartbeat since power-up\n"
		}
		return "  MCU: alive\n"

	case TypeProductQuery:
		if len(data) == 0 {
			return "  (request)\n"
		}
		return fmt.Sprintf("  Product: %s\n", string(data))

	case TypeWifiState:
		if len(data) >= 1 {
			return fmt.Sprintf("  WiFi: %s (%d)\n", formatWifiStatus(WifiStatus(data[0])), data[0])
		}

	case TypeQueryStatus:
		return "  (request)\n"

	case TypeLocalTime:
		if len(data) == 0 {
			return "  (request)\n"
		}
		if len(data) >= 8 {
			return fmt.Sprintf("  Time: 20%02d-%02d-%02d %02d:%02d:%02d weekday=%d valid=%d\n",
				data[1], data[2], data[3], data[4], data[5], data[6], data[7], data[0])
		}

	case TypeStatusReport, TypeSetDataPoint:
		points, err := f.DataPoints()
		var s strings.Builder
		for _, dp := range points {
			s.WriteString(FormatDataPoint(dp))
		}
		if err != nil {
			s.WriteString(fmt.Sprintf("  Error: %v\n", err))
		}
		return s.String()
	}

	if len(data) == 0 {
		return "  (no data)\n"
	}
	return "  Data: " + FormatHex(data) + "\n"
}

// FormatDataPoint formats a single data point unit
func FormatDataPoint(dp DataPoint) string {
	return fmt.Sprintf("  DP 0x%02X (%d) %s: %s\n", dp.ID, dp.ID, dp.Type, FormatDataPointValue(dp))
}

// FormatDataPointValue renders a data point value according to its type
func FormatDataPointValue(dp DataPoint) string {
	switch dp.Type {
	case DataTypeBool:
		if v, err := DecodeBool(dp.Value); err == nil {
			return fmt.Sprintf("%t", v)
		}
	case DataTypeValue:
		if v, err := DecodeValue(dp.Value); err == nil {
			return fmt.Sprintf("%d", v)
		}
	case DataTypeEnum:
		if v, err := DecodeEnum(dp.Value); err == nil {
			return fmt.Sprintf("index %d", v)
		}
	case DataTypeString:
		return fmt.Sprintf("%q", DecodeString(dp.Value))
	case DataTypeBitmap:
		if v, err := DecodeBitmap(dp.Value); err == nil {
			return fmt.Sprintf("0b%b", v)
		}
	}
	return FormatHex(dp.Value)
}

// FormatHex renders bytes as space separated upper-case hex
func FormatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

func formatWifiStatus(s WifiStatus) string {
	switch s {
	case WifiSmartConfig:
		return "SMART_CONFIG"
	case WifiAPConfig:
		return "AP_CONFIG"
	case WifiNotConnected:
		return "NOT_CONNECTED"
	case WifiConnected:
		return "CONNECTED"
	case WifiCloud:
		return "CLOUD"
	case WifiLowPower:
		return "LOW_POWER"
	default:
		return "UNKNOWN"
	}
}
