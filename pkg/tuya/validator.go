// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyValueWidth
	AnomalyUnknownFrameType
	AnomalyUnknownDataType
	AnomalyVersion
	AnomalyChecksumError
	AnomalyDecodeError
)

// String returns the anomaly name
func (a AnomalyType) String() string {
	switch a {
	case AnomalyLengthMismatch:
		return "length_mismatch"
	case AnomalyValueWidth:
		return "value_width"
	case AnomalyUnknownFrameType:
		return "unknown_frame_type"
	case AnomalyUnknownDataType:
		return "unknown_data_type"
	case AnomalyVersion:
		return "version"
	case AnomalyChecksumError:
		return "checksum"
	case AnomalyDecodeError:
		return "decode"
	}
	return "unknown"
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a checksum-valid frame for structural anomalies.
// Returns an empty slice for a well-formed frame.
func ValidateFrame(f *Frame) []ValidationError {
	errors := []ValidationError{}

	if FormatFrameType(f.Type()) == "UNKNOWN" {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownFrameType,
			Message: fmt.Sprintf("Unknown frame type 0x%02X", f.Type()),
			Details: map[string]interface{}{"type": f.Type()},
		})
	}

	switch f.Type() {
	case TypeStatusReport:
		errors = append(errors, validateVersion(f, VersionMCU)...)
		errors = append(errors, validateDataPoints(f)...)
	case TypeSetDataPoint:
		errors = append(errors, validateVersion(f, VersionModule)...)
		errors = append(errors, validateDataPoints(f)...)
	case TypeHeartbeat:
		errors = append(errors, validateHeartbeat(f)...)
	}

	return errors
}

// validateVersion checks the version byte for the frame direction
func validateVersion(f *Frame, expected uint8) []ValidationError {
	if f.Version() == expected {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyVersion,
		Message: fmt.Sprintf("%s with version 0x%02X (expected 0x%02X)", FormatFrameType(f.Type()), f.Version(), expected),
		Details: map[string]interface{}{"version": f.Version(), "expected": expected},
	}}
}

// validateDataPoints checks every data point unit's declared and value widths
func validateDataPoints(f *Frame) []ValidationError {
	errors := []ValidationError{}

	points, err := f.DataPoints()
	if err != nil {
		errors = append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s data section malformed: %v", FormatFrameType(f.Type()), err),
			Details: map[string]interface{}{"length": f.Length()},
		})
	}

	for _, dp := range points {
		if !dp.Type.Valid() {
			errors = append(errors, ValidationError{
				Type:    AnomalyUnknownDataType,
				Message: fmt.Sprintf("dpid 0x%02X has unknown data type 0x%02X", dp.ID, uint8(dp.Type)),
				Details: map[string]interface{}{"dpid": dp.ID, "data_type": uint8(dp.Type)},
			})
			continue
		}
		if width, ok := dp.Type.fixedWidth(); ok && len(dp.Value) != width {
			errors = append(errors, ValidationError{
				Type:    AnomalyValueWidth,
				Message: fmt.Sprintf("dpid 0x%02X %s value is %d bytes (expected %d)", dp.ID, dp.Type, len(dp.Value), width),
				Details: map[string]interface{}{"dpid": dp.ID, "length": len(dp.Value), "expected": width},
			})
		}
	}

	return errors
}

// validateHeartbeat checks HEARTBEAT payloads (empty request or 1-byte response)
func validateHeartbeat(f *Frame) []ValidationError {
	if f.Length() > 1 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("HEARTBEAT data too long (%d bytes, max 1)", f.Length()),
			Details: map[string]interface{}{"length": f.Length(), "max": 1},
		}}
	}
	return nil
}
