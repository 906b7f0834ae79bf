// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete means more bytes are needed. It is not a failure.
	ErrIncomplete = errors.New("tuya: incomplete frame")

	ErrChecksumMismatch = errors.New("tuya: checksum mismatch")
	ErrFrameTooLarge    = errors.New("tuya: frame too large")
	ErrPayloadSize      = errors.New("tuya: invalid payload size")
	ErrNotDataPoint     = errors.New("tuya: frame carries no data point")
)

// ChecksumError describes a frame rejected by checksum validation
type ChecksumError struct {
	Expected byte
	Received byte
	Raw      []byte // rejected frame bytes
}

// Error implements the error interface
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%02X, got 0x%02X", e.Expected, e.Received)
}

// Unwrap allows errors.Is(err, ErrChecksumMismatch)
func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// FrameError describes a structurally invalid frame header
type FrameError struct {
	Length int
	Err    error
}

// Error implements the error interface
func (e *FrameError) Error() string {
	return fmt.Sprintf("%v: declared length %d (max %d)", e.Err, e.Length, MaxDataSize)
}

// Unwrap returns the underlying sentinel
func (e *FrameError) Unwrap() error {
	return e.Err
}
