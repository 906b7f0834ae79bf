// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

// Checksum computes the frame checksum: the low byte of the sum of all bytes
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// VerifyChecksum checks the trailing checksum byte of a raw frame
func VerifyChecksum(raw []byte) error {
	if len(raw) < minFrameBytes {
		return ErrIncomplete
	}
	n := len(raw) - 1
	expected := Checksum(raw[:n])
	if raw[n] != expected {
		return &ChecksumError{Expected: expected, Received: raw[n]}
	}
	return nil
}
