// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import (
	"encoding/binary"
	"fmt"
)

// Data point value codecs. Decoders validate the payload width for the
// fixed-size data types; ENUM tolerates a wider payload and uses its last byte.

// DecodeBool decodes a BOOL value (1 byte, non-zero is true)
func DecodeBool(payload []byte) (bool, error) {
	if len(payload) != 1 {
		return false, fmt.Errorf("%w: bool needs 1 byte, got %d", ErrPayloadSize, len(payload))
	}
	return payload[0] != 0, nil
}

// EncodeBool encodes a BOOL value
func EncodeBool(v bool) []byte {
	if v {
		return []byte{0x01}
	}
	return []byte{0x00}
}

// DecodeValue decodes a VALUE (4-byte big-endian signed integer)
func DecodeValue(payload []byte) (int32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("%w: value needs 4 bytes, got %d", ErrPayloadSize, len(payload))
	}
	return int32(binary.BigEndian.Uint32(payload)), nil
}

// EncodeValue encodes a VALUE
func EncodeValue(v int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(v))
}

// DecodeEnum decodes an ENUM index from the payload's trailing byte
func DecodeEnum(payload []byte) (uint8, error) {
	if len(payload) == 0 {
		return 0, fmt.Errorf("%w: enum payload is empty", ErrPayloadSize)
	}
	return payload[len(payload)-1], nil
}

// EncodeEnum encodes an ENUM index
func EncodeEnum(index uint8) []byte {
	return []byte{index}
}

// DecodeString decodes a STRING value
func DecodeString(payload []byte) string {
	return string(payload)
}

// EncodeString encodes a STRING value
func EncodeString(s string) []byte {
	return []byte(s)
}

// DecodeBitmap decodes a BITMAP value of 1, 2 or 4 bytes (big-endian)
func DecodeBitmap(payload []byte) (uint32, error) {
	switch len(payload) {
	case 1:
		return uint32(payload[0]), nil
	case 2:
		return uint32(binary.BigEndian.Uint16(payload)), nil
	case 4:
		return binary.BigEndian.Uint32(payload), nil
	}
	return 0, fmt.Errorf("%w: bitmap needs 1, 2 or 4 bytes, got %d", ErrPayloadSize, len(payload))
}

// EncodeBitmap encodes a BITMAP value using the given width (1, 2 or 4)
func EncodeBitmap(v uint32, width int) ([]byte, error) {
	switch width {
	case 1:
		return []byte{byte(v)}, nil
	case 2:
		return binary.BigEndian.AppendUint16(nil, uint16(v)), nil
	case 4:
		return binary.BigEndian.AppendUint32(nil, v), nil
	}
	return nil, fmt.Errorf("%w: bitmap width %d", ErrPayloadSize, width)
}
