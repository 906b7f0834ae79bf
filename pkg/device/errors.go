// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import "errors"

var (
	// ErrValueOutOfRange means a payload decoded to a value the property
	// cannot hold, e.g. an enum index beyond the table.
	ErrValueOutOfRange = errors.New("device: decoded value out of range")

	// ErrInvalidState means the property has no valid value to send.
	ErrInvalidState = errors.New("device: property has no valid state")

	// ErrDataType means a data point arrived with a different data type
	// than the model declares for its dpid.
	ErrDataType = errors.New("device: unexpected data type")

	ErrInvalidModel = errors.New("device: invalid model")
	ErrUnknownModel = errors.New("device: unknown model")
)
