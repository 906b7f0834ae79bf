// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/Thermoquad/tuyastat/pkg/property"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

// Codec holds the decode and encode rules of one dispatch entry.
type Codec interface {
	// DataType is the wire data type the MCU uses for the dpid.
	DataType() tuya.DataType

	// PropertyType is the property value type the codec produces.
	PropertyType() property.Type

	// Decode converts a payload to a value for p.
	Decode(p *property.Property, payload []byte) (any, error)

	// Encode converts the current value of p to a payload.
	Encode(p *property.Property) ([]byte, error)
}

// Quantizer is implemented by codecs whose wire format is coarser than the
// property value. Quantize returns v snapped to the nearest value the codec
// can carry. Values it does not understand are returned unchanged.
type Quantizer interface {
	Quantize(v any) any
}

// BoolCodec maps a BOOL data point to a boolean property.
type BoolCodec struct{}

func (BoolCodec) DataType() tuya.DataType     { return tuya.DataTypeBool }
func (BoolCodec) PropertyType() property.Type { return property.TypeBoolean }

func (BoolCodec) Decode(_ *property.Property, payload []byte) (any, error) {
	return tuya.DecodeBool(payload)
}

func (BoolCodec) Encode(p *property.Property) ([]byte, error) {
	v, ok := p.Bool()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, p.ID())
	}
	return tuya.EncodeBool(v), nil
}

// ValueCodec maps a VALUE data point to a double property.
// The raw integer divided by Factor is the property value.
type ValueCodec struct {
	Factor float64
}

func (ValueCodec) DataType() tuya.DataType     { return tuya.DataTypeValue }
func (ValueCodec) PropertyType() property.Type { return property.TypeDouble }

func (c ValueCodec) factor() float64 {
	if c.Factor <= 0 {
		return 1
	}
	return c.Factor
}

func (c ValueCodec) Decode(_ *property.Property, payload []byte) (any, error) {
	v, err := tuya.DecodeValue(payload)
	if err != nil {
		return nil, err
	}
	return float64(v) / c.factor(), nil
}

func (c ValueCodec) Encode(p *property.Property) ([]byte, error) {
	v, ok := p.Double()
	if !ok || math.IsNaN(v) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, p.ID())
	}
	raw := math.Round(v * c.factor())
	if raw > math.MaxInt32 || raw < math.MinInt32 {
		return nil, fmt.Errorf("%w: %s %v does not fit a VALUE", ErrValueOutOfRange, p.ID(), v)
	}
	return tuya.EncodeValue(int32(raw)), nil
}

// Quantize rounds v to a multiple of 1/Factor so the stored value is the
// one Encode sends and Decode reports back.
func (c ValueCodec) Quantize(v any) any {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return v
	}
	return math.Round(f*c.factor()) / c.factor()
}

// IntegerCodec maps an unscaled VALUE data point to an integer property.
type IntegerCodec struct{}

func (IntegerCodec) DataType() tuya.DataType     { return tuya.DataTypeValue }
func (IntegerCodec) PropertyType() property.Type { return property.TypeInteger }

func (IntegerCodec) Decode(_ *property.Property, payload []byte) (any, error) {
	v, err := tuya.DecodeValue(payload)
	if err != nil {
		return nil, err
	}
	return int64(v), nil
}

func (IntegerCodec) Encode(p *property.Property) ([]byte, error) {
	v, ok := p.Integer()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, p.ID())
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return nil, fmt.Errorf("%w: %s %d does not fit a VALUE", ErrValueOutOfRange, p.ID(), v)
	}
	return tuya.EncodeValue(int32(v)), nil
}

// EnumCodec maps an ENUM data point to a string property with an enum table.
// The payload's trailing byte indexes the table.
type EnumCodec struct{}

func (EnumCodec) DataType() tuya.DataType     { return tuya.DataTypeEnum }
func (EnumCodec) PropertyType() property.Type { return property.TypeString }

func (EnumCodec) Decode(p *property.Property, payload []byte) (any, error) {
	index, err := tuya.DecodeEnum(payload)
	if err != nil {
		return nil, err
	}
	s, err := p.EnumString(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, err)
	}
	return s, nil
}

func (EnumCodec) Encode(p *property.Property) ([]byte, error) {
	index := p.EnumIndex()
	if index == property.NoEnumIndex {
		return nil, fmt.Errorf("%w: %s has no enum value", ErrInvalidState, p.ID())
	}
	return tuya.EncodeEnum(index), nil
}

// StringCodec maps a STRING data point to a string property.
type StringCodec struct{}

func (StringCodec) DataType() tuya.DataType     { return tuya.DataTypeString }
func (StringCodec) PropertyType() property.Type { return property.TypeString }

func (StringCodec) Decode(_ *property.Property, payload []byte) (any, error) {
	return tuya.DecodeString(payload), nil
}

func (StringCodec) Encode(p *property.Property) ([]byte, error) {
	s, ok := p.StringValue()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, p.ID())
	}
	return tuya.EncodeString(s), nil
}

// BitmapCodec maps a BITMAP data point to an integer property.
type BitmapCodec struct {
	Width int // 1, 2 or 4 bytes on the wire
}

func (BitmapCodec) DataType() tuya.DataType     { return tuya.DataTypeBitmap }
func (BitmapCodec) PropertyType() property.Type { return property.TypeInteger }

func (BitmapCodec) Decode(_ *property.Property, payload []byte) (any, error) {
	v, err := tuya.DecodeBitmap(payload)
	if err != nil {
		return nil, err
	}
	return int64(v), nil
}

func (c BitmapCodec) Encode(p *property.Property) ([]byte, error) {
	v, ok := p.Integer()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, p.ID())
	}
	if v < 0 || v > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %s bitmap %d", ErrValueOutOfRange, p.ID(), v)
	}
	width := c.Width
	if width == 0 {
		width = 1
	}
	return tuya.EncodeBitmap(uint32(v), width)
}

// RawCodec maps a RAW data point to a hex string property.
type RawCodec struct{}

func (RawCodec) DataType() tuya.DataType     { return tuya.DataTypeRaw }
func (RawCodec) PropertyType() property.Type { return property.TypeString }

func (RawCodec) Decode(_ *property.Property, payload []byte) (any, error) {
	return hex.EncodeToString(payload), nil
}

func (RawCodec) Encode(p *property.Property) ([]byte, error) {
	s, ok := p.StringValue()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, p.ID())
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not hex: %v", ErrInvalidState, p.ID(), err)
	}
	return b, nil
}
