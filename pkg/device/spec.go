// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/tuyastat/pkg/property"
)

// ModelSpec is the declarative description of a device model.
type ModelSpec struct {
	Name              string          `yaml:"name"`
	Description       string          `yaml:"description,omitempty"`
	TemperatureFactor float64         `yaml:"temperatureFactor,omitempty"`
	DataPoints        []DataPointSpec `yaml:"dataPoints"`
	Ignored           []IgnoredSpec   `yaml:"ignored,omitempty"`
}

// DataPointSpec describes one mapped dpid.
type DataPointSpec struct {
	DPID       uint8    `yaml:"dpid"`
	Property   string   `yaml:"property"`
	Title      string   `yaml:"title,omitempty"`
	Type       string   `yaml:"type"` // bool, value, enum, string, bitmap, raw
	Scaled     bool     `yaml:"scaled,omitempty"`
	Enum       []string `yaml:"enum,omitempty"`
	Unit       string   `yaml:"unit,omitempty"`
	ReadOnly   bool     `yaml:"readOnly,omitempty"`
	Visibility string   `yaml:"visibility,omitempty"`
	Min        *float64 `yaml:"min,omitempty"`
	Max        *float64 `yaml:"max,omitempty"`
	Width      int      `yaml:"width,omitempty"` // bitmap width in bytes
}

// IgnoredSpec describes a dpid that is recognized but not exposed.
type IgnoredSpec struct {
	DPID uint8  `yaml:"dpid"`
	Note string `yaml:"note,omitempty"`
}

// ParseModelSpec parses a model description from YAML.
func ParseModelSpec(data []byte) (ModelSpec, error) {
	var spec ModelSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ModelSpec{}, fmt.Errorf("parsing model spec: %w", err)
	}
	return spec, nil
}

// LoadModelSpec reads and parses a model description file.
func LoadModelSpec(path string) (ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelSpec{}, fmt.Errorf("reading model spec: %w", err)
	}
	return ParseModelSpec(data)
}

// MarshalModelSpec renders a model description as YAML.
func MarshalModelSpec(spec ModelSpec) ([]byte, error) {
	return yaml.Marshal(spec)
}

func (d DataPointSpec) codec(factor float64) (Codec, error) {
	switch d.Type {
	case "bool":
		return BoolCodec{}, nil
	case "value":
		if d.Scaled {
			return ValueCodec{Factor: factor}, nil
		}
		return IntegerCodec{}, nil
	case "enum":
		if len(d.Enum) == 0 {
			return nil, fmt.Errorf("enum data point %q needs an enum table", d.Property)
		}
		if len(d.Enum) >= int(property.NoEnumIndex) {
			return nil, fmt.Errorf("enum data point %q has %d entries", d.Property, len(d.Enum))
		}
		return EnumCodec{}, nil
	case "string":
		return StringCodec{}, nil
	case "bitmap":
		switch d.Width {
		case 0, 1, 2, 4:
		default:
			return nil, fmt.Errorf("bitmap data point %q has width %d", d.Property, d.Width)
		}
		return BitmapCodec{Width: d.Width}, nil
	case "raw":
		return RawCodec{}, nil
	}
	return nil, fmt.Errorf("unknown data point type %q", d.Type)
}

func (d DataPointSpec) property(codec Codec) (*property.Property, error) {
	if d.Property == "" {
		return nil, errors.New("missing property id")
	}
	if len(d.Enum) > 0 && d.Type != "enum" {
		return nil, fmt.Errorf("%s data point %q has an enum table", d.Type, d.Property)
	}
	vis, err := property.ParseVisibility(d.Visibility)
	if err != nil {
		return nil, err
	}
	return property.New(d.Property, codec.PropertyType(), property.Options{
		Title:      d.Title,
		Unit:       d.Unit,
		Enum:       d.Enum,
		ReadOnly:   d.ReadOnly,
		Visibility: vis,
		MinValue:   d.Min,
		MaxValue:   d.Max,
	}), nil
}
