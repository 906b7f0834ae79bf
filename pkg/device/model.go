// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package device wires the data points of a thermostat model to properties.
//
// A Model is the dispatch table for one device family: every mapped dpid
// has an Entry carrying the property and its codec, and benign dpids the
// model does not expose are listed as ignored. Models are built once from a
// ModelSpec and are read-only afterwards.
package device

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Thermoquad/tuyastat/pkg/property"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

// Classification is the result of looking up a dpid in a model.
type Classification int

const (
	Unknown Classification = iota
	Mapped
	Ignored
)

// String returns the classification name
func (c Classification) String() string {
	switch c {
	case Mapped:
		return "mapped"
	case Ignored:
		return "ignored"
	}
	return "unknown"
}

// Entry maps one dpid to a property.
type Entry struct {
	DPID     uint8
	Property *property.Property
	Codec    Codec
}

// Decode converts a data point to a value for the entry's property.
// The data point type must match the codec.
func (e *Entry) Decode(dp tuya.DataPoint) (any, error) {
	if dp.Type != e.Codec.DataType() {
		return nil, fmt.Errorf("%w: dpid 0x%02X is %s, model expects %s",
			ErrDataType, dp.ID, dp.Type, e.Codec.DataType())
	}
	return e.Codec.Decode(e.Property, dp.Value)
}

// Quantize snaps v to a value the entry's codec can encode exactly.
func (e *Entry) Quantize(v any) any {
	if q, ok := e.Codec.(Quantizer); ok && v != nil {
		return q.Quantize(v)
	}
	return v
}

// Encode builds the payload for the property's current value.
func (e *Entry) Encode() ([]byte, error) {
	return e.Codec.Encode(e.Property)
}

// Model is the read-only dispatch table of a device model.
type Model struct {
	name        string
	description string
	factor      float64
	entries     map[uint8]*Entry
	byProperty  map[string]*Entry
	ignored     map[uint8]string
}

// Name returns the model name
func (m *Model) Name() string { return m.name }

// Description returns the model description
func (m *Model) Description() string { return m.description }

// TemperatureFactor returns the divisor applied to scaled VALUE data points
func (m *Model) TemperatureFactor() float64 { return m.factor }

// Lookup classifies a dpid. The entry is nil unless the dpid is Mapped.
func (m *Model) Lookup(dpid uint8) (*Entry, Classification) {
	if e, ok := m.entries[dpid]; ok {
		return e, Mapped
	}
	if _, ok := m.ignored[dpid]; ok {
		return nil, Ignored
	}
	return nil, Unknown
}

// EntryFor returns the entry of a property id.
func (m *Model) EntryFor(propertyID string) (*Entry, bool) {
	e, ok := m.byProperty[propertyID]
	return e, ok
}

// Entries returns the mapped entries ordered by dpid.
func (m *Model) Entries() []*Entry {
	out := make([]*Entry, 0, len(m.entries))
	for _, dpid := range slices.Sorted(maps.Keys(m.entries)) {
		out = append(out, m.entries[dpid])
	}
	return out
}

// IgnoredNote returns the note of an ignored dpid.
func (m *Model) IgnoredNote(dpid uint8) string {
	return m.ignored[dpid]
}

// IgnoredDPIDs returns the ignored dpids in ascending order.
func (m *Model) IgnoredDPIDs() []uint8 {
	return slices.Sorted(maps.Keys(m.ignored))
}

// Build validates spec, creates its properties in reg and returns the model.
func Build(spec ModelSpec, reg *property.Registry) (*Model, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidModel)
	}
	factor := spec.TemperatureFactor
	if factor == 0 {
		factor = 1
	}
	if factor < 0 {
		return nil, fmt.Errorf("%w: %s: temperature factor %v", ErrInvalidModel, spec.Name, factor)
	}

	m := &Model{
		name:        spec.Name,
		description: spec.Description,
		factor:      factor,
		entries:     make(map[uint8]*Entry),
		byProperty:  make(map[string]*Entry),
		ignored:     make(map[uint8]string),
	}

	for _, ig := range spec.Ignored {
		if _, dup := m.ignored[ig.DPID]; dup {
			return nil, fmt.Errorf("%w: %s: dpid 0x%02X ignored twice", ErrInvalidModel, spec.Name, ig.DPID)
		}
		m.ignored[ig.DPID] = ig.Note
	}

	for _, dp := range spec.DataPoints {
		if _, dup := m.entries[dp.DPID]; dup {
			return nil, fmt.Errorf("%w: %s: dpid 0x%02X mapped twice", ErrInvalidModel, spec.Name, dp.DPID)
		}
		if _, ig := m.ignored[dp.DPID]; ig {
			return nil, fmt.Errorf("%w: %s: dpid 0x%02X both mapped and ignored", ErrInvalidModel, spec.Name, dp.DPID)
		}
		if _, dup := m.byProperty[dp.Property]; dup {
			return nil, fmt.Errorf("%w: %s: property %q mapped twice", ErrInvalidModel, spec.Name, dp.Property)
		}

		codec, err := dp.codec(factor)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: dpid 0x%02X: %v", ErrInvalidModel, spec.Name, dp.DPID, err)
		}
		p, err := dp.property(codec)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: dpid 0x%02X: %v", ErrInvalidModel, spec.Name, dp.DPID, err)
		}
		if err := reg.Add(p); err != nil {
			return nil, fmt.Errorf("building model %s: %w", spec.Name, err)
		}

		e := &Entry{DPID: dp.DPID, Property: p, Codec: codec}
		m.entries[dp.DPID] = e
		m.byProperty[dp.Property] = e
	}

	return m, nil
}
