// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package property provides the in-memory store of named, typed device
// properties. Properties carry an optional enumerated string domain, a
// visibility tag controlling external export, and change callbacks.
package property

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Type is the value type of a property.
type Type uint8

const (
	TypeBoolean Type = iota
	TypeInteger
	TypeDouble
	TypeString
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	}
	return "unknown"
}

// ParseType parses a type name as produced by Type.String.
func ParseType(s string) (Type, error) {
	for _, t := range []Type{TypeBoolean, TypeInteger, TypeDouble, TypeString} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown type %q", ErrValueType, s)
}

// Visibility controls which external surfaces export a property.
type Visibility uint8

const (
	VisibilityNone     Visibility = 0
	VisibilityMQTT     Visibility = 1 << 0
	VisibilityWebthing Visibility = 1 << 1
	VisibilityAll                 = VisibilityMQTT | VisibilityWebthing
)

// Includes reports whether v exports to every surface in o.
func (v Visibility) Includes(o Visibility) bool { return v&o == o }

// String returns the visibility name.
func (v Visibility) String() string {
	switch v {
	case VisibilityNone:
		return "none"
	case VisibilityMQTT:
		return "mqtt"
	case VisibilityWebthing:
		return "webthing"
	case VisibilityAll:
		return "all"
	}
	return "unknown"
}

// ParseVisibility parses a visibility name. The empty string means all.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "", "all":
		return VisibilityAll, nil
	case "none":
		return VisibilityNone, nil
	case "mqtt":
		return VisibilityMQTT, nil
	case "webthing":
		return VisibilityWebthing, nil
	}
	return 0, fmt.Errorf("unknown visibility %q", s)
}

// NoEnumIndex is returned by EnumIndex when the property has no enum value.
const NoEnumIndex uint8 = 0xFF

// Property errors.
var (
	ErrUnknownProperty     = errors.New("unknown property")
	ErrDuplicateProperty   = errors.New("duplicate property")
	ErrValueType           = errors.New("invalid value type for property")
	ErrNotInEnum           = errors.New("value not in enum")
	ErrEnumIndexOutOfRange = errors.New("enum index out of range")
	ErrNotEnum             = errors.New("property has no enum")
	ErrOutOfRange          = errors.New("value out of range")
	ErrReadOnly            = errors.New("property is read-only")
)

// ChangeFunc is called after a property value changed. source is the value
// passed to SetFrom or SetEnumIndexFrom, nil for Set and SetEnumIndex.
type ChangeFunc func(p *Property, source any)

// Options holds the optional attributes of a property.
type Options struct {
	// Title is the human-readable name.
	Title string

	// Unit is the unit of measurement (e.g. "celsius").
	Unit string

	// Enum is the ordered table of allowed string values.
	Enum []string

	// ReadOnly marks a property that only the device may change.
	ReadOnly bool

	// Visibility defaults to VisibilityNone when zero.
	Visibility Visibility

	// MinValue and MaxValue bound numeric values when non-nil.
	MinValue *float64
	MaxValue *float64
}

// Property is a named, typed observable value.
type Property struct {
	mu        sync.RWMutex
	id        string
	typ       Type
	opts      Options
	value     any
	callbacks []ChangeFunc
}

// New creates an unset property.
func New(id string, typ Type, opts Options) *Property {
	opts.Enum = slices.Clone(opts.Enum)
	return &Property{id: id, typ: typ, opts: opts}
}

// ID returns the property id.
func (p *Property) ID() string { return p.id }

// Title returns the human-readable name, falling back to the id.
func (p *Property) Title() string {
	if p.opts.Title == "" {
		return p.id
	}
	return p.opts.Title
}

// Type returns the value type.
func (p *Property) Type() Type { return p.typ }

// Unit returns the unit of measurement.
func (p *Property) Unit() string { return p.opts.Unit }

// ReadOnly reports whether only the device may change the property.
func (p *Property) ReadOnly() bool { return p.opts.ReadOnly }

// Visibility returns the visibility tag.
func (p *Property) Visibility() Visibility { return p.opts.Visibility }

// Range returns the numeric bounds, nil when unbounded.
func (p *Property) Range() (lo, hi *float64) { return p.opts.MinValue, p.opts.MaxValue }

// Enum returns a copy of the enum table.
func (p *Property) Enum() []string { return slices.Clone(p.opts.Enum) }

// IsEnum reports whether the property has an enum table.
func (p *Property) IsEnum() bool { return len(p.opts.Enum) > 0 }

// Value returns the current value, nil when unset.
// Integers are int64, doubles float64.
func (p *Property) Value() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// IsSet reports whether the property holds a value.
func (p *Property) IsSet() bool {
	return p.Value() != nil
}

// Bool returns the boolean value.
func (p *Property) Bool() (bool, bool) {
	v, ok := p.Value().(bool)
	return v, ok
}

// Integer returns the integer value.
func (p *Property) Integer() (int64, bool) {
	v, ok := p.Value().(int64)
	return v, ok
}

// Double returns the double value.
func (p *Property) Double() (float64, bool) {
	v, ok := p.Value().(float64)
	return v, ok
}

// StringValue returns the string value.
func (p *Property) StringValue() (string, bool) {
	v, ok := p.Value().(string)
	return v, ok
}

// EnumIndex returns the index of the current value in the enum table,
// or NoEnumIndex when unset or not an enum property.
func (p *Property) EnumIndex() uint8 {
	s, ok := p.StringValue()
	if !ok {
		return NoEnumIndex
	}
	i := slices.Index(p.opts.Enum, s)
	if i < 0 || i >= int(NoEnumIndex) {
		return NoEnumIndex
	}
	return uint8(i)
}

// EnumString returns the enum table entry at index.
func (p *Property) EnumString(index uint8) (string, error) {
	if !p.IsEnum() {
		return "", fmt.Errorf("%w: %s", ErrNotEnum, p.id)
	}
	if int(index) >= len(p.opts.Enum) {
		return "", fmt.Errorf("%w: %s index %d (size %d)", ErrEnumIndexOutOfRange, p.id, index, len(p.opts.Enum))
	}
	return p.opts.Enum[index], nil
}

// OnChange registers a callback invoked after every value change.
// Callbacks run in registration order, outside the property lock.
func (p *Property) OnChange(fn ChangeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, fn)
}

// Set validates and stores v. A nil v unsets the property.
// Returns true when the stored value changed; callbacks fire only then.
func (p *Property) Set(v any) (bool, error) {
	return p.SetFrom(v, nil)
}

// SetFrom is Set with source handed to the change callbacks, so an owner
// can tell its own changes from everyone else's.
func (p *Property) SetFrom(v any, source any) (bool, error) {
	if v != nil {
		var err error
		if v, err = p.normalize(v); err != nil {
			return false, err
		}
	}

	p.mu.Lock()
	if p.value == v {
		p.mu.Unlock()
		return false, nil
	}
	p.value = v
	callbacks := slices.Clone(p.callbacks)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn(p, source)
	}
	return true, nil
}

// SetEnumIndex sets an enum property to the table entry at index.
// NoEnumIndex unsets the property.
func (p *Property) SetEnumIndex(index uint8) (bool, error) {
	return p.SetEnumIndexFrom(index, nil)
}

// SetEnumIndexFrom is SetEnumIndex with a change source, see SetFrom.
func (p *Property) SetEnumIndexFrom(index uint8, source any) (bool, error) {
	if index == NoEnumIndex {
		if !p.IsEnum() {
			return false, fmt.Errorf("%w: %s", ErrNotEnum, p.id)
		}
		return p.SetFrom(nil, source)
	}
	s, err := p.EnumString(index)
	if err != nil {
		return false, err
	}
	return p.SetFrom(s, source)
}

// normalize checks v against the property type and converts it to the
// canonical Go type for that property.
func (p *Property) normalize(v any) (any, error) {
	switch p.typ {
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: %s expects boolean, got %T", ErrValueType, p.id, v)

	case TypeInteger:
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects integer, got %T", ErrValueType, p.id, v)
		}
		if err := p.checkRange(float64(n)); err != nil {
			return nil, err
		}
		return n, nil

	case TypeDouble:
		f, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects double, got %T", ErrValueType, p.id, v)
		}
		if err := p.checkRange(f); err != nil {
			return nil, err
		}
		return f, nil

	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects string, got %T", ErrValueType, p.id, v)
		}
		if p.IsEnum() && !slices.Contains(p.opts.Enum, s) {
			return nil, fmt.Errorf("%w: %s does not allow %q", ErrNotInEnum, p.id, s)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s has unknown type %d", ErrValueType, p.id, p.typ)
}

func (p *Property) checkRange(v float64) error {
	if p.opts.MinValue != nil && v < *p.opts.MinValue {
		return fmt.Errorf("%w: %s %v < %v", ErrOutOfRange, p.id, v, *p.opts.MinValue)
	}
	if p.opts.MaxValue != nil && v > *p.opts.MaxValue {
		return fmt.Errorf("%w: %s %v > %v", ErrOutOfRange, p.id, v, *p.opts.MaxValue)
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// Parse converts text to a value of the property's type.
func (p *Property) Parse(s string) (any, error) {
	s = strings.TrimSpace(s)
	switch p.typ {
	case TypeBoolean:
		switch strings.ToLower(s) {
		case "true", "on", "1", "yes":
			return true, nil
		case "false", "off", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %s expects boolean, got %q", ErrValueType, p.id, s)
	case TypeInteger:
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects integer: %v", ErrValueType, p.id, err)
		}
		return n, nil
	case TypeDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects double: %v", ErrValueType, p.id, err)
		}
		return f, nil
	}
	return s, nil
}

// Format renders the current value for display; "-" when unset.
func (p *Property) Format() string {
	switch v := p.Value().(type) {
	case nil:
		return "-"
	case bool:
		if v {
			return "on"
		}
		return "off"
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if p.opts.Unit == "celsius" {
			s += " °C"
		}
		return s
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
