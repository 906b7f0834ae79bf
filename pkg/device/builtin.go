// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"fmt"
	"maps"
	"slices"
)

func bound(f float64) *float64 { return &f }

// Schedule modes shared by the built-in models
const (
	SchedulesModeAuto    = "auto"
	SchedulesModeOff     = "off"
	SchedulesModeHoliday = "holiday"
	SchedulesModeHold    = "hold"
)

// Sensor selection values of the ME102H
const (
	SensorInternal = "internal"
	SensorFloor    = "floor"
	SensorBoth     = "both"
)

// ME102H describes the ME102H floor heating thermostat.
//
// Captured status frames:
//
//	deviceOn          55AA03070005010100010112
//	temperature       55AA03070008180200040000001645
//	floorTemperature  55AA0307000865020004000000007C
//	targetTemperature 55AA03070008100200040000001940
//	schedulesMode     55AA03070005020400010116
//	sensorSelection   55AA030700052B040001003E
//	locked            55AA03070005280100010038
func ME102H() ModelSpec {
	return ModelSpec{
		Name:              "me102h",
		Description:       "ME102H floor heating thermostat",
		TemperatureFactor: 1,
		DataPoints: []DataPointSpec{
			{DPID: 0x01, Property: "deviceOn", Title: "Power", Type: "bool"},
			{
				DPID: 0x02, Property: "schedulesMode", Title: "Schedules", Type: "enum",
				Enum: []string{SchedulesModeAuto, SchedulesModeOff, SchedulesModeHoliday, SchedulesModeHold},
			},
			{
				DPID: 0x10, Property: "targetTemperature", Title: "Target", Type: "value",
				Scaled: true, Unit: "celsius", Min: bound(5), Max: bound(35),
			},
			{DPID: 0x18, Property: "temperature", Title: "Actual", Type: "value", Scaled: true, Unit: "celsius", ReadOnly: true},
			{DPID: 0x65, Property: "floorTemperature", Title: "Floor", Type: "value", Scaled: true, Unit: "celsius", ReadOnly: true},
			{DPID: 0x28, Property: "locked", Title: "Lock", Type: "bool"},
			{
				DPID: 0x2B, Property: "sensorSelection", Title: "Sensor Selection", Type: "enum",
				Enum: []string{SensorInternal, SensorFloor, SensorBoth}, Visibility: "mqtt",
			},
		},
		Ignored: []IgnoredSpec{
			{DPID: 0x13, Note: "temperature ceiling"},
			{DPID: 0x17, Note: "temperature scale"},
			{DPID: 0x1A, Note: "temperature lower limit"},
			{DPID: 0x1B, Note: "temperature correction"},
			{DPID: 0x24, Note: "heater state"},
			{DPID: 0x2D, Note: "unknown state bits"},
			{DPID: 0x67, Note: "freeze mode"},
			{DPID: 0x68, Note: "programming mode"},
			{DPID: 0x6A, Note: "switch difference"},
			{DPID: 0x6C, Note: "schedules"},
		},
	}
}

// BHT002 describes the BHT-002 family of wall thermostats.
// Temperatures are reported in half degrees.
func BHT002() ModelSpec {
	return ModelSpec{
		Name:              "bht-002",
		Description:       "BHT-002 wall thermostat",
		TemperatureFactor: 2,
		DataPoints: []DataPointSpec{
			{DPID: 0x01, Property: "deviceOn", Title: "Power", Type: "bool"},
			{
				DPID: 0x02, Property: "targetTemperature", Title: "Target", Type: "value",
				Scaled: true, Unit: "celsius", Min: bound(5), Max: bound(35),
			},
			{DPID: 0x03, Property: "temperature", Title: "Actual", Type: "value", Scaled: true, Unit: "celsius", ReadOnly: true},
			{
				DPID: 0x04, Property: "schedulesMode", Title: "Schedules", Type: "enum",
				Enum: []string{SchedulesModeAuto, SchedulesModeOff},
			},
			{DPID: 0x05, Property: "ecoMode", Title: "Eco", Type: "bool"},
			{DPID: 0x06, Property: "locked", Title: "Lock", Type: "bool"},
			{DPID: 0x66, Property: "floorTemperature", Title: "Floor", Type: "value", Scaled: true, Unit: "celsius", ReadOnly: true},
		},
		Ignored: []IgnoredSpec{
			{DPID: 0x65, Note: "schedules"},
		},
	}
}

var builtins = map[string]func() ModelSpec{
	"me102h":  ME102H,
	"bht-002": BHT002,
}

// Builtin returns the description of a built-in model.
func Builtin(name string) (ModelSpec, error) {
	fn, ok := builtins[name]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownModel, name, BuiltinNames())
	}
	return fn(), nil
}

// BuiltinNames returns the names of the built-in models in sorted order.
func BuiltinNames() []string {
	return slices.Sorted(maps.Keys(builtins))
}
