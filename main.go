// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Tuyastat - Tuya MCU Serial Bridge
//
// A CLI tool that stands in for the WiFi module of Tuya based thermostats:
// it decodes the MCU serial protocol, maps data points to properties and
// sends property changes back to the MCU.

package main

import (
	"os"

	"github.com/Thermoquad/tuyastat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
