// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

var setTimeout int

var setCmd = &cobra.Command{
	Use:   "set PROPERTY VALUE",
	Short: "Change one property on the MCU",
	Long: `Change one writable property of the device model and send it to the MCU.

The value is parsed according to the property type: on/off/true/false for
booleans, a table entry for enums and a number for numeric properties.
Exactly one SET_DATA_POINT frame is written.

The command then waits up to --timeout seconds for the MCU to report the
data point back. A timeout of 0 returns right after sending.

Examples:
  tuyastat set -p /dev/ttyUSB0 deviceOn on
  tuyastat set -p /dev/ttyUSB0 targetTemperature 21.5
  tuyastat set -p /dev/ttyUSB0 sensorSelection floor`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().IntVar(&setTimeout, "timeout", 3, "Seconds to wait for the MCU to report the new value")
}

func runSet(cmd *cobra.Command, args []string) error {
	id, raw := args[0], args[1]

	model, reg, err := loadModel()
	if err != nil {
		return err
	}
	p, err := reg.Get(id)
	if err != nil {
		return err
	}
	value, err := p.Parse(raw)
	if err != nil {
		return err
	}
	entry, ok := model.EntryFor(id)
	if !ok {
		return fmt.Errorf("%s has no data point in model %s", id, model.Name())
	}

	conn, connInfo, err := OpenConnection(cfg.Connection, cfg.Capture.File)
	if err != nil {
		return err
	}
	defer conn.Close()

	b := bridge.New(model, reg, conn, bridge.Options{Logger: logger})
	if err := b.Set(id, value); err != nil {
		return err
	}
	fmt.Printf("Sent %s = %s (dpid 0x%02X) via %s\n", id, p.Format(), entry.DPID, connInfo)

	if setTimeout <= 0 {
		return nil
	}

	// Wait for the MCU to confirm the data point
	reported := make(chan string, 1)
	go func() {
		_ = readFrames(conn, func(f *tuya.Frame) error {
			if f.Type() != tuya.TypeStatusReport {
				return nil
			}
			points, _ := f.DataPoints()
			for _, dp := range points {
				if dp.ID == entry.DPID {
					reported <- describeDataPoint(model, dp)
					return errStopReading
				}
			}
			return nil
		}, nil)
	}()

	select {
	case line := <-reported:
		fmt.Print("MCU reported:\n" + line)
	case <-time.After(time.Duration(setTimeout) * time.Second):
		fmt.Printf("No report for dpid 0x%02X within %d seconds\n", entry.DPID, setTimeout)
	}
	return nil
}
