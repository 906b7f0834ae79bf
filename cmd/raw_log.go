// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

var rawLogCapture string

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display Tuya serial frames as they arrive.

Each frame is shown with timestamp, frame type and payload. Data points of
status reports are interpreted through the selected device model.

With --capture, all traffic is also recorded to a CBOR file that can be fed
back through the bridge with 'replay'.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogCapture, "capture", "", "Record traffic to a CBOR capture file")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	model, _, err := loadModel()
	if err != nil {
		return err
	}

	captureFile := cfg.Capture.File
	if cmd.Flags().Changed("capture") {
		captureFile = rawLogCapture
	}

	conn, connInfo, err := OpenConnection(cfg.Connection, captureFile)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Tuyastat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Model: %s\n", model.Name())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return readFrames(conn,
		func(f *tuya.Frame) error {
			fmt.Print(formatFrame(model, f))
			return nil
		},
		func(err error) {
			fmt.Printf("[ERROR] %v\n", err)
		})
}
