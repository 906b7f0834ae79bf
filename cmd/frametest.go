// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

var (
	frameTestTimeout int
	frameTestQuery   bool
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid Tuya frame",
	Long: `Wait for a valid Tuya frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
frame. It ignores invalid bytes and waits for a complete frame with a correct
checksum. With --query, a heartbeat is sent first so an idle MCU answers.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	frameTestCmd.Flags().BoolVar(&frameTestQuery, "query", true, "Send a heartbeat before waiting")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Connection, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Tuyastat - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid Tuya frame...\n\n")

	if frameTestQuery {
		if _, err := conn.Write(tuya.MustEncodeFrame(tuya.NewHeartbeat())); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
	}

	frameChan := make(chan *tuya.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		rejected := 0
		found := false
		err := readFrames(conn,
			func(f *tuya.Frame) error {
				if rejected > 0 {
					fmt.Printf("(rejected %d invalid frames before sync)\n", rejected)
				}
				found = true
				frameChan <- f
				return errStopReading
			},
			func(error) { rejected++ })
		if found {
			return
		}
		if err == nil {
			err = ErrConnectionClosed
		}
		errChan <- err
	}()

	select {
	case f := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X)\n", tuya.FormatFrameType(f.Type()), f.Type())
		fmt.Printf("  Version: 0x%02X\n", f.Version())
		fmt.Printf("  Length: %d bytes\n", f.Length())
		fmt.Printf("  Checksum: 0x%02X\n", f.Checksum())
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
