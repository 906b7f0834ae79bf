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
	linkTestDuration  int
	linkTestHeartbeat int
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test link stability to the MCU",
	Long: `Keep the connection open for a fixed time and report what arrives.

A heartbeat is sent every --heartbeat seconds (0 disables it) so an idle MCU
keeps talking. Received bytes are decoded and counted, which shows whether a
serial adapter or WebSocket bridge drops or corrupts data over time.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkTest,
}

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
	linkTestCmd.Flags().IntVar(&linkTestHeartbeat, "heartbeat", 5, "Heartbeat interval in seconds")
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Connection, cfg.Capture.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Tuyastat - Link Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				readChan <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	var heartbeat <-chan time.Time
	if linkTestHeartbeat > 0 {
		ticker := time.NewTicker(time.Duration(linkTestHeartbeat) * time.Second)
		defer ticker.Stop()
		heartbeat = ticker.C
	}
	status := time.NewTicker(time.Second)
	defer status.Stop()

	decoder := tuya.NewDecoder()
	start := time.Now()
	deadline := time.After(time.Duration(linkTestDuration) * time.Second)
	bytesReceived, framesReceived, rejected, sent := 0, 0, 0, 0

	results := func(result string) {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Heartbeats sent: %d\n", sent)
		fmt.Printf("Frames received: %d\n", framesReceived)
		fmt.Printf("Frames rejected: %d\n", rejected)
		fmt.Printf("Bytes received: %d\n", bytesReceived)
		fmt.Printf("Result: %s\n", result)
	}

	fmt.Printf("Listening for data...\n\n")

	for {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			frames, errs := decoder.Decode(data)
			framesReceived += len(frames)
			rejected += len(errs)
			for _, f := range frames {
				fmt.Printf("[%s] %s (0x%02X) %d bytes\n",
					time.Now().Format("15:04:05.000"), tuya.FormatFrameType(f.Type()), f.Type(), f.Length())
			}
			for _, e := range errs {
				fmt.Printf("[%s] rejected: %v\n", time.Now().Format("15:04:05.000"), e)
			}

		case <-heartbeat:
			if _, err := conn.Write(tuya.MustEncodeFrame(tuya.NewHeartbeat())); err != nil {
				fmt.Printf("\n[%s] Write error: %v\n", time.Now().Format("15:04:05.000"), err)
				results("FAILED (write error)")
				os.Exit(1)
			}
			sent++

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			results("FAILED (connection error)")
			os.Exit(1)

		case <-status.C:
			remaining := time.Duration(linkTestDuration)*time.Second - time.Since(start)
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining.Seconds())

		case <-deadline:
			if sent > 0 && framesReceived == 0 {
				results("FAILED (no answer from MCU)")
				os.Exit(1)
			}
			results("PASSED (link stable)")
			return nil
		}
	}
}
