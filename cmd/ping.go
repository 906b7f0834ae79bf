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
	pingTimeout  int
	pingCount    int
	pingInterval int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the MCU link with heartbeat round trips",
	Long: `Send HEARTBEAT frames to the MCU and wait for its heartbeat response.

The MCU answers the first heartbeat after power-up with 0x00 and every later
one with 0x01, so the first response also tells whether the MCU restarted.

This is useful for verifying:
  - The serial or WebSocket connection is established
  - The baud rate matches the MCU
  - Frames flow in both directions

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 3, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().IntVar(&pingInterval, "interval", 1000, "Delay between pings in milliseconds")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Connection, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Tuyastat - Heartbeat Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	responseChan := make(chan *tuya.Frame, 8)
	errChan := make(chan error, 1)

	go func() {
		err := readFrames(conn, func(f *tuya.Frame) error {
			if f.Type() == tuya.TypeHeartbeat && f.Version() == tuya.VersionMCU {
				responseChan <- f
			}
			// Ignore status reports and other traffic
			return nil
		}, nil)
		if err == nil {
			err = ErrConnectionClosed
		}
		errChan <- err
	}()

	successCount := 0
	failCount := 0
	wireBytes := tuya.MustEncodeFrame(tuya.NewHeartbeat())

pings:
	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		if _, err := conn.Write(wireBytes); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		select {
		case f := <-responseChan:
			rtt := time.Since(startTime)
			fmt.Printf("HEARTBEAT from MCU, state=%s, rtt=%v\n", heartbeatState(f), rtt.Round(time.Millisecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount += pingCount - i + 1
			break pings

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		}

		if i < pingCount {
			time.Sleep(time.Duration(pingInterval) * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

func heartbeatState(f *tuya.Frame) string {
	data := f.Data()
	if len(data) != 1 {
		return fmt.Sprintf("invalid (%s)", tuya.FormatHex(data))
	}
	switch data[0] {
	case tuya.HeartbeatFirst:
		return "restarted"
	case tuya.HeartbeatAlive:
		return "alive"
	}
	return fmt.Sprintf("unknown (0x%02X)", data[0])
}
