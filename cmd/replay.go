// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/capture"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

var (
	replayFrames   bool
	replayOutbound bool
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Feed a capture file through the bridge offline",
	Long: `Replay traffic recorded with --capture through the selected device model.

Bytes received from the MCU are fed to a bridge that never writes, and every
property change and protocol error is printed with the time it was recorded.
Statistics and the final property values are printed at the end.

With --outbound, frames the module sent during the capture are shown too.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayFrames, "frames", false, "Show every received frame")
	replayCmd.Flags().BoolVar(&replayOutbound, "outbound", false, "Show frames sent by the module")
}

func runReplay(cmd *cobra.Command, args []string) error {
	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	model, reg, err := loadModel()
	if err != nil {
		return err
	}

	rec := &eventRecorder{showFrames: replayFrames, showChanges: true}
	b := bridge.New(model, reg, nil, bridge.Options{Logger: logger, Recorder: rec})
	outbound := tuya.NewDecoder()

	fmt.Printf("Tuyastat - Replay\n")
	fmt.Printf("Capture: %s\n", args[0])
	fmt.Printf("Model: %s\n\n", model.Name())

	records := 0
	for {
		record, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		records++
		ts := record.Timestamp.Format("15:04:05.000")

		switch record.Direction {
		case capture.DirectionIn:
			b.Write(record.Data)
			events, _, _ := rec.drain()
			for _, e := range events {
				e.timestamp = record.Timestamp
				printEvent(e)
			}
		case capture.DirectionOut:
			if !replayOutbound {
				continue
			}
			frames, _ := outbound.Decode(record.Data)
			for _, f := range frames {
				fmt.Printf("[%s] -> %s (0x%02X) %s\n", ts, tuya.FormatFrameType(f.Type()), f.Type(), tuya.FormatHex(f.Data()))
			}
		}
	}

	fmt.Printf("\nReplayed %d records\n\n", records)
	fmt.Print(b.Statistics().String())
	fmt.Printf("\nProperties:\n")
	for _, p := range reg.All() {
		fmt.Printf("  %-20s %s\n", p.ID(), p.Format())
	}
	return nil
}
