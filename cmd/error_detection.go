// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	detectQuery   bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and unknown data points",
	Long: `Track frame errors, malformed data and unrecognized data points with statistics.

This command validates each frame and detects:
  - Checksum errors and oversized frames
  - Malformed frames (length mismatches, wrong value widths, unknown types)
  - Data points the device model does not know, and values it cannot apply
  - Statistics and trends (frame rate, error rate)

By default, only errors are displayed. Use --show-all to display every frame
and property change too.

The bridge listens passively unless --query is given, in which case it sends
the start-up handshake so the MCU reports all data points.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	errorDetectionCmd.Flags().BoolVar(&detectQuery, "query", false, "Send the handshake and query all data points")
}

// detectionEvent is one line of the event log
type detectionEvent struct {
	timestamp time.Time
	message   string
	isError   bool
}

// eventRecorder collects bridge events for the event log. Events before the
// first valid frame only count as skipped.
type eventRecorder struct {
	bridge.NopRecorder

	mu          sync.Mutex
	showFrames  bool
	showChanges bool
	synced      bool
	skipped     int
	syncNote    bool
	events      []detectionEvent
}

func (r *eventRecorder) add(isError bool, format string, args ...any) {
	r.events = append(r.events, detectionEvent{
		timestamp: time.Now(),
		message:   fmt.Sprintf(format, args...),
		isError:   isError,
	})
}

func (r *eventRecorder) FrameReceived(frameType uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.synced {
		r.synced = true
		r.syncNote = true
		if r.skipped > 0 {
			r.add(false, "Synchronized after rejecting %d frames", r.skipped)
		} else {
			r.add(false, "Synchronized")
		}
	}
	if r.showFrames {
		r.add(false, "%s (0x%02X)", tuya.FormatFrameType(frameType), frameType)
	}
}

func (r *eventRecorder) FrameInvalid(frameType uint8, issues []tuya.ValidationError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, issue := range issues {
		r.add(true, "%s: %s", tuya.FormatFrameType(frameType), issue.Message)
	}
}

func (r *eventRecorder) FrameRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.synced {
		r.skipped++
		return
	}
	r.add(true, "Frame rejected: %s", reason)
}

func (r *eventRecorder) DataPoint(dpid uint8, class string) {
	if class != "unknown" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(true, "Unrecognized data point 0x%02X (%d)", dpid, dpid)
}

func (r *eventRecorder) DecodeFailure(dpid uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(true, "Data point 0x%02X could not be applied", dpid)
}

func (r *eventRecorder) PropertyChanged(id, origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.showChanges {
		r.add(false, "%s changed (%s)", id, origin)
	}
}

// drain returns and clears collected events, and whether sync happened
// since the last call.
func (r *eventRecorder) drain() ([]detectionEvent, bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.events
	r.events = nil
	synced := r.syncNote
	r.syncNote = false
	return events, synced, r.skipped
}

// newDetectionBridge builds a bridge that only writes to the MCU with --query
func newDetectionBridge(conn Connection, rec *eventRecorder) (*bridge.Bridge, error) {
	model, reg, err := loadModel()
	if err != nil {
		return nil, err
	}

	var out io.Writer
	if detectQuery {
		out = conn
	}
	b := bridge.New(model, reg, out, bridge.Options{Logger: logger, Recorder: rec})
	if detectQuery {
		if err := b.Handshake(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg.Connection, cfg.Capture.File)
	if err != nil {
		return err
	}
	defer conn.Close()

	rec := &eventRecorder{showFrames: showAll, showChanges: showAll}
	b, err := newDetectionBridge(conn, rec)
	if err != nil {
		return err
	}

	if useTUI {
		return runTUIMode(conn, connInfo, b, rec)
	}
	return runTextMode(conn, connInfo, b, rec)
}

// printEvent prints an event in highlighted format
func printEvent(e detectionEvent) {
	timestamp := e.timestamp.Format("15:04:05.000")
	if e.isError {
		fmt.Printf("[%s] \033[1;31mERROR:\033[0m %s\n", timestamp, e.message)
		return
	}
	fmt.Printf("[%s] %s\n", timestamp, e.message)
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection, connInfo string, b *bridge.Bridge, rec *eventRecorder) error {
	m := initialModel(connInfo, b.Model().Name(), statsInterval, showAll, b.Registry().All())
	p := tea.NewProgram(m)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				b.Write(buf[:n])
				events, synced, skipped := rec.drain()
				p.Send(bridgeDataMsg{
					events:  events,
					synced:  synced,
					skipped: skipped,
					stats:   b.Statistics(),
				})
			}
			if err != nil {
				p.Send(connectionLostMsg{err: err})
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection, connInfo string, b *bridge.Bridge, rec *eventRecorder) error {
	fmt.Printf("Tuyastat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Model: %s\n", b.Model().Name())
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	chunks := make(chan []byte, 10)
	errChan := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				chunks <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	for {
		select {
		case data := <-chunks:
			b.Write(data)
			events, _, _ := rec.drain()
			for _, e := range events {
				printEvent(e)
			}

		case err := <-errChan:
			fmt.Printf("\nConnection lost: %v\n\n", err)
			fmt.Print(b.Statistics().String())
			return nil

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(b.Statistics().String())
			fmt.Println()
		}
	}
}
