// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/tuyastat/pkg/bridge"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling a Tuya thermostat",
	Long: `Control a Tuya thermostat via an interactive terminal UI.

This command takes the place of the WiFi module: it performs the start-up
handshake, keeps the MCU alive with heartbeats and shows every property of
the device model as it is reported.

Features:
  - Live property values decoded through the device model
  - Property control (toggle, cycle enum values, enter numbers)
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the property list and the control panel. Arrow keys
navigate the property list.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// errNotConnected is returned for writes while reconnecting
var errNotConnected = errors.New("not connected")

// connectionManager handles connection lifecycle and reconnection. It is the
// bridge's transport: writes go to whichever connection is current.
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	b        *bridge.Bridge
	rec      *eventRecorder
	done     chan struct{}

	lastTotal uint64 // frames covered by the last flush
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

func (cm *connectionManager) Write(p []byte) (int, error) {
	conn := cm.getConn()
	if conn == nil {
		return 0, errNotConnected
	}
	return conn.Write(p)
}

func runControl(cmd *cobra.Command, args []string) error {
	model, reg, err := loadModel()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cfg.Connection, "")
	if err != nil {
		return err
	}

	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		rec:      &eventRecorder{showChanges: true},
		done:     make(chan struct{}),
	}
	cm.b = bridge.New(model, reg, cm, bridge.Options{Logger: logger, Recorder: cm.rec})

	m := initialControlModel(cm, connInfo)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.readerLoop()
	cm.handshake()

	_, err = p.Run()
	close(cm.done)
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// handshake starts the MCU session on a fresh connection
func (cm *connectionManager) handshake() {
	if err := cm.b.Handshake(); err != nil {
		logger.Warn("handshake failed", zap.Error(err))
	}
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		connLost := cm.readFromConnection()

		if connLost {
			cm.p.Send(connectionLostMsg{})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromConnection feeds the bridge until the connection fails.
// Returns true if connection was lost, false if shutdown requested
func (cm *connectionManager) readFromConnection() bool {
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		buf := make([]byte, 256)
		for {
			select {
			case <-cm.done:
				return
			default:
			}

			conn := cm.getConn()
			if conn == nil {
				return
			}

			n, err := conn.Read(buf)
			if n > 0 {
				cm.b.Write(buf[:n])
			}
			if err != nil {
				select {
				case <-cm.done:
					return
				default:
					if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
						return
					}
					// Transient serial errors
					time.Sleep(10 * time.Millisecond)
				}
			}
		}
	}()

	// Batch sender - forwards bridge events to the TUI at a fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				cm.flush()
				return
			case <-ticker.C:
				cm.flush()
			}
		}
	}()

	<-readerDone

	select {
	case <-cm.done:
		return false
	default:
		return true // Connection lost
	}
}

// flush sends collected events and current statistics to the TUI
func (cm *connectionManager) flush() {
	events, synced, skipped := cm.rec.drain()
	stats := cm.b.Statistics()
	if len(events) == 0 && !synced && stats.TotalFrames == cm.lastTotal {
		return
	}
	cm.lastTotal = stats.TotalFrames
	cm.p.Send(controlBatchMsg{
		events:  events,
		synced:  synced,
		skipped: skipped,
		stats:   stats,
	})
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	cm.setConn(nil, "")

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection(cfg.Connection, "")
		if err == nil {
			cm.setConn(conn, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			cm.handshake()
			return true
		}
		logger.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
