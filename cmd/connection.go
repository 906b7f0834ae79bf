// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/tuyastat/internal/config"
	"github.com/Thermoquad/tuyastat/pkg/capture"
)

// Connection provides a common interface for reading/writing bytes from serial or WebSocket
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading.
// The bridge on the other end forwards the MCU UART as binary messages.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}

		// UART bytes only travel in binary messages
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port with the Tuya UART settings (8N1)
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("TUYASTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal: read a plain line
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// capturedConnection records both directions of a connection
type capturedConnection struct {
	Connection
	rec *capture.Writer
	rx  io.Writer
	tx  io.Writer
}

func newCapturedConnection(conn Connection, rec *capture.Writer) *capturedConnection {
	rec.OnFailure(func(err error) {
		logger.Warn("capture write failed, the recording is incomplete", zap.Error(err))
	})
	return &capturedConnection{
		Connection: conn,
		rec:        rec,
		rx:         rec.Tap(capture.DirectionIn, nil),
		tx:         rec.Tap(capture.DirectionOut, conn),
	}
}

func (c *capturedConnection) Read(p []byte) (int, error) {
	n, err := c.Connection.Read(p)
	if n > 0 {
		// The tap never fails; capture errors are counted by rec
		_, _ = c.rx.Write(p[:n])
	}
	return n, err
}

func (c *capturedConnection) Write(p []byte) (int, error) {
	return c.tx.Write(p)
}

func (c *capturedConnection) Close() error {
	err := c.Connection.Close()
	if cerr := c.rec.Close(); err == nil {
		err = cerr
	}
	if n, ferr := c.rec.Failures(); n > 0 {
		logger.Warn("capture incomplete", zap.Int("lost_chunks", n), zap.Error(ferr))
	}
	return err
}

// OpenConnection opens either a serial or WebSocket connection from the
// connection settings. When captureFile is set, all traffic is recorded to it.
func OpenConnection(cc config.ConnectionConfig, captureFile string) (Connection, string, error) {
	conn, info, err := openTransport(cc)
	if err != nil {
		return nil, "", err
	}

	if captureFile == "" {
		return conn, info, nil
	}

	rec, err := capture.Create(captureFile)
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	logger.Info("capturing traffic", zap.String("file", captureFile))
	return newCapturedConnection(conn, rec), info + fmt.Sprintf(" (capture: %s)", captureFile), nil
}

func openTransport(cc config.ConnectionConfig) (Connection, string, error) {
	if cc.URL != "" {
		password := ""
		if cc.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(cc.URL, cc.Username, password, cc.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", cc.URL), nil
	}

	if cc.Port != "" {
		conn, err := OpenSerialConnection(cc.Port, cc.Baud)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", cc.Port, cc.Baud), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}
