// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/tuyastat/internal/metrics"
	"github.com/Thermoquad/tuyastat/pkg/bridge"
	"github.com/Thermoquad/tuyastat/pkg/property"
)

var runMetricsAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge headless and log property changes",
	Long: `Run the bridge without a terminal UI.

The bridge performs the start-up handshake, keeps the MCU alive with
heartbeats and logs the property values every time a status report changes
them. Stop it with Ctrl+C or SIGTERM.

With --metrics-addr (or metrics.enable in the config file) bridge counters are
served in the Prometheus text format.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9108)")
}

func runBridge(cmd *cobra.Command, args []string) error {
	model, reg, err := loadModel()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rec bridge.Recorder = bridge.NopRecorder{}
	addr := cfg.Metrics.Addr
	if cmd.Flags().Changed("metrics-addr") {
		addr = runMetricsAddr
	}
	if cfg.Metrics.Enable || runMetricsAddr != "" {
		promReg := metrics.NewRegistry()
		rec = metrics.NewBridgeMetrics(promReg)
		srv := startMetricsServer(addr, cfg.Metrics.Path, metrics.Handler(promReg))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	conn, connInfo, err := OpenConnection(cfg.Connection, cfg.Capture.File)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("bridge started",
		zap.String("connection", connInfo),
		zap.String("model", model.Name()),
		zap.Duration("heartbeat", cfg.Device.HeartbeatInterval))

	b := bridge.New(model, reg, conn, bridge.Options{
		Logger:            logger,
		Recorder:          rec,
		HeartbeatInterval: cfg.Device.HeartbeatInterval,
		OnNotify: func(values map[string]any) {
			logger.Info("properties changed", zap.Any("values", values))
		},
	})
	if err := b.Handshake(); err != nil {
		return err
	}

	err = b.Run(ctx, conn)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	stats := b.Statistics()
	logger.Info("bridge stopped",
		zap.Uint64("frames", stats.TotalFrames),
		zap.Uint64("errors", stats.ChecksumErrors+stats.DecodeErrors+stats.MalformedFrames),
		zap.Uint64("sent", stats.FramesSent),
		zap.Any("values", reg.Snapshot(property.VisibilityNone)))
	return err
}

// startMetricsServer serves handler at path until Shutdown
func startMetricsServer(addr, path string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr), zap.String("path", path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
