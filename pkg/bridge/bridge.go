// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge connects the Tuya frame codec to a device model.
//
// Incoming bytes are decoded into frames, every data point of a status
// report is looked up in the model's dispatch table and applied to its
// property. Properties changed locally are encoded and written back to the
// MCU, exactly one frame per change. Changes applied from an incoming frame
// are never echoed back.
//
// All processing is serialized by one mutex, so a Bridge may be fed from a
// reader goroutine while local changes arrive from another. Writable
// properties set directly through the registry take the same mutex before
// they are encoded. Such a change must not be made from a property change
// callback that the bridge itself triggered.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/tuyastat/pkg/device"
	"github.com/Thermoquad/tuyastat/pkg/property"
	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

// Result reports whether the model recognized a data point.
type Result int

const (
	Unrecognized Result = iota
	Recognized
)

// String returns the result name
func (r Result) String() string {
	if r == Recognized {
		return "recognized"
	}
	return "unrecognized"
}

// Change origins passed to the Recorder
const (
	OriginDevice = "device"
	OriginLocal  = "local"
)

// NotifyFunc receives the property values after a batch changed them.
type NotifyFunc func(values map[string]any)

// Options configures a Bridge. The zero value is usable.
type Options struct {
	Logger   *zap.Logger
	Recorder Recorder

	// OnNotify is called once per processed batch that changed a property.
	OnNotify NotifyFunc

	// Now returns the local time sent in LOCAL_TIME responses.
	Now func() time.Time

	// HeartbeatInterval is the heartbeat period used by Run; zero disables it.
	HeartbeatInterval time.Duration
}

// Bridge is the status dispatcher and command encoder for one MCU.
type Bridge struct {
	mu       sync.Mutex
	model    *device.Model
	registry *property.Registry
	out      io.Writer
	decoder  *tuya.Decoder
	guard    echoGuard
	dirty    bool

	log       *zap.Logger
	rec       Recorder
	onNotify  NotifyFunc
	now       func() time.Time
	heartbeat time.Duration

	stats   *Statistics
	product string
	mcuUp   bool
}

// New creates a bridge for model writing outbound frames to out.
// reg must be the registry the model was built into.
func New(model *device.Model, reg *property.Registry, out io.Writer, opts Options) *Bridge {
	b := &Bridge{
		model:     model,
		registry:  reg,
		out:       out,
		decoder:   tuya.NewDecoder(),
		log:       opts.Logger,
		rec:       opts.Recorder,
		onNotify:  opts.OnNotify,
		now:       opts.Now,
		heartbeat: opts.HeartbeatInterval,
		stats:     NewStatistics(),
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	if b.rec == nil {
		b.rec = NopRecorder{}
	}
	if b.now == nil {
		b.now = time.Now
	}

	for _, e := range model.Entries() {
		if e.Property.ReadOnly() {
			continue
		}
		e.Property.OnChange(func(_ *property.Property, source any) {
			if source == b {
				// Set by the bridge itself, b.mu is held
				b.onLocalChange(e)
				return
			}
			b.batch(func() { b.onExternalChange(e) })
		})
	}
	return b
}

// Model returns the device model
func (b *Bridge) Model() *device.Model { return b.model }

// Registry returns the property registry
func (b *Bridge) Registry() *property.Registry { return b.registry }

// ProductInfo returns the product description last reported by the MCU
func (b *Bridge) ProductInfo() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.product
}

// Online reports whether the MCU answered a heartbeat
func (b *Bridge) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mcuUp
}

// Statistics returns a copy of the current statistics
func (b *Bridge) Statistics() *Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats.Clone()
}

// Write feeds bytes received from the MCU. Every completed frame is
// handled; partial frames are kept until the next call. It never fails.
func (b *Bridge) Write(p []byte) (int, error) {
	b.batch(func() {
		frames, errs := b.decoder.Decode(p)
		for _, err := range errs {
			b.rejected(err)
		}
		for _, f := range frames {
			b.handleFrame(f)
		}
	})
	return len(p), nil
}

// HandleFrame handles one decoded frame as a batch of its own
func (b *Bridge) HandleFrame(f *tuya.Frame) {
	b.batch(func() {
		b.handleFrame(f)
	})
}

// HandleStatus dispatches one data point as a batch of its own
func (b *Bridge) HandleStatus(dp tuya.DataPoint) Result {
	var r Result
	b.batch(func() {
		r = b.handleStatus(dp)
	})
	return r
}

// Set changes a writable property locally. A change is sent to the MCU.
// Scaled values are first rounded to the resolution of the data point, so
// the stored value is the one the MCU receives.
func (b *Bridge) Set(id string, value any) error {
	var err error
	b.batch(func() {
		var e *device.Entry
		if e, err = b.writable(id); err != nil {
			return
		}
		err = b.applyLocal(e, func() (bool, error) { return e.Property.SetFrom(e.Quantize(value), b) })
	})
	return err
}

// SetEnumIndex changes a writable enum property locally by table index.
func (b *Bridge) SetEnumIndex(id string, index uint8) error {
	var err error
	b.batch(func() {
		var e *device.Entry
		if e, err = b.writable(id); err != nil {
			return
		}
		err = b.applyLocal(e, func() (bool, error) { return e.Property.SetEnumIndexFrom(index, b) })
	})
	return err
}

// Handshake sends the start-up sequence: heartbeat, product query and a
// full status query.
func (b *Bridge) Handshake() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, f := range []*tuya.Frame{tuya.NewHeartbeat(), tuya.NewProductQuery(), tuya.NewQueryStatus()} {
		if err := b.send(f); err != nil {
			return err
		}
	}
	return nil
}

// QueryStatus asks the MCU to report every data point
func (b *Bridge) QueryStatus() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.send(tuya.NewQueryStatus())
}

// Heartbeat sends one heartbeat
func (b *Bridge) Heartbeat() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.send(tuya.NewHeartbeat())
}

// Run reads from r until ctx is cancelled or r fails, feeding the bridge.
// io.EOF ends Run without error. Cancelling ctx does not interrupt a
// blocked Read; close the transport to release it.
func (b *Bridge) Run(ctx context.Context, r io.Reader) error {
	errc := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				b.Write(buf[:n])
			}
			if err != nil {
				errc <- err
				return
			}
		}
	}()

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		ticker := time.NewTicker(b.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading transport: %w", err)
		case <-tick:
			if err := b.Heartbeat(); err != nil {
				b.log.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}

// batch runs fn under the lock and emits one notification if fn changed
// any property. The lock is released even if a callback panics.
func (b *Bridge) batch(fn func()) {
	if b.locked(fn) && b.onNotify != nil {
		b.onNotify(b.registry.Snapshot(property.VisibilityNone))
	}
}

func (b *Bridge) locked(fn func()) (notify bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn()
	notify = b.dirty
	b.dirty = false
	return notify
}

func (b *Bridge) rejected(err error) {
	b.stats.Update(nil, err, nil)

	var ce *tuya.ChecksumError
	switch {
	case errors.As(err, &ce):
		b.rec.FrameRejected("checksum")
		b.log.Warn("checksum mismatch",
			zap.String("frame", tuya.FormatHex(ce.Raw)),
			zap.Uint8("expected", ce.Expected),
			zap.Uint8("received", ce.Received))
	default:
		b.rec.FrameRejected("too_large")
		b.log.Warn("frame rejected", zap.Error(err))
	}
}

func (b *Bridge) handleFrame(f *tuya.Frame) {
	issues := tuya.ValidateFrame(f)
	b.stats.Update(f, nil, issues)
	b.rec.FrameReceived(f.Type())
	if len(issues) > 0 {
		b.rec.FrameInvalid(f.Type(), issues)
	}

	if f.Version() != tuya.VersionMCU {
		b.log.Debug("ignoring frame not sent by the MCU",
			zap.Uint8("version", f.Version()),
			zap.String("type", tuya.FormatFrameType(f.Type())))
		return
	}

	switch f.Type() {
	case tuya.TypeStatusReport:
		points, err := f.DataPoints()
		for _, dp := range points {
			b.handleStatus(dp)
		}
		if err != nil {
			b.log.Debug("malformed status report", zap.Error(err), zap.String("data", tuya.FormatHex(f.Data())))
		}

	case tuya.TypeHeartbeat:
		data := f.Data()
		if len(data) == 1 && data[0] == tuya.HeartbeatFirst {
			// MCU restarted: its state may differ from ours
			b.log.Info("MCU restarted, querying status")
			if err := b.send(tuya.NewQueryStatus()); err != nil {
				b.log.Warn("status query failed", zap.Error(err))
			}
		}
		b.mcuUp = true

	case tuya.TypeProductQuery:
		if f.Length() > 0 {
			b.product = string(f.Data())
			b.log.Info("product info", zap.String("product", b.product))
		}

	case tuya.TypeLocalTime:
		if err := b.send(tuya.NewLocalTime(b.now())); err != nil {
			b.log.Warn("local time response failed", zap.Error(err))
		}

	default:
		b.log.Debug("frame", zap.String("type", tuya.FormatFrameType(f.Type())), zap.String("data", tuya.FormatHex(f.Data())))
	}
}

func (b *Bridge) handleStatus(dp tuya.DataPoint) Result {
	e, class := b.model.Lookup(dp.ID)
	b.rec.DataPoint(dp.ID, class.String())

	switch class {
	case device.Mapped:
		b.stats.RecordDataPoint(dp.ID, Recognized, true)
		b.applyIncoming(e, dp)
		return Recognized

	case device.Ignored:
		b.stats.RecordDataPoint(dp.ID, Recognized, false)
		b.log.Debug("ignored data point",
			zap.Uint8("dpid", dp.ID),
			zap.String("note", b.model.IgnoredNote(dp.ID)),
			zap.String("value", tuya.FormatDataPointValue(dp)))
		return Recognized
	}

	b.stats.RecordDataPoint(dp.ID, Unrecognized, false)
	b.log.Info("unrecognized data point",
		zap.Uint8("dpid", dp.ID),
		zap.String("type", dp.Type.String()),
		zap.String("value", tuya.FormatHex(dp.Value)))
	return Unrecognized
}

// applyIncoming sets a property from a data point with the echo guard held
func (b *Bridge) applyIncoming(e *device.Entry, dp tuya.DataPoint) {
	defer b.guard.acquire()()

	v, err := e.Decode(dp)
	if err == nil {
		var changed bool
		if changed, err = e.Property.SetFrom(v, b); err == nil {
			if changed {
				b.changed(e, OriginDevice)
			}
			return
		}
	}

	b.stats.DecodeFailures++
	b.rec.DecodeFailure(dp.ID)
	b.log.Debug("data point not applied",
		zap.Uint8("dpid", dp.ID),
		zap.String("property", e.Property.ID()),
		zap.Error(err))
}

func (b *Bridge) applyLocal(e *device.Entry, set func() (bool, error)) error {
	changed, err := set()
	if err != nil {
		return err
	}
	if changed {
		b.changed(e, OriginLocal)
	}
	return nil
}

func (b *Bridge) changed(e *device.Entry, origin string) {
	b.dirty = true
	b.stats.Changes++
	b.rec.PropertyChanged(e.Property.ID(), origin)
	b.log.Debug("property changed",
		zap.String("property", e.Property.ID()),
		zap.Any("value", e.Property.Value()),
		zap.String("origin", origin))
}

func (b *Bridge) writable(id string) (*device.Entry, error) {
	e, ok := b.model.EntryFor(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", property.ErrUnknownProperty, id)
	}
	if e.Property.ReadOnly() {
		return nil, fmt.Errorf("%w: %s", property.ErrReadOnly, id)
	}
	return e, nil
}

// onExternalChange handles a property changed directly through the
// registry rather than through Set. It runs under b.mu like any other
// change, so the echo guard and statistics stay consistent.
func (b *Bridge) onExternalChange(e *device.Entry) {
	b.changed(e, OriginLocal)

	v := e.Property.Value()
	if q := e.Quantize(v); q != v {
		// Storing the quantized value sends it through onLocalChange
		if _, err := e.Property.SetFrom(q, b); err == nil {
			return
		}
	}
	b.onLocalChange(e)
}

// onLocalChange is the command encoder. It runs from the property's change
// callback, always with b.mu held.
func (b *Bridge) onLocalChange(e *device.Entry) {
	if b.guard.active() {
		return
	}

	payload, err := e.Encode()
	if err != nil {
		if !errors.Is(err, device.ErrInvalidState) {
			b.log.Warn("cannot encode property", zap.String("property", e.Property.ID()), zap.Error(err))
		}
		return
	}

	raw, err := tuya.EncodeDataPoint(e.DPID, e.Codec.DataType(), payload)
	if err != nil {
		b.log.Warn("cannot encode frame", zap.String("property", e.Property.ID()), zap.Error(err))
		return
	}
	if err := b.write(raw, tuya.TypeSetDataPoint); err != nil {
		b.log.Warn("write failed", zap.String("property", e.Property.ID()), zap.Error(err))
	}
}

func (b *Bridge) send(f *tuya.Frame) error {
	raw, err := tuya.EncodeFrame(f)
	if err != nil {
		return err
	}
	return b.write(raw, f.Type())
}

func (b *Bridge) write(raw []byte, frameType uint8) error {
	if b.out == nil {
		return nil
	}
	if _, err := b.out.Write(raw); err != nil {
		b.stats.WriteErrors++
		b.rec.WriteError()
		return fmt.Errorf("writing %s frame: %w", tuya.FormatFrameType(frameType), err)
	}
	b.stats.FramesSent++
	b.rec.FrameSent(frameType)
	b.log.Debug("sent", zap.String("frame", tuya.FormatHex(raw)))
	return nil
}
