// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw serial traffic to a CBOR stream and reads it
// back for offline replay.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// Direction indicates the direction of traffic.
type Direction uint8

const (
	// DirectionIn is traffic from the MCU.
	DirectionIn Direction = 0
	// DirectionOut is traffic to the MCU.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Record is one chunk of captured traffic.
type Record struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Data      []byte    `cbor:"3,keyasint"`
}

// Writer appends records to a CBOR stream.
// It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	encoder *cbor.Encoder
	closer  io.Closer
	now     func() time.Time
	closed  bool

	// Tap write failures
	failures  int
	firstErr  error
	onFailure func(error)
}

// NewWriter creates a Writer encoding to w.
func NewWriter(w io.Writer) *Writer {
	cw := &Writer{encoder: encMode.NewEncoder(w), now: time.Now}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	return cw
}

// Create opens path for appending and returns a Writer for it.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	return NewWriter(f), nil
}

// Record writes one chunk of traffic. Empty chunks are skipped.
func (w *Writer) Record(dir Direction, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	return w.encoder.Encode(Record{
		Timestamp: w.now(),
		Direction: dir,
		Data:      append([]byte(nil), data...),
	})
}

// Tap returns an io.Writer that records every write in direction dir and
// then forwards it to next. A nil next only records.
func (w *Writer) Tap(dir Direction, next io.Writer) io.Writer {
	return &tap{w: w, dir: dir, next: next}
}

// OnFailure registers fn to be called with the first error a Tap could not
// record. Later failures are only counted.
func (w *Writer) OnFailure(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onFailure = fn
}

// Failures returns how many Tap writes could not be recorded and the first
// error seen.
func (w *Writer) Failures() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures, w.firstErr
}

func (w *Writer) fail(err error) {
	w.mu.Lock()
	w.failures++
	var fn func(error)
	if w.firstErr == nil {
		w.firstErr = err
		fn = w.onFailure
	}
	w.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// Close closes the underlying writer if it is an io.Closer.
// It is safe to call Close multiple times.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

type tap struct {
	w    *Writer
	dir  Direction
	next io.Writer
}

func (t *tap) Write(p []byte) (int, error) {
	// Capture failures are counted, they never disturb the traffic
	if err := t.w.Record(t.dir, p); err != nil {
		t.w.fail(err)
	}
	if t.next == nil {
		return len(p), nil
	}
	return t.next.Write(p)
}

// Reader reads records from a CBOR stream.
type Reader struct {
	decoder *cbor.Decoder
	closer  io.Closer
}

// NewReader creates a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	cr := &Reader{decoder: decMode.NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		cr.closer = c
	}
	return cr
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next record. It returns io.EOF at the end of the stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.decoder.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decoding capture record: %w", err)
	}
	return rec, nil
}

// ReadAll returns every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// Close closes the underlying reader if it is an io.Closer.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
