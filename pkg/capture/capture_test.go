// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	ts := time.Date(2025, time.March, 1, 12, 0, 0, 123456789, time.UTC)
	w.now = func() time.Time { return ts }

	require.NoError(t, w.Record(DirectionIn, []byte{0x55, 0xAA, 0x03}))
	require.NoError(t, w.Record(DirectionOut, []byte{0x55, 0xAA, 0x00, 0x08}))
	require.NoError(t, w.Record(DirectionIn, nil), "empty chunks are skipped")

	records, err := NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, DirectionIn, records[0].Direction)
	assert.Equal(t, []byte{0x55, 0xAA, 0x03}, records[0].Data)
	assert.True(t, ts.Equal(records[0].Timestamp), "nanosecond timestamps survive")
	assert.Equal(t, DirectionOut, records[1].Direction)
}

func TestRecordCopiesData(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	data := []byte{0x01, 0x02}
	require.NoError(t, w.Record(DirectionIn, data))
	data[0] = 0xFF

	rec, err := NewReader(&buf).Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, rec.Data)
}

func TestTap(t *testing.T) {
	var capBuf, out bytes.Buffer
	w := NewWriter(&capBuf)

	tx := w.Tap(DirectionOut, &out)
	n, err := tx.Write([]byte{0x55, 0xAA})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x55, 0xAA}, out.Bytes())

	rx := w.Tap(DirectionIn, nil)
	_, err = rx.Write([]byte{0x07})
	require.NoError(t, err)

	records, err := NewReader(&capBuf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, DirectionOut, records[0].Direction)
	assert.Equal(t, DirectionIn, records[1].Direction)
}

type brokenDisk struct{}

func (brokenDisk) Write([]byte) (int, error) { return 0, errors.New("no space left on device") }

func TestTapCountsFailures(t *testing.T) {
	w := NewWriter(brokenDisk{})

	var reported []error
	w.OnFailure(func(err error) { reported = append(reported, err) })

	var out bytes.Buffer
	tx := w.Tap(DirectionOut, &out)
	for i := 0; i < 3; i++ {
		n, err := tx.Write([]byte{0x55, 0xAA})
		require.NoError(t, err, "traffic is forwarded")
		assert.Equal(t, 2, n)
	}
	assert.Equal(t, bytes.Repeat([]byte{0x55, 0xAA}, 3), out.Bytes())

	n, first := w.Failures()
	assert.Equal(t, 3, n)
	require.Error(t, first)
	assert.Contains(t, first.Error(), "no space left")
	require.Len(t, reported, 1, "only the first failure is reported")
	assert.Equal(t, first, reported[0])

	// Writes after Close are failures too
	require.NoError(t, w.Close())
	_, err := w.Tap(DirectionIn, nil).Write([]byte{0x01})
	require.NoError(t, err)
	n, _ = w.Failures()
	assert.Equal(t, 4, n)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.cbor")

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Record(DirectionIn, []byte{0x55}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")
	assert.ErrorIs(t, w.Record(DirectionIn, []byte{0x01}), os.ErrClosed)

	// Appends to an existing capture
	w, err = Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Record(DirectionOut, []byte{0xAA}))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x55}, first.Data)
	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, second.Data)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderCorrupt(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0xA1, 0x01})).Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)

	_, err = Open(filepath.Join(t.TempDir(), "missing.cbor"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "IN", DirectionIn.String())
	assert.Equal(t, "OUT", DirectionOut.String())
	assert.Equal(t, "UNKNOWN", Direction(9).String())
}
