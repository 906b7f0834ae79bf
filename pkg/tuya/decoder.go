// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import (
	"bytes"
	"encoding/binary"
)

var header = []byte{HeaderByte1, HeaderByte2}

// Decoder implements the Tuya frame decoder state machine.
//
// Bytes are buffered across Feed calls, so a frame split over several reads
// is assembled without loss. A rejected frame only discards its first header
// byte; scanning resumes inside the rejected bytes.
type Decoder struct {
	state   int
	buffer  []byte
	skipped int // bytes dropped while searching for a header
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  StateAwaitingHeader,
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset discards all buffered bytes and returns to header search
func (d *Decoder) Reset() {
	d.state = StateAwaitingHeader
	d.buffer = d.buffer[:0]
	d.skipped = 0
}

// State returns the current decoder state
func (d *Decoder) State() int {
	return d.state
}

// Buffered returns the number of bytes waiting to be decoded
func (d *Decoder) Buffered() int {
	return len(d.buffer)
}

// Skipped returns the number of non-frame bytes dropped so far
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Feed appends received bytes to the decode buffer
func (d *Decoder) Feed(p []byte) {
	d.buffer = append(d.buffer, p...)
}

// Next returns the next complete frame.
//
// It returns ErrIncomplete when the buffer holds no complete frame, a
// *ChecksumError or *FrameError when a frame was rejected (call Next again
// to continue), or a frame and nil.
func (d *Decoder) Next() (*Frame, error) {
	for {
		switch d.state {
		case StateAwaitingHeader:
			i := bytes.Index(d.buffer, header)
			if i < 0 {
				// Keep a trailing first header byte, the second may follow
				keep := 0
				if n := len(d.buffer); n > 0 && d.buffer[n-1] == HeaderByte1 {
					keep = 1
				}
				d.skip(len(d.buffer) - keep)
				return nil, ErrIncomplete
			}
			d.skip(i)
			d.state = StateAccumulatingPayload

		case StateAccumulatingPayload:
			if len(d.buffer) < HeaderSize {
				return nil, ErrIncomplete
			}
			n := d.declaredLength()
			if n > MaxDataSize {
				d.resync()
				return nil, &FrameError{Length: n, Err: ErrFrameTooLarge}
			}
			if len(d.buffer) < HeaderSize+n+ChecksumSize {
				return nil, ErrIncomplete
			}
			d.state = StateValidatingChecksum

		case StateValidatingChecksum:
			total := HeaderSize + d.declaredLength() + ChecksumSize
			raw := d.buffer[:total]
			if err := VerifyChecksum(raw); err != nil {
				if ce, ok := err.(*ChecksumError); ok {
					ce.Raw = append([]byte(nil), raw...)
				}
				d.resync()
				return nil, err
			}
			frame := newDecodedFrame(raw)
			d.consume(total)
			d.state = StateAwaitingHeader
			return frame, nil

		default:
			d.Reset()
		}
	}
}

// Decode feeds p and collects every frame that completes.
// Rejected frames are reported through errs; ErrIncomplete is never reported.
func (d *Decoder) Decode(p []byte) (frames []*Frame, errs []error) {
	d.Feed(p)
	for {
		frame, err := d.Next()
		if err == ErrIncomplete {
			return frames, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		frames = append(frames, frame)
	}
}

func (d *Decoder) declaredLength() int {
	return int(binary.BigEndian.Uint16(d.buffer[4:6]))
}

// resync drops the first header byte and searches again
func (d *Decoder) resync() {
	d.consume(1)
	d.state = StateAwaitingHeader
}

func (d *Decoder) skip(n int) {
	d.skipped += n
	d.consume(n)
}

func (d *Decoder) consume(n int) {
	d.buffer = append(d.buffer[:0], d.buffer[n:]...)
}
