// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// mustHex decodes a hex string, ignoring spaces
func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// decodeAll feeds data to a fresh decoder and returns frames and errors
func decodeAll(data []byte) ([]*Frame, []error) {
	return NewDecoder().Decode(data)
}

// Frames captured from an ME102H thermostat
const (
	frameDeviceOn       = "55AA03070005010100010112"
	frameActualTemp     = "55AA03070008180200040000001645"
	frameSensorInternal = "55AA030700052B040001003E"
	frameSchedules      = "55AA0307001C6C00001806001408000F0B1E0F0C1E0F11001616000F08001617000FDB"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum_Empty(t *testing.T) {
	if c := Checksum(nil); c != 0 {
		t.Errorf("checksum of empty data should be 0, got 0x%02X", c)
	}
}

func TestChecksum_CapturedFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"device on", frameDeviceOn},
		{"actual temperature", frameActualTemp},
		{"sensor selection", frameSensorInternal},
		{"schedules", frameSchedules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := mustHex(t, tt.raw)
			if err := VerifyChecksum(raw); err != nil {
				t.Errorf("VerifyChecksum() = %v, want nil", err)
			}
		})
	}
}

func TestVerifyChecksum_Mismatch(t *testing.T) {
	raw := mustHex(t, frameDeviceOn)
	raw[len(raw)-1] ^= 0xFF

	err := VerifyChecksum(raw)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ChecksumError, got %T", err)
	}
	if ce.Expected != 0x12 {
		t.Errorf("Expected = 0x%02X, want 0x12", ce.Expected)
	}
}

// ============================================================
// Frame Tests
// ============================================================

func TestFrame_DataPoint(t *testing.T) {
	frames, errs := decodeAll(mustHex(t, frameActualTemp))
	if len(errs) != 0 || len(frames) != 1 {
		t.Fatalf("decode: frames=%d errs=%v", len(frames), errs)
	}
	f := frames[0]

	if f.Version() != VersionMCU {
		t.Errorf("Version() = %d, want %d", f.Version(), VersionMCU)
	}
	if f.Type() != TypeStatusReport {
		t.Errorf("Type() = 0x%02X, want 0x%02X", f.Type(), TypeStatusReport)
	}
	if f.Length() != 8 {
		t.Errorf("Length() = %d, want 8", f.Length())
	}

	dp, err := f.DataPoint()
	if err != nil {
		t.Fatalf("DataPoint() error: %v", err)
	}
	if dp.ID != 0x18 || dp.Type != DataTypeValue {
		t.Errorf("DataPoint = {0x%02X %s}, want {0x18 VALUE}", dp.ID, dp.Type)
	}
	v, err := DecodeValue(dp.Value)
	if err != nil || v != 22 {
		t.Errorf("DecodeValue = %d, %v; want 22", v, err)
	}
}

func TestFrame_MultipleDataPoints(t *testing.T) {
	f := NewStatusReport(
		DataPoint{ID: 0x01, Type: DataTypeBool, Value: EncodeBool(true)},
		DataPoint{ID: 0x10, Type: DataTypeValue, Value: EncodeValue(21)},
		DataPoint{ID: 0x2B, Type: DataTypeEnum, Value: EncodeEnum(2)},
	)

	points, err := f.DataPoints()
	if err != nil {
		t.Fatalf("DataPoints() error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d data points, want 3", len(points))
	}
	ids := []uint8{points[0].ID, points[1].ID, points[2].ID}
	if !bytes.Equal(ids, []uint8{0x01, 0x10, 0x2B}) {
		t.Errorf("data point order = %X, want 01 10 2B", ids)
	}
}

func TestFrame_TruncatedDataPoint(t *testing.T) {
	// dp header declares 4 bytes but only 1 follows
	f := NewFrame(VersionMCU, TypeStatusReport, []byte{0x10, 0x02, 0x00, 0x04, 0x00})

	_, err := f.DataPoints()
	if !errors.Is(err, ErrPayloadSize) {
		t.Errorf("expected ErrPayloadSize, got %v", err)
	}
	if _, err := f.DataPoint(); !errors.Is(err, ErrPayloadSize) {
		t.Errorf("DataPoint() error = %v, want ErrPayloadSize", err)
	}
}

func TestFrame_DataPointTrailingTruncation(t *testing.T) {
	// one complete bool unit followed by a header declaring 4 missing bytes
	f := NewFrame(VersionMCU, TypeStatusReport, []byte{
		0x01, 0x01, 0x00, 0x01, 0x01,
		0x10, 0x02, 0x00, 0x04,
	})

	dp, err := f.DataPoint()
	if !errors.Is(err, ErrPayloadSize) {
		t.Errorf("DataPoint() error = %v, want ErrPayloadSize", err)
	}
	if dp.ID != 0x01 || dp.Type != DataTypeBool || !bytes.Equal(dp.Value, []byte{0x01}) {
		t.Errorf("DataPoint() = %+v, want the complete first unit", dp)
	}
}

func TestFrame_NotDataPoint(t *testing.T) {
	if _, err := NewHeartbeat().DataPoints(); !errors.Is(err, ErrNotDataPoint) {
		t.Errorf("heartbeat DataPoints() error = %v, want ErrNotDataPoint", err)
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_CapturedFrames(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		dpid     uint8
		dataType DataType
		length   int
	}{
		{"device on", frameDeviceOn, 0x01, DataTypeBool, 1},
		{"actual temperature", frameActualTemp, 0x18, DataTypeValue, 4},
		{"sensor selection", frameSensorInternal, 0x2B, DataTypeEnum, 1},
		{"schedules", frameSchedules, 0x6C, DataTypeRaw, 0x18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, errs := decodeAll(mustHex(t, tt.raw))
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if len(frames) != 1 {
				t.Fatalf("got %d frames, want 1", len(frames))
			}
			dp, err := frames[0].DataPoint()
			if err != nil {
				t.Fatalf("DataPoint() error: %v", err)
			}
			if dp.ID != tt.dpid {
				t.Errorf("dpid = 0x%02X, want 0x%02X", dp.ID, tt.dpid)
			}
			if dp.Type != tt.dataType {
				t.Errorf("data type = %s, want %s", dp.Type, tt.dataType)
			}
			if len(dp.Value) != tt.length {
				t.Errorf("value length = %d, want %d", len(dp.Value), tt.length)
			}
		})
	}
}

func TestDecoder_Incomplete(t *testing.T) {
	raw := mustHex(t, frameActualTemp)
	d := NewDecoder()

	d.Feed(raw[:9])
	if _, err := d.Next(); err != ErrIncomplete {
		t.Fatalf("Next() = %v, want ErrIncomplete", err)
	}
	if d.State() != StateAccumulatingPayload {
		t.Errorf("State() = %d, want StateAccumulatingPayload", d.State())
	}
	if d.Buffered() != 9 {
		t.Errorf("Buffered() = %d, want 9 (partial frame must be kept)", d.Buffered())
	}

	d.Feed(raw[9:])
	f, err := d.Next()
	if err != nil {
		t.Fatalf("Next() error after completion: %v", err)
	}
	if f.Type() != TypeStatusReport {
		t.Errorf("Type() = 0x%02X, want STATUS_REPORT", f.Type())
	}
	if d.State() != StateAwaitingHeader {
		t.Errorf("State() = %d, want StateAwaitingHeader", d.State())
	}
}

func TestDecoder_SplitHeader(t *testing.T) {
	raw := mustHex(t, frameDeviceOn)
	d := NewDecoder()

	// Noise followed by the first header byte only
	d.Feed([]byte{0x12, 0x34, HeaderByte1})
	if _, err := d.Next(); err != ErrIncomplete {
		t.Fatalf("Next() = %v, want ErrIncomplete", err)
	}
	if d.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", d.Skipped())
	}

	d.Feed(raw[1:])
	f, err := d.Next()
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if dp, _ := f.DataPoint(); dp.ID != 0x01 {
		t.Errorf("dpid = 0x%02X, want 0x01", dp.ID)
	}
}

func TestDecoder_ChunkBoundaries(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x00, 0xFF, 0x55) // leading noise
	stream = append(stream, mustHex(t, frameDeviceOn)...)
	stream = append(stream, mustHex(t, frameSchedules)...)
	stream = append(stream, 0xAA, 0x55) // noise between frames
	stream = append(stream, mustHex(t, frameActualTemp)...)
	stream = append(stream, mustHex(t, frameSensorInternal)...)

	whole, errs := decodeAll(stream)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors decoding whole stream: %v", errs)
	}
	if len(whole) != 4 {
		t.Fatalf("got %d frames from whole stream, want 4", len(whole))
	}

	for chunk := 1; chunk <= len(stream); chunk++ {
		d := NewDecoder()
		var got []*Frame
		for i := 0; i < len(stream); i += chunk {
			end := i + chunk
			if end > len(stream) {
				end = len(stream)
			}
			frames, errs := d.Decode(stream[i:end])
			if len(errs) != 0 {
				t.Fatalf("chunk=%d: unexpected errors: %v", chunk, errs)
			}
			got = append(got, frames...)
		}
		if len(got) != len(whole) {
			t.Fatalf("chunk=%d: got %d frames, want %d", chunk, len(got), len(whole))
		}
		for i := range got {
			if !got[i].Equal(whole[i]) {
				t.Errorf("chunk=%d: frame %d differs", chunk, i)
			}
		}
	}
}

func TestDecoder_ChecksumResync(t *testing.T) {
	good := mustHex(t, frameActualTemp)
	next := mustHex(t, frameSensorInternal)

	// Corrupting any single byte of the first frame must drop only that frame.
	// The length high byte is skipped: 0x01 there declares 264 bytes and the
	// decoder rightly waits for them.
	for i := 2; i < len(good); i++ {
		if i == 4 {
			continue
		}
		corrupt := append([]byte(nil), good...)
		corrupt[i] ^= 0x01
		stream := append(corrupt, next...)

		frames, errs := decodeAll(stream)
		if len(frames) == 0 {
			t.Fatalf("byte %d: next frame lost (errs=%v)", i, errs)
		}
		last := frames[len(frames)-1]
		if dp, _ := last.DataPoint(); dp.ID != 0x2B {
			t.Errorf("byte %d: last frame dpid 0x%02X, want 0x2B", i, dp.ID)
		}
		for _, f := range frames {
			if dp, err := f.DataPoint(); err == nil && dp.ID == 0x18 {
				t.Errorf("byte %d: corrupted frame was accepted", i)
			}
		}
	}
}

func TestDecoder_ChecksumErrorReported(t *testing.T) {
	raw := mustHex(t, frameDeviceOn)
	raw[len(raw)-1] = 0x00

	frames, errs := decodeAll(raw)
	if len(frames) != 0 {
		t.Errorf("got %d frames, want 0", len(frames))
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrChecksumMismatch) {
		t.Fatalf("errs = %v, want one checksum mismatch", errs)
	}
	var ce *ChecksumError
	if errors.As(errs[0], &ce) && !bytes.Equal(ce.Raw, raw) {
		t.Errorf("ChecksumError.Raw = %X, want %X", ce.Raw, raw)
	}
}

func TestDecoder_HeaderInsideRejectedFrame(t *testing.T) {
	// A bogus header whose declared length swallows a real frame
	valid := mustHex(t, frameDeviceOn)
	stream := []byte{HeaderByte1, HeaderByte2, 0x03, 0x07, 0x00, byte(len(valid))}
	stream = append(stream, valid...)
	stream = append(stream, 0x00) // wrong checksum for the bogus frame

	frames, errs := decodeAll(stream)
	if len(errs) != 1 {
		t.Errorf("got %d errors, want 1", len(errs))
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want the embedded frame", len(frames))
	}
	if dp, _ := frames[0].DataPoint(); dp.ID != 0x01 {
		t.Errorf("dpid = 0x%02X, want 0x01", dp.ID)
	}
}

func TestDecoder_FrameTooLarge(t *testing.T) {
	stream := []byte{HeaderByte1, HeaderByte2, 0x03, 0x07, 0xFF, 0xFF}
	stream = append(stream, mustHex(t, frameDeviceOn)...)

	frames, errs := decodeAll(stream)
	if len(errs) != 1 || !errors.Is(errs[0], ErrFrameTooLarge) {
		t.Errorf("errs = %v, want one ErrFrameTooLarge", errs)
	}
	if len(frames) != 1 {
		t.Errorf("got %d frames, want 1", len(frames))
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder()
	d.Feed(mustHex(t, frameDeviceOn)[:5])
	d.Next()
	d.Reset()

	if d.Buffered() != 0 || d.State() != StateAwaitingHeader || d.Skipped() != 0 {
		t.Errorf("Reset() left state=%d buffered=%d skipped=%d", d.State(), d.Buffered(), d.Skipped())
	}
}

// ============================================================
// Value Codec Tests
// ============================================================

func TestValueCodecs(t *testing.T) {
	if b, err := DecodeBool([]byte{0x01}); err != nil || !b {
		t.Errorf("DecodeBool(01) = %v, %v", b, err)
	}
	if _, err := DecodeBool([]byte{0x01, 0x00}); !errors.Is(err, ErrPayloadSize) {
		t.Errorf("DecodeBool(2 bytes) error = %v, want ErrPayloadSize", err)
	}

	if v, err := DecodeValue(EncodeValue(-5)); err != nil || v != -5 {
		t.Errorf("DecodeValue(EncodeValue(-5)) = %d, %v", v, err)
	}
	if _, err := DecodeValue([]byte{0x00, 0x01}); !errors.Is(err, ErrPayloadSize) {
		t.Errorf("DecodeValue(2 bytes) error = %v, want ErrPayloadSize", err)
	}

	if i, err := DecodeEnum([]byte{0x00, 0x02}); err != nil || i != 2 {
		t.Errorf("DecodeEnum uses trailing byte: got %d, %v", i, err)
	}
	if _, err := DecodeEnum(nil); !errors.Is(err, ErrPayloadSize) {
		t.Errorf("DecodeEnum(nil) error = %v, want ErrPayloadSize", err)
	}

	for _, width := range []int{1, 2, 4} {
		enc, err := EncodeBitmap(0x05, width)
		if err != nil {
			t.Fatalf("EncodeBitmap(width=%d) error: %v", width, err)
		}
		if v, err := DecodeBitmap(enc); err != nil || v != 0x05 {
			t.Errorf("bitmap width %d: got %d, %v", width, v, err)
		}
	}
	if _, err := EncodeBitmap(1, 3); err == nil {
		t.Error("EncodeBitmap(width=3) should fail")
	}
}

// ============================================================
// Formatter / Validator Tests
// ============================================================

func TestFormatFrame(t *testing.T) {
	frames, _ := decodeAll(mustHex(t, frameSensorInternal))
	out := FormatFrame(frames[0])

	for _, want := range []string{"STATUS_REPORT", "DP 0x2B", "ENUM", "index 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatFrame() missing %q:\n%s", want, out)
		}
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0x55, 0xAA, 0x00}); got != "55 AA 00" {
		t.Errorf("FormatHex() = %q", got)
	}
}

func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   *Frame
		anomaly AnomalyType
		want    int
	}{
		{
			name:  "valid status report",
			frame: NewStatusReport(DataPoint{ID: 0x01, Type: DataTypeBool, Value: []byte{1}}),
			want:  0,
		},
		{
			name:    "bool with two bytes",
			frame:   NewStatusReport(DataPoint{ID: 0x01, Type: DataTypeBool, Value: []byte{1, 0}}),
			anomaly: AnomalyValueWidth,
			want:    1,
		},
		{
			name:    "unknown data type",
			frame:   NewStatusReport(DataPoint{ID: 0x01, Type: DataType(0x09), Value: []byte{1}}),
			anomaly: AnomalyUnknownDataType,
			want:    1,
		},
		{
			name:    "status report with module version",
			frame:   NewFrame(VersionModule, TypeStatusReport, AppendDataPoint(nil, DataPoint{ID: 1, Type: DataTypeBool, Value: []byte{0}})),
			anomaly: AnomalyVersion,
			want:    1,
		},
		{
			name:    "unknown frame type",
			frame:   NewFrame(VersionMCU, 0x42, nil),
			anomaly: AnomalyUnknownFrameType,
			want:    1,
		},
		{
			name:    "long heartbeat",
			frame:   NewFrame(VersionMCU, TypeHeartbeat, []byte{1, 2}),
			anomaly: AnomalyLengthMismatch,
			want:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateFrame(tt.frame)
			if len(errs) != tt.want {
				t.Fatalf("got %d anomalies (%v), want %d", len(errs), errs, tt.want)
			}
			if tt.want > 0 && errs[0].Type != tt.anomaly {
				t.Errorf("anomaly = %d, want %d", errs[0].Type, tt.anomaly)
			}
		})
	}
}

func TestAnomalyTypeString(t *testing.T) {
	tests := map[AnomalyType]string{
		AnomalyLengthMismatch:   "length_mismatch",
		AnomalyValueWidth:       "value_width",
		AnomalyUnknownFrameType: "unknown_frame_type",
		AnomalyUnknownDataType:  "unknown_data_type",
		AnomalyVersion:          "version",
		AnomalyChecksumError:    "checksum",
		AnomalyDecodeError:      "decode",
		AnomalyType(42):         "unknown",
	}
	for a, want := range tests {
		if got := a.String(); got != want {
			t.Errorf("AnomalyType(%d).String() = %q, want %q", int(a), got, want)
		}
	}
}
