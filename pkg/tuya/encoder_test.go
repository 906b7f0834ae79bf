// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tuya

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeDataPoint_Enum(t *testing.T) {
	got, err := EncodeDataPoint(0x2B, DataTypeEnum, []byte{0x02})
	if err != nil {
		t.Fatalf("EncodeDataPoint() error: %v", err)
	}
	want := mustHex(t, "55 AA 00 06 00 05 2B 04 00 01 02 3C")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeDataPoint() = %s, want %s", FormatHex(got), FormatHex(want))
	}
}

func TestEncodeDataPoint_LengthFromPayload(t *testing.T) {
	tests := []struct {
		name     string
		dataType DataType
		payload  []byte
	}{
		{"bool", DataTypeBool, EncodeBool(true)},
		{"value", DataTypeValue, EncodeValue(215)},
		{"string", DataTypeString, EncodeString("hello")},
		{"raw empty", DataTypeRaw, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeDataPoint(0x10, tt.dataType, tt.payload)
			if err != nil {
				t.Fatalf("EncodeDataPoint() error: %v", err)
			}
			n := len(tt.payload)
			if frameLen := int(raw[4])<<8 | int(raw[5]); frameLen != n+DPHeaderSize {
				t.Errorf("frame length = %d, want %d", frameLen, n+DPHeaderSize)
			}
			if dpLen := int(raw[8])<<8 | int(raw[9]); dpLen != n {
				t.Errorf("dp length = %d, want %d", dpLen, n)
			}
			if raw[2] != VersionModule || raw[3] != TypeSetDataPoint {
				t.Errorf("version/type = %02X/%02X, want 00/06", raw[2], raw[3])
			}
			if err := VerifyChecksum(raw); err != nil {
				t.Errorf("VerifyChecksum() = %v", err)
			}
		})
	}
}

func TestEncodeFrame_TooLarge(t *testing.T) {
	_, err := EncodeFrameFromValues(VersionModule, TypeSetDataPoint, make([]byte, MaxDataSize+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("error = %v, want ErrFrameTooLarge", err)
	}
	_, err = EncodeDataPoint(0x01, DataTypeRaw, make([]byte, MaxDataSize))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("EncodeDataPoint error = %v, want ErrFrameTooLarge", err)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	frames := []*Frame{
		NewHeartbeat(),
		NewProductQuery(),
		NewQueryStatus(),
		NewWifiState(WifiCloud),
		NewSetDataPoint(0x01, DataTypeBool, EncodeBool(false)),
		NewSetDataPoint(0x10, DataTypeValue, EncodeValue(-40)),
		NewStatusReport(
			DataPoint{ID: 0x18, Type: DataTypeValue, Value: EncodeValue(22)},
			DataPoint{ID: 0x65, Type: DataTypeValue, Value: EncodeValue(19)},
		),
		NewFrame(VersionMCU, TypeProductQuery, []byte(`{"p":"abc","v":"1.0.0","m":0}`)),
	}

	for _, f := range frames {
		t.Run(FormatFrameType(f.Type()), func(t *testing.T) {
			raw, err := EncodeFrame(f)
			if err != nil {
				t.Fatalf("EncodeFrame() error: %v", err)
			}
			decoded, errs := decodeAll(raw)
			if len(errs) != 0 || len(decoded) != 1 {
				t.Fatalf("decode: frames=%d errs=%v", len(decoded), errs)
			}
			if !decoded[0].Equal(f) {
				t.Errorf("round trip mismatch: %s", FormatHex(raw))
			}
		})
	}
}

func TestMustEncodeFrame_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustEncodeFrame should panic on oversized data")
		}
	}()
	MustEncodeFrame(NewFrame(VersionModule, TypeSetDataPoint, make([]byte, MaxDataSize+1)))
}

// ============================================================
// Command Builder Tests
// ============================================================

func TestCommandBuilders(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  string
	}{
		{"heartbeat", NewHeartbeat(), "55 AA 00 00 00 00 FF"},
		{"product query", NewProductQuery(), "55 AA 00 01 00 00 00"},
		{"query status", NewQueryStatus(), "55 AA 00 08 00 00 07"},
		{"wifi connected", NewWifiState(WifiConnected), "55 AA 00 03 00 01 03 06"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustEncodeFrame(tt.frame)
			if want := mustHex(t, tt.want); !bytes.Equal(got, want) {
				t.Errorf("got %s, want %s", FormatHex(got), tt.want)
			}
		})
	}
}

func TestNewLocalTime(t *testing.T) {
	tests := []struct {
		name    string
		when    time.Time
		weekday byte
	}{
		{"sunday", time.Date(2024, time.March, 10, 7, 30, 15, 0, time.UTC), 7},
		{"monday", time.Date(2024, time.March, 11, 23, 59, 0, 0, time.UTC), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewLocalTime(tt.when)
			if f.Type() != TypeLocalTime || f.Length() != 8 {
				t.Fatalf("type=0x%02X len=%d, want 0x1C/8", f.Type(), f.Length())
			}
			d := f.Data()
			want := []byte{
				0x01, 24, byte(tt.when.Month()), byte(tt.when.Day()),
				byte(tt.when.Hour()), byte(tt.when.Minute()), byte(tt.when.Second()), tt.weekday,
			}
			if !bytes.Equal(d, want) {
				t.Errorf("data = %s, want %s", FormatHex(d), FormatHex(want))
			}
		})
	}
}
