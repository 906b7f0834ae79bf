// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Thermoquad/tuyastat/pkg/tuya"
)

// Statistics tracks frame and data point statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Frame counters
	TotalFrames      uint64
	ValidFrames      uint64
	ChecksumErrors   uint64
	DecodeErrors     uint64
	MalformedFrames  uint64
	LengthMismatches uint64
	ValueWidthErrors uint64
	UnknownTypes     uint64
	VersionErrors    uint64

	// Data point counters
	DataPoints     uint64
	Mapped         uint64
	Ignored        uint64
	Unrecognized   uint64
	DecodeFailures uint64
	Changes        uint64

	// Outbound counters
	FramesSent  uint64
	WriteErrors uint64

	// Unrecognized dpids and how often each was seen
	UnknownDPIDs map[uint8]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		UnknownDPIDs:   make(map[uint8]uint64),
	}
}

// Update updates statistics based on a frame and its errors
func (s *Statistics) Update(frame *tuya.Frame, decodeErr error, validationErrors []tuya.ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, tuya.ErrChecksumMismatch) {
			s.ChecksumErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if len(validationErrors) == 0 {
		s.ValidFrames++
		return
	}

	s.MalformedFrames++
	for _, err := range validationErrors {
		switch err.Type {
		case tuya.AnomalyLengthMismatch:
			s.LengthMismatches++
		case tuya.AnomalyValueWidth:
			s.ValueWidthErrors++
		case tuya.AnomalyUnknownFrameType, tuya.AnomalyUnknownDataType:
			s.UnknownTypes++
		case tuya.AnomalyVersion:
			s.VersionErrors++
		}
	}
}

// RecordDataPoint counts one dispatched data point
func (s *Statistics) RecordDataPoint(dpid uint8, result Result, mapped bool) {
	s.DataPoints++
	switch {
	case result == Unrecognized:
		s.Unrecognized++
		if s.UnknownDPIDs == nil {
			s.UnknownDPIDs = make(map[uint8]uint64)
		}
		s.UnknownDPIDs[dpid]++
	case mapped:
		s.Mapped++
	default:
		s.Ignored++
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

func (s *Statistics) errorCount() uint64 {
	return s.ChecksumErrors + s.DecodeErrors + s.MalformedFrames
}

// Clone returns an independent copy
func (s *Statistics) Clone() *Statistics {
	c := *s
	c.UnknownDPIDs = maps.Clone(s.UnknownDPIDs)
	return &c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFrames, percent(s.MalformedFrames))
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
		if s.ValueWidthErrors > 0 {
			result += fmt.Sprintf("  Value Width:      %5d\n", s.ValueWidthErrors)
		}
		if s.UnknownTypes > 0 {
			result += fmt.Sprintf("  Unknown Types:    %5d\n", s.UnknownTypes)
		}
		if s.VersionErrors > 0 {
			result += fmt.Sprintf("  Version:          %5d\n", s.VersionErrors)
		}
	}

	if s.DataPoints > 0 {
		result += fmt.Sprintf("Data Points:     %8d (mapped %d, ignored %d, unrecognized %d)\n",
			s.DataPoints, s.Mapped, s.Ignored, s.Unrecognized)
		for _, dpid := range slices.Sorted(maps.Keys(s.UnknownDPIDs)) {
			result += fmt.Sprintf("  dpid 0x%02X:       %5d\n", dpid, s.UnknownDPIDs[dpid])
		}
	}
	if s.DecodeFailures > 0 {
		result += fmt.Sprintf("Decode Failures: %8d\n", s.DecodeFailures)
	}
	if s.Changes > 0 {
		result += fmt.Sprintf("Changes:         %8d\n", s.Changes)
	}
	if s.FramesSent > 0 || s.WriteErrors > 0 {
		result += fmt.Sprintf("Frames Sent:     %8d (write errors %d)\n", s.FramesSent, s.WriteErrors)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
