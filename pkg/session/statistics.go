// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"time"

	"github.com/Thermoquad/serialdash/pkg/wire"
)

// Statistics tracks inbound frame counts and rates for diagnostics
type Statistics struct {
	StartTime     time.Time
	LastFrameTime time.Time

	// Counters
	TotalFrames       uint64
	DiscoveryFrames   uint64
	ErrorFrames       uint64
	SerialFrames      uint64
	Duplicates        uint64
	ClientEchoes      uint64
	UnknownFrames     uint64
	LocalEchoes       uint64
	DroppedDispatches uint64
	Connects          uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{
		StartTime:     now,
		LastFrameTime: now,
	}
}

// Update counts one classified inbound frame
func (s *Statistics) Update(kind wire.Kind, now time.Time) {
	s.TotalFrames++
	switch kind {
	case wire.KindDiscovery:
		s.DiscoveryFrames++
	case wire.KindError:
		s.ErrorFrames++
	case wire.KindSerialData:
		s.SerialFrames++
	case wire.KindClientEcho:
		s.ClientEchoes++
	default:
		s.UnknownFrames++
	}
	s.LastFrameTime = now
}

// CalculateRates calculates the inbound frame rate
func (s *Statistics) CalculateRates(now time.Time) {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	result := "=== Session Statistics ===\n"
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Discovery:       %8d\n", s.DiscoveryFrames)
	result += fmt.Sprintf("Serial Data:     %8d\n", s.SerialFrames)
	if s.Duplicates > 0 {
		result += fmt.Sprintf("  Duplicates:    %8d\n", s.Duplicates)
	}
	if s.ErrorFrames > 0 {
		result += fmt.Sprintf("Agent Errors:    %8d\n", s.ErrorFrames)
	}
	if s.ClientEchoes > 0 {
		result += fmt.Sprintf("Client Echoes:   %8d\n", s.ClientEchoes)
	}
	if s.UnknownFrames > 0 {
		result += fmt.Sprintf("Unknown Frames:  %8d\n", s.UnknownFrames)
	}
	result += fmt.Sprintf("Local Echoes:    %8d\n", s.LocalEchoes)
	if s.DroppedDispatches > 0 {
		result += fmt.Sprintf("Dropped Sends:   %8d\n", s.DroppedDispatches)
	}
	result += fmt.Sprintf("Connects:        %8d\n", s.Connects)
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += "==========================\n"
	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset(now time.Time) {
	*s = Statistics{StartTime: now, LastFrameTime: now}
}
