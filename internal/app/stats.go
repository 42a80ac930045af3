// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Ingestion sources counted by PacketStats.
const (
	SourceHTTP = "http"
	SourceUDP  = "udp"
	SourceMQTT = "mqtt"
	SourcePCAP = "pcap"
)

// SourceStats counts packets from one ingestion source.
type SourceStats struct {
	Packets int64      `json:"packets"`
	Dropped int64      `json:"dropped"`
	Last    *time.Time `json:"last,omitempty"`
}

// StatsSnapshot is the JSON form of PacketStats.
type StatsSnapshot struct {
	TotalPackets     int64                  `json:"total_packets"`
	TotalDropped     int64                  `json:"total_dropped"`
	PacketsPerSecond float64                `json:"packets_per_second"`
	FirstPacket      *time.Time             `json:"first_packet_time,omitempty"`
	LastPacket       *time.Time             `json:"last_packet_time,omitempty"`
	Sources          map[string]SourceStats `json:"sources"`
}

// PacketStats tracks received and dropped sample packets per source.
type PacketStats struct {
	mu      sync.Mutex
	now     func() time.Time
	first   time.Time
	last    time.Time
	total   int64
	dropped int64
	sources map[string]*SourceStats
}

func NewPacketStats() *PacketStats {
	return &PacketStats{now: time.Now, sources: make(map[string]*SourceStats)}
}

func (s *PacketStats) source(name string) *SourceStats {
	src, ok := s.sources[name]
	if !ok {
		src = &SourceStats{}
		s.sources[name] = src
	}
	return src
}

// AddPacket records a decoded sample from source.
func (s *PacketStats) AddPacket(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now()
	if s.total == 0 {
		s.first = t
	}
	s.last = t
	s.total++

	src := s.source(source)
	src.Packets++
	src.Last = &t
}

// AddDropped records a payload from source that could not be decoded.
func (s *PacketStats) AddDropped(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
	s.source(source).Dropped++
}

func (s *PacketStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalPackets: s.total,
		TotalDropped: s.dropped,
		Sources:      make(map[string]SourceStats, len(s.sources)),
	}
	if s.total > 0 {
		first, last := s.first, s.last
		snap.FirstPacket = &first
		snap.LastPacket = &last
		if elapsed := last.Sub(first).Seconds(); elapsed > 0 {
			snap.PacketsPerSecond = float64(s.total) / elapsed
		}
	}
	for name, src := range s.sources {
		cp := *src
		if src.Last != nil {
			t := *src.Last
			cp.Last = &t
		}
		snap.Sources[name] = cp
	}
	return snap
}

// LogStats writes one summary line.
func (s *PacketStats) LogStats() {
	snap := s.Snapshot()
	names := make([]string, 0, len(snap.Sources))
	for name := range snap.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		src := snap.Sources[name]
		fmt.Fprintf(&b, " %s=%d/%d", name, src.Packets, src.Dropped)
	}
	log.Printf("stats: %d packets (%.1f/s), %d dropped, per source packets/dropped:%s",
		snap.TotalPackets, snap.PacketsPerSecond, snap.TotalDropped, b.String())
}

// RunStatsLogging logs stats every interval until ctx is done.
func (s *PacketStats) RunStatsLogging(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.LogStats()
		}
	}
}
