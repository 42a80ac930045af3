// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketStats(t *testing.T) {
	s := NewPacketStats()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		at := base.Add(time.Duration(tick) * time.Second)
		tick++
		return at
	}

	empty := s.Snapshot()
	assert.Zero(t, empty.TotalPackets)
	assert.Nil(t, empty.FirstPacket)
	assert.Empty(t, empty.Sources)

	s.AddPacket(SourceHTTP)
	s.AddPacket(SourceUDP)
	s.AddPacket(SourceUDP)
	s.AddDropped(SourceMQTT)

	snap := s.Snapshot()
	assert.EqualValues(t, 3, snap.TotalPackets)
	assert.EqualValues(t, 1, snap.TotalDropped)
	require.NotNil(t, snap.FirstPacket)
	require.NotNil(t, snap.LastPacket)
	assert.Equal(t, base, *snap.FirstPacket)
	assert.Equal(t, base.Add(2*time.Second), *snap.LastPacket)
	assert.InDelta(t, 1.5, snap.PacketsPerSecond, 1e-9)

	assert.EqualValues(t, 2, snap.Sources[SourceUDP].Packets)
	assert.EqualValues(t, 1, snap.Sources[SourceMQTT].Dropped)
	assert.Nil(t, snap.Sources[SourceMQTT].Last)

	// Snapshots are copies.
	*snap.Sources[SourceUDP].Last = time.Time{}
	assert.Equal(t, base.Add(2*time.Second), *s.Snapshot().Sources[SourceUDP].Last)

	s.LogStats()
}

func TestRunStatsLoggingStops(t *testing.T) {
	s := NewPacketStats()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunStatsLogging(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunStatsLogging did not return")
	}
}
