// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/imu"
)

// Ingest is the shared path from a received payload to the Navigator.
// HTTP, UDP, MQTT and pcap replay all go through it.
type Ingest struct {
	Nav     *Navigator
	Stats   *PacketStats
	Decoder imu.Decoder
	Scale   imu.Scale // converts raw count payloads
}

// Payload decodes a vendor JSON sample and feeds it. The returned bool is
// false when no session was active.
func (in *Ingest) Payload(ctx context.Context, source string, payload []byte) (deadreckoning.Snapshot, bool, error) {
	s, err := in.Decoder.Decode(payload)
	if err != nil {
		in.Stats.AddDropped(source)
		return deadreckoning.Snapshot{}, false, err
	}
	return in.Sample(ctx, source, s)
}

// Raw decodes an IMURaw JSON payload in device counts and feeds it.
func (in *Ingest) Raw(ctx context.Context, source string, payload []byte) (deadreckoning.Snapshot, bool, error) {
	var raw imu.IMURaw
	if err := json.Unmarshal(payload, &raw); err != nil {
		in.Stats.AddDropped(source)
		return deadreckoning.Snapshot{}, false, fmt.Errorf("decode raw sample: %w", err)
	}
	if raw.TimestampMs <= 0 {
		in.Stats.AddDropped(source)
		return deadreckoning.Snapshot{}, false, fmt.Errorf("raw sample from %q has no timestamp", raw.Source)
	}
	return in.Sample(ctx, source, in.Scale.ToSample(raw))
}

// Sample feeds an already decoded sample.
func (in *Ingest) Sample(ctx context.Context, source string, s imu.Sample) (deadreckoning.Snapshot, bool, error) {
	in.Stats.AddPacket(source)
	snap, err := in.Nav.Feed(ctx, s)
	if errors.Is(err, ErrNoSession) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	return snap, true, nil
}
