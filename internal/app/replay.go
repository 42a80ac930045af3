// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/relabs-tech/inertial_nav/internal/config"
	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/imu"
	"github.com/relabs-tech/inertial_nav/internal/render"
	"github.com/relabs-tech/inertial_nav/internal/store"
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// ReplayStats summarizes one capture.
type ReplayStats struct {
	Packets int // all packets in the capture
	UDP     int // UDP packets on the selected port
	Handled int // payloads the handler accepted
}

// ReplayOptions select and pace the packets of a capture.
type ReplayOptions struct {
	Port  int     // UDP destination port; 0 accepts every port
	Speed float64 // 1 replays in capture time, 0 as fast as possible
}

// ReplayUDP reads a pcap or pcapng capture from r and calls handle with the
// payload and capture time of every matching UDP packet.
func ReplayUDP(ctx context.Context, r io.Reader, opts ReplayOptions, handle func(payload []byte, at time.Time) error) (ReplayStats, error) {
	var stats ReplayStats

	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return stats, fmt.Errorf("read capture header: %w", err)
	}

	var packetSource *gopacket.PacketSource
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return stats, fmt.Errorf("open pcapng: %w", err)
		}
		packetSource = gopacket.NewPacketSource(ng, ng.LinkType())
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return stats, fmt.Errorf("open pcap: %w", err)
		}
		packetSource = gopacket.NewPacketSource(pr, pr.LinkType())
	}
	packetSource.DecodeOptions = gopacket.Lazy

	var prev time.Time
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		packet, err := packetSource.NextPacket()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if opts.Port > 0 && int(udp.DstPort) != opts.Port {
			continue
		}
		stats.UDP++

		at := packet.Metadata().Timestamp
		if opts.Speed > 0 && !prev.IsZero() && at.After(prev) {
			wait := time.Duration(float64(at.Sub(prev)) / opts.Speed)
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(wait):
			}
		}
		prev = at

		if err := handle(udp.Payload, at); err != nil {
			log.Printf("replay: packet %d: %v", stats.Packets, err)
			continue
		}
		stats.Handled++
	}
}

// ReplayResult is what RunReplay reports.
type ReplayResult struct {
	Stats   ReplayStats
	Session store.Session
	Final   deadreckoning.Snapshot
}

// RunReplay feeds a captured UDP sample stream through a fresh navigation
// session starting at origin. Samples without a timestamp take their
// capture time. When pngPath is set the trail is rendered there.
func RunReplay(ctx context.Context, cfg *config.Config, capture string, origin r2.Vec, heading float64, opts ReplayOptions, pngPath string) (ReplayResult, error) {
	f, err := os.Open(capture)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return ReplayResult{}, err
	}
	defer st.Close()

	nav, err := NewNavigator(cfg.DeadReckoning, st, NavigatorOptions{
		StateLogEvery: cfg.StateLogEvery,
		PersistEvery:  cfg.PersistEvery,
	})
	if err != nil {
		return ReplayResult{}, err
	}
	if _, err := nav.Start(ctx, origin, heading); err != nil {
		return ReplayResult{}, err
	}

	var packetTime time.Time
	in := &Ingest{
		Nav:     nav,
		Stats:   NewPacketStats(),
		Decoder: imu.Decoder{Now: func() time.Time { return packetTime }},
		Scale:   cfg.Scale(),
	}

	log.Printf("replay: %s (udp port %d, speed %g)", capture, opts.Port, opts.Speed)
	stats, err := ReplayUDP(ctx, f, opts, func(payload []byte, at time.Time) error {
		packetTime = at
		_, _, err := in.Payload(ctx, SourcePCAP, payload)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return ReplayResult{Stats: stats}, err
	}

	final, active := nav.Position()
	if active == nil {
		return ReplayResult{Stats: stats}, ErrNoSession
	}
	trail := nav.History(0)
	sess, err := nav.Stop(context.Background(), active.ID)
	if err != nil {
		return ReplayResult{Stats: stats}, err
	}
	log.Printf("replay: %d packets, %d udp, %d samples, final (%.2f, %.2f) after %.2f m",
		stats.Packets, stats.UDP, stats.Handled, final.Position.X, final.Position.Y, final.TotalDistance)

	if pngPath != "" {
		if err := writeTrailPNG(pngPath, trail, origin, &final, "replay "+sess.ID); err != nil {
			return ReplayResult{Stats: stats, Session: sess, Final: final}, err
		}
		log.Printf("replay: trail written to %s", pngPath)
	}
	return ReplayResult{Stats: stats, Session: sess, Final: final}, nil
}

func writeTrailPNG(path string, trail []deadreckoning.TrailPoint, origin r2.Vec, snap *deadreckoning.Snapshot, title string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	opts := render.DefaultOptions()
	opts.Title = title
	if err := render.Trail(out, trail, origin, snap, opts); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
