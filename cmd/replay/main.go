// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/relabs-tech/inertial_nav/internal/app"
	"github.com/relabs-tech/inertial_nav/internal/config"
)

func main() {
	configPath := flag.String("config", "./inertial_nav.txt", "path to configuration file")
	capture := flag.String("pcap", "", "pcap or pcapng capture of the UDP sample stream")
	port := flag.Int("port", 0, "UDP port to replay; 0 uses UDP_PORT from the config")
	speed := flag.Float64("speed", 0, "replay speed, 1 = capture time, 0 = as fast as possible")
	x := flag.Float64("x", 0, "initial x (m)")
	y := flag.Float64("y", 0, "initial y (m)")
	heading := flag.Float64("heading", 0, "initial heading (rad)")
	png := flag.String("png", "", "write the trail to this PNG file")
	flag.Parse()

	if *capture == "" {
		log.Fatal("-pcap is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *port == 0 {
		*port = cfg.UDPPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := app.ReplayOptions{Port: *port, Speed: *speed}
	res, err := app.RunReplay(ctx, cfg, *capture, r2.Vec{X: *x, Y: *y}, *heading, opts, *png)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Printf("session %s: %d samples, %.2f m", res.Session.ID, res.Stats.Handled, res.Final.TotalDistance)
}
