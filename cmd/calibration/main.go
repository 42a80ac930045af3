// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Static calibration capture. Keep the device still and level while it
// runs; the accelerometer and gyro biases are computed from the raw MQTT
// stream, written under -out and optionally applied to a running server.
//
// Run:
//
//	go run ./cmd/calibration -duration 10s -apply http://localhost:8080
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/inertial_nav/internal/app"
	"github.com/relabs-tech/inertial_nav/internal/config"
)

func main() {
	configPath := flag.String("config", "./inertial_nav.txt", "path to configuration file")
	duration := flag.Duration("duration", 10*time.Second, "capture duration")
	outDir := flag.String("out", "./calibration", "directory for the result JSON")
	applyURL := flag.String("apply", "", "base URL of a navigation server to apply the result to")
	flag.Parse()

	log.Println("starting inertial-nav calibration capture")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := app.RunCalibration(ctx, cfg, *duration, *outDir, *applyURL); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
