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

	"github.com/relabs-tech/inertial_nav/internal/app"
	"github.com/relabs-tech/inertial_nav/internal/config"
)

func main() {
	configPath := flag.String("config", "./inertial_nav.txt", "path to configuration file")
	withMag := flag.Bool("mag", true, "include magnetometer readings")
	flag.Parse()

	log.Println("starting inertial-nav MQTT producer (mock walk)")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunProducer(ctx, cfg, *withMag); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
