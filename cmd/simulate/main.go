// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"os"

	"github.com/relabs-tech/inertial_nav/internal/app"
	"github.com/relabs-tech/inertial_nav/internal/config"
)

func main() {
	configPath := flag.String("config", "./inertial_nav.txt", "path to configuration file")
	samples := flag.Int("samples", 600, "number of samples to simulate")
	withMag := flag.Bool("mag", true, "include magnetometer readings")
	planar := flag.Bool("planar", false, "use the planar trail tracker (ax, ay, gyro z only)")
	every := flag.Int("every", 10, "print every Nth snapshot")
	png := flag.String("png", "", "write the trail to this PNG file")
	flag.Parse()

	log.Println("starting inertial-nav simulation (mock walk, no transport)")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := app.SimulateOptions{
		Samples:  *samples,
		WithMag:  *withMag,
		Planar:   *planar,
		PrintOne: *every,
		PNGPath:  *png,
	}
	if _, err := app.RunSimulate(cfg, opts, os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
