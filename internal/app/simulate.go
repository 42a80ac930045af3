// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/relabs-tech/inertial_nav/internal/config"
	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/imu"
)

// SimulateOptions control an offline run of the mock walk.
type SimulateOptions struct {
	Samples  int
	WithMag  bool
	Planar   bool // drive the planar TrailTracker instead of the full estimator
	PrintOne int  // print every Nth snapshot; 0 prints none
	PNGPath  string
}

// RunSimulate pushes the mock walk through the estimator without any
// transport and prints snapshots to out. It returns the final snapshot.
func RunSimulate(cfg *config.Config, opts SimulateOptions, out io.Writer) (deadreckoning.Snapshot, error) {
	src := NewMockSource(cfg, time.Unix(0, 0), opts.WithMag)

	update, trail, err := simulator(cfg, opts.Planar)
	if err != nil {
		return deadreckoning.Snapshot{}, err
	}

	var snap deadreckoning.Snapshot
	for i := 1; i <= opts.Samples; i++ {
		raw, err := src.NextRaw()
		if err != nil {
			return snap, err
		}
		snap = update(src.Scale.ToSample(raw))

		if opts.PrintOne > 0 && i%opts.PrintOne == 0 {
			fmt.Fprintf(out,
				"t=%7.2f  X=%7.2f  Y=%7.2f  HDG=%6.1f  V=%5.2f  stationary=%v\n",
				*snap.Timestamp, snap.Position.X, snap.Position.Y, snap.HeadingDegrees, snap.Speed, snap.Stationary,
			)
		}
	}

	fmt.Fprintf(out, "final: X=%.2f Y=%.2f heading=%.1f° distance=%.2f m samples=%d rejected=%d\n",
		snap.Position.X, snap.Position.Y, snap.HeadingDegrees, snap.TotalDistance, snap.SampleCount, snap.RejectedCount)

	if opts.PNGPath != "" {
		if err := writeTrailPNG(opts.PNGPath, trail(), r2.Vec{}, &snap, "simulated walk"); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

func simulator(cfg *config.Config, planar bool) (func(imu.Sample) deadreckoning.Snapshot, func() []deadreckoning.TrailPoint, error) {
	if planar {
		tt, err := deadreckoning.NewTrailTracker(cfg.DeadReckoning, r2.Vec{}, 0)
		if err != nil {
			return nil, nil, err
		}
		update := func(s imu.Sample) deadreckoning.Snapshot {
			return tt.Update(s.Accel.X, s.Accel.Y, s.Gyro.Z, s.Timestamp)
		}
		return update, func() []deadreckoning.TrailPoint { return tt.Trail(0) }, nil
	}

	est, err := deadreckoning.New(cfg.DeadReckoning, r2.Vec{}, 0)
	if err != nil {
		return nil, nil, err
	}
	return est.Update, func() []deadreckoning.TrailPoint { return est.Trail(0) }, nil
}
