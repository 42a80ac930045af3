// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package deadreckoning

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/inertial_nav/internal/imu"
)

// TrailTracker feeds planar inputs (horizontal accel and yaw rate) into a
// full Estimator. The vertical accel axis reads standard gravity and the
// roll/pitch rates read zero.
type TrailTracker struct {
	est *Estimator
}

func NewTrailTracker(cfg Config, origin r2.Vec, heading float64) (*TrailTracker, error) {
	est, err := New(cfg, origin, heading)
	if err != nil {
		return nil, err
	}
	return &TrailTracker{est: est}, nil
}

// Update takes planar acceleration (m/s²), yaw rate (rad/s) and a timestamp
// in seconds.
func (t *TrailTracker) Update(ax, ay, gyroZ, timestamp float64) Snapshot {
	return t.est.Update(imu.Sample{
		Accel:     r3.Vec{X: ax, Y: ay, Z: StandardGravity},
		Gyro:      r3.Vec{Z: gyroZ},
		Timestamp: timestamp,
	})
}

func (t *TrailTracker) State() Snapshot { return t.est.State() }

func (t *TrailTracker) Trail(limit int) []TrailPoint { return t.est.Trail(limit) }

func (t *TrailTracker) Reset(origin r2.Vec, heading float64) {
	t.est.Reset(origin, heading, false)
}

// Estimator exposes the wrapped estimator.
func (t *TrailTracker) Estimator() *Estimator { return t.est }
