// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is one inertial measurement in SI units, device frame.
type Sample struct {
	Accel     r3.Vec  `json:"accel"` // m/s², includes gravity
	Gyro      r3.Vec  `json:"gyro"`  // rad/s
	Mag       *r3.Vec `json:"mag,omitempty"`
	Timestamp float64 `json:"timestamp"` // seconds
}

// Finite reports whether the timestamp and every sensor value are finite.
func (s Sample) Finite() bool {
	vals := []float64{s.Timestamp, s.Accel.X, s.Accel.Y, s.Accel.Z, s.Gyro.X, s.Gyro.Y, s.Gyro.Z}
	if s.Mag != nil {
		vals = append(vals, s.Mag.X, s.Mag.Y, s.Mag.Z)
	}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type SampleSource interface {
	Next() (Sample, error)
}
