// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Durations of the non-walking phases of one leg of the square, seconds.
const (
	walkTurnSeconds  = 1.0
	walkPauseSeconds = 1.0
	walkPushSeconds  = 0.5
	walkStepHz       = 1.8
	walkFieldUT      = 30.0
)

// WalkSource generates a deterministic square walk: each leg pushes off,
// walks with a step bounce, brakes, turns 90° left in place and pauses.
type WalkSource struct {
	rate       float64
	start      float64
	legSeconds float64
	withMag    bool
	n          int
}

// NewWalkSource creates a mock walk sampled at rateHz, with timestamps
// counting from start (seconds).
func NewWalkSource(rateHz, start, legSeconds float64, withMag bool) *WalkSource {
	if rateHz <= 0 {
		rateHz = 20
	}
	if legSeconds < 2*walkPushSeconds {
		legSeconds = 2 * walkPushSeconds
	}
	return &WalkSource{rate: rateHz, start: start, legSeconds: legSeconds, withMag: withMag}
}

func (w *WalkSource) Next() (Sample, error) {
	t := float64(w.n) / w.rate
	w.n++

	cycle := w.legSeconds + walkTurnSeconds + walkPauseSeconds
	leg := math.Floor(t / cycle)
	phase := t - leg*cycle
	heading := leg * math.Pi / 2

	s := Sample{
		Accel:     r3.Vec{Z: standardGravity},
		Timestamp: w.start + t,
	}

	switch {
	case phase < w.legSeconds:
		bounce := math.Sin(2 * math.Pi * walkStepHz * phase)
		s.Accel.Z += 0.4 * math.Abs(bounce)
		switch {
		case phase < walkPushSeconds:
			s.Accel.X = 1.0
		case phase >= w.legSeconds-walkPushSeconds:
			s.Accel.X = -1.0
		default:
			s.Accel.X = 0.05 * bounce
		}
	case phase < w.legSeconds+walkTurnSeconds:
		s.Gyro.Z = math.Pi / 2 / walkTurnSeconds
		heading += (phase - w.legSeconds) * s.Gyro.Z
	}

	if w.withMag {
		// Horizontal field direction equals the device heading.
		sin, cos := math.Sincos(heading)
		s.Mag = &r3.Vec{X: walkFieldUT * cos, Y: walkFieldUT * sin, Z: -1.2 * walkFieldUT}
	}
	return s, nil
}

// ScaledSource adapts a SampleSource to device counts.
type ScaledSource struct {
	Src    SampleSource
	Scale  Scale
	Source string
}

func (s ScaledSource) NextRaw() (IMURaw, error) {
	sample, err := s.Src.Next()
	if err != nil {
		return IMURaw{}, err
	}
	return s.Scale.ToRaw(sample, s.Source), nil
}
