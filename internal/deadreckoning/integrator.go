// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package deadreckoning

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// motion integrates world-frame acceleration into velocity and position.
type motion struct {
	origin   r2.Vec
	position r2.Vec
	velocity r2.Vec
	distance float64

	// Slow average of linear acceleration, subtracted when high-pass is on.
	drift r3.Vec

	lastMotion    float64
	hasLastMotion bool
}

func newMotion(origin r2.Vec) motion {
	return motion{origin: origin, position: origin}
}

// toWorld rotates the horizontal part of a sensor-frame vector by heading.
func toWorld(v r3.Vec, heading float64) r2.Vec {
	s, c := math.Sincos(heading)
	return r2.Vec{
		X: v.X*c - v.Y*s,
		Y: v.X*s + v.Y*c,
	}
}

func deadzone(v, limit float64) float64 {
	if math.Abs(v) < limit {
		return 0
	}
	return v
}

// Step advances one accepted sample of duration dt ending at ts.
func (m *motion) Step(linear r3.Vec, heading float64, stationary bool, ts, dt float64, cfg Config) {
	if cfg.HighPassAlpha > 0 {
		m.drift = r3.Add(m.drift, r3.Scale(cfg.HighPassAlpha, r3.Sub(linear, m.drift)))
		linear = r3.Sub(linear, m.drift)
	}

	world := toWorld(linear, heading)
	world.X = deadzone(world.X, cfg.Deadzone)
	world.Y = deadzone(world.Y, cfg.Deadzone)
	intensity := r2.Norm(world)

	if !m.hasLastMotion {
		m.lastMotion = ts
		m.hasLastMotion = true
	}
	if intensity >= cfg.MoveThreshold {
		m.lastMotion = ts
	}

	switch {
	case stationary:
		m.velocity = r2.Vec{}
	default:
		m.velocity = r2.Add(m.velocity, r2.Scale(dt, world))
		if intensity < cfg.MoveThreshold {
			m.velocity = r2.Scale(math.Exp(-cfg.DampingRate*dt), m.velocity)
		}
		speed := r2.Norm(m.velocity)
		if speed > cfg.MaxSpeed {
			m.velocity = r2.Scale(cfg.MaxSpeed/speed, m.velocity)
		} else if speed < cfg.MinSpeed {
			m.velocity = r2.Vec{}
		}
		if ts-m.lastMotion > cfg.MotionTimeout {
			m.velocity = r2.Vec{}
		}
	}

	prev := m.position
	m.position = r2.Add(m.position, r2.Scale(dt, m.velocity))
	m.distance += r2.Norm(r2.Sub(m.position, prev))

	if cfg.SnapToOrigin && stationary && r2.Norm(r2.Sub(m.position, m.origin)) <= cfg.SnapRadius {
		m.position = m.origin
	}
}

// Reset moves to a new origin and zeroes velocity, distance and drift.
func (m *motion) Reset(origin r2.Vec) {
	*m = newMotion(origin)
}
