// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package deadreckoning

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// motionInputs are the per-sample magnitudes the classifier windows over.
type motionInputs struct {
	accel   float64 // |filtered accel|
	gyro    float64 // |filtered gyro|
	gravity r3.Vec  // current gravity estimate
	user    float64 // |accel - gravity|
}

// classifier decides stationary vs moving over a sliding window.
type classifier struct {
	accel   *ring[float64]
	gyro    *ring[float64]
	gravity *ring[float64]
	user    *ring[float64]

	run        int
	stationary bool
}

func newClassifier(window int) classifier {
	return classifier{
		accel:   newRing[float64](window),
		gyro:    newRing[float64](window),
		gravity: newRing[float64](window),
		user:    newRing[float64](window),
	}
}

// Classify pushes one sample and returns the updated flag. A sample is a
// candidate when every window statistic is below its threshold; the flag
// turns on after StationarySamples consecutive candidates and off on the
// first non-candidate.
func (c *classifier) Classify(in motionInputs, cfg Config) bool {
	c.accel.Push(in.accel)
	c.gyro.Push(in.gyro)
	c.gravity.Push(r3.Norm(in.gravity))
	c.user.Push(in.user)

	if c.candidate(in, cfg) {
		c.run++
	} else {
		c.run = 0
	}
	c.stationary = c.run >= cfg.StationarySamples
	return c.stationary
}

func (c *classifier) candidate(in motionInputs, cfg Config) bool {
	if stdDev(c.accel) >= cfg.StationaryAccelStd {
		return false
	}
	if stdDev(c.gyro) >= cfg.StationaryGyroStd {
		return false
	}
	if in.gyro >= cfg.StationaryGyroRate {
		return false
	}
	if peakRange(c.gravity) >= cfg.PeakRangeThreshold || peakRange(c.user) >= cfg.PeakRangeThreshold {
		return false
	}
	if in.user >= cfg.StepThreshold {
		return false
	}
	if h := cfg.HorizontalGravityThreshold; h > 0 {
		if math.Abs(in.gravity.X) >= h || math.Abs(in.gravity.Y) >= h {
			return false
		}
	}
	return true
}

// Count is the current run of consecutive candidate samples.
func (c *classifier) Count() int { return c.run }

func (c *classifier) Clear() {
	c.accel.Clear()
	c.gyro.Clear()
	c.gravity.Clear()
	c.user.Clear()
	c.run = 0
	c.stationary = false
}

// stdDev is the sample standard deviation; zero until two values exist.
func stdDev(r *ring[float64]) float64 {
	if r.Len() < 2 {
		return 0
	}
	return stat.StdDev(r.Values(), nil)
}

func peakRange(r *ring[float64]) float64 {
	if r.Len() == 0 {
		return 0
	}
	v := r.Values()
	return floats.Max(v) - floats.Min(v)
}
