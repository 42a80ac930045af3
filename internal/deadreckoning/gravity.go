// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package deadreckoning

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// biasEstimator owns the gravity vector (sensor frame) and the sensor biases.
type biasEstimator struct {
	gravity   r3.Vec
	gyroBias  r3.Vec
	accelBias r3.Vec
}

func newBiasEstimator() biasEstimator {
	return biasEstimator{gravity: r3.Vec{Z: StandardGravity}}
}

// adaptGyroBias pulls the gyro bias toward the raw reading. Only call while
// stationary: any true rotation would be absorbed into the bias.
func (b *biasEstimator) adaptGyroBias(rawGyro r3.Vec, retain float64) {
	b.gyroBias = r3.Add(r3.Scale(retain, b.gyroBias), r3.Scale(1-retain, rawGyro))
}

// adaptGravity tracks slow tilt change. It runs whenever the accelerometer
// magnitude is near g and the device is barely rotating, so it keeps working
// during straight, level walking.
func (b *biasEstimator) adaptGravity(accel r3.Vec, gyroRate float64, cfg Config) bool {
	if math.Abs(r3.Norm(accel)-StandardGravity) >= cfg.GravityTolerance {
		return false
	}
	if gyroRate >= cfg.StationaryGyroRate {
		return false
	}
	b.gravity = r3.Add(b.gravity, r3.Scale(cfg.GravityAlpha, r3.Sub(accel, b.gravity)))
	return true
}

// calibrate sets biases from a batch of samples taken while the device lay
// still and level. An empty batch leaves that sensor's bias alone.
func (b *biasEstimator) calibrate(accel, gyro []r3.Vec) {
	if len(accel) > 0 {
		mean := meanVec(accel)
		mean.Z -= StandardGravity
		b.accelBias = mean
	}
	if len(gyro) > 0 {
		b.gyroBias = meanVec(gyro)
	}
}

func (b *biasEstimator) clear() {
	*b = newBiasEstimator()
}

func meanVec(vs []r3.Vec) r3.Vec {
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	zs := make([]float64, len(vs))
	for i, v := range vs {
		xs[i], ys[i], zs[i] = v.X, v.Y, v.Z
	}
	return r3.Vec{
		X: stat.Mean(xs, nil),
		Y: stat.Mean(ys, nil),
		Z: stat.Mean(zs, nil),
	}
}
