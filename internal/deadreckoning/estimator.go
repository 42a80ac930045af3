// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package deadreckoning

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/inertial_nav/internal/imu"
	"github.com/relabs-tech/inertial_nav/internal/orientation"
)

// Snapshot is a read-only copy of the estimator state.
type Snapshot struct {
	Position        r2.Vec           `json:"position"`
	Velocity        r2.Vec           `json:"velocity"`
	Speed           float64          `json:"speed"`
	Heading         float64          `json:"heading"`
	HeadingDegrees  float64          `json:"heading_degrees"`
	AngularVelocity float64          `json:"angular_velocity"`
	Orientation     orientation.Quat `json:"orientation"`
	Pose            orientation.Pose `json:"pose"`
	Stationary      bool             `json:"stationary"`
	StationaryCount int              `json:"stationary_count"`
	TotalDistance   float64          `json:"total_distance"`
	SampleCount     int              `json:"sample_count"`
	RejectedCount   int              `json:"rejected_count"`
	Timestamp       *float64         `json:"timestamp,omitempty"`
}

// Calibration is the current bias and gravity estimate, sensor frame.
type Calibration struct {
	AccelBias r3.Vec `json:"accel_bias"`
	GyroBias  r3.Vec `json:"gyro_bias"`
	Gravity   r3.Vec `json:"gravity"`
}

// Estimator is a pedestrian dead-reckoning filter. It is not safe for
// concurrent use; hosts serialize access.
type Estimator struct {
	cfg Config

	pre      preprocessor
	bias     biasEstimator
	detector classifier
	orient   *orientation.Integrator
	move     motion
	trail    *ring[TrailPoint]

	lastTimestamp float64
	hasTimestamp  bool
	samples       int
	rejected      int
}

// New creates an estimator starting at origin with the given heading (rad).
func New(cfg Config, origin r2.Vec, heading float64) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("deadreckoning config: %w", err)
	}
	e := &Estimator{
		cfg:      cfg,
		pre:      newPreprocessor(cfg),
		bias:     newBiasEstimator(),
		detector: newClassifier(cfg.WindowSize()),
		orient:   orientation.NewIntegrator(heading),
		move:     newMotion(origin),
		trail:    newRing[TrailPoint](cfg.TrailCapacity),
	}
	return e, nil
}

// Config returns the tuning the estimator was built with.
func (e *Estimator) Config() Config { return e.cfg }

// Update consumes one sample and returns the resulting state. A sample whose
// dt is non-positive or above MaxDt is not integrated; its timestamp still
// becomes the reference for the next sample. A sample with a non-finite
// timestamp or sensor value is rejected without touching any state.
func (e *Estimator) Update(s imu.Sample) Snapshot {
	if !s.Finite() {
		e.rejected++
		return e.State()
	}

	first := !e.hasTimestamp
	var dt float64
	if !first {
		dt = s.Timestamp - e.lastTimestamp
		if !(dt > 0 && dt <= e.cfg.MaxDt) {
			e.lastTimestamp = s.Timestamp
			e.rejected++
			return e.State()
		}
	}
	e.lastTimestamp = s.Timestamp
	e.hasTimestamp = true
	e.samples++

	f := e.pre.Process(s, e.bias.accelBias, e.bias.gyroBias)
	linear := r3.Sub(f.Accel, e.bias.gravity)
	gyroRate := r3.Norm(f.Gyro)

	stationary := e.detector.Classify(motionInputs{
		accel:   r3.Norm(f.Accel),
		gyro:    gyroRate,
		gravity: e.bias.gravity,
		user:    r3.Norm(linear),
	}, e.cfg)
	if stationary {
		e.bias.adaptGyroBias(s.Gyro, e.cfg.GyroBiasAlpha)
	}
	e.bias.adaptGravity(f.Accel, gyroRate, e.cfg)

	// The first sample only primes the filters: there is no dt yet.
	if first {
		return e.State()
	}

	e.orient.Integrate(f.Gyro, dt)
	if f.Mag != nil {
		e.orient.FuseMag(*f.Mag, e.bias.gravity, stationary, e.cfg.MagBlend)
	}

	e.move.Step(linear, e.orient.Heading, stationary, s.Timestamp, dt, e.cfg)

	e.trail.Push(TrailPoint{
		X:         e.move.position.X,
		Y:         e.move.position.Y,
		Heading:   e.orient.Heading,
		Speed:     r2.Norm(e.move.velocity),
		Timestamp: s.Timestamp,
	})
	return e.State()
}

// Calibrate sets accelerometer and gyro bias from samples collected while
// the device lay still and level.
func (e *Estimator) Calibrate(accel, gyro []r3.Vec) {
	e.bias.calibrate(accel, gyro)
}

// Calibration returns the current bias and gravity estimates.
func (e *Estimator) Calibration() Calibration {
	return Calibration{
		AccelBias: e.bias.accelBias,
		GyroBias:  e.bias.gyroBias,
		Gravity:   e.bias.gravity,
	}
}

// Reset reinitializes all integrated state for a new session at origin.
// Biases and the gravity estimate survive unless clearCalibration is set.
func (e *Estimator) Reset(origin r2.Vec, heading float64, clearCalibration bool) {
	e.pre.Clear()
	e.detector.Clear()
	e.orient.Reset(heading)
	e.move.Reset(origin)
	e.trail.Clear()
	e.hasTimestamp = false
	e.lastTimestamp = 0
	e.samples = 0
	e.rejected = 0
	if clearCalibration {
		e.bias.clear()
	}
}

// State returns the current snapshot.
func (e *Estimator) State() Snapshot {
	snap := Snapshot{
		Position:        e.move.position,
		Velocity:        e.move.velocity,
		Speed:           r2.Norm(e.move.velocity),
		Heading:         e.orient.Heading,
		HeadingDegrees:  orientation.Degrees(e.orient.Heading),
		AngularVelocity: e.orient.AngularVelocity,
		Orientation:     e.orient.Orientation,
		Pose:            orientation.PoseFromQuat(e.orient.Orientation),
		Stationary:      e.detector.stationary,
		StationaryCount: e.detector.Count(),
		TotalDistance:   e.move.distance,
		SampleCount:     e.samples,
		RejectedCount:   e.rejected,
	}
	if e.hasTimestamp {
		ts := e.lastTimestamp
		snap.Timestamp = &ts
	}
	return snap
}

// Trail returns the recorded positions oldest first, downsampled to at most
// limit points. limit <= 0 returns everything.
func (e *Estimator) Trail(limit int) []TrailPoint {
	return Downsample(e.trail.Values(), limit)
}
