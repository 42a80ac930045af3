// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package deadreckoning

import (
	"fmt"
	"math"
)

// StandardGravity is the conventional gravity magnitude in m/s².
const StandardGravity = 9.80665

// Config holds every tuning value of the estimator. All thresholds are named
// fields because they need empirical retuning per device and carry style.
type Config struct {
	// Expected input rate; sizes the classifier window (rate × 0.5 s).
	SampleRateHz float64

	// Preprocessor low-pass coefficients (weight of the new sample).
	AccelAlpha float64
	GyroAlpha  float64
	MagAlpha   float64

	// Motion classifier.
	StationaryAccelStd         float64 // m/s², std of |accel| over the window
	StationaryGyroStd          float64 // rad/s, std of |gyro| over the window
	StationaryGyroRate         float64 // rad/s, |gyro| ceiling
	PeakRangeThreshold         float64 // m/s², peak-to-peak of gravity and user accel buffers
	StepThreshold              float64 // m/s², |user accel| ceiling
	HorizontalGravityThreshold float64 // m/s², |g.x| and |g.y| ceiling; 0 disables
	StationarySamples          int     // consecutive candidates before stationary

	// Gravity and bias estimation.
	GyroBiasAlpha    float64 // retention of the old bias per stationary sample
	GravityAlpha     float64 // weight of the new accel sample in the gravity estimate
	GravityTolerance float64 // m/s², allowed ||accel| - g| for gravity adaptation

	// Magnetometer blend while moving.
	MagBlend float64

	// Velocity/position integration.
	HighPassAlpha float64 // 0 disables the high-pass stage
	Deadzone      float64 // m/s²
	DampingRate   float64 // 1/s, continuous decay below MoveThreshold
	MoveThreshold float64 // m/s², movement intensity
	MaxSpeed      float64 // m/s
	MinSpeed      float64 // m/s, snap-to-zero cutoff
	MotionTimeout float64 // s without movement before velocity is forced to zero
	MaxDt         float64 // s, larger gaps are rejected

	// History.
	TrailCapacity int

	// Pin position to the origin when stationary within SnapRadius of it.
	SnapToOrigin bool
	SnapRadius   float64 // m
}

// DefaultConfig returns the tuning used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		SampleRateHz: 20,

		AccelAlpha: 0.3,
		GyroAlpha:  0.3,
		MagAlpha:   0.2,

		StationaryAccelStd:         0.08,
		StationaryGyroStd:          0.03,
		StationaryGyroRate:         0.05,
		PeakRangeThreshold:         0.3,
		StepThreshold:              0.25,
		HorizontalGravityThreshold: 3.0,
		StationarySamples:          3,

		GyroBiasAlpha:    0.99,
		GravityAlpha:     0.02,
		GravityTolerance: 0.3,

		MagBlend: 0.25,

		HighPassAlpha: 0,
		Deadzone:      0.05,
		DampingRate:   1.5,
		MoveThreshold: 0.15,
		MaxSpeed:      3.5,
		MinSpeed:      0.02,
		MotionTimeout: 1.0,
		MaxDt:         1.0,

		TrailCapacity: 1000,

		SnapToOrigin: false,
		SnapRadius:   0.3,
	}
}

// WindowSize is the classifier window length in samples.
func (c Config) WindowSize() int {
	n := int(math.Round(c.SampleRateHz * 0.5))
	if n < 3 {
		n = 3
	}
	return n
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.SampleRateHz <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", c.SampleRateHz)
	}
	for _, a := range []struct {
		name string
		v    float64
	}{
		{"accel alpha", c.AccelAlpha},
		{"gyro alpha", c.GyroAlpha},
		{"mag alpha", c.MagAlpha},
		{"gravity alpha", c.GravityAlpha},
		{"mag blend", c.MagBlend},
	} {
		if a.v <= 0 || a.v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %g", a.name, a.v)
		}
	}
	if c.GyroBiasAlpha < 0 || c.GyroBiasAlpha > 1 {
		return fmt.Errorf("gyro bias alpha must be in [0, 1], got %g", c.GyroBiasAlpha)
	}
	if c.HighPassAlpha < 0 || c.HighPassAlpha >= 1 {
		return fmt.Errorf("high-pass alpha must be in [0, 1), got %g", c.HighPassAlpha)
	}
	for _, nn := range []struct {
		name string
		v    float64
	}{
		{"stationary accel std", c.StationaryAccelStd},
		{"stationary gyro std", c.StationaryGyroStd},
		{"stationary gyro rate", c.StationaryGyroRate},
		{"peak range threshold", c.PeakRangeThreshold},
		{"step threshold", c.StepThreshold},
		{"horizontal gravity threshold", c.HorizontalGravityThreshold},
		{"gravity tolerance", c.GravityTolerance},
		{"deadzone", c.Deadzone},
		{"damping rate", c.DampingRate},
		{"move threshold", c.MoveThreshold},
		{"min speed", c.MinSpeed},
		{"snap radius", c.SnapRadius},
	} {
		if nn.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", nn.name, nn.v)
		}
	}
	if c.StationarySamples < 1 {
		return fmt.Errorf("stationary samples must be at least 1, got %d", c.StationarySamples)
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("max speed must be positive, got %g", c.MaxSpeed)
	}
	if c.MinSpeed >= c.MaxSpeed {
		return fmt.Errorf("min speed %g must be below max speed %g", c.MinSpeed, c.MaxSpeed)
	}
	if c.MotionTimeout <= 0 {
		return fmt.Errorf("motion timeout must be positive, got %g", c.MotionTimeout)
	}
	if c.MaxDt <= 0 {
		return fmt.Errorf("max dt must be positive, got %g", c.MaxDt)
	}
	if c.TrailCapacity < 1 {
		return fmt.Errorf("trail capacity must be at least 1, got %d", c.TrailCapacity)
	}
	return nil
}
