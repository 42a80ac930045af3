// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package deadreckoning

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/inertial_nav/internal/imu"
)

// lowPass is an exponential smoother: out = α·new + (1-α)·out.
type lowPass struct {
	alpha  float64
	value  r3.Vec
	primed bool
}

func (f *lowPass) Apply(v r3.Vec) r3.Vec {
	if !f.primed {
		f.value = v
		f.primed = true
		return v
	}
	f.value = r3.Add(r3.Scale(f.alpha, v), r3.Scale(1-f.alpha, f.value))
	return f.value
}

func (f *lowPass) Clear() {
	f.value = r3.Vec{}
	f.primed = false
}

// filtered is the preprocessor output for one sample.
type filtered struct {
	Accel r3.Vec  // bias-corrected, smoothed, still includes gravity
	Gyro  r3.Vec  // bias-corrected, smoothed
	Mag   *r3.Vec // smoothed; nil when the sample had none
}

type preprocessor struct {
	accel lowPass
	gyro  lowPass
	mag   lowPass
}

func newPreprocessor(cfg Config) preprocessor {
	return preprocessor{
		accel: lowPass{alpha: cfg.AccelAlpha},
		gyro:  lowPass{alpha: cfg.GyroAlpha},
		mag:   lowPass{alpha: cfg.MagAlpha},
	}
}

// Process removes bias and smooths each channel.
func (p *preprocessor) Process(s imu.Sample, accelBias, gyroBias r3.Vec) filtered {
	out := filtered{
		Accel: p.accel.Apply(r3.Sub(s.Accel, accelBias)),
		Gyro:  p.gyro.Apply(r3.Sub(s.Gyro, gyroBias)),
	}
	if s.Mag != nil {
		m := p.mag.Apply(*s.Mag)
		out.Mag = &m
	}
	return out
}

func (p *preprocessor) Clear() {
	p.accel.Clear()
	p.gyro.Clear()
	p.mag.Clear()
}
