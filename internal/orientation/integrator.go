// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Integrator tracks the device orientation quaternion and a separately
// integrated planar heading.
//
// The quaternion integrates all three gyro axes. Heading integrates gyro z
// only and is the quantity the magnetometer corrects.
type Integrator struct {
	Orientation     Quat
	Heading         float64 // radians, (-π, π]
	AngularVelocity float64 // last gyro z used, rad/s
}

// NewIntegrator returns an integrator facing heading radians.
func NewIntegrator(heading float64) *Integrator {
	in := &Integrator{}
	in.Reset(heading)
	return in
}

// Reset sets the orientation to a pure yaw of heading and clears the rate.
func (in *Integrator) Reset(heading float64) {
	in.Heading = WrapAngle(heading)
	in.Orientation = FromYaw(in.Heading)
	in.AngularVelocity = 0
}

// Integrate applies one gyro step of dt seconds.
func (in *Integrator) Integrate(gyro r3.Vec, dt float64) {
	if dt <= 0 {
		return
	}
	dq := FromRotationVector(r3.Scale(dt, gyro)).Normalize()
	in.Orientation = in.Orientation.Mul(dq).Normalize()

	in.AngularVelocity = gyro.Z
	in.Heading = WrapAngle(in.Heading + gyro.Z*dt)
}

// FuseMag corrects heading from a magnetometer reading. When stationary the
// heading is replaced outright; while moving it moves blend of the way toward
// the magnetic heading along the shortest arc. The orientation's yaw follows
// the corrected heading, roll and pitch are kept. It reports false when the
// reading has no usable horizontal component.
func (in *Integrator) FuseMag(mag, gravity r3.Vec, stationary bool, blend float64) bool {
	mh, ok := MagHeading(mag, gravity)
	if !ok {
		return false
	}
	if stationary {
		in.Heading = mh
	} else {
		in.Heading = WrapAngle(in.Heading + blend*WrapAngle(mh-in.Heading))
	}
	in.Orientation = in.Orientation.WithYaw(in.Heading)
	return true
}

// MagHeading returns atan2(h_y, h_x) where h is mag projected onto the plane
// normal to gravity. For a level device this is atan2(mag_y, mag_x).
func MagHeading(mag, gravity r3.Vec) (float64, bool) {
	h := mag
	if g := r3.Norm(gravity); g > normEpsilon {
		up := r3.Scale(1/g, gravity)
		h = r3.Sub(mag, r3.Scale(r3.Dot(mag, up), up))
	}
	if math.Hypot(h.X, h.Y) < normEpsilon {
		return 0, false
	}
	return math.Atan2(h.Y, h.X), true
}
