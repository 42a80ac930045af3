// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is the canonical representation of orientation for the app.
// Angles are in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is left at 0 because gravity carries no heading information.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(a r3.Vec) Pose {
	rollRad := math.Atan2(a.Y, a.Z)
	pitchRad := math.Atan2(-a.X, math.Sqrt(a.Y*a.Y+a.Z*a.Z))

	return Pose{
		Roll:  Degrees(rollRad),
		Pitch: Degrees(pitchRad),
	}
}

// PoseFromQuat converts a unit quaternion to ZYX Euler angles in degrees.
func PoseFromQuat(q Quat) Pose {
	roll, pitch, yaw := q.Euler()
	return Pose{
		Roll:  Degrees(roll),
		Pitch: Degrees(pitch),
		Yaw:   Degrees(yaw),
	}
}

// WrapAngle wraps an angle in radians to (-π, π] using atan2, which avoids the
// discontinuities of a modulo wrap.
func WrapAngle(rad float64) float64 {
	if rad > -math.Pi && rad <= math.Pi {
		return rad
	}
	w := math.Atan2(math.Sin(rad), math.Cos(rad))
	if w == -math.Pi {
		return math.Pi
	}
	return w
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
