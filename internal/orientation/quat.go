// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// normEpsilon is the smallest norm treated as a usable rotation or vector.
const normEpsilon = 1e-12

// Quat is an orientation quaternion in (w, x, y, z) order.
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity is the zero rotation.
func Identity() Quat {
	return Quat{W: 1}
}

func (q Quat) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quat {
	return Quat{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

// Mul returns the Hamilton product q*p.
func (q Quat) Mul(p Quat) Quat {
	return fromNumber(quat.Mul(q.number(), p.number()))
}

// Conj returns the conjugate of q.
func (q Quat) Conj() Quat {
	return fromNumber(quat.Conj(q.number()))
}

// Norm returns the Euclidean norm of q.
func (q Quat) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalize returns q scaled to unit norm. A degenerate quaternion yields the
// identity rather than NaN.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n < normEpsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity()
	}
	return fromNumber(quat.Scale(1/n, q.number()))
}

// Rotate rotates v by q (q v q*). q must be unit norm.
func (q Quat) Rotate(v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	n := q.number()
	r := quat.Mul(quat.Mul(n, p), quat.Conj(n))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// FromRotationVector builds the rotation of angle |rv| about rv/|rv|.
// A near-zero vector is the identity.
func FromRotationVector(rv r3.Vec) Quat {
	angle := r3.Norm(rv)
	if angle < normEpsilon {
		return Identity()
	}
	s := math.Sin(angle/2) / angle
	return Quat{
		W: math.Cos(angle / 2),
		X: rv.X * s,
		Y: rv.Y * s,
		Z: rv.Z * s,
	}
}

// FromYaw returns a rotation of yaw radians about the z axis.
func FromYaw(yaw float64) Quat {
	return Quat{W: math.Cos(yaw / 2), Z: math.Sin(yaw / 2)}
}

// WithYaw rotates q about the world z axis so that its ZYX yaw becomes yaw.
// Roll and pitch are unchanged.
func (q Quat) WithYaw(yaw float64) Quat {
	_, _, current := q.Euler()
	return FromYaw(WrapAngle(yaw - current)).Mul(q).Normalize()
}

// Euler returns ZYX roll, pitch and yaw in radians.
func (q Quat) Euler() (roll, pitch, yaw float64) {
	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll = math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw = math.Atan2(sinyCosp, cosyCosp)
	return roll, pitch, yaw
}
