// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package deadreckoning estimates 2-D pedestrian position from a stream of
// accelerometer, gyroscope and optional magnetometer samples.
//
// Each Update runs, in order: bias removal and low-pass smoothing, gravity
// subtraction, stationary classification over a sliding window, gyro bias and
// gravity adaptation, quaternion and heading integration with magnetometer
// correction, and velocity/position integration with zero-velocity updates.
//
// The package performs no I/O and holds no locks.
package deadreckoning
