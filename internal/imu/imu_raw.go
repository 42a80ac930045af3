// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// IMURaw represents a single raw IMU+mag sample in device counts, as
// published by the producer.
type IMURaw struct {
	Source string `json:"source"` // device label, e.g. "left" or "mock"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Mx int16 `json:"mx"` // magnetometer
	My int16 `json:"my"`
	Mz int16 `json:"mz"`

	TimestampMs int64 `json:"ts_ms"`
}

type IMURawSource interface {
	NextRaw() (IMURaw, error)
}

// MagMicroTeslaPerLSB is the AK8963 16-bit output resolution.
const MagMicroTeslaPerLSB = 0.15

const standardGravity = 9.80665

// Scale converts device counts to SI units for a configured full-scale range.
type Scale struct {
	AccelRangeG   float64 // ±g full scale, e.g. 2, 4, 8, 16
	GyroRangeDPS  float64 // ±deg/s full scale, e.g. 250, 500, 1000, 2000
	MagPerLSB     float64 // µT per count; 0 means MagMicroTeslaPerLSB
	IgnoreZeroMag bool    // treat an all-zero mag triple as absent
}

// DefaultScale matches the MPU9250 power-on ranges.
func DefaultScale() Scale {
	return Scale{AccelRangeG: 2, GyroRangeDPS: 250, MagPerLSB: MagMicroTeslaPerLSB, IgnoreZeroMag: true}
}

func (s Scale) Validate() error {
	switch s.AccelRangeG {
	case 2, 4, 8, 16:
	default:
		return fmt.Errorf("accel range must be 2, 4, 8 or 16 g, got %g", s.AccelRangeG)
	}
	switch s.GyroRangeDPS {
	case 250, 500, 1000, 2000:
	default:
		return fmt.Errorf("gyro range must be 250, 500, 1000 or 2000 dps, got %g", s.GyroRangeDPS)
	}
	return nil
}

// ToSample converts a raw reading to an SI sample.
func (s Scale) ToSample(raw IMURaw) Sample {
	accelPerLSB := s.AccelRangeG * standardGravity / 32768.0
	gyroPerLSB := s.GyroRangeDPS * math.Pi / 180.0 / 32768.0

	out := Sample{
		Accel: r3.Vec{
			X: float64(raw.Ax) * accelPerLSB,
			Y: float64(raw.Ay) * accelPerLSB,
			Z: float64(raw.Az) * accelPerLSB,
		},
		Gyro: r3.Vec{
			X: float64(raw.Gx) * gyroPerLSB,
			Y: float64(raw.Gy) * gyroPerLSB,
			Z: float64(raw.Gz) * gyroPerLSB,
		},
		Timestamp: float64(raw.TimestampMs) / 1000.0,
	}

	if s.IgnoreZeroMag && raw.Mx == 0 && raw.My == 0 && raw.Mz == 0 {
		return out
	}
	magPerLSB := s.MagPerLSB
	if magPerLSB == 0 {
		magPerLSB = MagMicroTeslaPerLSB
	}
	out.Mag = &r3.Vec{
		X: float64(raw.Mx) * magPerLSB,
		Y: float64(raw.My) * magPerLSB,
		Z: float64(raw.Mz) * magPerLSB,
	}
	return out
}

// ToRaw is the inverse of ToSample, saturating at the int16 limits.
func (s Scale) ToRaw(sample Sample, source string) IMURaw {
	accelLSB := 32768.0 / (s.AccelRangeG * standardGravity)
	gyroLSB := 32768.0 / (s.GyroRangeDPS * math.Pi / 180.0)

	raw := IMURaw{
		Source:      source,
		Ax:          toCount(sample.Accel.X * accelLSB),
		Ay:          toCount(sample.Accel.Y * accelLSB),
		Az:          toCount(sample.Accel.Z * accelLSB),
		Gx:          toCount(sample.Gyro.X * gyroLSB),
		Gy:          toCount(sample.Gyro.Y * gyroLSB),
		Gz:          toCount(sample.Gyro.Z * gyroLSB),
		TimestampMs: int64(math.Round(sample.Timestamp * 1000)),
	}
	if sample.Mag != nil {
		magPerLSB := s.MagPerLSB
		if magPerLSB == 0 {
			magPerLSB = MagMicroTeslaPerLSB
		}
		raw.Mx = toCount(sample.Mag.X / magPerLSB)
		raw.My = toCount(sample.Mag.Y / magPerLSB)
		raw.Mz = toCount(sample.Mag.Z / magPerLSB)
	}
	return raw
}

func toCount(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
