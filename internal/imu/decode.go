// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoSensorFields is returned when a payload carries none of the known
// accelerometer or gyroscope keys.
var ErrNoSensorFields = errors.New("imu: payload has no accel or gyro fields")

// ErrNonFinite is returned when a sensor value or the timestamp is NaN or
// infinite, as "NaN" or "Inf" strings decode to.
var ErrNonFinite = errors.New("imu: payload has a non-finite value")

// Phone logging apps disagree on key names; the first key found wins.
var (
	accelKeys = [3][]string{
		{"accel_x", "accelX", "accelerationX", "acceleration_x", "ax", "a_x"},
		{"accel_y", "accelY", "accelerationY", "acceleration_y", "ay", "a_y"},
		{"accel_z", "accelZ", "accelerationZ", "acceleration_z", "az", "a_z"},
	}
	gyroKeys = [3][]string{
		{"gyro_x", "gyroX", "rotationRateX", "rotation_rate_x", "gx", "g_x", "omega_x"},
		{"gyro_y", "gyroY", "rotationRateY", "rotation_rate_y", "gy", "g_y", "omega_y"},
		{"gyro_z", "gyroZ", "rotationRateZ", "rotation_rate_z", "gz", "g_z", "omega_z"},
	}
	magKeys = [3][]string{
		{"mag_x", "magX", "magneticFieldX", "magnetic_field_x", "mx", "m_x", "magnetometerX"},
		{"mag_y", "magY", "magneticFieldY", "magnetic_field_y", "my", "m_y", "magnetometerY"},
		{"mag_z", "magZ", "magneticFieldZ", "magnetic_field_z", "mz", "m_z", "magnetometerZ"},
	}
	timestampKeys = []string{"timestamp", "time"}
)

// msThreshold separates epoch milliseconds from epoch seconds.
const msThreshold = 1e11

// Decoder turns vendor JSON payloads into SI samples.
type Decoder struct {
	// Now stamps payloads that carry no timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Decode parses one JSON object. Values may be numbers or numeric strings.
// Unparseable values count as zero; NaN or infinite values fail with
// ErrNonFinite. Timestamps above 1e11 are taken as milliseconds.
func (d Decoder) Decode(payload []byte) (Sample, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Sample{}, fmt.Errorf("imu: decode payload: %w", err)
	}

	accel, accelFound := lookupVec(fields, accelKeys)
	gyro, gyroFound := lookupVec(fields, gyroKeys)
	if !accelFound && !gyroFound {
		return Sample{}, ErrNoSensorFields
	}

	s := Sample{Accel: accel, Gyro: gyro}
	if mag, ok := lookupVec(fields, magKeys); ok {
		s.Mag = &mag
	}

	if ts, ok := lookup(fields, timestampKeys); ok {
		s.Timestamp = NormalizeTimestamp(ts)
	} else {
		now := time.Now
		if d.Now != nil {
			now = d.Now
		}
		s.Timestamp = float64(now().UnixNano()) / 1e9
	}
	if !s.Finite() {
		return Sample{}, ErrNonFinite
	}
	return s, nil
}

// NormalizeTimestamp returns seconds for a timestamp in seconds or ms.
func NormalizeTimestamp(ts float64) float64 {
	if ts > msThreshold {
		return ts / 1000.0
	}
	return ts
}

func lookupVec(fields map[string]any, keys [3][]string) (r3.Vec, bool) {
	x, okX := lookup(fields, keys[0])
	y, okY := lookup(fields, keys[1])
	z, okZ := lookup(fields, keys[2])
	return r3.Vec{X: x, Y: y, Z: z}, okX || okY || okZ
}

func lookup(fields map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		return toFloat(v), true
	}
	return 0, false
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}
