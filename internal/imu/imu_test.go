// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestDecodeKeyAliases(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"snake", `{"accel_x":1,"accel_y":2,"accel_z":3,"gyro_x":0.1,"gyro_y":0.2,"gyro_z":0.3,"timestamp":12.5}`},
		{"camel", `{"accelX":1,"accelY":2,"accelZ":3,"gyroX":0.1,"gyroY":0.2,"gyroZ":0.3,"time":12.5}`},
		{"ios", `{"accelerationX":1,"accelerationY":2,"accelerationZ":3,"rotationRateX":0.1,"rotationRateY":0.2,"rotationRateZ":0.3,"timestamp":1700000012500}`},
		{"short strings", `{"ax":"1","ay":"2","az":"3","gx":"0.1","gy":"0.2","gz":"0.3","timestamp":"12.5"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := Decoder{}.Decode([]byte(c.payload))
			require.NoError(t, err)
			assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, s.Accel)
			assert.InDelta(t, 0.3, s.Gyro.Z, 1e-12)
			assert.Nil(t, s.Mag)
			if c.name == "ios" {
				assert.InDelta(t, 1700000012.5, s.Timestamp, 1e-6)
			}
		})
	}
}

func TestDecodeMillisecondTimestamp(t *testing.T) {
	s, err := Decoder{}.Decode([]byte(`{"ax":0,"timestamp":1700000000123}`))
	require.NoError(t, err)
	assert.InDelta(t, 1700000000.123, s.Timestamp, 1e-6)
}

func TestDecodeMagnetometer(t *testing.T) {
	s, err := Decoder{}.Decode([]byte(`{"ax":0,"ay":0,"az":9.8,"magneticFieldX":20,"magneticFieldY":-5,"magneticFieldZ":-40,"timestamp":1}`))
	require.NoError(t, err)
	require.NotNil(t, s.Mag)
	assert.Equal(t, r3.Vec{X: 20, Y: -5, Z: -40}, *s.Mag)
}

func TestDecodeMissingTimestampUsesClock(t *testing.T) {
	now := time.Unix(1000, 500_000_000)
	s, err := Decoder{Now: func() time.Time { return now }}.Decode([]byte(`{"gyro_z":1}`))
	require.NoError(t, err)
	assert.InDelta(t, 1000.5, s.Timestamp, 1e-9)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decoder{}.Decode([]byte(`{not json`))
	require.Error(t, err)

	_, err = Decoder{}.Decode([]byte(`{"device_id":"phone","timestamp":1}`))
	require.ErrorIs(t, err, ErrNoSensorFields)
}

func TestDecodeRejectsNonFinite(t *testing.T) {
	for _, payload := range []string{
		`{"accel_x":"NaN","accel_y":0,"accel_z":9.81,"timestamp":1}`,
		`{"ax":0,"az":9.81,"gz":"-Inf","timestamp":1}`,
		`{"ax":0,"az":9.81,"mx":"nan","my":1,"mz":0,"timestamp":1}`,
		`{"ax":0,"az":9.81,"timestamp":"NaN"}`,
		`{"ax":0,"az":9.81,"time":"+Inf"}`,
	} {
		_, err := Decoder{}.Decode([]byte(payload))
		assert.ErrorIs(t, err, ErrNonFinite, payload)
	}
}

func TestDecodeBadValueIsZero(t *testing.T) {
	s, err := Decoder{}.Decode([]byte(`{"ax":"abc","ay":null,"az":9.8,"timestamp":1}`))
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{Z: 9.8}, s.Accel)
}

func TestScaleToSample(t *testing.T) {
	sc := DefaultScale()
	require.NoError(t, sc.Validate())

	s := sc.ToSample(IMURaw{Az: 16384, Gz: 16384, TimestampMs: 2500})
	assert.InDelta(t, standardGravity, s.Accel.Z, 1e-9)
	assert.InDelta(t, 125*math.Pi/180, s.Gyro.Z, 1e-9)
	assert.InDelta(t, 2.5, s.Timestamp, 1e-12)
	assert.Nil(t, s.Mag, "zero mag is treated as absent")

	s = sc.ToSample(IMURaw{Mx: 100, My: -20, Mz: 0})
	require.NotNil(t, s.Mag)
	assert.InDelta(t, 15, s.Mag.X, 1e-9)
	assert.InDelta(t, -3, s.Mag.Y, 1e-9)
}

func TestScaleRoundTrip(t *testing.T) {
	sc := Scale{AccelRangeG: 4, GyroRangeDPS: 500}
	in := Sample{
		Accel:     r3.Vec{X: 1.2, Y: -0.4, Z: 9.7},
		Gyro:      r3.Vec{Z: 0.8},
		Mag:       &r3.Vec{X: 21, Y: -4.5, Z: -39},
		Timestamp: 3.25,
	}
	raw := sc.ToRaw(in, "mock")
	assert.Equal(t, "mock", raw.Source)

	out := sc.ToSample(raw)
	assert.InDelta(t, in.Accel.X, out.Accel.X, 4*standardGravity/32768)
	assert.InDelta(t, in.Gyro.Z, out.Gyro.Z, 500*math.Pi/180/32768)
	require.NotNil(t, out.Mag)
	assert.InDelta(t, in.Mag.Z, out.Mag.Z, MagMicroTeslaPerLSB)
	assert.InDelta(t, in.Timestamp, out.Timestamp, 1e-12)
}

func TestScaleSaturates(t *testing.T) {
	raw := DefaultScale().ToRaw(Sample{Accel: r3.Vec{X: 1000, Y: -1000}}, "")
	assert.Equal(t, int16(math.MaxInt16), raw.Ax)
	assert.Equal(t, int16(math.MinInt16), raw.Ay)
}

func TestScaleValidate(t *testing.T) {
	assert.Error(t, Scale{AccelRangeG: 3, GyroRangeDPS: 250}.Validate())
	assert.Error(t, Scale{AccelRangeG: 2, GyroRangeDPS: 300}.Validate())
}

func TestRawJSONShape(t *testing.T) {
	b, err := json.Marshal(IMURaw{Source: "left", Ax: 1, TimestampMs: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"left","ax":1,"ay":0,"az":0,"gx":0,"gy":0,"gz":0,"mx":0,"my":0,"mz":0,"ts_ms":5}`, string(b))
}

func TestWalkSource(t *testing.T) {
	w := NewWalkSource(10, 100, 4, true)

	var turned float64
	prev := 0.0
	for i := 0; i < 60; i++ {
		s, err := w.Next()
		require.NoError(t, err)
		assert.InDelta(t, 100+float64(i)*0.1, s.Timestamp, 1e-9)
		require.NotNil(t, s.Mag)
		assert.Greater(t, s.Accel.Z, 9.0)
		if i > 0 {
			turned += s.Gyro.Z * (s.Timestamp - prev)
		}
		prev = s.Timestamp
	}
	// One 6 s cycle: 4 s walk, 1 s turn, 1 s pause.
	assert.InDelta(t, math.Pi/2, turned, 0.2)

	raw, err := ScaledSource{Src: NewWalkSource(10, 0, 4, false), Scale: DefaultScale(), Source: "mock"}.NextRaw()
	require.NoError(t, err)
	assert.Equal(t, "mock", raw.Source)
	assert.InDelta(t, 16384, float64(raw.Az), 2)
}
