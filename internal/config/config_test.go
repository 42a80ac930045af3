// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader("MQTT_BROKER=tcp://localhost:1883\n"))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, 8080, cfg.WebServerPort)
	assert.Equal(t, 65000, cfg.UDPPort)
	assert.Equal(t, deadreckoning.DefaultConfig(), cfg.DeadReckoning)
	assert.Empty(t, cfg.DBPath)
}

func TestParseFile(t *testing.T) {
	content := `
# navigation server
MQTT_BROKER = tcp://broker:1883
TOPIC_IMU=lab/imu
WEB_SERVER_PORT=9090
UDP_PORT=0
DB_PATH=/tmp/nav.db
PERSIST_EVERY=5
IMU_ACCEL_RANGE=1
IMU_GYRO_RANGE=3

DR_SAMPLE_RATE_HZ=50
DR_MAX_SPEED=2.5
DR_STATIONARY_SAMPLES=2
DR_SNAP_TO_ORIGIN=true
DR_TRAIL_CAPACITY=500
`
	path := filepath.Join(t.TempDir(), "inertial_nav.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, "lab/imu", cfg.TopicIMU)
	assert.Equal(t, 9090, cfg.WebServerPort)
	assert.Zero(t, cfg.UDPPort)
	assert.Equal(t, "/tmp/nav.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.PersistEvery)

	assert.Equal(t, 50.0, cfg.DeadReckoning.SampleRateHz)
	assert.Equal(t, 2.5, cfg.DeadReckoning.MaxSpeed)
	assert.Equal(t, 2, cfg.DeadReckoning.StationarySamples)
	assert.True(t, cfg.DeadReckoning.SnapToOrigin)
	assert.Equal(t, 500, cfg.DeadReckoning.TrailCapacity)

	sc := cfg.Scale()
	assert.Equal(t, 4.0, sc.AccelRangeG)
	assert.Equal(t, 2000.0, sc.GyroRangeDPS)
	assert.NoError(t, sc.Validate())
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"missing broker", "WEB_SERVER_PORT=8080", "MQTT_BROKER is required"},
		{"malformed line", "MQTT_BROKER", "invalid config line 1"},
		{"unknown key", "MQTT_BROKER=x\nFOO=1", `unknown config key: "FOO"`},
		{"unknown tuning key", "MQTT_BROKER=x\nDR_FOO=1", `unknown config key: "DR_FOO"`},
		{"bad int", "MQTT_BROKER=x\nUDP_PORT=abc", "invalid UDP_PORT"},
		{"bad float", "MQTT_BROKER=x\nDR_DEADZONE=wide", "invalid DR_DEADZONE"},
		{"accel range", "MQTT_BROKER=x\nIMU_ACCEL_RANGE=4", "IMU_ACCEL_RANGE must be 0-3"},
		{"port range", "MQTT_BROKER=x\nWEB_SERVER_PORT=70000", "WEB_SERVER_PORT must be"},
		{"tuning validation", "MQTT_BROKER=x\nDR_MAX_SPEED=-1", "DR_* tuning"},
		{"persist every", "MQTT_BROKER=x\nPERSIST_EVERY=0", "PERSIST_EVERY"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(c.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
