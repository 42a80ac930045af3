// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/imu"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDNav      string
	MQTTClientIDProducer string
	MQTTClientIDGPS      string
	MQTTClientIDConsole  string

	// Topics
	TopicIMU      string // raw IMU counts in
	TopicGPS      string // GPS fixes in (session anchor)
	TopicNavState string // navigation snapshots out
	TopicPose     string // roll/pitch/yaw out

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Timing
	IMUSampleInterval  int // milliseconds, mock producer tick
	ConsoleLogInterval int // milliseconds
	StateLogEvery      int // log a navigation line every N accepted samples

	// Ingestion
	WebServerPort int
	UDPPort       int // 0 disables the UDP listener

	// Storage
	DBPath       string // empty keeps sessions in memory
	PersistEvery int    // store every Nth trail point

	// Dead-reckoning tuning
	DeadReckoning deadreckoning.Config
}

// Default returns the configuration used for keys that are not set.
func Default() *Config {
	return &Config{
		MQTTClientIDNav:      "inertial-nav",
		MQTTClientIDProducer: "inertial-nav-producer",
		MQTTClientIDGPS:      "inertial-nav-gps",
		MQTTClientIDConsole:  "inertial-nav-console",

		TopicIMU:      "inertial/imu/raw",
		TopicGPS:      "inertial/gps",
		TopicNavState: "inertial/nav/state",
		TopicPose:     "inertial/nav/pose",

		GPSBaudRate: 9600,

		IMUSampleInterval:  50,
		ConsoleLogInterval: 1000,
		StateLogEvery:      100,

		WebServerPort: 8080,
		UDPPort:       65000,

		PersistEvery: 1,

		DeadReckoning: deadreckoning.DefaultConfig(),
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with '#' are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	if strings.HasPrefix(key, "DR_") {
		return c.setTuning(key, value)
	}

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_NAV":
		c.MQTTClientIDNav = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_NAV_STATE":
		c.TopicNavState = value
	case "TOPIC_POSE":
		c.TopicPose = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval
	case "STATE_LOG_EVERY":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid STATE_LOG_EVERY %q: %w", value, err)
		}
		c.StateLogEvery = n

	// Ingestion
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "UDP_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid UDP_PORT %q: %w", value, err)
		}
		c.UDPPort = port

	// Storage
	case "DB_PATH":
		c.DBPath = value
	case "PERSIST_EVERY":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PERSIST_EVERY %q: %w", value, err)
		}
		c.PersistEvery = n

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// setTuning handles the DR_* keys that map onto deadreckoning.Config.
func (c *Config) setTuning(key, value string) error {
	dr := &c.DeadReckoning

	switch key {
	case "DR_STATIONARY_SAMPLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		dr.StationarySamples = n
		return nil
	case "DR_TRAIL_CAPACITY":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		dr.TrailCapacity = n
		return nil
	case "DR_SNAP_TO_ORIGIN":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		dr.SnapToOrigin = b
		return nil
	}

	floats := map[string]*float64{
		"DR_SAMPLE_RATE_HZ":               &dr.SampleRateHz,
		"DR_ACCEL_ALPHA":                  &dr.AccelAlpha,
		"DR_GYRO_ALPHA":                   &dr.GyroAlpha,
		"DR_MAG_ALPHA":                    &dr.MagAlpha,
		"DR_STATIONARY_ACCEL_STD":         &dr.StationaryAccelStd,
		"DR_STATIONARY_GYRO_STD":          &dr.StationaryGyroStd,
		"DR_STATIONARY_GYRO_RATE":         &dr.StationaryGyroRate,
		"DR_PEAK_RANGE_THRESHOLD":         &dr.PeakRangeThreshold,
		"DR_STEP_THRESHOLD":               &dr.StepThreshold,
		"DR_HORIZONTAL_GRAVITY_THRESHOLD": &dr.HorizontalGravityThreshold,
		"DR_GYRO_BIAS_ALPHA":              &dr.GyroBiasAlpha,
		"DR_GRAVITY_ALPHA":                &dr.GravityAlpha,
		"DR_GRAVITY_TOLERANCE":            &dr.GravityTolerance,
		"DR_MAG_BLEND":                    &dr.MagBlend,
		"DR_HIGH_PASS_ALPHA":              &dr.HighPassAlpha,
		"DR_DEADZONE":                     &dr.Deadzone,
		"DR_DAMPING_RATE":                 &dr.DampingRate,
		"DR_MOVE_THRESHOLD":               &dr.MoveThreshold,
		"DR_MAX_SPEED":                    &dr.MaxSpeed,
		"DR_MIN_SPEED":                    &dr.MinSpeed,
		"DR_MOTION_TIMEOUT":               &dr.MotionTimeout,
		"DR_MAX_DT":                       &dr.MaxDt,
		"DR_SNAP_RADIUS":                  &dr.SnapRadius,
	}
	dst, ok := floats[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	if c.UDPPort < 0 || c.UDPPort > 65535 {
		return fmt.Errorf("UDP_PORT must be 0-65535, got %d", c.UDPPort)
	}
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL must be positive")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive")
	}
	if c.PersistEvery < 1 {
		return fmt.Errorf("PERSIST_EVERY must be at least 1, got %d", c.PersistEvery)
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive")
	}
	if err := c.DeadReckoning.Validate(); err != nil {
		return fmt.Errorf("DR_* tuning: %w", err)
	}
	return nil
}

var (
	accelRangesG  = [4]float64{2, 4, 8, 16}
	gyroRangesDPS = [4]float64{250, 500, 1000, 2000}
)

// Scale returns the counts-to-SI conversion for the configured ranges.
func (c *Config) Scale() imu.Scale {
	s := imu.DefaultScale()
	s.AccelRangeG = accelRangesG[c.IMUAccelRange&3]
	s.GyroRangeDPS = gyroRangesDPS[c.IMUGyroRange&3]
	return s
}
