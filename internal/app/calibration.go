// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/inertial_nav/internal/config"
	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/imu"
)

// Stillness thresholds on the mean per-axis standard deviation, SI units.
const (
	accelStillStdGood = 0.02 // m/s²
	accelStillStdBad  = 0.15
	gyroStillStdGood  = 0.003 // rad/s
	gyroStillStdBad   = 0.03

	confFloor = 0.05
)

// ErrTooFewSamples is returned when a capture holds fewer than two samples.
var ErrTooFewSamples = errors.New("calibration: need at least two samples")

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type PhaseStats struct {
	Samples int  `json:"samples"`
	Mean    Vec3 `json:"mean"`
	StdDev  Vec3 `json:"stddev"`
}

// CalibrationResult is written by the capture tool.
type CalibrationResult struct {
	Version     int        `json:"version"`
	Timestamp   time.Time  `json:"timestamp"`
	DurationSec float64    `json:"duration_sec"`
	Accel       PhaseStats `json:"accel"`
	Gyro        PhaseStats `json:"gyro"`

	AccelBias Vec3 `json:"accel_bias"`
	GyroBias  Vec3 `json:"gyro_bias"`

	AccelConfidence float64 `json:"accel_confidence"`
	GyroConfidence  float64 `json:"gyro_confidence"`

	// Raw samples, as accepted by POST /navigation/calibrate.
	Samples CalibrateRequest `json:"samples"`
}

func computeStats(values []r3.Vec) PhaseStats {
	xs := make([]float64, len(values))
	ys := make([]float64, len(values))
	zs := make([]float64, len(values))
	for i, v := range values {
		xs[i], ys[i], zs[i] = v.X, v.Y, v.Z
	}
	mx, sx := stat.MeanStdDev(xs, nil)
	my, sy := stat.MeanStdDev(ys, nil)
	mz, sz := stat.MeanStdDev(zs, nil)
	return PhaseStats{
		Samples: len(values),
		Mean:    Vec3{X: mx, Y: my, Z: mz},
		StdDev:  Vec3{X: sx, Y: sy, Z: sz},
	}
}

func stillnessConfidence(std Vec3, good, bad float64) float64 {
	s := (std.X + std.Y + std.Z) / 3
	switch {
	case s <= good:
		return 1.0
	case s >= bad:
		return confFloor
	default:
		t := (s - good) / (bad - good)
		return clamp01(1.0 - 0.95*t)
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Summarize computes biases and stillness confidence from samples taken
// with the device lying still and level.
func Summarize(samples []imu.Sample, at time.Time) (CalibrationResult, error) {
	if len(samples) < 2 {
		return CalibrationResult{}, ErrTooFewSamples
	}

	accel := make([]r3.Vec, len(samples))
	gyro := make([]r3.Vec, len(samples))
	req := CalibrateRequest{
		Accel: make([][3]float64, len(samples)),
		Gyro:  make([][3]float64, len(samples)),
	}
	for i, s := range samples {
		accel[i], gyro[i] = s.Accel, s.Gyro
		req.Accel[i] = [3]float64{s.Accel.X, s.Accel.Y, s.Accel.Z}
		req.Gyro[i] = [3]float64{s.Gyro.X, s.Gyro.Y, s.Gyro.Z}
	}

	res := CalibrationResult{
		Version:     1,
		Timestamp:   at.UTC(),
		DurationSec: samples[len(samples)-1].Timestamp - samples[0].Timestamp,
		Accel:       computeStats(accel),
		Gyro:        computeStats(gyro),
		Samples:     req,
	}
	res.AccelBias = res.Accel.Mean
	res.AccelBias.Z -= deadreckoning.StandardGravity
	res.GyroBias = res.Gyro.Mean
	res.AccelConfidence = stillnessConfidence(res.Accel.StdDev, accelStillStdGood, accelStillStdBad)
	res.GyroConfidence = stillnessConfidence(res.Gyro.StdDev, gyroStillStdGood, gyroStillStdBad)
	return res, nil
}

// WriteResult stores res as JSON in dir and returns the file path.
func WriteResult(dir string, res CalibrationResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := filepath.Join(dir, res.Timestamp.Format("2006-01-02T15-04-05Z07-00")+"_inertial_calibration.json")

	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// ApplyResult posts the captured samples to a running navigation server.
func ApplyResult(ctx context.Context, baseURL string, res CalibrationResult) error {
	body, err := json.Marshal(res.Samples)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/navigation/calibrate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("apply calibration: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("apply calibration: server answered %s", resp.Status)
	}
	return nil
}

// RunCalibration captures raw samples from TopicIMU for duration, writes
// the result to dir and, when applyURL is set, sends it to the server.
func RunCalibration(ctx context.Context, cfg *config.Config, duration time.Duration, dir, applyURL string) (CalibrationResult, error) {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole+"-calibration")
	if err != nil {
		return CalibrationResult{}, err
	}
	defer client.Disconnect(250)

	scale := cfg.Scale()
	var (
		mu      sync.Mutex
		samples []imu.Sample
	)
	err = subscribe(client, cfg.TopicIMU, func(_ mqtt.Client, msg mqtt.Message) {
		var raw imu.IMURaw
		if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
			log.Printf("calibration: imu unmarshal error: %v", err)
			return
		}
		mu.Lock()
		samples = append(samples, scale.ToSample(raw))
		mu.Unlock()
	})
	if err != nil {
		return CalibrationResult{}, err
	}

	log.Printf("calibration: keep the device still and level for %s", duration)
	select {
	case <-ctx.Done():
		return CalibrationResult{}, ctx.Err()
	case <-time.After(duration):
	}
	client.Unsubscribe(cfg.TopicIMU).Wait()

	mu.Lock()
	captured := append([]imu.Sample(nil), samples...)
	mu.Unlock()

	res, err := Summarize(captured, time.Now())
	if err != nil {
		return CalibrationResult{}, err
	}
	log.Printf("calibration: %d samples, gyro bias (%.4f, %.4f, %.4f) rad/s confidence %.2f, accel bias (%.3f, %.3f, %.3f) m/s² confidence %.2f",
		res.Gyro.Samples,
		res.GyroBias.X, res.GyroBias.Y, res.GyroBias.Z, res.GyroConfidence,
		res.AccelBias.X, res.AccelBias.Y, res.AccelBias.Z, res.AccelConfidence)

	path, err := WriteResult(dir, res)
	if err != nil {
		return res, err
	}
	log.Printf("calibration: wrote %s", path)

	if applyURL != "" {
		if err := ApplyResult(ctx, applyURL, res); err != nil {
			return res, err
		}
		log.Printf("calibration: applied to %s", applyURL)
	}
	return res, nil
}
