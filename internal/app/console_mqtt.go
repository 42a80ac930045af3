// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_nav/internal/config"
	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/gps"
	"github.com/relabs-tech/inertial_nav/internal/imu"
	"github.com/relabs-tech/inertial_nav/internal/orientation"
)

// RunConsoleMQTT prints navigation state, pose, raw IMU and GPS messages
// to out until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	topics := []struct {
		topic  string
		format func([]byte) (string, error)
	}{
		{cfg.TopicNavState, formatNavState},
		{cfg.TopicPose, formatPose},
		{cfg.TopicIMU, formatRaw},
		{cfg.TopicGPS, formatFix},
	}
	for _, t := range topics {
		format := t.format
		err := subscribe(client, t.topic, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Printf("console: %s: %v", msg.Topic(), err)
				return
			}
			fmt.Fprintln(out, line)
		})
		if err != nil {
			return err
		}
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func formatNavState(payload []byte) (string, error) {
	var s deadreckoning.Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", fmt.Errorf("nav state unmarshal error: %w", err)
	}
	state := "MOVING"
	if s.Stationary {
		state = "STILL "
	}
	return fmt.Sprintf(
		"[NAV ]  X=%7.2f  Y=%7.2f  HDG=%6.1f°  V=%5.2f  DIST=%7.2f  %s  n=%d rej=%d",
		s.Position.X, s.Position.Y, s.HeadingDegrees, s.Speed, s.TotalDistance, state, s.SampleCount, s.RejectedCount,
	), nil
}

func formatPose(payload []byte) (string, error) {
	var p orientation.Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("pose unmarshal error: %w", err)
	}
	return fmt.Sprintf("[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f", p.Roll, p.Pitch, p.Yaw), nil
}

func formatRaw(payload []byte) (string, error) {
	var s imu.IMURaw
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", fmt.Errorf("imu unmarshal error: %w", err)
	}
	return fmt.Sprintf(
		"[IMU ]  ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d  mx=%6d my=%6d mz=%6d",
		s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz, s.Mx, s.My, s.Mz,
	), nil
}

func formatFix(payload []byte) (string, error) {
	var f gps.Fix
	if err := json.Unmarshal(payload, &f); err != nil {
		return "", fmt.Errorf("gps unmarshal error: %w", err)
	}
	return fmt.Sprintf(
		"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f alt=%.1fm sats=%d validity=%s",
		f.Time, f.Date, f.Latitude, f.Longitude, f.AltitudeM, f.Satellites, f.Validity,
	), nil
}
