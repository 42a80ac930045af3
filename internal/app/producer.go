// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_nav/internal/config"
	"github.com/relabs-tech/inertial_nav/internal/imu"
)

// mockLegSeconds is the walking time of one side of the mock square.
const mockLegSeconds = 4.0

// NewMockSource returns the raw-count walk used by the producer and the
// simulator, sampled every interval and stamped from start.
func NewMockSource(cfg *config.Config, start time.Time, withMag bool) imu.ScaledSource {
	rate := 1000.0 / float64(cfg.IMUSampleInterval)
	return imu.ScaledSource{
		Src:    imu.NewWalkSource(rate, float64(start.UnixMilli())/1000.0, mockLegSeconds, withMag),
		Scale:  cfg.Scale(),
		Source: "mock",
	}
}

// RunProducer publishes mock raw IMU samples on TopicIMU, one per
// IMU_SAMPLE_INTERVAL, until ctx is done.
func RunProducer(ctx context.Context, cfg *config.Config, withMag bool) error {
	log.Println("starting mock IMU producer")

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	src := NewMockSource(cfg, time.Now(), withMag)
	return publishRaw(ctx, client, cfg, src)
}

func publishRaw(ctx context.Context, client mqtt.Client, cfg *config.Config, src imu.IMURawSource) error {
	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	logEvery := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	var lastLog time.Time
	published := 0

	for {
		select {
		case <-ctx.Done():
			log.Printf("producer: stopping after %d samples", published)
			return nil
		case t := <-ticker.C:
			raw, err := src.NextRaw()
			if err != nil {
				return fmt.Errorf("producer: sample source: %w", err)
			}

			payload, err := json.Marshal(raw)
			if err != nil {
				log.Printf("json marshal error (imu): %v", err)
				continue
			}
			if token := client.Publish(cfg.TopicIMU, 0, false, payload); token.Wait() && token.Error() != nil {
				log.Printf("MQTT publish error (imu): %v", token.Error())
				continue
			}
			published++

			if t.Sub(lastLog) >= logEvery {
				lastLog = t
				log.Printf("%s tick: accel ax=%d ay=%d az=%d | gyro gx=%d gy=%d gz=%d | mag mx=%d my=%d mz=%d | %d published",
					t.Format(time.RFC3339),
					raw.Ax, raw.Ay, raw.Az,
					raw.Gx, raw.Gy, raw.Gz,
					raw.Mx, raw.My, raw.Mz,
					published,
				)
			}
		}
	}
}
