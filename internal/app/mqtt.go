// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_nav/internal/config"
	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/gps"
)

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("connected to MQTT broker at %s as %s", broker, clientID)
	return client, nil
}

func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
	}
	log.Printf("subscribed to MQTT topic %s", topic)
	return nil
}

// MQTTBridge feeds raw IMU counts and GPS fixes from MQTT into the
// navigator and publishes its snapshots.
type MQTTBridge struct {
	client mqtt.Client
	cfg    *config.Config
	in     *Ingest
}

func NewMQTTBridge(client mqtt.Client, cfg *config.Config, in *Ingest) *MQTTBridge {
	return &MQTTBridge{client: client, cfg: cfg, in: in}
}

// Subscribe registers the IMU and GPS handlers.
func (b *MQTTBridge) Subscribe(ctx context.Context) error {
	if err := subscribe(b.client, b.cfg.TopicIMU, func(_ mqtt.Client, msg mqtt.Message) {
		if err := b.HandleIMU(ctx, msg.Payload()); err != nil {
			log.Printf("mqtt: imu sample dropped: %v", err)
		}
	}); err != nil {
		return err
	}
	return subscribe(b.client, b.cfg.TopicGPS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := b.HandleGPS(ctx, msg.Payload()); err != nil {
			log.Printf("mqtt: gps fix dropped: %v", err)
		}
	})
}

// HandleIMU ingests one IMURaw payload.
func (b *MQTTBridge) HandleIMU(ctx context.Context, payload []byte) error {
	_, _, err := b.in.Raw(ctx, SourceMQTT, payload)
	return err
}

// HandleGPS offers one Fix payload as the session anchor.
func (b *MQTTBridge) HandleGPS(ctx context.Context, payload []byte) error {
	var fix gps.Fix
	if err := json.Unmarshal(payload, &fix); err != nil {
		return fmt.Errorf("decode fix: %w", err)
	}
	_, err := b.in.Nav.SetAnchor(ctx, fix)
	return err
}

// PublishStates publishes every navigator snapshot on TopicNavState and its
// pose on TopicPose, retained, until ctx is done.
func (b *MQTTBridge) PublishStates(ctx context.Context) {
	updates, unsubscribe := b.in.Nav.Subscribe(streamBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			b.publish(snap)
		}
	}
}

func (b *MQTTBridge) publish(snap deadreckoning.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("json marshal error (nav state): %v", err)
		return
	}
	if token := b.client.Publish(b.cfg.TopicNavState, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("MQTT publish error (nav state): %v", token.Error())
		return
	}

	payload, err = json.Marshal(snap.Pose)
	if err != nil {
		log.Printf("json marshal error (pose): %v", err)
		return
	}
	if token := b.client.Publish(b.cfg.TopicPose, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("MQTT publish error (pose): %v", token.Error())
	}
}
