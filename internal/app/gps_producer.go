// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/inertial_nav/internal/config"
	"github.com/relabs-tech/inertial_nav/internal/gps"
)

// RunGPSProducer opens the GPS serial port, assembles NMEA sentences into
// fixes and publishes each fix as JSON on TopicGPS. The navigation server
// uses the fixes as session anchors.
func RunGPSProducer(ctx context.Context, cfg *config.Config) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("open GPS serial port %s: %w", serialOpts.PortName, err)
	}
	log.Printf("GPS serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	// Closing the port unblocks the reader on shutdown.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	err = ReadFixes(port, func(fix gps.Fix) {
		payload, err := json.Marshal(fix)
		if err != nil {
			log.Printf("GPS JSON marshal error: %v", err)
			return
		}
		token := client.Publish(cfg.TopicGPS, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("GPS publish error: %v", token.Error())
			return
		}
		log.Printf("published GPS fix: %+v", fix)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ReadFixes reads NMEA lines from r and calls onFix for every completed
// fix until r is exhausted. Malformed sentences are skipped.
func ReadFixes(r io.Reader, onFix func(gps.Fix)) error {
	reader := bufio.NewReader(r)
	var asm gps.Assembler

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			// Partial sentences are common right after the port opens.
			if fix, done, perr := asm.Feed(line); perr == nil && done {
				onFix(fix)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("GPS read error: %w", err)
		}
	}
}
