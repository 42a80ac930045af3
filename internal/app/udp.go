// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

const udpReadTimeout = 100 * time.Millisecond

// ListenUDP receives JSON samples on addr (e.g. ":65000") until ctx is done.
func ListenUDP(ctx context.Context, addr string, in *Ingest) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	log.Printf("udp: listening on %s", conn.LocalAddr())
	return ServeUDP(ctx, conn, in)
}

// ServeUDP reads datagrams from conn; each datagram is one sample.
func ServeUDP(ctx context.Context, conn *net.UDPConn, in *Ingest) error {
	buffer := make([]byte, 4096)
	received := 0

	for {
		select {
		case <-ctx.Done():
			log.Printf("udp: stopping (%d packets received)", received)
			return ctx.Err()
		default:
		}

		// The deadline lets the loop notice cancellation.
		conn.SetReadDeadline(time.Now().Add(udpReadTimeout))
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("udp: read error: %v", err)
			continue
		}

		received++
		if received == 1 {
			log.Printf("udp: first packet from %v", addr)
		}
		if _, _, err := in.Payload(ctx, SourceUDP, buffer[:n]); err != nil {
			log.Printf("udp: packet from %v dropped: %v", addr, err)
		}
	}
}
