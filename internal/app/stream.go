// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
)

const (
	streamBuffer    = 32
	streamWriteWait = 2 * time.Second
	streamPing      = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // browsers on the local network
	},
}

// StreamMessage is sent on /navigation/ws.
type StreamMessage struct {
	Type  string                  `json:"type"` // always "state" for now
	State *deadreckoning.Snapshot `json:"state,omitempty"`
}

// handleStream pushes every new snapshot to the client until it goes away.
// Clients that fall behind skip snapshots.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.nav.Subscribe(streamBuffer)
	defer unsubscribe()

	// Reading is only needed to notice close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	current, _ := s.nav.Position()
	if err := writeStream(conn, StreamMessage{Type: "state", State: &current}); err != nil {
		log.Printf("stream: write error: %v", err)
		return
	}

	ping := time.NewTicker(streamPing)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap := <-updates:
			if err := writeStream(conn, StreamMessage{Type: "state", State: &snap}); err != nil {
				log.Printf("stream: write error: %v", err)
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(streamWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func writeStream(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
