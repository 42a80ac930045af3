// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_nav/internal/config"
	"github.com/relabs-tech/inertial_nav/internal/imu"
	"github.com/relabs-tech/inertial_nav/internal/store"
)

const statsLogInterval = 30 * time.Second

// RunNavServer runs the navigation host: HTTP API, UDP listener and MQTT
// bridge around one Navigator, until ctx is done.
func RunNavServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if cfg.DBPath == "" {
		log.Println("navserver: DB_PATH not set, sessions are kept in memory")
	}

	nav, err := NewNavigator(cfg.DeadReckoning, st, NavigatorOptions{
		StateLogEvery: cfg.StateLogEvery,
		PersistEvery:  cfg.PersistEvery,
	})
	if err != nil {
		return err
	}

	in := &Ingest{
		Nav:     nav,
		Stats:   NewPacketStats(),
		Decoder: imu.Decoder{},
		Scale:   cfg.Scale(),
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDNav)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	bridge := NewMQTTBridge(client, cfg, in)
	if err := bridge.Subscribe(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		bridge.PublishStates(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		in.Stats.RunStatsLogging(ctx, statsLogInterval)
	}()

	if cfg.UDPPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := fmt.Sprintf(":%d", cfg.UDPPort)
			if err := ListenUDP(ctx, addr, in); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("udp: %v", err)
			}
		}()
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: NewServer(in).ServeMux(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Printf("HTTP server shutdown error: %v", serr)
	}

	// Close the active session so its distance is stored.
	if _, sess := nav.Position(); sess != nil {
		if _, serr := nav.Stop(context.Background(), sess.ID); serr != nil {
			log.Printf("navserver: %v", serr)
		}
	}

	stop()
	wg.Wait()
	return err
}
