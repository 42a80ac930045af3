// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/imu"
	"github.com/relabs-tech/inertial_nav/internal/render"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP API of the navigation host.
type Server struct {
	nav    *Navigator
	ingest *Ingest
	stats  *PacketStats
	now    func() time.Time
}

func NewServer(in *Ingest) *Server {
	return &Server{nav: in.Nav, ingest: in, stats: in.Stats, now: time.Now}
}

// ServeMux returns the routes of the API.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /imu", s.handleIMU)
	mux.HandleFunc("POST /navigation/start", s.handleStart)
	mux.HandleFunc("POST /navigation/stop", s.handleStop)
	mux.HandleFunc("GET /navigation/position", s.handlePosition)
	mux.HandleFunc("GET /navigation/history", s.handleHistory)
	mux.HandleFunc("POST /navigation/reset", s.handleReset)
	mux.HandleFunc("POST /navigation/calibrate", s.handleCalibrate)
	mux.HandleFunc("GET /navigation/sessions", s.handleSessions)
	mux.HandleFunc("GET /navigation/trail.png", s.handleTrailPNG)
	mux.HandleFunc("GET /navigation/ws", s.handleStream)
	mux.HandleFunc("GET /recent", s.handleRecent)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

// readJSON decodes an optional JSON body into v; an empty body leaves v
// untouched.
func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer, got %q", raw)
	}
	return limit, nil
}

func (s *Server) handleIMU(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no data received"))
		return
	}

	snap, navigating, err := s.ingest.Payload(r.Context(), SourceHTTP, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := map[string]any{
		"status":        "success",
		"packet_number": s.stats.Snapshot().TotalPackets,
		"received_at":   s.now().UTC().Format(time.RFC3339Nano),
		"navigating":    navigating,
	}
	if navigating {
		resp["position"] = snap.Position
		resp["stationary"] = snap.Stationary
	}
	writeJSON(w, http.StatusOK, resp)
}

type startRequest struct {
	InitialX       float64 `json:"initial_x"`
	InitialY       float64 `json:"initial_y"`
	InitialHeading float64 `json:"initial_heading"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	origin := r2.Vec{X: req.InitialX, Y: req.InitialY}
	sess, err := s.nav.Start(r.Context(), origin, req.InitialHeading)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"session_id":       sess.ID,
		"session":          sess,
		"initial_position": map[string]float64{"x": origin.X, "y": origin.Y},
		"initial_heading":  req.InitialHeading,
		"message":          "Navigation session started",
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("session_id required"))
		return
	}

	sess, err := s.nav.Stop(r.Context(), req.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": sess.ID,
		"session":    sess,
		"message":    "Navigation session stopped",
	})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	snap, sess := s.nav.Position()
	resp := map[string]any{
		"success":  true,
		"position": snap,
	}
	if sess != nil {
		resp["session_id"] = sess.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory serves the live trail, or the stored trail of session_id.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var history []deadreckoning.TrailPoint
	if id := r.URL.Query().Get("session_id"); id != "" {
		history, _, err = s.nav.SessionTrail(r.Context(), id, limit)
		if errors.Is(err, ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	} else {
		history = s.nav.History(limit)
	}
	if history == nil {
		history = []deadreckoning.TrailPoint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": history,
		"count":   len(history),
	})
}

type resetRequest struct {
	X                float64 `json:"x"`
	Y                float64 `json:"y"`
	Heading          float64 `json:"heading"`
	ClearCalibration bool    `json:"clear_calibration"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap := s.nav.Reset(r2.Vec{X: req.X, Y: req.Y}, req.Heading, req.ClearCalibration)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"position": map[string]float64{"x": req.X, "y": req.Y},
		"heading":  req.Heading,
		"state":    snap,
		"message":  "Navigation position reset",
	})
}

// CalibrateRequest carries still samples in m/s² and rad/s, one [x, y, z]
// triple each. An empty request calibrates from recently received samples.
type CalibrateRequest struct {
	Accel [][3]float64 `json:"accel"`
	Gyro  [][3]float64 `json:"gyro"`
}

func toVecs(in [][3]float64) []r3.Vec {
	out := make([]r3.Vec, len(in))
	for i, v := range in {
		out[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	return out
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cal, err := s.nav.Calibrate(toVecs(req.Accel), toVecs(req.Gyro))
	if errors.Is(err, ErrNotEnoughSamples) || errors.Is(err, ErrNotStill) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"calibration": cal,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.nav.Sessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleTrailPNG renders the live trail, or a stored one with session_id.
func (s *Server) handleTrailPNG(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := render.DefaultOptions()
	var (
		points []deadreckoning.TrailPoint
		origin r2.Vec
		snap   *deadreckoning.Snapshot
	)
	if id := r.URL.Query().Get("session_id"); id != "" {
		stored, sess, err := s.nav.SessionTrail(r.Context(), id, limit)
		if errors.Is(err, ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		points, origin = stored, sess.Origin
		opts.Title = "session " + id
	} else {
		current, active := s.nav.Position()
		points = s.nav.History(limit)
		snap = &current
		if active != nil {
			origin = active.Origin
			opts.Title = "session " + active.ID
		}
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.Trail(w, points, origin, snap, opts); err != nil {
		log.Printf("web: trail render error: %v", err)
	}
}

// handleRecent serves the last received samples, decoded to SI units,
// whether or not a session is active.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	samples := s.nav.Recent(limit)
	if samples == nil {
		samples = []imu.Sample{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"samples": samples,
		"count":   len(samples),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, sess := s.nav.Position()
	resp := map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"stats":     s.stats.Snapshot(),
		"estimator": map[string]any{
			"samples":  snap.SampleCount,
			"rejected": snap.RejectedCount,
		},
	}
	if sess != nil {
		resp["session_id"] = sess.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
