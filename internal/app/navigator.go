// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/gps"
	"github.com/relabs-tech/inertial_nav/internal/imu"
	"github.com/relabs-tech/inertial_nav/internal/store"
)

var (
	// ErrNoSession is returned when samples arrive while no session is active.
	ErrNoSession = errors.New("navigation: no active session")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("navigation: session not found")
	// ErrNotEnoughSamples is returned by Calibrate when too few recent samples
	// were received.
	ErrNotEnoughSamples = errors.New("navigation: not enough samples to calibrate")
	// ErrNotStill is returned by Calibrate when the recent samples show the
	// device was moving.
	ErrNotStill = errors.New("navigation: device was not still")
)

const (
	calibrationWindow     = 200
	minCalibrationSamples = 10
)

// SessionStore is the persistence the Navigator needs; *store.Store
// implements it.
type SessionStore interface {
	CreateSession(ctx context.Context, origin r2.Vec, heading float64, anchor *gps.Fix, startedAt time.Time) (store.Session, error)
	StopSession(ctx context.Context, id string, stoppedAt time.Time, distance float64) error
	SetAnchor(ctx context.Context, id string, fix gps.Fix) error
	AppendTrailPoint(ctx context.Context, id string, seq int, p deadreckoning.TrailPoint) error
	TrailPoints(ctx context.Context, id string, limit int) ([]deadreckoning.TrailPoint, error)
	Session(ctx context.Context, id string) (store.Session, error)
	Sessions(ctx context.Context) ([]store.Session, error)
}

// NavigatorOptions tune the host around the estimator.
type NavigatorOptions struct {
	StateLogEvery int // 0 disables periodic state lines
	PersistEvery  int // store every Nth trail point
	Now           func() time.Time
}

// Navigator owns one estimator and the active session. Every estimator
// call is serialized behind mu; readers get snapshots by value.
type Navigator struct {
	mu     sync.Mutex
	est    *deadreckoning.Estimator
	store  SessionStore
	opts   NavigatorOptions
	active *store.Session
	anchor *gps.Fix
	seq    int
	recent []imu.Sample

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan deadreckoning.Snapshot
}

func NewNavigator(cfg deadreckoning.Config, st SessionStore, opts NavigatorOptions) (*Navigator, error) {
	est, err := deadreckoning.New(cfg, r2.Vec{}, 0)
	if err != nil {
		return nil, err
	}
	if opts.PersistEvery < 1 {
		opts.PersistEvery = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Navigator{
		est:   est,
		store: st,
		opts:  opts,
		subs:  make(map[int]chan deadreckoning.Snapshot),
	}, nil
}

// Start opens a session at origin. A session that is still active is
// stopped first. Calibration carries over.
func (n *Navigator) Start(ctx context.Context, origin r2.Vec, heading float64) (store.Session, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active != nil {
		if _, err := n.stopLocked(ctx); err != nil {
			return store.Session{}, err
		}
	}

	sess, err := n.store.CreateSession(ctx, origin, heading, n.anchor, n.opts.Now())
	if err != nil {
		return store.Session{}, fmt.Errorf("start session: %w", err)
	}
	n.est.Reset(origin, heading, false)
	n.active = &sess
	n.seq = 0

	log.Printf("navigator: session %s started at (%.2f, %.2f) heading %.3f rad", sess.ID, origin.X, origin.Y, heading)
	return sess, nil
}

// Stop ends the session with the given id. Stopping a session that was
// already stopped returns it unchanged.
func (n *Navigator) Stop(ctx context.Context, id string) (store.Session, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active != nil && n.active.ID == id {
		return n.stopLocked(ctx)
	}

	sess, err := n.store.Session(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return store.Session{}, err
	}
	if sess.Active() {
		// Left open by an earlier process.
		now := n.opts.Now().UTC().Truncate(time.Millisecond)
		if err := n.store.StopSession(ctx, id, now, sess.TotalDistance); err != nil {
			return store.Session{}, fmt.Errorf("stop session: %w", err)
		}
		sess.StoppedAt = &now
	}
	return sess, nil
}

func (n *Navigator) stopLocked(ctx context.Context) (store.Session, error) {
	sess := *n.active
	now := n.opts.Now().UTC().Truncate(time.Millisecond)
	distance := n.est.State().TotalDistance

	if err := n.store.StopSession(ctx, sess.ID, now, distance); err != nil {
		return store.Session{}, fmt.Errorf("stop session: %w", err)
	}
	sess.StoppedAt = &now
	sess.TotalDistance = distance
	n.active = nil

	log.Printf("navigator: session %s stopped after %.2f m", sess.ID, distance)
	return sess, nil
}

// Feed integrates one sample into the active session. Samples received
// without a session are kept for calibration and ErrNoSession is returned.
func (n *Navigator) Feed(ctx context.Context, s imu.Sample) (deadreckoning.Snapshot, error) {
	n.mu.Lock()
	n.remember(s)
	if n.active == nil {
		n.mu.Unlock()
		return deadreckoning.Snapshot{}, ErrNoSession
	}

	rejectedBefore := n.est.State().RejectedCount
	snap := n.est.Update(s)
	accepted := snap.RejectedCount == rejectedBefore

	// The first accepted sample only primes the estimator and adds no
	// trail point.
	if accepted && snap.SampleCount > 1 {
		if (snap.SampleCount-1)%n.opts.PersistEvery == 0 {
			n.persistLocked(ctx, snap)
		}
		if n.opts.StateLogEvery > 0 && snap.SampleCount%n.opts.StateLogEvery == 0 {
			logState(n.active.ID, snap)
		}
	}
	// Broadcasting under mu keeps subscribers in feed order.
	n.broadcast(snap)
	n.mu.Unlock()
	return snap, nil
}

func (n *Navigator) persistLocked(ctx context.Context, snap deadreckoning.Snapshot) {
	p := deadreckoning.TrailPoint{
		X:       snap.Position.X,
		Y:       snap.Position.Y,
		Heading: snap.Heading,
		Speed:   snap.Speed,
	}
	if snap.Timestamp != nil {
		p.Timestamp = *snap.Timestamp
	}
	if err := n.store.AppendTrailPoint(ctx, n.active.ID, n.seq, p); err != nil {
		log.Printf("navigator: %v", err)
		return
	}
	n.seq++
}

func logState(id string, snap deadreckoning.Snapshot) {
	state := "moving"
	if snap.Stationary {
		state = "stationary"
	}
	log.Printf("navigator: %s samples=%d rejected=%d pos=(%.2f, %.2f) heading=%.1f° speed=%.2f m/s dist=%.2f m %s",
		id, snap.SampleCount, snap.RejectedCount, snap.Position.X, snap.Position.Y,
		snap.HeadingDegrees, snap.Speed, snap.TotalDistance, state)
}

func (n *Navigator) remember(s imu.Sample) {
	if !s.Finite() {
		return
	}
	if len(n.recent) == calibrationWindow {
		copy(n.recent, n.recent[1:])
		n.recent = n.recent[:calibrationWindow-1]
	}
	n.recent = append(n.recent, s)
}

// Position returns the current estimate and the active session, if any.
func (n *Navigator) Position() (deadreckoning.Snapshot, *store.Session) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var sess *store.Session
	if n.active != nil {
		cp := *n.active
		sess = &cp
	}
	return n.est.State(), sess
}

// History returns the in-memory trail of the current estimate.
func (n *Navigator) History(limit int) []deadreckoning.TrailPoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.est.Trail(limit)
}

// SessionTrail returns the persisted trail of any session.
func (n *Navigator) SessionTrail(ctx context.Context, id string, limit int) ([]deadreckoning.TrailPoint, store.Session, error) {
	sess, err := n.store.Session(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, store.Session{}, err
	}
	points, err := n.store.TrailPoints(ctx, id, limit)
	if err != nil {
		return nil, store.Session{}, err
	}
	return points, sess, nil
}

// Reset moves the estimate to origin without touching the session.
func (n *Navigator) Reset(origin r2.Vec, heading float64, clearCalibration bool) deadreckoning.Snapshot {
	n.mu.Lock()
	n.est.Reset(origin, heading, clearCalibration)
	snap := n.est.State()
	n.broadcast(snap)
	n.mu.Unlock()

	log.Printf("navigator: reset to (%.2f, %.2f) heading %.3f rad (clear calibration: %v)", origin.X, origin.Y, heading, clearCalibration)
	return snap
}

// Calibrate sets the sensor biases from the given still samples. With no
// samples it uses the most recently received ones, provided they show the
// device was still.
func (n *Navigator) Calibrate(accel, gyro []r3.Vec) (deadreckoning.Calibration, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(accel) == 0 && len(gyro) == 0 {
		if len(n.recent) < minCalibrationSamples {
			return deadreckoning.Calibration{}, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughSamples, len(n.recent), minCalibrationSamples)
		}
		for _, s := range n.recent {
			accel = append(accel, s.Accel)
			gyro = append(gyro, s.Gyro)
		}
		if err := n.checkStill(accel, gyro); err != nil {
			return deadreckoning.Calibration{}, err
		}
	}
	n.est.Calibrate(accel, gyro)
	cal := n.est.Calibration()
	log.Printf("navigator: calibrated from %d accel / %d gyro samples, gyro bias (%.4f, %.4f, %.4f)",
		len(accel), len(gyro), cal.GyroBias.X, cal.GyroBias.Y, cal.GyroBias.Z)
	return cal, nil
}

// checkStill compares the spread of |accel| and |gyro| with the stationary
// thresholds of the estimator.
func (n *Navigator) checkStill(accel, gyro []r3.Vec) error {
	cfg := n.est.Config()
	accelStd := stat.StdDev(norms(accel), nil)
	gyroStd := stat.StdDev(norms(gyro), nil)
	if accelStd >= cfg.StationaryAccelStd || gyroStd >= cfg.StationaryGyroStd {
		return fmt.Errorf("%w: |accel| std %.3f m/s² (limit %.3f), |gyro| std %.4f rad/s (limit %.4f)",
			ErrNotStill, accelStd, cfg.StationaryAccelStd, gyroStd, cfg.StationaryGyroStd)
	}
	return nil
}

func norms(vs []r3.Vec) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = r3.Norm(v)
	}
	return out
}

// Recent returns up to limit of the most recently received samples, oldest
// first. limit <= 0 returns all of them.
func (n *Navigator) Recent(limit int) []imu.Sample {
	n.mu.Lock()
	defer n.mu.Unlock()
	from := 0
	if limit > 0 && limit < len(n.recent) {
		from = len(n.recent) - limit
	}
	return append([]imu.Sample(nil), n.recent[from:]...)
}

func (n *Navigator) Calibration() deadreckoning.Calibration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.est.Calibration()
}

// SetAnchor records a GPS fix as the anchor label of the active session and
// of sessions started later. Fixes the receiver marked void are ignored.
func (n *Navigator) SetAnchor(ctx context.Context, fix gps.Fix) (bool, error) {
	if !fix.Valid() {
		return false, nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	n.anchor = &fix
	if n.active == nil {
		return true, nil
	}
	if n.active.Anchor != nil {
		// The first fix of a session is its anchor.
		return false, nil
	}
	if err := n.store.SetAnchor(ctx, n.active.ID, fix); err != nil {
		return false, fmt.Errorf("anchor session: %w", err)
	}
	n.active.Anchor = &fix
	log.Printf("navigator: session %s anchored at %.6f, %.6f", n.active.ID, fix.Latitude, fix.Longitude)
	return true, nil
}

func (n *Navigator) Sessions(ctx context.Context) ([]store.Session, error) {
	return n.store.Sessions(ctx)
}

// Subscribe returns a channel of snapshots produced by Feed and Reset, and
// a function that unsubscribes. Snapshots are dropped for slow readers.
func (n *Navigator) Subscribe(buffer int) (<-chan deadreckoning.Snapshot, func()) {
	ch := make(chan deadreckoning.Snapshot, buffer)

	n.subMu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.subMu.Lock()
			delete(n.subs, id)
			n.subMu.Unlock()
		})
	}
}

func (n *Navigator) broadcast(snap deadreckoning.Snapshot) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
