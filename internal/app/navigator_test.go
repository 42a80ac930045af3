// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/gps"
	"github.com/relabs-tech/inertial_nav/internal/imu"
	"github.com/relabs-tech/inertial_nav/internal/store"
)

// tickingClock advances one second per call so sessions sort deterministically.
func tickingClock() func() time.Time {
	t := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestNavigator(t *testing.T, opts NavigatorOptions) (*Navigator, *store.Store) {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if opts.Now == nil {
		opts.Now = tickingClock()
	}
	nav, err := NewNavigator(deadreckoning.DefaultConfig(), st, opts)
	require.NoError(t, err)
	return nav, st
}

func stillSample(i int) imu.Sample {
	return imu.Sample{
		Accel:     r3.Vec{Z: deadreckoning.StandardGravity},
		Timestamp: 100 + float64(i)*0.05,
	}
}

func TestNavigatorFeedWithoutSession(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})

	_, err := nav.Feed(ctx, stillSample(0))
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = nav.Calibrate(nil, nil)
	assert.ErrorIs(t, err, ErrNotEnoughSamples)

	for i := 1; i < minCalibrationSamples; i++ {
		s := stillSample(i)
		s.Gyro = r3.Vec{Z: 0.01}
		_, err := nav.Feed(ctx, s)
		require.ErrorIs(t, err, ErrNoSession)
	}

	cal, err := nav.Calibrate(nil, nil)
	require.NoError(t, err)
	// nine samples with 0.01 rad/s, one with zero
	assert.InDelta(t, 0.009, cal.GyroBias.Z, 1e-9)
	assert.InDelta(t, 0, cal.AccelBias.Z, 1e-9)
}

func TestNavigatorRecentWindowIsBounded(t *testing.T) {
	nav, _ := newTestNavigator(t, NavigatorOptions{})
	for i := 0; i < calibrationWindow+50; i++ {
		nav.Feed(context.Background(), stillSample(i))
	}
	assert.Len(t, nav.recent, calibrationWindow)
	assert.Equal(t, stillSample(calibrationWindow+49), nav.recent[calibrationWindow-1])
}

func TestNavigatorSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	nav, st := newTestNavigator(t, NavigatorOptions{})

	sess, err := nav.Start(ctx, r2.Vec{X: 3, Y: -1}, 0.5)
	require.NoError(t, err)
	assert.True(t, sess.Active())

	snap, active := nav.Position()
	require.NotNil(t, active)
	assert.Equal(t, sess.ID, active.ID)
	assert.Equal(t, r2.Vec{X: 3, Y: -1}, snap.Position)
	assert.InDelta(t, 0.5, snap.Heading, 1e-12)

	for i := 0; i < 20; i++ {
		snap, err = nav.Feed(ctx, stillSample(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 20, snap.SampleCount)

	// The first sample only primes the estimator.
	points, err := st.TrailPoints(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Len(t, points, 19)
	assert.Len(t, nav.History(0), 19)

	stopped, err := nav.Stop(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stopped.StoppedAt)

	_, active = nav.Position()
	assert.Nil(t, active)

	_, err = nav.Feed(ctx, stillSample(21))
	assert.ErrorIs(t, err, ErrNoSession)

	again, err := nav.Stop(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, stopped.ID, again.ID)
	assert.False(t, again.Active())

	_, err = nav.Stop(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNavigatorPersistEvery(t *testing.T) {
	ctx := context.Background()
	nav, st := newTestNavigator(t, NavigatorOptions{PersistEvery: 5})

	sess, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err := nav.Feed(ctx, stillSample(i))
		require.NoError(t, err)
	}

	points, err := st.TrailPoints(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Len(t, points, 3)
}

func TestNavigatorRejectedSampleNotPersisted(t *testing.T) {
	ctx := context.Background()
	nav, st := newTestNavigator(t, NavigatorOptions{})

	sess, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)
	nav.Feed(ctx, stillSample(0))
	nav.Feed(ctx, stillSample(1))
	snap, err := nav.Feed(ctx, stillSample(1)) // dt = 0
	require.NoError(t, err)
	assert.Equal(t, 1, snap.RejectedCount)

	points, err := st.TrailPoints(ctx, sess.ID, 0)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestNavigatorStartStopsPrevious(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})

	first, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)
	second, err := nav.Start(ctx, r2.Vec{X: 1}, 0)
	require.NoError(t, err)

	sessions, err := nav.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
	assert.True(t, sessions[0].Active())
	assert.Equal(t, first.ID, sessions[1].ID)
	assert.False(t, sessions[1].Active())
}

func TestNavigatorStopsOrphanedSession(t *testing.T) {
	ctx := context.Background()
	nav, st := newTestNavigator(t, NavigatorOptions{})

	orphan, err := st.CreateSession(ctx, r2.Vec{}, 0, nil, time.Now())
	require.NoError(t, err)

	sess, err := nav.Stop(ctx, orphan.ID)
	require.NoError(t, err)
	assert.False(t, sess.Active())

	stored, err := st.Session(ctx, orphan.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active())
}

func TestNavigatorAnchor(t *testing.T) {
	ctx := context.Background()
	nav, st := newTestNavigator(t, NavigatorOptions{})

	void := gps.Fix{Latitude: 1, Validity: "V"}
	applied, err := nav.SetAnchor(ctx, void)
	require.NoError(t, err)
	assert.False(t, applied)

	// A fix seen before the session becomes its anchor at start.
	before := gps.Fix{Latitude: 48.1, Longitude: 11.5, Validity: "A"}
	_, err = nav.SetAnchor(ctx, before)
	require.NoError(t, err)
	sess, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)
	require.NotNil(t, sess.Anchor)
	assert.Equal(t, 48.1, sess.Anchor.Latitude)

	// Later fixes do not move it.
	applied, err = nav.SetAnchor(ctx, gps.Fix{Latitude: 50, Validity: "A"})
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := st.Session(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Anchor)
	assert.Equal(t, 48.1, stored.Anchor.Latitude)
}

func TestNavigatorAnchorsActiveSession(t *testing.T) {
	ctx := context.Background()
	nav, st := newTestNavigator(t, NavigatorOptions{})

	sess, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)
	assert.Nil(t, sess.Anchor)

	applied, err := nav.SetAnchor(ctx, gps.Fix{Latitude: 10, Longitude: 20, Validity: "A"})
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := st.Session(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Anchor)
	assert.Equal(t, 20.0, stored.Anchor.Longitude)
}

func TestNavigatorSubscribe(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})
	_, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)

	updates, unsubscribe := nav.Subscribe(4)
	_, err = nav.Feed(ctx, stillSample(0))
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.Equal(t, 1, snap.SampleCount)
	default:
		t.Fatal("no snapshot delivered")
	}

	unsubscribe()
	unsubscribe()
	nav.Feed(ctx, stillSample(1))
	select {
	case <-updates:
		t.Fatal("snapshot delivered after unsubscribe")
	default:
	}
}

func TestNavigatorSlowSubscriberDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})
	_, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)

	_, unsubscribe := nav.Subscribe(1)
	defer unsubscribe()
	for i := 0; i < 10; i++ {
		_, err := nav.Feed(ctx, stillSample(i))
		require.NoError(t, err)
	}
}

func TestNavigatorResetKeepsSession(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})
	sess, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)

	snap := nav.Reset(r2.Vec{X: 5, Y: 6}, 1, false)
	assert.Equal(t, r2.Vec{X: 5, Y: 6}, snap.Position)
	assert.InDelta(t, 1, snap.Heading, 1e-12)

	_, active := nav.Position()
	require.NotNil(t, active)
	assert.Equal(t, sess.ID, active.ID)
}

func TestNavigatorCalibrateRequiresStillness(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})

	for i := 0; i < 40; i++ {
		s := stillSample(i)
		if i%2 == 1 {
			s.Accel.Z += 1.5 // footsteps
		}
		nav.Feed(ctx, s)
	}
	_, err := nav.Calibrate(nil, nil)
	assert.ErrorIs(t, err, ErrNotStill)
	assert.Equal(t, deadreckoning.Calibration{}.AccelBias, nav.Calibration().AccelBias)

	// Explicit samples are trusted as given.
	cal, err := nav.Calibrate([]r3.Vec{{Z: 9.9}, {Z: 11}}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.45-deadreckoning.StandardGravity, cal.AccelBias.Z, 1e-9)
}

func TestNavigatorRecent(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})
	assert.Empty(t, nav.Recent(5))

	for i := 0; i < 8; i++ {
		nav.Feed(ctx, stillSample(i))
	}
	bad := stillSample(8)
	bad.Accel.X = math.NaN()
	nav.Feed(ctx, bad)

	recent := nav.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, stillSample(5), recent[0])
	assert.Equal(t, stillSample(7), recent[2])
	assert.Len(t, nav.Recent(0), 8)

	// Callers get a copy.
	recent[0].Timestamp = -1
	assert.Equal(t, stillSample(5), nav.Recent(3)[0])
}

func TestNavigatorNonFiniteSampleIsRejected(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})
	_, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)

	nav.Feed(ctx, stillSample(0))
	bad := stillSample(1)
	bad.Timestamp = math.NaN()
	snap, err := nav.Feed(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.RejectedCount)

	snap, err = nav.Feed(ctx, stillSample(2))
	require.NoError(t, err)
	assert.Equal(t, 2, snap.SampleCount)
	assert.False(t, math.IsNaN(snap.Position.X) || math.IsNaN(snap.Heading))
}

func TestNavigatorBroadcastsInFeedOrder(t *testing.T) {
	ctx := context.Background()
	nav, _ := newTestNavigator(t, NavigatorOptions{})
	_, err := nav.Start(ctx, r2.Vec{}, 0)
	require.NoError(t, err)

	const feeders, perFeeder = 4, 50
	updates, unsubscribe := nav.Subscribe(feeders * perFeeder)
	defer unsubscribe()

	var wg sync.WaitGroup
	for f := 0; f < feeders; f++ {
		wg.Add(1)
		go func(f int) {
			defer wg.Done()
			for i := 0; i < perFeeder; i++ {
				nav.Feed(ctx, stillSample(f*perFeeder+i))
			}
		}(f)
	}
	wg.Wait()

	// Every fed sample is either accepted or rejected, so the sum counts
	// feeds in the order they were applied.
	for want := 1; want <= feeders*perFeeder; want++ {
		snap := <-updates
		require.Equal(t, want, snap.SampleCount+snap.RejectedCount)
	}
}
