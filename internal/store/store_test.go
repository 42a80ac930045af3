// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
	"github.com/relabs-tech/inertial_nav/internal/gps"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nav.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nav.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	start := time.Date(2026, 3, 1, 10, 0, 0, 123_000_000, time.UTC)
	anchor := &gps.Fix{Latitude: 48.1, Longitude: 11.5, Validity: "A"}
	sess, err := s.CreateSession(ctx, r2.Vec{X: 1, Y: 2}, 0.5, anchor, start)
	require.NoError(t, err)

	_, err = uuid.Parse(sess.ID)
	require.NoError(t, err)
	assert.True(t, sess.Active())

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(sess, got); diff != "" {
		t.Errorf("session round trip (-want +got):\n%s", diff)
	}

	stop := start.Add(90 * time.Second)
	require.NoError(t, s.StopSession(ctx, sess.ID, stop, 12.5))

	got, err = s.Session(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StoppedAt)
	assert.True(t, stop.Equal(*got.StoppedAt))
	assert.Equal(t, 12.5, got.TotalDistance)
	assert.False(t, got.Active())
}

func TestSessionNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Session(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.StopSession(ctx, "missing", time.Now(), 0), ErrNotFound)
	assert.ErrorIs(t, s.SetAnchor(ctx, "missing", gps.Fix{}), ErrNotFound)

	_, err = s.TrailPoints(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	empty, err := s.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older, err := s.CreateSession(ctx, r2.Vec{}, 0, nil, t0)
	require.NoError(t, err)
	newer, err := s.CreateSession(ctx, r2.Vec{}, 0, nil, t0.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, s.SetAnchor(ctx, older.ID, gps.Fix{Latitude: 1}))

	list, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	require.NotNil(t, list[1].Anchor)
	assert.Equal(t, 1.0, list[1].Anchor.Latitude)
	assert.Nil(t, list[0].Anchor)
}

func TestTrailPoints(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess, err := s.CreateSession(ctx, r2.Vec{}, 0, nil, time.Now())
	require.NoError(t, err)

	var want []deadreckoning.TrailPoint
	for i := 0; i < 10; i++ {
		p := deadreckoning.TrailPoint{X: float64(i), Y: -float64(i), Heading: 0.1, Speed: 1, Timestamp: float64(i) / 10}
		want = append(want, p)
		require.NoError(t, s.AppendTrailPoint(ctx, sess.ID, i, p))
	}

	got, err := s.TrailPoints(ctx, sess.ID, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trail (-want +got):\n%s", diff)
	}

	short, err := s.TrailPoints(ctx, sess.ID, 4)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(short), 4)
	assert.Equal(t, want[9], short[len(short)-1])

	assert.Error(t, s.AppendTrailPoint(ctx, sess.ID, 3, want[3]), "duplicate sequence")
	assert.Error(t, s.AppendTrailPoint(ctx, "missing", 0, want[0]), "foreign key")
}

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	sess, err := s.CreateSession(ctx, r2.Vec{}, 0, nil, time.Now())
	require.NoError(t, err)
	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}
