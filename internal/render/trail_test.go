// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
)

func TestTrailPNG(t *testing.T) {
	points := []deadreckoning.TrailPoint{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0.5}, {X: 3, Y: 2},
	}
	snap := &deadreckoning.Snapshot{
		Position: r2.Vec{X: 3, Y: 2},
		Heading:  0.5,
	}

	var buf bytes.Buffer
	require.NoError(t, Trail(&buf, points, r2.Vec{}, snap, DefaultOptions()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func TestImageMarkers(t *testing.T) {
	opts := DefaultOptions()
	opts.GridMeters = 0
	points := []deadreckoning.TrailPoint{{X: 0, Y: 0}, {X: 4, Y: 0}}
	snap := &deadreckoning.Snapshot{Position: r2.Vec{X: 4}}

	img, err := Image(points, r2.Vec{}, snap, opts)
	require.NoError(t, err)

	pr := newProjection(points, r2.Vec{}, snap, opts)
	o := pr.toPixel(0, 0)
	c := pr.toPixel(4, 0)
	assert.Less(t, o.X, c.X, "east is to the right")
	assert.Equal(t, o.Y, c.Y)

	assert.Equal(t, colorOrigin, img.RGBAAt(o.X, o.Y))
	assert.Equal(t, colorCurrent, img.RGBAAt(c.X, c.Y))
	mid := pr.toPixel(2, 0)
	assert.Equal(t, colorTrail, img.RGBAAt(mid.X, mid.Y))
}

func TestProjectionNorthUp(t *testing.T) {
	opts := DefaultOptions()
	points := []deadreckoning.TrailPoint{{X: 0, Y: 0}, {X: 0, Y: 5}}
	pr := newProjection(points, r2.Vec{}, nil, opts)

	south := pr.toPixel(0, 0)
	north := pr.toPixel(0, 5)
	assert.Less(t, north.Y, south.Y)

	x, y := pr.toWorld(north.X, north.Y)
	assert.InDelta(t, 0, x, 0.05)
	assert.InDelta(t, 5, y, 0.05)

	for _, p := range []image.Point{south, north} {
		assert.GreaterOrEqual(t, p.Y, opts.Padding)
		assert.LessOrEqual(t, p.Y, opts.Height-opts.Padding)
	}
}

func TestEmptyTrail(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Trail(&buf, nil, r2.Vec{X: 10, Y: -3}, nil, DefaultOptions()))
	assert.NotZero(t, buf.Len())
}

func TestTooSmall(t *testing.T) {
	_, err := Image(nil, r2.Vec{}, nil, Options{Width: 50, Height: 50, Padding: 30})
	assert.Error(t, err)
}
