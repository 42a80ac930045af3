// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rmcValid = "$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70"
	rmcVoid  = "$GPRMC,220516,V,5133.82,N,00042.24,W,0.0,0.0,130694,004.2,W*62"
	gga      = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	gsv      = "$GPGSV,1,1,01,05,40,083,46*40"
)

func TestAssemblerRMC(t *testing.T) {
	var a Assembler
	fix, done, err := a.Feed(rmcValid + "\r\n")
	require.NoError(t, err)
	require.True(t, done)

	assert.Equal(t, "22:05:16", fix.Time)
	assert.Equal(t, "1994-06-13", fix.Date)
	assert.InDelta(t, 51.56367, fix.Latitude, 1e-4)
	assert.InDelta(t, -0.704, fix.Longitude, 1e-4)
	assert.InDelta(t, 173.8, fix.SpeedKnots, 1e-9)
	assert.InDelta(t, 231.8, fix.CourseDeg, 1e-9)
	assert.True(t, fix.Valid())
}

func TestAssemblerGGAThenRMC(t *testing.T) {
	var a Assembler
	_, done, err := a.Feed(gga)
	require.NoError(t, err)
	assert.False(t, done)

	_, done, err = a.Feed(gsv)
	require.NoError(t, err)
	assert.False(t, done)

	fix, done, err := a.Feed(rmcVoid)
	require.NoError(t, err)
	require.True(t, done)
	assert.False(t, fix.Valid())
	assert.InDelta(t, 545.4, fix.AltitudeM, 1e-9)
	assert.Equal(t, int64(8), fix.Satellites)
	assert.Equal(t, "1", fix.Quality)
	// RMC position overrides GGA.
	assert.InDelta(t, 51.56367, fix.Latitude, 1e-4)
}

func TestAssemblerErrors(t *testing.T) {
	var a Assembler
	_, _, err := a.Feed("garbage")
	assert.ErrorIs(t, err, ErrNotNMEA)

	_, _, err = a.Feed("$GPRMC,220516,A,5133.82,N*00")
	assert.Error(t, err)
}
