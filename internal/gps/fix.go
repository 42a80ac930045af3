// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
// A fix labels where a navigation session started; it is never fed into
// the dead-reckoning estimate.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "2025-12-06"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	AltitudeM  float64 `json:"alt_m"`       // from GGA
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void), etc.
	Quality    string  `json:"quality"`     // GGA fix quality
	Satellites int64   `json:"satellites"`
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool { return f.Validity == nmea.ValidRMC }

// ErrNotNMEA is returned for lines that do not start with '$'.
var ErrNotNMEA = errors.New("gps: not an NMEA sentence")

// Assembler accumulates NMEA sentences into a Fix. RMC completes a fix;
// GGA contributes altitude, quality and satellite count.
type Assembler struct {
	current Fix
}

// Feed parses one line. It returns the current fix and true when the line
// was an RMC sentence.
func (a *Assembler) Feed(line string) (Fix, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, false, ErrNotNMEA
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false, fmt.Errorf("gps: parse %q: %w", line, err)
	}

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		a.current.Time = formatTime(m.Time)
		a.current.Date = formatDate(m.Date)
		a.current.Latitude = m.Latitude
		a.current.Longitude = m.Longitude
		a.current.SpeedKnots = m.Speed
		a.current.CourseDeg = m.Course
		a.current.Validity = string(m.Validity)
		return a.current, true, nil

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		a.current.Latitude = m.Latitude
		a.current.Longitude = m.Longitude
		a.current.AltitudeM = m.Altitude
		a.current.Quality = m.FixQuality
		a.current.Satellites = m.NumSatellites
	}
	return a.current, false, nil
}

func formatTime(t nmea.Time) string {
	if !t.Valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func formatDate(d nmea.Date) string {
	if !d.Valid {
		return ""
	}
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, d.MM, d.DD)
}
