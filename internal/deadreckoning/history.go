// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package deadreckoning

// TrailPoint is one integrated sample in the position history.
type TrailPoint struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed"`
	Timestamp float64 `json:"timestamp"`
}

// Downsample keeps at most limit points, taking every ceil(n/limit)-th point
// from the oldest. The newest point is always kept so the trail ends where
// the estimator currently is. limit <= 0 returns all points.
func Downsample(points []TrailPoint, limit int) []TrailPoint {
	n := len(points)
	if limit <= 0 || n <= limit {
		out := make([]TrailPoint, n)
		copy(out, points)
		return out
	}
	stride := (n + limit - 1) / limit
	out := make([]TrailPoint, 0, limit)
	for i := 0; i < n; i += stride {
		out = append(out, points[i])
	}
	if last := points[n-1]; out[len(out)-1] != last {
		if len(out) == limit {
			out[len(out)-1] = last
		} else {
			out = append(out, last)
		}
	}
	return out
}
