// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package render draws navigation trails as PNG images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/relabs-tech/inertial_nav/internal/deadreckoning"
)

var (
	colorBackground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorGrid       = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	colorTrail      = color.RGBA{0x1f, 0x6f, 0xd0, 0xff}
	colorOrigin     = color.RGBA{0x20, 0xa0, 0x40, 0xff}
	colorCurrent    = color.RGBA{0xd0, 0x30, 0x30, 0xff}
	colorText       = color.RGBA{0x20, 0x20, 0x20, 0xff}
)

// Options controls the output image.
type Options struct {
	Width, Height int
	Padding       int     // pixels kept free around the trail
	GridMeters    float64 // grid spacing; 0 disables the grid
	Title         string
}

func DefaultOptions() Options {
	return Options{Width: 640, Height: 480, Padding: 40, GridMeters: 1}
}

// Trail draws points (world metres, x east, y north) with the origin and,
// when snap is non-nil, the current position, heading and a text overlay.
func Trail(w io.Writer, points []deadreckoning.TrailPoint, origin r2.Vec, snap *deadreckoning.Snapshot, opts Options) error {
	img, err := Image(points, origin, snap, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode trail png: %w", err)
	}
	return nil
}

// Image renders the trail without encoding it.
func Image(points []deadreckoning.TrailPoint, origin r2.Vec, snap *deadreckoning.Snapshot, opts Options) (*image.RGBA, error) {
	if opts.Width <= 2*opts.Padding || opts.Height <= 2*opts.Padding {
		return nil, fmt.Errorf("image %dx%d too small for padding %d", opts.Width, opts.Height, opts.Padding)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	pr := newProjection(points, origin, snap, opts)

	if opts.GridMeters > 0 {
		drawGrid(img, pr, opts.GridMeters)
	}

	for i := 1; i < len(points); i++ {
		a := pr.toPixel(points[i-1].X, points[i-1].Y)
		b := pr.toPixel(points[i].X, points[i].Y)
		drawLine(img, a, b, colorTrail)
	}

	drawDot(img, pr.toPixel(origin.X, origin.Y), 4, colorOrigin)

	lines := []string{}
	if opts.Title != "" {
		lines = append(lines, opts.Title)
	}
	if snap != nil {
		p := pr.toPixel(snap.Position.X, snap.Position.Y)
		drawDot(img, p, 4, colorCurrent)
		s, c := math.Sincos(snap.Heading)
		tip := image.Point{X: p.X + int(math.Round(18*c)), Y: p.Y - int(math.Round(18*s))}
		drawLine(img, p, tip, colorCurrent)

		state := "moving"
		if snap.Stationary {
			state = "stationary"
		}
		lines = append(lines,
			fmt.Sprintf("x=%.2fm y=%.2fm", snap.Position.X, snap.Position.Y),
			fmt.Sprintf("hdg=%.1fdeg v=%.2fm/s %s", snap.HeadingDegrees, snap.Speed, state),
			fmt.Sprintf("dist=%.2fm samples=%d", snap.TotalDistance, snap.SampleCount),
		)
	}
	lines = append(lines, fmt.Sprintf("scale %.2f px/m", pr.scale))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colorText),
		Face: basicfont.Face7x13,
	}
	for i, l := range lines {
		drawer.Dot = fixed.P(6, 14+13*i)
		drawer.DrawString(l)
	}

	return img, nil
}

// projection maps world metres to pixels with equal x/y scale, north up.
type projection struct {
	minX, maxY float64
	scale      float64
	offX, offY int
}

func newProjection(points []deadreckoning.TrailPoint, origin r2.Vec, snap *deadreckoning.Snapshot, opts Options) projection {
	minX, maxX := origin.X, origin.X
	minY, maxY := origin.Y, origin.Y
	extend := func(x, y float64) {
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	for _, p := range points {
		extend(p.X, p.Y)
	}
	if snap != nil {
		extend(snap.Position.X, snap.Position.Y)
	}

	// At least 2 m across so a stationary trail is not blown up.
	spanX := math.Max(maxX-minX, 2)
	spanY := math.Max(maxY-minY, 2)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	minX, maxY = cx-spanX/2, cy+spanY/2

	usableW := float64(opts.Width - 2*opts.Padding)
	usableH := float64(opts.Height - 2*opts.Padding)
	scale := math.Min(usableW/spanX, usableH/spanY)

	return projection{
		minX:  minX,
		maxY:  maxY,
		scale: scale,
		offX:  opts.Padding + int((usableW-spanX*scale)/2),
		offY:  opts.Padding + int((usableH-spanY*scale)/2),
	}
}

func (p projection) toPixel(x, y float64) image.Point {
	return image.Point{
		X: p.offX + int(math.Round((x-p.minX)*p.scale)),
		Y: p.offY + int(math.Round((p.maxY-y)*p.scale)),
	}
}

func (p projection) toWorld(px, py int) (float64, float64) {
	return p.minX + float64(px-p.offX)/p.scale, p.maxY - float64(py-p.offY)/p.scale
}

func drawGrid(img *image.RGBA, pr projection, step float64) {
	b := img.Bounds()
	x0, y0 := pr.toWorld(b.Min.X, b.Max.Y)
	x1, y1 := pr.toWorld(b.Max.X, b.Min.Y)
	if (x1-x0)/step > 500 || (y1-y0)/step > 500 {
		return
	}
	for x := math.Ceil(x0/step) * step; x <= x1; x += step {
		px := pr.toPixel(x, 0).X
		drawLine(img, image.Point{X: px, Y: b.Min.Y}, image.Point{X: px, Y: b.Max.Y - 1}, colorGrid)
	}
	for y := math.Ceil(y0/step) * step; y <= y1; y += step {
		py := pr.toPixel(0, y).Y
		drawLine(img, image.Point{X: b.Min.X, Y: py}, image.Point{X: b.Max.X - 1, Y: py}, colorGrid)
	}
}

// drawLine is Bresenham; pixels outside the image are dropped.
func drawLine(img *image.RGBA, a, b image.Point, c color.RGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(a.X, a.Y, c)
		if a == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func drawDot(img *image.RGBA, p image.Point, r int, c color.RGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.SetRGBA(p.X+x, p.Y+y, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
