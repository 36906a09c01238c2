/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"layoutalign/internal/geom"
	"layoutalign/internal/present"
)

// RenderPNG rasterizes d into an RGBA image.
func RenderPNG(d Drawing, o Options) *image.RGBA {
	o = o.withDefaults()
	f := newFrame(d.Bounds, o)
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	// Background white
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	for _, p := range d.Polygons {
		c := layerColor(p.Layer)
		fill := color.RGBA{R: c.R / 3, G: c.G / 3, B: c.B / 3, A: 0x55}
		fillPolygon(img, f, p.Points, fill)
		strokePath(img, f, closed(p.Points), 1, c)
	}
	for _, fr := range d.Frames {
		strokePath(img, f, boxPath(fr.Box), 1, black)
	}
	for _, r := range d.Rulers {
		strokePath(img, f, r, 1, rulerColor)
	}
	for _, m := range d.Markers {
		drawMarker(img, f, m)
	}
	if o.Labels {
		face := basicfont.Face7x13
		for _, fr := range d.Frames {
			x, y := f.pt(geom.DPoint{X: fr.Box.Left, Y: fr.Box.Top})
			drawText(img, face, x+2, y+12, fr.Label)
		}
		for _, l := range d.Labels {
			x, y := f.pt(l.At)
			drawText(img, face, x, y, l.Text)
		}
	}
	return img
}

// WritePNG renders d and encodes it to path.
func WritePNG(path string, d Drawing, o Options) error {
	img := RenderPNG(d, o)
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

func closed(pts []geom.DPoint) []geom.DPoint {
	if len(pts) == 0 {
		return nil
	}
	return append(append([]geom.DPoint(nil), pts...), pts[0])
}

func boxPath(b geom.DBox) []geom.DPoint {
	return []geom.DPoint{
		{X: b.Left, Y: b.Bottom}, {X: b.Left, Y: b.Top}, {X: b.Right, Y: b.Top},
		{X: b.Right, Y: b.Bottom}, {X: b.Left, Y: b.Bottom},
	}
}

func fillPolygon(img *image.RGBA, f frame, pts []geom.DPoint, c color.RGBA) {
	if len(pts) < 3 {
		return
	}
	z := vector.NewRasterizer(f.width, f.height)
	for i, p := range pts {
		x, y := f.pt(p)
		if i == 0 {
			z.MoveTo(float32(x), float32(y))
			continue
		}
		z.LineTo(float32(x), float32(y))
	}
	z.ClosePath()
	z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

// strokePath draws each segment of pts as a filled quad of the given width.
func strokePath(img *image.RGBA, f frame, pts []geom.DPoint, width float64, c color.RGBA) {
	if len(pts) < 2 {
		return
	}
	z := vector.NewRasterizer(f.width, f.height)
	for i := 1; i < len(pts); i++ {
		x0, y0 := f.pt(pts[i-1])
		x1, y1 := f.pt(pts[i])
		segmentQuad(z, x0, y0, x1, y1, width)
	}
	z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

func segmentQuad(z *vector.Rasterizer, x0, y0, x1, y1, width float64) {
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	hw := width / 2
	if l == 0 {
		z.MoveTo(float32(x0-hw), float32(y0-hw))
		z.LineTo(float32(x0+hw), float32(y0-hw))
		z.LineTo(float32(x0+hw), float32(y0+hw))
		z.LineTo(float32(x0-hw), float32(y0+hw))
		z.ClosePath()
		return
	}
	nx, ny := -dy/l*hw, dx/l*hw
	z.MoveTo(float32(x0+nx), float32(y0+ny))
	z.LineTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.LineTo(float32(x0-nx), float32(y0-ny))
	z.ClosePath()
}

// dashed splits the segment a-b into dashes of dash pixels.
func dashed(f frame, a, b geom.DPoint, dash float64) [][2]geom.DPoint {
	l := a.Distance(b) * f.scale
	if l <= dash {
		return [][2]geom.DPoint{{a, b}}
	}
	var out [][2]geom.DPoint
	n := int(l / dash)
	for i := 0; i < n; i += 2 {
		t0 := float64(i) * dash / l
		t1 := math.Min(float64(i+1)*dash/l, 1)
		out = append(out, [2]geom.DPoint{lerp(a, b, t0), lerp(a, b, t1)})
	}
	return out
}

func lerp(a, b geom.DPoint, t float64) geom.DPoint {
	return geom.DPoint{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

func drawMarker(img *image.RGBA, f frame, m present.Marker) {
	w := float64(max(m.LineWidth, 1))
	switch m.Kind {
	case present.MarkerEdge:
		strokePath(img, f, []geom.DPoint{m.Edge.P1, m.Edge.P2}, w+1, markerColor)
	case present.MarkerSnapPoint:
		strokePath(img, f, boxPath(m.Box), w, markerColor)
	default:
		p := boxPath(m.Box)
		for i := 1; i < len(p); i++ {
			for _, s := range dashed(f, p[i-1], p[i], 4) {
				strokePath(img, f, s[:], w, markerColor)
			}
		}
	}
}

func drawText(img *image.RGBA, face font.Face, x, y float64, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(black),
		Face: face,
		Dot:  fixed.P(int(math.Round(x)), int(math.Round(y))),
	}
	d.DrawString(s)
}
