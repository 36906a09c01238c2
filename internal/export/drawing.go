/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


// Package export renders a scene snapshot with its alignment markers to
// PNG, SVG or PDF.
package export

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	"layoutalign/internal/present"
)

// Polygon is a flattened shape in microns.
type Polygon struct {
	Layer  int
	Points []geom.DPoint
}

// Frame is the bounding box of a top level instance.
type Frame struct {
	Label string
	Box   geom.DBox
}

// Label is a text shape of the top cell.
type Label struct {
	Text string
	At   geom.DPoint
}

// Drawing is a display list in microns, independent of the output format.
type Drawing struct {
	Bounds   geom.DBox
	Polygons []Polygon
	Frames   []Frame
	Labels   []Label
	Rulers   [][]geom.DPoint
	Markers  []present.Marker
}

// Collect flattens the visible part of v. Hidden cells and layers are
// skipped and the hierarchy is cut at the view's maximum level.
func Collect(v *layout.View, markers []present.Marker) Drawing {
	dbu := v.DBU()
	d := Drawing{Markers: markers}
	top := v.TopCell()
	if top == nil || v.CellHidden(top) {
		d.Bounds = markerBounds(markers)
		return d
	}
	bbox := top.BBox()
	q := bbox.Enlarged(1)
	_, maxLevel := v.HierarchyLevels()

	hidden := func(path []*layout.Instance, c *layout.Cell) bool {
		if v.CellHidden(c) {
			return true
		}
		for _, in := range path {
			if v.CellHidden(in.Cell) {
				return true
			}
		}
		return false
	}

	for _, layer := range v.VisibleLayers() {
		for hit := range v.Shapes(layer, q, 0, max(maxLevel, 0)) {
			pg, ok := hit.Shape.AsPolygon()
			if !ok || hidden(hit.Path, hit.Shape.Owner()) {
				continue
			}
			pts := make([]geom.DPoint, 0, len(pg.Hull))
			for _, p := range pg.Transformed(hit.Trans).Hull {
				pts = append(pts, p.ToMicrons(dbu))
			}
			d.Polygons = append(d.Polygons, Polygon{Layer: layer, Points: pts})
		}
		for _, s := range top.Shapes(layer) {
			if s.Kind == layout.KindText {
				d.Labels = append(d.Labels, Label{Text: s.Text, At: s.At.ToMicrons(dbu)})
			}
		}
	}
	if maxLevel >= 1 {
		for hit := range v.Instances(q, 0, 0) {
			if hidden(hit.Path, hit.Inst.Cell) {
				continue
			}
			d.Frames = append(d.Frames, Frame{Label: hit.Inst.Cell.Name, Box: hit.TopBBox().ToMicrons(dbu)})
		}
	}
	for _, a := range v.Annotations() {
		if len(a.Points) == 0 {
			continue
		}
		if a.Outline == layout.OutlineBox {
			b := a.Box()
			d.Rulers = append(d.Rulers, []geom.DPoint{
				{X: b.Left, Y: b.Bottom}, {X: b.Left, Y: b.Top}, {X: b.Right, Y: b.Top}, {X: b.Right, Y: b.Bottom}, {X: b.Left, Y: b.Bottom},
			})
			continue
		}
		d.Rulers = append(d.Rulers, a.Points)
	}

	d.Bounds = bbox.ToMicrons(dbu)
	if bbox.Empty() {
		d.Bounds = markerBounds(markers)
	} else if len(markers) > 0 {
		d.Bounds = unionD(d.Bounds, markerBounds(markers))
	}
	return d
}

func markerBounds(ms []present.Marker) geom.DBox {
	b := geom.DBox{Left: 0, Bottom: 0, Right: 1, Top: 1}
	for i, m := range ms {
		mb := m.Box
		if m.Kind == present.MarkerEdge {
			mb = geom.DBox{
				Left: math.Min(m.Edge.P1.X, m.Edge.P2.X), Bottom: math.Min(m.Edge.P1.Y, m.Edge.P2.Y),
				Right: math.Max(m.Edge.P1.X, m.Edge.P2.X), Top: math.Max(m.Edge.P1.Y, m.Edge.P2.Y),
			}
		}
		if i == 0 {
			b = mb
			continue
		}
		b = unionD(b, mb)
	}
	return b
}

func unionD(a, b geom.DBox) geom.DBox {
	return geom.DBox{
		Left: math.Min(a.Left, b.Left), Bottom: math.Min(a.Bottom, b.Bottom),
		Right: math.Max(a.Right, b.Right), Top: math.Max(a.Top, b.Top),
	}
}

// Options controls the output size and decorations.
type Options struct {
	// Width of the output in pixels (PNG, SVG) or points (PDF). Default 800.
	Width int
	// Margin around the drawing in the same unit. Default 16.
	Margin float64
	// Labels draws cell names and text shapes.
	Labels bool
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Margin <= 0 {
		o.Margin = 16
	}
	return o
}

// frame maps microns onto an output canvas with the y axis pointing down.
type frame struct {
	scale         float64
	left, top     float64
	margin        float64
	width, height int
}

func newFrame(b geom.DBox, o Options) frame {
	w, h := b.Width(), b.Height()
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	inner := float64(o.Width) - 2*o.Margin
	if inner < 1 {
		inner = 1
	}
	s := inner / w
	return frame{
		scale:  s,
		left:   b.Left,
		top:    b.Top,
		margin: o.Margin,
		width:  o.Width,
		height: int(math.Ceil(h*s + 2*o.Margin)),
	}
}

func (f frame) pt(p geom.DPoint) (float64, float64) {
	return f.margin + (p.X-f.left)*f.scale, f.margin + (f.top-p.Y)*f.scale
}

func (f frame) rect(b geom.DBox) (x, y, w, h float64) {
	x, y = f.pt(geom.DPoint{X: b.Left, Y: b.Top})
	return x, y, b.Width() * f.scale, b.Height() * f.scale
}

// Projection maps between microns and the pixels of a rendered drawing.
type Projection struct{ f frame }

// NewProjection returns the mapping RenderPNG uses for a drawing with
// bounds b.
func NewProjection(b geom.DBox, o Options) Projection {
	return Projection{f: newFrame(b, o.withDefaults())}
}

func (p Projection) ToPixels(pt geom.DPoint) (x, y float64) { return p.f.pt(pt) }

func (p Projection) ToMicrons(x, y float64) geom.DPoint {
	return geom.DPoint{
		X: p.f.left + (x-p.f.margin)/p.f.scale,
		Y: p.f.top - (y-p.f.margin)/p.f.scale,
	}
}

// PixelsPerMicron is the magnification a view needs to match the image.
func (p Projection) PixelsPerMicron() float64 { return p.f.scale }

func (p Projection) Size() (width, height int) { return p.f.width, p.f.height }

var palette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

func layerColor(layer int) color.RGBA { return palette[((layer%len(palette))+len(palette))%len(palette)] }

var (
	black       = color.RGBA{A: 0xff}
	markerColor = color.RGBA{R: 0xe0, A: 0xff}
	rulerColor  = color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xff}
)

func hexColor(c color.RGBA) string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// Write renders d into path; the format follows the file extension.
func Write(path string, d Drawing, o Options) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return WritePNG(path, d, o)
	case ".svg":
		return WriteSVG(path, d, o)
	case ".pdf":
		return WritePDF(path, d, o)
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
}
