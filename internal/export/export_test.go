/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"layoutalign/internal/align"
	"layoutalign/internal/finder"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	"layoutalign/internal/present"
)

func sampleView(t *testing.T) *layout.View {
	t.Helper()
	l := layout.New(0.001)
	l.AddLayer(layout.LayerInfo{Layer: 1, Name: "metal1"})
	l.AddLayer(layout.LayerInfo{Layer: 2, Name: "via"})
	top := l.MustCell("TOP")
	sub := l.MustCell("SUB")
	sub.AddBox(0, geom.NewBox(0, 0, 200, 100))
	top.MustPlace(sub, geom.Translation(geom.V(1000, 0)))
	top.AddBox(1, geom.NewBox(0, 0, 500, 500))
	top.AddText(0, "pad<1>", geom.P(10, 10))
	v := layout.NewView(l, top)
	v.AddAnnotation(layout.Annotation{Outline: layout.OutlineRuler, Points: []geom.DPoint{{X: 0, Y: 0.6}, {X: 1.2, Y: 0.6}}})
	return v
}

func sampleMarkers() []present.Marker {
	snap := geom.P(500, 250)
	f := &finder.Feature{Edge: geom.E(500, 500, 500, 0), SearchBox: geom.NewBox(490, 240, 510, 260), SnapPoint: &snap}
	return present.PreviewMarkers(f, align.Scale{PixelsPerDBU: 1, DBU: 0.001}, align.DefaultOptions())
}

func TestCollectFlattensVisibleGeometry(t *testing.T) {
	v := sampleView(t)
	d := Collect(v, nil)
	if len(d.Polygons) != 2 {
		t.Fatalf("polygons = %d", len(d.Polygons))
	}
	if len(d.Frames) != 1 || d.Frames[0].Label != "SUB" {
		t.Fatalf("frames = %v", d.Frames)
	}
	if d.Frames[0].Box.Left < 0.999 || d.Frames[0].Box.Left > 1.001 {
		t.Fatalf("frame not placed in top coordinates: %v", d.Frames[0].Box)
	}
	if len(d.Labels) != 1 || d.Labels[0].Text != "pad<1>" || len(d.Rulers) != 1 {
		t.Fatalf("labels = %v rulers = %v", d.Labels, d.Rulers)
	}
	if d.Bounds.Right < 1.199 || d.Bounds.Top < 0.499 {
		t.Fatalf("bounds = %v", d.Bounds)
	}

	sub, _ := v.Layout.Cell("SUB")
	v.SetCellHidden(sub, true)
	if err := v.SetLayerVisible(1, false); err != nil {
		t.Fatalf("layer: %v", err)
	}
	d = Collect(v, nil)
	if len(d.Polygons) != 0 || len(d.Frames) != 0 {
		t.Fatalf("hidden geometry drawn: %v %v", d.Polygons, d.Frames)
	}
}

func TestWriteFormats(t *testing.T) {
	d := Collect(sampleView(t), sampleMarkers())
	dir := t.TempDir()
	for _, name := range []string{"snap.png", "snap.svg", "snap.pdf"} {
		p := filepath.Join(dir, "out", name)
		if err := Write(p, d, Options{Width: 320, Labels: true}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		st, err := os.Stat(p)
		if err != nil || st.Size() == 0 {
			t.Fatalf("%s: empty output (%v)", name, err)
		}
	}
	if err := Write(filepath.Join(dir, "snap.gds"), d, Options{}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestRenderPNGSize(t *testing.T) {
	d := Collect(sampleView(t), sampleMarkers())
	img := RenderPNG(d, Options{Width: 240, Margin: 10})
	if img.Bounds().Dx() != 240 || img.Bounds().Dy() <= 20 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if img.RGBAAt(0, 0).R != 255 {
		t.Fatalf("background not white")
	}
}

func TestRenderSVGContent(t *testing.T) {
	d := Collect(sampleView(t), sampleMarkers())
	b, err := RenderSVG(d, Options{Labels: true})
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	s := string(b)
	for _, want := range []string{"<polygon class=\"layer-0\"", "marker-edge", "marker-search_box", "stroke-dasharray", "pad&lt;1&gt;", ">SUB<"} {
		if !strings.Contains(s, want) {
			t.Fatalf("svg misses %q", want)
		}
	}
}

func TestMarkersOnlyDrawing(t *testing.T) {
	d := Drawing{Markers: sampleMarkers()}
	d.Bounds = markerBounds(d.Markers)
	if d.Bounds.Left > 0.491 || d.Bounds.Right < 0.509 {
		t.Fatalf("marker bounds = %v", d.Bounds)
	}
	if pdf := NewPDF(d, Options{}); pdf.Err() {
		t.Fatalf("pdf: %v", pdf.Error())
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	b := geom.DBox{Left: -1, Bottom: 0, Right: 3, Top: 2}
	p := NewProjection(b, Options{Width: 216, Margin: 8})
	if got := p.PixelsPerMicron(); got != 50 {
		t.Fatalf("scale: got %v want 50", got)
	}
	w, h := p.Size()
	if w != 216 || h != 116 {
		t.Fatalf("size: got %dx%d", w, h)
	}
	x, y := p.ToPixels(geom.DPoint{X: -1, Y: 2})
	if x != 8 || y != 8 {
		t.Fatalf("top-left corner at (%v,%v)", x, y)
	}
	back := p.ToMicrons(58, 58)
	if back.X != 0 || back.Y != 1 {
		t.Fatalf("inverse: got %v", back)
	}
}
