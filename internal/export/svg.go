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
	"fmt"
	"os"
	"strings"

	"layoutalign/internal/geom"
	"layoutalign/internal/present"
)

// RenderSVG builds the SVG document for d. Coordinates are output pixels.
func RenderSVG(d Drawing, o Options) ([]byte, error) {
	o = o.withDefaults()
	f := newFrame(d.Bounds, o)

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %d %d\">\n", f.width, f.height, f.width, f.height)
	wf("  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" fill=\"#ffffff\"/>\n", f.width, f.height)

	for _, p := range d.Polygons {
		c := hexColor(layerColor(p.Layer))
		wf("  <polygon class=\"layer-%d\" points=\"%s\" fill=\"%s\" fill-opacity=\"0.33\" stroke=\"%s\" stroke-width=\"1\"/>\n", p.Layer, svgPoints(f, p.Points), c, c)
	}
	for _, fr := range d.Frames {
		x, y, w, h := f.rect(fr.Box)
		wf("  <rect class=\"instance\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"#000\" stroke-width=\"1\"/>\n", x, y, w, h)
	}
	for _, r := range d.Rulers {
		wf("  <polyline class=\"ruler\" points=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"1\"/>\n", svgPoints(f, r), hexColor(rulerColor))
	}
	mc := hexColor(markerColor)
	for _, m := range d.Markers {
		switch m.Kind {
		case present.MarkerEdge:
			x0, y0 := f.pt(m.Edge.P1)
			x1, y1 := f.pt(m.Edge.P2)
			wf("  <line class=\"marker-edge\" x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\" stroke=\"%s\" stroke-width=\"%d\"/>\n", x0, y0, x1, y1, mc, m.LineWidth+1)
		default:
			x, y, w, h := f.rect(m.Box)
			dash := ""
			if m.LineStyle == 2 {
				dash = " stroke-dasharray=\"4 4\""
			}
			wf("  <rect class=\"marker-%s\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"%d\"%s/>\n", m.Kind, x, y, w, h, mc, m.LineWidth, dash)
		}
	}
	if o.Labels {
		for _, fr := range d.Frames {
			x, y := f.pt(geom.DPoint{X: fr.Box.Left, Y: fr.Box.Top})
			wf("  <text x=\"%g\" y=\"%g\" font-family=\"monospace\" font-size=\"12\" fill=\"#000\">%s</text>\n", x+2, y+12, escText(fr.Label))
		}
		for _, l := range d.Labels {
			x, y := f.pt(l.At)
			wf("  <text x=\"%g\" y=\"%g\" font-family=\"monospace\" font-size=\"12\" fill=\"#000\">%s</text>\n", x, y, escText(l.Text))
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

// WriteSVG renders d into an SVG file.
func WriteSVG(path string, d Drawing, o Options) error {
	b, err := RenderSVG(d, o)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func svgPoints(f frame, pts []geom.DPoint) string {
	parts := make([]string, 0, len(pts))
	for _, p := range pts {
		x, y := f.pt(p)
		parts = append(parts, fmt.Sprintf("%g,%g", x, y))
	}
	return strings.Join(parts, " ")
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
