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
	"image/color"

	"github.com/jung-kurt/gofpdf"

	"layoutalign/internal/geom"
	"layoutalign/internal/present"
)

// WritePDF renders d onto a single PDF page sized to the drawing. Units are
// points; Options.Width is the page width.
func WritePDF(path string, d Drawing, o Options) error {
	pdf := NewPDF(d, o)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// NewPDF builds the document without writing it.
func NewPDF(d Drawing, o Options) *gofpdf.Fpdf {
	o = o.withDefaults()
	f := newFrame(d.Bounds, o)
	size := gofpdf.SizeType{Wd: float64(f.width), Ht: float64(f.height)}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetTitle("Layout alignment snapshot", false)
	pdf.SetAuthor("LayoutAlign", false)
	pdf.SetFont("Helvetica", "", 9)
	pdf.AddPageFormat("", size)

	for _, p := range d.Polygons {
		c := layerColor(p.Layer)
		setDrawColor(pdf, c)
		pdf.SetFillColor(int(c.R)/3+170, int(c.G)/3+170, int(c.B)/3+170)
		pdf.SetLineWidth(0.5)
		pdf.Polygon(pdfPoints(f, p.Points), "FD")
	}
	setDrawColor(pdf, black)
	for _, fr := range d.Frames {
		x, y, w, h := f.rect(fr.Box)
		pdf.Rect(x, y, w, h, "D")
	}
	setDrawColor(pdf, rulerColor)
	for _, r := range d.Rulers {
		for i := 1; i < len(r); i++ {
			x0, y0 := f.pt(r[i-1])
			x1, y1 := f.pt(r[i])
			pdf.Line(x0, y0, x1, y1)
		}
	}
	setDrawColor(pdf, markerColor)
	for _, m := range d.Markers {
		pdf.SetLineWidth(float64(max(m.LineWidth, 1)))
		if m.LineStyle == 2 {
			pdf.SetDashPattern([]float64{3, 3}, 0)
		}
		switch m.Kind {
		case present.MarkerEdge:
			x0, y0 := f.pt(m.Edge.P1)
			x1, y1 := f.pt(m.Edge.P2)
			pdf.Line(x0, y0, x1, y1)
		default:
			x, y, w, h := f.rect(m.Box)
			pdf.Rect(x, y, w, h, "D")
		}
		pdf.SetDashPattern([]float64{}, 0)
	}
	if o.Labels {
		pdf.SetTextColor(0, 0, 0)
		for _, fr := range d.Frames {
			x, y := f.pt(geom.DPoint{X: fr.Box.Left, Y: fr.Box.Top})
			pdf.Text(x+2, y+10, fr.Label)
		}
		for _, l := range d.Labels {
			x, y := f.pt(l.At)
			pdf.Text(x, y, l.Text)
		}
	}
	return pdf
}

func pdfPoints(f frame, pts []geom.DPoint) []gofpdf.PointType {
	out := make([]gofpdf.PointType, 0, len(pts))
	for _, p := range pts {
		x, y := f.pt(p)
		out = append(out, gofpdf.PointType{X: x, Y: y})
	}
	return out
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}
