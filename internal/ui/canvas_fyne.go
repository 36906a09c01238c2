//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"layoutalign/internal/align"
	"layoutalign/internal/export"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	"layoutalign/internal/present"
)

// SceneCanvas shows a layout view with the tool's preview markers and
// reports pointer events in microns.
type SceneCanvas struct {
	widget.BaseWidget

	view    *layout.View
	bounds  geom.DBox
	markers []present.Marker
	proj    export.Projection

	OnMove  func(p geom.DPoint)
	OnClick func(p geom.DPoint, b align.Buttons)
}

var (
	_ desktop.Hoverable = (*SceneCanvas)(nil)
	_ desktop.Mouseable = (*SceneCanvas)(nil)
)

func NewSceneCanvas() *SceneCanvas {
	c := &SceneCanvas{bounds: geom.DBox{Right: 1, Top: 1}}
	c.ExtendBaseWidget(c)
	return c
}

// SetView shows v fitted to the widget and drops stale markers.
func (c *SceneCanvas) SetView(v *layout.View) {
	c.view = v
	c.markers = nil
	c.Fit()
}

// Fit frames the top cell with a small border. Bounds stay fixed while
// markers come and go so the picture does not jump under the cursor.
func (c *SceneCanvas) Fit() {
	if c.view == nil {
		return
	}
	b := export.Collect(c.view, nil).Bounds
	dx, dy := b.Width()*0.05, b.Height()*0.05
	c.bounds = geom.DBox{Left: b.Left - dx, Bottom: b.Bottom - dy, Right: b.Right + dx, Top: b.Top + dy}
	c.Refresh()
}

func (c *SceneCanvas) SetMarkers(ms []present.Marker) {
	c.markers = ms
	c.Refresh()
}

func (c *SceneCanvas) renderOptions(size fyne.Size) export.Options {
	return export.Options{Width: int(size.Width), Labels: true}
}

// project recomputes the pixel mapping for size and keeps the view's zoom
// in step with it, so search radii in pixels match what the user sees.
func (c *SceneCanvas) project(size fyne.Size) {
	c.proj = export.NewProjection(c.bounds, c.renderOptions(size))
	if c.view != nil {
		c.view.SetMagnification(c.proj.PixelsPerMicron())
	}
}

func (c *SceneCanvas) toMicrons(pos fyne.Position) geom.DPoint {
	return c.proj.ToMicrons(float64(pos.X), float64(pos.Y))
}

func (c *SceneCanvas) MouseIn(e *desktop.MouseEvent) { c.MouseMoved(e) }
func (c *SceneCanvas) MouseOut()                     {}
func (c *SceneCanvas) MouseUp(*desktop.MouseEvent)   {}

func (c *SceneCanvas) MouseMoved(e *desktop.MouseEvent) {
	if c.OnMove != nil && c.view != nil {
		c.OnMove(c.toMicrons(e.Position))
	}
}

func (c *SceneCanvas) MouseDown(e *desktop.MouseEvent) {
	b := buttonsOf(e.Button)
	if b == 0 || c.OnClick == nil || c.view == nil {
		return
	}
	c.OnClick(c.toMicrons(e.Position), b)
}

func buttonsOf(b desktop.MouseButton) align.Buttons {
	switch b {
	case desktop.MouseButtonPrimary:
		return align.ButtonLeft
	case desktop.MouseButtonTertiary:
		return align.ButtonMiddle
	case desktop.MouseButtonSecondary:
		return align.ButtonRight
	default:
		return 0
	}
}

func (c *SceneCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 250, G: 250, B: 250, A: 255})
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScalePixels
	r := &sceneRenderer{c: c, bg: bg, img: img}
	r.objects = []fyne.CanvasObject{bg, img}
	return r
}

type sceneRenderer struct {
	c       *SceneCanvas
	bg      *canvas.Rectangle
	img     *canvas.Image
	objects []fyne.CanvasObject
}

func (r *sceneRenderer) Destroy()                     {}
func (r *sceneRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *sceneRenderer) MinSize() fyne.Size           { return fyne.NewSize(480, 360) }
func (r *sceneRenderer) Refresh()                     { r.Layout(r.c.Size()); canvas.Refresh(r.c) }

func (r *sceneRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	r.c.project(size)
	if r.c.view == nil {
		r.img.Hide()
		return
	}
	d := export.Collect(r.c.view, r.c.markers)
	d.Bounds = r.c.bounds
	r.img.Image = export.RenderPNG(d, r.c.renderOptions(size))
	w, h := r.c.proj.Size()
	r.img.Move(fyne.NewPos(0, 0))
	r.img.Resize(fyne.NewSize(float32(w), float32(h)))
	r.img.Show()
}
