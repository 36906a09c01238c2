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
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"layoutalign/internal/align"
	"layoutalign/internal/config"
	"layoutalign/internal/crash"
	"layoutalign/internal/export"
	"layoutalign/internal/finder"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
	"layoutalign/internal/present"
	"layoutalign/internal/resolve"
	"layoutalign/internal/version"
	"layoutalign/internal/workspace"
)

// Run starts the desktop host. scenePath may be empty; the user then opens
// a scene from the toolbar.
func Run(scenePath string) error {
	cfg, password, cerr := config.Load()
	applog.Init(cfg.Logging.LogOptions())
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))
	if cerr != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", cerr))
		cfg = config.Defaults()
	}

	var h *layout.Handle
	defer crash.RecoverCurrent(func() *layout.Handle { return h })

	fyneApp := app.NewWithID("layoutalign")
	w := fyneApp.NewWindow("LayoutAlign")
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1100), 640)
	winH := max(prefs.IntWithFallback("window.height", 760), 480)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))
	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})

	sc := NewSceneCanvas()
	dp := newDockPanel(w, sc)
	status := widget.NewLabel("Open a scene to start")

	var ws *workspace.Workspace
	openScene := func(path string) error {
		nw, err := workspace.Open(context.Background(), path, workspace.Options{
			Config:     cfg,
			Password:   password,
			Presenters: []present.Presenter{dp},
		})
		if err != nil {
			return err
		}
		if ws != nil {
			_ = ws.Close()
		}
		ws = nw
		h = ws.Handle
		dp.dock = ws.Dock
		sc.SetView(ws.View())
		dp.refresh()
		w.SetTitle("LayoutAlign - " + filepath.Base(ws.Handle.Path))
		status.SetText("Opened " + ws.Handle.Path)
		return nil
	}
	handle := func(c align.Changes) {
		if ws != nil {
			ws.Session.Handle(c)
		}
	}

	sc.OnMove = func(p geom.DPoint) {
		if ws != nil {
			ws.Session.Move(p)
		}
	}
	sc.OnClick = func(p geom.DPoint, b align.Buttons) {
		if ws != nil {
			ws.Session.Click(p, b)
		}
	}
	dp.onAligned = func(res resolve.Result) {
		sc.Fit()
		status.SetText(fmt.Sprintf("Aligned %d object(s) by %s", res.Applied, res.Snapped))
	}

	alignBtn := widget.NewButton("Align", func() {
		if ws == nil {
			dialog.ShowInformation("Align", "No scene open.", w)
			return
		}
		ws.Session.Activate(sc.Visible())
		status.SetText(ws.Dock.Hint)
	})
	openBtn := widget.NewButton("Open…", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			if err := openScene(path); err != nil {
				dialog.ShowError(err, w)
			}
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".json"}))
		fd.Show()
	})
	saveBtn := widget.NewButton("Save", func() {
		if ws == nil {
			dialog.ShowInformation("Save", "No scene open.", w)
			return
		}
		if err := ws.Save(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved " + ws.Handle.Path)
	})
	undoBtn := widget.NewButton("Undo", func() {
		if ws == nil {
			return
		}
		if name, ok := ws.View().Undo(); ok {
			sc.Fit()
			status.SetText("Undid " + name)
			return
		}
		status.SetText("Nothing to undo")
	})
	redoBtn := widget.NewButton("Redo", func() {
		if ws == nil {
			return
		}
		if name, ok := ws.View().Redo(); ok {
			sc.Fit()
			status.SetText("Redid " + name)
			return
		}
		status.SetText("Nothing to redo")
	})
	snapBtn := widget.NewButton("Export PNG", func() {
		if ws == nil {
			dialog.ShowInformation("Export PNG", "No scene open.", w)
			return
		}
		out := strings.TrimSuffix(ws.Handle.Path, layout.SceneExt) + ".png"
		d := export.Collect(ws.View(), ws.Markers())
		if err := export.WritePNG(out, d, export.Options{Width: 1600, Labels: true}); err != nil {
			dialog.ShowError(err, w)
			return
		}
		dialog.ShowInformation("Export PNG", "Exported to "+out, w)
	})

	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape && ws != nil && ws.Tool.State() != align.StateInactive {
			handle(ws.Tool.Deactivate())
		}
	})

	toolbar := container.NewHBox(openBtn, saveBtn, widget.NewSeparator(), alignBtn, undoBtn, redoBtn, widget.NewSeparator(), snapBtn)
	side := container.NewVBox(widget.NewLabel("Align"), widget.NewSeparator())
	for _, lbl := range dp.labels {
		side.Add(lbl)
	}
	content := container.NewBorder(toolbar, status, nil, side, sc)
	w.SetContent(content)

	if strings.TrimSpace(scenePath) != "" {
		if err := openScene(scenePath); err != nil {
			l.Error("open scene failed", slog.Any("err", err))
			return err
		}
	}
	w.ShowAndRun()
	if ws != nil {
		return ws.Close()
	}
	return nil
}

// dockPanel mirrors the session dock into labels and the canvas markers.
// It runs after the dock in the presenter chain, so the dock is current.
type dockPanel struct {
	w         fyne.Window
	canvas    *SceneCanvas
	dock      *present.Dock
	labels    [4]*widget.Label
	onAligned func(resolve.Result)
}

func newDockPanel(w fyne.Window, sc *SceneCanvas) *dockPanel {
	dp := &dockPanel{w: w, canvas: sc}
	for i := range dp.labels {
		dp.labels[i] = widget.NewLabel("")
	}
	return dp
}

func (p *dockPanel) refresh() {
	if p.dock == nil {
		return
	}
	for i, line := range p.dock.Lines() {
		if i < len(p.labels) {
			p.labels[i].SetText(line)
		}
	}
}

func (p *dockPanel) StateChanged(align.State)            { p.refresh() }
func (p *dockPanel) PreSelectionChanged([]layout.Object) { p.refresh() }
func (p *dockPanel) SourceChanged(*finder.Feature)       { p.refresh() }
func (p *dockPanel) ShowHint(string)                     {}
func (p *dockPanel) ReleaseMouse()                       {}
func (p *dockPanel) RequestDeactivate()                  {}

func (p *dockPanel) SetMarkers(align.Slot, []present.Marker) {
	p.refresh()
	p.canvas.SetMarkers(p.dock.AllMarkers())
}

func (p *dockPanel) ClearMarkers(align.Slot) {
	p.refresh()
	p.canvas.SetMarkers(p.dock.AllMarkers())
}

func (p *dockPanel) Warn(title, text string) { dialog.ShowInformation(title, text, p.w) }

func (p *dockPanel) Aligned(res resolve.Result) {
	if p.onAligned != nil {
		p.onAligned(res)
	}
}
