/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package present

import (
	"log/slog"
	"slices"

	"layoutalign/internal/align"
	"layoutalign/internal/finder"
	"layoutalign/internal/layout"
	"layoutalign/internal/resolve"
)

// Dock keeps the panel texts and the live markers of a session. It is the
// model behind the desktop dock and the headless CLI session.
type Dock struct {
	PreSelection string
	Source       string
	Target       string
	SourceStatus string
	TargetStatus string
	Hint         string

	Markers  map[align.Slot][]Marker
	Warnings []align.Warning
	Results  []resolve.Result
	// Deactivations counts deactivation requests not yet served.
	Deactivations int
	MouseReleased bool
}

func NewDock() *Dock {
	return &Dock{
		PreSelection: PreSelectionText(nil),
		Source:       SourceText(nil),
		Target:       TargetText(nil),
		Markers:      map[align.Slot][]Marker{},
	}
}

func (d *Dock) StateChanged(s align.State) {
	d.SourceStatus, d.TargetStatus = StatusText(s)
	if s != align.StatePendingSelection2 {
		d.Target = TargetText(nil)
	}
}

func (d *Dock) PreSelectionChanged(objs []layout.Object) { d.PreSelection = PreSelectionText(objs) }
func (d *Dock) SourceChanged(f *finder.Feature)          { d.Source = SourceText(f) }
func (d *Dock) ShowHint(text string)                     { d.Hint = text }
func (d *Dock) Aligned(res resolve.Result)               { d.Results = append(d.Results, res) }
func (d *Dock) ReleaseMouse()                            { d.MouseReleased = true }
func (d *Dock) RequestDeactivate()                       { d.Deactivations++ }

func (d *Dock) SetMarkers(slot align.Slot, markers []Marker) {
	d.Markers[slot] = slices.Clone(markers)
	if slot == align.SlotTarget {
		for _, m := range markers {
			if m.Kind == MarkerSnapPoint {
				d.Target = "Target ref: 1 point"
				return
			}
		}
		d.Target = "Target ref: 1 edge"
	}
}

func (d *Dock) ClearMarkers(slot align.Slot) {
	delete(d.Markers, slot)
	if slot == align.SlotTarget {
		d.Target = TargetText(nil)
	}
}

func (d *Dock) Warn(title, text string) {
	d.Warnings = append(d.Warnings, align.Warning{Title: title, Text: text})
}

// AllMarkers lists the markers of both slots, source first.
func (d *Dock) AllMarkers() []Marker {
	return append(slices.Clone(d.Markers[align.SlotSource]), d.Markers[align.SlotTarget]...)
}

// Lines renders the panel as text, one row per line.
func (d *Dock) Lines() []string {
	row := func(text, status string) string {
		if status == "" {
			return text
		}
		return text + "  " + status
	}
	return []string{
		d.PreSelection,
		row(d.Source, d.SourceStatus),
		row(d.Target, d.TargetStatus),
		CancelHint,
	}
}

// LogPresenter writes every notification to a structured logger.
type LogPresenter struct {
	Log *slog.Logger
}

func (p LogPresenter) StateChanged(s align.State) {
	p.Log.Info("state", slog.String("state", s.String()))
}

func (p LogPresenter) PreSelectionChanged(objs []layout.Object) {
	p.Log.Info("pre-selection", slog.String("summary", PreSelectionText(objs)))
}

func (p LogPresenter) SourceChanged(f *finder.Feature) {
	if f == nil {
		p.Log.Info("source cleared")
		return
	}
	p.Log.Info("source", slog.String("feature", f.String()))
}

func (p LogPresenter) SetMarkers(slot align.Slot, markers []Marker) {
	p.Log.Debug("markers", slog.String("slot", slot.String()), slog.Int("count", len(markers)))
}

func (p LogPresenter) ClearMarkers(slot align.Slot) {
	p.Log.Debug("markers cleared", slog.String("slot", slot.String()))
}

func (p LogPresenter) ShowHint(text string)    { p.Log.Info("hint", slog.String("text", text)) }
func (p LogPresenter) Warn(title, text string) { p.Log.Warn(title, slog.String("text", text)) }
func (p LogPresenter) ReleaseMouse()           {}
func (p LogPresenter) RequestDeactivate()      { p.Log.Debug("deactivation requested") }

func (p LogPresenter) Aligned(res resolve.Result) {
	p.Log.Info("aligned",
		slog.String("tx", res.TransactionID),
		slog.String("raw", res.Raw.String()),
		slog.String("snapped", res.Snapped.String()),
		slog.Int("objects", res.Applied))
}

// Tee fans notifications out to several presenters in order.
type Tee []Presenter

func (t Tee) StateChanged(s align.State) {
	for _, p := range t {
		p.StateChanged(s)
	}
}

func (t Tee) PreSelectionChanged(objs []layout.Object) {
	for _, p := range t {
		p.PreSelectionChanged(objs)
	}
}

func (t Tee) SourceChanged(f *finder.Feature) {
	for _, p := range t {
		p.SourceChanged(f)
	}
}

func (t Tee) SetMarkers(slot align.Slot, markers []Marker) {
	for _, p := range t {
		p.SetMarkers(slot, markers)
	}
}

func (t Tee) ClearMarkers(slot align.Slot) {
	for _, p := range t {
		p.ClearMarkers(slot)
	}
}

func (t Tee) ShowHint(text string) {
	for _, p := range t {
		p.ShowHint(text)
	}
}

func (t Tee) Warn(title, text string) {
	for _, p := range t {
		p.Warn(title, text)
	}
}

func (t Tee) Aligned(res resolve.Result) {
	for _, p := range t {
		p.Aligned(res)
	}
}

func (t Tee) ReleaseMouse() {
	for _, p := range t {
		p.ReleaseMouse()
	}
}

func (t Tee) RequestDeactivate() {
	for _, p := range t {
		p.RequestDeactivate()
	}
}
