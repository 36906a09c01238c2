/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package align implements the two-click alignment tool: pick a source
// feature, pick a target feature, then translate the transformees so the
// source lands on the target. The tool never draws anything itself; every
// event returns a Changes value for the presentation layer.
package align

import (
	"log/slog"
	"slices"

	"layoutalign/internal/finder"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
	"layoutalign/internal/resolve"
)

// State is the position of the tool in its selection cycle.
type State int

const (
	StateInactive State = iota
	StatePendingSelection1
	StatePendingSelection2
)

func (s State) String() string {
	switch s {
	case StatePendingSelection1:
		return "pending_selection1"
	case StatePendingSelection2:
		return "pending_selection2"
	default:
		return "inactive"
	}
}

// Buttons is the host's mouse button mask.
type Buttons int

const (
	ButtonLeft   Buttons = 8
	ButtonMiddle Buttons = 16
	ButtonRight  Buttons = 32
)

// Slot names the marker group of the source or the target feature.
type Slot int

const (
	SlotSource Slot = iota + 1
	SlotTarget
)

func (s Slot) String() string {
	if s == SlotTarget {
		return "target"
	}
	return "source"
}

const (
	HintSource = "Select shape feature to align"
	HintTarget = "Select shape feature to reference"
)

// Host is what the tool needs from the view it is attached to.
type Host interface {
	Selection() []layout.Object
	PixelsPerDBU() float64
	DBU() float64
}

// Options tunes the on-screen behaviour of the tool.
type Options struct {
	SearchRadiusPx float64
	MarkerSizePx   float64
	ShowSearchBox  bool
	Logger         *slog.Logger
}

// DefaultOptions matches the stock tool setup.
func DefaultOptions() Options {
	return Options{SearchRadiusPx: 20, MarkerSizePx: 5, ShowSearchBox: true}
}

// Scale is the viewport scale a marker update was computed for.
type Scale struct {
	PixelsPerDBU float64
	DBU          float64
}

// MarkerUpdate replaces the markers of a slot. A nil Feature clears it.
type MarkerUpdate struct {
	Slot    Slot
	Feature *finder.Feature
}

// SourceChange carries the new committed source, nil when cleared.
type SourceChange struct {
	Feature *finder.Feature
}

// Warning is a blocking message for the user.
type Warning struct {
	Title string
	Text  string
}

// Changes is everything an event changed. Nil pointers and empty fields
// mean "unchanged".
type Changes struct {
	State        *State
	PreSelection *[]layout.Object
	Source       *SourceChange
	Markers      []MarkerUpdate
	Scale        Scale
	Hint         string
	Warning      *Warning
	Result       *resolve.Result
	Err          error
	// Deactivate asks the host to end the tool session.
	Deactivate   bool
	ReleaseMouse bool
	// Handled reports whether the event was consumed by the tool.
	Handled bool
}

func (c *Changes) setState(s State) { c.State = &s }

func (c *Changes) clearMarkers() {
	c.Markers = append(c.Markers, MarkerUpdate{Slot: SlotSource}, MarkerUpdate{Slot: SlotTarget})
}

// Tool is the alignment state machine. It is driven from a single event
// thread and is not safe for concurrent use.
type Tool struct {
	host     Host
	finder   *finder.Finder
	resolver *resolve.Resolver
	opts     Options
	log      *slog.Logger

	state   State
	pre     []layout.Object
	source  *finder.Feature
	preview [2]*finder.Feature
}

func New(host Host, f *finder.Finder, r *resolve.Resolver, opts Options) *Tool {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("align")
	}
	return &Tool{host: host, finder: f, resolver: r, opts: opts, log: l}
}

func (t *Tool) State() State                   { return t.state }
func (t *Tool) PreSelection() []layout.Object  { return slices.Clone(t.pre) }
func (t *Tool) Source() *finder.Feature        { return t.source }
func (t *Tool) Options() Options               { return t.opts }
func (t *Tool) Preview(s Slot) *finder.Feature { return t.preview[s-1] }

func (t *Tool) scale() Scale {
	return Scale{PixelsPerDBU: t.host.PixelsPerDBU(), DBU: t.host.DBU()}
}

func (t *Tool) transition(c *Changes, s State) {
	if s != t.state {
		t.log.Debug("state change", slog.String("from", t.state.String()), slog.String("to", s.String()))
	}
	t.state = s
	c.setState(s)
}

func (t *Tool) setSource(c *Changes, f *finder.Feature) {
	t.source = f
	c.Source = &SourceChange{Feature: f}
}

func (t *Tool) clearAllMarkers(c *Changes) {
	t.preview = [2]*finder.Feature{}
	c.clearMarkers()
}

// Activate starts a session. Nothing happens while the view is hidden.
func (t *Tool) Activate(viewVisible bool) Changes {
	var c Changes
	if !viewVisible {
		t.log.Debug("activation ignored, view hidden")
		return c
	}
	t.pre = t.host.Selection()
	pre := slices.Clone(t.pre)
	c.PreSelection = &pre
	c.Scale = t.scale()
	t.clearAllMarkers(&c)
	t.transition(&c, StatePendingSelection1)
	c.Handled = true
	return c
}

// Deactivate ends the session and drops every marker.
func (t *Tool) Deactivate() Changes {
	var c Changes
	t.transition(&c, StateInactive)
	t.pre = nil
	empty := []layout.Object{}
	c.PreSelection = &empty
	t.clearAllMarkers(&c)
	c.ReleaseMouse = true
	c.Handled = true
	return c
}

// Cancel restarts the selection cycle from the source.
func (t *Tool) Cancel() Changes {
	var c Changes
	t.clearAllMarkers(&c)
	t.transition(&c, StatePendingSelection1)
	t.setSource(&c, nil)
	c.Handled = true
	return c
}

// MouseMoved previews the feature under p (microns). Rulers are only
// eligible while picking the target.
func (t *Tool) MouseMoved(p geom.DPoint, prio bool) Changes {
	var c Changes
	if !prio || t.state == StateInactive {
		return c
	}
	c.Scale = t.scale()
	radius := finder.SearchRadius(t.opts.SearchRadiusPx, c.Scale.PixelsPerDBU)
	f, ok := t.finder.FindNearestFeature(p, radius, t.state == StatePendingSelection2)
	if !ok {
		if t.state == StatePendingSelection1 {
			c.Hint = HintSource
		} else {
			c.Hint = HintTarget
		}
		return c
	}
	slot := SlotSource
	if t.state == StatePendingSelection2 {
		slot = SlotTarget
	}
	t.preview[slot-1] = f
	c.Markers = append(c.Markers, MarkerUpdate{Slot: slot, Feature: f})
	c.Handled = true
	return c
}

// MouseClicked commits the previewed feature on a left click and cancels
// on a middle or right click.
func (t *Tool) MouseClicked(p geom.DPoint, buttons Buttons, prio bool) Changes {
	var c Changes
	if !prio {
		return c
	}
	if buttons == ButtonLeft {
		switch t.state {
		case StateInactive:
			return c
		case StatePendingSelection1:
			if t.preview[0] == nil {
				return c
			}
			t.setSource(&c, t.preview[0])
			t.transition(&c, StatePendingSelection2)
		case StatePendingSelection2:
			if t.preview[1] == nil {
				return c
			}
			src, dst := t.source, t.preview[1]
			t.transition(&c, StateInactive)
			t.setSource(&c, nil)
			t.commit(&c, src, dst)
		}
	}
	if buttons == ButtonMiddle || buttons == ButtonRight {
		return t.Cancel()
	}
	c.Handled = true
	return c
}

func (t *Tool) commit(c *Changes, src, dst *finder.Feature) {
	c.Deactivate = true
	res, err := t.resolver.Commit(t.pre, src, dst)
	if err != nil {
		c.Err = err
		if title, text, ok := resolve.Warning(err); ok {
			c.Warning = &Warning{Title: title, Text: text}
		}
		return
	}
	c.Result = &res
}
