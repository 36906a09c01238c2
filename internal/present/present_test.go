/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package present

import (
	"strings"
	"testing"

	"layoutalign/internal/align"
	"layoutalign/internal/finder"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
	"layoutalign/internal/resolve"
)

func TestPreSelectionText(t *testing.T) {
	l := layout.New(0.001)
	top := l.MustCell("TOP")
	a := l.MustCell("A")
	i1 := top.MustPlace(a, geom.Identity)
	s1 := top.AddBox(0, geom.NewBox(0, 0, 1, 1))
	s2 := top.AddBox(0, geom.NewBox(0, 0, 2, 2))

	cases := []struct {
		objs []layout.Object
		want string
	}{
		{nil, "Pre-selection: None"},
		{[]layout.Object{i1}, "Pre-selection: 1 instance"},
		{[]layout.Object{s1, s2}, "Pre-selection: 2 shapes"},
		{[]layout.Object{s1, i1, s2}, "Pre-selection: 1 instance, 2 shapes"},
	}
	for _, tc := range cases {
		if got := PreSelectionText(tc.objs); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestSourceAndStatusText(t *testing.T) {
	p := geom.P(1, 1)
	if SourceText(nil) != "Source ref: None yet" {
		t.Fatalf("none")
	}
	if SourceText(&finder.Feature{SnapPoint: &p}) != "Source ref: 1 point" {
		t.Fatalf("point")
	}
	if SourceText(&finder.Feature{Edge: geom.E(0, 0, 1, 0)}) != "Source ref: 1 edge" {
		t.Fatalf("edge")
	}
	if s, tg := StatusText(align.StatePendingSelection1); s != NextMarker || tg != "" {
		t.Fatalf("sel1: %q %q", s, tg)
	}
	if s, tg := StatusText(align.StatePendingSelection2); s != DoneMarker || tg != NextMarker {
		t.Fatalf("sel2: %q %q", s, tg)
	}
	if s, tg := StatusText(align.StateInactive); s != "" || tg != "" {
		t.Fatalf("inactive: %q %q", s, tg)
	}
}

func TestPreviewMarkers(t *testing.T) {
	snap := geom.P(100, 50)
	f := &finder.Feature{
		Edge:      geom.E(100, 0, 100, 100),
		SearchBox: geom.NewBox(90, 40, 110, 60),
		SnapPoint: &snap,
	}
	s := align.Scale{PixelsPerDBU: 0.5, DBU: 0.01}
	opts := align.DefaultOptions()
	ms := PreviewMarkers(f, s, opts)
	if len(ms) != 3 {
		t.Fatalf("markers = %v", ms)
	}
	if ms[0].Kind != MarkerEdge || ms[0].LineWidth != 2 || ms[0].DitherPattern != 2 {
		t.Fatalf("edge marker = %+v", ms[0])
	}
	// 5 px at 0.5 px/dbu is a half-size of 10 dbu, 0.1 um at dbu 0.01
	box := ms[1].Box
	if ms[1].Kind != MarkerSnapPoint || box.Width() < 0.199 || box.Width() > 0.201 {
		t.Fatalf("snap marker = %+v", ms[1])
	}
	if ms[2].Kind != MarkerSearchBox || ms[2].LineStyle != 2 || ms[2].DitherPattern != -1 {
		t.Fatalf("search marker = %+v", ms[2])
	}

	opts.ShowSearchBox = false
	f.SnapPoint = nil
	if ms := PreviewMarkers(f, s, opts); len(ms) != 1 || ms[0].Kind != MarkerEdge {
		t.Fatalf("edge only = %v", ms)
	}
}

type recorder struct {
	calls []string
}

func (r *recorder) StateChanged(s align.State)          { r.calls = append(r.calls, "state:"+s.String()) }
func (r *recorder) PreSelectionChanged([]layout.Object) { r.calls = append(r.calls, "pre") }
func (r *recorder) SourceChanged(*finder.Feature)       { r.calls = append(r.calls, "source") }
func (r *recorder) SetMarkers(s align.Slot, _ []Marker) { r.calls = append(r.calls, "set:"+s.String()) }
func (r *recorder) ClearMarkers(s align.Slot)           { r.calls = append(r.calls, "clear:"+s.String()) }
func (r *recorder) ShowHint(text string)                { r.calls = append(r.calls, "hint") }
func (r *recorder) Warn(title, text string)             { r.calls = append(r.calls, "warn") }
func (r *recorder) Aligned(resolve.Result)              { r.calls = append(r.calls, "aligned") }
func (r *recorder) ReleaseMouse()                       { r.calls = append(r.calls, "release") }
func (r *recorder) RequestDeactivate()                  { r.calls = append(r.calls, "deactivate") }

func TestApplyOrder(t *testing.T) {
	st := align.StateInactive
	pre := []layout.Object{}
	c := align.Changes{
		State:        &st,
		PreSelection: &pre,
		Source:       &align.SourceChange{},
		Markers:      []align.MarkerUpdate{{Slot: align.SlotSource}, {Slot: align.SlotTarget}},
		Hint:         "h",
		Warning:      &align.Warning{Title: "t"},
		Result:       &resolve.Result{},
		ReleaseMouse: true,
		Deactivate:   true,
	}
	r := &recorder{}
	Apply(r, c, align.DefaultOptions())
	want := "pre state:inactive source clear:source clear:target hint warn aligned release deactivate"
	if got := strings.Join(r.calls, " "); got != want {
		t.Fatalf("order:\n got %s\nwant %s", got, want)
	}
}

func TestSessionDrivesDock(t *testing.T) {
	l := layout.New(0.001)
	l.AddLayer(layout.LayerInfo{Layer: 1})
	top := l.MustCell("TOP")
	v := layout.NewView(l, top)
	v.SetMagnification(1000)
	moving := top.AddBox(0, geom.NewBox(0, 0, 100, 100))
	top.AddBox(0, geom.NewBox(300, 0, 400, 200))
	v.Select(moving)

	opts := align.DefaultOptions()
	opts.SearchRadiusPx = 5
	opts.Logger = applog.Discard()
	tool := align.New(v,
		finder.New(v, finder.Options{Logger: applog.Discard()}),
		resolve.New(v, resolve.Options{Logger: applog.Discard()}),
		opts)
	dock := NewDock()
	s := Session{Tool: tool, Out: Tee{dock, LogPresenter{Log: applog.Discard()}}}

	s.Activate(true)
	if dock.PreSelection != "Pre-selection: 1 shape" || dock.SourceStatus != NextMarker {
		t.Fatalf("after activate: %v", dock.Lines())
	}
	um := func(x, y int64) geom.DPoint { return geom.P(x, y).ToMicrons(0.001) }
	s.Move(um(101, 50))
	if len(dock.Markers[align.SlotSource]) != 3 {
		t.Fatalf("source markers = %v", dock.Markers)
	}
	s.Click(um(101, 50), align.ButtonLeft)
	if dock.Source != "Source ref: 1 point" || dock.SourceStatus != DoneMarker || dock.TargetStatus != NextMarker {
		t.Fatalf("after source: %v", dock.Lines())
	}
	s.Move(um(299, 100))
	if dock.Target != "Target ref: 1 point" {
		t.Fatalf("target preview: %v", dock.Lines())
	}
	c := s.Click(um(299, 100), align.ButtonLeft)
	if c.Result == nil || len(dock.Results) != 1 || dock.Deactivations != 1 {
		t.Fatalf("commit: %+v", c)
	}
	if tool.State() != align.StateInactive || !dock.MouseReleased || len(dock.AllMarkers()) != 0 {
		t.Fatalf("session not torn down: %v", dock.Lines())
	}
	if dock.PreSelection != "Pre-selection: None" || dock.Source != "Source ref: None yet" {
		t.Fatalf("dock after teardown: %v", dock.Lines())
	}
	if moving.Box != geom.NewBox(200, 50, 300, 150) {
		t.Fatalf("box = %v", moving.Box)
	}
	if got := dock.Lines()[3]; got != CancelHint {
		t.Fatalf("hint row = %q", got)
	}
}
