/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package present turns align.Changes into notifications for a display:
// the dock panel texts, preview markers, hints and warnings.
package present

import (
	"fmt"
	"strings"

	"layoutalign/internal/align"
	"layoutalign/internal/finder"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	"layoutalign/internal/resolve"
)

// Presenter receives the notifications of a tool session.
type Presenter interface {
	StateChanged(s align.State)
	PreSelectionChanged(objs []layout.Object)
	SourceChanged(f *finder.Feature)
	SetMarkers(slot align.Slot, markers []Marker)
	ClearMarkers(slot align.Slot)
	ShowHint(text string)
	Warn(title, text string)
	Aligned(res resolve.Result)
	ReleaseMouse()
	RequestDeactivate()
}

// Apply threads c into p: pre-selection, state, source, markers, hint,
// warning, result, then mouse release and deactivation.
func Apply(p Presenter, c align.Changes, opts align.Options) {
	if c.PreSelection != nil {
		p.PreSelectionChanged(*c.PreSelection)
	}
	if c.State != nil {
		p.StateChanged(*c.State)
	}
	if c.Source != nil {
		p.SourceChanged(c.Source.Feature)
	}
	for _, m := range c.Markers {
		if m.Feature == nil {
			p.ClearMarkers(m.Slot)
			continue
		}
		p.SetMarkers(m.Slot, PreviewMarkers(m.Feature, c.Scale, opts))
	}
	if c.Hint != "" {
		p.ShowHint(c.Hint)
	}
	if c.Warning != nil {
		p.Warn(c.Warning.Title, c.Warning.Text)
	}
	if c.Result != nil {
		p.Aligned(*c.Result)
	}
	if c.ReleaseMouse {
		p.ReleaseMouse()
	}
	if c.Deactivate {
		p.RequestDeactivate()
	}
}

const (
	NextMarker = "⬅ Next"
	DoneMarker = "✅"
	CancelHint = "Hint: Esc to cancel"
)

// PreSelectionText summarizes the pre-selection for the dock panel.
func PreSelectionText(objs []layout.Object) string {
	if len(objs) == 0 {
		return "Pre-selection: None"
	}
	inst, shapes := layout.CountObjects(objs)
	var parts []string
	if s := countText(inst, "instance"); s != "" {
		parts = append(parts, s)
	}
	if s := countText(shapes, "shape"); s != "" {
		parts = append(parts, s)
	}
	return "Pre-selection: " + strings.Join(parts, ", ")
}

func countText(n int, singular string) string {
	switch n {
	case 0:
		return ""
	case 1:
		return "1 " + singular
	default:
		return fmt.Sprintf("%d %ss", n, singular)
	}
}

func featureText(f *finder.Feature) string {
	switch {
	case f == nil:
		return "None yet"
	case f.IsPoint():
		return "1 point"
	default:
		return "1 edge"
	}
}

// SourceText describes the committed source feature.
func SourceText(f *finder.Feature) string { return "Source ref: " + featureText(f) }

// TargetText describes the target slot. The target is never kept after a
// commit, so it only ever reads "None yet" or the previewed feature.
func TargetText(f *finder.Feature) string { return "Target ref: " + featureText(f) }

// StatusText returns the status column of both slots for s.
func StatusText(s align.State) (source, target string) {
	switch s {
	case align.StatePendingSelection1:
		return NextMarker, ""
	case align.StatePendingSelection2:
		return DoneMarker, NextMarker
	default:
		return "", ""
	}
}

// MarkerKind tells the three preview markers apart.
type MarkerKind int

const (
	MarkerEdge MarkerKind = iota
	MarkerSnapPoint
	MarkerSearchBox
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerSnapPoint:
		return "snap_point"
	case MarkerSearchBox:
		return "search_box"
	default:
		return "edge"
	}
}

// Marker is a display-independent overlay in microns. Edge markers use
// Edge, the others Box. A negative DitherPattern means hollow.
type Marker struct {
	Kind          MarkerKind
	Edge          geom.Segment
	Box           geom.DBox
	LineStyle     int
	LineWidth     int
	VertexSize    int
	DitherPattern int
}

// PreviewMarkers builds the overlay for f: the edge, a box around the snap
// point if any, and the search box when enabled. Sizes given in pixels are
// converted with the viewport scale so they stay constant on screen.
func PreviewMarkers(f *finder.Feature, s align.Scale, opts align.Options) []Marker {
	ms := []Marker{{
		Kind:          MarkerEdge,
		Edge:          f.Edge.ToMicrons(s.DBU),
		LineStyle:     0,
		LineWidth:     2,
		DitherPattern: 2,
	}}
	if f.SnapPoint != nil {
		d := finder.SearchRadius(opts.MarkerSizePx, s.PixelsPerDBU)
		ms = append(ms, Marker{
			Kind:          MarkerSnapPoint,
			Box:           geom.BoxAround(*f.SnapPoint, d).ToMicrons(s.DBU),
			LineStyle:     1,
			LineWidth:     2,
			DitherPattern: 0,
		})
	}
	if opts.ShowSearchBox {
		ms = append(ms, Marker{
			Kind:          MarkerSearchBox,
			Box:           f.SearchBox.ToMicrons(s.DBU),
			LineStyle:     2,
			LineWidth:     1,
			DitherPattern: -1,
		})
	}
	return ms
}
