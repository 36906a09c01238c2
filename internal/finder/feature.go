/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package finder

import (
	"fmt"
	"strings"

	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
)

// Origin tells where a feature was derived from.
type Origin int

const (
	FromInstance Origin = iota + 1
	FromShape
	FromAnnotation
)

func (o Origin) String() string {
	switch o {
	case FromInstance:
		return "instance"
	case FromShape:
		return "shape"
	case FromAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

// Feature is an alignment candidate. A feature with SnapPoint set is
// point-like (vertex, midpoint, box center or ruler point); otherwise it is
// edge-like. Edge is always set; a point is a zero-length edge.
type Feature struct {
	Location  geom.Point
	SearchBox geom.Box
	Edge      geom.Edge
	// Path holds the instances from the top cell down to the owner of the
	// feature, excluding Instance itself. Empty for top cell objects.
	Path []*layout.Instance
	// Shape is set for features taken from a polygon or box shape.
	Shape *layout.Shape
	// Instance and InstanceBox are set for features taken from an instance
	// bounding box; InstanceBox is in top cell coordinates.
	Instance    *layout.Instance
	InstanceBox geom.Box
	Layer       *int
	SnapPoint   *geom.Point
	Origin      Origin
}

func (f *Feature) IsPoint() bool { return f.SnapPoint != nil }
func (f *Feature) IsEdge() bool  { return f.SnapPoint == nil }

// Object is the scene object the feature belongs to, or nil for rulers.
func (f *Feature) Object() layout.Object {
	switch {
	case f.Instance != nil:
		return f.Instance
	case f.Shape != nil:
		return f.Shape
	default:
		return nil
	}
}

func (f *Feature) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Feature(location=%s, search_box=%s, edge=%s, origin=%s", f.Location, f.SearchBox, f.Edge, f.Origin)
	if f.Shape != nil {
		fmt.Fprintf(&b, ", shape=%s", f.Shape)
	}
	if f.Instance != nil {
		fmt.Fprintf(&b, ", instance=%s", f.Instance)
	}
	if f.Layer != nil {
		fmt.Fprintf(&b, ", layer=%d", *f.Layer)
	}
	if f.SnapPoint != nil {
		fmt.Fprintf(&b, ", snap=%s", *f.SnapPoint)
	}
	b.WriteString(")")
	return b.String()
}

// BestCandidate folds candidates into the one closest to the query point.
// The zero value holds no candidate.
type BestCandidate struct {
	Feature Feature
	// Dist is the distance from the query point to the part of the
	// feature's edge inside the search box.
	Dist  float64
	Found bool
}

// Consider returns the accumulator after offering f. Candidates whose edge
// misses the search box are ignored. A candidate replaces the current best
// only when strictly closer, so the first of equally close candidates stays.
func (b BestCandidate) Consider(f Feature) BestCandidate {
	seg, ok := f.Edge.Clipped(f.SearchBox)
	if !ok {
		return b
	}
	d := seg.DistanceAbs(f.Location)
	if !b.Found || d < b.Dist {
		return BestCandidate{Feature: f, Dist: d, Found: true}
	}
	return b
}
