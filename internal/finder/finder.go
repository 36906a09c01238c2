/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package finder locates the alignable feature nearest to a cursor: an
// edge, an edge midpoint or vertex, a bounding box center, or a ruler point.
// Queries are read-only and bounded by a per-pass iteration limit.
package finder

import (
	"context"
	"iter"
	"log/slog"
	"time"

	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
)

// DefaultIterationLimit caps the elements visited by the instance pass and
// by each layer's shape pass.
const DefaultIterationLimit = 1000

// Scene is the read-only view of the hierarchy the finder searches.
type Scene interface {
	DBU() float64
	TopCell() *layout.Cell
	CellHidden(c *layout.Cell) bool
	HierarchyLevels() (minLevel, maxLevel int)
	VisibleLayers() []int
	Instances(box geom.Box, minDepth, maxDepth int) iter.Seq[layout.InstanceHit]
	Shapes(layer int, box geom.Box, minDepth, maxDepth int) iter.Seq[layout.ShapeHit]
	Annotations() []layout.Annotation
}

// Options tunes a Finder.
type Options struct {
	// IterationLimit overrides DefaultIterationLimit when positive.
	IterationLimit int
	Logger         *slog.Logger
}

// Finder answers nearest-feature queries against a scene.
type Finder struct {
	scene Scene
	limit int
	log   *slog.Logger
}

func New(scene Scene, opts Options) *Finder {
	limit := opts.IterationLimit
	if limit <= 0 {
		limit = DefaultIterationLimit
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("finder")
	}
	return &Finder{scene: scene, limit: limit, log: l}
}

// Stats describes the work done by one query.
type Stats struct {
	Instances   int
	Shapes      int
	Annotations int
	Truncated   bool
}

// SearchRadius converts an on-screen radius into database units for the
// given viewport scale, so the hit area keeps its size on screen at any zoom.
// The result is at least 1.
func SearchRadius(radiusPx, pixelsPerDBU float64) int64 {
	r := radiusPx
	if pixelsPerDBU > 0 {
		r = radiusPx / pixelsPerDBU
	}
	d := geom.Round(r)
	if d < 1 {
		d = 1
	}
	return d
}

// FindNearestFeature returns the feature nearest to location (microns)
// within maxDistance database units. Rulers are only searched when
// considerAnnotations is set. The second result is false when nothing
// alignable lies in reach; that is not an error.
func (fi *Finder) FindNearestFeature(location geom.DPoint, maxDistance int64, considerAnnotations bool) (*Feature, bool) {
	f, _, ok := fi.Find(location, maxDistance, considerAnnotations)
	return f, ok
}

// Find is FindNearestFeature that also reports query statistics.
func (fi *Finder) Find(location geom.DPoint, maxDistance int64, considerAnnotations bool) (*Feature, Stats, bool) {
	var st Stats
	start := time.Now()
	loc := location.ToDBU(fi.scene.DBU())
	q := query{location: loc, box: geom.BoxAround(loc, maxDistance)}

	top := fi.scene.TopCell()
	if top == nil || fi.scene.CellHidden(top) {
		return nil, st, false
	}

	var best BestCandidate
	minLevel, maxLevel := fi.scene.HierarchyLevels()
	if maxLevel >= 1 {
		minDepth, maxDepth := max(minLevel-1, 0), max(maxLevel-1, 0)
		best = fi.instancePass(best, q, minDepth, maxDepth, &st)
		for _, layer := range fi.scene.VisibleLayers() {
			best = fi.shapePass(best, q, layer, minDepth, maxDepth, &st)
		}
	}
	if considerAnnotations {
		best = fi.annotationPass(best, q, &st)
	}

	if fi.log.Enabled(context.Background(), slog.LevelDebug) {
		fi.log.Debug("feature query",
			slog.String("at", loc.String()),
			slog.Int64("radius", maxDistance),
			slog.Int("instances", st.Instances),
			slog.Int("shapes", st.Shapes),
			slog.Int("annotations", st.Annotations),
			slog.Bool("truncated", st.Truncated),
			slog.Bool("found", best.Found),
			applog.Since(start),
		)
	}
	if !best.Found {
		return nil, st, false
	}
	f := best.Feature
	np := NearestEdgePoint(q.location, f.Edge)
	if q.box.Contains(np) {
		f.SnapPoint = &np
	}
	return &f, st, true
}

type query struct {
	location geom.Point
	box      geom.Box
}

func (q query) feature() Feature {
	return Feature{Location: q.location, SearchBox: q.box}
}

// hidden reports whether cell or any cell above it on path is hidden.
func (fi *Finder) hidden(path []*layout.Instance, cell *layout.Cell) bool {
	if fi.scene.CellHidden(cell) {
		return true
	}
	for _, in := range path {
		if fi.scene.CellHidden(in.Cell) {
			return true
		}
	}
	return false
}

func (fi *Finder) instancePass(best BestCandidate, q query, minDepth, maxDepth int, st *Stats) BestCandidate {
	n := 0
	for hit := range fi.scene.Instances(q.box, minDepth, maxDepth) {
		if !fi.hidden(hit.Path, hit.Inst.Cell) {
			bbox := hit.TopBBox()
			for _, e := range bbox.Edges() {
				f := q.feature()
				f.Origin = FromInstance
				f.Edge = e
				f.Path = hit.Path
				f.Instance = hit.Inst
				f.InstanceBox = bbox
				best = best.Consider(f)
			}
			c := bbox.Center()
			f := q.feature()
			f.Origin = FromInstance
			f.Edge = geom.PointEdge(c)
			f.Path = hit.Path
			f.Instance = hit.Inst
			f.InstanceBox = bbox
			f.SnapPoint = &c
			best = best.Consider(f)
		}
		n++
		st.Instances++
		if n >= fi.limit {
			st.Truncated = true
			break
		}
	}
	return best
}

func (fi *Finder) shapePass(best BestCandidate, q query, layer, minDepth, maxDepth int, st *Stats) BestCandidate {
	n := 0
	for hit := range fi.scene.Shapes(layer, q.box, minDepth, maxDepth) {
		if pg, ok := hit.Shape.AsPolygon(); ok && !fi.hidden(hit.Path, hit.Shape.Owner()) {
			p := pg.Transformed(hit.Trans)
			for _, e := range p.Edges() {
				f := q.feature()
				f.Origin = FromShape
				f.Edge = e
				f.Path = hit.Path
				f.Shape = hit.Shape
				f.Layer = &layer
				best = best.Consider(f)
			}
			c := p.BBox().Center()
			f := q.feature()
			f.Origin = FromShape
			f.Edge = geom.PointEdge(c)
			f.Path = hit.Path
			f.Shape = hit.Shape
			f.Layer = &layer
			f.SnapPoint = &c
			best = best.Consider(f)
		}
		n++
		st.Shapes++
		if n >= fi.limit {
			st.Truncated = true
			break
		}
	}
	return best
}

func (fi *Finder) annotationPass(best BestCandidate, q query, st *Stats) BestCandidate {
	dbu := fi.scene.DBU()
	for _, a := range fi.scene.Annotations() {
		st.Annotations++
		if len(a.Points) == 0 {
			continue
		}
		if a.Outline == layout.OutlineBox {
			for _, e := range a.Box().ToDBU(dbu).Edges() {
				f := q.feature()
				f.Origin = FromAnnotation
				f.Edge = e
				best = best.Consider(f)
			}
			continue
		}
		for _, dp := range a.Points {
			p := dp.ToDBU(dbu)
			if !q.box.Contains(p) {
				continue
			}
			f := q.feature()
			f.Origin = FromAnnotation
			f.Edge = geom.PointEdge(p)
			f.SnapPoint = &p
			best = best.Consider(f)
		}
	}
	return best
}

// NearestEdgePoint picks whichever of the edge midpoint, P1 and P2 is
// closest to location. On equal distance the earlier one in that order wins.
func NearestEdgePoint(location geom.Point, e geom.Edge) geom.Point {
	candidates := [3]geom.Point{e.Midpoint(), e.P1, e.P2}
	nearest := candidates[0]
	nearestDist := location.Distance(nearest)
	for _, p := range candidates[1:] {
		if d := location.Distance(p); d < nearestDist {
			nearest, nearestDist = p, d
		}
	}
	return nearest
}
