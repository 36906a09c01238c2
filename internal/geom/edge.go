/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"fmt"
	"math"
)

// Edge is a directed integer segment. A zero-length edge stands for a single point.
type Edge struct {
	P1, P2 Point
}

// E is shorthand for an edge between (x1,y1) and (x2,y2).
func E(x1, y1, x2, y2 int64) Edge { return Edge{P1: Point{X: x1, Y: y1}, P2: Point{X: x2, Y: y2}} }

// PointEdge returns the degenerate edge located at p.
func PointEdge(p Point) Edge { return Edge{P1: p, P2: p} }

func (e Edge) DX() int64           { return e.P2.X - e.P1.X }
func (e Edge) DY() int64           { return e.P2.Y - e.P1.Y }
func (e Edge) IsDegenerate() bool  { return e.P1 == e.P2 }
func (e Edge) IsHorizontal() bool  { return !e.IsDegenerate() && e.DY() == 0 }
func (e Edge) IsVertical() bool    { return !e.IsDegenerate() && e.DX() == 0 }
func (e Edge) Moved(v Vector) Edge { return Edge{P1: e.P1.Add(v), P2: e.P2.Add(v)} }

// IsParallel reports whether both edges run in the same or opposite direction.
// A degenerate edge has no direction and is parallel to nothing.
func (e Edge) IsParallel(o Edge) bool {
	if e.IsDegenerate() || o.IsDegenerate() {
		return false
	}
	return e.DX()*o.DY()-e.DY()*o.DX() == 0
}

// Midpoint returns the halfway point with coordinates rounded away from zero.
func (e Edge) Midpoint() Point {
	return Point{X: Round(float64(e.P1.X+e.P2.X) / 2), Y: Round(float64(e.P1.Y+e.P2.Y) / 2)}
}

func (e Edge) BBox() Box { return NewBox(e.P1.X, e.P1.Y, e.P2.X, e.P2.Y) }

func (e Edge) Transformed(t Trans) Edge { return Edge{P1: t.Apply(e.P1), P2: t.Apply(e.P2)} }

// ToMicrons converts the edge into a physical segment.
func (e Edge) ToMicrons(dbu float64) Segment {
	return Segment{P1: e.P1.ToMicrons(dbu), P2: e.P2.ToMicrons(dbu)}
}

// Clipped returns the part of e inside b (border inclusive). The second
// result is false when nothing of the edge lies inside the box.
func (e Edge) Clipped(b Box) (Segment, bool) {
	if b.Empty() {
		return Segment{}, false
	}
	x0, y0 := float64(e.P1.X), float64(e.P1.Y)
	dx, dy := float64(e.DX()), float64(e.DY())
	t0, t1 := 0.0, 1.0
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return false
			}
			if r < t1 {
				t1 = r
			}
		}
		return true
	}
	if !clip(-dx, x0-float64(b.Left)) ||
		!clip(dx, float64(b.Right)-x0) ||
		!clip(-dy, y0-float64(b.Bottom)) ||
		!clip(dy, float64(b.Top)-y0) {
		return Segment{}, false
	}
	return Segment{
		P1: DPoint{X: x0 + t0*dx, Y: y0 + t0*dy},
		P2: DPoint{X: x0 + t1*dx, Y: y0 + t1*dy},
	}, true
}

func (e Edge) String() string { return fmt.Sprintf("(%s;%s)", e.P1, e.P2) }

// Segment is a floating point edge, the result of clipping or unit conversion.
type Segment struct {
	P1, P2 DPoint
}

// DistanceAbs is the distance from p to the closest point of the segment.
func (s Segment) DistanceAbs(p Point) float64 {
	q := p.toD()
	dx, dy := s.P2.X-s.P1.X, s.P2.Y-s.P1.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return q.Distance(s.P1)
	}
	t := ((q.X-s.P1.X)*dx + (q.Y-s.P1.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return q.Distance(DPoint{X: s.P1.X + t*dx, Y: s.P1.Y + t*dy})
}

func (s Segment) String() string { return fmt.Sprintf("(%s;%s)", s.P1, s.P2) }
