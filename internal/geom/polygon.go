/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

// Polygon is a simple polygon given by its hull, optionally with holes.
// The hull is implicitly closed.
type Polygon struct {
	Hull  []Point
	Holes [][]Point
}

// BoxPolygon returns the polygon outline of a box.
func BoxPolygon(b Box) Polygon { return Polygon{Hull: b.Hull()} }

// Edges lists the hull edges followed by the edges of every hole, each
// contour closed back to its first point.
func (p Polygon) Edges() []Edge {
	n := contourEdges(nil, p.Hull)
	for _, h := range p.Holes {
		n = contourEdges(n, h)
	}
	return n
}

func contourEdges(dst []Edge, pts []Point) []Edge {
	if len(pts) < 2 {
		return dst
	}
	for i := range pts {
		dst = append(dst, Edge{P1: pts[i], P2: pts[(i+1)%len(pts)]})
	}
	return dst
}

// BBox is the bounding box of the hull.
func (p Polygon) BBox() Box {
	b := EmptyBox()
	for _, pt := range p.Hull {
		b = b.Extend(pt)
	}
	return b
}

func (p Polygon) Transformed(t Trans) Polygon {
	out := Polygon{Hull: mapPoints(p.Hull, t.Apply)}
	for _, h := range p.Holes {
		out.Holes = append(out.Holes, mapPoints(h, t.Apply))
	}
	return out
}

func (p Polygon) Moved(v Vector) Polygon {
	return p.Transformed(Translation(v))
}

func mapPoints(pts []Point, f func(Point) Point) []Point {
	out := make([]Point, len(pts))
	for i, pt := range pts {
		out[i] = f(pt)
	}
	return out
}
