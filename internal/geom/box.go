/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "fmt"

// Box is an axis-aligned integer rectangle. A box with Left > Right or
// Bottom > Top is empty.
type Box struct {
	Left, Bottom, Right, Top int64
}

// NewBox builds a box from two opposite corners in any order.
func NewBox(x1, y1, x2, y2 int64) Box {
	return Box{Left: min(x1, x2), Bottom: min(y1, y2), Right: max(x1, x2), Top: max(y1, y2)}
}

// BoxAround returns the square of half-width d centered on c.
func BoxAround(c Point, d int64) Box {
	return Box{Left: c.X - d, Bottom: c.Y - d, Right: c.X + d, Top: c.Y + d}
}

// EmptyBox returns the canonical empty box.
func EmptyBox() Box { return Box{Left: 1, Bottom: 1, Right: -1, Top: -1} }

func (b Box) Empty() bool   { return b.Left > b.Right || b.Bottom > b.Top }
func (b Box) Width() int64  { return b.Right - b.Left }
func (b Box) Height() int64 { return b.Top - b.Bottom }

// Contains reports whether p lies inside b or on its border.
func (b Box) Contains(p Point) bool {
	return !b.Empty() && p.X >= b.Left && p.X <= b.Right && p.Y >= b.Bottom && p.Y <= b.Top
}

// Overlaps reports whether the boxes share a region of positive area.
// Boxes that merely touch do not overlap.
func (b Box) Overlaps(o Box) bool {
	if b.Empty() || o.Empty() {
		return false
	}
	return b.Left < o.Right && o.Left < b.Right && b.Bottom < o.Top && o.Bottom < b.Top
}

// Center returns the box center; half coordinates round away from zero.
func (b Box) Center() Point {
	return Point{X: Round(float64(b.Left+b.Right) / 2), Y: Round(float64(b.Bottom+b.Top) / 2)}
}

// Union returns the smallest box enclosing both.
func (b Box) Union(o Box) Box {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Box{Left: min(b.Left, o.Left), Bottom: min(b.Bottom, o.Bottom), Right: max(b.Right, o.Right), Top: max(b.Top, o.Top)}
}

// Extend grows the box to include p.
func (b Box) Extend(p Point) Box {
	if b.Empty() {
		return Box{Left: p.X, Bottom: p.Y, Right: p.X, Top: p.Y}
	}
	return Box{Left: min(b.Left, p.X), Bottom: min(b.Bottom, p.Y), Right: max(b.Right, p.X), Top: max(b.Top, p.Y)}
}

// Enlarged grows the box by d on every side (negative shrinks).
func (b Box) Enlarged(d int64) Box {
	if b.Empty() {
		return b
	}
	return NewBox(b.Left-d, b.Bottom-d, b.Right+d, b.Top+d)
}

func (b Box) Moved(v Vector) Box {
	if b.Empty() {
		return b
	}
	return Box{Left: b.Left + v.DX, Bottom: b.Bottom + v.DY, Right: b.Right + v.DX, Top: b.Top + v.DY}
}

// Transformed maps both corners through t and re-normalizes.
func (b Box) Transformed(t Trans) Box {
	if b.Empty() {
		return b
	}
	p1 := t.Apply(Point{X: b.Left, Y: b.Bottom})
	p2 := t.Apply(Point{X: b.Right, Y: b.Top})
	return NewBox(p1.X, p1.Y, p2.X, p2.Y)
}

// Hull returns the corner points in the order a box polygon is traversed:
// lower-left, upper-left, upper-right, lower-right.
func (b Box) Hull() []Point {
	return []Point{
		{X: b.Left, Y: b.Bottom},
		{X: b.Left, Y: b.Top},
		{X: b.Right, Y: b.Top},
		{X: b.Right, Y: b.Bottom},
	}
}

// Edges decomposes the box outline into its four edges (left, top, right, bottom).
func (b Box) Edges() []Edge {
	if b.Empty() {
		return nil
	}
	return Polygon{Hull: b.Hull()}.Edges()
}

// ToMicrons converts the box into physical units.
func (b Box) ToMicrons(dbu float64) DBox {
	return DBox{
		Left: float64(b.Left) * dbu, Bottom: float64(b.Bottom) * dbu,
		Right: float64(b.Right) * dbu, Top: float64(b.Top) * dbu,
	}
}

func (b Box) String() string {
	if b.Empty() {
		return "()"
	}
	return fmt.Sprintf("(%d,%d;%d,%d)", b.Left, b.Bottom, b.Right, b.Top)
}

// DBox is a floating point box, usually in microns.
type DBox struct {
	Left, Bottom, Right, Top float64
}

// Empty reports a box with inverted corners, such as the box of no points.
func (b DBox) Empty() bool { return b.Left > b.Right || b.Bottom > b.Top }

// ToDBU converts the box to the integer grid. An empty box stays empty.
func (b DBox) ToDBU(dbu float64) Box {
	if b.Empty() {
		return EmptyBox()
	}
	p1 := DPoint{X: b.Left, Y: b.Bottom}.ToDBU(dbu)
	p2 := DPoint{X: b.Right, Y: b.Top}.ToDBU(dbu)
	return NewBox(p1.X, p1.Y, p2.X, p2.Y)
}

func (b DBox) Width() float64  { return b.Right - b.Left }
func (b DBox) Height() float64 { return b.Top - b.Bottom }
