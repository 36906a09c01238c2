/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geom holds the integer layout geometry used by the finder and the
// resolver. Scene coordinates are database units (dbu); DPoint/DBox carry
// physical micron coordinates or fractional dbu values.
package geom

import (
	"fmt"
	"math"
)

// Point is an integer scene coordinate in database units.
type Point struct{ X, Y int64 }

// P is shorthand for Point{X: x, Y: y}.
func P(x, y int64) Point { return Point{X: x, Y: y} }

func (p Point) Add(v Vector) Point { return Point{X: p.X + v.DX, Y: p.Y + v.DY} }

// Sub returns the displacement from q to p.
func (p Point) Sub(q Point) Vector { return Vector{DX: p.X - q.X, DY: p.Y - q.Y} }

// Distance is the Euclidean distance between two points.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y))
}

// ToMicrons converts the point into physical units.
func (p Point) ToMicrons(dbu float64) DPoint {
	return DPoint{X: float64(p.X) * dbu, Y: float64(p.Y) * dbu}
}

func (p Point) toD() DPoint { return DPoint{X: float64(p.X), Y: float64(p.Y)} }

func (p Point) String() string { return fmt.Sprintf("%d,%d", p.X, p.Y) }

// DPoint is a floating point coordinate.
type DPoint struct{ X, Y float64 }

// ToDBU converts a micron coordinate into the integer grid. Halves round away from zero.
func (p DPoint) ToDBU(dbu float64) Point {
	return Point{X: Round(p.X / dbu), Y: Round(p.Y / dbu)}
}

func (p DPoint) Distance(q DPoint) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

func (p DPoint) String() string {
	return fmt.Sprintf("%s,%s", formatFloat(p.X), formatFloat(p.Y))
}

// Vector is an integer displacement.
type Vector struct{ DX, DY int64 }

func V(dx, dy int64) Vector { return Vector{DX: dx, DY: dy} }

func (v Vector) IsZero() bool        { return v.DX == 0 && v.DY == 0 }
func (v Vector) Neg() Vector         { return Vector{DX: -v.DX, DY: -v.DY} }
func (v Vector) Add(o Vector) Vector { return Vector{DX: v.DX + o.DX, DY: v.DY + o.DY} }
func (v Vector) String() string      { return fmt.Sprintf("%d,%d", v.DX, v.DY) }

// Round rounds half away from zero to the nearest integer coordinate.
func Round(v float64) int64 { return int64(math.Round(v)) }

func formatFloat(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	for len(s) > 1 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
