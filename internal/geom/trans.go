/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "fmt"

// Trans is an orthogonal placement: optional mirror at the x axis, then a
// counter-clockwise rotation by Rot quarter turns, then a displacement.
type Trans struct {
	Rot    int
	Mirror bool
	Disp   Vector
}

// Identity is the neutral transformation.
var Identity = Trans{}

// Translation returns a pure displacement.
func Translation(v Vector) Trans { return Trans{Disp: v} }

func (t Trans) rot() int { return ((t.Rot % 4) + 4) % 4 }

// linear applies mirror and rotation without the displacement.
func (t Trans) linear(p Point) Point {
	x, y := p.X, p.Y
	if t.Mirror {
		y = -y
	}
	switch t.rot() {
	case 1:
		return Point{X: -y, Y: x}
	case 2:
		return Point{X: -x, Y: -y}
	case 3:
		return Point{X: y, Y: -x}
	default:
		return Point{X: x, Y: y}
	}
}

// Apply maps p through t.
func (t Trans) Apply(p Point) Point {
	q := t.linear(p)
	return Point{X: q.X + t.Disp.DX, Y: q.Y + t.Disp.DY}
}

// Mul returns the composition t∘u: u is applied first.
func (t Trans) Mul(u Trans) Trans {
	rot := t.rot() + u.rot()
	if t.Mirror {
		rot = t.rot() - u.rot()
	}
	d := t.linear(Point{X: u.Disp.DX, Y: u.Disp.DY})
	return Trans{
		Rot:    ((rot % 4) + 4) % 4,
		Mirror: t.Mirror != u.Mirror,
		Disp:   Vector{DX: d.X + t.Disp.DX, DY: d.Y + t.Disp.DY},
	}
}

func (t Trans) IsIdentity() bool { return t.rot() == 0 && !t.Mirror && t.Disp.IsZero() }

func (t Trans) String() string {
	m := "r"
	if t.Mirror {
		m = "m"
	}
	return fmt.Sprintf("%s%d %d,%d", m, t.rot()*90, t.Disp.DX, t.Disp.DY)
}
