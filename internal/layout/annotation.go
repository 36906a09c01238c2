/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import "layoutalign/internal/geom"

// Outline selects how an annotation is drawn and how the finder treats it.
type Outline int

const (
	// OutlineRuler is a free-form ruler: only its defining points are snappable.
	OutlineRuler Outline = iota
	// OutlineBox spans a box between the first and last point.
	OutlineBox
)

func (o Outline) String() string {
	if o == OutlineBox {
		return "box"
	}
	return "ruler"
}

// Annotation is a user-drawn ruler in micron coordinates.
type Annotation struct {
	Name    string
	Outline Outline
	Points  []geom.DPoint
}

// Box spans the first and the last point. Without points it is empty.
func (a Annotation) Box() geom.DBox {
	if len(a.Points) == 0 {
		return geom.DBox{Left: 1, Right: -1, Bottom: 1, Top: -1}
	}
	p1, p2 := a.Points[0], a.Points[len(a.Points)-1]
	return geom.DBox{
		Left: min(p1.X, p2.X), Bottom: min(p1.Y, p2.Y),
		Right: max(p1.X, p2.X), Top: max(p1.Y, p2.Y),
	}
}
