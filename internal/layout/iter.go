/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"iter"
	"slices"

	"layoutalign/internal/geom"
)

// InstanceHit is an instance found by a recursive query. Trans maps the
// coordinates of the instance's parent cell into top cell coordinates. Path
// lists the enclosing instances from the top cell down, excluding Inst.
type InstanceHit struct {
	Inst  *Instance
	Trans geom.Trans
	Path  []*Instance
	Depth int
}

// TopBBox is the instance bounding box in top cell coordinates.
func (h InstanceHit) TopBBox() geom.Box { return h.Inst.BBox().Transformed(h.Trans) }

// ShapeHit is a shape found by a recursive query. Trans maps the coordinates
// of the owning cell into top cell coordinates.
type ShapeHit struct {
	Shape *Shape
	Trans geom.Trans
	Path  []*Instance
	Depth int
}

// RecursiveInstances yields the instances below top whose bounding box
// overlaps box. Depth 0 are the instances placed directly in top; only hits
// with minDepth <= depth <= maxDepth are reported.
func RecursiveInstances(top *Cell, box geom.Box, minDepth, maxDepth int) iter.Seq[InstanceHit] {
	return func(yield func(InstanceHit) bool) {
		var walk func(c *Cell, t geom.Trans, path []*Instance, depth int) bool
		walk = func(c *Cell, t geom.Trans, path []*Instance, depth int) bool {
			for _, in := range c.instances {
				if !in.BBox().Transformed(t).Overlaps(box) {
					continue
				}
				if depth >= minDepth {
					if !yield(InstanceHit{Inst: in, Trans: t, Path: slices.Clip(path), Depth: depth}) {
						return false
					}
				}
				if depth < maxDepth {
					if !walk(in.Cell, t.Mul(in.Trans), append(slices.Clip(path), in), depth+1) {
						return false
					}
				}
			}
			return true
		}
		walk(top, geom.Identity, nil, 0)
	}
}

// RecursiveShapes yields the shapes on layer below top whose bounding box
// overlaps box. Depth 0 are the shapes of top itself.
func RecursiveShapes(top *Cell, layer int, box geom.Box, minDepth, maxDepth int) iter.Seq[ShapeHit] {
	return func(yield func(ShapeHit) bool) {
		var walk func(c *Cell, t geom.Trans, path []*Instance, depth int) bool
		walk = func(c *Cell, t geom.Trans, path []*Instance, depth int) bool {
			if depth >= minDepth {
				for _, s := range c.shapes[layer] {
					if !s.BBox().Transformed(t).Overlaps(box) {
						continue
					}
					if !yield(ShapeHit{Shape: s, Trans: t, Path: slices.Clip(path), Depth: depth}) {
						return false
					}
				}
			}
			if depth >= maxDepth {
				return true
			}
			for _, in := range c.instances {
				if !in.BBox().Transformed(t).Overlaps(box) {
					continue
				}
				if !walk(in.Cell, t.Mul(in.Trans), append(slices.Clip(path), in), depth+1) {
					return false
				}
			}
			return true
		}
		walk(top, geom.Identity, nil, 0)
	}
}
