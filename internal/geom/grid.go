/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "math"

// SnapToGrid rounds v to the nearest multiple of grid. Exact halves go to the
// even multiple so that repeated alignments do not drift in one direction.
// A grid of zero or less leaves v unchanged.
func SnapToGrid(v, grid int64) int64 {
	if grid <= 0 {
		return v
	}
	return int64(math.RoundToEven(float64(v)/float64(grid))) * grid
}

// SnapVector snaps both components of v.
func SnapVector(v Vector, grid int64) Vector {
	return Vector{DX: SnapToGrid(v.DX, grid), DY: SnapToGrid(v.DY, grid)}
}

// GridDBU converts a physical grid pitch into database units. The result is
// rounded rather than truncated so that 0.005/0.001 yields 5, and it is at
// least 1 whenever the pitch is positive.
func GridDBU(gridMicrons, dbu float64) int64 {
	if gridMicrons <= 0 || dbu <= 0 {
		return 0
	}
	g := Round(gridMicrons / dbu)
	if g < 1 {
		g = 1
	}
	return g
}
