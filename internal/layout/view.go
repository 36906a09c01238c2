/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"fmt"
	"iter"
	"slices"

	"layoutalign/internal/geom"
	"layoutalign/internal/undo"
)

// DefaultMaxLevels is the hierarchy depth shown by a fresh view.
const DefaultMaxLevels = 32

// View is a window onto a layout: the current top cell, what is visible,
// the zoom, rulers and the selection. It also owns the edit history.
type View struct {
	Layout *Layout

	top          *Cell
	hiddenCells  map[*Cell]bool
	hiddenLayers map[int]bool
	minLevels    int
	maxLevels    int
	mag          float64
	visible      bool
	annotations  []Annotation
	selection    []Object
	history      *undo.Manager
}

// NewView shows top with all layers visible at a magnification of one pixel
// per micron.
func NewView(l *Layout, top *Cell) *View {
	return &View{
		Layout:       l,
		top:          top,
		hiddenCells:  map[*Cell]bool{},
		hiddenLayers: map[int]bool{},
		maxLevels:    DefaultMaxLevels,
		mag:          1,
		visible:      true,
		history:      undo.NewManager(undo.Config{MaxPerScope: 100, MaxTotal: 1000}),
	}
}

func (v *View) DBU() float64      { return v.Layout.DBU }
func (v *View) TopCell() *Cell    { return v.top }
func (v *View) IsVisible() bool   { return v.visible }
func (v *View) SetVisible(b bool) { v.visible = b }

// SetTopCell shows another cell as top ("show as new top").
func (v *View) SetTopCell(c *Cell) { v.top = c }

func (v *View) CellHidden(c *Cell) bool { return v.hiddenCells[c] }

// SetCellHidden hides or shows a cell and everything it places.
func (v *View) SetCellHidden(c *Cell, hidden bool) {
	if hidden {
		v.hiddenCells[c] = true
	} else {
		delete(v.hiddenCells, c)
	}
}

// HierarchyLevels returns the displayed hierarchy range. Level 0 shows
// only the top cell as a box; level 1 shows its content.
func (v *View) HierarchyLevels() (minLevel, maxLevel int) { return v.minLevels, v.maxLevels }

func (v *View) SetHierarchyLevels(minLevel, maxLevel int) error {
	if minLevel < 0 || maxLevel < minLevel {
		return fmt.Errorf("invalid hierarchy levels %d..%d", minLevel, maxLevel)
	}
	v.minLevels, v.maxLevels = minLevel, maxLevel
	return nil
}

// SetLayerVisible toggles a layer in the layer list.
func (v *View) SetLayerVisible(layer int, visible bool) error {
	if layer < 0 || layer >= len(v.Layout.Layers) {
		return fmt.Errorf("%w: %d", ErrUnknownLayer, layer)
	}
	if visible {
		delete(v.hiddenLayers, layer)
	} else {
		v.hiddenLayers[layer] = true
	}
	return nil
}

// VisibleLayers lists the ids of the visible layers in layer list order.
func (v *View) VisibleLayers() []int {
	var out []int
	for i := range v.Layout.Layers {
		if !v.hiddenLayers[i] {
			out = append(out, i)
		}
	}
	return out
}

// Magnification is the viewport scale in pixels per micron.
func (v *View) Magnification() float64 { return v.mag }

func (v *View) SetMagnification(m float64) {
	if m > 0 {
		v.mag = m
	}
}

// PixelsPerDBU is the viewport scale against the integer grid.
func (v *View) PixelsPerDBU() float64 { return v.mag * v.Layout.DBU }

func (v *View) Instances(box geom.Box, minDepth, maxDepth int) iter.Seq[InstanceHit] {
	return RecursiveInstances(v.top, box, minDepth, maxDepth)
}

func (v *View) Shapes(layer int, box geom.Box, minDepth, maxDepth int) iter.Seq[ShapeHit] {
	return RecursiveShapes(v.top, layer, box, minDepth, maxDepth)
}

func (v *View) Annotations() []Annotation { return v.annotations }

// AddAnnotation places a ruler.
func (v *View) AddAnnotation(a Annotation) { v.annotations = append(v.annotations, a) }

// Selection returns the currently selected objects.
func (v *View) Selection() []Object { return slices.Clone(v.selection) }

// Select replaces the selection.
func (v *View) Select(objs ...Object) { v.selection = slices.Clone(objs) }

func (v *View) ClearSelection() { v.selection = nil }

// scope keys the edit history by the shown top cell.
func (v *View) scope() string {
	if v.top == nil {
		return ""
	}
	return v.top.Name
}

// Transaction groups edits into one undoable step.
type Transaction interface {
	// ID identifies the history entry the transaction commits.
	ID() string
	// Translate moves obj within its owner cell and records the edit.
	Translate(obj Object, d geom.Vector) error
	// Close commits the transaction. Further calls do nothing.
	Close() error
}

type viewTx struct {
	tx *undo.Tx
}

// BeginTransaction opens a named edit transaction on the current top cell.
func (v *View) BeginTransaction(name string) (Transaction, error) {
	tx, err := v.history.Begin(v.scope(), name)
	if err != nil {
		return nil, fmt.Errorf("begin %q: %w", name, err)
	}
	return &viewTx{tx: tx}, nil
}

func (t *viewTx) ID() string { return t.tx.ID() }

func (t *viewTx) Translate(obj Object, d geom.Vector) error {
	if obj == nil {
		return fmt.Errorf("translate: nil object")
	}
	obj.Transform(geom.Translation(d))
	t.tx.Record(undo.Op{Target: obj, Delta: d})
	return nil
}

func (t *viewTx) Close() error {
	t.tx.Close()
	return nil
}

func (v *View) applyDelta(target any, d geom.Vector) {
	if o, ok := target.(Object); ok {
		o.Transform(geom.Translation(d))
	}
}

// Undo reverts the latest transaction and returns its name.
func (v *View) Undo() (string, bool) {
	e, ok := v.history.Undo(v.scope(), v.applyDelta)
	return e.Name, ok
}

// Redo re-applies the latest undone transaction.
func (v *View) Redo() (string, bool) {
	e, ok := v.history.Redo(v.scope(), v.applyDelta)
	return e.Name, ok
}

// History lists the committed transaction names of the current top cell.
func (v *View) History() []string {
	var out []string
	for _, e := range v.history.History(v.scope()) {
		out = append(out, e.Name)
	}
	return out
}

// TransactionOpen reports whether an edit transaction is pending.
func (v *View) TransactionOpen() bool { return v.history.IsOpen(v.scope()) }
