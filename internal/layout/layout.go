/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout is the in-memory hierarchical layout database used as the
// reference host for the align tool: cells with per-layer shapes, placed
// child instances, and a View carrying the display state the finder reads.
package layout

import (
	"errors"
	"fmt"
	"slices"

	"layoutalign/internal/geom"
)

var (
	ErrUnknownCell  = errors.New("unknown cell")
	ErrUnknownLayer = errors.New("unknown layer")
	ErrDuplicate    = errors.New("duplicate cell name")
	ErrRecursive    = errors.New("recursive cell placement")
)

// LayerInfo names a layer. Its position in Layout.Layers is the layer id.
type LayerInfo struct {
	Name     string
	Layer    int
	Datatype int
}

func (li LayerInfo) String() string {
	if li.Name != "" {
		return fmt.Sprintf("%s (%d/%d)", li.Name, li.Layer, li.Datatype)
	}
	return fmt.Sprintf("%d/%d", li.Layer, li.Datatype)
}

// Layout owns cells and layers. DBU is the size of one database unit in microns.
type Layout struct {
	DBU    float64
	Layers []LayerInfo

	cells  []*Cell
	byName map[string]*Cell
	bboxes map[*Cell]geom.Box
}

// New creates an empty layout with the given database unit.
func New(dbu float64) *Layout {
	if dbu <= 0 {
		dbu = 0.001
	}
	return &Layout{DBU: dbu, byName: map[string]*Cell{}, bboxes: map[*Cell]geom.Box{}}
}

// AddLayer registers a layer and returns its id.
func (l *Layout) AddLayer(info LayerInfo) int {
	l.Layers = append(l.Layers, info)
	return len(l.Layers) - 1
}

// LayerByName returns the id of the first layer with the given name.
func (l *Layout) LayerByName(name string) (int, bool) {
	for i, li := range l.Layers {
		if li.Name == name {
			return i, true
		}
	}
	return -1, false
}

// AddCell creates a new empty cell.
func (l *Layout) AddCell(name string) (*Cell, error) {
	if _, ok := l.byName[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	c := &Cell{Name: name, layout: l, shapes: map[int][]*Shape{}}
	l.cells = append(l.cells, c)
	l.byName[name] = c
	return c, nil
}

// MustCell is AddCell for fixtures; it panics on a duplicate name.
func (l *Layout) MustCell(name string) *Cell {
	c, err := l.AddCell(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Cell looks up a cell by name.
func (l *Layout) Cell(name string) (*Cell, error) {
	c, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCell, name)
	}
	return c, nil
}

// Cells returns all cells in creation order.
func (l *Layout) Cells() []*Cell { return slices.Clone(l.cells) }

// TopCells returns the cells that are not placed anywhere.
func (l *Layout) TopCells() []*Cell {
	placed := map[*Cell]bool{}
	for _, c := range l.cells {
		for _, in := range c.instances {
			placed[in.Cell] = true
		}
	}
	var out []*Cell
	for _, c := range l.cells {
		if !placed[c] {
			out = append(out, c)
		}
	}
	return out
}

func (l *Layout) invalidate() { clear(l.bboxes) }

// Cell holds shapes per layer and child instances. Instance order is the
// order of insertion, which is also the traversal order.
type Cell struct {
	Name string

	layout    *Layout
	shapes    map[int][]*Shape
	instances []*Instance
}

func (c *Cell) Layout() *Layout { return c.layout }

// Shapes returns the shapes of the cell on one layer.
func (c *Cell) Shapes(layer int) []*Shape { return c.shapes[layer] }

// Instances returns the child instances placed in this cell.
func (c *Cell) Instances() []*Instance { return c.instances }

// AddBox places a box shape on a layer.
func (c *Cell) AddBox(layer int, b geom.Box) *Shape {
	return c.addShape(&Shape{Kind: KindBox, Layer: layer, Box: b})
}

// AddPolygon places a polygon shape on a layer.
func (c *Cell) AddPolygon(layer int, p geom.Polygon) *Shape {
	return c.addShape(&Shape{Kind: KindPolygon, Layer: layer, Polygon: p})
}

// AddText places a text label. Texts have no polygon form.
func (c *Cell) AddText(layer int, text string, at geom.Point) *Shape {
	return c.addShape(&Shape{Kind: KindText, Layer: layer, Text: text, At: at})
}

func (c *Cell) addShape(s *Shape) *Shape {
	s.cell = c
	c.shapes[s.Layer] = append(c.shapes[s.Layer], s)
	c.layout.invalidate()
	return s
}

// Place creates an instance of child inside c.
func (c *Cell) Place(child *Cell, t geom.Trans) (*Instance, error) {
	if child == c || child.contains(c) {
		return nil, fmt.Errorf("%w: %s in %s", ErrRecursive, child.Name, c.Name)
	}
	in := &Instance{Cell: child, Trans: t, parent: c}
	c.instances = append(c.instances, in)
	c.layout.invalidate()
	return in, nil
}

// MustPlace is Place for fixtures.
func (c *Cell) MustPlace(child *Cell, t geom.Trans) *Instance {
	in, err := c.Place(child, t)
	if err != nil {
		panic(err)
	}
	return in
}

// contains reports whether c places other anywhere below it.
func (c *Cell) contains(other *Cell) bool {
	for _, in := range c.instances {
		if in.Cell == other || in.Cell.contains(other) {
			return true
		}
	}
	return false
}

// BBox is the bounding box of all shapes and child instances.
func (c *Cell) BBox() geom.Box {
	if b, ok := c.layout.bboxes[c]; ok {
		return b
	}
	b := geom.EmptyBox()
	for _, ss := range c.shapes {
		for _, s := range ss {
			b = b.Union(s.BBox())
		}
	}
	for _, in := range c.instances {
		b = b.Union(in.BBox())
	}
	c.layout.bboxes[c] = b
	return b
}

// Object is an element of a cell that can be selected and moved: either an
// *Instance or a *Shape.
type Object interface {
	// BBox in the coordinates of the owning cell.
	BBox() geom.Box
	// Owner is the cell the object lives in.
	Owner() *Cell
	// Transform moves the object within its owner cell.
	Transform(t geom.Trans)

	isObject()
}

// Instance places a child cell inside a parent with an orthogonal transformation.
type Instance struct {
	Cell  *Cell
	Trans geom.Trans

	parent *Cell
}

func (in *Instance) isObject()    {}
func (in *Instance) Owner() *Cell { return in.parent }

// BBox is the child bounding box in parent coordinates.
func (in *Instance) BBox() geom.Box { return in.Cell.BBox().Transformed(in.Trans) }

func (in *Instance) Transform(t geom.Trans) {
	in.Trans = t.Mul(in.Trans)
	in.parent.layout.invalidate()
}

func (in *Instance) String() string {
	if in.Trans.IsIdentity() {
		return in.Cell.Name
	}
	return fmt.Sprintf("%s %s", in.Cell.Name, in.Trans)
}

// ShapeKind tells polygons, boxes and texts apart.
type ShapeKind int

const (
	KindPolygon ShapeKind = iota
	KindBox
	KindText
)

func (k ShapeKind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindText:
		return "text"
	default:
		return "polygon"
	}
}

// Shape is a single geometric element on a layer.
type Shape struct {
	Kind    ShapeKind
	Layer   int
	Polygon geom.Polygon
	Box     geom.Box
	Text    string
	At      geom.Point

	cell *Cell
}

func (s *Shape) isObject()    {}
func (s *Shape) Owner() *Cell { return s.cell }

// AsPolygon returns the polygon form of the shape. Texts have none.
func (s *Shape) AsPolygon() (geom.Polygon, bool) {
	switch s.Kind {
	case KindBox:
		return geom.BoxPolygon(s.Box), true
	case KindPolygon:
		return s.Polygon, true
	default:
		return geom.Polygon{}, false
	}
}

func (s *Shape) BBox() geom.Box {
	switch s.Kind {
	case KindBox:
		return s.Box
	case KindPolygon:
		return s.Polygon.BBox()
	default:
		return geom.NewBox(s.At.X, s.At.Y, s.At.X, s.At.Y)
	}
}

func (s *Shape) Transform(t geom.Trans) {
	switch s.Kind {
	case KindBox:
		s.Box = s.Box.Transformed(t)
	case KindPolygon:
		s.Polygon = s.Polygon.Transformed(t)
	default:
		s.At = t.Apply(s.At)
	}
	if s.cell != nil {
		s.cell.layout.invalidate()
	}
}

func (s *Shape) String() string {
	switch s.Kind {
	case KindBox:
		return "box " + s.Box.String()
	case KindText:
		return fmt.Sprintf("text %q at %s", s.Text, s.At)
	default:
		return fmt.Sprintf("polygon %d pts %s", len(s.Polygon.Hull), s.Polygon.BBox())
	}
}

// CountObjects splits a list of objects into instance and shape counts.
func CountObjects(objs []Object) (instances, shapes int) {
	for _, o := range objs {
		switch o.(type) {
		case *Instance:
			instances++
		case *Shape:
			shapes++
		}
	}
	return instances, shapes
}
