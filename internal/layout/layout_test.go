/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"layoutalign/internal/geom"
)

// fixture builds TOP > B (at 1000,0) > A (r90), with a box in A and one in TOP.
func fixture(t *testing.T) (*View, *Instance, *Instance, *Shape) {
	t.Helper()
	l := New(0.001)
	m1 := l.AddLayer(LayerInfo{Name: "M1", Layer: 1})
	l.AddLayer(LayerInfo{Name: "M2", Layer: 2})
	top := l.MustCell("TOP")
	a := l.MustCell("A")
	b := l.MustCell("B")
	a.AddBox(m1, geom.NewBox(0, 0, 100, 50))
	inner := b.MustPlace(a, geom.Trans{Rot: 1})
	outer := top.MustPlace(b, geom.Translation(geom.V(1000, 0)))
	s := top.AddBox(m1, geom.NewBox(0, 0, 10, 10))
	return NewView(l, top), outer, inner, s
}

func TestBBoxAndTopCells(t *testing.T) {
	v, outer, _, _ := fixture(t)
	if bb := outer.BBox(); bb != geom.NewBox(950, 0, 1000, 100) {
		t.Fatalf("outer bbox = %v", bb)
	}
	if bb := v.TopCell().BBox(); bb != geom.NewBox(0, 0, 1000, 100) {
		t.Fatalf("top bbox = %v", bb)
	}
	tops := v.Layout.TopCells()
	if len(tops) != 1 || tops[0].Name != "TOP" {
		t.Fatalf("top cells = %v", tops)
	}
	outer.Transform(geom.Translation(geom.V(0, 5)))
	if bb := v.TopCell().BBox(); bb != geom.NewBox(0, 0, 1000, 105) {
		t.Fatalf("bbox cache not invalidated: %v", bb)
	}
}

func TestPlaceRejectsRecursion(t *testing.T) {
	l := New(0.001)
	a := l.MustCell("A")
	b := l.MustCell("B")
	a.MustPlace(b, geom.Identity)
	if _, err := b.Place(a, geom.Identity); !errors.Is(err, ErrRecursive) {
		t.Fatalf("expected ErrRecursive, got %v", err)
	}
	if _, err := l.AddCell("A"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := l.Cell("nope"); !errors.Is(err, ErrUnknownCell) {
		t.Fatalf("expected ErrUnknownCell, got %v", err)
	}
}

func TestRecursiveInstancesDepthAndPath(t *testing.T) {
	v, outer, inner, _ := fixture(t)
	box := geom.NewBox(-10000, -10000, 10000, 10000)

	var hits []InstanceHit
	for h := range v.Instances(box, 0, 10) {
		hits = append(hits, h)
	}
	if len(hits) != 2 || hits[0].Inst != outer || hits[1].Inst != inner {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if len(hits[0].Path) != 0 || len(hits[1].Path) != 1 || hits[1].Path[0] != outer {
		t.Fatalf("unexpected paths: %+v", hits)
	}
	if bb := hits[1].TopBBox(); bb != geom.NewBox(950, 0, 1000, 100) {
		t.Fatalf("inner top bbox = %v", bb)
	}

	n := 0
	for h := range v.Instances(box, 1, 1) {
		if h.Inst != inner {
			t.Fatalf("depth 1 only, got %v", h.Inst)
		}
		n++
	}
	if n != 1 {
		t.Fatalf("expected one hit at depth 1, got %d", n)
	}
	for range v.Instances(geom.NewBox(5000, 5000, 6000, 6000), 0, 10) {
		t.Fatalf("no instance overlaps a far away box")
	}
}

func TestRecursiveShapes(t *testing.T) {
	v, _, _, s := fixture(t)
	box := geom.NewBox(-10000, -10000, 10000, 10000)
	var got []ShapeHit
	for h := range v.Shapes(0, box, 0, 0) {
		got = append(got, h)
	}
	if len(got) != 1 || got[0].Shape != s {
		t.Fatalf("depth 0 holds only the top shape, got %+v", got)
	}
	got = got[:0]
	for h := range v.Shapes(0, box, 0, 10) {
		got = append(got, h)
	}
	if len(got) != 2 || got[1].Depth != 2 || len(got[1].Path) != 2 {
		t.Fatalf("unexpected deep hits: %+v", got)
	}
	p, ok := got[1].Shape.AsPolygon()
	if !ok {
		t.Fatalf("box has a polygon form")
	}
	if bb := p.Transformed(got[1].Trans).BBox(); bb != geom.NewBox(950, 0, 1000, 100) {
		t.Fatalf("shape in top coordinates = %v", bb)
	}
	// stop early
	n := 0
	for range v.Shapes(0, box, 0, 10) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("early break not honoured")
	}
}

func TestViewTransactionUndoRedo(t *testing.T) {
	v, outer, _, s := fixture(t)
	tx, err := v.BeginTransaction("align")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !v.TransactionOpen() {
		t.Fatalf("transaction should be open")
	}
	if _, err := v.BeginTransaction("nested"); err == nil {
		t.Fatalf("nested transaction must fail")
	}
	if err := tx.Translate(outer, geom.V(5, 0)); err != nil {
		t.Fatalf("translate: %v", err)
	}
	if err := tx.Translate(s, geom.V(0, 5)); err != nil {
		t.Fatalf("translate: %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if v.TransactionOpen() {
		t.Fatalf("transaction should be closed")
	}
	if outer.Trans.Disp != geom.V(1005, 0) || s.Box != geom.NewBox(0, 5, 10, 15) {
		t.Fatalf("translation not applied: %v %v", outer.Trans, s.Box)
	}
	if h := v.History(); len(h) != 1 || h[0] != "align" {
		t.Fatalf("history = %v", h)
	}
	if name, ok := v.Undo(); !ok || name != "align" {
		t.Fatalf("undo = %q %v", name, ok)
	}
	if outer.Trans.Disp != geom.V(1000, 0) || s.Box != geom.NewBox(0, 0, 10, 10) {
		t.Fatalf("undo not applied: %v %v", outer.Trans, s.Box)
	}
	if _, ok := v.Redo(); !ok || outer.Trans.Disp != geom.V(1005, 0) {
		t.Fatalf("redo not applied: %v", outer.Trans)
	}
}

func TestSceneRoundTripAndBackups(t *testing.T) {
	v, outer, _, s := fixture(t)
	v.Select(outer, s)
	a, _ := v.Layout.Cell("A")
	v.SetCellHidden(a, true)
	if err := v.SetLayerVisible(1, false); err != nil {
		t.Fatalf("SetLayerVisible: %v", err)
	}
	v.SetMagnification(4)
	v.AddAnnotation(Annotation{Name: "r", Outline: OutlineBox, Points: []geom.DPoint{{X: 0, Y: 0}, {X: 1, Y: 2}}})
	v.Layout.Cells()[0].AddText(0, "PAD", geom.P(3, 4))

	path := filepath.Join(t.TempDir(), "chip"+SceneExt)
	h := &Handle{Path: path, View: v}
	if err := Save(h); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := Save(h); err != nil {
		t.Fatalf("second save: %v", err)
	}
	ents, err := os.ReadDir(h.BackupsDir())
	if err != nil || len(ents) != 1 {
		t.Fatalf("expected one backup, got %d (%v)", len(ents), err)
	}

	h2, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v2 := h2.View
	if v2.TopCell().Name != "TOP" || v2.DBU() != 0.001 || v2.Magnification() != 4 {
		t.Fatalf("view state lost: top=%s dbu=%v mag=%v", v2.TopCell().Name, v2.DBU(), v2.Magnification())
	}
	if vis := v2.VisibleLayers(); len(vis) != 1 || vis[0] != 0 {
		t.Fatalf("visible layers = %v", vis)
	}
	a2, _ := v2.Layout.Cell("A")
	if !v2.CellHidden(a2) {
		t.Fatalf("hidden cell lost")
	}
	sel := v2.Selection()
	if len(sel) != 2 {
		t.Fatalf("selection lost: %v", sel)
	}
	if in, ok := sel[0].(*Instance); !ok || in.Cell.Name != "B" || in.Trans.Disp != geom.V(1000, 0) {
		t.Fatalf("selected instance = %v", sel[0])
	}
	if sh, ok := sel[1].(*Shape); !ok || sh.Box != geom.NewBox(0, 0, 10, 10) {
		t.Fatalf("selected shape = %v", sel[1])
	}
	if ann := v2.Annotations(); len(ann) != 1 || ann[0].Outline != OutlineBox || ann[0].Box().Top != 2 {
		t.Fatalf("annotations = %+v", ann)
	}
	top := v2.TopCell()
	if got := len(top.Shapes(0)); got != 2 {
		t.Fatalf("expected box and text in TOP, got %d", got)
	}
	if _, ok := top.Shapes(0)[1].AsPolygon(); ok {
		t.Fatalf("text must have no polygon form")
	}
}

func TestOpenFallsBackToBackup(t *testing.T) {
	v, _, _, _ := fixture(t)
	path := filepath.Join(t.TempDir(), "chip"+SceneExt)
	h := &Handle{Path: path, View: v}
	if err := Save(h); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := Save(h); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	h2, err := Open(path)
	if err != nil {
		t.Fatalf("expected backup fallback, got %v", err)
	}
	if h2.View.TopCell().Name != "TOP" {
		t.Fatalf("unexpected top cell %s", h2.View.TopCell().Name)
	}
}

func TestDecodeRejectsInvalidScenes(t *testing.T) {
	cases := map[string]string{
		"missing top":   `{"version":1,"dbu":0.001,"cells":[{"name":"A"}]}`,
		"bad dbu":       `{"version":1,"dbu":0,"top":"A","cells":[{"name":"A"}]}`,
		"unknown top":   `{"version":1,"dbu":0.001,"top":"X","cells":[{"name":"A"}]}`,
		"unknown child": `{"version":1,"dbu":0.001,"top":"A","cells":[{"name":"A","instances":[{"cell":"Z"}]}]}`,
		"bad layer":     `{"version":1,"dbu":0.001,"top":"A","cells":[{"name":"A","shapes":[{"layer":3,"box":[0,0,1,1]}]}]}`,
		"two kinds":     `{"version":1,"dbu":0.001,"top":"A","layers":[{}],"cells":[{"name":"A","shapes":[{"layer":0,"box":[0,0,1,1],"polygon":[[0,0],[1,0],[1,1]]}]}]}`,
	}
	for name, doc := range cases {
		if _, err := Decode([]byte(doc)); !errors.Is(err, ErrInvalidScene) {
			t.Fatalf("%s: expected ErrInvalidScene, got %v", name, err)
		}
	}
	err := Validate([]byte(`{"version":1}`))
	if err == nil || !strings.Contains(err.Error(), "dbu") {
		t.Fatalf("expected schema error naming dbu, got %v", err)
	}
}

func TestCrashSnapshotFeedsBackupFallback(t *testing.T) {
	v, outer, _, _ := fixture(t)
	dir := t.TempDir()
	h := &Handle{Path: filepath.Join(dir, "old"+SceneExt), View: v}
	if err := SaveAs(h, filepath.Join(dir, "chip"+SceneExt)); err != nil {
		t.Fatalf("save as: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "old"+SceneExt)); !os.IsNotExist(err) {
		t.Fatalf("SaveAs must not write the old path: %v", err)
	}

	// unsaved edit, then a crash
	outer.Transform(geom.Translation(geom.V(0, 70)))
	snap, err := CrashSnapshot(h)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !strings.HasSuffix(snap, ".crash.bak") || filepath.Dir(snap) != h.BackupsDir() {
		t.Fatalf("snapshot path = %s", snap)
	}
	if err := os.WriteFile(h.Path, nil, 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	h2, err := Open(h.Path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	in := h2.View.TopCell().Instances()[0]
	if in.Trans.Disp != geom.V(1000, 70) {
		t.Fatalf("snapshot edit lost: %v", in.Trans)
	}
	if _, err := CrashSnapshot(nil); err == nil {
		t.Fatalf("nil handle must fail")
	}
}

func TestInstanceString(t *testing.T) {
	_, outer, inner, _ := fixture(t)
	if got := outer.String(); got != "B r0 1000,0" {
		t.Fatalf("outer = %q", got)
	}
	if got := inner.String(); got != "A r90 0,0" {
		t.Fatalf("inner = %q", got)
	}
	l := New(0.001)
	top, pad := l.MustCell("TOP"), l.MustCell("PAD")
	if got := top.MustPlace(pad, geom.Identity).String(); got != "PAD" {
		t.Fatalf("identity placement = %q", got)
	}
}
