/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package resolve

import (
	"errors"
	"testing"

	"layoutalign/internal/finder"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
)

func pointFeature(x, y int64) *finder.Feature {
	p := geom.P(x, y)
	return &finder.Feature{Location: p, Edge: geom.PointEdge(p), SnapPoint: &p}
}

func edgeFeature(e geom.Edge) *finder.Feature {
	return &finder.Feature{Location: e.P1, Edge: e}
}

type fakeTx struct {
	host   *fakeHost
	moved  []layout.Object
	closed int
}

func (t *fakeTx) ID() string { return "tx-1" }

func (t *fakeTx) Translate(obj layout.Object, d geom.Vector) error {
	t.moved = append(t.moved, obj)
	obj.Transform(geom.Translation(d))
	return nil
}

func (t *fakeTx) Close() error {
	t.closed++
	return nil
}

type fakeHost struct {
	names []string
	txs   []*fakeTx
	err   error
}

func (h *fakeHost) BeginTransaction(name string) (layout.Transaction, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.names = append(h.names, name)
	tx := &fakeTx{host: h}
	h.txs = append(h.txs, tx)
	return tx, nil
}

func TestOffsetCases(t *testing.T) {
	cases := []struct {
		name     string
		src, dst *finder.Feature
		want     geom.Vector
		err      error
	}{
		{"point-point", pointFeature(10, 10), pointFeature(13, 17), geom.V(3, 7), nil},
		{"point-horizontal", pointFeature(4, 4), edgeFeature(geom.E(0, 10, 20, 10)), geom.V(0, 6), nil},
		{"point-vertical", pointFeature(4, 4), edgeFeature(geom.E(-6, 0, -6, 30)), geom.V(-10, 0), nil},
		{"horizontal-point", edgeFeature(geom.E(0, 10, 20, 10)), pointFeature(4, 4), geom.V(0, -6), nil},
		{"vertical-vertical", edgeFeature(geom.E(10, 0, 10, 50)), edgeFeature(geom.E(25, 100, 25, 80)), geom.V(15, 0), nil},
		{"horizontal-horizontal", edgeFeature(geom.E(0, 5, 10, 5)), edgeFeature(geom.E(40, -3, 70, -3)), geom.V(0, -8), nil},
		{"non-parallel", edgeFeature(geom.E(0, 0, 10, 0)), edgeFeature(geom.E(20, 0, 20, 10)), geom.Vector{}, ErrNonParallel},
		{"diagonal-parallel", edgeFeature(geom.E(0, 0, 10, 10)), edgeFeature(geom.E(5, 0, 15, 10)), geom.Vector{}, ErrDiagonalEdge},
		{"point-diagonal", pointFeature(0, 0), edgeFeature(geom.E(0, 5, 5, 10)), geom.Vector{}, ErrDiagonalEdge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Offset(tc.src, tc.dst)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
			if tc.err == nil && got != tc.want {
				t.Fatalf("offset = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if Classify(pointFeature(1, 1)) != KindPoint || Classify(edgeFeature(geom.E(0, 0, 1, 0))) != KindEdge {
		t.Fatalf("classification mismatch")
	}
	if KindPoint.String() != "point" || KindEdge.String() != "edge" {
		t.Fatalf("kind names")
	}
}

func TestCommitSnapsAndTranslates(t *testing.T) {
	l := layout.New(0.001)
	l.AddLayer(layout.LayerInfo{Layer: 1})
	top := l.MustCell("TOP")
	box := top.AddBox(0, geom.NewBox(0, 0, 10, 10))
	h := &fakeHost{}
	r := New(h, Options{GridDBU: 5, Logger: applog.Discard()})

	src := pointFeature(10, 10)
	src.Shape = box
	res, err := r.Commit(nil, src, pointFeature(13, 17))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Raw != geom.V(3, 7) || res.Snapped != geom.V(5, 5) {
		t.Fatalf("raw %v snapped %v", res.Raw, res.Snapped)
	}
	if res.Applied != 1 || res.TransactionID != "tx-1" {
		t.Fatalf("result = %+v", res)
	}
	if box.Box != geom.NewBox(5, 5, 15, 15) {
		t.Fatalf("box not moved: %v", box.Box)
	}
	if len(h.names) != 1 || h.names[0] != TransactionName || h.txs[0].closed != 1 {
		t.Fatalf("transaction bookkeeping: %v closed=%d", h.names, h.txs[0].closed)
	}
}

func TestCommitRejectionClosesTransaction(t *testing.T) {
	h := &fakeHost{}
	r := New(h, Options{Logger: applog.Discard()})
	_, err := r.Commit(nil, edgeFeature(geom.E(0, 0, 10, 0)), edgeFeature(geom.E(20, 0, 20, 10)))
	if !errors.Is(err, ErrNonParallel) {
		t.Fatalf("err = %v", err)
	}
	if len(h.txs) != 1 || h.txs[0].closed != 1 || len(h.txs[0].moved) != 0 {
		t.Fatalf("expected an opened, untouched and closed transaction")
	}
	title, text, ok := Warning(err)
	if !ok || title != "Unsupported use case" || text != "Aligning non-parallel edges is not yet supported." {
		t.Fatalf("warning = %q %q %v", title, text, ok)
	}
}

func TestCommitBeginFailure(t *testing.T) {
	h := &fakeHost{err: errors.New("busy")}
	r := New(h, Options{Logger: applog.Discard()})
	if _, err := r.Commit(nil, pointFeature(0, 0), pointFeature(1, 1)); err == nil {
		t.Fatalf("expected begin error")
	}
}

func TestTransformeePrecedence(t *testing.T) {
	l := layout.New(0.001)
	l.AddLayer(layout.LayerInfo{Layer: 1})
	top := l.MustCell("TOP")
	a := l.MustCell("A")
	b := l.MustCell("B")
	sa := a.AddBox(0, geom.NewBox(0, 0, 10, 10))
	ib := b.MustPlace(a, geom.Identity)
	itop := top.MustPlace(b, geom.Identity)
	loose := top.AddBox(0, geom.NewBox(50, 50, 60, 60))

	deep := pointFeature(0, 0)
	deep.Shape = sa
	deep.Path = []*layout.Instance{itop, ib}

	if got := Transformees([]layout.Object{loose}, deep); len(got) != 1 || got[0] != layout.Object(loose) {
		t.Fatalf("pre-selection must win: %v", got)
	}
	if got := Transformees(nil, deep); len(got) != 1 || got[0] != layout.Object(itop) {
		t.Fatalf("expected outermost instance: %v", got)
	}
	flat := pointFeature(55, 55)
	flat.Shape = loose
	if got := Transformees(nil, flat); len(got) != 1 || got[0] != layout.Object(loose) {
		t.Fatalf("expected the shape itself: %v", got)
	}
	inst := pointFeature(0, 0)
	inst.Instance = itop
	if got := Transformees(nil, inst); len(got) != 1 || got[0] != layout.Object(itop) {
		t.Fatalf("expected the instance itself: %v", got)
	}
	if got := Transformees(nil, pointFeature(0, 0)); len(got) != 0 {
		t.Fatalf("ruler source without pre-selection moves nothing: %v", got)
	}
}

func TestWarningIgnoresOtherErrors(t *testing.T) {
	if _, _, ok := Warning(errors.New("x")); ok {
		t.Fatalf("unexpected warning")
	}
	if _, _, ok := Warning(ErrDiagonalEdge); !ok {
		t.Fatalf("diagonal edges should produce a warning")
	}
}

func TestHookSeesClosedCommit(t *testing.T) {
	h := &fakeHost{}
	var seen []error
	r := New(h, Options{Logger: applog.Discard(), Hook: func(res Result, err error) {
		if h.txs[0].closed != 1 {
			t.Errorf("hook ran before the transaction closed")
		}
		seen = append(seen, err)
	}})
	_, _ = r.Commit(nil, edgeFeature(geom.E(0, 0, 10, 0)), edgeFeature(geom.E(20, 0, 20, 10)))
	if len(seen) != 1 || !errors.Is(seen[0], ErrNonParallel) {
		t.Fatalf("hook calls = %v", seen)
	}
}
