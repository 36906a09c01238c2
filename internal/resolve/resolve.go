/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package resolve turns a source and a target feature into a translation,
// snaps it to the manufacturing grid and applies it to the transformees in
// one undoable transaction.
package resolve

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"layoutalign/internal/finder"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
)

// TransactionName labels the undo entry of an alignment.
const TransactionName = "align"

var (
	// ErrNonParallel rejects aligning two edges that are not parallel.
	ErrNonParallel = errors.New("aligning non-parallel edges is not supported")
	// ErrDiagonalEdge rejects cases that need an axis-parallel edge.
	ErrDiagonalEdge = errors.New("aligning diagonal edges is not supported")
)

// Kind classifies a feature for the offset case table.
type Kind int

const (
	KindEdge Kind = iota
	KindPoint
)

func (k Kind) String() string {
	if k == KindPoint {
		return "point"
	}
	return "edge"
}

// Classify reports whether f is point-like or edge-like.
func Classify(f *finder.Feature) Kind {
	if f.IsPoint() {
		return KindPoint
	}
	return KindEdge
}

// Offset computes the translation moving src onto dst:
//
//	point -> point  full displacement between the snap points
//	point -> edge   displacement normal to the (axis-parallel) edge
//	edge  -> point  displacement normal to the (axis-parallel) edge
//	edge  -> edge   displacement normal to both, edges must be parallel
func Offset(src, dst *finder.Feature) (geom.Vector, error) {
	switch {
	case src.IsPoint() && dst.IsPoint():
		return dst.SnapPoint.Sub(*src.SnapPoint), nil
	case src.IsPoint():
		return pointToEdge(*src.SnapPoint, dst.Edge)
	case dst.IsPoint():
		v, err := pointToEdge(*dst.SnapPoint, src.Edge)
		return v.Neg(), err
	}
	e1, e2 := src.Edge, dst.Edge
	if !e1.IsParallel(e2) {
		return geom.Vector{}, ErrNonParallel
	}
	switch {
	case e1.IsHorizontal():
		return geom.V(0, e2.P1.Y-e1.P1.Y), nil
	case e1.IsVertical():
		return geom.V(e2.P1.X-e1.P1.X, 0), nil
	default:
		return geom.Vector{}, ErrDiagonalEdge
	}
}

// pointToEdge moves p onto the line through e.
func pointToEdge(p geom.Point, e geom.Edge) (geom.Vector, error) {
	switch {
	case e.IsHorizontal():
		return geom.V(0, e.P1.Y-p.Y), nil
	case e.IsVertical():
		return geom.V(e.P1.X-p.X, 0), nil
	default:
		return geom.Vector{}, ErrDiagonalEdge
	}
}

// Transformees decides which objects receive the translation. A non-empty
// pre-selection always wins. Otherwise a top cell object is moved itself,
// and anything deeper moves through its outermost instance.
func Transformees(preSelection []layout.Object, src *finder.Feature) []layout.Object {
	if len(preSelection) > 0 {
		return slices.Clone(preSelection)
	}
	if len(src.Path) > 0 {
		return []layout.Object{src.Path[0]}
	}
	if o := src.Object(); o != nil {
		return []layout.Object{o}
	}
	return nil
}

// Warning returns the user facing dialog for an unsupported case.
func Warning(err error) (title, text string, ok bool) {
	switch {
	case errors.Is(err, ErrNonParallel):
		return "Unsupported use case", "Aligning non-parallel edges is not yet supported.", true
	case errors.Is(err, ErrDiagonalEdge):
		return "Unsupported use case", "Aligning diagonal edges is not yet supported.", true
	default:
		return "", "", false
	}
}

// TransactionHost opens undoable edit transactions.
type TransactionHost interface {
	BeginTransaction(name string) (layout.Transaction, error)
}

// Result describes a finished or rejected alignment.
type Result struct {
	TransactionID string
	Source        Kind
	Target        Kind
	Raw           geom.Vector
	Snapped       geom.Vector
	Transformees  []layout.Object
	Applied       int
}

// Options configures a Resolver.
type Options struct {
	// GridDBU is the snapping pitch in database units; 0 disables snapping.
	GridDBU int64
	// Hook, if set, sees every commit attempt after its transaction closed.
	Hook   func(Result, error)
	Logger *slog.Logger
}

// Resolver commits alignments against a transaction host.
type Resolver struct {
	host TransactionHost
	grid int64
	hook func(Result, error)
	log  *slog.Logger
}

func New(host TransactionHost, opts Options) *Resolver {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("resolve")
	}
	return &Resolver{host: host, grid: opts.GridDBU, hook: opts.Hook, log: l}
}

// GridDBU is the snapping pitch in use.
func (r *Resolver) GridDBU() int64 { return r.grid }

// Commit aligns src to dst. The transaction is opened first and closed on
// every return path, including the rejection of unsupported cases.
func (r *Resolver) Commit(preSelection []layout.Object, src, dst *finder.Feature) (res Result, err error) {
	if src == nil || dst == nil {
		return res, errors.New("align: missing source or target feature")
	}
	l := applog.WithOperation(r.log, "commit")
	tx, err := r.host.BeginTransaction(TransactionName)
	if err != nil {
		return res, fmt.Errorf("align: %w", err)
	}
	res.TransactionID = tx.ID()
	defer func() {
		if cerr := tx.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("align: close transaction: %w", cerr)
		}
		if r.hook != nil {
			r.hook(res, err)
		}
	}()

	res.Source, res.Target = Classify(src), Classify(dst)
	raw, err := Offset(src, dst)
	if err != nil {
		l.Warn("alignment rejected",
			slog.String("source", res.Source.String()),
			slog.String("target", res.Target.String()),
			slog.String("source_edge", src.Edge.String()),
			slog.String("target_edge", dst.Edge.String()),
			slog.Any("err", err))
		return res, err
	}
	res.Raw = raw
	res.Snapped = geom.SnapVector(raw, r.grid)
	res.Transformees = Transformees(preSelection, src)
	for _, o := range res.Transformees {
		if err := tx.Translate(o, res.Snapped); err != nil {
			return res, fmt.Errorf("align: %w", err)
		}
		res.Applied++
	}
	l.Info("aligned",
		slog.String("source", res.Source.String()),
		slog.String("target", res.Target.String()),
		slog.String("raw", raw.String()),
		slog.String("snapped", res.Snapped.String()),
		slog.Int("objects", res.Applied))
	return res, nil
}
