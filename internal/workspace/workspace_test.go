/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"layoutalign/internal/config"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	"layoutalign/internal/resolve"
	"layoutalign/internal/telemetry"
)

const dbu = 0.001

func um(x, y int64) geom.DPoint { return geom.P(x, y).ToMicrons(dbu) }

// writeScene saves a scene with a movable box, a reference box and a placed
// cell, viewed at one pixel per database unit.
func writeScene(t *testing.T) string {
	t.Helper()
	l := layout.New(dbu)
	l.AddLayer(layout.LayerInfo{Layer: 1, Name: "metal1"})
	top := l.MustCell("TOP")
	pad := l.MustCell("PAD")
	pad.AddBox(0, geom.NewBox(0, 0, 50, 50))
	top.AddBox(0, geom.NewBox(0, 0, 100, 100))
	top.AddBox(0, geom.NewBox(300, 0, 400, 200))
	top.MustPlace(pad, geom.Translation(geom.V(0, 500)))
	v := layout.NewView(l, top)
	v.SetMagnification(1000)
	path := filepath.Join(t.TempDir(), "chip"+layout.SceneExt)
	if err := layout.Save(&layout.Handle{Path: path, View: v}); err != nil {
		t.Fatalf("save scene: %v", err)
	}
	return path
}

func open(t *testing.T, path string, opts Options) *Workspace {
	t.Helper()
	if opts.Config.ConfigVersion == 0 {
		opts.Config = config.Defaults()
	}
	w, err := Open(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestFindUsesConfiguredRadius(t *testing.T) {
	w := open(t, writeScene(t), Options{})
	f, _, ok := w.Find(um(101, 50), 0, false)
	if !ok || !f.IsPoint() || *f.SnapPoint != geom.P(100, 50) {
		t.Fatalf("expected edge midpoint, got %v ok=%v", f, ok)
	}
	if _, _, ok := w.Find(um(200, 50), 0, false); ok {
		t.Fatalf("nothing lies within 20 px of (200,50)")
	}
	if _, _, ok := w.Find(um(200, 50), 150, false); !ok {
		t.Fatalf("a wider radius must reach the boxes")
	}
}

func TestAlignMovesAndJournals(t *testing.T) {
	path := writeScene(t)
	dsn := filepath.Join(t.TempDir(), "journal.db")
	w := open(t, path, Options{JournalDSN: dsn})
	res, err := w.Align(um(101, 50), um(299, 100))
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if res.Snapped != geom.V(200, 50) || res.Applied != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := w.View().TopCell().Shapes(0)[0].Box; got != geom.NewBox(200, 50, 300, 150) {
		t.Fatalf("box not moved: %v", got)
	}
	if err := w.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	ents, err := w.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(ents) != 1 || ents[0].Session != w.SessionID || ents[0].DX != 200 || ents[0].DY != 50 {
		t.Fatalf("unexpected journal %+v", ents)
	}

	h, err := layout.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := h.View.TopCell().Shapes(0)[0].Box; got != geom.NewBox(200, 50, 300, 150) {
		t.Fatalf("saved box = %v", got)
	}
}

func TestAlignRejectsNonParallelEdges(t *testing.T) {
	cfg := config.Defaults()
	cfg.Tool.SearchRadiusPx = 5
	w := open(t, writeScene(t), Options{Config: cfg, JournalDSN: filepath.Join(t.TempDir(), "j.db")})
	_, err := w.Align(um(101, 20), um(320, 201))
	if !errors.Is(err, resolve.ErrNonParallel) {
		t.Fatalf("expected ErrNonParallel, got %v", err)
	}
	if len(w.Dock.Warnings) != 1 || w.Dock.Warnings[0].Title != "Unsupported use case" {
		t.Fatalf("warning not presented: %+v", w.Dock.Warnings)
	}
	if w.View().TransactionOpen() {
		t.Fatalf("transaction left open")
	}
	ents, err := w.History(context.Background(), 0)
	if err != nil || len(ents) != 1 || ents[0].Message == "" {
		t.Fatalf("rejection not journaled: %+v %v", ents, err)
	}
}

func TestAlignWithoutFeature(t *testing.T) {
	w := open(t, writeScene(t), Options{})
	if _, err := w.Align(um(200, 300), um(299, 100)); !errors.Is(err, ErrNoFeature) {
		t.Fatalf("expected ErrNoFeature, got %v", err)
	}
	if w.Tool.State().String() != "inactive" {
		t.Fatalf("tool left active: %s", w.Tool.State())
	}
	if _, err := w.History(context.Background(), 1); err == nil {
		t.Fatalf("history without journal must fail")
	}
}

func TestSelectAndPreview(t *testing.T) {
	w := open(t, writeScene(t), Options{})
	if err := w.Select("PAD"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := w.Select("NOPE"); !errors.Is(err, layout.ErrUnknownCell) {
		t.Fatalf("expected ErrUnknownCell, got %v", err)
	}
	if n := len(w.View().Selection()); n != 1 {
		t.Fatalf("failed select must keep the selection, got %d", n)
	}
	w.Preview(um(101, 50))
	if w.Dock.PreSelection != "Pre-selection: 1 instance" {
		t.Fatalf("dock pre-selection = %q", w.Dock.PreSelection)
	}
	if len(w.Markers()) != 3 {
		t.Fatalf("expected edge, snap point and search box markers, got %d", len(w.Markers()))
	}
}

func TestJournalFromConfig(t *testing.T) {
	t.Setenv("LAL_CONFIG_DIR", t.TempDir())
	cfg := config.Defaults()
	cfg.Journal.Enabled = true
	w := open(t, writeScene(t), Options{Config: cfg})
	if w.Journal == nil {
		t.Fatalf("enabled journal must open at the default location")
	}
}

func TestAlignSendsTelemetryEvent(t *testing.T) {
	events := make(chan telemetry.Event, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var e telemetry.Event
		if json.Unmarshal(b, &e) == nil {
			events <- e
		}
	}))
	defer srv.Close()
	tc := telemetry.New(telemetry.Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer tc.Close()

	w := open(t, writeScene(t), Options{Telemetry: tc})
	if _, err := w.Align(um(101, 50), um(299, 100)); err != nil {
		t.Fatalf("align: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tc.Flush(ctx)
	select {
	case e := <-events:
		if e.Name != "align" || e.Props["status"] != "applied" || e.Props["source"] != "point" {
			t.Fatalf("unexpected event %+v", e)
		}
		if _, leaked := e.Props["scene"]; leaked {
			t.Fatalf("scene path must not be sent")
		}
	default:
		t.Fatalf("no telemetry event received")
	}
}

func TestHideLayers(t *testing.T) {
	w := open(t, writeScene(t), Options{})
	if err := w.HideLayers("via1"); !errors.Is(err, layout.ErrUnknownLayer) {
		t.Fatalf("expected ErrUnknownLayer, got %v", err)
	}
	if err := w.HideLayers("metal1"); err != nil {
		t.Fatalf("HideLayers: %v", err)
	}
	if vis := w.View().VisibleLayers(); len(vis) != 0 {
		t.Fatalf("visible layers = %v", vis)
	}
	if f, _, ok := w.Find(um(101, 50), 0, false); ok {
		t.Fatalf("shapes on a hidden layer were found: %v", f)
	}
	// instance bounding boxes do not depend on layer visibility
	if f, _, ok := w.Find(um(51, 525), 0, false); !ok || f.Instance == nil {
		t.Fatalf("expected the PAD instance, got %v", f)
	}
}
