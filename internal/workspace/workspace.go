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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"layoutalign/internal/align"
	"layoutalign/internal/config"
	"layoutalign/internal/finder"
	"layoutalign/internal/geom"
	"layoutalign/internal/journal"
	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
	"layoutalign/internal/present"
	"layoutalign/internal/resolve"
	"layoutalign/internal/telemetry"
)

// ErrNoFeature is returned by a headless pick that found nothing to snap to.
var ErrNoFeature = errors.New("no feature near the given location")

// Options configures Open.
type Options struct {
	Config config.AppConfig
	// Password completes a postgres journal DSN (see config.Load).
	Password string
	// JournalDSN forces journaling to this DSN regardless of the config.
	JournalDSN string
	// Magnification overrides the scene's stored zoom when positive.
	Magnification float64
	// Presenters receive the session notifications next to the dock.
	Presenters []present.Presenter
	// Telemetry receives anonymous alignment events; nil uses telemetry.Default.
	Telemetry *telemetry.Client
	Logger    *slog.Logger
}

// Workspace is an open scene with an alignment tool wired to it.
type Workspace struct {
	Handle    *layout.Handle
	Config    config.AppConfig
	Finder    *finder.Finder
	Resolver  *resolve.Resolver
	Tool      *align.Tool
	Dock      *present.Dock
	Session   present.Session
	Journal   *journal.Journal
	SessionID string

	telemetry *telemetry.Client
	log       *slog.Logger
}

// Open loads the scene at path and builds the tool around its view.
func Open(ctx context.Context, path string, opts Options) (*Workspace, error) {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("workspace")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	h, err := layout.Open(abs)
	if err != nil {
		return nil, err
	}
	v := h.View
	if opts.Magnification > 0 {
		v.SetMagnification(opts.Magnification)
	}
	cfg := opts.Config
	tc := opts.Telemetry
	if tc == nil {
		tc = telemetry.Default()
	}
	w := &Workspace{
		Handle:    h,
		Config:    cfg,
		Dock:      present.NewDock(),
		SessionID: uuid.NewString(),
		telemetry: tc,
		log:       applog.WithScene(l, abs),
	}

	if dsn, ok, err := journalDSN(cfg, opts); err != nil {
		return nil, err
	} else if ok {
		j, err := journal.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		w.Journal = j
	}

	w.Finder = finder.New(v, finder.Options{IterationLimit: cfg.Tool.IterationLimit})
	w.Resolver = resolve.New(v, resolve.Options{
		GridDBU: geom.GridDBU(cfg.Tech.DRCGridUM, v.DBU()),
		Hook:    w.record,
	})
	w.Tool = align.New(v, w.Finder, w.Resolver, align.Options{
		SearchRadiusPx: cfg.Tool.SearchRadiusPx,
		MarkerSizePx:   cfg.Tool.MarkerSizePx,
		ShowSearchBox:  cfg.Tool.ShowSearchBox,
	})
	out := present.Tee{w.Dock, present.LogPresenter{Log: applog.WithComponent("session")}}
	out = append(out, opts.Presenters...)
	w.Session = present.Session{Tool: w.Tool, Out: out}
	w.log.Info("workspace open",
		slog.String("top", v.TopCell().Name),
		slog.Int64("grid_dbu", w.Resolver.GridDBU()),
		slog.Bool("journal", w.Journal != nil))
	return w, nil
}

func journalDSN(cfg config.AppConfig, opts Options) (string, bool, error) {
	if opts.JournalDSN != "" {
		return opts.JournalDSN, true, nil
	}
	if !cfg.Journal.Enabled {
		return "", false, nil
	}
	if dsn := cfg.Journal.EffectiveDSN(opts.Password); dsn != "" {
		return dsn, true, nil
	}
	dsn, err := config.DefaultJournalDSN()
	if err != nil {
		return "", false, err
	}
	return dsn, true, nil
}

// record is the resolver hook. Journal failures are logged, never surfaced
// to the alignment itself.
func (w *Workspace) record(res resolve.Result, err error) {
	e := journal.FromResult(w.Handle.Path, res, err)
	w.telemetry.Event("align", map[string]any{
		"status":  string(e.Status),
		"source":  e.Source,
		"target":  e.Target,
		"objects": e.Objects,
		"snapped": res.Snapped != res.Raw,
	})
	if w.Journal == nil {
		return
	}
	e.Session = w.SessionID
	ctx, cancel := context.WithTimeout(applog.ContextWithSession(context.Background(), w.SessionID), 5*time.Second)
	defer cancel()
	if _, jerr := w.Journal.Record(ctx, e); jerr != nil {
		w.log.WarnContext(ctx, "journal record failed", slog.Any("err", jerr))
	}
}

func (w *Workspace) View() *layout.View { return w.Handle.View }

// Find runs a single nearest-feature query. A radiusPx of zero uses the
// configured search radius.
func (w *Workspace) Find(at geom.DPoint, radiusPx float64, annotations bool) (*finder.Feature, finder.Stats, bool) {
	if radiusPx <= 0 {
		radiusPx = w.Config.Tool.SearchRadiusPx
	}
	r := finder.SearchRadius(radiusPx, w.View().PixelsPerDBU())
	return w.Finder.Find(at, r, annotations)
}

// Select replaces the host selection with the top-level instances of the
// named cells.
func (w *Workspace) Select(names ...string) error {
	v := w.View()
	var objs []layout.Object
	for _, name := range names {
		found := false
		for _, in := range v.TopCell().Instances() {
			if in.Cell.Name == name {
				objs = append(objs, in)
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: no instance of %s in %s", layout.ErrUnknownCell, name, v.TopCell().Name)
		}
	}
	v.Select(objs...)
	return nil
}

// HideLayers hides the named layers, so neither the finder nor the export
// sees them.
func (w *Workspace) HideLayers(names ...string) error {
	v := w.View()
	for _, name := range names {
		id, ok := v.Layout.LayerByName(name)
		if !ok {
			return fmt.Errorf("%w: %s", layout.ErrUnknownLayer, name)
		}
		if err := v.SetLayerVisible(id, false); err != nil {
			return err
		}
	}
	return nil
}

// Preview activates the tool and hovers at, leaving the preview markers in
// the dock.
func (w *Workspace) Preview(at geom.DPoint) align.Changes {
	w.Session.Activate(true)
	return w.Session.Move(at)
}

// Align runs a complete session: activate, pick the source at from, pick
// the target at to. Unsupported cases come back as the resolver's error.
func (w *Workspace) Align(from, to geom.DPoint) (resolve.Result, error) {
	w.Session.Activate(true)
	if w.Tool.State() != align.StatePendingSelection1 {
		return resolve.Result{}, errors.New("tool did not activate")
	}
	if c := w.Session.Pick(from); !c.Handled {
		w.Session.Handle(w.Tool.Deactivate())
		return resolve.Result{}, fmt.Errorf("source at %s: %w", from, ErrNoFeature)
	}
	c := w.Session.Pick(to)
	if !c.Handled {
		w.Session.Handle(w.Tool.Deactivate())
		return resolve.Result{}, fmt.Errorf("target at %s: %w", to, ErrNoFeature)
	}
	if c.Err != nil {
		return resolve.Result{}, c.Err
	}
	return *c.Result, nil
}

func (w *Workspace) Markers() []present.Marker { return w.Dock.AllMarkers() }

// Save writes the scene back with a backup of the previous file.
func (w *Workspace) Save() error { return layout.Save(w.Handle) }

// History lists the journal entries of this scene, newest first.
func (w *Workspace) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	if w.Journal == nil {
		return nil, errors.New("journal is not enabled")
	}
	return w.Journal.List(ctx, w.Handle.Path, limit)
}

func (w *Workspace) Close() error {
	if w.Journal == nil {
		return nil
	}
	return w.Journal.Close()
}
