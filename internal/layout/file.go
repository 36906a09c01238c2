/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"layoutalign/internal/geom"
)

const (
	// SceneExt is the file extension of scene documents.
	SceneExt       = ".layout.json"
	BackupsDirName = "backups"

	sceneVersion = 1
)

//go:embed scene.schema.json
var sceneSchema []byte

// ErrInvalidScene wraps schema violations and dangling references.
var ErrInvalidScene = errors.New("invalid scene")

type sceneDoc struct {
	Version     int             `json:"version"`
	DBU         float64         `json:"dbu"`
	Top         string          `json:"top"`
	Layers      []layerDoc      `json:"layers,omitempty"`
	Cells       []cellDoc       `json:"cells"`
	View        *viewDoc        `json:"view,omitempty"`
	Annotations []annotationDoc `json:"annotations,omitempty"`
}

type layerDoc struct {
	Name     string `json:"name,omitempty"`
	Layer    int    `json:"layer"`
	Datatype int    `json:"datatype"`
}

type cellDoc struct {
	Name      string        `json:"name"`
	Shapes    []shapeDoc    `json:"shapes,omitempty"`
	Instances []instanceDoc `json:"instances,omitempty"`
}

type shapeDoc struct {
	Layer   int          `json:"layer"`
	Box     []int64      `json:"box,omitempty"`
	Polygon [][2]int64   `json:"polygon,omitempty"`
	Holes   [][][2]int64 `json:"holes,omitempty"`
	Text    string       `json:"text"`
	At      *[2]int64    `json:"at,omitempty"`
}

type instanceDoc struct {
	Cell   string   `json:"cell"`
	Rot    int      `json:"rot,omitempty"`
	Mirror bool     `json:"mirror,omitempty"`
	Disp   [2]int64 `json:"disp"`
}

type refDoc struct {
	Cell     string `json:"cell"`
	Instance *int   `json:"instance,omitempty"`
	Layer    *int   `json:"layer,omitempty"`
	Shape    *int   `json:"shape,omitempty"`
}

type viewDoc struct {
	MinLevels     int      `json:"min_levels"`
	MaxLevels     int      `json:"max_levels"`
	Magnification float64  `json:"magnification,omitempty"`
	HiddenCells   []string `json:"hidden_cells,omitempty"`
	HiddenLayers  []int    `json:"hidden_layers,omitempty"`
	Selection     []refDoc `json:"selection,omitempty"`
}

type annotationDoc struct {
	Name    string       `json:"name,omitempty"`
	Outline string       `json:"outline,omitempty"`
	Points  [][2]float64 `json:"points"`
}

// Validate checks a scene document against the embedded JSON schema.
func Validate(data []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(sceneSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidScene, strings.Join(msgs, "; "))
	}
	return nil
}

// Decode validates and builds a view from a scene document.
func Decode(data []byte) (*View, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc sceneDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	l := New(doc.DBU)
	for _, ld := range doc.Layers {
		l.AddLayer(LayerInfo{Name: ld.Name, Layer: ld.Layer, Datatype: ld.Datatype})
	}
	for _, cd := range doc.Cells {
		if _, err := l.AddCell(cd.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
		}
	}
	for _, cd := range doc.Cells {
		c := l.byName[cd.Name]
		for i, sd := range cd.Shapes {
			if sd.Layer >= len(l.Layers) {
				return nil, fmt.Errorf("%w: cell %s shape %d: %v %d", ErrInvalidScene, cd.Name, i, ErrUnknownLayer, sd.Layer)
			}
			switch {
			case len(sd.Box) == 4:
				c.AddBox(sd.Layer, geom.NewBox(sd.Box[0], sd.Box[1], sd.Box[2], sd.Box[3]))
			case len(sd.Polygon) > 0:
				p := geom.Polygon{Hull: pointsFromDoc(sd.Polygon)}
				for _, h := range sd.Holes {
					p.Holes = append(p.Holes, pointsFromDoc(h))
				}
				c.AddPolygon(sd.Layer, p)
			case sd.At != nil:
				c.AddText(sd.Layer, sd.Text, geom.P(sd.At[0], sd.At[1]))
			}
		}
		for _, id := range cd.Instances {
			child, err := l.Cell(id.Cell)
			if err != nil {
				return nil, fmt.Errorf("%w: cell %s: %v", ErrInvalidScene, cd.Name, err)
			}
			t := geom.Trans{Rot: id.Rot, Mirror: id.Mirror, Disp: geom.V(id.Disp[0], id.Disp[1])}
			if _, err := c.Place(child, t); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
			}
		}
	}
	top, err := l.Cell(doc.Top)
	if err != nil {
		return nil, fmt.Errorf("%w: top: %v", ErrInvalidScene, err)
	}
	v := NewView(l, top)
	if vd := doc.View; vd != nil {
		if err := v.applyViewDoc(vd); err != nil {
			return nil, err
		}
	}
	for _, ad := range doc.Annotations {
		a := Annotation{Name: ad.Name}
		if ad.Outline == "box" {
			a.Outline = OutlineBox
		}
		for _, p := range ad.Points {
			a.Points = append(a.Points, geom.DPoint{X: p[0], Y: p[1]})
		}
		v.AddAnnotation(a)
	}
	return v, nil
}

func (v *View) applyViewDoc(vd *viewDoc) error {
	maxLevels := vd.MaxLevels
	if maxLevels < vd.MinLevels {
		maxLevels = vd.MinLevels
	}
	if err := v.SetHierarchyLevels(vd.MinLevels, maxLevels); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	v.SetMagnification(vd.Magnification)
	for _, name := range vd.HiddenCells {
		c, err := v.Layout.Cell(name)
		if err != nil {
			return fmt.Errorf("%w: hidden cell: %v", ErrInvalidScene, err)
		}
		v.SetCellHidden(c, true)
	}
	for _, li := range vd.HiddenLayers {
		if err := v.SetLayerVisible(li, false); err != nil {
			return fmt.Errorf("%w: hidden layer: %v", ErrInvalidScene, err)
		}
	}
	for _, rd := range vd.Selection {
		o, err := v.Layout.resolveRef(rd)
		if err != nil {
			return err
		}
		v.selection = append(v.selection, o)
	}
	return nil
}

func (l *Layout) resolveRef(rd refDoc) (Object, error) {
	c, err := l.Cell(rd.Cell)
	if err != nil {
		return nil, fmt.Errorf("%w: selection: %v", ErrInvalidScene, err)
	}
	switch {
	case rd.Instance != nil:
		if *rd.Instance >= len(c.instances) {
			return nil, fmt.Errorf("%w: selection: instance %d of %s", ErrInvalidScene, *rd.Instance, c.Name)
		}
		return c.instances[*rd.Instance], nil
	case rd.Layer != nil && rd.Shape != nil:
		ss := c.shapes[*rd.Layer]
		if *rd.Shape >= len(ss) {
			return nil, fmt.Errorf("%w: selection: shape %d/%d of %s", ErrInvalidScene, *rd.Layer, *rd.Shape, c.Name)
		}
		return ss[*rd.Shape], nil
	}
	return nil, fmt.Errorf("%w: selection entry for %s names no object", ErrInvalidScene, c.Name)
}

// Encode serializes the view, its layout and rulers into a scene document.
func Encode(v *View) ([]byte, error) {
	l := v.Layout
	doc := sceneDoc{Version: sceneVersion, DBU: l.DBU, Top: v.top.Name}
	for _, li := range l.Layers {
		doc.Layers = append(doc.Layers, layerDoc{Name: li.Name, Layer: li.Layer, Datatype: li.Datatype})
	}
	for _, c := range l.cells {
		cd := cellDoc{Name: c.Name}
		for layer := range l.Layers {
			for _, s := range c.shapes[layer] {
				cd.Shapes = append(cd.Shapes, shapeToDoc(s))
			}
		}
		for _, in := range c.instances {
			cd.Instances = append(cd.Instances, instanceDoc{
				Cell: in.Cell.Name, Rot: ((in.Trans.Rot % 4) + 4) % 4, Mirror: in.Trans.Mirror,
				Disp: [2]int64{in.Trans.Disp.DX, in.Trans.Disp.DY},
			})
		}
		doc.Cells = append(doc.Cells, cd)
	}
	vd := &viewDoc{MinLevels: v.minLevels, MaxLevels: v.maxLevels, Magnification: v.mag}
	for _, c := range l.cells {
		if v.hiddenCells[c] {
			vd.HiddenCells = append(vd.HiddenCells, c.Name)
		}
	}
	for i := range l.Layers {
		if v.hiddenLayers[i] {
			vd.HiddenLayers = append(vd.HiddenLayers, i)
		}
	}
	for _, o := range v.selection {
		if rd, ok := refToDoc(o); ok {
			vd.Selection = append(vd.Selection, rd)
		}
	}
	doc.View = vd
	for _, a := range v.annotations {
		ad := annotationDoc{Name: a.Name, Outline: a.Outline.String()}
		for _, p := range a.Points {
			ad.Points = append(ad.Points, [2]float64{p.X, p.Y})
		}
		doc.Annotations = append(doc.Annotations, ad)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}
	return append(data, '\n'), nil
}

func shapeToDoc(s *Shape) shapeDoc {
	sd := shapeDoc{Layer: s.Layer}
	switch s.Kind {
	case KindBox:
		sd.Box = []int64{s.Box.Left, s.Box.Bottom, s.Box.Right, s.Box.Top}
	case KindPolygon:
		sd.Polygon = pointsToDoc(s.Polygon.Hull)
		for _, h := range s.Polygon.Holes {
			sd.Holes = append(sd.Holes, pointsToDoc(h))
		}
	default:
		sd.Text = s.Text
		sd.At = &[2]int64{s.At.X, s.At.Y}
	}
	return sd
}

func refToDoc(o Object) (refDoc, bool) {
	switch o := o.(type) {
	case *Instance:
		for i, in := range o.parent.instances {
			if in == o {
				return refDoc{Cell: o.parent.Name, Instance: &i}, true
			}
		}
	case *Shape:
		for i, s := range o.cell.shapes[o.Layer] {
			if s == o {
				layer := o.Layer
				return refDoc{Cell: o.cell.Name, Layer: &layer, Shape: &i}, true
			}
		}
	}
	return refDoc{}, false
}

func pointsFromDoc(pts [][2]int64) []geom.Point {
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		out[i] = geom.P(p[0], p[1])
	}
	return out
}

func pointsToDoc(pts []geom.Point) [][2]int64 {
	out := make([][2]int64, len(pts))
	for i, p := range pts {
		out[i] = [2]int64{p.X, p.Y}
	}
	return out
}

// Handle ties a view to the scene file it was loaded from.
type Handle struct {
	Path string
	View *View
}

// BackupsDir is the directory holding timestamped copies of the scene.
func (h *Handle) BackupsDir() string { return filepath.Join(filepath.Dir(h.Path), BackupsDirName) }

// Open loads a scene file. If the file cannot be read or is invalid, the
// latest backup is tried.
func Open(path string) (*Handle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		v, berr := openFromLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("open scene: %w; backup attempt: %v", err, berr)
		}
		return &Handle{Path: path, View: v}, nil
	}
	v, derr := Decode(b)
	if derr != nil {
		bv, berr := openFromLatestBackup(path)
		if berr != nil {
			return nil, fmt.Errorf("load scene: %w; backup attempt: %v", derr, berr)
		}
		return &Handle{Path: path, View: bv}, nil
	}
	return &Handle{Path: path, View: v}, nil
}

// Save writes the scene with transactional semantics and a timestamped
// backup of the previous file (if present).
func Save(h *Handle) error {
	if h == nil || h.View == nil {
		return errors.New("nil scene handle")
	}
	if h.Path == "" {
		return errors.New("invalid scene handle: missing path")
	}
	data, err := Encode(h.View)
	if err != nil {
		return err
	}
	dir := filepath.Dir(h.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure scene dir: %w", err)
	}
	if _, statErr := os.Stat(h.Path); statErr == nil {
		bdir := h.BackupsDir()
		if err := os.MkdirAll(bdir, 0o755); err != nil {
			return fmt.Errorf("ensure backups dir: %w", err)
		}
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(h.Path), stamp))
		if cerr := copyFile(h.Path, bpath); cerr != nil {
			return fmt.Errorf("backup current scene: %w", cerr)
		}
	}
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(h.Path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp scene: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(h.Path); err == nil {
		_ = os.Remove(h.Path)
	}
	if rerr := os.Rename(temp, h.Path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace scene: %w", rerr)
	}
	return nil
}

// SaveAs writes the scene to a new path and updates the handle.
func SaveAs(h *Handle, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("new path is empty")
	}
	h.Path = path
	return Save(h)
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup loads the newest readable backup of path.
func openFromLatestBackup(path string) (*View, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	return Decode(b)
}

// CrashSnapshot writes the in-memory scene into the backups directory
// without touching the scene file. The snapshot takes part in the backup
// fallback of Open.
func CrashSnapshot(h *Handle) (string, error) {
	if h == nil || h.View == nil || h.Path == "" {
		return "", errors.New("nil scene handle")
	}
	data, err := Encode(h.View)
	if err != nil {
		return "", err
	}
	bdir := h.BackupsDir()
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405.000")
	p := filepath.Join(bdir, fmt.Sprintf("%s.%s.crash.bak", filepath.Base(h.Path), stamp))
	if err := writeFileSync(p, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return p, nil
}
