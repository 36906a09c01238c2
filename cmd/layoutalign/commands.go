/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"layoutalign/internal/config"
	"layoutalign/internal/export"
	"layoutalign/internal/journal"
	applog "layoutalign/internal/log"
)

func (c *cli) findCmd() *cobra.Command {
	var (
		at          string
		radiusPx    float64
		annotations bool
	)
	cmd := &cobra.Command{
		Use:   "find <scene>",
		Short: "Print the feature nearest to a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(at)
			if err != nil {
				return err
			}
			ws, err := c.open(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer ws.Close()
			f, st, ok := ws.Find(p, radiusPx, annotations)
			applog.WithOperation(c.log, "find").Debug("query",
				slog.Int("instances", st.Instances), slog.Int("shapes", st.Shapes),
				slog.Int("annotations", st.Annotations), slog.Bool("truncated", st.Truncated))
			if !ok {
				fmt.Fprintln(c.out, "no feature")
				return nil
			}
			kind := "edge"
			if f.IsPoint() {
				kind = "point"
			}
			fmt.Fprintf(c.out, "%s %s\n", kind, f)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "query location x,y in microns")
	cmd.Flags().Float64Var(&radiusPx, "radius-px", 0, "search radius in pixels (default: tool.search_radius_px)")
	cmd.Flags().BoolVar(&annotations, "annotations", false, "consider rulers")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func (c *cli) alignCmd() *cobra.Command {
	var (
		from, to   string
		selection  []string
		write      bool
		journalDSN string
	)
	cmd := &cobra.Command{
		Use:   "align <scene>",
		Short: "Align the feature at --from onto the feature at --to",
		Long: `Runs one alignment session: the feature nearest to --from becomes the source,
the feature nearest to --to the target. The pre-selection (--select) moves if
given, else the object owning the source feature. The offset is snapped to the
manufacturing grid (tech.drc_grid_um).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := parsePoint(from)
			if err != nil {
				return err
			}
			dst, err := parsePoint(to)
			if err != nil {
				return err
			}
			ws, err := c.open(cmd.Context(), args[0], journalDSN)
			if err != nil {
				return err
			}
			defer ws.Close()
			if len(selection) > 0 {
				if err := ws.Select(selection...); err != nil {
					return err
				}
			}
			res, err := ws.Align(src, dst)
			if err != nil {
				return asWarning(err)
			}
			fmt.Fprintf(c.out, "aligned %d object(s): %s -> %s, raw %s, snapped %s\n",
				res.Applied, res.Source, res.Target, res.Raw, res.Snapped)
			if write {
				if err := ws.Save(); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "saved", ws.Handle.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source location x,y in microns")
	cmd.Flags().StringVar(&to, "to", "", "target location x,y in microns")
	cmd.Flags().StringSliceVar(&selection, "select", nil, "pre-select top-level instances of these cells")
	cmd.Flags().BoolVar(&write, "write", false, "save the scene (keeps a backup)")
	cmd.Flags().StringVar(&journalDSN, "journal", "", "record into this journal (sqlite path or postgres URL)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (c *cli) renderCmd() *cobra.Command {
	var (
		out    string
		at     string
		width  int
		labels bool
	)
	cmd := &cobra.Command{
		Use:   "render <scene>",
		Short: "Write a PNG, SVG or PDF snapshot, optionally with the preview at --at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := c.open(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer ws.Close()
			if at != "" {
				p, err := parsePoint(at)
				if err != nil {
					return err
				}
				ws.Preview(p)
			}
			d := export.Collect(ws.View(), ws.Markers())
			if err := export.Write(out, d, export.Options{Width: width, Labels: labels}); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.png, .svg or .pdf)")
	cmd.Flags().StringVar(&at, "at", "", "hover location x,y in microns for preview markers")
	cmd.Flags().IntVar(&width, "width", 800, "output width in pixels (points for PDF)")
	cmd.Flags().BoolVar(&labels, "labels", true, "draw cell names and texts")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (c *cli) journalCmd() *cobra.Command {
	var (
		scene string
		limit int
		dsn   string
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded alignments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = c.cfg.Journal.EffectiveDSN(c.password)
			}
			if dsn == "" {
				d, err := config.DefaultJournalDSN()
				if err != nil {
					return err
				}
				dsn = d
			}
			j, err := journal.Open(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer j.Close()
			if scene != "" {
				if abs, err := filepath.Abs(scene); err == nil {
					scene = abs
				}
			}
			ents, err := j.List(cmd.Context(), scene, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSTATUS\tSOURCE\tTARGET\tOFFSET\tOBJECTS\tSCENE")
			for _, e := range ents {
				status := string(e.Status)
				if e.Message != "" {
					status += " (" + e.Message + ")"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d,%d\t%d\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime), status, e.Source, e.Target,
					e.DX, e.DY, e.Objects, filepath.Base(e.Scene))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(ents) == 0 {
				fmt.Fprintln(c.out, "no alignments recorded")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scene, "scene", "", "only entries of this scene file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries (0 for all)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "journal DSN (default: journal.dsn or the per-user sqlite file)")
	return cmd
}
