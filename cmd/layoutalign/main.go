/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"layoutalign/internal/config"
	"layoutalign/internal/crash"
	"layoutalign/internal/geom"
	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
	"layoutalign/internal/resolve"
	"layoutalign/internal/telemetry"
	"layoutalign/internal/ui"
	"layoutalign/internal/version"
	"layoutalign/internal/workspace"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitWarning = 3
)

// warningError is an alignment the resolver refused as unsupported.
type warningError struct {
	title, text string
	err         error
}

func (e *warningError) Error() string { return e.title + ": " + e.text }
func (e *warningError) Unwrap() error { return e.err }

// cli carries what the commands share.
type cli struct {
	out, errOut io.Writer
	cfg         config.AppConfig
	password    string
	verbose     bool
	zoom        float64
	hideLayers  []string
	// handle is the last scene opened, for crash reports.
	handle *layout.Handle
	log    *slog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := &cli{out: os.Stdout, errOut: os.Stderr}
	code := c.run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

func (c *cli) run(ctx context.Context, args []string) int {
	defer crash.RecoverCurrent(func() *layout.Handle { return c.handle })
	root := c.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	flushTelemetry(2 * time.Second)
	var we *warningError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &we):
		fmt.Fprintln(c.errOut, "Warning:", we.Error())
		return exitWarning
	default:
		fmt.Fprintln(c.errOut, "Error:", err)
		return exitError
	}
}

// flushTelemetry gives queued events a short grace period before exit.
func flushTelemetry(d time.Duration) {
	tc := telemetry.Default()
	if !tc.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	tc.Flush(ctx)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "layoutalign",
		Short:         "Align layout objects by snapping picked edges and points",
		Long:          `LayoutAlign moves objects of a hierarchical layout so that a picked source feature (edge or point) lands on a picked target feature, snapped to the manufacturing grid.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, pw, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg, c.password = cfg, pw
			opts := cfg.Logging.LogOptions()
			opts.Console = c.errOut
			if c.verbose {
				opts.Level = "debug"
			}
			applog.Init(opts)
			c.log = applog.WithComponent("cli")
			c.log.Debug("start", slog.String("cmd", cmd.Name()), slog.Int("args", len(args)))
			return nil
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().Float64Var(&c.zoom, "zoom", 0, "view magnification in pixels per micron (default: the scene's)")
	root.PersistentFlags().StringSliceVar(&c.hideLayers, "hide-layer", nil, "hide layers by name before searching or rendering")

	root.AddCommand(c.findCmd())
	root.AddCommand(c.alignCmd())
	root.AddCommand(c.renderCmd())
	root.AddCommand(c.journalCmd())
	root.AddCommand(c.uiCmd())
	root.AddCommand(c.versionCmd())
	return root
}

// open loads a scene into a workspace with the CLI's config.
func (c *cli) open(ctx context.Context, path string, journalDSN string) (*workspace.Workspace, error) {
	ws, err := workspace.Open(ctx, path, workspace.Options{
		Config:        c.cfg,
		Password:      c.password,
		JournalDSN:    journalDSN,
		Magnification: c.zoom,
	})
	if err != nil {
		return nil, err
	}
	c.handle = ws.Handle
	if err := ws.HideLayers(c.hideLayers...); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return ws, nil
}

func (c *cli) uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui [scene]",
		Short: "Launch the desktop UI (build with -tags fyne)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scene string
			if len(args) == 1 {
				scene = args[0]
			}
			return ui.Run(scene)
		},
	}
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(c.out, "LayoutAlign", version.String())
		},
	}
}

// parsePoint reads "x,y" in microns.
func parsePoint(s string) (geom.DPoint, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geom.DPoint{}, fmt.Errorf("point %q: want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geom.DPoint{}, fmt.Errorf("point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geom.DPoint{}, fmt.Errorf("point %q: %w", s, err)
	}
	return geom.DPoint{X: x, Y: y}, nil
}

// asWarning turns an unsupported-case rejection into a warningError.
func asWarning(err error) error {
	if title, text, ok := resolve.Warning(err); ok {
		return &warningError{title: title, text: text, err: err}
	}
	return err
}
