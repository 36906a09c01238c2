/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
// Package log sets up the slog loggers of layoutalign: a readable console
// handler (or JSON), an optional rotating JSON file, and helpers that tag
// records with the component, operation, scene and align session.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"layoutalign/internal/version"
)

// Options controls Init. FromEnv fills it from the environment:
//
//	LAL_LOG_LEVEL   debug|info|warn|error (default info)
//	LAL_LOG_FORMAT  console|json (default console)
//	LAL_LOG_FILE    path of a rotated JSON log file
//	LAL_LOG_SOURCE  1|true adds file:line to each record
type Options struct {
	Level     string
	Format    string
	AddSource bool
	File      string
	// Console receives the console stream; os.Stderr when nil.
	Console io.Writer
	// Rotate bounds the log file. Zero fields take the defaults.
	Rotate Rotation
}

// Rotation is the lumberjack policy of the log file.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (r Rotation) withDefaults() Rotation {
	if r.MaxSizeMB <= 0 {
		r.MaxSizeMB = 10
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = 3
	}
	if r.MaxAgeDays <= 0 {
		r.MaxAgeDays = 28
	}
	return r
}

const (
	EnvLevel  = "LAL_LOG_LEVEL"
	EnvFormat = "LAL_LOG_FORMAT"
	EnvSource = "LAL_LOG_SOURCE"
	EnvFile   = "LAL_LOG_FILE"
)

var (
	mu      sync.RWMutex
	current *slog.Logger
	closer  io.Closer
	level   = new(slog.LevelVar)
)

// L returns the application logger. The first call without Init configures
// it from the environment.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l == nil {
		return Init(FromEnv())
	}
	return l
}

// Init replaces the application logger and slog.Default. A log file opened
// by an earlier Init is closed.
func Init(opts Options) *slog.Logger {
	level.Set(ParseLevel(opts.Level))
	hopts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	var handlers []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handlers = append(handlers, slog.NewJSONHandler(console, hopts))
	} else {
		handlers = append(handlers, newConsoleHandler(console, hopts))
	}

	var file *lj.Logger
	if path := strings.TrimSpace(opts.File); path != "" {
		rot := opts.Rotate.withDefaults()
		file = &lj.Logger{
			Filename:   path,
			MaxSize:    rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAge:     rot.MaxAgeDays,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(file, hopts))
	}

	l := slog.New(sessionHandler{next: fanout(handlers)}).With(
		slog.String("app", "layoutalign"),
		slog.String("ver", version.String()),
	)

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
	if file != nil {
		closer = file
	}
	current = l
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

// FromEnv reads Options from the LAL_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv(EnvLevel, "info"),
		Format:    getenv(EnvFormat, "console"),
		AddSource: truthy(os.Getenv(EnvSource)),
		File:      os.Getenv(EnvFile),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// ParseLevel maps a level name to a slog level; unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the level of the current logger at runtime.
func SetLevel(s string) { level.Set(ParseLevel(s)) }

// WithComponent returns the application logger tagged with a component.
// The console handler prints it as a [component] prefix.
func WithComponent(name string) *slog.Logger { return L().With(slog.String(componentKey, name)) }

func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// WithScene tags l with the scene file being edited.
func WithScene(l *slog.Logger, path string) *slog.Logger { return l.With(slog.String("scene", path)) }

// Discard drops every record.
func Discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// Since is a duration attribute in milliseconds.
func Since(start time.Time) slog.Attr {
	return slog.Float64("ms", float64(time.Since(start).Microseconds())/1000)
}
