/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


// Package crash turns a panic into a logged error, a crash report and a
// snapshot of the open scene.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"layoutalign/internal/layout"
	applog "layoutalign/internal/log"
	"layoutalign/internal/telemetry"
	"layoutalign/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// uploader returns the client crash reports are offered to.
var uploader = telemetry.Default

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and attempts a crash snapshot
// of the open scene (if provided).
//
// Usage: defer crash.Recover(h)
func Recover(h *layout.Handle) {
	if r := recover(); r != nil {
		handlePanic(h, r)
	}
}

// RecoverCurrent is Recover for hosts that open the scene after deferring.
// current is asked for the handle when a panic is caught.
//
// Usage: defer crash.RecoverCurrent(func() *layout.Handle { return h })
func RecoverCurrent(current func() *layout.Handle) {
	if r := recover(); r != nil {
		handlePanic(current(), r)
	}
}

func handlePanic(h *layout.Handle, r any) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, report, _ := writeReport(h, r, stack)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := uploader().UploadCrash(ctx, report); err != nil {
		l.Warn("crash upload failed", slog.Any("err", err))
	}
	cancel()
	if h != nil && h.View != nil {
		if path, err := layout.CrashSnapshot(h); err != nil {
			l.Error("crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("crash snapshot written", slog.String("path", path))
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func writeReport(h *layout.Handle, panicVal any, stack []byte) (string, []byte, error) {
	dir := os.TempDir()
	if h != nil && h.Path != "" {
		dir = h.BackupsDir()
		_ = os.MkdirAll(dir, 0o755)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "LayoutAlign Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if h != nil {
		_, _ = fmt.Fprintf(&buf, "Scene: %s\n", h.Path)
		if h.View != nil && h.View.TopCell() != nil {
			_, _ = fmt.Fprintf(&buf, "TopCell: %s\n", h.View.TopCell().Name)
			_, _ = fmt.Fprintf(&buf, "History: %v\n", h.View.History())
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, buf.Bytes(), err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, buf.Bytes(), err
	}
	_ = f.Sync()
	return path, buf.Bytes(), nil
}
