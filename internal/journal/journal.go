/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */


// Package journal keeps a durable log of alignment commits and rejections.
// A DSN starting with postgres:// or postgresql:// selects PostgreSQL via
// pgx; anything else is taken as an SQLite file path.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	applog "layoutalign/internal/log"
	"layoutalign/internal/resolve"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width so that created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Dialect is the SQL flavour of the backing store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DialectOf picks the dialect for dsn.
func DialectOf(dsn string) Dialect {
	d := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Status tells committed alignments from rejected ones.
type Status string

const (
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
)

// Entry is one journal row.
type Entry struct {
	ID        string
	Session   string
	Scene     string
	Name      string
	Source    string
	Target    string
	RawDX     int64
	RawDY     int64
	DX        int64
	DY        int64
	Objects   int
	Status    Status
	Message   string
	CreatedAt time.Time
}

// FromResult builds the entry for a commit attempt. A non-nil err marks the
// entry rejected and keeps the error text.
func FromResult(scene string, res resolve.Result, err error) Entry {
	e := Entry{
		Scene:   scene,
		Name:    resolve.TransactionName,
		Source:  res.Source.String(),
		Target:  res.Target.String(),
		RawDX:   res.Raw.DX,
		RawDY:   res.Raw.DY,
		DX:      res.Snapped.DX,
		DY:      res.Snapped.DY,
		Objects: res.Applied,
		Status:  StatusApplied,
	}
	if err != nil {
		e.Status = StatusRejected
		e.Message = err.Error()
	}
	return e
}

// Journal is an open alignment log.
type Journal struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
	now     func() time.Time
}

// Open connects to dsn and brings its schema up to date.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	l := applog.WithOperation(applog.WithComponent("journal"), "open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("journal dsn is required")
	}
	dialect := DialectOf(dsn)
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case Postgres:
		db, err = sql.Open("pgx", dsn)
	default:
		db, err = openSQLite(dsn)
	}
	if err != nil {
		l.Error("open failed", slog.String("dialect", string(dialect)), slog.Any("err", err))
		return nil, fmt.Errorf("open journal: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	j := &Journal{db: db, dialect: dialect, log: applog.WithComponent("journal"), now: time.Now}
	if dialect == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		l.Error("migrate failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("journal ready", slog.String("dialect", string(dialect)))
	return j, nil
}

func openSQLite(file string) (*sql.DB, error) {
	if dir := filepath.Dir(file); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(file))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Dialect reports the backing SQL flavour.
func (j *Journal) Dialect() Dialect { return j.dialect }

func (j *Journal) Close() error { return j.db.Close() }

// rebind turns ? placeholders into $n for PostgreSQL.
func (j *Journal) rebind(q string) string { return rebind(j.dialect, q) }

func rebind(d Dialect, q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (j *Journal) migrate(ctx context.Context) error {
	dir := "migrations/" + string(j.dialect)
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := j.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied := map[int64]bool{}
	rows, err := j.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, name := range files {
		v, err := parseVersion(name)
		if err != nil {
			return err
		}
		if applied[v] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join(dir, name))
		if err != nil {
			return err
		}
		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, j.rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
			v, name, j.now().UTC().Format(timeLayout)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
		j.log.Debug("migration applied", slog.String("file", name))
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// Record stores e, filling in ID and CreatedAt when unset.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if e.Status == "" {
		e.Status = StatusApplied
	}
	_, err := j.db.ExecContext(ctx, j.rebind(`INSERT INTO alignments
		(id, session, scene, name, source, target, raw_dx, raw_dy, dx, dy, objects, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Session, e.Scene, e.Name, e.Source, e.Target, e.RawDX, e.RawDY, e.DX, e.DY,
		e.Objects, string(e.Status), e.Message, e.CreatedAt.Format(timeLayout))
	if err != nil {
		return e, fmt.Errorf("record alignment: %w", err)
	}
	return e, nil
}

// List returns the newest entries first. An empty scene lists all scenes;
// a limit of zero or less means no limit.
func (j *Journal) List(ctx context.Context, scene string, limit int) ([]Entry, error) {
	q := `SELECT id, session, scene, name, source, target, raw_dx, raw_dy, dx, dy, objects, status, message, created_at
		FROM alignments`
	var args []any
	if scene != "" {
		q += ` WHERE scene = ?`
		args = append(args, scene)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, j.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list alignments: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			status string
			ts     string
		)
		if err := rows.Scan(&e.ID, &e.Session, &e.Scene, &e.Name, &e.Source, &e.Target,
			&e.RawDX, &e.RawDY, &e.DX, &e.DY, &e.Objects, &status, &e.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan alignment: %w", err)
		}
		e.Status = Status(status)
		if e.CreatedAt, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", ts, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
