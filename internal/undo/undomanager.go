/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"layoutalign/internal/geom"
)

// ErrOpen is returned by Begin when the scope already has an open transaction.
var ErrOpen = errors.New("transaction already open")

// Op is one reversible edit: Target was moved by Delta.
type Op struct {
	Target any
	Delta  geom.Vector
}

// ApplyFunc replays a displacement onto a target during undo/redo.
type ApplyFunc func(target any, delta geom.Vector)

// Entry is a committed, named transaction.
type Entry struct {
	ID   string
	Name string
	Ops  []Op
	TS   time.Time
}

// Config caps the history size.
type Config struct {
	// MaxPerScope limits entries kept per scope (0 means unlimited).
	MaxPerScope int
	// MaxTotal limits entries across all scopes; the oldest are pruned first (0 means unlimited).
	MaxTotal int
}

// Manager keeps per-scope undo/redo stacks of named transactions.
// A scope is typically one edited cell view. It is safe for concurrent use.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	undo map[string][]Entry
	redo map[string][]Entry
	open map[string]*Tx
	now  func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxPerScope <= 0 {
		cfg.MaxPerScope = 100
	}
	return &Manager{
		cfg:  cfg,
		undo: make(map[string][]Entry),
		redo: make(map[string][]Entry),
		open: make(map[string]*Tx),
		now:  time.Now,
	}
}

// Tx collects ops until Close commits them as a single history entry.
type Tx struct {
	m      *Manager
	scope  string
	entry  Entry
	closed bool
}

// Begin opens a named transaction on scope.
func (m *Manager) Begin(scope, name string) (*Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[scope]; ok {
		return nil, ErrOpen
	}
	tx := &Tx{m: m, scope: scope, entry: Entry{ID: uuid.NewString(), Name: name, TS: m.now()}}
	m.open[scope] = tx
	return tx, nil
}

// ID identifies the entry this transaction will commit.
func (tx *Tx) ID() string { return tx.entry.ID }

// Record appends an op. Ops recorded after Close are ignored.
func (tx *Tx) Record(op Op) {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if tx.closed {
		return
	}
	tx.entry.Ops = append(tx.entry.Ops, op)
}

// Close commits the transaction. It is safe to call more than once; only
// the first call has an effect. A transaction without ops leaves no entry.
// The returned flag reports whether an entry was committed.
func (tx *Tx) Close() (Entry, bool) {
	m := tx.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.closed {
		return Entry{}, false
	}
	tx.closed = true
	if m.open[tx.scope] == tx {
		delete(m.open, tx.scope)
	}
	if len(tx.entry.Ops) == 0 {
		return Entry{}, false
	}
	m.undo[tx.scope] = append(m.undo[tx.scope], tx.entry)
	// Any new change invalidates redo for the scope
	m.redo[tx.scope] = nil
	m.enforceCapsLocked(tx.scope)
	return tx.entry, true
}

// IsOpen reports whether scope has an uncommitted transaction.
func (m *Manager) IsOpen(scope string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[scope]
	return ok
}

// Undo reverts the latest entry of scope by replaying its ops negated in
// reverse order, and moves it to the redo stack.
func (m *Manager) Undo(scope string, apply ApplyFunc) (Entry, bool) {
	m.mu.Lock()
	stack := m.undo[scope]
	if len(stack) == 0 {
		m.mu.Unlock()
		return Entry{}, false
	}
	e := stack[len(stack)-1]
	m.undo[scope] = stack[:len(stack)-1]
	m.redo[scope] = append(m.redo[scope], e)
	m.mu.Unlock()

	for i := len(e.Ops) - 1; i >= 0; i-- {
		apply(e.Ops[i].Target, e.Ops[i].Delta.Neg())
	}
	return e, true
}

// Redo re-applies the latest undone entry of scope.
func (m *Manager) Redo(scope string, apply ApplyFunc) (Entry, bool) {
	m.mu.Lock()
	r := m.redo[scope]
	if len(r) == 0 {
		m.mu.Unlock()
		return Entry{}, false
	}
	e := r[len(r)-1]
	m.redo[scope] = r[:len(r)-1]
	m.undo[scope] = append(m.undo[scope], e)
	m.enforceCapsLocked(scope)
	m.mu.Unlock()

	for _, op := range e.Ops {
		apply(op.Target, op.Delta)
	}
	return e, true
}

// History returns the committed entries of scope, oldest first.
func (m *Manager) History(scope string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.undo[scope]...)
}

func (m *Manager) enforceCapsLocked(scope string) {
	// Per-scope depth cap
	if m.cfg.MaxPerScope > 0 {
		stack := m.undo[scope]
		if len(stack) > m.cfg.MaxPerScope {
			toDrop := len(stack) - m.cfg.MaxPerScope
			m.undo[scope] = append([]Entry{}, stack[toDrop:]...)
		}
	}
	// Global cap: prune oldest across all scopes
	for m.cfg.MaxTotal > 0 && m.totalLocked() > m.cfg.MaxTotal {
		oldestScope := ""
		found := false
		var oldestTS time.Time
		for s, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestScope = s
				oldestTS = stack[0].TS
				found = true
			}
		}
		if !found {
			break
		}
		m.undo[oldestScope] = m.undo[oldestScope][1:]
		if len(m.undo[oldestScope]) == 0 {
			delete(m.undo, oldestScope)
		}
	}
}

func (m *Manager) totalLocked() int {
	n := 0
	for _, v := range m.undo {
		n += len(v)
	}
	return n
}
