/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session binds an open project to the action store that edits it:
// the store is loaded from the document, tracks unsaved changes and writes
// them back together with the derived index.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/domain"
	applog "cutscenemaker/internal/log"
	"cutscenemaker/internal/storage"
	"cutscenemaker/internal/store"
)

// Options configures a Session.
type Options struct {
	Store store.Options
	// KeepBackups prunes document backups after each save when > 0.
	KeepBackups int
	Logger      *slog.Logger
}

// Session is one project being edited.
type Session struct {
	ph    *storage.ProjectHandle
	st    *store.Store
	opts  Options
	log   *slog.Logger
	unsub func()

	mu    sync.Mutex // serialises saves
	dirty bool
	dmu   sync.Mutex
}

// Open loads the project at root into a fresh store.
func Open(root string, opts Options) (*Session, error) {
	ph, err := storage.Open(root)
	if err != nil {
		return nil, err
	}
	return New(ph, opts)
}

// New wraps an already open project.
func New(ph *storage.ProjectHandle, opts Options) (*Session, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("session")
	}
	st := store.New(opts.Store)
	if err := st.Replace(ph.Sequence.Actions); err != nil {
		return nil, err
	}
	s := &Session{ph: ph, st: st, opts: opts, log: l.With(slog.String("project", ph.Root))}
	s.unsub = st.Subscribe(func(store.Event) { s.setDirty(true) })
	if ph.Recovered {
		// the document on disk is still the broken one
		s.dirty = true
		s.log.Warn("project recovered from backup")
	}
	return s, nil
}

// Store is the action list being edited.
func (s *Session) Store() *store.Store { return s.st }

// Project is the open project handle. Its Sequence is updated on Save.
func (s *Session) Project() *storage.ProjectHandle { return s.ph }

// All implements crash.Source.
func (s *Session) All() []action.Action { return s.st.All() }

// Sequence is the project document with the current store content.
func (s *Session) Sequence() domain.Sequence {
	seq := s.ph.Sequence
	seq.Actions = s.st.All()
	return seq
}

// Dirty reports whether the store changed since the last save.
func (s *Session) Dirty() bool {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	return s.dirty
}

func (s *Session) setDirty(v bool) {
	s.dmu.Lock()
	s.dirty = v
	s.dmu.Unlock()
}

// Save writes the document and refreshes the index. An index failure is
// logged, not returned: the document is the source of truth.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// cleared before the snapshot so an edit racing the write stays dirty
	s.setDirty(false)
	s.ph.Sequence.Actions = s.st.All()
	if err := storage.Save(s.ph); err != nil {
		s.setDirty(true)
		return err
	}
	s.ph.Recovered = false
	if err := storage.UpdateIndex(ctx, s.ph.Root, s.ph.Sequence); err != nil {
		s.log.Warn("update index failed", slog.Any("err", err))
	}
	if s.opts.KeepBackups > 0 {
		if _, err := storage.PruneBackups(s.ph, s.opts.KeepBackups); err != nil {
			s.log.Warn("prune backups failed", slog.Any("err", err))
		}
	}
	s.log.Debug("saved", slog.Int("actions", len(s.ph.Sequence.Actions)))
	return nil
}

// Autosave saves every interval while there are unsaved changes, and once
// more when ctx ends. It returns nil on cancellation.
func (s *Session) Autosave(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return s.flush()
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.flush()
		case <-t.C:
			if !s.Dirty() {
				continue
			}
			if err := s.Save(ctx); err != nil {
				s.log.Error("autosave failed", slog.Any("err", err))
			}
		}
	}
}

func (s *Session) flush() error {
	if !s.Dirty() {
		return nil
	}
	return s.Save(context.Background())
}

// Close stops change tracking. It does not save.
func (s *Session) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}
