/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store owns the ordered action list of one editing session.
// All mutations go through a Store; readers get deep-copied snapshots.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"cutscenemaker/internal/action"
	applog "cutscenemaker/internal/log"
	"cutscenemaker/internal/undo"
)

var (
	// ErrUnknownKind is returned when a kind is not registered.
	ErrUnknownKind = errors.New("unknown action kind")
	// ErrReorderMismatch is returned when a reorder id list is not a permutation
	// of the current ids.
	ErrReorderMismatch = errors.New("reorder ids do not match the current list")
)

// IDPrefix prefixes every minted action id.
const IDPrefix = "action-"

// Op names a store mutation for listeners.
type Op string

const (
	OpAppend  Op = "append"
	OpUpdate  Op = "update"
	OpRemove  Op = "remove"
	OpReorder Op = "reorder"
	OpClear   Op = "clear"
	OpReplace Op = "replace"
	OpUndo    Op = "undo"
	OpRedo    Op = "redo"
)

// Event is delivered to listeners after a successful mutation.
type Event struct {
	Op  Op       `json:"op"`
	IDs []string `json:"ids,omitempty"`
	Len int      `json:"len"`
}

// Listener receives store events. It is called outside the store lock.
type Listener func(Event)

// Options configures a Store.
type Options struct {
	// History sizes the undo history; a zero value uses the undo defaults.
	History undo.Config
	Logger  *slog.Logger
	// Now is the clock for undo snapshots; nil means time.Now.
	Now func() time.Time
}

// Store is the single owner of one ordered action list.
type Store struct {
	mu        sync.Mutex
	actions   []action.Action
	nextID    int
	history   *undo.Manager
	log       *slog.Logger
	now       func() time.Time
	listeners map[int]Listener
	nextSub   int
}

// New returns an empty store.
func New(opts Options) *Store {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("store")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		actions:   []action.Action{},
		nextID:    1,
		history:   undo.NewManager(opts.History),
		log:       l,
		now:       now,
		listeners: map[int]Listener{},
	}
}

// Subscribe registers fn for every subsequent event and returns a cancel func.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) mintLocked() string {
	id := IDPrefix + strconv.Itoa(s.nextID)
	s.nextID++
	return id
}

// recordLocked pushes the current list onto the undo history before a mutation.
func (s *Store) recordLocked(label string) {
	blob, err := json.Marshal(s.actions)
	if err != nil {
		s.log.Error("snapshot failed", slog.String("op", label), slog.Any("err", err))
		return
	}
	s.history.Push(undo.Snapshot{Label: label, Blob: blob, TS: s.now()})
}

func (s *Store) indexLocked(id string) int {
	for i, a := range s.actions {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func describe(d action.Descriptor, p action.Params, description string) string {
	if strings.TrimSpace(description) != "" {
		return description
	}
	return d.Describe(p)
}

// Append adds an action at the end. An empty description is derived from the
// params. Params are normalized against the kind schema.
func (s *Store) Append(kind action.Kind, params action.Params, description string) (string, error) {
	d, ok := action.Lookup(kind)
	if !ok {
		return "", fmt.Errorf("append %q: %w", kind, ErrUnknownKind)
	}
	p := d.Normalize(params)
	s.mu.Lock()
	s.recordLocked(string(OpAppend))
	id := s.mintLocked()
	s.actions = append(s.actions, action.Action{ID: id, Kind: kind, Params: p, Description: describe(d, p, description)})
	n := len(s.actions)
	s.mu.Unlock()
	s.notify(Event{Op: OpAppend, IDs: []string{id}, Len: n})
	return id, nil
}

// AppendMany adds drafts in order with fresh sequential ids. If any draft has
// an unknown kind nothing is appended.
func (s *Store) AppendMany(drafts []action.Draft) ([]string, error) {
	built := make([]action.Action, 0, len(drafts))
	for i, dr := range drafts {
		d, ok := action.Lookup(dr.Kind)
		if !ok {
			return nil, fmt.Errorf("append draft %d %q: %w", i, dr.Kind, ErrUnknownKind)
		}
		p := d.Normalize(dr.Params)
		built = append(built, action.Action{Kind: dr.Kind, Params: p, Description: describe(d, p, dr.Description)})
	}
	if len(built) == 0 {
		return []string{}, nil
	}
	s.mu.Lock()
	s.recordLocked(string(OpAppend))
	ids := make([]string, len(built))
	for i := range built {
		built[i].ID = s.mintLocked()
		ids[i] = built[i].ID
	}
	s.actions = append(s.actions, built...)
	n := len(s.actions)
	s.mu.Unlock()
	s.notify(Event{Op: OpAppend, IDs: ids, Len: n})
	return ids, nil
}

// Update replaces params and description of the action with id, keeping its
// id, kind and position. Unknown ids are logged and ignored.
func (s *Store) Update(id string, params action.Params, description string) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		s.log.Warn("update: action not found", slog.String("id", id))
		return false
	}
	d, _ := action.Lookup(s.actions[i].Kind)
	p := d.Normalize(params)
	s.recordLocked(string(OpUpdate))
	s.actions[i].Params = p
	s.actions[i].Description = describe(d, p, description)
	n := len(s.actions)
	s.mu.Unlock()
	s.notify(Event{Op: OpUpdate, IDs: []string{id}, Len: n})
	return true
}

// Remove deletes the action with id. Unknown ids are logged and ignored.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		s.log.Warn("remove: action not found", slog.String("id", id))
		return false
	}
	s.recordLocked(string(OpRemove))
	s.actions = append(s.actions[:i:i], s.actions[i+1:]...)
	n := len(s.actions)
	s.mu.Unlock()
	s.notify(Event{Op: OpRemove, IDs: []string{id}, Len: n})
	return true
}

// Reorder rearranges the list to follow ids, which must be a permutation of
// the current ids. Otherwise ErrReorderMismatch is returned and the list is
// left untouched.
func (s *Store) Reorder(ids []string) error {
	s.mu.Lock()
	if len(ids) != len(s.actions) {
		s.mu.Unlock()
		return fmt.Errorf("%w: got %d ids for %d actions", ErrReorderMismatch, len(ids), len(s.actions))
	}
	pos := make(map[string]int, len(s.actions))
	for i, a := range s.actions {
		pos[a.ID] = i
	}
	next := make([]action.Action, 0, len(ids))
	for _, id := range ids {
		i, ok := pos[id]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: unknown or repeated id %q", ErrReorderMismatch, id)
		}
		delete(pos, id)
		next = append(next, s.actions[i])
	}
	s.recordLocked(string(OpReorder))
	s.actions = next
	n := len(s.actions)
	s.mu.Unlock()
	s.notify(Event{Op: OpReorder, IDs: append([]string(nil), ids...), Len: n})
	return nil
}

// Move places the action with id at index to, shifting the others.
func (s *Store) Move(id string, to int) error {
	ids := s.IDs()
	from := -1
	for i, v := range ids {
		if v == id {
			from = i
		}
	}
	if from < 0 {
		return fmt.Errorf("move %q: %w", id, ErrReorderMismatch)
	}
	if to < 0 {
		to = 0
	}
	if to >= len(ids) {
		to = len(ids) - 1
	}
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{id}, ids[to:]...)...)
	return s.Reorder(ids)
}

// Clear empties the list. Ids are not reused afterwards.
func (s *Store) Clear() {
	s.mu.Lock()
	if len(s.actions) > 0 {
		s.recordLocked(string(OpClear))
	}
	s.actions = []action.Action{}
	s.mu.Unlock()
	s.notify(Event{Op: OpClear})
}

// Replace bulk-loads persisted actions keeping their ids, and advances the id
// counter past every loaded "action-N" id. Undo history is reset.
func (s *Store) Replace(actions []action.Action) error {
	seen := make(map[string]struct{}, len(actions))
	next := make([]action.Action, 0, len(actions))
	maxN := 0
	for i, a := range actions {
		if !action.Valid(a.Kind) {
			return fmt.Errorf("replace action %d %q: %w", i, a.Kind, ErrUnknownKind)
		}
		if a.ID == "" {
			return fmt.Errorf("replace action %d: empty id", i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("replace action %d: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = struct{}{}
		if n, ok := parseID(a.ID); ok && n > maxN {
			maxN = n
		}
		next = append(next, a.Clone())
	}
	s.mu.Lock()
	s.actions = next
	if maxN >= s.nextID {
		s.nextID = maxN + 1
	}
	s.history.Clear()
	s.mu.Unlock()
	s.notify(Event{Op: OpReplace, Len: len(next)})
	return nil
}

func parseID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil && n > 0
}

// All returns a deep copy of the list in order.
func (s *Store) All() []action.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]action.Action, len(s.actions))
	for i, a := range s.actions {
		out[i] = a.Clone()
	}
	return out
}

// IDs returns the current ids in order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.actions))
	for i, a := range s.actions {
		out[i] = a.ID
	}
	return out
}

// Get returns a copy of the action with id.
func (s *Store) Get(id string) (action.Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.actions[i].Clone(), true
	}
	return action.Action{}, false
}

// Len returns the number of actions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

// Undo restores the list before the last mutation. It returns the label of
// the undone change. The id counter is not rewound.
func (s *Store) Undo() (string, bool) {
	return s.travel(OpUndo, s.history.Undo)
}

// Redo re-applies the last undone mutation.
func (s *Store) Redo() (string, bool) {
	return s.travel(OpRedo, s.history.Redo)
}

func (s *Store) travel(op Op, step func(undo.Snapshot) (undo.Snapshot, bool)) (string, bool) {
	s.mu.Lock()
	cur, err := json.Marshal(s.actions)
	if err != nil {
		s.mu.Unlock()
		s.log.Error("snapshot failed", slog.String("op", string(op)), slog.Any("err", err))
		return "", false
	}
	snap, ok := step(undo.Snapshot{Blob: cur, TS: s.now()})
	if !ok {
		s.mu.Unlock()
		return "", false
	}
	var restored []action.Action
	if err := json.Unmarshal(snap.Blob, &restored); err != nil {
		s.mu.Unlock()
		s.log.Error("restore failed", slog.String("op", string(op)), slog.Any("err", err))
		return "", false
	}
	for i := range restored {
		if d, ok := action.Lookup(restored[i].Kind); ok {
			restored[i].Params = d.Normalize(restored[i].Params)
		}
	}
	if restored == nil {
		restored = []action.Action{}
	}
	s.actions = restored
	n := len(s.actions)
	s.mu.Unlock()
	s.notify(Event{Op: op, Len: n})
	return snap.Label, true
}

// History reports the labels of the next undo and redo steps, if any.
func (s *Store) History() (undoLabel string, canUndo bool, redoLabel string, canRedo bool) {
	undoLabel, canUndo = s.history.CanUndo()
	redoLabel, canRedo = s.history.CanRedo()
	return
}
