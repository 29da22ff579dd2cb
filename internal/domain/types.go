/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the persisted cutscene document.
package domain

import (
	"fmt"

	"cutscenemaker/internal/action"
)

// SchemaVersion is the current document format version.
const SchemaVersion = 1

// Sequence is a cutscene project document. It serializes to a human-readable
// JSON file and is the lossless alternative to re-parsing generated script.
type Sequence struct {
	SchemaVersion int             `json:"schemaVersion"`
	Name          string          `json:"name"`
	Metadata      Metadata        `json:"metadata,omitempty"`
	Actions       []action.Action `json:"actions"`
}

// Metadata contains optional descriptive metadata for a sequence.
type Metadata struct {
	Scene  string   `json:"scene,omitempty"` // host scene the cutscene is written for
	Author string   `json:"author,omitempty"`
	Notes  string   `json:"notes,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// NewSequence returns an empty document at the current schema version.
func NewSequence(name string) Sequence {
	return Sequence{SchemaVersion: SchemaVersion, Name: name, Actions: []action.Action{}}
}

// Normalize coerces every action's params to its kind schema and regenerates
// descriptions. Custom descriptions stay fixed. Unknown kinds are an error.
func (s *Sequence) Normalize() error {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SchemaVersion
	}
	if s.Actions == nil {
		s.Actions = []action.Action{}
	}
	seen := make(map[string]struct{}, len(s.Actions))
	for i := range s.Actions {
		a := &s.Actions[i]
		d, ok := action.Lookup(a.Kind)
		if !ok {
			return fmt.Errorf("action %d (%s): unknown kind %q", i, a.ID, a.Kind)
		}
		if a.ID == "" {
			return fmt.Errorf("action %d: missing id", i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("action %d: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = struct{}{}
		a.Params = d.Normalize(a.Params)
		a.Description = d.Describe(a.Params)
	}
	return nil
}

// Counts returns the number of actions per kind.
func (s Sequence) Counts() map[action.Kind]int {
	out := make(map[action.Kind]int)
	for _, a := range s.Actions {
		out[a.Kind]++
	}
	return out
}
