/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script converts between action sequences and executable script text.
// Serialization emits one self-contained block per action joined by a blank line;
// parsing splits on blank lines and classifies each block by its marker comment.
package script

import (
	"fmt"

	"cutscenemaker/internal/action"
)

// Separator joins consecutive action blocks.
const Separator = "\n\n"

// BlockStatus classifies what the parser did with one block.
type BlockStatus int

const (
	BlockClassified BlockStatus = iota
	BlockCustom
	BlockFragment
)

func (s BlockStatus) String() string {
	switch s {
	case BlockClassified:
		return "classified"
	case BlockCustom:
		return "custom"
	case BlockFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s BlockStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status name written by MarshalText.
func (s *BlockStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "classified":
		*s = BlockClassified
	case "custom":
		*s = BlockCustom
	case "fragment":
		*s = BlockFragment
	default:
		return fmt.Errorf("unknown block status %q", b)
	}
	return nil
}

// Block is the diagnostic record of one non-empty block.
// Action is the index into Report.Actions, or -1 for discarded fragments.
type Block struct {
	Index  int         `json:"index"`
	LineNo int         `json:"line"` // 1-based starting line number in the source
	Status BlockStatus `json:"status"`
	Kind   action.Kind `json:"kind,omitempty"`
	Action int         `json:"action"`
}

// Report is the parse result with per-block diagnostics.
type Report struct {
	Actions []action.Draft
	Blocks  []Block
}

// Discarded counts the blocks dropped as known fragments.
func (r Report) Discarded() int {
	n := 0
	for _, b := range r.Blocks {
		if b.Status == BlockFragment {
			n++
		}
	}
	return n
}
