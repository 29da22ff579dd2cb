/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"strings"

	"cutscenemaker/internal/action"
)

// fragmentMarkers identify the trailing timer fragments of a screen flash block.
var fragmentMarkers = []string{"flashEffect.style.transition", "flashEffect.remove"}

// Split cuts text into blocks on Separator. Whitespace-only blocks are skipped.
func Split(text string) []string {
	var out []string
	for _, b := range strings.Split(text, Separator) {
		if strings.TrimSpace(b) == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

// IsFragment reports whether an unclassified block is a known screen flash fragment.
func IsFragment(block string) bool {
	for _, m := range fragmentMarkers {
		if strings.Contains(block, m) {
			return true
		}
	}
	return false
}

// Parse reconstructs the action sequence from script text. It never fails:
// unrecognised blocks become custom actions, missing fields take defaults.
func Parse(text string) []action.Draft {
	return ParseReport(text).Actions
}

// ParseReport is Parse with per-block diagnostics.
func ParseReport(text string) Report {
	r := Report{Actions: []action.Draft{}}
	lineNo := 1
	index := 0
	for _, raw := range strings.Split(text, Separator) {
		start := lineNo
		lineNo += strings.Count(raw, "\n") + 2
		if strings.TrimSpace(raw) == "" {
			continue
		}
		b := Block{Index: index, LineNo: start, Action: -1}
		index++

		kind, ok := action.Classify(raw)
		switch {
		case ok:
			d, _ := action.Lookup(kind)
			p := d.Extract(raw)
			b.Status, b.Kind, b.Action = BlockClassified, kind, len(r.Actions)
			r.Actions = append(r.Actions, action.Draft{Kind: kind, Params: p, Description: d.Describe(p)})
		case IsFragment(raw):
			b.Status = BlockFragment
		default:
			b.Status, b.Kind, b.Action = BlockCustom, action.KindCustom, len(r.Actions)
			r.Actions = append(r.Actions, action.Draft{
				Kind:        action.KindCustom,
				Params:      action.Params{"script": raw},
				Description: action.CustomDescription,
			})
		}
		r.Blocks = append(r.Blocks, b)
	}
	return r
}
