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

// Serialize renders one action as its script block.
// Custom actions return their stored script verbatim; unknown kinds render as
// an empty string.
func Serialize(a action.Action) string {
	d, ok := action.Lookup(a.Kind)
	if !ok {
		return ""
	}
	return d.Emit(a.Params)
}

// SerializeSequence renders the actions in list order joined by Separator.
func SerializeSequence(actions []action.Action) string {
	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, Serialize(a))
	}
	return strings.Join(parts, Separator)
}
