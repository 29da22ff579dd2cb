/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"cutscenemaker/internal/action"
)

// parseParams reads key=value pairs for kind. Values stay strings and are
// coerced by the registry; key=@path reads the value from a file.
func parseParams(kind action.Kind, pairs []string) (map[string]any, error) {
	d, ok := action.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q (see `cutscene kinds`)", kind)
	}
	known := map[string]bool{}
	for _, f := range d.Fields {
		known[f.Name] = true
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, found := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !found || k == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", p)
		}
		if !known[k] {
			return nil, fmt.Errorf("%s has no parameter %q (have: %s)", kind, k, strings.Join(fieldNames(d), ", "))
		}
		if strings.HasPrefix(v, "@") {
			b, err := os.ReadFile(v[1:])
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", k, err)
			}
			v = string(b)
		}
		out[k] = v
	}
	return out, nil
}

func fieldNames(d action.Descriptor) []string {
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
