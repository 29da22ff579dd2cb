/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package action

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Params maps parameter names to scalar values (numbers, strings, booleans).
// Values may arrive as any numeric Go type, json.Number or form strings;
// the accessors coerce them.
type Params map[string]any

// Clone returns a shallow copy; values are scalars.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Float returns the named value as float64 or def if missing or not numeric.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := toFloat(p[name]); ok {
		return v
	}
	return def
}

// Int returns the named value truncated to an int or def if missing or not numeric.
func (p Params) Int(name string, def int) int {
	if v, ok := toFloat(p[name]); ok {
		return int(math.Trunc(v))
	}
	return def
}

// String returns the named value as string. Numbers and booleans are formatted.
func (p Params) String(name string, def string) string {
	if v, ok := toString(p[name]); ok {
		return v
	}
	return def
}

// Bool returns the named value as bool or def if missing.
func (p Params) Bool(name string, def bool) bool {
	if v, ok := toBool(p[name]); ok {
		return v
	}
	return def
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	default:
		if f, ok := toFloat(v); ok {
			return FormatNumber(f), true
		}
		return "", false
	}
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "yes", "on", "checked":
			return true, true
		case "0", "false", "no", "off", "":
			return false, true
		}
		return false, false
	default:
		if f, ok := toFloat(v); ok {
			return f != 0, true
		}
		return false, false
	}
}

// FormatNumber renders a number the way a template literal would: no trailing zeros,
// no exponent for ordinary magnitudes.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
