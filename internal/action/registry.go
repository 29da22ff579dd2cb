/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package action

import (
	"fmt"
	"strings"
)

// FieldType is the declared type of a parameter.
type FieldType string

const (
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeString  FieldType = "string"
	TypeBool    FieldType = "bool"
)

// Field is one entry of a kind's parameter schema.
type Field struct {
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Type    FieldType `json:"type"`
	Default any       `json:"default"`
}

// Descriptor is the registry entry for one kind.
// Describe, Emit and Extract all work on normalized params, so missing or
// mistyped fields fall back to the schema defaults.
type Descriptor struct {
	Kind   Kind    `json:"kind"`
	Label  string  `json:"label"`
	Marker string  `json:"marker,omitempty"`
	Fields []Field `json:"fields"`

	legacyMarkers []string
	describe      func(Params) string
	emit          func(Params) string
	extract       func(block) Params
}

// Defaults returns a fresh params map with every field at its default.
func (d Descriptor) Defaults() Params {
	p := make(Params, len(d.Fields))
	for _, f := range d.Fields {
		p[f.Name] = f.Default
	}
	return p
}

// Normalize coerces raw values to the schema field types and fills defaults.
// Keys outside the schema are dropped.
func (d Descriptor) Normalize(raw map[string]any) Params {
	p := make(Params, len(d.Fields))
	in := Params(raw)
	for _, f := range d.Fields {
		switch f.Type {
		case TypeNumber:
			p[f.Name] = in.Float(f.Name, f.Default.(float64))
		case TypeInteger:
			p[f.Name] = in.Int(f.Name, f.Default.(int))
		case TypeBool:
			p[f.Name] = in.Bool(f.Name, f.Default.(bool))
		default:
			p[f.Name] = in.String(f.Name, f.Default.(string))
		}
	}
	return p
}

// Describe renders the human-readable description.
func (d Descriptor) Describe(p Params) string { return d.describe(d.Normalize(p)) }

// Emit renders the self-contained script block.
func (d Descriptor) Emit(p Params) string { return d.emit(d.Normalize(p)) }

// Extract recovers params from a block. It never fails; absent fields get defaults.
func (d Descriptor) Extract(text string) Params {
	return d.Normalize(d.extract(block(text)))
}

// Matches reports whether any comment line of the block mentions this kind's
// marker. A comment line starts with // or /* once trimmed, so hand-edited
// markers ("// Wait Action (edited)") and inline block comments still count.
// Custom has no marker and never matches.
func (d Descriptor) Matches(text string) bool {
	if d.Marker == "" {
		return false
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "//") && !strings.HasPrefix(line, "/*") {
			continue
		}
		if strings.Contains(line, d.Marker) {
			return true
		}
		for _, m := range d.legacyMarkers {
			if strings.Contains(line, m) {
				return true
			}
		}
	}
	return false
}

// MarkerLine is the comment line that starts every emitted block of this kind.
func (d Descriptor) MarkerLine() string { return "// " + d.Marker }

var (
	registry = map[Kind]Descriptor{}
	// priority is the fixed classification order of the parser.
	priority []Kind
)

func register(d Descriptor) {
	if _, dup := registry[d.Kind]; dup {
		panic(fmt.Sprintf("action: kind %q registered twice", d.Kind))
	}
	registry[d.Kind] = d
	if d.Kind != KindCustom {
		priority = append(priority, d.Kind)
	}
}

func init() {
	for _, d := range []Descriptor{
		camera(),
		wait(),
		switchScene(),
		tokenMovement(),
		showHideToken(),
		tileMovement(),
		screenShake(),
		screenFlash(),
		runMacro(),
		imageDisplay(),
		fadeOut(),
		fadeIn(),
		hideUI(),
		showUI(),
		doorState(),
		playAudio(),
		tokenSay(),
		custom(),
	} {
		register(d)
	}
}

// Lookup returns the descriptor for kind.
func Lookup(kind Kind) (Descriptor, bool) {
	d, ok := registry[kind]
	return d, ok
}

// Valid reports whether kind is registered (custom included).
func Valid(kind Kind) bool {
	_, ok := registry[kind]
	return ok
}

// Kinds returns the marker-bearing kinds in classification priority order.
func Kinds() []Kind { return append([]Kind(nil), priority...) }

// All returns every descriptor: priority order, then custom.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, k := range priority {
		out = append(out, registry[k])
	}
	return append(out, registry[KindCustom])
}

// Describe is a shortcut for Lookup(kind).Describe; unknown kinds yield "".
func Describe(kind Kind, p Params) string {
	d, ok := registry[kind]
	if !ok {
		return ""
	}
	return d.Describe(p)
}

// Classify returns the first kind in priority order whose marker the block carries.
func Classify(text string) (Kind, bool) {
	for _, k := range priority {
		if registry[k].Matches(text) {
			return k, true
		}
	}
	return "", false
}
