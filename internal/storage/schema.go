/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/domain"
)

// ErrInvalidDocument is returned when a document fails to decode or validate.
var ErrInvalidDocument = errors.New("invalid cutscene document")

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

// DocumentSchema returns the JSON Schema (draft-07) for cutscene.json.
// Per-kind parameter types are generated from the action registry.
func DocumentSchema() map[string]any {
	kinds := make([]any, 0, len(action.All()))
	var rules []any
	for _, d := range action.All() {
		kinds = append(kinds, string(d.Kind))
		props := make(map[string]any, len(d.Fields))
		for _, f := range d.Fields {
			props[f.Name] = map[string]any{"type": jsonType(f.Type)}
		}
		rules = append(rules, map[string]any{
			"if": map[string]any{
				"properties": map[string]any{"kind": map[string]any{"const": string(d.Kind)}},
			},
			"then": map[string]any{
				"properties": map[string]any{
					"params": map[string]any{"type": "object", "properties": props},
				},
			},
		})
	}
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"$id":     "https://cutscenemaker.local/schema/cutscene.schema.json",
		"title":   "Cutscene document",
		"type":    "object",
		"required": []any{
			"schemaVersion", "name", "actions",
		},
		"properties": map[string]any{
			"schemaVersion": map[string]any{"type": "integer", "minimum": 1, "maximum": domain.SchemaVersion},
			"name":          map[string]any{"type": "string"},
			"metadata": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"scene":  map[string]any{"type": "string"},
					"author": map[string]any{"type": "string"},
					"notes":  map[string]any{"type": "string"},
					"tags":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
			"actions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"id", "kind", "params"},
					"properties": map[string]any{
						"id":          map[string]any{"type": "string", "minLength": 1},
						"kind":        map[string]any{"enum": kinds},
						"params":      map[string]any{"type": "object"},
						"description": map[string]any{"type": "string"},
					},
					"allOf": rules,
				},
			},
		},
	}
}

func jsonType(t action.FieldType) string {
	switch t {
	case action.TypeNumber:
		return "number"
	case action.TypeInteger:
		return "integer"
	case action.TypeBool:
		return "boolean"
	default:
		return "string"
	}
}

// DocumentSchemaJSON renders DocumentSchema with indentation, for `cutscene schema`.
func DocumentSchemaJSON() ([]byte, error) {
	return json.MarshalIndent(DocumentSchema(), "", "  ")
}

func documentSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(DocumentSchema()))
	})
	return compiledSchema, schemaErr
}

// ValidateDocument checks raw document bytes against the document schema.
// Validation failures wrap ErrInvalidDocument and list every violation.
func ValidateDocument(data []byte) error {
	s, err := documentSchema()
	if err != nil {
		return fmt.Errorf("compile document schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}
