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
	"os"
	"strings"
	"testing"
)

func TestDocumentConformsToSchema(t *testing.T) {
	ph, err := InitProject(t.TempDir(), sampleSequence("Schema Test"))
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	data, err := os.ReadFile(ph.DocumentPath)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if err := ValidateDocument(data); err != nil {
		t.Fatalf("document does not conform to schema: %v", err)
	}
}

func TestValidateDocumentRejects(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing name":   `{"schemaVersion":1,"actions":[]}`,
		"unknown kind":   `{"schemaVersion":1,"name":"x","actions":[{"id":"a","kind":"animation","params":{}}]}`,
		"wrong type":     `{"schemaVersion":1,"name":"x","actions":[{"id":"a","kind":"camera","params":{"x":"left"}}]}`,
		"fractional int": `{"schemaVersion":1,"name":"x","actions":[{"id":"a","kind":"wait","params":{"duration":1.5}}]}`,
		"empty id":       `{"schemaVersion":1,"name":"x","actions":[{"id":"","kind":"wait","params":{}}]}`,
		"future version": `{"schemaVersion":99,"name":"x","actions":[]}`,
	}
	for name, doc := range cases {
		if err := ValidateDocument([]byte(doc)); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("%s: expected ErrInvalidDocument, got %v", name, err)
		}
	}
}

func TestValidateDocumentAcceptsPartialParams(t *testing.T) {
	doc := `{"schemaVersion":1,"name":"x","actions":[{"id":"a","kind":"tokenMovement","params":{"teleport":true}}]}`
	if err := ValidateDocument([]byte(doc)); err != nil {
		t.Fatalf("partial params should validate: %v", err)
	}
	seq, err := DecodeDocument([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeDocument error: %v", err)
	}
	if seq.Actions[0].Params["speed"] != 200.0 {
		t.Fatalf("expected default speed after decode, got %v", seq.Actions[0].Params["speed"])
	}
}

func TestDocumentSchemaJSONListsEveryKind(t *testing.T) {
	b, err := DocumentSchemaJSON()
	if err != nil {
		t.Fatalf("DocumentSchemaJSON error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	for _, kind := range []string{`"camera"`, `"tokenSay"`, `"custom"`} {
		if !strings.Contains(string(b), kind) {
			t.Fatalf("schema missing kind %s", kind)
		}
	}
}
