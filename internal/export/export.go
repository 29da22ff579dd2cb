/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a sequence into its output artifacts: the host
// script, the JSON document, a test-run wrapped script and a PDF cue sheet.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"cutscenemaker/internal/domain"
	"cutscenemaker/internal/runner"
	"cutscenemaker/internal/script"
	"cutscenemaker/internal/storage"
)

// Format names an export artifact.
type Format string

const (
	FormatScript Format = "script"
	FormatJSON   Format = "json"
	FormatRun    Format = "run"
	FormatPDF    Format = "pdf"
)

// Formats lists every supported format in a stable order.
func Formats() []Format { return []Format{FormatScript, FormatJSON, FormatRun, FormatPDF} }

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q (want script, json, run or pdf)", s)
}

// FileName is the default artifact name for a sequence in this format.
func (f Format) FileName(sequence string) string {
	base := slug(sequence)
	switch f {
	case FormatJSON:
		return base + ".json"
	case FormatRun:
		return base + ".run.js"
	case FormatPDF:
		return base + ".cues.pdf"
	default:
		return base + ".js"
	}
}

// Textual reports whether the format's output is text worth keeping in the export history.
func (f Format) Textual() bool { return f != FormatPDF }

// Render produces the artifact bytes for seq.
func Render(f Format, seq domain.Sequence) ([]byte, error) {
	switch f {
	case FormatScript:
		return []byte(script.SerializeSequence(seq.Actions)), nil
	case FormatJSON:
		return storage.EncodeDocument(seq)
	case FormatRun:
		return []byte(runner.Wrap(script.SerializeSequence(seq.Actions))), nil
	case FormatPDF:
		var buf bytes.Buffer
		if err := CueSheet(&buf, seq, CueSheetOptions{}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "cutscene"
	}
	return s
}
