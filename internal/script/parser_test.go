/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"encoding/json"
	"strings"
	"testing"

	"cutscenemaker/internal/action"
)

func mustDraft(t *testing.T, kind action.Kind, raw map[string]any) action.Action {
	t.Helper()
	d, ok := action.NewDraft(kind, raw)
	if !ok {
		t.Fatalf("unknown kind %s", kind)
	}
	return action.Action{ID: "x", Kind: d.Kind, Params: d.Params, Description: d.Description}
}

func TestParseEveryKindRoundTrip(t *testing.T) {
	var seq []action.Action
	for _, k := range action.Kinds() {
		seq = append(seq, mustDraft(t, k, nil))
	}
	text := SerializeSequence(seq)
	got := Parse(text)
	if len(got) != len(seq) {
		t.Fatalf("expected %d actions, got %d\n%s", len(seq), len(got), text)
	}
	for i, a := range seq {
		if got[i].Kind != a.Kind {
			t.Fatalf("action %d: expected kind %s, got %s", i, a.Kind, got[i].Kind)
		}
		if got[i].Description != a.Description {
			t.Fatalf("action %d: expected description %q, got %q", i, a.Description, got[i].Description)
		}
	}
}

func TestParsePreservesOrder(t *testing.T) {
	seq := []action.Action{
		mustDraft(t, action.KindFadeOut, map[string]any{"fadeDuration": 800}),
		mustDraft(t, action.KindScreenFlash, map[string]any{"color": "#00FF00"}),
		mustDraft(t, action.KindWait, map[string]any{"duration": 250}),
		mustDraft(t, action.KindCamera, map[string]any{"x": 5, "y": 6}),
		mustDraft(t, action.KindFadeIn, nil),
	}
	got := Parse(SerializeSequence(seq))
	if len(got) != len(seq) {
		t.Fatalf("expected %d actions, got %d", len(seq), len(got))
	}
	for i := range seq {
		if got[i].Kind != seq[i].Kind {
			t.Fatalf("position %d: expected %s, got %s", i, seq[i].Kind, got[i].Kind)
		}
	}
	if got[1].Params["color"] != "#00FF00" || got[2].Params["duration"] != 250 {
		t.Fatalf("unexpected params: %+v / %+v", got[1].Params, got[2].Params)
	}
}

func TestParseDefaultSubstitution(t *testing.T) {
	got := Parse("// Wait Action\n\n// Screen Flash Action\nflashEffect.style.backgroundColor = \"#123456\";")
	if len(got) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(got))
	}
	if got[0].Params["duration"] != 1000 || got[0].Description != "Wait for 1000 ms" {
		t.Fatalf("unexpected wait: %+v", got[0])
	}
	if got[1].Params["opacity"] != 0.5 || got[1].Params["color"] != "#123456" {
		t.Fatalf("unexpected flash: %+v", got[1])
	}
}

func TestParseUnclassifiedBecomesCustom(t *testing.T) {
	input := "console.log(\"hello\");\nui.notifications.info(\"hi\");"
	got := Parse(input)
	if len(got) != 1 {
		t.Fatalf("expected 1 action, got %d", len(got))
	}
	if got[0].Kind != action.KindCustom || got[0].Params["script"] != input || got[0].Description != "Custom Action" {
		t.Fatalf("unexpected custom action: %+v", got[0])
	}
	// custom serializes back verbatim
	a := action.Action{Kind: got[0].Kind, Params: got[0].Params}
	if Serialize(a) != input {
		t.Fatalf("custom did not serialize verbatim")
	}
}

func TestParseDropsFlashFragments(t *testing.T) {
	r := ParseReport("setTimeout(() => {\n    flashEffect.remove();\n}, 1050);")
	if len(r.Actions) != 0 || r.Discarded() != 1 {
		t.Fatalf("expected the fragment to be discarded, got %+v", r)
	}
}

func TestParseSkipsWhitespaceBlocks(t *testing.T) {
	got := Parse("\n\n   \n\n// Wait Action\nawait new Promise(resolve => setTimeout(resolve, 10));\n\n\t\n\n")
	if len(got) != 1 || got[0].Kind != action.KindWait {
		t.Fatalf("expected a single wait, got %+v", got)
	}
	if len(Parse("")) != 0 {
		t.Fatalf("empty input should yield no actions")
	}
}

func TestParseReportLineNumbers(t *testing.T) {
	text := "// Wait Action\nawait x;\n\n// Fade In Action\n\nplain"
	r := ParseReport(text)
	if len(r.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(r.Blocks))
	}
	wantLines := []int{1, 4, 6}
	for i, b := range r.Blocks {
		if b.LineNo != wantLines[i] {
			t.Fatalf("block %d: expected line %d, got %d", i, wantLines[i], b.LineNo)
		}
	}
	if r.Blocks[2].Status != BlockCustom || r.Blocks[1].Kind != action.KindFadeIn {
		t.Fatalf("unexpected statuses: %+v", r.Blocks)
	}
}

func TestWaitFiveHundredExample(t *testing.T) {
	a := mustDraft(t, action.KindWait, map[string]any{"duration": 500})
	if a.Description != "Wait for 500 ms" {
		t.Fatalf("unexpected description %q", a.Description)
	}
	text := SerializeSequence([]action.Action{a})
	if !strings.Contains(text, "setTimeout(resolve, 500)") {
		t.Fatalf("script missing timer: %q", text)
	}
	got := Parse(text)
	if len(got) != 1 || got[0].Kind != action.KindWait || got[0].Params["duration"] != 500 {
		t.Fatalf("unexpected parse: %+v", got)
	}
}

func TestLegacyIndentedScript(t *testing.T) {
	legacy := `
                // Camera Position Action
                (async function() {
                    await canvas.animatePan({ x: 100, y: 200, scale: 1.5, duration: 2000 });
                })();
            

            
                // Fade Out Action
                { fadeDuration: 1500 }
            `
	got := Parse(legacy)
	if len(got) != 2 {
		t.Fatalf("expected 2 actions, got %d: %+v", len(got), got)
	}
	if got[0].Kind != action.KindCamera || got[0].Params["scale"] != 1.5 || got[0].Params["duration"] != 2000 {
		t.Fatalf("unexpected camera: %+v", got[0])
	}
	if got[1].Kind != action.KindFadeOut || got[1].Params["fadeDuration"] != 1500 {
		t.Fatalf("unexpected fade: %+v", got[1])
	}
}

func TestBlockStatusJSON(t *testing.T) {
	in := []Block{
		{Index: 0, LineNo: 1, Status: BlockClassified, Kind: action.KindWait, Action: 0},
		{Index: 1, LineNo: 4, Status: BlockCustom, Kind: action.KindCustom, Action: 1},
		{Index: 2, LineNo: 9, Status: BlockFragment, Action: -1},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"status":"fragment"`) {
		t.Fatalf("status not encoded by name: %s", raw)
	}
	var out []Block
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("block %d: expected %+v, got %+v", i, in[i], out[i])
		}
	}
	var s BlockStatus
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
