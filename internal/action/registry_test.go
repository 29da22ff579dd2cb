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
	"strings"
	"testing"
)

func TestKindsPriorityOrder(t *testing.T) {
	want := []Kind{
		KindCamera, KindWait, KindSwitchScene, KindTokenMovement, KindShowHideToken,
		KindTileMovement, KindScreenShake, KindScreenFlash, KindRunMacro, KindImageDisplay,
		KindFadeOut, KindFadeIn, KindHideUI, KindShowUI, KindDoorState, KindPlayAudio, KindTokenSay,
	}
	got := Kinds()
	if len(got) != len(want) {
		t.Fatalf("expected %d kinds, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("priority[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}
	if !Valid(KindCustom) || Valid("animation") {
		t.Fatalf("unexpected validity of custom/animation")
	}
	if all := All(); all[len(all)-1].Kind != KindCustom {
		t.Fatalf("expected custom last in All()")
	}
}

func TestMarkersUniqueAndExclusive(t *testing.T) {
	seen := map[string]Kind{}
	for _, d := range All() {
		if d.Kind == KindCustom {
			continue
		}
		if prev, dup := seen[d.Marker]; dup {
			t.Fatalf("marker %q shared by %s and %s", d.Marker, prev, d.Kind)
		}
		seen[d.Marker] = d.Kind
	}
	for _, d := range All() {
		if d.Kind == KindCustom {
			continue
		}
		text := d.Emit(d.Defaults())
		if !strings.HasPrefix(text, d.MarkerLine()) {
			t.Fatalf("%s: emitted block does not start with its marker: %q", d.Kind, text)
		}
		for _, other := range All() {
			if other.Kind != d.Kind && other.Matches(text) {
				t.Fatalf("%s block also matches %s", d.Kind, other.Kind)
			}
		}
	}
}

func TestEmitHasNoBlankLinesExceptFlash(t *testing.T) {
	for _, d := range All() {
		if d.Kind == KindCustom || d.Kind == KindScreenFlash {
			continue
		}
		if strings.Contains(d.Emit(d.Defaults()), "\n\n") {
			t.Fatalf("%s: emitted block contains a blank line", d.Kind)
		}
	}
	flash, _ := Lookup(KindScreenFlash)
	if n := strings.Count(flash.Emit(flash.Defaults()), "\n\n"); n != 2 {
		t.Fatalf("screen flash: expected 2 blank lines, got %d", n)
	}
}

func TestDescribeDefaults(t *testing.T) {
	cases := []struct {
		kind Kind
		want string
	}{
		{KindCamera, "Camera Position (X: 0, Y: 0, Zoom: 1, Duration: 1000ms)"},
		{KindSwitchScene, "Switch Scene to (ID: )"},
		{KindTokenMovement, "Token Movement (X: 0, Y: 0, Rotation: 0°, Speed: 200px/s, Pan: No)"},
		{KindShowHideToken, "Show/Hide Token (ID: , Async: No)"},
		{KindTileMovement, "Tile Movement (X: 0, Y: 0, Rotation: 0°, Pan: No)"},
		{KindDoorState, "Door State (State: Closed)"},
		{KindWait, "Wait for 1000 ms"},
		{KindScreenFlash, "Screen Flash (Color: #FFFFFF, Opacity: 0.5, Duration: 1000ms)"},
		{KindScreenShake, "Screen Shake (Duration: 1000ms, Speed: 10, Intensity: 5px)"},
		{KindRunMacro, "Run Macro: "},
		{KindImageDisplay, "Display Image: "},
		{KindFadeOut, "Fade Out (Duration: 2000ms)"},
		{KindFadeIn, "Fade In (Duration: 2000ms)"},
		{KindHideUI, "Hide UI (Duration: 500ms)"},
		{KindShowUI, "Show UI (Duration: 500ms)"},
		{KindPlayAudio, "Play Audio:  (music)"},
		{KindTokenSay, "Token  says: "},
		{KindCustom, "Custom Action"},
	}
	for _, c := range cases {
		if got := Describe(c.kind, nil); got != c.want {
			t.Errorf("%s: expected %q, got %q", c.kind, c.want, got)
		}
	}
}

func TestDescribeVariants(t *testing.T) {
	if got := Describe(KindSwitchScene, Params{"sceneId": "abc", "sceneName": "Harbor"}); got != "Switch Scene to Harbor (ID: abc)" {
		t.Fatalf("unexpected switch scene description %q", got)
	}
	if got := Describe(KindTokenMovement, Params{"teleport": true, "x": 10.5, "y": 3}); got != "Token Teleport (X: 10.5, Y: 3, Rotation: 0°)" {
		t.Fatalf("unexpected teleport description %q", got)
	}
	if got := Describe(KindDoorState, Params{"doorState": "2"}); got != "Door State (State: Locked)" {
		t.Fatalf("unexpected door description %q", got)
	}
	if got := Describe(KindDoorState, Params{"doorState": "7"}); got != "Door State (State: Closed)" {
		t.Fatalf("invalid door state should read as closed, got %q", got)
	}
	if got := Describe("nope", nil); got != "" {
		t.Fatalf("unknown kind should describe as empty, got %q", got)
	}
}

func TestNormalizeCoercesFormValues(t *testing.T) {
	d, _ := Lookup(KindTokenMovement)
	p := d.Normalize(map[string]any{
		"id":                "tok1",
		"x":                 "120.5",
		"y":                 json.Number("80"),
		"rotation":          int64(90),
		"teleport":          "on",
		"speed":             "fast", // not numeric, falls back
		"waitForCompletion": "false",
		"bogus":             1,
	})
	if p["x"] != 120.5 || p["y"] != 80.0 || p["rotation"] != 90.0 {
		t.Fatalf("unexpected numeric coercion: %+v", p)
	}
	if p["teleport"] != true || p["waitForCompletion"] != false || p["animatePan"] != false {
		t.Fatalf("unexpected bool coercion: %+v", p)
	}
	if p["speed"] != 200.0 {
		t.Fatalf("expected speed default, got %v", p["speed"])
	}
	if _, ok := p["bogus"]; ok {
		t.Fatalf("unknown key should be dropped")
	}
	w, _ := Lookup(KindWait)
	if got := w.Normalize(map[string]any{"duration": 250.9})["duration"]; got != 250 {
		t.Fatalf("integer field should truncate, got %v", got)
	}
}

func TestNewDraft(t *testing.T) {
	d, ok := NewDraft(KindWait, map[string]any{"duration": 500})
	if !ok {
		t.Fatalf("wait should be registered")
	}
	if d.Description != "Wait for 500 ms" || d.Params.Int("duration", 0) != 500 {
		t.Fatalf("unexpected draft %+v", d)
	}
	if _, ok := NewDraft("animation", nil); ok {
		t.Fatalf("animation is not a registered kind")
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{0: "0", 1: "1", -3: "-3", 0.5: "0.5", 12.25: "12.25", 1e20: "100000000000000000000"}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v): expected %q, got %q", in, want, got)
		}
	}
}
