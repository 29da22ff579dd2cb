/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package action

import (
	"strings"
	"testing"
)

// sample params that differ from every default.
var samples = map[Kind]Params{
	KindCamera:        {"x": 120.5, "y": -40, "scale": 1.5, "duration": 750},
	KindSwitchScene:   {"sceneId": "Xy7", "sceneName": "The \"Old\" Harbor"},
	KindTokenMovement: {"id": "tok-1", "x": 300, "y": 450, "rotation": 90, "animatePan": true, "teleport": false, "speed": 150, "waitForCompletion": false},
	KindShowHideToken: {"tokenId": "t2", "async": true},
	KindTileMovement:  {"tileId": "tile9", "x": 10, "y": 20, "rotation": 45, "animatePan": true},
	KindDoorState:     {"wallId": "w1", "doorState": "1"},
	KindWait:          {"duration": 500},
	KindScreenFlash:   {"color": "#FF0000", "opacity": 0.8, "duration": 300},
	KindScreenShake:   {"duration": 1500, "speed": 20, "intensity": 8},
	KindRunMacro:      {"macroName": "Light \\ Show"},
	KindImageDisplay:  {"imageUrl": "worlds/img/map.png"},
	KindFadeOut:       {"fadeDuration": 1200},
	KindFadeIn:        {"fadeDuration": 900},
	KindHideUI:        {"duration": 250},
	KindShowUI:        {"duration": 350},
	KindPlayAudio:     {"audioFilePath": "sounds/boom.ogg", "soundType": "sfx", "volume": 0.4, "repeat": true, "fadeDuration": 200},
	KindTokenSay:      {"tokenId": "npc", "message": "Halt!\nWho goes there?"},
}

func TestEmitExtractRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		d, _ := Lookup(k)
		want := d.Normalize(samples[k])
		text := d.Emit(want)
		// screen flash parameters live in its head block
		if k == KindScreenFlash {
			text = strings.SplitN(text, "\n\n", 2)[0]
		}
		got := d.Extract(text)
		for name, v := range want {
			if got[name] != v {
				t.Errorf("%s.%s: expected %v, got %v\n%s", k, name, v, got[name], text)
			}
		}
	}
}

func TestExtractFallsBackToDefaults(t *testing.T) {
	for _, k := range Kinds() {
		d, _ := Lookup(k)
		got := d.Extract(d.MarkerLine())
		for name, v := range d.Defaults() {
			if got[name] != v {
				t.Errorf("%s.%s: expected default %v, got %v", k, name, v, got[name])
			}
		}
	}
}

func TestExtractLegacyForms(t *testing.T) {
	tm, _ := Lookup(KindTokenMovement)
	legacy := `                // Token Teleport Action
                const token = canvas.tokens.get("abc");
                await token.document.update({ x: 100, y: 200, rotation: 30 });`
	if !tm.Matches(legacy) {
		t.Fatalf("legacy teleport marker should match token movement")
	}
	p := tm.Extract(legacy)
	if p["id"] != "abc" || p["teleport"] != true || p["x"] != 100.0 || p["rotation"] != 30.0 {
		t.Fatalf("unexpected legacy teleport params: %+v", p)
	}

	shake, _ := Lookup(KindScreenShake)
	p = shake.Extract("// Screen Shake Action\nshake({ duration: 800, speed: 12, intensity: 3 })")
	if p["duration"] != 800 || p["speed"] != 12 || p["intensity"] != 3 {
		t.Fatalf("unexpected legacy shake params: %+v", p)
	}

	fade, _ := Lookup(KindFadeOut)
	if got := fade.Extract("// Fade Out Action\n{ fadeDuration: 3000 }")["fadeDuration"]; got != 3000 {
		t.Fatalf("unexpected legacy fade duration %v", got)
	}

	tile, _ := Lookup(KindTileMovement)
	if got := tile.Extract("// Tile Movement Action\nanimateTilePan(true)")["animatePan"]; got != true {
		t.Fatalf("legacy tile pan flag not recognised")
	}

	scene, _ := Lookup(KindSwitchScene)
	if got := scene.Extract(`// Switch Scene Action
const scene = game.scenes.get("s-42");`)["sceneId"]; got != "s-42" {
		t.Fatalf("unexpected legacy scene id %v", got)
	}
}

func TestWaitExample(t *testing.T) {
	d, _ := Lookup(KindWait)
	text := d.Emit(Params{"duration": 500})
	if !strings.Contains(text, "setTimeout(resolve, 500)") {
		t.Fatalf("wait block missing timer: %q", text)
	}
	if k, ok := Classify(text); !ok || k != KindWait {
		t.Fatalf("wait block classified as %q", k)
	}
	if got := d.Extract(text)["duration"]; got != 500 {
		t.Fatalf("expected duration 500, got %v", got)
	}
}

func TestEditedMarkersStillClassify(t *testing.T) {
	cases := []struct {
		name, text string
		duration   int
	}{
		{"suffix", "// Wait Action (edited)\nawait new Promise(resolve => setTimeout(resolve, 300));", 300},
		{"inline block comment", "/* Wait Action */ await new Promise(resolve => setTimeout(resolve, 450));", 450},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			k, ok := Classify(tc.text)
			if !ok || k != KindWait {
				t.Fatalf("classified as %q (ok=%v)", k, ok)
			}
			d, _ := Lookup(k)
			if got := d.Extract(tc.text)["duration"]; got != tc.duration {
				t.Fatalf("expected duration %d, got %v", tc.duration, got)
			}
		})
	}
	if _, ok := Classify("const note = \"Wait Action\";"); ok {
		t.Fatalf("marker text outside a comment should not classify")
	}
}

func TestCoordinatesIgnoreIDLiterals(t *testing.T) {
	tm, _ := Lookup(KindTokenMovement)
	want := tm.Normalize(Params{"id": "x: 77, y: 5, rotation: 9, const speed = 9", "x": 1, "y": 2, "rotation": 3, "speed": 100})
	got := tm.Extract(tm.Emit(want))
	for _, name := range []string{"id", "x", "y", "rotation", "speed"} {
		if got[name] != want[name] {
			t.Errorf("token %s: expected %v, got %v", name, want[name], got[name])
		}
	}

	tile, _ := Lookup(KindTileMovement)
	want = tile.Normalize(Params{"tileId": "{ x: 77, y: 5 } await canvas.animatePan(", "x": 4, "y": 8})
	got = tile.Extract(tile.Emit(want))
	for _, name := range []string{"tileId", "x", "y", "animatePan"} {
		if got[name] != want[name] {
			t.Errorf("tile %s: expected %v, got %v", name, want[name], got[name])
		}
	}
}

func TestShowHideTokenAsyncIsNotAwaited(t *testing.T) {
	d, _ := Lookup(KindShowHideToken)
	async := d.Emit(Params{"async": true})
	if strings.Contains(async, "await (async function") {
		t.Fatalf("async show/hide should not be awaited:\n%s", async)
	}
	sync := d.Emit(Params{"async": false})
	if !strings.Contains(sync, "await (async function") {
		t.Fatalf("sync show/hide should be awaited:\n%s", sync)
	}
}

func TestJSQuoteRoundTrip(t *testing.T) {
	for _, s := range []string{"", "plain", `say "hi"`, `back\slash`, "tab\tnew\nline", "ctrl\x01", "sep\u2028x", "ümlaut"} {
		q := jsQuote(s)
		if strings.ContainsAny(q, "\n\r") {
			t.Fatalf("quoted %q contains raw newline", s)
		}
		if got := jsUnquote(q[1 : len(q)-1]); got != s {
			t.Fatalf("round trip of %q gave %q", s, got)
		}
	}
}
