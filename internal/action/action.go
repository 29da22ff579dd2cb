/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package action defines the cutscene action model and the registry of action kinds.
// Each kind is described by a Descriptor that knows its parameter schema, how to
// describe itself, how to emit its script block and how to recognise and extract
// itself from a previously emitted block.
package action

// Kind identifies the semantics and parameter schema of an action.
type Kind string

const (
	KindCamera        Kind = "camera"
	KindSwitchScene   Kind = "switchScene"
	KindTokenMovement Kind = "tokenMovement"
	KindShowHideToken Kind = "showHideToken"
	KindTileMovement  Kind = "tileMovement"
	KindDoorState     Kind = "doorState"
	KindWait          Kind = "wait"
	KindScreenFlash   Kind = "screenFlash"
	KindScreenShake   Kind = "screenShake"
	KindRunMacro      Kind = "runMacro"
	KindImageDisplay  Kind = "imageDisplay"
	KindFadeOut       Kind = "fadeOut"
	KindFadeIn        Kind = "fadeIn"
	KindHideUI        Kind = "hideUI"
	KindShowUI        Kind = "showUI"
	KindPlayAudio     Kind = "playAudio"
	KindTokenSay      Kind = "tokenSay"
	// KindCustom holds verbatim script text and is the parser fallback.
	KindCustom Kind = "custom"
)

// CustomDescription is the fixed description of every custom action.
const CustomDescription = "Custom Action"

// Action is one step of a cutscene sequence.
// The JSON shape is the persistence/transport format shared with the host UI.
type Action struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Params      Params `json:"params"`
	Description string `json:"description"`
}

// Draft is an action that has not been assigned an id yet (parser output, store input).
type Draft struct {
	Kind        Kind   `json:"kind"`
	Params      Params `json:"params"`
	Description string `json:"description"`
}

// Draft strips the id.
func (a Action) Draft() Draft {
	return Draft{Kind: a.Kind, Params: a.Params, Description: a.Description}
}

// Clone returns a deep copy so callers cannot mutate store-owned params.
func (a Action) Clone() Action {
	a.Params = a.Params.Clone()
	return a
}

// NewDraft builds a draft whose params are normalized against the kind schema
// and whose description is derived from them.
func NewDraft(kind Kind, raw map[string]any) (Draft, bool) {
	d, ok := Lookup(kind)
	if !ok {
		return Draft{}, false
	}
	p := d.Normalize(raw)
	return Draft{Kind: kind, Params: p, Description: d.Describe(p)}, true
}
