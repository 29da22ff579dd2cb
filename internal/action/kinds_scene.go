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
	"regexp"
	"strings"
)

// Kinds that act on the canvas, its tokens, tiles and walls.

var (
	reX        = regexp.MustCompile(`\bx: ` + numPat)
	reY        = regexp.MustCompile(`\by: ` + numPat)
	reScale    = regexp.MustCompile(`\bscale: ` + numPat)
	reRotation = regexp.MustCompile(`\brotation: ` + numPat)
	reDuration = regexp.MustCompile(`\bduration: ` + intPat)

	// Line-anchored forms read coordinates from the emitted statements only,
	// so an id literal spelling "x: 77" cannot shadow them.
	reLineX     = regexp.MustCompile(`(?m)^\s*x: ` + numPat)
	reLineY     = regexp.MustCompile(`(?m)^\s*y: ` + numPat)
	reUpdateX   = regexp.MustCompile(`(?m)^\s*await (?:token|tile)\.document\.update\(\{ x: ` + numPat)
	reUpdateY   = regexp.MustCompile(`(?m)^\s*await (?:token|tile)\.document\.update\(\{ x: -?[\d.]+, y: ` + numPat)
	reUpdateRot = regexp.MustCompile(`(?m)^\s*await (?:token|tile)\.document\.update\(\{ x: -?[\d.]+, y: -?[\d.]+, rotation: ` + numPat)
	reCanvasPan = regexp.MustCompile(`(?m)^\s*await canvas\.animatePan\(`)

	reAnyGet       = regexp.MustCompile(`get\(` + legacyStrPat + `\)`)
	reTokenGet     = regexp.MustCompile(`canvas\.tokens\.get\(` + strPat + `\)`)
	reTileGet      = regexp.MustCompile(`canvas\.tiles\.get\(` + strPat + `\)`)
	reWallGet      = regexp.MustCompile(`canvas\.walls\.get\(` + strPat + `\)`)
	reSceneID      = regexp.MustCompile(`const sceneId = ` + strPat)
	reSceneName    = regexp.MustCompile(`const sceneName = ` + strPat)
	reTeleport     = regexp.MustCompile(`(?m)^\s*const teleport = (true|false)`)
	reAnimatePan   = regexp.MustCompile(`(?m)^\s*const animatePan = (true|false)`)
	reSpeed        = regexp.MustCompile(`(?m)^\s*const speed = ` + numPat)
	reLegacySpeed  = regexp.MustCompile(`movementSpeed: ` + numPat)
	reAsyncComment = regexp.MustCompile(`async: (true|false)`)
	reDoorState    = regexp.MustCompile(`\bds: (0|1|2)\b`)
)

const waitForMovement = "await new Promise(resolve => setTimeout(resolve"

func numField(name, label string, def float64) Field {
	return Field{Name: name, Label: label, Type: TypeNumber, Default: def}
}

func intField(name, label string, def int) Field {
	return Field{Name: name, Label: label, Type: TypeInteger, Default: def}
}

func strField(name, label string, def string) Field {
	return Field{Name: name, Label: label, Type: TypeString, Default: def}
}

func boolField(name, label string, def bool) Field {
	return Field{Name: name, Label: label, Type: TypeBool, Default: def}
}

func camera() Descriptor {
	return Descriptor{
		Kind:   KindCamera,
		Label:  "Camera",
		Marker: "Camera Position Action",
		Fields: []Field{
			numField("x", "X", 0),
			numField("y", "Y", 0),
			numField("scale", "Zoom", 1),
			intField("duration", "Pan duration (ms)", 1000),
		},
		describe: func(p Params) string {
			return fmt.Sprintf("Camera Position (X: %s, Y: %s, Zoom: %s, Duration: %sms)",
				num(p, "x"), num(p, "y"), num(p, "scale"), integer(p, "duration"))
		},
		emit: func(p Params) string {
			return iife("Camera Position Action", true, "camera position", nil,
				"const targetPosition = {",
				"    x: "+num(p, "x")+",",
				"    y: "+num(p, "y")+",",
				"    scale: "+num(p, "scale"),
				"};",
				"await canvas.animatePan({",
				"    x: targetPosition.x,",
				"    y: targetPosition.y,",
				"    scale: targetPosition.scale,",
				"    duration: "+integer(p, "duration"),
				"});",
				"await new Promise(resolve => setTimeout(resolve, "+integer(p, "duration")+"));",
			)
		},
		extract: func(b block) Params {
			return Params{
				"x":        b.num(0, reLineX, reX),
				"y":        b.num(0, reLineY, reY),
				"scale":    b.num(1, reScale),
				"duration": b.num(1000, reDuration),
			}
		},
	}
}

func switchScene() Descriptor {
	return Descriptor{
		Kind:   KindSwitchScene,
		Label:  "Switch Scene",
		Marker: "Switch Scene Action",
		Fields: []Field{
			strField("sceneId", "Scene ID", ""),
			strField("sceneName", "Scene name", ""),
		},
		describe: func(p Params) string {
			if name := p.String("sceneName", ""); name != "" {
				return fmt.Sprintf("Switch Scene to %s (ID: %s)", name, p.String("sceneId", ""))
			}
			return fmt.Sprintf("Switch Scene to (ID: %s)", p.String("sceneId", ""))
		},
		emit: func(p Params) string {
			return iife("Switch Scene Action", true, "switch scene", nil,
				"const sceneId = "+jsQuote(p.String("sceneId", ""))+";",
				"const sceneName = "+jsQuote(p.String("sceneName", ""))+";",
				"const scene = game.scenes.get(sceneId);",
				"if (scene) {",
				"    await scene.activate();",
				"} else {",
				"    const sceneByName = game.scenes.find(s => s.name === sceneId || (sceneName && s.name === sceneName));",
				"    if (sceneByName) {",
				"        await sceneByName.activate();",
				"    } else {",
				"        console.error(\"Could not find scene by ID or name:\", sceneId);",
				"    }",
				"}",
			)
		},
		extract: func(b block) Params {
			return Params{
				"sceneId":   b.str("", reSceneID, reAnyGet),
				"sceneName": b.str("", reSceneName),
			}
		},
	}
}

func tokenMovement() Descriptor {
	return Descriptor{
		Kind:          KindTokenMovement,
		Label:         "Token Movement",
		Marker:        "Token Movement Action",
		legacyMarkers: []string{"Token Teleport Action"},
		Fields: []Field{
			strField("id", "Token ID", ""),
			numField("x", "X", 0),
			numField("y", "Y", 0),
			numField("rotation", "Rotation", 0),
			boolField("animatePan", "Pan camera", false),
			boolField("teleport", "Teleport", false),
			numField("speed", "Speed (px/s)", 200),
			boolField("waitForCompletion", "Wait for completion", true),
		},
		describe: func(p Params) string {
			if p.Bool("teleport", false) {
				return fmt.Sprintf("Token Teleport (X: %s, Y: %s, Rotation: %s°)",
					num(p, "x"), num(p, "y"), num(p, "rotation"))
			}
			return fmt.Sprintf("Token Movement (X: %s, Y: %s, Rotation: %s°, Speed: %spx/s, Pan: %s)",
				num(p, "x"), num(p, "y"), num(p, "rotation"), num(p, "speed"), yesNo(p.Bool("animatePan", false)))
		},
		emit: func(p Params) string {
			x, y, rot := num(p, "x"), num(p, "y"), num(p, "rotation")
			update := "{ x: " + x + ", y: " + y + ", rotation: " + rot + " }"
			moved := []string{"    await token.document.update(" + update + ", { animate: { duration: duration, movementSpeed: speed } });"}
			if p.Bool("waitForCompletion", true) {
				moved = append(moved, "    "+waitForMovement+", duration));")
			}
			return iife("Token Movement Action", true, "token movement", nil,
				"const token = canvas.tokens.get("+jsQuote(p.String("id", ""))+");",
				"const teleport = "+fmt.Sprint(p.Bool("teleport", false))+";",
				"const animatePan = "+fmt.Sprint(p.Bool("animatePan", false))+";",
				"const speed = "+num(p, "speed")+";",
				"if (token) {",
				"    const distance = Math.sqrt(Math.pow("+x+" - token.x, 2) + Math.pow("+y+" - token.y, 2));",
				"    const duration = distance / speed * 1000;",
				"    if (teleport) {",
				"        await token.document.update("+update+");",
				"    } else {",
				strings.Join(indent(moved), "\n"),
				"    }",
				"    if (animatePan) {",
				"        await canvas.animatePan({ x: "+x+", y: "+y+", duration: duration });",
				"    }",
				"}",
			)
		},
		extract: func(b block) Params {
			p := Params{
				"id":                b.str("", reTokenGet, reAnyGet),
				"x":                 b.num(0, reUpdateX, reX),
				"y":                 b.num(0, reUpdateY, reY),
				"rotation":          b.num(0, reUpdateRot, reRotation),
				"speed":             b.num(200, reSpeed, reLegacySpeed),
			}
			if b.has("token.document.update") {
				p["waitForCompletion"] = b.has(waitForMovement)
			}
			p["teleport"] = b.flag(b.has("Token Teleport Action"), reTeleport)
			p["animatePan"] = b.flag(b.has("animatePan"), reAnimatePan)
			return p
		},
	}
}

func indent(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "    " + l
	}
	return out
}

func showHideToken() Descriptor {
	return Descriptor{
		Kind:   KindShowHideToken,
		Label:  "Show/Hide Token",
		Marker: "Show/Hide Token Action",
		Fields: []Field{
			strField("tokenId", "Token ID", ""),
			boolField("async", "Run asynchronously", false),
		},
		describe: func(p Params) string {
			return fmt.Sprintf("Show/Hide Token (ID: %s, Async: %s)", p.String("tokenId", ""), yesNo(p.Bool("async", false)))
		},
		emit: func(p Params) string {
			async := p.Bool("async", false)
			id := jsQuote(p.String("tokenId", ""))
			return iife("Show/Hide Token Action", !async, "show/hide token",
				[]string{"// async: " + fmt.Sprint(async)},
				"const token = canvas.tokens.get("+id+");",
				"if (token) {",
				"    const isHidden = token.document.hidden;",
				"    await token.document.update({ hidden: !isHidden });",
				"    console.log(\"Token \" + token.id + \" is now \" + (!isHidden ? \"hidden\" : \"visible\"));",
				"} else {",
				"    console.warn(\"Token not found:\", "+id+");",
				"}",
			)
		},
		extract: func(b block) Params {
			return Params{
				"tokenId": b.str("", reTokenGet),
				"async":   b.flag(false, reAsyncComment),
			}
		},
	}
}

func tileMovement() Descriptor {
	return Descriptor{
		Kind:   KindTileMovement,
		Label:  "Tile Movement",
		Marker: "Tile Movement Action",
		Fields: []Field{
			strField("tileId", "Tile ID", ""),
			numField("x", "X", 0),
			numField("y", "Y", 0),
			numField("rotation", "Rotation", 0),
			boolField("animatePan", "Pan camera", false),
		},
		describe: func(p Params) string {
			return fmt.Sprintf("Tile Movement (X: %s, Y: %s, Rotation: %s°, Pan: %s)",
				num(p, "x"), num(p, "y"), num(p, "rotation"), yesNo(p.Bool("animatePan", false)))
		},
		emit: func(p Params) string {
			x, y := num(p, "x"), num(p, "y")
			lines := []string{
				"const tile = canvas.tiles.get(" + jsQuote(p.String("tileId", "")) + ");",
				"if (tile) {",
				"    await tile.document.update({ x: " + x + ", y: " + y + ", rotation: " + num(p, "rotation") + " });",
			}
			if p.Bool("animatePan", false) {
				lines = append(lines, "    await canvas.animatePan({ x: "+x+", y: "+y+", duration: 1000 });")
			}
			lines = append(lines,
				"    await new Promise(resolve => setTimeout(resolve, 1000));",
				"}",
			)
			return iife("Tile Movement Action", true, "tile movement", nil, lines...)
		},
		extract: func(b block) Params {
			return Params{
				"tileId":     b.str("", reTileGet, reAnyGet),
				"x":          b.num(0, reUpdateX, reX),
				"y":          b.num(0, reUpdateY, reY),
				"rotation":   b.num(0, reUpdateRot, reRotation),
				"animatePan": b.matches(reCanvasPan) || b.has("animateTilePan"),
			}
		},
	}
}

// doorStateNames maps the wall "ds" value to its label.
var doorStateNames = map[string]string{"0": "Closed", "1": "Open", "2": "Locked"}

func doorStateValue(p Params) string {
	s := p.String("doorState", "0")
	if _, ok := doorStateNames[s]; !ok {
		return "0"
	}
	return s
}

func doorState() Descriptor {
	return Descriptor{
		Kind:   KindDoorState,
		Label:  "Door State",
		Marker: "Door State Action",
		Fields: []Field{
			strField("wallId", "Wall ID", ""),
			strField("doorState", "State (0 closed, 1 open, 2 locked)", "0"),
		},
		describe: func(p Params) string {
			return fmt.Sprintf("Door State (State: %s)", doorStateNames[doorStateValue(p)])
		},
		emit: func(p Params) string {
			ds := doorStateValue(p)
			return iife("Door State Action", true, "door state", nil,
				"const wall = canvas.walls.get("+jsQuote(p.String("wallId", ""))+");",
				"if (wall) {",
				"    await wall.document.update({",
				"        ds: "+ds,
				"    });",
				"    console.log(\"Door state changed to: "+doorStateNames[ds]+"\");",
				"}",
			)
		},
		extract: func(b block) Params {
			ds, ok := b.find(reDoorState)
			if !ok {
				ds = "0"
			}
			return Params{
				"wallId":    b.str("", reWallGet, reAnyGet),
				"doorState": ds,
			}
		},
	}
}
