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
)

// Kinds that pace the sequence or act on the screen as a whole.

var (
	reTimeout        = regexp.MustCompile(`setTimeout\(resolve, ` + intPat + `\)`)
	reFlashColor     = regexp.MustCompile(`backgroundColor = ` + strPat)
	reFlashOpacity   = regexp.MustCompile(`opacity = ` + numPat)
	reConstDuration  = regexp.MustCompile(`const duration = ` + intPat)
	reLegacyDuration = regexp.MustCompile(`duration = ` + intPat)
	reShakeCall      = regexp.MustCompile(`shake\(` + numPat + `, ` + numPat + `, ` + numPat + `\)`)
	reLegacySpeedKey = regexp.MustCompile(`\bspeed: ` + intPat)
	reIntensity      = regexp.MustCompile(`\bintensity: ` + intPat)
	reFilter         = regexp.MustCompile(`filter ` + intPat + `ms`)
	reFadeDuration   = regexp.MustCompile(`fadeDuration: ` + intPat)
)

func wait() Descriptor {
	return Descriptor{
		Kind:   KindWait,
		Label:  "Wait",
		Marker: "Wait Action",
		Fields: []Field{intField("duration", "Duration (ms)", 1000)},
		describe: func(p Params) string {
			return fmt.Sprintf("Wait for %s ms", integer(p, "duration"))
		},
		emit: func(p Params) string {
			return "// Wait Action\nawait new Promise(resolve => setTimeout(resolve, " + integer(p, "duration") + "));"
		},
		extract: func(b block) Params {
			return Params{"duration": b.num(1000, reTimeout)}
		},
	}
}

// screenFlash keeps its three-part layout: the head block carries every
// parameter, the two timer fragments after it are dropped by the parser.
func screenFlash() Descriptor {
	return Descriptor{
		Kind:   KindScreenFlash,
		Label:  "Screen Flash",
		Marker: "Screen Flash Action",
		Fields: []Field{
			strField("color", "Color", "#FFFFFF"),
			numField("opacity", "Opacity", 0.5),
			intField("duration", "Duration (ms)", 1000),
		},
		describe: func(p Params) string {
			return fmt.Sprintf("Screen Flash (Color: %s, Opacity: %s, Duration: %sms)",
				p.String("color", ""), num(p, "opacity"), integer(p, "duration"))
		},
		emit: func(p Params) string {
			return iife("Screen Flash Action", true, "screen flash", nil,
				"const duration = "+integer(p, "duration")+";",
				"const flashEffect = document.createElement(\"div\");",
				"flashEffect.style.position = \"fixed\";",
				"flashEffect.style.left = 0;",
				"flashEffect.style.top = 0;",
				"flashEffect.style.width = \"100vw\";",
				"flashEffect.style.height = \"100vh\";",
				"flashEffect.style.backgroundColor = "+jsQuote(p.String("color", ""))+";",
				"flashEffect.style.opacity = "+num(p, "opacity")+";",
				"flashEffect.style.pointerEvents = \"none\";",
				"flashEffect.style.zIndex = \"10000\";",
				"document.body.appendChild(flashEffect);",
				"",
				"setTimeout(() => {",
				"    flashEffect.style.transition = \"opacity \" + duration + \"ms\";",
				"    flashEffect.style.opacity = 0;",
				"}, 50);",
				"",
				"setTimeout(() => {",
				"    flashEffect.remove();",
				"}, duration + 50);",
			)
		},
		extract: func(b block) Params {
			return Params{
				"color":    b.str("#FFFFFF", reFlashColor),
				"opacity":  b.num(0.5, reFlashOpacity),
				"duration": b.num(1000, reConstDuration, reLegacyDuration),
			}
		},
	}
}

func screenShake() Descriptor {
	return Descriptor{
		Kind:   KindScreenShake,
		Label:  "Screen Shake",
		Marker: "Screen Shake Action",
		Fields: []Field{
			intField("duration", "Duration (ms)", 1000),
			intField("speed", "Speed (interval ms)", 10),
			intField("intensity", "Intensity (px)", 5),
		},
		describe: func(p Params) string {
			return fmt.Sprintf("Screen Shake (Duration: %sms, Speed: %s, Intensity: %spx)",
				integer(p, "duration"), integer(p, "speed"), integer(p, "intensity"))
		},
		emit: func(p Params) string {
			return iife("Screen Shake Action", true, "screen shake", nil,
				"const originalPosition = { x: canvas.stage.pivot.x, y: canvas.stage.pivot.y };",
				"const shake = (intensity, speed, duration) => {",
				"    return new Promise(resolve => {",
				"        const startTime = Date.now();",
				"        const shakeInterval = setInterval(() => {",
				"            const elapsed = Date.now() - startTime;",
				"            if (elapsed >= duration) {",
				"                clearInterval(shakeInterval);",
				"                canvas.stage.pivot.set(originalPosition.x, originalPosition.y);",
				"                resolve();",
				"            } else {",
				"                const offsetX = (Math.random() - 0.5) * intensity;",
				"                const offsetY = (Math.random() - 0.5) * intensity;",
				"                canvas.stage.pivot.set(originalPosition.x + offsetX, originalPosition.y + offsetY);",
				"            }",
				"        }, speed);",
				"    });",
				"};",
				"await shake("+integer(p, "intensity")+", "+integer(p, "speed")+", "+integer(p, "duration")+");",
			)
		},
		extract: func(b block) Params {
			if m := reShakeCall.FindStringSubmatch(string(b)); m != nil {
				return Params{"intensity": m[1], "speed": m[2], "duration": m[3]}
			}
			return Params{
				"duration":  b.num(1000, reDuration),
				"speed":     b.num(10, reLegacySpeedKey),
				"intensity": b.num(5, reIntensity),
			}
		},
	}
}

func fade(kind Kind, label, errLabel string, brightness int, verb string) Descriptor {
	marker := label + " Action"
	return Descriptor{
		Kind:   kind,
		Label:  label,
		Marker: marker,
		Fields: []Field{intField("fadeDuration", "Duration (ms)", 2000)},
		describe: func(p Params) string {
			return fmt.Sprintf("%s (Duration: %sms)", label, integer(p, "fadeDuration"))
		},
		emit: func(p Params) string {
			d := integer(p, "fadeDuration")
			return iife(marker, true, errLabel, nil,
				"const canvasElement = document.querySelector(\"canvas#board\");",
				"canvasElement.style.transition = \"filter "+d+"ms ease-in-out\";",
				fmt.Sprintf("canvasElement.style.filter = \"brightness(%d)\";", brightness),
				"await new Promise(resolve => setTimeout(resolve, "+d+"));",
				"console.log(\"Screen faded "+verb+" over "+d+"ms.\");",
			)
		},
		extract: func(b block) Params {
			return Params{"fadeDuration": b.num(2000, reFilter, reTimeout, reFadeDuration)}
		},
	}
}

func fadeOut() Descriptor { return fade(KindFadeOut, "Fade Out", "fade out", 0, "out") }

func fadeIn() Descriptor { return fade(KindFadeIn, "Fade In", "fade in", 1, "in") }

// uiSelectors are the host interface panels toggled by hideUI and showUI.
const uiSelectors = `["#ui-left", "#ui-top", "#taskbar", "#ui-right", "#players", "#hotbar"]`

func toggleUI(kind Kind, label, errLabel, opacity, verb string) Descriptor {
	marker := label + " Action"
	return Descriptor{
		Kind:   kind,
		Label:  label,
		Marker: marker,
		Fields: []Field{intField("duration", "Duration (ms)", 500)},
		describe: func(p Params) string {
			return fmt.Sprintf("%s (Duration: %sms)", label, integer(p, "duration"))
		},
		emit: func(p Params) string {
			d := integer(p, "duration")
			return iife(marker, true, errLabel, nil,
				"const uiSelectors = "+uiSelectors+";",
				"uiSelectors.forEach(selector => {",
				"    const element = document.querySelector(selector);",
				"    if (element) {",
				"        element.style.transition = 'transform "+d+"ms ease, opacity "+d+"ms ease';",
				"        element.style.opacity = '"+opacity+"';",
				"    }",
				"});",
				"await new Promise(resolve => setTimeout(resolve, "+d+"));",
				"console.log(\"UI elements "+verb+" over "+d+"ms.\");",
			)
		},
		extract: func(b block) Params {
			return Params{"duration": b.num(500, reTimeout, reDuration)}
		},
	}
}

func hideUI() Descriptor { return toggleUI(KindHideUI, "Hide UI", "hide UI", "0", "hidden") }

func showUI() Descriptor { return toggleUI(KindShowUI, "Show UI", "show UI", "1", "shown") }
