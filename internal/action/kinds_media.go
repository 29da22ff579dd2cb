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

var (
	reMacroName   = regexp.MustCompile(`find\(m => m\.name === ` + strPat + `\)`)
	reLegacyMacro = regexp.MustCompile(`find\(m => m\.name === ` + legacyStrPat + `\)`)
	reImageURL    = regexp.MustCompile(`new ImagePopout\(` + strPat)
	reAudioSrc    = regexp.MustCompile(`src: ` + strPat)
	reSoundType   = regexp.MustCompile(`soundType: ` + strPat)
	reVolume      = regexp.MustCompile(`volume: ` + numPat)
	reLoop        = regexp.MustCompile(`loop: (true|false)`)
	reFade        = regexp.MustCompile(`fade: ` + intPat)
	reContent     = regexp.MustCompile(`content: ` + strPat)
)

func runMacro() Descriptor {
	return Descriptor{
		Kind:   KindRunMacro,
		Label:  "Run Macro",
		Marker: "Run Macro Action",
		Fields: []Field{strField("macroName", "Macro name", "")},
		describe: func(p Params) string {
			return "Run Macro: " + p.String("macroName", "")
		},
		emit: func(p Params) string {
			name := jsQuote(p.String("macroName", ""))
			return iife("Run Macro Action", true, "run macro", nil,
				"const macroName = "+name+";",
				"const macro = game.macros.find(m => m.name === "+name+");",
				"if (macro) {",
				"    await macro.execute();",
				"    console.log(\"Executed macro: \" + macroName);",
				"} else {",
				"    console.warn(\"Macro not found: \" + macroName);",
				"}",
			)
		},
		extract: func(b block) Params {
			return Params{"macroName": b.str("", reMacroName, reLegacyMacro)}
		},
	}
}

func imageDisplay() Descriptor {
	return Descriptor{
		Kind:   KindImageDisplay,
		Label:  "Image Display",
		Marker: "Image Display Action",
		Fields: []Field{strField("imageUrl", "Image URL", "")},
		describe: func(p Params) string {
			return "Display Image: " + p.String("imageUrl", "")
		},
		emit: func(p Params) string {
			url := jsQuote(p.String("imageUrl", ""))
			return iife("Image Display Action", true, "image display", nil,
				"const imagePopout = new ImagePopout("+url+", {",
				"    title: \"Image Display\",",
				"    shareable: true,",
				"    uuid: null",
				"});",
				"imagePopout.render(true);",
				"console.log(\"Displayed image: \" + "+url+");",
			)
		},
		extract: func(b block) Params {
			return Params{"imageUrl": b.str("", reImageURL)}
		},
	}
}

func playAudio() Descriptor {
	return Descriptor{
		Kind:   KindPlayAudio,
		Label:  "Play Audio",
		Marker: "Play Audio Action",
		Fields: []Field{
			strField("audioFilePath", "Audio file", ""),
			strField("soundType", "Sound type", "music"),
			numField("volume", "Volume", 0.8),
			boolField("repeat", "Repeat", false),
			intField("fadeDuration", "Fade (ms)", 0),
		},
		describe: func(p Params) string {
			return fmt.Sprintf("Play Audio: %s (%s)", p.String("audioFilePath", ""), p.String("soundType", ""))
		},
		emit: func(p Params) string {
			src := jsQuote(p.String("audioFilePath", ""))
			kind := jsQuote(p.String("soundType", ""))
			return iife("Play Audio Action", true, "play audio", nil,
				"const sound = {",
				"    src: "+src+",",
				"    volume: "+num(p, "volume")+",",
				"    loop: "+fmt.Sprint(p.Bool("repeat", false))+",",
				"    fade: "+integer(p, "fadeDuration")+",",
				"    soundType: "+kind,
				"};",
				"await AudioHelper.play(sound, true);",
				"console.log(\"Playing audio: \" + sound.src + \" as \" + sound.soundType);",
			)
		},
		extract: func(b block) Params {
			return Params{
				"audioFilePath": b.str("", reAudioSrc),
				"soundType":     b.str("music", reSoundType),
				"volume":        b.num(0.8, reVolume),
				"repeat":        b.flag(false, reLoop),
				"fadeDuration":  b.num(0, reFade),
			}
		},
	}
}

func tokenSay() Descriptor {
	return Descriptor{
		Kind:   KindTokenSay,
		Label:  "Token Say",
		Marker: "Token Say Action",
		Fields: []Field{
			strField("tokenId", "Token ID", ""),
			strField("message", "Message", ""),
		},
		describe: func(p Params) string {
			return fmt.Sprintf("Token %s says: %s", p.String("tokenId", ""), p.String("message", ""))
		},
		emit: func(p Params) string {
			return iife("Token Say Action", true, "token say", nil,
				"const token = canvas.tokens.get("+jsQuote(p.String("tokenId", ""))+");",
				"if (token) {",
				"    let chatData = {",
				"        user: game.user._id,",
				"        speaker: ChatMessage.getSpeaker(token),",
				"        content: "+jsQuote(p.String("message", "")),
				"    };",
				"    if (game.chatCommands) {",
				"        game.chatCommands.process(chatData.content, chatData);",
				"    } else {",
				"        ChatMessage.create(chatData, { chatBubble: true });",
				"    }",
				"}",
			)
		},
		extract: func(b block) Params {
			return Params{
				"tokenId": b.str("", reTokenGet),
				"message": b.str("", reContent),
			}
		},
	}
}

// custom carries hand-written script verbatim. It has no marker and is
// never classified; the parser falls back to it.
func custom() Descriptor {
	return Descriptor{
		Kind:   KindCustom,
		Label:  "Custom",
		Fields: []Field{strField("script", "Script", "")},
		describe: func(Params) string {
			return CustomDescription
		},
		emit: func(p Params) string {
			return p.String("script", "")
		},
		extract: func(b block) Params {
			return Params{"script": string(b)}
		},
	}
}
