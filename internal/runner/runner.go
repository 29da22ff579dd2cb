/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package runner prepares generated scripts for a test run in the host and
// checks them with an embedded JavaScript engine before they leave the tool.
package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/script"
)

// WindowID is the host window minimised while a test run plays.
const WindowID = "cutscene-maker-window"

const wrapHead = `(async function() {
	try {
		const windowApp = ui.windows[Object.keys(ui.windows).find(key => ui.windows[key].id === '` + WindowID + `')];
		if (windowApp) {
			windowApp.minimize();
		}

`

const wrapTail = `

		if (windowApp) {
			setTimeout(() => {
				windowApp.maximize();
			}, 1000);
		}
	} catch (error) {
		console.error("Error executing cutscene script: ", error);
		ui.notifications.error("Error executing cutscene script. Check the console for details.");
		throw error;
	}
})();`

// Wrap embeds a serialized sequence in the test-run wrapper: the editor
// window is minimised for the run and restored a second after it ends.
func Wrap(text string) string {
	return wrapHead + text + wrapTail
}

// wrapLines is the number of lines Wrap puts before the script.
var wrapLines = strings.Count(wrapHead, "\n")

// Issue is one syntax error. Block is the zero-based block index, or -1
// when the error was found in the wrapped script as a whole.
// Line and Column are relative to the block (or to the unwrapped script).
type Issue struct {
	Block   int
	Line    int
	Column  int
	Message string
}

func (i Issue) String() string {
	where := "script"
	if i.Block >= 0 {
		where = fmt.Sprintf("block %d", i.Block+1)
	}
	if i.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", where, i.Line, i.Column, i.Message)
	}
	return where + ": " + i.Message
}

// Report is the result of Check.
type Report struct {
	Blocks int
	Issues []Issue
}

// OK reports whether no issue was found.
func (r Report) OK() bool { return len(r.Issues) == 0 }

// Err folds the issues into a single error, nil when OK.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Issues))
	for _, i := range r.Issues {
		errs = append(errs, errors.New(i.String()))
	}
	return errors.Join(errs...)
}

// Check compiles the wrapped script. When that fails each block is compiled
// on its own so that the error can be pinned to the action that produced it.
// Blocks are compiled inside an async function since generated blocks use
// top-level await. Screen flash timer fragments stay with their head block.
func Check(text string) Report {
	blocks := groups(text)
	rep := Report{Blocks: len(blocks)}
	whole := Wrap(text)
	_, err := goja.Compile("cutscene.js", whole, false)
	if err == nil {
		return rep
	}
	rep.Issues = append(rep.Issues, locate(-1, "cutscene.js", whole, wrapLines, err))
	for i, blk := range blocks {
		name := fmt.Sprintf("block-%d.js", i+1)
		src := "(async function() {\n" + blk + "\n})();"
		if _, err := goja.Compile(name, src, false); err != nil {
			rep.Issues = append(rep.Issues, locate(i, name, src, 1, err))
		}
	}
	return rep
}

// groups splits text into blocks, re-attaching fragments to the block before them.
func groups(text string) []string {
	var out []string
	for _, b := range script.Split(text) {
		if _, known := action.Classify(b); !known && len(out) > 0 && script.IsFragment(b) {
			out[len(out)-1] += script.Separator + b
			continue
		}
		out = append(out, b)
	}
	return out
}

// locate turns a compile error into an Issue, re-parsing src for the position
// since compile errors do not carry one.
func locate(block int, name, src string, skip int, err error) Issue {
	is := Issue{Block: block, Message: err.Error()}
	_, perr := parser.ParseFile(nil, name, src, 0)
	var list parser.ErrorList
	if errors.As(perr, &list) && len(list) > 0 {
		first := list[0]
		is.Message = first.Message
		is.Line, is.Column = first.Position.Line-skip, first.Position.Column
		if is.Line < 1 {
			is.Line = 1
		}
	}
	return is
}
