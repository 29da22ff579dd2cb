/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"

	"cutscenemaker/internal/log"
)

// hostStub stands in for the host API during a dry run. Every global the
// generated scripts touch is a recording proxy; timers run on a virtual
// clock advanced by __tick. canvas.animatePan resolves after its duration.
const hostStub = `
var __now = 0, __seq = 0, __timers = [], __calls = [], __errors = [], __done = -1, __rejected = "";
var __stubs = new WeakSet();
Date.now = function() { return __now; };
function __str(v) {
	try {
		if (v instanceof Error) return String(v);
		if (typeof v === "object" && v !== null) return JSON.stringify(v);
		return String(v);
	} catch (e) {
		return "?";
	}
}
function __record(path, args) {
	var out = [];
	for (var i = 0; i < args.length; i++) out.push(__str(args[i]));
	__calls.push({ at: __now, path: path, args: out });
	return out;
}
function __call(path, args) {
	__record(path, args);
	if (/\.animatePan$/.test(path) && args[0] && args[0].duration > 0) {
		var d = args[0].duration;
		return new Promise(function(resolve) { setTimeout(resolve, d); });
	}
	return __stub(path + "()");
}
function __stub(path) {
	var label = function() { return "<" + path + ">"; };
	var p = new Proxy(function() {}, {
		get: function(t, k) {
			if (typeof k === "symbol") return k === Symbol.toPrimitive ? label : undefined;
			if (k === "then" || k === "toJSON") return undefined;
			if (k === "toString" || k === "valueOf") return label;
			return __stub(path + "." + k);
		},
		set: function() { return true; },
		apply: function(t, self, args) { return __call(path, args); },
		construct: function(t, args) { __record("new " + path, args); return __stub(path); }
	});
	__stubs.add(p);
	return p;
}
function __addTimer(fn, delay, every) {
	var d = Math.max(0, Number(delay) || 0);
	var id = ++__seq;
	__timers.push({ id: id, at: __now + d, fn: fn, every: every ? Math.max(1, d) : 0 });
	return id;
}
var setTimeout = function(fn, delay) { return __addTimer(fn, delay, false); };
var setInterval = function(fn, delay) { return __addTimer(fn, delay, true); };
var clearTimeout = function(id) { __timers = __timers.filter(function(t) { return t.id !== id; }); };
var clearInterval = clearTimeout;
function __tick() {
	if (__timers.length === 0) return -1;
	var next = 0;
	for (var i = 1; i < __timers.length; i++) {
		if (__timers[i].at < __timers[next].at) next = i;
	}
	var t = __timers[next];
	__now = t.at;
	if (t.every > 0) {
		t.at += t.every;
	} else {
		__timers.splice(next, 1);
	}
	if (typeof t.fn === "function") t.fn();
	return __now;
}
function __settle(p) {
	p.then(function() { __done = __now; }, function(e) { __done = __now; __rejected = __str(e); });
}
var console = {
	log: function() { __record("console.log", arguments); },
	info: function() { __record("console.info", arguments); },
	warn: function() { __record("console.warn", arguments); },
	error: function() { __errors.push(__record("console.error", arguments).join(" ")); }
};
var ui = {
	windows: { 1: { id: %q, minimize: __stub("window.minimize"), maximize: __stub("window.maximize") } },
	notifications: __stub("ui.notifications")
};
var canvas = __stub("canvas"), game = __stub("game"), document = __stub("document");
var ChatMessage = __stub("ChatMessage"), AudioHelper = __stub("AudioHelper"), ImagePopout = __stub("ImagePopout");
var Hooks = __stub("Hooks"), foundry = __stub("foundry"), CONFIG = __stub("CONFIG");
`

// Call is one host API call observed during a dry run.
type Call struct {
	At   time.Duration
	Path string
	Args []string
}

// Trace is the outcome of a dry run.
// Settled is the virtual time at which the script finished; Elapsed also
// covers timers still firing after that (the window restore).
type Trace struct {
	Calls    []Call
	Errors   []string // console.error output
	Rejected string   // rejection reason when the run failed
	Settled  time.Duration
	Elapsed  time.Duration
	Pending  int // timers left when the run was cut off
}

// Failed reports whether the run threw.
func (t Trace) Failed() bool { return t.Rejected != "" }

// Options bound a dry run.
type Options struct {
	Timeout    time.Duration // wall clock, default 5s
	MaxVirtual time.Duration // virtual clock, default 10m
	MaxTicks   int           // timer callbacks, default 100000
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.MaxVirtual <= 0 {
		o.MaxVirtual = 10 * time.Minute
	}
	if o.MaxTicks <= 0 {
		o.MaxTicks = 100000
	}
	return o
}

// ErrNotSettled is returned when the script was still waiting on a timer at a limit.
var ErrNotSettled = errors.New("dry run did not settle")

type rawTrace struct {
	Calls []struct {
		At   float64  `json:"at"`
		Path string   `json:"path"`
		Args []string `json:"args"`
	} `json:"calls"`
	Errors   []string `json:"errors"`
	Rejected string   `json:"rejected"`
	Done     float64  `json:"done"`
	Now      float64  `json:"now"`
	Pending  int      `json:"pending"`
}

// DryRun executes the test-run wrapped script against a recording stub of the
// host. Time is virtual: waits cost nothing but are reflected in Call.At.
func DryRun(ctx context.Context, text string, opt Options) (Trace, error) {
	opt = opt.withDefaults()
	l := log.WithOperation(log.WithComponent("runner"), "dry-run")
	ctx, cancel := context.WithTimeout(ctx, opt.Timeout)
	defer cancel()

	vm := goja.New()
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	if _, err := vm.RunString(fmt.Sprintf(hostStub, WindowID)); err != nil {
		return Trace{}, fmt.Errorf("host stub: %w", err)
	}
	main, err := vm.RunScript("cutscene.js", Wrap(text))
	if err != nil {
		return Trace{}, fmt.Errorf("run script: %w", err)
	}
	if err := vm.Set("__main", main); err != nil {
		return Trace{}, err
	}
	if _, err := vm.RunString("__settle(__main)"); err != nil {
		return Trace{}, fmt.Errorf("run script: %w", err)
	}

	var limitErr error
	for ticks := 0; ; ticks++ {
		if ticks >= opt.MaxTicks {
			limitErr = fmt.Errorf("%w: more than %d timer callbacks", ErrNotSettled, opt.MaxTicks)
			break
		}
		v, err := vm.RunString("__tick()")
		if err != nil {
			return Trace{}, fmt.Errorf("run timers: %w", err)
		}
		now := v.ToFloat()
		if now < 0 {
			break
		}
		if time.Duration(now)*time.Millisecond > opt.MaxVirtual {
			limitErr = fmt.Errorf("%w: virtual clock passed %s", ErrNotSettled, opt.MaxVirtual)
			break
		}
	}

	v, err := vm.RunString(`JSON.stringify({calls: __calls, errors: __errors, rejected: __rejected, done: __done, now: __now, pending: __timers.length})`)
	if err != nil {
		return Trace{}, fmt.Errorf("collect trace: %w", err)
	}
	var raw rawTrace
	if err := json.Unmarshal([]byte(v.String()), &raw); err != nil {
		return Trace{}, fmt.Errorf("decode trace: %w", err)
	}
	tr := Trace{
		Errors:   raw.Errors,
		Rejected: raw.Rejected,
		Settled:  msDuration(raw.Done),
		Elapsed:  msDuration(raw.Now),
		Pending:  raw.Pending,
	}
	for _, c := range raw.Calls {
		tr.Calls = append(tr.Calls, Call{At: msDuration(c.At), Path: c.Path, Args: c.Args})
	}
	if raw.Done < 0 && limitErr == nil {
		limitErr = fmt.Errorf("%w: script is waiting on the host", ErrNotSettled)
	}
	l.Debug("dry run finished", slog.Int("calls", len(tr.Calls)), slog.Duration("elapsed", tr.Elapsed), slog.Bool("failed", tr.Failed()))
	return tr, limitErr
}

func msDuration(ms float64) time.Duration {
	if ms < 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
