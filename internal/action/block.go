/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package action

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Capture fragments shared by the extractors.
const (
	numPat = `(-?\d+(?:\.\d+)?)`
	intPat = `(-?\d+)`
	strPat = `"((?:[^"\\\n]|\\.)*)"`
	// legacyStrPat matches the unescaped literals of older exported scripts.
	legacyStrPat = `"(.+?)"`
)

// block is one script block under extraction.
type block string

func (b block) find(re *regexp.Regexp) (string, bool) {
	m := re.FindStringSubmatch(string(b))
	if m == nil || len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// num returns the first number captured by any of res, in order.
func (b block) num(def float64, res ...*regexp.Regexp) float64 {
	for _, re := range res {
		if s, ok := b.find(re); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	}
	return def
}

// str returns the first string literal captured by any of res, unescaped.
func (b block) str(def string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if s, ok := b.find(re); ok {
			return jsUnquote(s)
		}
	}
	return def
}

// flag returns the first "true"/"false" captured by any of res.
func (b block) flag(def bool, res ...*regexp.Regexp) bool {
	for _, re := range res {
		if s, ok := b.find(re); ok {
			return s == "true"
		}
	}
	return def
}

func (b block) has(sub string) bool { return strings.Contains(string(b), sub) }

func (b block) matches(re *regexp.Regexp) bool { return re.MatchString(string(b)) }

// jsQuote renders s as a double-quoted JavaScript string literal.
func jsQuote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case '\u2028':
			sb.WriteString(`\u2028`)
		case '\u2029':
			sb.WriteString(`\u2029`)
		default:
			if r < 0x20 {
				sb.WriteString(`\x`)
				sb.WriteString(strconv.FormatInt(int64(r)+0x100, 16)[1:])
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// jsUnquote reverses the escapes a JavaScript string literal may contain.
// Unknown escapes yield the escaped character, as in JavaScript.
func jsUnquote(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '0':
			sb.WriteByte(0)
		case 'x':
			if i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					sb.WriteRune(rune(v))
					i += 2
					continue
				}
			}
			sb.WriteByte('x')
		case 'u':
			if i+4 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+5], 16, 16); err == nil {
					sb.WriteRune(rune(v))
					i += 4
					continue
				}
			}
			sb.WriteByte('u')
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			sb.WriteRune(r)
			i += size - 1
		}
	}
	return sb.String()
}

// iife wraps body lines in the marker comment and an async immediately-invoked
// function with the standard error guard. Body lines are indented; empty lines
// stay empty so that a blank line in the body is a true "\n\n".
func iife(marker string, awaited bool, errLabel string, header []string, body ...string) string {
	var sb strings.Builder
	sb.WriteString("// " + marker)
	sb.WriteByte('\n')
	for _, h := range header {
		sb.WriteString(h)
		sb.WriteByte('\n')
	}
	if awaited {
		sb.WriteString("await ")
	}
	sb.WriteString("(async function() {\n    try {\n")
	for _, chunk := range body {
		for _, line := range strings.Split(chunk, "\n") {
			if line != "" {
				sb.WriteString("        ")
				sb.WriteString(line)
			}
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("    } catch (error) {\n")
	sb.WriteString("        console.error(\"Error in " + errLabel + " action:\", error);\n")
	sb.WriteString("    }\n})();")
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func num(p Params, name string) string { return FormatNumber(p.Float(name, 0)) }

func integer(p Params, name string) string { return strconv.Itoa(p.Int(name, 0)) }
