/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/domain"
	"cutscenemaker/internal/version"
)

// Cue is one row of the cue sheet.
// Start is the estimated offset from the beginning of the cutscene.
// Known is false when the duration depends on runtime state (token paths, audio length).
type Cue struct {
	Index       int
	ID          string
	Kind        action.Kind
	Description string
	Start       time.Duration
	Duration    time.Duration
	Blocking    bool
	Known       bool
}

// Cues estimates the timeline of a sequence from the kinds' timing params.
// Only blocking cues advance the clock.
func Cues(actions []action.Action) []Cue {
	out := make([]Cue, 0, len(actions))
	var clock time.Duration
	for i, a := range actions {
		d, blocking, known := estimate(a)
		out = append(out, Cue{
			Index: i + 1, ID: a.ID, Kind: a.Kind, Description: a.Description,
			Start: clock, Duration: d, Blocking: blocking, Known: known,
		})
		if blocking {
			clock += d
		}
	}
	return out
}

// Total is the estimated running time of the cues.
func Total(cues []Cue) time.Duration {
	var t time.Duration
	for _, c := range cues {
		if c.Blocking {
			t += c.Duration
		}
	}
	return t
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func estimate(a action.Action) (d time.Duration, blocking, known bool) {
	p := a.Params
	switch a.Kind {
	case action.KindCamera:
		// pan, then the same delay again
		return 2 * ms(p.Int("duration", 1000)), true, true
	case action.KindWait, action.KindHideUI, action.KindShowUI, action.KindScreenShake:
		return ms(p.Int("duration", 0)), true, true
	case action.KindFadeOut, action.KindFadeIn:
		return ms(p.Int("fadeDuration", 2000)), true, true
	case action.KindScreenFlash:
		return ms(p.Int("duration", 1000) + 50), false, true
	case action.KindTileMovement:
		if p.Bool("animatePan", false) {
			return ms(2000), true, true
		}
		return ms(1000), true, true
	case action.KindTokenMovement:
		if p.Bool("teleport", false) {
			return 0, true, true
		}
		return 0, p.Bool("waitForCompletion", true), false
	case action.KindShowHideToken:
		return 0, !p.Bool("async", false), true
	case action.KindPlayAudio:
		return 0, true, false
	case action.KindCustom, action.KindRunMacro:
		return 0, true, false
	}
	return 0, true, true
}

// CueSheetOptions controls PDF layout. Units are points (pt).
type CueSheetOptions struct {
	PageWidth  float64 // default A4 portrait
	PageHeight float64
	Margin     float64
	FontSize   float64
}

func (o CueSheetOptions) withDefaults() CueSheetOptions {
	if o.PageWidth <= 0 || o.PageHeight <= 0 {
		o.PageWidth, o.PageHeight = 595, 842
	}
	if o.Margin <= 0 {
		o.Margin = 36
	}
	if o.FontSize <= 0 {
		o.FontSize = 9
	}
	return o
}

// CueSheet writes a printable table of the sequence timeline to w.
func CueSheet(w io.Writer, seq domain.Sequence, opt CueSheetOptions) error {
	opt = opt.withDefaults()
	cues := Cues(seq.Actions)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: opt.PageWidth, Ht: opt.PageHeight},
	})
	pdf.SetTitle(fmt.Sprintf("%s - Cue Sheet", seq.Name), true)
	pdf.SetAuthor("Cutscene Maker "+version.String(), true)
	pdf.SetMargins(opt.Margin, opt.Margin, opt.Margin)
	pdf.SetAutoPageBreak(true, opt.Margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	lineH := opt.FontSize * 1.6
	usable := opt.PageWidth - 2*opt.Margin
	cols := []struct {
		title string
		width float64
	}{
		{"#", 0.06}, {"Start", 0.11}, {"Length", 0.11}, {"Kind", 0.16}, {"Description", 0.56},
	}
	header := func() {
		pdf.SetFont("Helvetica", "B", opt.FontSize)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range cols {
			pdf.CellFormat(usable*c.width, lineH, c.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", opt.FontSize)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", opt.FontSize*1.8)
	pdf.CellFormat(usable, opt.FontSize*2.4, tr(seq.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", opt.FontSize)
	summary := fmt.Sprintf("%d actions, estimated running time %s", len(cues), clock(Total(cues)))
	if seq.Metadata.Scene != "" {
		summary = "Scene: " + seq.Metadata.Scene + " - " + summary
	}
	pdf.CellFormat(usable, lineH, tr(summary), "", 1, "L", false, 0, "")
	pdf.Ln(lineH / 2)
	header()

	for _, c := range cues {
		length := clock(c.Duration)
		if !c.Known {
			length = "?"
		}
		if !c.Blocking {
			length += " (bg)"
		}
		row := []string{fmt.Sprint(c.Index), clock(c.Start), length, string(c.Kind), tr(c.Description)}
		for i, col := range cols {
			pdf.CellFormat(usable*col.width, lineH, fit(pdf, row[i], usable*col.width-4), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write cue sheet: %w", err)
	}
	return nil
}

// fit truncates s to width using the current font metrics.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

// clock formats d as m:ss.mmm.
func clock(d time.Duration) string {
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	msec := int((d % time.Second) / time.Millisecond)
	return fmt.Sprintf("%d:%02d.%03d", m, s, msec)
}
