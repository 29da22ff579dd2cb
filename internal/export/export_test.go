package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/domain"
	"cutscenemaker/internal/runner"
	"cutscenemaker/internal/script"
	"cutscenemaker/internal/storage"
)

func sampleSequence() domain.Sequence {
	seq := domain.NewSequence("Harbor Intro")
	seq.Metadata.Scene = "harbor"
	seq.Actions = []action.Action{
		{ID: "action-1", Kind: action.KindCamera, Params: action.Params{"x": 100, "y": 50, "scale": 2, "duration": 500}},
		{ID: "action-2", Kind: action.KindWait, Params: action.Params{"duration": 750}},
		{ID: "action-3", Kind: action.KindTokenSay, Params: action.Params{"tokenId": "npc", "message": "The lighthouse is dark"}},
		{ID: "action-4", Kind: action.KindCustom, Params: action.Params{"script": "console.log(\"beacon\");"}},
	}
	_ = seq.Normalize()
	return seq
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"script", "JSON", " run ", "Pdf"} {
		if _, err := ParseFormat(in); err != nil {
			t.Fatalf("ParseFormat(%q): %v", in, err)
		}
	}
	if _, err := ParseFormat("cbz"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestFileName(t *testing.T) {
	cases := map[Format]string{
		FormatScript: "harbor-intro.js",
		FormatJSON:   "harbor-intro.json",
		FormatRun:    "harbor-intro.run.js",
		FormatPDF:    "harbor-intro.cues.pdf",
	}
	for f, want := range cases {
		if got := f.FileName("  Harbor Intro! "); got != want {
			t.Errorf("%s: expected %q, got %q", f, want, got)
		}
	}
	if got := FormatScript.FileName("???"); got != "cutscene.js" {
		t.Fatalf("expected fallback name, got %q", got)
	}
}

func TestRenderFormats(t *testing.T) {
	seq := sampleSequence()
	text := script.SerializeSequence(seq.Actions)

	b, err := Render(FormatScript, seq)
	if err != nil || string(b) != text {
		t.Fatalf("script render mismatch (err=%v)", err)
	}

	b, err = Render(FormatRun, seq)
	if err != nil || string(b) != runner.Wrap(text) {
		t.Fatalf("run render mismatch (err=%v)", err)
	}

	b, err = Render(FormatJSON, seq)
	if err != nil {
		t.Fatalf("json render: %v", err)
	}
	got, err := storage.DecodeDocument(b)
	if err != nil {
		t.Fatalf("json render does not decode: %v", err)
	}
	if got.Name != seq.Name || len(got.Actions) != len(seq.Actions) {
		t.Fatalf("decoded document mismatch: %+v", got)
	}

	b, err = Render(FormatPDF, seq)
	if err != nil {
		t.Fatalf("pdf render: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("pdf render does not start with a PDF header")
	}
}

func TestCuesEstimateTimeline(t *testing.T) {
	cues := Cues(sampleSequence().Actions)
	if len(cues) != 4 {
		t.Fatalf("expected 4 cues, got %d", len(cues))
	}
	wantStart := []time.Duration{0, time.Second, 1750 * time.Millisecond, 1750 * time.Millisecond}
	for i, c := range cues {
		if c.Start != wantStart[i] {
			t.Errorf("cue %d: expected start %s, got %s", i+1, wantStart[i], c.Start)
		}
	}
	if cues[0].Duration != time.Second {
		t.Fatalf("camera pans then waits its duration, got %s", cues[0].Duration)
	}
	if cues[3].Known {
		t.Fatalf("custom cue length cannot be known")
	}
	if got := Total(cues); got != 1750*time.Millisecond {
		t.Fatalf("expected total 1.75s, got %s", got)
	}

	flash := Cues([]action.Action{
		{ID: "a", Kind: action.KindScreenFlash, Params: action.Params{"duration": 400}},
		{ID: "b", Kind: action.KindWait, Params: action.Params{"duration": 100}},
	})
	if flash[0].Blocking || flash[1].Start != 0 {
		t.Fatalf("screen flash should not advance the clock: %+v", flash)
	}
}

func TestClock(t *testing.T) {
	if got := clock(83*time.Second + 250*time.Millisecond); got != "1:23.250" {
		t.Fatalf("unexpected clock %q", got)
	}
}

func TestCueSheetManyActionsPaginates(t *testing.T) {
	seq := domain.NewSequence("Long")
	for i := 0; i < 120; i++ {
		seq.Actions = append(seq.Actions, action.Action{
			ID: "w", Kind: action.KindWait, Params: action.Params{"duration": 100},
			Description: strings.Repeat("very long description ", 10),
		})
	}
	var buf bytes.Buffer
	if err := CueSheet(&buf, seq, CueSheetOptions{}); err != nil {
		t.Fatalf("cue sheet: %v", err)
	}
	m := regexp.MustCompile(`/Count (\d+)`).FindSubmatch(buf.Bytes())
	if m == nil {
		t.Fatalf("no page count in cue sheet")
	}
	if n, _ := strconv.Atoi(string(m[1])); n < 2 {
		t.Fatalf("expected a multi-page cue sheet, got %d page(s)", n)
	}
}

func TestBatchWritesArtifactsAndHistory(t *testing.T) {
	root := t.TempDir()
	ph, err := storage.InitProject(root, sampleSequence())
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	arts, err := Batch(context.Background(), ph, BatchOptions{Formats: Formats()})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(arts) != 4 {
		t.Fatalf("expected 4 artifacts, got %d", len(arts))
	}
	for _, a := range arts {
		if filepath.Dir(a.Path) != filepath.Join(root, storage.ExportsDirName) {
			t.Fatalf("artifact outside exports dir: %s", a.Path)
		}
		st, err := os.Stat(a.Path)
		if err != nil || st.Size() == 0 || int(st.Size()) != a.Size {
			t.Fatalf("bad artifact %s: %v", a.Path, err)
		}
	}
	recs, err := storage.ListExports(context.Background(), ph, 10)
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	// pdf is not kept in the history
	if len(recs) != 3 {
		t.Fatalf("expected 3 history records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Actions != 4 || r.Text == "" {
			t.Fatalf("unexpected record %+v", r)
		}
	}
}

func TestBatchPrunesHistory(t *testing.T) {
	root := t.TempDir()
	ph, err := storage.InitProject(root, sampleSequence())
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := Batch(context.Background(), ph, BatchOptions{KeepHistory: 2}); err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
	}
	recs, err := storage.ListExports(context.Background(), ph, 10)
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected history pruned to 2, got %d", len(recs))
	}
	if _, err := Batch(context.Background(), ph, BatchOptions{Formats: []Format{"cbz"}}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
