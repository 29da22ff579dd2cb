package session

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/domain"
	"cutscenemaker/internal/storage"
)

func newProject(t *testing.T) *storage.ProjectHandle {
	t.Helper()
	seq := domain.NewSequence("Session")
	seq.Actions = []action.Action{{ID: "action-7", Kind: action.KindWait, Params: action.Params{"duration": 300}}}
	ph, err := storage.InitProject(t.TempDir(), seq)
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	return ph
}

func TestOpenLoadsStoreAndContinuesIDs(t *testing.T) {
	ph := newProject(t)
	s, err := Open(ph.Root, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if s.Store().Len() != 1 || s.Dirty() {
		t.Fatalf("fresh session should hold one clean action")
	}
	id, err := s.Store().Append(action.KindFadeOut, nil, "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if id != "action-8" {
		t.Fatalf("ids should continue after loaded ones, got %s", id)
	}
	if !s.Dirty() {
		t.Fatalf("append should mark the session dirty")
	}
	if got := s.Sequence().Actions; len(got) != 2 {
		t.Fatalf("sequence should reflect the store, got %d actions", len(got))
	}
}

func TestSaveWritesDocumentAndIndex(t *testing.T) {
	ph := newProject(t)
	s, err := New(ph, Options{KeepBackups: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if _, err := s.Store().Append(action.KindTokenSay, action.Params{"tokenId": "npc", "message": "tide is turning"}, ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.Save(ctx); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if s.Dirty() {
		t.Fatalf("save should clear the dirty flag")
	}
	back, err := storage.Open(ph.Root)
	if err != nil || len(back.Sequence.Actions) != 2 {
		t.Fatalf("reopen: %v", err)
	}
	res, err := storage.Search(ctx, ph.Root, storage.SearchQuery{Text: "tide"})
	if err != nil || len(res) != 1 {
		t.Fatalf("index not refreshed: %v %+v", err, res)
	}
	entries, err := os.ReadDir(filepath.Join(ph.Root, storage.BackupsDirName))
	if err != nil {
		t.Fatalf("read backups: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected backups pruned to 1, got %d", len(entries))
	}
}

func TestAutosaveFlushesOnCancel(t *testing.T) {
	ph := newProject(t)
	s, err := New(ph, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Autosave(ctx, time.Hour) }()

	if _, err := s.Store().Append(action.KindShowUI, nil, ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("autosave: %v", err)
	}
	back, err := storage.Open(ph.Root)
	if err != nil || len(back.Sequence.Actions) != 2 {
		t.Fatalf("expected the pending edit to be flushed: %v", err)
	}
}

func TestAutosaveTicks(t *testing.T) {
	ph := newProject(t)
	s, err := New(ph, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Autosave(ctx, 10*time.Millisecond) }()

	if _, err := s.Store().Append(action.KindHideUI, nil, ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for s.Dirty() {
		if time.Now().After(deadline) {
			t.Fatalf("autosave did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSaveLogsStructuredAttrs(t *testing.T) {
	ph := newProject(t)
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := New(ph, Options{Logger: l})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	var rec struct {
		Msg     string `json:"msg"`
		Project string `json:"project"`
		Actions int    `json:"actions"`
	}
	found := false
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("log line is not JSON: %s", line)
		}
		if rec.Msg == "saved" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("no save record in log:\n%s", buf.String())
	}
	if rec.Project != ph.Root || rec.Actions != 1 {
		t.Fatalf("unexpected save record %+v", rec)
	}
}
