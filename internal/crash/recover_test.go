/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cutscenemaker/internal/action"
	"cutscenemaker/internal/storage"
	"cutscenemaker/internal/store"
)

// TestRecover_PanickingGoroutine ensures Recover handles a panic, writes a report,
// snapshots the live actions, and does not terminate the test process due to injected exitFn.
func TestRecover_PanickingGoroutine(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	ph := &storage.ProjectHandle{Root: root, DocumentPath: filepath.Join(root, storage.DocumentFileName)}
	ph.Sequence.Name = "Live"
	st := store.New(store.Options{})
	if _, err := st.Append(action.KindWait, action.Params{"duration": 500}, ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	func() {
		defer Recover(ph, st)
		panic("boom")
	}()

	bdir := filepath.Join(root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	var report, snapshot string
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			report = filepath.Join(bdir, f.Name())
		case strings.Contains(f.Name(), ".crash-"):
			snapshot = filepath.Join(bdir, f.Name())
		}
	}
	if report == "" {
		t.Fatalf("expected crash report file under backups dir")
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", string(b))
	}
	if snapshot == "" {
		t.Fatalf("expected crash snapshot under backups dir")
	}
	seq, err := storage.ReadDocument(snapshot)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(seq.Actions) != 1 || seq.Actions[0].Kind != action.KindWait {
		t.Fatalf("snapshot should hold the live actions, got %+v", seq.Actions)
	}
	if len(ph.Sequence.Actions) != 0 {
		t.Fatalf("Recover must not mutate the handle")
	}
	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}

type tracker struct {
	ph *storage.ProjectHandle
	st *store.Store
}

func (t *tracker) Current() (*storage.ProjectHandle, Source) {
	if t.ph == nil {
		return nil, nil
	}
	return t.ph, t.st
}

func TestRecoverTracked_ResolvesProjectAtPanicTime(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	tr := &tracker{}
	func() {
		defer RecoverTracked(tr)
		// the project is opened after the defer
		tr.ph = &storage.ProjectHandle{Root: root, DocumentPath: filepath.Join(root, storage.DocumentFileName)}
		tr.st = store.New(store.Options{})
		if _, err := tr.st.Append(action.KindFadeIn, nil, ""); err != nil {
			t.Fatalf("append: %v", err)
		}
		panic("late")
	}()

	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
	files, _ := os.ReadDir(filepath.Join(root, storage.BackupsDirName))
	found := false
	for _, f := range files {
		if strings.Contains(f.Name(), ".crash-") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected crash snapshot for the tracked project")
	}
}
