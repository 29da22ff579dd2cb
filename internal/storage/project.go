/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cutscenemaker/internal/domain"
)

const (
	DocumentFileName = "cutscene.json"
	BackupsDirName   = "backups"
	ExportsDirName   = "exports"

	backupStamp = "20060102-150405.000"
)

var standardSubDirs = []string{
	ExportsDirName,
	BackupsDirName,
}

// ProjectHandle keeps track of the document loaded/saved from disk.
// Root is the project directory containing cutscene.json and subfolders.
type ProjectHandle struct {
	Root         string
	DocumentPath string
	Sequence     domain.Sequence
	// Recovered is set when Open fell back to the latest backup.
	Recovered bool
}

// InitProject creates a new project directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the given document transactionally.
func InitProject(root string, seq domain.Sequence) (*ProjectHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if _, err := os.Stat(filepath.Join(root, DocumentFileName)); err == nil {
		return nil, fmt.Errorf("project already exists at %s", root)
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	if err := seq.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	ph := &ProjectHandle{
		Root:         root,
		DocumentPath: filepath.Join(root, DocumentFileName),
		Sequence:     seq,
	}
	if err := Save(ph); err != nil {
		return nil, err
	}
	return ph, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create project root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing project from the given root directory.
// If the current document cannot be read, parsed or validated, the latest backup is tried.
func Open(root string) (*ProjectHandle, error) {
	dpath := filepath.Join(root, DocumentFileName)
	seq, err := readDocument(dpath)
	if err != nil {
		bseq, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
		}
		return &ProjectHandle{Root: root, DocumentPath: dpath, Sequence: *bseq, Recovered: true}, nil
	}
	return &ProjectHandle{Root: root, DocumentPath: dpath, Sequence: *seq}, nil
}

// ReadDocument decodes and validates a standalone document file, such as a
// JSON export.
func ReadDocument(path string) (*domain.Sequence, error) { return readDocument(path) }

func readDocument(path string) (*domain.Sequence, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeDocument(b)
}

// DecodeDocument validates data against the document schema and decodes it
// with params normalized to their kind schemas.
func DecodeDocument(data []byte) (*domain.Sequence, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}
	var s domain.Sequence
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := s.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &s, nil
}

// EncodeDocument renders the document in its human-readable on-disk form.
func EncodeDocument(s domain.Sequence) ([]byte, error) {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = domain.SchemaVersion
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes ProjectHandle.Sequence to disk with transactional semantics
// and a timestamped backup of the previous document (if present).
func Save(ph *ProjectHandle) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if ph.Root == "" || ph.DocumentPath == "" {
		return errors.New("invalid ProjectHandle: missing paths")
	}
	data, err := EncodeDocument(ph.Sequence)
	if err != nil {
		return err
	}

	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(ph.DocumentPath); statErr == nil {
		bname := fmt.Sprintf("%s.%s.bak", DocumentFileName, time.Now().Format(backupStamp))
		if cerr := copyFile(ph.DocumentPath, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}
	return writeAtomic(ph.DocumentPath, data)
}

// SaveAs writes the document to a new root folder, scaffolding structure if needed, and updates the handle.
func SaveAs(ph *ProjectHandle, newRoot string) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	ph.Root = newRoot
	ph.DocumentPath = filepath.Join(newRoot, DocumentFileName)
	return Save(ph)
}

// writeAtomic writes to a temp file in the same directory, then renames over target.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp file: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), rerr)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// backupFiles lists document backups oldest first; the timestamp in the name sorts lexicographically.
func backupFiles(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, DocumentFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// openFromLatestBackup walks backups newest first and returns the first valid document.
func openFromLatestBackup(root string) (*domain.Sequence, error) {
	candidates, err := backupFiles(root)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		s, err := readDocument(candidates[i])
		if err == nil {
			return s, nil
		}
		lastErr = fmt.Errorf("read backup %s: %w", filepath.Base(candidates[i]), err)
	}
	return nil, lastErr
}

// PruneBackups keeps the newest keep document backups and deletes the rest.
func PruneBackups(ph *ProjectHandle, keep int) (int, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if keep <= 0 {
		return 0, nil
	}
	files, err := backupFiles(ph.Root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(files) > keep {
		if err := os.Remove(files[0]); err != nil {
			return removed, err
		}
		files = files[1:]
		removed++
	}
	return removed, nil
}

// AutosaveCrashSnapshot writes the in-memory document next to the backups without
// touching cutscene.json, so a crash never replaces the last good save.
func AutosaveCrashSnapshot(ph *ProjectHandle) (string, error) {
	if ph == nil || ph.Root == "" {
		return "", errors.New("invalid ProjectHandle")
	}
	data, err := EncodeDocument(ph.Sequence)
	if err != nil {
		return "", err
	}
	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", DocumentFileName, time.Now().Format(backupStamp)))
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteExport writes an export artifact into the project's exports folder and returns its path.
func WriteExport(ph *ProjectHandle, name string, data []byte) (string, error) {
	if ph == nil || ph.Root == "" {
		return "", errors.New("invalid ProjectHandle")
	}
	if strings.ContainsAny(name, `/\`) || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("invalid export name %q", name)
	}
	dir := filepath.Join(ph.Root, ExportsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure exports dir: %w", err)
	}
	path := filepath.Join(dir, name)
	return path, writeAtomic(path, data)
}
