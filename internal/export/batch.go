/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cutscenemaker/internal/log"
	"cutscenemaker/internal/storage"
)

// BatchOptions controls which artifacts Batch writes.
//
// Files land in <project>/exports/ named after the sequence (see Format.FileName).
// Name overrides the base name. Textual formats are also recorded in the
// export history of the project index unless SkipHistory is set.
type BatchOptions struct {
	Formats     []Format // empty means script only
	Name        string
	SkipHistory bool
	KeepHistory int // when > 0, prune the export history to this many entries
	Now         func() time.Time
}

// Artifact describes one written export.
type Artifact struct {
	Format Format
	Path   string
	Size   int
}

// Batch renders and writes every requested format for the project sequence.
func Batch(ctx context.Context, ph *storage.ProjectHandle, opt BatchOptions) ([]Artifact, error) {
	if ph == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = []Format{FormatScript}
	}
	name := opt.Name
	if name == "" {
		name = ph.Sequence.Name
	}
	now := time.Now
	if opt.Now != nil {
		now = opt.Now
	}
	l := log.WithOperation(log.WithComponent("export"), "batch")

	out := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		if _, err := ParseFormat(string(f)); err != nil {
			return out, err
		}
		data, err := Render(f, ph.Sequence)
		if err != nil {
			return out, fmt.Errorf("%s: %w", f, err)
		}
		path, err := storage.WriteExport(ph, f.FileName(name), data)
		if err != nil {
			return out, fmt.Errorf("%s: %w", f, err)
		}
		out = append(out, Artifact{Format: f, Path: path, Size: len(data)})
		l.Info("exported", slog.String("format", string(f)), slog.String("path", path), slog.Int("bytes", len(data)))

		if opt.SkipHistory || !f.Textual() {
			continue
		}
		rec := storage.ExportRecord{TS: now(), Format: string(f), Actions: len(ph.Sequence.Actions), Text: string(data)}
		if _, err := storage.SaveExport(ctx, ph, rec); err != nil {
			// the artifact is on disk; a broken index only loses history
			l.Warn("record export failed", slog.String("format", string(f)), slog.Any("err", err))
		}
	}
	if opt.KeepHistory > 0 && !opt.SkipHistory {
		if n, err := storage.PruneExports(ctx, ph, opt.KeepHistory); err != nil {
			l.Warn("prune exports failed", slog.Any("err", err))
		} else if n > 0 {
			l.Debug("pruned export history", slog.Int64("removed", n))
		}
	}
	return out, nil
}
