/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// language=SQL
// dialect=SQLite
const insertExportSQL = `INSERT INTO exports(ts, format, action_count, text) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestExportSQL = `SELECT id, ts, format, action_count, text FROM exports WHERE format = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listExportsSQL = `SELECT id, ts, format, action_count, text FROM exports ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldExportsSQL = `DELETE FROM exports WHERE id NOT IN (
	SELECT id FROM exports ORDER BY ts DESC, id DESC LIMIT ?
)`

// ExportRecord is one entry of the export history.
// Text is empty for binary formats (pdf); the artifact itself lives under exports/.
type ExportRecord struct {
	ID      int64
	TS      time.Time
	Format  string
	Actions int
	Text    string
}

// SaveExport records an export with its rendered text.
// The history lives in the derived index; it is for diffing and auditing, not canonical storage.
func SaveExport(ctx context.Context, ph *ProjectHandle, rec ExportRecord) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if rec.Format == "" {
		return 0, errors.New("export format is required")
	}
	if rec.TS.IsZero() {
		rec.TS = time.Now()
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, insertExportSQL, rec.TS.UTC().Format(time.RFC3339Nano), rec.Format, rec.Actions, rec.Text)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestExport returns the most recent export of the given format, or ok=false if none.
func LatestExport(ctx context.Context, ph *ProjectHandle, format string) (ExportRecord, bool, error) {
	if ph == nil {
		return ExportRecord{}, false, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return ExportRecord{}, false, err
	}
	defer func() { _ = db.Close() }()
	rec, err := scanExport(db.QueryRowContext(ctx, selectLatestExportSQL, format))
	if errors.Is(err, sql.ErrNoRows) {
		return ExportRecord{}, false, nil
	}
	if err != nil {
		return ExportRecord{}, false, err
	}
	return rec, true, nil
}

// ListExports returns up to limit most recent exports, newest first.
func ListExports(ctx context.Context, ph *ProjectHandle, limit int) ([]ExportRecord, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listExportsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneExports keeps at most keepLast exports and deletes older ones.
func PruneExports(ctx context.Context, ph *ProjectHandle, keepLast int) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldExportsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(r rowScanner) (ExportRecord, error) {
	var rec ExportRecord
	var ts string
	if err := r.Scan(&rec.ID, &ts, &rec.Format, &rec.Actions, &rec.Text); err != nil {
		return ExportRecord{}, err
	}
	// A malformed timestamp leaves TS zero.
	rec.TS, _ = time.Parse(time.RFC3339Nano, ts)
	return rec, nil
}
