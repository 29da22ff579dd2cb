/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the shared cutscene library: named sequences published
// to Postgres with their full version history.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cutscenemaker/internal/domain"
	applog "cutscenemaker/internal/log"
	"cutscenemaker/internal/storage"
	"cutscenemaker/internal/version"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a named sequence or version does not exist.
var ErrNotFound = errors.New("sequence not found in library")

// Entry describes one published sequence.
type Entry struct {
	ID        int64     `json:"id"`
	StableID  uuid.UUID `json:"stable_id"`
	Name      string    `json:"name"`
	Scene     string    `json:"scene"`
	Actions   int       `json:"action_count"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Library is a connection to the shared Postgres library.
// Every Library registers a session row; published versions reference it.
type Library struct {
	db      *sql.DB
	session uuid.UUID
	log     *slog.Logger
}

// Open connects to dsn, applies embedded migrations and registers a session.
func Open(ctx context.Context, dsn string) (*Library, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("library DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	lib, err := newLibrary(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return lib, nil
}

func newLibrary(ctx context.Context, db *sql.DB) (*Library, error) {
	l := applog.WithComponent("library")
	if err := applyMigrations(ctx, db, l); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	sid := uuid.New()
	if _, err := db.ExecContext(ctx, `INSERT INTO sessions(id, client) VALUES($1, $2)`, sid, "cutscene "+version.String()); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}
	return &Library{db: db, session: sid, log: l.With(slog.String("session", sid.String()))}, nil
}

// Session returns the id of this connection's session row.
func (l *Library) Session() uuid.UUID { return l.session }

// Close releases the connection pool.
func (l *Library) Close() error { return l.db.Close() }

// Publish stores seq under its name as a new version, together with the generated script.
// The first publish of a name assigns a stable id; later publishes bump the version.
func (l *Library) Publish(ctx context.Context, seq domain.Sequence, script, publisher string) (Entry, error) {
	name := strings.TrimSpace(seq.Name)
	if name == "" {
		return Entry{}, errors.New("sequence name is required to publish")
	}
	doc, err := json.Marshal(seq)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal document: %w", err)
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin publish: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var e Entry
	// dialect=PostgreSQL
	err = tx.QueryRowContext(ctx, `INSERT INTO sequences(stable_id, name, scene, action_count, version)
		VALUES($1, $2, $3, $4, 1)
		ON CONFLICT (name) DO UPDATE SET
			scene = EXCLUDED.scene,
			action_count = EXCLUDED.action_count,
			version = sequences.version + 1,
			updated_at = now()
		RETURNING id, stable_id, name, scene, action_count, version, updated_at`,
		uuid.New(), name, seq.Metadata.Scene, len(seq.Actions),
	).Scan(&e.ID, &e.StableID, &e.Name, &e.Scene, &e.Actions, &e.Version, &e.UpdatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("upsert sequence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO sequence_versions(sequence_id, version, document, script, published_by, session_id) VALUES($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Version, string(doc), script, publisher, l.session); err != nil {
		return Entry{}, fmt.Errorf("insert version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sequence_actions WHERE sequence_id = $1`, e.ID); err != nil {
		return Entry{}, fmt.Errorf("clear actions: %w", err)
	}
	for i, a := range seq.Actions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sequence_actions(sequence_id, position, action_id, kind, description, raw_text) VALUES($1, $2, $3, $4, $5, $6)`,
			e.ID, i, a.ID, string(a.Kind), a.Description, storage.SearchText(a.Description, a.Params)); err != nil {
			return Entry{}, fmt.Errorf("insert action %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit publish: %w", err)
	}
	l.log.Info("sequence published", slog.String("name", e.Name), slog.Int64("version", e.Version), slog.Int("actions", e.Actions))
	return e, nil
}

// List returns all published sequences, most recently updated first.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, stable_id, name, scene, action_count, version, updated_at FROM sequences ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.StableID, &e.Name, &e.Scene, &e.Actions, &e.Version, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Fetch returns the document published under name. ver 0 selects the latest version.
func (l *Library) Fetch(ctx context.Context, name string, ver int64) (domain.Sequence, Entry, error) {
	var (
		e   Entry
		doc []byte
	)
	q := `SELECT s.id, s.stable_id, s.name, s.scene, s.action_count, v.version, v.created_at, v.document
		FROM sequences s JOIN sequence_versions v ON v.sequence_id = s.id
		WHERE s.name = $1 AND ($2 = 0 OR v.version = $2)
		ORDER BY v.version DESC LIMIT 1`
	err := l.db.QueryRowContext(ctx, q, name, ver).Scan(&e.ID, &e.StableID, &e.Name, &e.Scene, &e.Actions, &e.Version, &e.UpdatedAt, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sequence{}, Entry{}, fmt.Errorf("%s v%d: %w", name, ver, ErrNotFound)
	}
	if err != nil {
		return domain.Sequence{}, Entry{}, fmt.Errorf("fetch %s: %w", name, err)
	}
	var seq domain.Sequence
	if err := json.Unmarshal(doc, &seq); err != nil {
		return domain.Sequence{}, Entry{}, fmt.Errorf("decode %s v%d: %w", name, e.Version, err)
	}
	if err := seq.Normalize(); err != nil {
		return domain.Sequence{}, Entry{}, fmt.Errorf("normalize %s v%d: %w", name, e.Version, err)
	}
	return seq, e, nil
}

// Remove deletes a sequence and its history.
func (l *Library) Remove(ctx context.Context, name string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM sequences WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return nil
}

// applyMigrations applies embedded SQL migrations in filename order.
func applyMigrations(ctx context.Context, db *sql.DB, l *slog.Logger) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, fname := range files {
		ver, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[ver] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		sqlText := string(b)
		if strings.TrimSpace(sqlText) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, sqlText); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, ver, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
