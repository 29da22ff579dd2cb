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
	"fmt"
	"strings"
)

// SearchQuery describes a search over the indexed action list.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Kinds optionally restricts results to the given action kinds.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text   string
	Kinds  []string
	Limit  int
	Offset int
}

// SearchResult represents a single matching action.
// Snippet is a highlighted excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	ActionID    string `json:"actionId"`
	Kind        string `json:"kind"`
	Position    int    `json:"position"`
	Description string `json:"description"`
	Snippet     string `json:"snippet,omitempty"`
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a plain scan in sequence order.
func Search(ctx context.Context, projectRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT a.action_id, a.kind, a.position, a.description, snippet(fts_actions, 0, '[', ']', '...', 10)\n")
		sb.WriteString("FROM fts_actions JOIN actions a ON fts_actions.rowid = a.doc_id\n")
		sb.WriteString("WHERE fts_actions MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT a.action_id, a.kind, a.position, a.description, ''\n")
		sb.WriteString("FROM actions a\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND a.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY a.position\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.ActionID, &r.Kind, &r.Position, &r.Description, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
