/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"fmt"
	"strings"

	"cutscenemaker/internal/storage"
)

// Search runs a query over the actions of the latest published version of name
// using tsvector and filters. Results use storage.SearchResult so they line up
// with the local index.
func (l *Library) Search(ctx context.Context, name string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	seq := place(name)
	if strings.TrimSpace(q.Text) != "" {
		text := place(q.Text)
		b.WriteString("SELECT a.action_id, a.kind, a.position, a.description, ")
		b.WriteString("COALESCE(ts_headline('simple', a.raw_text, plainto_tsquery('simple', " + text + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM sequence_actions a JOIN sequences s ON s.id = a.sequence_id ")
		b.WriteString("WHERE s.name = " + seq + " AND a.search_vector @@ plainto_tsquery('simple', " + text + ") ")
	} else {
		b.WriteString("SELECT a.action_id, a.kind, a.position, a.description, '' ")
		b.WriteString("FROM sequence_actions a JOIN sequences s ON s.id = a.sequence_id ")
		b.WriteString("WHERE s.name = " + seq + " ")
	}
	if len(q.Kinds) > 0 {
		b.WriteString(" AND a.kind = ANY (" + place(q.Kinds) + ") ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY a.position ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := l.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.ActionID, &r.Kind, &r.Position, &r.Description, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
