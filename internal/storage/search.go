package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

// Search runs an FTS5 query over the diagnosis text of stored consultations
// and returns the matching consultations, newest first.
func (h *HistoryStore) Search(ctx context.Context, query string, limit int) ([]models.Consultation, error) {
	match := ftsQuery(query)
	if match == "" {
		return []models.Consultation{}, nil
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT c.id FROM consultations c
		 WHERE c.id IN (
		     SELECT d.consultation_id FROM consultation_diagnoses d
		     JOIN diagnoses_fts ON diagnoses_fts.rowid = d.rowid
		     WHERE diagnoses_fts MATCH ?
		 )
		 ORDER BY c.created_at DESC, c.rowid DESC LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search diagnoses fts: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan match: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	// The pool holds a single connection; release it before loading.
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("search diagnoses fts: %w", err)
	}

	out := make([]models.Consultation, 0, len(ids))
	for _, id := range ids {
		c, err := h.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// ftsQuery quotes every term so user input is never parsed as FTS5 syntax.
// Terms are ANDed.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
