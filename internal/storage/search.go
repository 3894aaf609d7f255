package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// ErrEmptyQuery is returned when a search query has no searchable terms
var ErrEmptyQuery = errors.New("empty search query")

// searchText runs a bm25-ranked FTS5 query over the chunks of one root
func searchText(ctx context.Context, q querier, rootID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `
		SELECT c.id, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON c.id = chunks_fts.rowid
		INNER JOIN files f ON f.id = c.file_id
		WHERE chunks_fts MATCH ?
		AND f.root_id = ?
	`
	args := []any{sanitized, rootID}

	if filters != nil && filters.FilePattern != "" {
		sqlQuery += " AND f.file_path GLOB ?"
		args = append(args, filters.FilePattern)
	}

	// bm25 is negative, lower is better
	sqlQuery += " ORDER BY score, c.id LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0)
	for rows.Next() {
		var chunkID int64
		var bm25 float64
		if err := rows.Scan(&chunkID, &bm25); err != nil {
			return nil, err
		}

		score := normalizeBM25(bm25)
		if filters != nil && filters.MinRelevance > 0 && score < filters.MinRelevance {
			continue
		}
		results = append(results, TextResult{ChunkID: chunkID, Score: score})
	}
	return results, rows.Err()
}

// normalizeBM25 maps a bm25 score onto 0..1 keeping its order
func normalizeBM25(score float64) float64 {
	s := math.Abs(score)
	return s / (1.0 + s)
}

// sanitizeFTSQuery turns free text into an FTS5 query of quoted terms joined
// by implicit AND. Quoting disables FTS5 operators and column filters.
func sanitizeFTSQuery(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if len(fields) == 0 {
		return ""
	}

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
