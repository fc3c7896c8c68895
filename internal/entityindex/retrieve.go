// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package entityindex

import (
	"context"
	"fmt"
	"strings"
)

// QueryOptions holds parameters for entity index queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over entity text.
	Query string

	// Type filters by entity type label (PERSON, ORG, ...).
	Type string

	// Accession filters by source document accession.
	Accession string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Type == "" && q.Accession == ""
}

// Occurrence is one entity mention tied to its source document.
type Occurrence struct {
	Entity    string `json:"entity" yaml:"entity"`
	Type      string `json:"type" yaml:"type"`
	Accession string `json:"accession" yaml:"accession"`
	Path      string `json:"path" yaml:"path"`
}

// Retrieve queries the index with optional full-text search over entity
// text and structured filters. Full-text queries are ranked by relevance;
// structured-only queries sort by entity, accession, path.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]Occurrence, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT o.entity, o.type, d.accession, d.path
			FROM occurrences_fts
			JOIN occurrences o ON o.rowid = occurrences_fts.rowid
			JOIN documents d ON o.document_id = d.rowid
			WHERE occurrences_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT o.entity, o.type, d.accession, d.path
			FROM occurrences o
			JOIN documents d ON o.document_id = d.rowid
			WHERE 1=1`)
	}

	if opts.Type != "" {
		qb.WriteString(` AND o.type = ?`)
		args = append(args, opts.Type)
	}

	if opts.Accession != "" {
		qb.WriteString(` AND d.accession = ?`)
		args = append(args, opts.Accession)
	}

	if useFTS {
		qb.WriteString(` ORDER BY occurrences_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY o.entity, d.accession, d.path`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying entity index: %w", err)
	}
	defer rows.Close()

	var results []Occurrence
	for rows.Next() {
		var occ Occurrence
		if err := rows.Scan(&occ.Entity, &occ.Type, &occ.Accession, &occ.Path); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, occ)
	}

	return results, rows.Err()
}

// TypeCount is one entity type with its occurrence count.
type TypeCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
}

// Stats returns occurrence counts per entity type, most frequent first.
func (s *Store) Stats(ctx context.Context) ([]TypeCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, count(*) FROM occurrences GROUP BY type ORDER BY count(*) DESC, type`)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	var counts []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		counts = append(counts, tc)
	}

	return counts, rows.Err()
}
