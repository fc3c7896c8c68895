// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package entityindex builds a queryable SQLite index over the document
// records the annotation pipeline emits. Each occurrence row ties one
// entity mention to the document it appeared in; full-text search over
// entity text runs through an FTS5 virtual table kept in sync by
// triggers.
package entityindex

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/entity-engine/pkg/types"
)

const dbFile = "entities.db"

// recordsSuffix matches the pipeline's per-shard output files.
const recordsSuffix = ".records.jsonl"

// Store manages the entity index SQLite database.
type Store struct {
	db         *sql.DB
	indexDir   string
	recordsDir string
	maxResults int
}

// NewStore opens or creates the entity index database at
// cfg.IndexDir/entities.db, creating the schema if it does not exist.
func NewStore(cfg types.EntityIndexConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(cfg.IndexDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:         db,
		indexDir:   cfg.IndexDir,
		recordsDir: cfg.RecordsDir,
		maxResults: maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			accession TEXT NOT NULL,
			path TEXT NOT NULL,
			shard TEXT NOT NULL,
			UNIQUE(accession, path)
		)`,
		`CREATE TABLE IF NOT EXISTS occurrences (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			entity TEXT NOT NULL,
			type TEXT NOT NULL,
			document_id INTEGER NOT NULL REFERENCES documents(rowid),
			UNIQUE(entity, type, document_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_occurrences_document ON occurrences(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_occurrences_type ON occurrences(type)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			shard TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='occurrences_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE occurrences_fts USING fts5(entity, content=occurrences, content_rowid=rowid)`,
			`CREATE TRIGGER occurrences_ai AFTER INSERT ON occurrences BEGIN
				INSERT INTO occurrences_fts(rowid, entity) VALUES (new.rowid, new.entity);
			END`,
			`CREATE TRIGGER occurrences_ad AFTER DELETE ON occurrences BEGIN
				INSERT INTO occurrences_fts(occurrences_fts, rowid, entity) VALUES('delete', old.rowid, old.entity);
			END`,
			`CREATE TRIGGER occurrences_au AFTER UPDATE ON occurrences BEGIN
				INSERT INTO occurrences_fts(occurrences_fts, rowid, entity) VALUES('delete', old.rowid, old.entity);
				INSERT INTO occurrences_fts(rowid, entity) VALUES (new.rowid, new.entity);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// IngestSummary holds counts from an index ingestion run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of shards processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads per-shard records files from the records directory and
// populates the index. Shards are detected as new, changed, or unchanged
// by file modification time, so re-running after adding a records file
// touches only that file.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	entries, err := os.ReadDir(s.recordsDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading records directory %s: %w", s.recordsDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordsSuffix) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		shard := entry.Name()

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", shard, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE shard = ?`, shard,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", shard)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		records, err := readRecords(filepath.Join(s.recordsDir, shard))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", shard, err)
			summary.Failed++
			continue
		}

		if err := s.ingestShard(ctx, shard, records, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", shard, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d documents)\n", shard, len(records))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d documents)\n", shard, len(records))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

// readRecords parses one NDJSON records file. A malformed line fails the
// whole shard: records files are pipeline output, so a bad line means the
// file itself is damaged, unlike the skip-and-count policy for input shards.
func readRecords(path string) ([]types.DocumentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening records file: %w", err)
	}
	defer f.Close()

	var records []types.DocumentRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec types.DocumentRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parsing record: %v", err)
		}
		if rec.Accession == "" || rec.Path == "" {
			return nil, fmt.Errorf("record missing document key: %s", line)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}
	return records, nil
}

func (s *Store) ingestShard(ctx context.Context, shard string, records []types.DocumentRecord, modTime string, isUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Remove the shard's old rows if updating. The delete trigger keeps
	// the FTS table in sync.
	if isUpdate {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM occurrences WHERE document_id IN
				(SELECT rowid FROM documents WHERE shard = ?)`, shard); err != nil {
			return fmt.Errorf("deleting old occurrences: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE shard = ?`, shard); err != nil {
			return fmt.Errorf("deleting old documents: %w", err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (accession, path, shard) VALUES (?, ?, ?)
		 ON CONFLICT(accession, path) DO UPDATE SET shard=excluded.shard
		 RETURNING rowid`)
	if err != nil {
		return fmt.Errorf("preparing document insert: %w", err)
	}
	defer docStmt.Close()

	occStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO occurrences (entity, type, document_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing occurrence insert: %w", err)
	}
	defer occStmt.Close()

	for _, rec := range records {
		var docID int64
		if err := docStmt.QueryRowContext(ctx, rec.Accession, rec.Path, shard).Scan(&docID); err != nil {
			return fmt.Errorf("inserting document %s/%s: %w", rec.Accession, rec.Path, err)
		}

		for entityType, texts := range rec.Entities {
			for _, text := range texts {
				if _, err := occStmt.ExecContext(ctx, text, entityType, docID); err != nil {
					return fmt.Errorf("inserting occurrence %q: %w", text, err)
				}
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (shard, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(shard) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		shard, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}
