// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cachestore persists annotation results keyed by segment
// fingerprint. The store is a permanent memoization artifact: it grows
// monotonically and never evicts. At most one pipeline writes to a given
// cache file at a time; readers may observe it growing between a load and
// a later merge, which is why MergeAndPersist always re-reads the disk
// state instead of trusting an earlier snapshot.
package cachestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/pdiddy/entity-engine/pkg/types"
)

// ErrCacheCorrupt reports a cache artifact that exists but cannot be
// decoded. Callers treat the store as absent (cold start) rather than
// aborting: the cost is recomputation, never wrong results.
var ErrCacheCorrupt = errors.New("cache artifact corrupt")

const currentVersion = 1

// artifact is the on-disk form: a zstd stream wrapping one JSON object.
type artifact struct {
	Version int                                 `json:"version"`
	Entries map[string]types.AnnotationResult `json:"entries"`
}

// Store reads and writes one cache artifact.
type Store struct {
	path  string
	level zstd.EncoderLevel
}

// New creates a store for the artifact at path. compressionLevel maps to
// zstd levels; zero selects the codec default.
func New(path string, compressionLevel int) *Store {
	level := zstd.SpeedDefault
	if compressionLevel > 0 {
		level = zstd.EncoderLevelFromZstd(compressionLevel)
	}
	return &Store{path: path, level: level}
}

// Path returns the artifact location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the full artifact into memory. A missing file is not an error
// and yields an empty map. An unreadable or undecodable artifact returns
// an error wrapping ErrCacheCorrupt.
func (s *Store) Load() (map[string]types.AnnotationResult, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.AnnotationResult{}, nil
		}
		return nil, fmt.Errorf("opening cache %s: %w", s.path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheCorrupt, s.path, err)
	}
	defer dec.Close()

	var a artifact
	if err := json.NewDecoder(dec).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheCorrupt, s.path, err)
	}
	if a.Version != currentVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCacheCorrupt, s.path, a.Version)
	}
	if a.Entries == nil {
		a.Entries = map[string]types.AnnotationResult{}
	}
	return a.Entries, nil
}

// MergeAndPersist re-reads the current on-disk state, unions newEntries
// into it (new entries win on key collision), and writes the result back
// atomically: the artifact is written to a temp file in the same directory
// and renamed over the old one, so a crash leaves either the old artifact
// or the fully updated one, never a partial write.
//
// A corrupt existing artifact is replaced rather than propagated; its
// entries are unrecoverable either way. It returns the entry count after
// the merge.
func (s *Store) MergeAndPersist(newEntries map[string]types.AnnotationResult) (int, error) {
	current, err := s.Load()
	if err != nil {
		if !errors.Is(err, ErrCacheCorrupt) {
			return 0, err
		}
		current = map[string]types.AnnotationResult{}
	}

	for key, result := range newEntries {
		current[key] = result
	}

	if err := s.write(current); err != nil {
		return 0, err
	}
	return len(current), nil
}

func (s *Store) write(entries map[string]types.AnnotationResult) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()

	// Any failure below removes the temp file; the old artifact stays intact.
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(s.level))
	if err != nil {
		return fail(fmt.Errorf("creating zstd encoder: %w", err))
	}

	a := artifact{Version: currentVersion, Entries: entries}
	if err := json.NewEncoder(enc).Encode(a); err != nil {
		return fail(fmt.Errorf("encoding cache: %w", err))
	}
	if err := enc.Close(); err != nil {
		return fail(fmt.Errorf("flushing zstd stream: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp cache file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("closing temp cache file: %w", err))
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing cache %s: %w", s.path, err)
	}
	return nil
}
