// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fingerprint derives the content-addressed cache key for a text
// segment. Byte-identical text is the only notion of duplicate the pipeline
// recognizes: text differing in whitespace or casing keys separately.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key returns the SHA-256 hex digest of text. It is deterministic across
// processes and platforms, so a cache built on one run remains valid input
// on any later run.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
