// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package contenthash computes content addresses for revision snapshots.
//
// The address is SHA-256 over the UTF-8 content bytes, truncated to 16 hex
// characters for display and short-reference lookup. Determinism is a hard
// invariant: the same content must hash identically on every call, in every
// process, or stored triples stop matching across restarts.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/AleutianAI/revtrack/services/history/revision"
)

// Hash returns the truncated content address for the given text.
//
// Description:
//
//	Computes SHA-256 of the UTF-8 bytes and returns the first
//	revision.HashLength hex characters, lowercase.
//
// Inputs:
//
//	content - The document text. Empty content is valid.
//
// Outputs:
//
//	string - The 16-character hex address.
//
// Thread Safety: Stateless; safe for concurrent use.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:revision.HashLength]
}

// FullHash returns the complete 64-character SHA-256 hex digest.
//
// Used where exact matching matters more than readability. The truncated
// form is a prefix of this value, so the two never disagree.
func FullHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
