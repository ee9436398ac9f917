// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package revision defines the data model for the manifest revision engine.
//
// A revision is one immutable snapshot of the tracked document. Its identity
// is the (ordinal, timestamp, content hash) triple; the only part that may
// change after a save is the checkpoint attached to its metadata sidecar.
//
// # Thread Safety
//
// All types in this package are plain values. They are safe to share once
// constructed; callers must not mutate a Metadata they handed to the store.
package revision

import (
	"fmt"
	"strings"
	"time"
)

// HashLength is the number of hex characters in a revision's content hash.
//
// Truncation to 16 characters is a readability trade-off, not a security
// boundary: store lookups always use the full triple, and short-hash
// resolution explicitly tolerates ambiguity.
const HashLength = 16

// ID uniquely identifies a revision within a session namespace.
//
// All three components are assigned at save time and never change.
type ID struct {
	// Ordinal is the session-local, 1-indexed save sequence number.
	Ordinal uint64 `json:"ordinal"`

	// TimestampNanos is the wall-clock capture at save time, in nanoseconds.
	// Collisions across revisions are possible and must be tolerated.
	TimestampNanos uint64 `json:"timestamp_ns"`

	// ContentHash is the first HashLength hex characters of the SHA-256
	// of the content bytes.
	ContentHash string `json:"content_hash"`
}

// String renders the triple for logs and error messages.
func (id ID) String() string {
	return fmt.Sprintf("%d:%d:%s", id.Ordinal, id.TimestampNanos, id.ContentHash)
}

// IsZero reports whether the ID is the zero value.
func (id ID) IsZero() bool {
	return id.Ordinal == 0 && id.TimestampNanos == 0 && id.ContentHash == ""
}

// Validate checks the shape of the triple.
//
// Outputs:
//
//	error - Non-nil if the ID is empty, the ordinal is zero, or the hash
//	        is malformed.
func (id ID) Validate() error {
	if id.IsZero() {
		return fmt.Errorf("%w: empty revision id", ErrInvalidReference)
	}
	if id.Ordinal == 0 {
		return fmt.Errorf("%w: ordinal must be >= 1", ErrInvalidReference)
	}
	if len(id.ContentHash) != HashLength {
		return fmt.Errorf("%w: content hash must be %d hex characters, got %d",
			ErrInvalidReference, HashLength, len(id.ContentHash))
	}
	for _, c := range id.ContentHash {
		if !isHexRune(c) {
			return fmt.Errorf("%w: content hash contains non-hex character %q",
				ErrInvalidReference, c)
		}
	}
	return nil
}

func isHexRune(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Revision is one immutable snapshot plus its metadata sidecar.
type Revision struct {
	// Metadata is the sidecar record. Its Checkpoint field is the only
	// mutable part of a revision.
	Metadata Metadata `json:"metadata"`

	// Content is the exact byte-for-byte snapshot at save time.
	Content string `json:"content"`
}

// Metadata is the sidecar record stored alongside a revision's content.
type Metadata struct {
	// RevisionID is the identity triple. Immutable.
	RevisionID ID `json:"revision_id"`

	// Checkpoint is the outcome record attached to this revision.
	// At most one checkpoint per revision; a later checkpoint call on the
	// same revision overwrites the earlier one.
	Checkpoint Checkpoint `json:"checkpoint"`

	// FullContentHash is the complete SHA-256 hex digest of the content.
	// RevisionID.ContentHash carries only the truncated prefix; disambiguation
	// beyond the prefix length consults this field.
	FullContentHash string `json:"full_content_hash"`

	// FileSizeBytes is the content length in bytes.
	FileSizeBytes uint64 `json:"file_size_bytes"`

	// TimestampISO is the save time in RFC 3339 form, for human consumption.
	// TimestampNanos on the ID is the authoritative value.
	TimestampISO string `json:"timestamp_iso"`
}

// NewMetadata builds the sidecar for a freshly saved revision.
func NewMetadata(id ID, sizeBytes uint64, savedAt time.Time) Metadata {
	return Metadata{
		RevisionID:    id,
		Checkpoint:    NoCheckpoint(),
		FileSizeBytes: sizeBytes,
		TimestampISO:  savedAt.UTC().Format(time.RFC3339Nano),
	}
}

// CheckpointKind discriminates the checkpoint union.
type CheckpointKind string

const (
	// CheckpointNone marks a revision with no recorded outcome.
	CheckpointNone CheckpointKind = "none"

	// CheckpointValidation records a manifest validation outcome.
	CheckpointValidation CheckpointKind = "validation"

	// CheckpointReadiness records a stream read-test outcome.
	CheckpointReadiness CheckpointKind = "readiness"

	// CheckpointRestore marks a revision created by restoring an older one.
	CheckpointRestore CheckpointKind = "restore"
)

// Checkpoint is a tagged outcome record attached to a revision.
//
// Exactly the payload matching Kind is set; the others are nil. The engine
// treats payloads as opaque structured data beyond this shape.
type Checkpoint struct {
	Kind CheckpointKind `json:"kind"`

	Validation *ValidationOutcome `json:"validation,omitempty"`
	Readiness  *ReadinessOutcome  `json:"readiness,omitempty"`
	Restore    *RestoreOutcome    `json:"restore,omitempty"`
}

// ValidationOutcome is the result of validating the document content.
type ValidationOutcome struct {
	ErrorCount   int      `json:"error_count"`
	WarningCount int      `json:"warning_count"`
	Errors       []string `json:"errors,omitempty"`
}

// ReadinessOutcome is the result of a stream read test.
type ReadinessOutcome struct {
	StreamsTested     int   `json:"streams_tested"`
	StreamsSuccessful int   `json:"streams_successful"`
	TotalRecords      int64 `json:"total_records"`
}

// RestoreOutcome records which revision a restore copied content from.
type RestoreOutcome struct {
	RestoredFrom ID `json:"restored_from"`
}

// NoCheckpoint returns the empty checkpoint attached at save time.
func NoCheckpoint() Checkpoint {
	return Checkpoint{Kind: CheckpointNone}
}

// NewValidationCheckpoint builds a validation checkpoint.
func NewValidationCheckpoint(errorCount, warningCount int, errs []string) Checkpoint {
	return Checkpoint{
		Kind: CheckpointValidation,
		Validation: &ValidationOutcome{
			ErrorCount:   errorCount,
			WarningCount: warningCount,
			Errors:       errs,
		},
	}
}

// NewReadinessCheckpoint builds a readiness checkpoint.
func NewReadinessCheckpoint(tested, successful int, totalRecords int64) Checkpoint {
	return Checkpoint{
		Kind: CheckpointReadiness,
		Readiness: &ReadinessOutcome{
			StreamsTested:     tested,
			StreamsSuccessful: successful,
			TotalRecords:      totalRecords,
		},
	}
}

// NewRestoreCheckpoint builds a restore checkpoint pointing at the source.
func NewRestoreCheckpoint(restoredFrom ID) Checkpoint {
	return Checkpoint{
		Kind:    CheckpointRestore,
		Restore: &RestoreOutcome{RestoredFrom: restoredFrom},
	}
}

// Validate checks that exactly the payload matching Kind is present.
func (c Checkpoint) Validate() error {
	var want int
	switch c.Kind {
	case CheckpointNone:
		want = 0
	case CheckpointValidation, CheckpointReadiness, CheckpointRestore:
		want = 1
	default:
		return fmt.Errorf("unknown checkpoint kind %q", c.Kind)
	}

	got := 0
	if c.Validation != nil {
		got++
		if c.Kind != CheckpointValidation {
			return fmt.Errorf("checkpoint kind %q carries a validation payload", c.Kind)
		}
	}
	if c.Readiness != nil {
		got++
		if c.Kind != CheckpointReadiness {
			return fmt.Errorf("checkpoint kind %q carries a readiness payload", c.Kind)
		}
	}
	if c.Restore != nil {
		got++
		if c.Kind != CheckpointRestore {
			return fmt.Errorf("checkpoint kind %q carries a restore payload", c.Kind)
		}
	}
	if got != want {
		return fmt.Errorf("checkpoint kind %q requires %d payload(s), got %d", c.Kind, want, got)
	}
	return nil
}

// Summary renders a one-line human-readable description for log and UX layers.
func (c Checkpoint) Summary() string {
	switch c.Kind {
	case CheckpointValidation:
		v := c.Validation
		if v.ErrorCount == 0 {
			return fmt.Sprintf("validation passed (%d warnings)", v.WarningCount)
		}
		parts := fmt.Sprintf("validation failed: %d errors, %d warnings", v.ErrorCount, v.WarningCount)
		if len(v.Errors) > 0 {
			parts += " [" + strings.Join(v.Errors, "; ") + "]"
		}
		return parts
	case CheckpointReadiness:
		r := c.Readiness
		return fmt.Sprintf("read test: %d/%d streams ok, %d records",
			r.StreamsSuccessful, r.StreamsTested, r.TotalRecords)
	case CheckpointRestore:
		return fmt.Sprintf("restored from revision %d (%s)",
			c.Restore.RestoredFrom.Ordinal, c.Restore.RestoredFrom.ContentHash)
	default:
		return "no checkpoint"
	}
}
