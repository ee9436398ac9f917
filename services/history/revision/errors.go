// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package revision

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for revision operations.
//
// The engine never retries on its own and never swallows an error; every
// failure is surfaced to the caller wrapped around one of these sentinels
// so callers can branch with errors.Is.
var (
	// ErrNotFound is returned when a reference does not resolve to any
	// stored revision (bad ordinal, bad hash prefix, bad timestamp).
	ErrNotFound = errors.New("revision not found")

	// ErrAmbiguous is returned when a hash prefix matches more than one
	// revision. The concrete error is always an *AmbiguousError carrying
	// the full match list.
	ErrAmbiguous = errors.New("ambiguous revision reference")

	// ErrEmptyHistory is returned when an operation that needs at least one
	// revision (checkpoint, "latest") runs against a session with none.
	ErrEmptyHistory = errors.New("session has no revisions")

	// ErrInvalidReference is returned for input that fits no recognized
	// reference form, including hex prefixes shorter than the minimum.
	ErrInvalidReference = errors.New("invalid revision reference")

	// ErrStorage wraps I/O failures reading or writing content or metadata.
	ErrStorage = errors.New("revision storage failure")

	// ErrPartialRestore is returned when a restore updated the live document
	// but failed to record the new revision (or vice versa). The system may
	// be in an inconsistent state; the caller should retry the missing half,
	// not the whole operation.
	ErrPartialRestore = errors.New("partial restore")
)

// AmbiguousError reports a hash prefix matching more than one revision.
//
// It carries every match so the calling layer can ask the user to
// disambiguate, mirroring how version-control tools treat short hashes.
type AmbiguousError struct {
	// Prefix is the original input the caller supplied.
	Prefix string

	// Matches are the revisions whose hashes start with Prefix,
	// in ascending ordinal order.
	Matches []ID
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	ids := make([]string, len(e.Matches))
	for i, id := range e.Matches {
		ids[i] = id.String()
	}
	return fmt.Sprintf("ambiguous revision reference %q matches %d revisions: %s",
		e.Prefix, len(e.Matches), strings.Join(ids, ", "))
}

// Unwrap makes errors.Is(err, ErrAmbiguous) work.
func (e *AmbiguousError) Unwrap() error {
	return ErrAmbiguous
}

// NotFoundError reports a reference that resolved to nothing, preserving the
// original input for actionable messages.
type NotFoundError struct {
	// Reference is the original input the caller supplied.
	Reference string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no revision matches reference %q", e.Reference)
}

// Unwrap makes errors.Is(err, ErrNotFound) work.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
