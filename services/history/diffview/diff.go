// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffview renders unified diffs between two revision snapshots.
//
// Identical content yields a sentinel text rather than an empty string, so
// callers can tell "no differences" apart from "the diff engine returned
// nothing".
package diffview

import (
	"fmt"
	"log/slog"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// NoChangesText is returned as Result.Text when both snapshots are
// byte-identical.
const NoChangesText = "no changes"

// DefaultContextLines is the unified-diff context applied when the caller
// passes a negative count.
const DefaultContextLines = 3

// Snapshot is one side of a diff.
type Snapshot struct {
	// Name labels the side in the diff header, e.g. "revision 3 (1a2b...)".
	Name string

	// Content is the full document text.
	Content string
}

// Result is a rendered diff plus line statistics.
type Result struct {
	// Text is the unified diff, or NoChangesText when Identical.
	Text string

	// Identical is true when both snapshots are byte-identical.
	Identical bool

	// LinesAdded counts added plus changed lines.
	LinesAdded int

	// LinesDeleted counts deleted plus changed lines.
	LinesDeleted int
}

// Differ renders unified diffs.
//
// Thread Safety: Stateless beyond the logger; safe for concurrent use.
type Differ struct {
	logger *slog.Logger
}

// New creates a Differ.
//
// Inputs:
//
//	logger - Logger for stat-parse fallbacks. If nil, slog.Default().
func New(logger *slog.Logger) *Differ {
	if logger == nil {
		logger = slog.Default()
	}
	return &Differ{logger: logger.With(slog.String("component", "diffview"))}
}

// Unified renders the line-level differences between two snapshots.
//
// Description:
//
//	Produces a unified diff with the requested number of unchanged context
//	lines around each change. Statistics come from re-parsing the rendered
//	diff; if that parse ever fails the text is still returned and the
//	stats are zero, with a warning logged.
//
// Inputs:
//
//	from - The older side.
//	to - The newer side.
//	contextLines - Unchanged context lines per hunk. Negative means
//	               DefaultContextLines.
//
// Outputs:
//
//	Result - The rendered diff. Never empty: identical input yields the
//	         NoChangesText sentinel with Identical set.
//	error - Non-nil if diff generation itself fails.
func (d *Differ) Unified(from, to Snapshot, contextLines int) (Result, error) {
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}

	if from.Content == to.Content {
		return Result{Text: NoChangesText, Identical: true}, nil
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(from.Content),
		B:        difflib.SplitLines(to.Content),
		FromFile: from.Name,
		ToFile:   to.Name,
		Context:  contextLines,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return Result{}, fmt.Errorf("render unified diff: %w", err)
	}

	result := Result{Text: text}
	result.LinesAdded, result.LinesDeleted = d.stats(text)
	return result, nil
}

// stats re-parses the rendered diff and counts line changes.
func (d *Differ) stats(text string) (added, deleted int) {
	fd, err := diff.ParseFileDiff([]byte(text))
	if err != nil {
		d.logger.Warn("could not parse rendered diff for stats",
			slog.String("error", err.Error()))
		return 0, 0
	}

	stat := fd.Stat()
	return int(stat.Added + stat.Changed), int(stat.Deleted + stat.Changed)
}
