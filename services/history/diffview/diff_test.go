// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diffview

import (
	"strings"
	"testing"
)

func TestUnifiedIdentical(t *testing.T) {
	d := New(nil)

	res, err := d.Unified(
		Snapshot{Name: "a", Content: "same\ncontent\n"},
		Snapshot{Name: "b", Content: "same\ncontent\n"},
		3,
	)
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}

	if !res.Identical {
		t.Error("Identical = false, want true")
	}
	if res.Text != NoChangesText {
		t.Errorf("Text = %q, want sentinel %q", res.Text, NoChangesText)
	}
	if res.LinesAdded != 0 || res.LinesDeleted != 0 {
		t.Errorf("stats = +%d/-%d, want zero", res.LinesAdded, res.LinesDeleted)
	}
}

func TestUnifiedChanges(t *testing.T) {
	d := New(nil)

	from := Snapshot{Name: "revision 1 (aaaa)", Content: "line1\nline2\nline3\n"}
	to := Snapshot{Name: "revision 2 (bbbb)", Content: "line1\nline2 changed\nline3\nline4\n"}

	res, err := d.Unified(from, to, 3)
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}

	if res.Identical {
		t.Error("Identical = true for differing content")
	}
	for _, want := range []string{
		"--- revision 1 (aaaa)",
		"+++ revision 2 (bbbb)",
		"-line2",
		"+line2 changed",
		"+line4",
	} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("diff missing %q:\n%s", want, res.Text)
		}
	}

	// line2 changed (one delete + one add) and line4 added
	if res.LinesAdded != 2 {
		t.Errorf("LinesAdded = %d, want 2", res.LinesAdded)
	}
	if res.LinesDeleted != 1 {
		t.Errorf("LinesDeleted = %d, want 1", res.LinesDeleted)
	}
}

func TestUnifiedShowsEveryChangedLine(t *testing.T) {
	d := New(nil)

	from := Snapshot{Name: "from", Content: "alpha\nbeta\ngamma\n"}
	to := Snapshot{Name: "to", Content: "one\ntwo\nthree\n"}

	res, err := d.Unified(from, to, 0)
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}

	for _, line := range []string{"-alpha", "-beta", "-gamma", "+one", "+two", "+three"} {
		if !strings.Contains(res.Text, line) {
			t.Errorf("diff missing %q:\n%s", line, res.Text)
		}
	}
}

func TestUnifiedContextLines(t *testing.T) {
	d := New(nil)

	// A change buried in unchanged lines: more context means more of them
	// appear in the hunk.
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("unchanged\n")
	}
	from := Snapshot{Name: "from", Content: sb.String() + "old\n" + sb.String()}
	to := Snapshot{Name: "to", Content: sb.String() + "new\n" + sb.String()}

	narrow, err := d.Unified(from, to, 1)
	if err != nil {
		t.Fatalf("Unified narrow: %v", err)
	}
	wide, err := d.Unified(from, to, 5)
	if err != nil {
		t.Fatalf("Unified wide: %v", err)
	}

	if n, w := strings.Count(narrow.Text, "unchanged"), strings.Count(wide.Text, "unchanged"); n >= w {
		t.Errorf("context lines: narrow %d >= wide %d", n, w)
	}
}

func TestUnifiedDefaultContext(t *testing.T) {
	d := New(nil)

	res, err := d.Unified(
		Snapshot{Name: "a", Content: "x\n"},
		Snapshot{Name: "b", Content: "y\n"},
		-1, // negative means the default
	)
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}
	if res.Identical || res.Text == "" {
		t.Error("expected a rendered diff under default context")
	}
}

func TestUnifiedNoTrailingNewline(t *testing.T) {
	d := New(nil)

	res, err := d.Unified(
		Snapshot{Name: "a", Content: "no newline at end"},
		Snapshot{Name: "b", Content: "still no newline"},
		3,
	)
	if err != nil {
		t.Fatalf("Unified: %v", err)
	}
	if res.Identical {
		t.Error("Identical = true for differing content")
	}
	if !strings.Contains(res.Text, "-no newline at end") {
		t.Errorf("diff missing removed line:\n%s", res.Text)
	}
}
