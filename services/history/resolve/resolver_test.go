// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/AleutianAI/revtrack/services/history/revision"
)

// fakeLister serves fixed sidecars, keyed by namespace.
type fakeLister struct {
	metas map[string][]revision.Metadata
}

func (f *fakeLister) List(_ context.Context, namespace string) ([]revision.Metadata, error) {
	return f.metas[namespace], nil
}

func md(ordinal, ts uint64, hash string) revision.Metadata {
	return revision.Metadata{
		RevisionID: revision.ID{Ordinal: ordinal, TimestampNanos: ts, ContentHash: hash},
	}
}

func newTestResolver(t *testing.T, metas ...revision.Metadata) *Resolver {
	t.Helper()
	r, err := New(&fakeLister{metas: map[string][]revision.Metadata{"ns": metas}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestResolveSymbolic(t *testing.T) {
	r := newTestResolver(t,
		md(1, 100, "aa11223344556677"),
		md(2, 200, "bb11223344556677"),
	)
	ctx := context.Background()

	for _, token := range []string{"latest", "LATEST", "head", "Head", "@", "  latest  "} {
		t.Run(token, func(t *testing.T) {
			id, err := r.Resolve(ctx, "ns", token)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", token, err)
			}
			if id.Ordinal != 2 {
				t.Errorf("Ordinal = %d, want 2", id.Ordinal)
			}
		})
	}

	t.Run("empty history", func(t *testing.T) {
		empty := newTestResolver(t)
		_, err := empty.Resolve(ctx, "ns", "latest")
		if !errors.Is(err, revision.ErrEmptyHistory) {
			t.Errorf("error = %v, want ErrEmptyHistory", err)
		}
	})
}

func TestResolveOrdinal(t *testing.T) {
	r := newTestResolver(t,
		md(1, 100, "aa11223344556677"),
		md(2, 200, "bb11223344556677"),
		md(3, 300, "cc11223344556677"),
	)
	ctx := context.Background()

	id, err := r.Resolve(ctx, "ns", "2")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Ordinal != 2 {
		t.Errorf("Ordinal = %d, want 2", id.Ordinal)
	}

	t.Run("missing ordinal falls through to timestamp then not found", func(t *testing.T) {
		_, err := r.Resolve(ctx, "ns", "9")
		if !errors.Is(err, revision.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
		if !strings.Contains(err.Error(), "9") {
			t.Errorf("message %q should name the input", err.Error())
		}
	})
}

func TestResolveTimestamp(t *testing.T) {
	r := newTestResolver(t,
		md(1, 1700000000000000100, "aa11223344556677"),
		md(2, 1700000000000000200, "bb11223344556677"),
		// Same timestamp as ordinal 2: the tie-break case.
		md(3, 1700000000000000200, "cc11223344556677"),
	)
	ctx := context.Background()

	t.Run("unique timestamp resolves", func(t *testing.T) {
		id, err := r.Resolve(ctx, "ns", "1700000000000000100")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if id.Ordinal != 1 {
			t.Errorf("Ordinal = %d, want 1", id.Ordinal)
		}
	})

	t.Run("colliding timestamp picks highest ordinal", func(t *testing.T) {
		id, err := r.Resolve(ctx, "ns", "1700000000000000200")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if id.Ordinal != 3 {
			t.Errorf("Ordinal = %d, want 3 (most-recent-wins)", id.Ordinal)
		}
	})

	t.Run("unknown timestamp not found", func(t *testing.T) {
		_, err := r.Resolve(ctx, "ns", "1700000000000000999")
		if !errors.Is(err, revision.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestDigitPrecedenceOrdinalBeforeTimestamp(t *testing.T) {
	// "100" is both an existing ordinal and an existing timestamp; the
	// fixed precedence says ordinal wins, every time.
	r := newTestResolver(t,
		md(7, 100, "aa11223344556677"),
		md(100, 900, "bb11223344556677"),
	)

	id, err := r.Resolve(context.Background(), "ns", "100")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Ordinal != 100 {
		t.Errorf("Ordinal = %d, want 100 (ordinal interpretation must win)", id.Ordinal)
	}
}

func TestResolveHashPrefix(t *testing.T) {
	r := newTestResolver(t,
		md(1, 100, "abcd111111111111"),
		md(2, 200, "abcd222222222222"),
		md(3, 300, "ef99887766554433"),
	)
	ctx := context.Background()

	t.Run("unique prefix resolves", func(t *testing.T) {
		id, err := r.Resolve(ctx, "ns", "ef99")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if id.Ordinal != 3 {
			t.Errorf("Ordinal = %d, want 3", id.Ordinal)
		}
	})

	t.Run("prefix matching is case-insensitive", func(t *testing.T) {
		id, err := r.Resolve(ctx, "ns", "EF99")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if id.Ordinal != 3 {
			t.Errorf("Ordinal = %d, want 3", id.Ordinal)
		}
	})

	t.Run("shared prefix is ambiguous with full match list", func(t *testing.T) {
		_, err := r.Resolve(ctx, "ns", "abcd")
		if !errors.Is(err, revision.ErrAmbiguous) {
			t.Fatalf("error = %v, want ErrAmbiguous", err)
		}

		var ambiguous *revision.AmbiguousError
		if !errors.As(err, &ambiguous) {
			t.Fatalf("error %T, want *AmbiguousError", err)
		}
		if ambiguous.Prefix != "abcd" {
			t.Errorf("Prefix = %q, want original input", ambiguous.Prefix)
		}
		if len(ambiguous.Matches) != 2 {
			t.Fatalf("Matches = %d, want 2", len(ambiguous.Matches))
		}
		if ambiguous.Matches[0].Ordinal != 1 || ambiguous.Matches[1].Ordinal != 2 {
			t.Errorf("Matches = %v, want ordinals 1 and 2", ambiguous.Matches)
		}
	})

	t.Run("longer unique prefix disambiguates", func(t *testing.T) {
		id, err := r.Resolve(ctx, "ns", "abcd2")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if id.Ordinal != 2 {
			t.Errorf("Ordinal = %d, want 2", id.Ordinal)
		}
	})

	t.Run("unknown prefix not found", func(t *testing.T) {
		_, err := r.Resolve(ctx, "ns", "dddd")
		if !errors.Is(err, revision.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("short prefix rejected up front", func(t *testing.T) {
		_, err := r.Resolve(ctx, "ns", "abc")
		if !errors.Is(err, revision.ErrInvalidReference) {
			t.Errorf("error = %v, want ErrInvalidReference", err)
		}
	})
}

func TestResolveInvalid(t *testing.T) {
	r := newTestResolver(t, md(1, 100, "aa11223344556677"))
	ctx := context.Background()

	for _, ref := range []string{"", "   ", "not-a-ref", "zz99", "12g4", "v3"} {
		t.Run("ref "+ref, func(t *testing.T) {
			_, err := r.Resolve(ctx, "ns", ref)
			if !errors.Is(err, revision.ErrInvalidReference) {
				t.Errorf("Resolve(%q) error = %v, want ErrInvalidReference", ref, err)
			}
		})
	}

	t.Run("oversized numeric reference", func(t *testing.T) {
		_, err := r.Resolve(ctx, "ns", strings.Repeat("9", 30))
		if !errors.Is(err, revision.ErrInvalidReference) {
			t.Errorf("error = %v, want ErrInvalidReference", err)
		}
	})
}

func TestValidateID(t *testing.T) {
	good := revision.ID{Ordinal: 1, TimestampNanos: 5, ContentHash: "0123456789abcdef"}
	if err := ValidateID(good); err != nil {
		t.Errorf("ValidateID: %v", err)
	}

	bad := revision.ID{Ordinal: 0, TimestampNanos: 5, ContentHash: "0123456789abcdef"}
	if err := ValidateID(bad); !errors.Is(err, revision.ErrInvalidReference) {
		t.Errorf("error = %v, want ErrInvalidReference", err)
	}
}

func TestResolverRoundTrip(t *testing.T) {
	// For every revision: exact ordinal, full hash, and (for the newest)
	// "latest" must all agree.
	metas := []revision.Metadata{
		md(1, 100, "aa11223344556677"),
		md(2, 200, "bb11223344556677"),
		md(3, 300, "cc11223344556677"),
	}
	r := newTestResolver(t, metas...)
	ctx := context.Background()

	for _, m := range metas {
		byOrdinal, err := r.Resolve(ctx, "ns", strconv.FormatUint(m.RevisionID.Ordinal, 10))
		if err != nil {
			t.Fatalf("by ordinal: %v", err)
		}
		byHash, err := r.Resolve(ctx, "ns", m.RevisionID.ContentHash)
		if err != nil {
			t.Fatalf("by hash: %v", err)
		}
		if byOrdinal != m.RevisionID || byHash != m.RevisionID {
			t.Errorf("round trip mismatch for ordinal %d", m.RevisionID.Ordinal)
		}
	}

	latest, err := r.Resolve(ctx, "ns", "latest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != metas[2].RevisionID {
		t.Errorf("latest = %v, want newest revision", latest)
	}
}
