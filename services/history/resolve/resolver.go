// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve turns loose, user-facing revision references into exactly
// one revision identity, or a precise typed error.
//
// Accepted forms, in fixed dispatch order:
//
//  1. Symbolic token ("latest", "head", "@", case-insensitive) - the
//     highest-ordinal revision.
//  2. All-digits string - tried as an ordinal first; only if no revision
//     has that ordinal is it retried as a nanosecond timestamp. Digit
//     strings therefore never reach hash-prefix matching, even though they
//     are valid hex.
//  3. Hex string of length >= MinHashPrefixLength - a content-hash prefix,
//     case-insensitive. Two or more matches is a typed Ambiguous error,
//     never a silent pick, mirroring how version-control tools treat short
//     hashes.
//  4. Anything else - an invalid-reference error naming the input.
//
// The order is deliberate: numeric-looking strings are disambiguated by the
// fixed precedence above, not by guessing intent. A short digit string that
// could read as either an ordinal or a truncated timestamp is always an
// ordinal.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/revtrack/services/history/revision"
)

// MinHashPrefixLength is the shortest accepted content-hash prefix.
// Shorter prefixes are rejected up front rather than resolved, to guard
// against accidental false-positive matches.
const MinHashPrefixLength = 4

// Lister supplies the revision sidecars a resolution runs against.
// The revision store implements it.
type Lister interface {
	// List returns a namespace's sidecars ascending by ordinal.
	List(ctx context.Context, namespace string) ([]revision.Metadata, error)
}

// Resolver resolves references against a Lister.
//
// Thread Safety: Stateless beyond the Lister; safe for concurrent use if
// the Lister is.
type Resolver struct {
	lister Lister
}

// New creates a Resolver.
//
// Inputs:
//
//	lister - Source of revision sidecars. Must not be nil.
//
// Outputs:
//
//	*Resolver - Ready-to-use resolver.
//	error - Non-nil if lister is nil.
func New(lister Lister) (*Resolver, error) {
	if lister == nil {
		return nil, errors.New("lister must not be nil")
	}
	return &Resolver{lister: lister}, nil
}

// Resolve maps a reference string to exactly one revision identity.
//
// Description:
//
//	Applies the package's fixed dispatch order. Existence is verified for
//	every form except full triples, which do not pass through here (see
//	ValidateID). Not-found and ambiguous errors carry the original input
//	so the calling layer can render an actionable message.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	namespace - Session namespace to resolve within.
//	reference - The user-supplied reference. Leading/trailing space ignored.
//
// Outputs:
//
//	revision.ID - The single matching revision.
//	error - revision.ErrEmptyHistory, ErrNotFound, ErrAmbiguous, or
//	        ErrInvalidReference; revision.ErrStorage on listing failure.
func (r *Resolver) Resolve(ctx context.Context, namespace, reference string) (revision.ID, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return revision.ID{}, fmt.Errorf("%w: empty reference", revision.ErrInvalidReference)
	}

	if isSymbolic(ref) {
		return r.Latest(ctx, namespace)
	}

	if isAllDigits(ref) {
		return r.resolveDigits(ctx, namespace, ref)
	}

	if isHex(ref) {
		if len(ref) < MinHashPrefixLength {
			return revision.ID{}, fmt.Errorf(
				"%w: hash prefix %q is shorter than the %d-character minimum",
				revision.ErrInvalidReference, ref, MinHashPrefixLength)
		}
		return r.resolveHashPrefix(ctx, namespace, ref)
	}

	return revision.ID{}, fmt.Errorf("%w: %q fits no recognized reference form",
		revision.ErrInvalidReference, ref)
}

// Latest returns the revision with the highest ordinal.
//
// Outputs:
//
//	revision.ID - The newest revision.
//	error - revision.ErrEmptyHistory if the namespace has no revisions.
func (r *Resolver) Latest(ctx context.Context, namespace string) (revision.ID, error) {
	metas, err := r.lister.List(ctx, namespace)
	if err != nil {
		return revision.ID{}, err
	}
	if len(metas) == 0 {
		return revision.ID{}, revision.ErrEmptyHistory
	}
	return metas[len(metas)-1].RevisionID, nil
}

// ValidateID checks a caller-supplied full triple for shape.
//
// Existence is deliberately not re-verified here; callers that need the
// content follow up with a store Get, which reports not-found itself.
func ValidateID(id revision.ID) error {
	return id.Validate()
}

func (r *Resolver) resolveDigits(ctx context.Context, namespace, ref string) (revision.ID, error) {
	value, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return revision.ID{}, fmt.Errorf("%w: numeric reference %q out of range",
			revision.ErrInvalidReference, ref)
	}

	metas, err := r.lister.List(ctx, namespace)
	if err != nil {
		return revision.ID{}, err
	}

	// Ordinal interpretation takes precedence over timestamp.
	for _, md := range metas {
		if md.RevisionID.Ordinal == value {
			return md.RevisionID, nil
		}
	}

	// Timestamp interpretation: equal timestamps are possible; the highest
	// ordinal wins, a documented most-recent-wins tie-break.
	var match revision.ID
	found := false
	for _, md := range metas {
		if md.RevisionID.TimestampNanos == value && md.RevisionID.Ordinal >= match.Ordinal {
			match = md.RevisionID
			found = true
		}
	}
	if found {
		return match, nil
	}

	return revision.ID{}, &revision.NotFoundError{Reference: ref}
}

func (r *Resolver) resolveHashPrefix(ctx context.Context, namespace, ref string) (revision.ID, error) {
	prefix := strings.ToLower(ref)

	metas, err := r.lister.List(ctx, namespace)
	if err != nil {
		return revision.ID{}, err
	}

	var matches []revision.ID
	for _, md := range metas {
		if strings.HasPrefix(md.RevisionID.ContentHash, prefix) {
			matches = append(matches, md.RevisionID)
		}
	}

	switch len(matches) {
	case 0:
		return revision.ID{}, &revision.NotFoundError{Reference: ref}
	case 1:
		return matches[0], nil
	default:
		return revision.ID{}, &revision.AmbiguousError{Prefix: ref, Matches: matches}
	}
}

func isSymbolic(ref string) bool {
	switch strings.ToLower(ref) {
	case "latest", "head", "@":
		return true
	}
	return false
}

func isAllDigits(ref string) bool {
	for _, c := range ref {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isHex(ref string) bool {
	for _, c := range ref {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
