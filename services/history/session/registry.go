// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session maps opaque session identifiers to isolated storage
// namespaces.
//
// The namespace is a one-way hash of the session identifier, so arbitrary
// external IDs (URLs, emails, whatever the host hands us) become fixed-width
// keyspace-safe strings. Two different session identifiers can never read or
// write each other's revisions because every storage key is prefixed with
// the namespace.
//
// The registry is an explicit object with caller-owned lifecycle; there is
// no package-level state.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NamespaceLength is the number of hex characters in a namespace.
const NamespaceLength = 16

// Handle describes a session the registry has seen.
type Handle struct {
	// SessionID is the opaque external identifier.
	SessionID string

	// Namespace is the derived storage namespace.
	Namespace string

	// HandleID is a registry-assigned identifier for log correlation.
	HandleID string

	// CreatedAt is when the registry first saw this session.
	CreatedAt time.Time
}

// Registry maps session identifiers to storage namespaces.
//
// Namespaces are derived deterministically, so the registry is a cache plus
// a bookkeeping record of which sessions this process has touched, not a
// source of truth. Handles are created lazily on first use and live until
// Forget or Close.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	logger  *slog.Logger
	mu      sync.Mutex
	handles map[string]Handle
}

// NewRegistry creates an empty registry.
//
// Inputs:
//
//	logger - Logger for handle lifecycle events. If nil, slog.Default().
//
// Outputs:
//
//	*Registry - Ready-to-use registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger.With(slog.String("component", "session_registry")),
		handles: make(map[string]Handle),
	}
}

// Namespace returns the storage namespace for a session identifier,
// registering a handle on first sight.
//
// Description:
//
//	Derives the namespace as the first NamespaceLength hex characters of
//	SHA-256 over the identifier. Deterministic: any process computes the
//	same namespace for the same session without coordination.
//
// Inputs:
//
//	sessionID - Opaque external session identifier. May be any string.
//
// Outputs:
//
//	string - The namespace.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Namespace(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[sessionID]; ok {
		return h.Namespace
	}

	h := Handle{
		SessionID: sessionID,
		Namespace: DeriveNamespace(sessionID),
		HandleID:  uuid.NewString(),
		CreatedAt: time.Now(),
	}
	r.handles[sessionID] = h

	r.logger.Debug("session registered",
		slog.String("namespace", h.Namespace),
		slog.String("handle_id", h.HandleID))

	return h.Namespace
}

// DeriveNamespace computes the namespace for a session identifier without
// touching any registry state.
func DeriveNamespace(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])[:NamespaceLength]
}

// Handles returns a snapshot of all registered handles.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// Forget drops the handle for a session, if present.
//
// Forgetting does not delete stored revisions; it only clears the
// bookkeeping entry. The namespace derivation stays stable, so a later
// call for the same session reaches the same data.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[sessionID]; ok {
		delete(r.handles, sessionID)
		r.logger.Debug("session forgotten",
			slog.String("namespace", h.Namespace),
			slog.String("handle_id", h.HandleID))
	}
}

// Close drops all handles.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.handles) > 0 {
		r.logger.Debug("registry closed", slog.Int("handles", len(r.handles)))
	}
	r.handles = make(map[string]Handle)
}
