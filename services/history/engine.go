// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history is the revision engine's public operation surface.
//
// The Engine composes the content addresser, revision store, reference
// resolver, checkpoint manager, and diff renderer behind one facade, and is
// the only component aware of the session-to-namespace mapping. Callers
// hand it opaque session identifiers; everything below works in derived
// namespaces.
//
// All operations are synchronous blocking storage I/O. Callers on an async
// runtime should invoke them from a blocking-safe execution context. The
// engine never retries on its own; every failure comes back typed.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/revtrack/pkg/logging"
	"github.com/AleutianAI/revtrack/services/history/diffview"
	"github.com/AleutianAI/revtrack/services/history/docstore"
	"github.com/AleutianAI/revtrack/services/history/resolve"
	"github.com/AleutianAI/revtrack/services/history/revision"
	"github.com/AleutianAI/revtrack/services/history/session"
	"github.com/AleutianAI/revtrack/services/history/store"
	"github.com/AleutianAI/revtrack/storage/badger"
)

const tracerName = "revtrack/history"

// DiffResult is a rendered diff between two resolved revisions.
type DiffResult struct {
	// From and To are the resolved endpoints.
	From revision.ID
	To   revision.ID

	// Diff is the rendered text and line statistics.
	Diff diffview.Result
}

// Engine is the revision engine facade.
//
// Thread Safety: Safe for concurrent use. Saves within one session are
// serialized by the store; see the store package.
type Engine struct {
	cfg         Config
	db          *badger.DB
	store       *store.Store
	resolver    *resolve.Resolver
	checkpoints *CheckpointManager
	docs        docstore.Store
	sessions    *session.Registry
	differ      *diffview.Differ
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithDocumentStore replaces the default Badger-backed live-document store.
//
// The host system typically owns the live document; this lets it hand the
// engine its own store instead of the embedded one.
func WithDocumentStore(ds docstore.Store) Option {
	return func(e *Engine) {
		e.docs = ds
	}
}

// New creates an Engine and opens its storage.
//
// Description:
//
//	Validates the configuration, opens the BadgerDB instance (creating
//	DataDir if needed), and wires the component graph. The engine owns
//	the database; call Close when done.
//
// Inputs:
//
//	cfg - Engine configuration. Must pass Validate().
//	opts - Optional overrides.
//
// Outputs:
//
//	*Engine - Ready-to-use engine.
//	error - Non-nil if configuration or storage setup fails.
//
// Thread Safety: The returned Engine is safe for concurrent use.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.Default().Slog()
	}
	logger := cfg.Logger.With(slog.String("component", "revision_engine"))

	db, err := badger.OpenDB(badger.Config{
		Path:           cfg.DataDir,
		InMemory:       cfg.InMemory,
		SyncWrites:     cfg.SyncWrites,
		GCInterval:     cfg.GCInterval,
		GCDiscardRatio: 0.5,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open revision storage: %w", err)
	}

	st, err := store.New(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	resolver, err := resolve.New(st)
	if err != nil {
		db.Close()
		return nil, err
	}

	checkpoints, err := NewCheckpointManager(resolver, st, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	docs, err := docstore.NewBadger(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		db:          db,
		store:       st,
		resolver:    resolver,
		checkpoints: checkpoints,
		docs:        docs,
		sessions:    session.NewRegistry(cfg.Logger),
		differ:      diffview.New(cfg.Logger),
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(e)
	}

	logger.Info("revision engine opened",
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("in_memory", cfg.InMemory))

	return e, nil
}

// Close releases the engine's storage and session handles.
func (e *Engine) Close() error {
	e.sessions.Close()
	return e.db.Close()
}

// SaveRevision snapshots content as a new revision for a session.
//
// Outputs:
//
//	revision.ID - Identity of the new revision, ordinal max+1.
//	error - Non-nil on storage failure.
func (e *Engine) SaveRevision(ctx context.Context, sessionID, content string) (revision.ID, error) {
	ns := e.sessions.Namespace(sessionID)

	ctx, span := e.tracer.Start(ctx, "history.SaveRevision",
		trace.WithAttributes(attribute.String("namespace", ns)))
	defer span.End()

	id, err := e.store.Save(ctx, ns, content, revision.NoCheckpoint())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return revision.ID{}, err
	}

	span.SetAttributes(attribute.Int64("ordinal", int64(id.Ordinal)))
	return id, nil
}

// ListRevisions returns a session's revision sidecars ascending by ordinal.
func (e *Engine) ListRevisions(ctx context.Context, sessionID string) ([]revision.Metadata, error) {
	ns := e.sessions.Namespace(sessionID)

	ctx, span := e.tracer.Start(ctx, "history.ListRevisions",
		trace.WithAttributes(attribute.String("namespace", ns)))
	defer span.End()

	metas, err := e.store.List(ctx, ns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("revisions", len(metas)))
	return metas, nil
}

// GetRevision resolves a loose reference and fetches the revision.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	sessionID - Opaque session identifier.
//	reference - Ordinal, hash prefix, timestamp, or symbolic token; see
//	            the resolve package for the dispatch rules.
//
// Outputs:
//
//	*revision.Revision - Content plus sidecar.
//	error - Typed resolve error, or revision.ErrStorage.
func (e *Engine) GetRevision(ctx context.Context, sessionID, reference string) (*revision.Revision, error) {
	ns := e.sessions.Namespace(sessionID)

	ctx, span := e.tracer.Start(ctx, "history.GetRevision",
		trace.WithAttributes(
			attribute.String("namespace", ns),
			attribute.String("reference", reference)))
	defer span.End()

	id, err := e.resolver.Resolve(ctx, ns, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, err
	}

	rev, err := e.store.Get(ctx, ns, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, err
	}
	return rev, nil
}

// GetRevisionByID fetches a revision by a caller-held full triple.
//
// The triple's shape is validated; existence is checked by the store
// lookup itself.
func (e *Engine) GetRevisionByID(ctx context.Context, sessionID string, id revision.ID) (*revision.Revision, error) {
	if err := resolve.ValidateID(id); err != nil {
		return nil, err
	}
	ns := e.sessions.Namespace(sessionID)
	return e.store.Get(ctx, ns, id)
}

// DiffRevisions resolves two references and renders their unified diff.
//
// Description:
//
//	Resolves from and to in that order, failing fast on the first
//	unresolved side; the returned error names which side failed.
//	Identical content yields the diffview sentinel, not an empty string.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	sessionID - Opaque session identifier.
//	fromRef, toRef - References for the two sides.
//	contextLines - Unchanged context lines per hunk. Negative means the
//	               configured default.
//
// Outputs:
//
//	*DiffResult - Resolved endpoints plus rendered diff.
//	error - Typed resolve error tagged with the failing side, or
//	        revision.ErrStorage.
func (e *Engine) DiffRevisions(ctx context.Context, sessionID, fromRef, toRef string, contextLines int) (*DiffResult, error) {
	ns := e.sessions.Namespace(sessionID)

	ctx, span := e.tracer.Start(ctx, "history.DiffRevisions",
		trace.WithAttributes(
			attribute.String("namespace", ns),
			attribute.String("from", fromRef),
			attribute.String("to", toRef)))
	defer span.End()

	if contextLines < 0 {
		contextLines = e.cfg.DefaultContextLines
	}

	fromID, err := e.resolver.Resolve(ctx, ns, fromRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve from failed")
		return nil, fmt.Errorf("resolve \"from\" reference: %w", err)
	}
	toID, err := e.resolver.Resolve(ctx, ns, toRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve to failed")
		return nil, fmt.Errorf("resolve \"to\" reference: %w", err)
	}

	fromRev, err := e.store.Get(ctx, ns, fromID)
	if err != nil {
		return nil, fmt.Errorf("load \"from\" revision: %w", err)
	}
	toRev, err := e.store.Get(ctx, ns, toID)
	if err != nil {
		return nil, fmt.Errorf("load \"to\" revision: %w", err)
	}

	diff, err := e.differ.Unified(
		diffview.Snapshot{Name: revisionLabel(fromID), Content: fromRev.Content},
		diffview.Snapshot{Name: revisionLabel(toID), Content: toRev.Content},
		contextLines,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "diff failed")
		return nil, err
	}

	return &DiffResult{From: fromID, To: toID, Diff: diff}, nil
}

// CheckpointLatest attaches an outcome record to the session's newest
// revision. See CheckpointManager for the at-most-one-per-revision policy.
func (e *Engine) CheckpointLatest(ctx context.Context, sessionID string, record revision.Checkpoint) (revision.ID, error) {
	ns := e.sessions.Namespace(sessionID)

	ctx, span := e.tracer.Start(ctx, "history.CheckpointLatest",
		trace.WithAttributes(
			attribute.String("namespace", ns),
			attribute.String("kind", string(record.Kind))))
	defer span.End()

	id, err := e.checkpoints.CheckpointLatest(ctx, ns, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkpoint failed")
		return revision.ID{}, err
	}
	return id, nil
}

// Restore makes an old revision's content the live document again.
//
// Description:
//
//	Resolves the reference, overwrites the live document with the target
//	revision's content, then appends a new revision of that same content
//	carrying a restore checkpoint. History is never edited or deleted;
//	restore only appends.
//
//	If the live document was updated but the append failed, the error
//	wraps revision.ErrPartialRestore: the system is inconsistent and the
//	caller should retry the missing half, not the whole operation.
//
// Outputs:
//
//	revision.ID - Identity of the newly appended revision.
//	error - Typed resolve error, revision.ErrStorage, or
//	        revision.ErrPartialRestore.
func (e *Engine) Restore(ctx context.Context, sessionID, reference string) (revision.ID, error) {
	ns := e.sessions.Namespace(sessionID)

	ctx, span := e.tracer.Start(ctx, "history.Restore",
		trace.WithAttributes(
			attribute.String("namespace", ns),
			attribute.String("reference", reference)))
	defer span.End()

	targetID, err := e.resolver.Resolve(ctx, ns, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return revision.ID{}, err
	}

	target, err := e.store.Get(ctx, ns, targetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return revision.ID{}, err
	}

	if err := e.docs.SetCurrent(ctx, ns, target.Content); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "document update failed")
		return revision.ID{}, fmt.Errorf("update live document: %w", err)
	}

	newID, err := e.store.Save(ctx, ns, target.Content, revision.NewRestoreCheckpoint(targetID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history append failed")
		return revision.ID{}, fmt.Errorf(
			"%w: live document now matches revision %s but the restore revision was not recorded: %v",
			revision.ErrPartialRestore, targetID, err)
	}

	e.logger.Info("revision restored",
		slog.String("namespace", ns),
		slog.Uint64("restored_from", targetID.Ordinal),
		slog.Uint64("new_ordinal", newID.Ordinal))

	span.SetAttributes(attribute.Int64("new_ordinal", int64(newID.Ordinal)))
	return newID, nil
}

// CurrentDocument reads the session's live document from the document store.
func (e *Engine) CurrentDocument(ctx context.Context, sessionID string) (string, bool, error) {
	ns := e.sessions.Namespace(sessionID)
	return e.docs.GetCurrent(ctx, ns)
}

// SetCurrentDocument overwrites the session's live document without saving
// a revision. Pair with SaveRevision when the change should enter history.
func (e *Engine) SetCurrentDocument(ctx context.Context, sessionID, content string) error {
	ns := e.sessions.Namespace(sessionID)
	return e.docs.SetCurrent(ctx, ns, content)
}

// SessionStats summarizes a session's stored revisions.
func (e *Engine) SessionStats(ctx context.Context, sessionID string) (store.Stats, error) {
	ns := e.sessions.Namespace(sessionID)
	return e.store.SessionStats(ctx, ns)
}

// PurgeSession deletes every revision a session has stored, clears its
// live document, and drops its registry handle. The host-driven teardown
// path; nothing in the engine calls it. The returned count covers
// revisions only.
func (e *Engine) PurgeSession(ctx context.Context, sessionID string) (int, error) {
	ns := e.sessions.Namespace(sessionID)

	ctx, span := e.tracer.Start(ctx, "history.PurgeSession",
		trace.WithAttributes(attribute.String("namespace", ns)))
	defer span.End()

	removed, err := e.store.Purge(ctx, ns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "purge failed")
		return 0, err
	}

	if err := e.docs.Clear(ctx, ns); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "document clear failed")
		return removed, fmt.Errorf("clear live document: %w", err)
	}

	e.sessions.Forget(sessionID)
	return removed, nil
}

// revisionLabel names a diff side after its revision.
func revisionLabel(id revision.ID) string {
	return fmt.Sprintf("revision %d (%s)", id.Ordinal, id.ContentHash)
}
