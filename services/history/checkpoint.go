// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/revtrack/services/history/resolve"
	"github.com/AleutianAI/revtrack/services/history/revision"
	"github.com/AleutianAI/revtrack/services/history/store"
)

// CheckpointManager attaches outcome records to a session's most recent
// revision.
//
// Checkpoints always land on whatever is "latest" at call time. If newer
// revisions were saved since an earlier checkpoint, that earlier record
// stays where it is; nothing is moved retroactively. Calling twice against
// the same latest revision overwrites the first record - at most one
// checkpoint per revision, by policy.
//
// Thread Safety: Safe for concurrent use.
type CheckpointManager struct {
	resolver *resolve.Resolver
	store    *store.Store
	logger   *slog.Logger
}

// NewCheckpointManager creates a CheckpointManager.
//
// Inputs:
//
//	resolver - Resolver for the "latest" lookup. Must not be nil.
//	st - Revision store for the sidecar rewrite. Must not be nil.
//	logger - If nil, slog.Default().
//
// Outputs:
//
//	*CheckpointManager - Ready-to-use manager.
//	error - Non-nil if a dependency is nil.
func NewCheckpointManager(resolver *resolve.Resolver, st *store.Store, logger *slog.Logger) (*CheckpointManager, error) {
	if resolver == nil {
		return nil, errors.New("resolver must not be nil")
	}
	if st == nil {
		return nil, errors.New("store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckpointManager{
		resolver: resolver,
		store:    st,
		logger:   logger.With(slog.String("component", "checkpoint_manager")),
	}, nil
}

// CheckpointLatest attaches a record to the newest revision of a namespace.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	namespace - Session namespace.
//	record - The outcome record. Must pass revision.Checkpoint.Validate.
//
// Outputs:
//
//	revision.ID - Identity of the revision the record landed on.
//	error - revision.ErrEmptyHistory if the namespace has no revisions;
//	        non-nil on invalid record or storage failure.
func (m *CheckpointManager) CheckpointLatest(ctx context.Context, namespace string, record revision.Checkpoint) (revision.ID, error) {
	latest, err := m.resolver.Latest(ctx, namespace)
	if err != nil {
		return revision.ID{}, err
	}

	if err := m.store.UpdateCheckpoint(ctx, namespace, latest, record); err != nil {
		return revision.ID{}, err
	}

	m.logger.Debug("checkpoint recorded",
		slog.String("namespace", namespace),
		slog.Uint64("ordinal", latest.Ordinal),
		slog.String("summary", record.Summary()))

	return latest, nil
}
