// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides append-only revision persistence on BadgerDB.
//
// Each revision is two keys committed in one transaction:
//
//	rev:{ns}:{ordinal:016d}:{timestamp:020d}:{hash}  -> content bytes
//	meta:{ns}:{ordinal:016d}:{timestamp:020d}:{hash} -> JSON metadata sidecar
//
// The key embeds the full identity triple, so two independent processes
// compute the same key for the same revision without coordination. Ordinals
// are zero-padded, which makes lexicographic key order equal ordinal order
// and lets the next-ordinal scan use a single reverse seek.
//
// Content keys are write-once. The metadata sidecar is the only thing ever
// rewritten, and a sidecar rewrite is a single-key transaction, so readers
// never observe a half-written record.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Saves within one namespace are
// serialized by a per-namespace mutex so two racing savers cannot allocate
// the same ordinal; see the package tests for the invariant.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/revtrack/services/history/contenthash"
	"github.com/AleutianAI/revtrack/services/history/revision"
	"github.com/AleutianAI/revtrack/storage/badger"
)

const (
	contentKeyPrefix = "rev:"
	metaKeyPrefix    = "meta:"

	// ordinalDigits and timestampDigits pad key segments so lexicographic
	// order matches numeric order. 20 digits covers the full uint64 range.
	ordinalDigits   = 16
	timestampDigits = 20
)

// Stats summarizes a session's stored revisions.
type Stats struct {
	// RevisionCount is the number of stored revisions.
	RevisionCount int

	// TotalBytes is the summed content size across revisions.
	TotalBytes uint64

	// LatestOrdinal is the highest ordinal, or 0 for an empty session.
	LatestOrdinal uint64
}

// Store persists revisions for session namespaces.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// saveMu guards saveLocks; each namespace gets its own save mutex so
	// the scan-allocate-write step cannot race within this process.
	saveMu    sync.Mutex
	saveLocks map[string]*sync.Mutex
}

// New creates a Store on an open database.
//
// Inputs:
//
//	db - Open database. Must not be nil; the store does not own its lifecycle.
//	logger - Logger for corruption-recovery events. If nil, slog.Default().
//
// Outputs:
//
//	*Store - Ready-to-use store.
//	error - Non-nil if db is nil.
func New(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:        db,
		logger:    logger.With(slog.String("component", "revision_store")),
		saveLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) saveLock(namespace string) *sync.Mutex {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	mu, ok := s.saveLocks[namespace]
	if !ok {
		mu = &sync.Mutex{}
		s.saveLocks[namespace] = mu
	}
	return mu
}

func contentKey(namespace string, id revision.ID) []byte {
	return []byte(fmt.Sprintf("%s%s:%0*d:%0*d:%s",
		contentKeyPrefix, namespace, ordinalDigits, id.Ordinal,
		timestampDigits, id.TimestampNanos, id.ContentHash))
}

func metaKey(namespace string, id revision.ID) []byte {
	return []byte(fmt.Sprintf("%s%s:%0*d:%0*d:%s",
		metaKeyPrefix, namespace, ordinalDigits, id.Ordinal,
		timestampDigits, id.TimestampNanos, id.ContentHash))
}

func metaPrefix(namespace string) []byte {
	return []byte(metaKeyPrefix + namespace + ":")
}

func contentPrefix(namespace string) []byte {
	return []byte(contentKeyPrefix + namespace + ":")
}

// ordinalFromKey parses the ordinal segment of a metadata key.
func ordinalFromKey(key, prefix []byte) (uint64, error) {
	rest := key[len(prefix):]
	if len(rest) < ordinalDigits {
		return 0, fmt.Errorf("malformed revision key %q", key)
	}
	ord, err := strconv.ParseUint(string(rest[:ordinalDigits]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed ordinal in key %q: %v", key, err)
	}
	return ord, nil
}

// NextOrdinal returns the ordinal the next save in this namespace will use.
//
// Description:
//
//	Scans existing revisions with a reverse seek and returns
//	max(ordinal) + 1, or 1 if the namespace has none. Callers racing on
//	the same namespace must hold the namespace save lock; Save does.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	namespace - Session namespace.
//
// Outputs:
//
//	uint64 - The next ordinal, >= 1.
//	error - Non-nil on storage failure.
func (s *Store) NextOrdinal(ctx context.Context, namespace string) (uint64, error) {
	prefix := metaPrefix(namespace)
	var maxOrdinal uint64

	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true // Start from highest key

		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seekKey)

		if it.ValidForPrefix(prefix) {
			ord, err := ordinalFromKey(it.Item().Key(), prefix)
			if err != nil {
				return err
			}
			maxOrdinal = ord
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: scan next ordinal: %v", revision.ErrStorage, err)
	}

	return maxOrdinal + 1, nil
}

// Save appends a new revision and returns its identity triple.
//
// Description:
//
//	Captures the timestamp, computes the content hash, allocates the next
//	ordinal under the namespace save lock, and commits content blob plus
//	metadata sidecar in a single transaction. A crash mid-save leaves no
//	partially visible revision.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	namespace - Session namespace. Created implicitly on first save.
//	content - The document snapshot. Stored byte-for-byte.
//	checkpoint - Outcome record to attach at save time. Usually
//	             revision.NoCheckpoint(); Restore attaches its provenance here.
//
// Outputs:
//
//	revision.ID - Identity of the new revision.
//	error - Non-nil on invalid checkpoint or storage failure.
//
// Thread Safety: Saves in the same namespace are serialized.
func (s *Store) Save(ctx context.Context, namespace, content string, checkpoint revision.Checkpoint) (revision.ID, error) {
	if err := checkpoint.Validate(); err != nil {
		return revision.ID{}, fmt.Errorf("invalid checkpoint: %w", err)
	}

	mu := s.saveLock(namespace)
	mu.Lock()
	defer mu.Unlock()

	ordinal, err := s.NextOrdinal(ctx, namespace)
	if err != nil {
		return revision.ID{}, err
	}

	now := time.Now()
	id := revision.ID{
		Ordinal:        ordinal,
		TimestampNanos: uint64(now.UnixNano()),
		ContentHash:    contenthash.Hash(content),
	}

	md := revision.NewMetadata(id, uint64(len(content)), now)
	md.FullContentHash = contenthash.FullHash(content)
	md.Checkpoint = checkpoint

	mdBytes, err := json.Marshal(md)
	if err != nil {
		return revision.ID{}, fmt.Errorf("marshal metadata: %w", err)
	}

	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if err := txn.Set(contentKey(namespace, id), []byte(content)); err != nil {
			return err
		}
		return txn.Set(metaKey(namespace, id), mdBytes)
	})
	if err != nil {
		return revision.ID{}, fmt.Errorf("%w: save revision %s: %v", revision.ErrStorage, id, err)
	}

	s.logger.Info("revision saved",
		slog.String("namespace", namespace),
		slog.Uint64("ordinal", id.Ordinal),
		slog.String("content_hash", id.ContentHash),
		slog.Uint64("size_bytes", md.FileSizeBytes))

	return id, nil
}

// Get fetches a revision by its exact identity triple.
//
// Outputs:
//
//	*revision.Revision - The stored snapshot and sidecar. Never nil on success.
//	error - revision.ErrNotFound if no revision has this triple;
//	        revision.ErrStorage on I/O failure or a blob/sidecar mismatch.
func (s *Store) Get(ctx context.Context, namespace string, id revision.ID) (*revision.Revision, error) {
	var rev revision.Revision

	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(metaKey(namespace, id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rev.Metadata)
		}); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}

		item, err = txn.Get(contentKey(namespace, id))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			// Sidecar without blob: save transactions make this impossible
			// unless the database was damaged externally.
			return fmt.Errorf("metadata present but content missing for %s", id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rev.Content = string(val)
			return nil
		})
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return nil, &revision.NotFoundError{Reference: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get revision %s: %v", revision.ErrStorage, id, err)
	}

	return &rev, nil
}

// List returns all revision sidecars for a namespace, ascending by ordinal.
//
// Description:
//
//	Iterates the namespace's metadata keys in key order, which is ordinal
//	order by construction. If storage ever holds more than one artifact
//	claiming the same ordinal, the first is kept and the rest are dropped
//	with a warning; the call itself still succeeds.
//
// Outputs:
//
//	[]revision.Metadata - Ascending by ordinal, no duplicates. Empty slice
//	                      (not nil) for an empty or unknown namespace.
//	error - Non-nil on storage failure.
func (s *Store) List(ctx context.Context, namespace string) ([]revision.Metadata, error) {
	prefix := metaPrefix(namespace)
	out := make([]revision.Metadata, 0)

	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		var lastOrdinal uint64
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var md revision.Metadata
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &md)
			}); err != nil {
				return fmt.Errorf("decode metadata at %q: %w", it.Item().Key(), err)
			}

			// The key embeds the same triple as the sidecar; disagreement
			// means the database was edited outside the engine.
			if fromKey, err := keyTriple(it.Item().Key(), prefix); err == nil && fromKey != md.RevisionID {
				s.logger.Warn("revision key disagrees with its sidecar, trusting sidecar",
					slog.String("namespace", namespace),
					slog.String("key_id", fromKey.String()),
					slog.String("sidecar_id", md.RevisionID.String()))
			}

			// Duplicate ordinals are adjacent in key order; keep the first.
			if len(out) > 0 && md.RevisionID.Ordinal == lastOrdinal {
				s.logger.Warn("duplicate ordinal in revision storage, keeping first",
					slog.String("namespace", namespace),
					slog.Uint64("ordinal", md.RevisionID.Ordinal),
					slog.String("dropped_hash", md.RevisionID.ContentHash))
				continue
			}

			lastOrdinal = md.RevisionID.Ordinal
			out = append(out, md)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list revisions: %v", revision.ErrStorage, err)
	}

	return out, nil
}

// UpdateCheckpoint rewrites only the metadata sidecar of an existing revision.
//
// Description:
//
//	Reads the sidecar, replaces its checkpoint (last write wins), and
//	writes it back in one transaction. Content is never touched.
//
// Outputs:
//
//	error - revision.ErrNotFound if the triple does not exist;
//	        non-nil on invalid checkpoint or storage failure.
func (s *Store) UpdateCheckpoint(ctx context.Context, namespace string, id revision.ID, checkpoint revision.Checkpoint) error {
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}

	key := metaKey(namespace, id)

	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		var md revision.Metadata
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &md)
		}); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}

		md.Checkpoint = checkpoint

		mdBytes, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		return txn.Set(key, mdBytes)
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return &revision.NotFoundError{Reference: id.String()}
	}
	if err != nil {
		return fmt.Errorf("%w: update checkpoint for %s: %v", revision.ErrStorage, id, err)
	}

	s.logger.Info("checkpoint attached",
		slog.String("namespace", namespace),
		slog.Uint64("ordinal", id.Ordinal),
		slog.String("kind", string(checkpoint.Kind)))

	return nil
}

// SessionStats summarizes the stored revisions for a namespace.
func (s *Store) SessionStats(ctx context.Context, namespace string) (Stats, error) {
	metas, err := s.List(ctx, namespace)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	stats.RevisionCount = len(metas)
	for _, md := range metas {
		stats.TotalBytes += md.FileSizeBytes
		if md.RevisionID.Ordinal > stats.LatestOrdinal {
			stats.LatestOrdinal = md.RevisionID.Ordinal
		}
	}
	return stats, nil
}

// Purge deletes every revision stored for a namespace.
//
// Description:
//
//	The one deliberate exception to append-only: an external purge of a
//	whole session. Collects the namespace's content and metadata keys,
//	then deletes them in a write batch. Nothing else in the engine can
//	reach this; it exists for host-driven session teardown.
//
// Outputs:
//
//	int - Number of revisions removed.
//	error - Non-nil on storage failure.
func (s *Store) Purge(ctx context.Context, namespace string) (int, error) {
	var keys [][]byte

	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		for _, prefix := range [][]byte{contentPrefix(namespace), metaPrefix(namespace)} {
			opts := dgbadger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: collect purge keys: %v", revision.ErrStorage, err)
	}

	if len(keys) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("%w: purge %s: %v", revision.ErrStorage, namespace, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("%w: purge %s: %v", revision.ErrStorage, namespace, err)
	}

	removed := len(keys) / 2 // one content key + one meta key per revision

	s.logger.Info("session purged",
		slog.String("namespace", namespace),
		slog.Int("revisions", removed))

	s.saveMu.Lock()
	delete(s.saveLocks, namespace)
	s.saveMu.Unlock()

	return removed, nil
}

// keyTriple re-derives an ID from a storage key, for diagnostics.
func keyTriple(key, prefix []byte) (revision.ID, error) {
	rest := string(key[len(prefix):])
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return revision.ID{}, fmt.Errorf("malformed revision key %q", key)
	}
	ord, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return revision.ID{}, fmt.Errorf("malformed ordinal in key %q: %v", key, err)
	}
	ts, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return revision.ID{}, fmt.Errorf("malformed timestamp in key %q: %v", key, err)
	}
	return revision.ID{Ordinal: ord, TimestampNanos: ts, ContentHash: parts[2]}, nil
}
