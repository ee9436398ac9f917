// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docstore

import (
	"errors"
	"fmt"

	"context"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/revtrack/storage/badger"
)

// docKeyPrefix namespaces live-document keys away from revision keys that
// share the same database.
const docKeyPrefix = "doc:"

// Badger is a Store backed by BadgerDB.
//
// It shares the database with the revision store; the "doc:" key prefix
// keeps the two keyspaces apart. One key per namespace, last write wins.
//
// Thread Safety: Safe for concurrent use.
type Badger struct {
	db *badger.DB
}

// NewBadger creates a Badger-backed document store.
//
// Inputs:
//
//	db - Open database. Must not be nil; the store does not own its lifecycle.
//
// Outputs:
//
//	*Badger - Ready-to-use store.
//	error - Non-nil if db is nil.
func NewBadger(db *badger.DB) (*Badger, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &Badger{db: db}, nil
}

func docKey(namespace string) []byte {
	return []byte(docKeyPrefix + namespace)
}

// GetCurrent implements Store.
func (b *Badger) GetCurrent(ctx context.Context, namespace string) (string, bool, error) {
	var content string
	found := false

	err := b.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(docKey(namespace))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			content = string(val)
			found = true
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("read live document: %w", err)
	}

	return content, found, nil
}

// SetCurrent implements Store.
func (b *Badger) SetCurrent(ctx context.Context, namespace, content string) error {
	err := b.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(docKey(namespace), []byte(content))
	})
	if err != nil {
		return fmt.Errorf("write live document: %w", err)
	}
	return nil
}

// Clear implements Store. Badger deletes of absent keys succeed, which
// matches the interface contract.
func (b *Badger) Clear(ctx context.Context, namespace string) error {
	err := b.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Delete(docKey(namespace))
	})
	if err != nil {
		return fmt.Errorf("clear live document: %w", err)
	}
	return nil
}
