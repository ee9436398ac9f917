// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docstore holds the single live document per session namespace.
//
// The revision engine reads the live document when saving new revisions and
// overwrites it when restoring an old one. The engine never validates or
// interprets the content; it is an opaque text value.
package docstore

import (
	"context"
	"sync"
)

// Store is the current-document store the revision engine collaborates with.
//
// Implementations must keep namespaces fully isolated: a write under one
// namespace must never be visible under another.
type Store interface {
	// GetCurrent reads the live document for a namespace.
	//
	// Outputs:
	//   - string: The document text. Empty if ok is false.
	//   - bool: False if no document has been set for this namespace.
	//   - error: Non-nil on storage failure.
	GetCurrent(ctx context.Context, namespace string) (string, bool, error)

	// SetCurrent overwrites the live document for a namespace.
	SetCurrent(ctx context.Context, namespace, content string) error

	// Clear removes the live document for a namespace. Clearing a
	// namespace that has no document is not an error.
	Clear(ctx context.Context, namespace string) error
}

// Memory is an in-memory Store for tests and embedded use.
//
// Thread Safety: Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]string)}
}

// GetCurrent implements Store.
func (m *Memory) GetCurrent(ctx context.Context, namespace string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.docs[namespace]
	return content, ok, nil
}

// SetCurrent implements Store.
func (m *Memory) SetCurrent(ctx context.Context, namespace, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[namespace] = content
	return nil
}

// Clear implements Store.
func (m *Memory) Clear(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, namespace)
	return nil
}
