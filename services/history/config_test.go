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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.SyncWrites)
	assert.Equal(t, 3, cfg.DefaultContextLines)
	assert.Equal(t, 5*time.Minute, cfg.GCInterval)
	assert.False(t, cfg.InMemory)

	// DataDir is the caller's to fill in.
	err := cfg.Validate()
	require.Error(t, err)

	cfg.DataDir = "/tmp/revisions"
	assert.NoError(t, cfg.Validate())
}

func TestInMemoryConfigValidates(t *testing.T) {
	cfg := InMemoryConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: "data_dir",
		},
		{
			name:    "negative context lines",
			mutate:  func(c *Config) { c.DefaultContextLines = -1 },
			wantErr: "default_context_lines",
		},
		{
			name:    "negative gc interval",
			mutate:  func(c *Config) { c.GCInterval = -time.Second },
			wantErr: "gc_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(dir, "revtrack.yaml")
		content := "data_dir: " + dir + "\n" +
			"sync_writes: false\n" +
			"default_context_lines: 5\n" +
			"gc_interval: 1m\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, dir, cfg.DataDir)
		assert.False(t, cfg.SyncWrites)
		assert.Equal(t, 5, cfg.DefaultContextLines)
		assert.Equal(t, time.Minute, cfg.GCInterval)
	})

	t.Run("unset fields keep defaults", func(t *testing.T) {
		path := filepath.Join(dir, "minimal.yaml")
		require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\n"), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.True(t, cfg.SyncWrites)
		assert.Equal(t, 3, cfg.DefaultContextLines)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("data_dir: [\n"), 0o644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("in_memory: false\n"), 0o644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
