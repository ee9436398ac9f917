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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the revision engine.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after the
// engine is created.
type Config struct {
	// DataDir is the directory for the engine's database files.
	// Required unless InMemory is true.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// InMemory keeps everything in memory (no disk persistence).
	// Useful for testing.
	InMemory bool `json:"in_memory" yaml:"in_memory"`

	// SyncWrites enables synchronous storage writes for durability.
	// Default: true.
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// DefaultContextLines is the unified-diff context used when a caller
	// passes a negative count. Default: 3.
	DefaultContextLines int `json:"default_context_lines" yaml:"default_context_lines"`

	// GCInterval is how often storage garbage collection runs.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration `json:"gc_interval" yaml:"gc_interval"`

	// Logger for engine operations. Default: logging.Default().Slog().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// DefaultConfig returns sensible defaults for production use.
//
// Outputs:
//
//	Config - Ready-to-use configuration; DataDir must still be set.
func DefaultConfig() Config {
	return Config{
		SyncWrites:          true,
		DefaultContextLines: 3,
		GCInterval:          5 * time.Minute,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:            true,
		SyncWrites:          false,
		DefaultContextLines: 3,
	}
}

// UnmarshalYAML decodes a Config, leaving fields the document does not
// mention at their current values and accepting gc_interval in
// time.ParseDuration form ("5m", "90s").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DataDir             *string `yaml:"data_dir"`
		InMemory            *bool   `yaml:"in_memory"`
		SyncWrites          *bool   `yaml:"sync_writes"`
		DefaultContextLines *int    `yaml:"default_context_lines"`
		GCInterval          *string `yaml:"gc_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.DataDir != nil {
		c.DataDir = *raw.DataDir
	}
	if raw.InMemory != nil {
		c.InMemory = *raw.InMemory
	}
	if raw.SyncWrites != nil {
		c.SyncWrites = *raw.SyncWrites
	}
	if raw.DefaultContextLines != nil {
		c.DefaultContextLines = *raw.DefaultContextLines
	}
	if raw.GCInterval != nil {
		d, err := time.ParseDuration(*raw.GCInterval)
		if err != nil {
			return fmt.Errorf("gc_interval: %w", err)
		}
		c.GCInterval = d
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return errors.New("data_dir is required unless in_memory is set")
	}
	if c.DefaultContextLines < 0 {
		return errors.New("default_context_lines must be non-negative")
	}
	if c.GCInterval < 0 {
		return errors.New("gc_interval must be non-negative")
	}
	return nil
}

// LoadConfig reads a YAML configuration file and applies defaults for
// anything the file leaves unset.
//
// Inputs:
//
//	path - Path to the YAML file.
//
// Outputs:
//
//	Config - The merged configuration. Valid per Validate().
//	error - Non-nil if the file cannot be read, parsed, or validated.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
