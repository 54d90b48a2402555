// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "VPNKEEPER_"

var (
	// Global is a singleton instance
	Global VPNKeeperConfig
	once   sync.Once

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load ensures the config is loaded into the Global variable
func Load() error {
	var err error
	once.Do(func() {
		var path string
		path, err = DefaultPath()
		if err != nil {
			return
		}
		Global, err = LoadFrom(path)
	})
	return err
}

// DefaultPath returns ~/.vpnkeeper/vpnkeeper.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".vpnkeeper", "vpnkeeper.yaml"), nil
}

// LoadFrom reads path, applies VPNKEEPER_* overrides and validates the result.
// A missing file is created with DefaultConfig first.
func LoadFrom(path string) (VPNKeeperConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, " First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return VPNKeeperConfig{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return VPNKeeperConfig{}, fmt.Errorf("failed to read the config file %w", err)
	}

	// Start from defaults so keys missing from an older file keep sane values.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return VPNKeeperConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return VPNKeeperConfig{}, err
	}
	if err := Validate(cfg); err != nil {
		return VPNKeeperConfig{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from VPNKEEPER_* environment variables.
func ApplyEnv(cfg *VPNKeeperConfig) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// Validate checks field constraints and reports every violation at once.
func Validate(cfg VPNKeeperConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", strings.TrimPrefix(fe.Namespace(), "VPNKeeperConfig."), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
