// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for notechat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation. Named model profiles map to the resolved
// ChatSettings value the chat engine consumes; exactly one profile is
// current at a time.
//
// Configuration file location:
//   - ~/.notechat/config.toml
//   - Built-in defaults
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/notechat/internal/provider"
	"github.com/jeranaias/notechat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete notechat configuration.
type Config struct {
	// General settings
	Version        string `toml:"version"`
	CurrentProfile string `toml:"current_profile"`

	// VaultDir is the root of the note collection documents are read from
	VaultDir string `toml:"vault_dir"`

	// ModelCachePath is the model capability cache database (empty = default)
	ModelCachePath string `toml:"model_cache_path"`

	// Profiles are the named model configurations
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is one named model configuration.
type Profile struct {
	// Endpoint is the provider base URL
	Endpoint string `toml:"endpoint"`
	// APIKey authenticates against the endpoint
	APIKey string `toml:"api_key"`
	// Model is the selected model id (custom ids are allowed)
	Model string `toml:"model"`

	// Capability flags, confirmed via the model catalog or set by hand
	SupportsImages    bool `toml:"supports_images"`
	SupportsReasoning bool `toml:"supports_reasoning"`

	// Parameters is the free-form generation parameter table; keys are
	// validated against the closed parameter set at resolve time
	Parameters map[string]any `toml:"parameters"`

	// ImageSaveDir enables autosave of streamed images when non-empty
	ImageSaveDir string `toml:"image_save_dir"`
}

// ChatSettings is the immutable resolved form of the current profile,
// consumed by the chat engine and context assembler.
type ChatSettings struct {
	Endpoint          string
	APIKey            string
	Model             string
	SupportsImages    bool
	SupportsReasoning bool
	Params            provider.Params
	ImageSaveDir      string
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:        "1.0.0",
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {
				Endpoint: "https://openrouter.ai/api/v1",
				Model:    "anthropic/claude-3.5-sonnet",
			},
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the notechat configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".notechat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultModelCachePath returns the default model cache database path.
func DefaultModelCachePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on the config file.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the config file, falling back to defaults
// when no file exists. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		// SECURITY: Check and fix file permissions if needed
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default TOML file atomically.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a specific file path.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// SECURITY: 0600 keeps API keys owner-readable only
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
// Overrides target the current profile.
func (c *Config) ApplyEnvOverrides() {
	if profile := os.Getenv("NOTECHAT_PROFILE"); profile != "" {
		c.CurrentProfile = profile
	}
	if dir := os.Getenv("NOTECHAT_VAULT"); dir != "" {
		c.VaultDir = dir
	}

	current, ok := c.Profiles[c.CurrentProfile]
	if !ok {
		current = Profile{}
	}
	changed := false

	if endpoint := os.Getenv("NOTECHAT_ENDPOINT"); endpoint != "" {
		current.Endpoint = endpoint
		changed = true
	}
	if key := os.Getenv("NOTECHAT_API_KEY"); key != "" {
		current.APIKey = key
		changed = true
	}
	if model := os.Getenv("NOTECHAT_MODEL"); model != "" {
		current.Model = model
		changed = true
	}

	if changed {
		if c.Profiles == nil {
			c.Profiles = make(map[string]Profile)
		}
		c.Profiles[c.CurrentProfile] = current
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ErrNoProfile indicates the current profile name matches no profile.
var ErrNoProfile = errors.New("current profile not found")

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.CurrentProfile == "" {
		return errors.New("current_profile must be set")
	}

	profile, ok := c.Profiles[c.CurrentProfile]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoProfile, c.CurrentProfile)
	}

	if profile.Endpoint == "" {
		return fmt.Errorf("profile %q: endpoint must be set", c.CurrentProfile)
	}
	u, err := url.Parse(profile.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("profile %q: endpoint is not a valid URL: %s", c.CurrentProfile, profile.Endpoint)
	}
	if profile.Model == "" {
		return fmt.Errorf("profile %q: model must be set", c.CurrentProfile)
	}

	return nil
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Current returns the current profile.
func (c *Config) Current() (Profile, error) {
	profile, ok := c.Profiles[c.CurrentProfile]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrNoProfile, c.CurrentProfile)
	}
	return profile, nil
}

// Resolve turns the current profile into the immutable settings value the
// chat engine consumes. Parameter keys are validated here so a typo in the
// config file surfaces before the first request.
func (c *Config) Resolve() (ChatSettings, error) {
	profile, err := c.Current()
	if err != nil {
		return ChatSettings{}, err
	}

	params, err := provider.ParamsFromMap(profile.Model, profile.Parameters)
	if err != nil {
		return ChatSettings{}, fmt.Errorf("profile %q: %w", c.CurrentProfile, err)
	}

	return ChatSettings{
		Endpoint:          profile.Endpoint,
		APIKey:            profile.APIKey,
		Model:             profile.Model,
		SupportsImages:    profile.SupportsImages,
		SupportsReasoning: profile.SupportsReasoning,
		Params:            params,
		ImageSaveDir:      profile.ImageSaveDir,
	}, nil
}
