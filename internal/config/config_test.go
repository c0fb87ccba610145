// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// LOAD / SAVE TESTS
// =============================================================================

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.VaultDir = "/tmp/notes"
	cfg.Profiles["work"] = Profile{
		Endpoint:       "https://api.anthropic.com/v1",
		APIKey:         "secret",
		Model:          "claude-3-5-sonnet",
		SupportsImages: true,
		Parameters:     map[string]any{"temperature": 0.3},
	}
	cfg.CurrentProfile = "work"

	require.NoError(t, SaveToPath(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "work", loaded.CurrentProfile)
	assert.Equal(t, "/tmp/notes", loaded.VaultDir)

	work := loaded.Profiles["work"]
	assert.Equal(t, "secret", work.APIKey)
	assert.True(t, work.SupportsImages)
}

func TestSavedConfigIsOwnerOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.Contains(t, cfg.Profiles, "default")
}

func TestLoadFixesInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveToPath(Default(), path))
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadFromPath(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

// =============================================================================
// ENVIRONMENT OVERRIDE TESTS
// =============================================================================

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NOTECHAT_PROFILE", "override")
	t.Setenv("NOTECHAT_VAULT", "/env/vault")
	t.Setenv("NOTECHAT_ENDPOINT", "https://llm.example.com/v1")
	t.Setenv("NOTECHAT_API_KEY", "env-key")
	t.Setenv("NOTECHAT_MODEL", "env-model")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.CurrentProfile)
	assert.Equal(t, "/env/vault", cfg.VaultDir)

	profile, err := cfg.Current()
	require.NoError(t, err)
	assert.Equal(t, "https://llm.example.com/v1", profile.Endpoint)
	assert.Equal(t, "env-key", profile.APIKey)
	assert.Equal(t, "env-model", profile.Model)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing profile", func(c *Config) { c.CurrentProfile = "ghost" }, false},
		{"empty endpoint", func(c *Config) {
			c.Profiles["default"] = Profile{Model: "m"}
		}, false},
		{"bad endpoint url", func(c *Config) {
			c.Profiles["default"] = Profile{Endpoint: "not a url", Model: "m"}
		}, false},
		{"missing model", func(c *Config) {
			c.Profiles["default"] = Profile{Endpoint: "https://api.example.com/v1"}
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateMissingProfileError(t *testing.T) {
	cfg := Default()
	cfg.CurrentProfile = "ghost"
	assert.ErrorIs(t, cfg.Validate(), ErrNoProfile)
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestResolve(t *testing.T) {
	cfg := Default()
	cfg.Profiles["default"] = Profile{
		Endpoint:          "https://openrouter.ai/api/v1",
		APIKey:            "k",
		Model:             "some/model",
		SupportsReasoning: true,
		Parameters: map[string]any{
			"temperature":   0.4,
			"system_prompt": "short answers",
		},
		ImageSaveDir: "/tmp/images",
	}

	settings, err := cfg.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "some/model", settings.Model)
	assert.True(t, settings.SupportsReasoning)
	require.NotNil(t, settings.Params.Temperature)
	assert.Equal(t, 0.4, *settings.Params.Temperature)
	assert.Equal(t, "short answers", settings.Params.SystemPrompt)
	assert.Equal(t, "/tmp/images", settings.ImageSaveDir)
}

func TestResolveRejectsBadParameterKey(t *testing.T) {
	cfg := Default()
	cfg.Profiles["default"] = Profile{
		Endpoint:   "https://api.example.com/v1",
		Model:      "m",
		Parameters: map[string]any{"tempurature": 0.7},
	}

	_, err := cfg.Resolve()
	assert.Error(t, err, "typo in parameter table should fail resolution")
}
