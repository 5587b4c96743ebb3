package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults verifies that loading with no config file and no
// environment overrides yields the zero-configuration defaults.
func TestLoad_Defaults(t *testing.T) {
	// Point STAGEHAND_CONFIG at a nonexistent file so a developer's real
	// ~/.config/stagehand/config.toml cannot leak into the test.
	t.Setenv("STAGEHAND_CONFIG", filepath.Join(t.TempDir(), "config.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Conda.Binary)
	assert.Equal(t, "", cfg.Conda.Root)
	assert.Equal(t, 0, cfg.App.Port)
	assert.Equal(t, "", cfg.Installer.URL)
}

// TestLoad_ConfigFile verifies TOML config file values are picked up.
func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[conda]
binary = "/opt/conda/bin/conda"
root = "/opt/conda"

[app]
port = 9000
`), 0o644))
	t.Setenv("STAGEHAND_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/conda/bin/conda", cfg.Conda.Binary)
	assert.Equal(t, "/opt/conda", cfg.Conda.Root)
	assert.Equal(t, 9000, cfg.App.Port)
}

// TestLoad_EnvOverrides verifies STAGEHAND_* environment variables
// override file values, including the bare STAGEHAND_PORT binding.
func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[app]
port = 9000
`), 0o644))
	t.Setenv("STAGEHAND_CONFIG", path)
	t.Setenv("STAGEHAND_PORT", "9100")
	t.Setenv("STAGEHAND_CONDA_BINARY", "/usr/local/bin/conda")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, "/usr/local/bin/conda", cfg.Conda.Binary)
}

// TestCondaRoot verifies the bootstrap prefix default.
func TestCondaRoot(t *testing.T) {
	custom := Config{Conda: CondaConfig{Root: "/opt/conda"}}
	assert.Equal(t, "/opt/conda", custom.CondaRoot())

	def := Config{}
	root := def.CondaRoot()
	assert.True(t, filepath.IsAbs(root))
	assert.Equal(t, "miniconda3", filepath.Base(root))
}

// TestResolvePort verifies the full port precedence chain:
// --port flag > PORT env > config > manifest > 8501.
func TestResolvePort(t *testing.T) {
	t.Run("flag wins over everything", func(t *testing.T) {
		t.Setenv("PORT", "7000")
		port, source, err := ResolvePort(9999, 9000, 8501)
		require.NoError(t, err)
		assert.Equal(t, 9999, port)
		assert.Equal(t, "--port flag", source)
	})

	t.Run("PORT env beats config and manifest", func(t *testing.T) {
		t.Setenv("PORT", "7000")
		port, source, err := ResolvePort(0, 9000, 8501)
		require.NoError(t, err)
		assert.Equal(t, 7000, port)
		assert.Equal(t, "PORT environment variable", source)
	})

	t.Run("config beats manifest", func(t *testing.T) {
		t.Setenv("PORT", "")
		port, source, err := ResolvePort(0, 9000, 8501)
		require.NoError(t, err)
		assert.Equal(t, 9000, port)
		assert.Equal(t, "stagehand configuration", source)
	})

	t.Run("manifest beats fallback", func(t *testing.T) {
		t.Setenv("PORT", "")
		port, source, err := ResolvePort(0, 0, 8600)
		require.NoError(t, err)
		assert.Equal(t, 8600, port)
		assert.Equal(t, "manifest", source)
	})

	t.Run("fallback is 8501", func(t *testing.T) {
		t.Setenv("PORT", "")
		port, source, err := ResolvePort(0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 8501, port)
		assert.Equal(t, "default", source)
	})

	t.Run("invalid PORT is an error", func(t *testing.T) {
		t.Setenv("PORT", "not-a-port")
		_, _, err := ResolvePort(0, 0, 8501)
		assert.Error(t, err)
	})

	t.Run("out of range PORT is an error", func(t *testing.T) {
		t.Setenv("PORT", "70000")
		_, _, err := ResolvePort(0, 0, 8501)
		assert.Error(t, err)
	})
}
