// Package config loads tool-level settings for the stagehand CLI.
//
// Settings come from three layers, later layers overriding earlier ones:
// built-in defaults, an optional TOML config file
// (~/.config/stagehand/config.toml, or the file named by
// STAGEHAND_CONFIG), and STAGEHAND_* environment variables.
//
// The app listen port additionally honors the plain PORT environment
// variable, which container platforms set for the published port. The
// full precedence chain is resolved by ResolvePort.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds stagehand tool configuration. Manifest-level settings
// (environment name, package list, launch spec) live in the manifest,
// not here; this file covers host-specific knobs that should not be
// committed with a project.
type Config struct {
	Conda     CondaConfig
	Installer InstallerConfig
	App       AppConfig
}

// CondaConfig holds conda runtime settings.
type CondaConfig struct {
	// Binary is an explicit path to the conda executable. When empty,
	// the binary is discovered via PATH and well-known install prefixes.
	Binary string

	// Root is the prefix a bootstrapped conda installation goes to.
	// Defaults to ~/miniconda3.
	Root string
}

// InstallerConfig overrides the runtime bootstrap source for all
// projects on this host. A manifest-level installer section takes
// precedence over these.
type InstallerConfig struct {
	URL    string
	SHA256 string
}

// AppConfig holds launch settings.
type AppConfig struct {
	// Port overrides the app listen port. Zero means not configured.
	Port int

	// Manifest is a default manifest path used when a project has none.
	Manifest string
}

// Load reads configuration from file and env. Env var overrides use
// prefix STAGEHAND_; the app port also binds the bare STAGEHAND_PORT
// for convenience.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("conda.binary", "")
	v.SetDefault("conda.root", "")
	v.SetDefault("installer.url", "")
	v.SetDefault("installer.sha256", "")
	v.SetDefault("app.port", 0)
	v.SetDefault("app.manifest", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("STAGEHAND_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(homeDir(), ".config", "stagehand"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("STAGEHAND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// STAGEHAND_PORT reads better than STAGEHAND_APP_PORT; accept both.
	_ = v.BindEnv("app.port", "STAGEHAND_PORT", "STAGEHAND_APP_PORT")

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// CondaRoot returns the bootstrap install prefix, defaulting to
// ~/miniconda3 when unconfigured.
func (c Config) CondaRoot() string {
	if c.Conda.Root != "" {
		return c.Conda.Root
	}
	return filepath.Join(homeDir(), "miniconda3")
}

// fallbackPort is used when no layer configures a port. It matches the
// stock deployment's published container port.
const fallbackPort = 8501

// ResolvePort resolves the app listen port across all configuration
// layers. Precedence, highest first:
//
//	--port flag > PORT env > STAGEHAND_PORT env / config file > manifest
//
// and 8501 when nothing is set anywhere. The returned source string
// names the winning layer for verbose output.
//
// PORT is the container platform contract: a platform that publishes a
// port tells the workload which one via this variable. A set-but-invalid
// PORT is an error rather than a silent fallback, since launching on the
// wrong port in a container means the app is unreachable.
func ResolvePort(flagPort int, cfgPort int, manifestPort int) (int, string, error) {
	if flagPort > 0 {
		return flagPort, "--port flag", nil
	}

	if raw := os.Getenv("PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 || p > 65535 {
			return 0, "", fmt.Errorf("invalid PORT environment value %q: expected a port number 1-65535", raw)
		}
		return p, "PORT environment variable", nil
	}

	if cfgPort > 0 {
		return cfgPort, "stagehand configuration", nil
	}

	if manifestPort > 0 {
		return manifestPort, "manifest", nil
	}

	return fallbackPort, "default", nil
}

// homeDir returns the current user's home directory, falling back to
// the HOME environment variable when the OS lookup fails.
func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}
