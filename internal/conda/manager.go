// manager.go wraps the conda CLI. Queries go through --json output;
// mutations are plain subprocess calls with captured stderr so a
// failure message names the exact command that broke.
package conda

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// Manager provides conda operations by invoking the conda CLI.
//
// The only state is the resolved binary path. Everything else lives in
// conda's own registries on disk, queried fresh on each call so stale
// in-process caches can never disagree with the host.
type Manager struct {
	binary string
}

// NewManager creates a Manager that invokes the given conda binary.
// Use Locate to resolve the binary path first.
func NewManager(binary string) *Manager {
	return &Manager{binary: binary}
}

// Binary returns the conda executable path this Manager invokes.
func (m *Manager) Binary() string {
	return m.binary
}

// Version returns the conda version string, e.g. "conda 24.1.2".
// Used by `stagehand status` to show which runtime is in play.
func (m *Manager) Version(ctx context.Context) (string, error) {
	output, err := m.runConda(ctx, model.ExitCondaUnavailable, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// envListOutput mirrors the JSON shape of `conda env list --json`:
//
//	{"envs": ["/home/u/miniconda3", "/home/u/miniconda3/envs/deustogpt"]}
type envListOutput struct {
	Envs []string `json:"envs"`
}

// ListEnvs returns all conda environments known to the runtime,
// including the base environment.
func (m *Manager) ListEnvs(ctx context.Context) ([]model.CondaEnv, error) {
	output, err := m.runConda(ctx, model.ExitCondaUnavailable, "env", "list", "--json")
	if err != nil {
		return nil, err
	}
	return parseEnvList([]byte(output))
}

// EnvExists checks whether a named environment exists. This is the
// presence check of the environment step: create runs only when this
// returns false.
func (m *Manager) EnvExists(ctx context.Context, name string) (bool, error) {
	envs, err := m.ListEnvs(ctx)
	if err != nil {
		return false, err
	}
	for _, env := range envs {
		if env.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// condaPackage mirrors one entry of `conda list --json`. The output
// covers packages from conda channels and from pip alike (pip packages
// report channel "pypi"), so one query answers the presence check for
// both install vehicles.
type condaPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Channel string `json:"channel"`
}

// InstalledPackages returns the packages installed in an environment as
// a map from normalized package name to version. Keys are normalized
// with model.NormalizePackageName so lookups are insensitive to case
// and separator spelling.
func (m *Manager) InstalledPackages(ctx context.Context, env string) (map[string]string, error) {
	output, err := m.runConda(ctx, model.ExitCondaUnavailable, "list", "-n", env, "--json")
	if err != nil {
		return nil, err
	}
	return parsePackageList([]byte(output))
}

// CreateEnv creates a new environment with the given Python version.
func (m *Manager) CreateEnv(ctx context.Context, name, python string) error {
	_, err := m.runConda(ctx, model.ExitInstallFailed, createEnvArgs(name, python)...)
	return err
}

// InstallPackage installs one package into an environment via pip.
// Exactly one subprocess per package: the caller pairs each install
// with its own presence check and records a per-package step result.
func (m *Manager) InstallPackage(ctx context.Context, env string, spec model.PackageSpec) error {
	_, err := m.runConda(ctx, model.ExitInstallFailed, installPackageArgs(env, spec)...)
	return err
}

// RemoveEnv deletes an environment and everything installed in it.
func (m *Manager) RemoveEnv(ctx context.Context, name string) error {
	_, err := m.runConda(ctx, model.ExitGeneralError, "env", "remove", "-y", "-n", name)
	return err
}

// RunInEnv runs a command inside an environment in the foreground with
// inherited stdio. This is the app launch path: the process becomes the
// user's interactive session, so stdout/stderr must not be captured.
//
// extraEnv entries ("KEY=value") are appended to the current process
// environment.
func (m *Manager) RunInEnv(ctx context.Context, env string, argv []string, extraEnv []string) error {
	if len(argv) == 0 {
		return model.NewCLIError(model.ExitLaunchFailed, "empty launch command")
	}

	// #nosec G204: args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, m.binary, runInEnvArgs(env, argv)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), extraEnv...)

	if err := cmd.Run(); err != nil {
		return model.WrapCLIError(
			model.ExitLaunchFailed,
			fmt.Sprintf("app process failed: %s", strings.Join(argv, " ")),
			err,
		)
	}
	return nil
}

// createEnvArgs builds the argv for environment creation. -y suppresses
// the interactive confirmation so the chain never blocks on a prompt.
func createEnvArgs(name, python string) []string {
	return []string{"create", "-y", "-n", name, "python=" + python}
}

// installPackageArgs builds the argv for a single package install.
// `conda run -n <env> python -m pip install` uses the environment's own
// interpreter, so the package lands in the right site-packages even
// when the host has several Pythons.
func installPackageArgs(env string, spec model.PackageSpec) []string {
	return []string{"run", "-n", env, "python", "-m", "pip", "install", spec.String()}
}

// runInEnvArgs builds the argv for a foreground app run.
// --no-capture-output makes conda pass the child's stdio straight
// through instead of buffering it, which a long-running server needs.
func runInEnvArgs(env string, argv []string) []string {
	return append([]string{"run", "--no-capture-output", "-n", env}, argv...)
}

// runConda executes a conda command and captures stdout and stderr
// separately. On success it returns stdout. On failure it returns a
// model.CLIError carrying failCode, with the trimmed stderr text in
// the message for diagnostics.
func (m *Manager) runConda(ctx context.Context, failCode model.ExitCode, args ...string) (string, error) {
	// #nosec G204: args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, m.binary, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("conda %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(failCode, message, err)
	}

	return stdout.String(), nil
}

// parseEnvList parses `conda env list --json` output into CondaEnv
// values. conda reports each environment as its prefix path; named
// environments live under an "envs" directory, while the base
// environment is the install prefix itself.
func parseEnvList(data []byte) ([]model.CondaEnv, error) {
	var raw envListOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse conda env list output: %w", err)
	}

	envs := make([]model.CondaEnv, 0, len(raw.Envs))
	for _, prefix := range raw.Envs {
		if prefix == "" {
			continue
		}
		isBase := filepath.Base(filepath.Dir(prefix)) != "envs"
		name := filepath.Base(prefix)
		if isBase {
			name = "base"
		}
		envs = append(envs, model.CondaEnv{
			Name:   name,
			Prefix: prefix,
			IsBase: isBase,
		})
	}
	return envs, nil
}

// parsePackageList parses `conda list --json` output into a normalized
// name → version map.
func parsePackageList(data []byte) (map[string]string, error) {
	var raw []condaPackage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse conda list output: %w", err)
	}

	installed := make(map[string]string, len(raw))
	for _, pkg := range raw {
		if pkg.Name == "" {
			continue
		}
		installed[model.NormalizePackageName(pkg.Name)] = pkg.Version
	}
	return installed, nil
}
