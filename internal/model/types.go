// Package model defines the domain types for the stagehand CLI.
//
// All entities in this package represent the provisioning domain: the
// runtime (conda), the named environment, the required package set, and
// the launch contract for the front-end process. The types are transient;
// the only durable state stagehand relies on is what the package manager
// itself records on disk, plus Docker labels in container mode.
package model

import (
	"fmt"
	"strings"
	"time"
)

// StepStatus represents the outcome of a single provisioning step.
// A step is first checked for presence and only applied when missing,
// so the possible outcomes are:
//
//	present → the check passed, nothing was done (the idempotent skip)
//	applied → the target was missing and was installed/created
//	failed  → the apply action returned an error
//	pending → an earlier step failed, so this step never ran
//	missing → read-only check pass only: absent, nothing applied
type StepStatus string

const (
	// StatusPresent indicates the presence check passed and the step
	// was skipped with a notice. A fully converged host reports every
	// step as present.
	StatusPresent StepStatus = "present"

	// StatusApplied indicates the target was absent and the install or
	// create action ran to completion.
	StatusApplied StepStatus = "applied"

	// StatusFailed indicates the apply action returned a hard error.
	// The provisioning chain stops at the first failed step.
	StatusFailed StepStatus = "failed"

	// StatusPending indicates the step was never reached because an
	// earlier step failed. Pending steps performed no checks and no
	// installs.
	StatusPending StepStatus = "pending"

	// StatusMissing indicates the presence check found the target
	// absent during a read-only pass. The converge pass never reports
	// this status; it applies instead.
	StatusMissing StepStatus = "missing"
)

// String returns the string representation of StepStatus.
// This satisfies fmt.Stringer for human-readable CLI output.
func (s StepStatus) String() string {
	return string(s)
}

// IsValid checks whether the StepStatus value is one of the predefined
// valid outcomes.
func (s StepStatus) IsValid() bool {
	switch s {
	case StatusPresent, StatusApplied, StatusFailed, StatusPending, StatusMissing:
		return true
	default:
		return false
	}
}

// ParseStepStatus converts a string to a StepStatus.
// Returns an error if the string does not match any valid status.
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid step status: %q (valid: present, applied, failed, pending, missing)", s)
	}
	return status, nil
}

// StepKind identifies which stage of the provisioning chain a step
// belongs to. The chain is strictly ordered:
//
//	runtime → environment → package (one per required package)
//
// The app launch runs only after the whole chain converges; it is not
// itself a step.
type StepKind string

const (
	// KindRuntime is the conda runtime presence/bootstrap step.
	KindRuntime StepKind = "runtime"

	// KindEnvironment is the named environment existence/creation step.
	KindEnvironment StepKind = "environment"

	// KindPackage is a single required-package presence/install step.
	// There is one KindPackage step per entry in the manifest's list.
	KindPackage StepKind = "package"
)

// String returns the string representation of StepKind.
func (k StepKind) String() string {
	return string(k)
}

// IsValid checks whether the StepKind value is one of the predefined kinds.
func (k StepKind) IsValid() bool {
	switch k {
	case KindRuntime, KindEnvironment, KindPackage:
		return true
	default:
		return false
	}
}

// StepResult records the outcome of one provisioning step. A slice of
// StepResults in chain order is the complete story of a run: what was
// already present, what was installed, and where (if anywhere) the
// chain stopped.
type StepResult struct {
	// Kind is the chain stage this step belongs to.
	Kind StepKind `json:"kind"`

	// Name identifies the step target: the runtime name, the environment
	// name, or the package name.
	Name string `json:"name"`

	// Status is the step outcome.
	Status StepStatus `json:"status"`

	// Detail carries a short human-readable note: the installed version,
	// the skip notice, or the failure message.
	Detail string `json:"detail,omitempty"`

	// Duration is how long the check plus any apply action took.
	Duration time.Duration `json:"duration"`
}

// Report is the full record of one provisioning run.
type Report struct {
	// RunID uniquely identifies this run. It is also stamped onto any
	// container started in container mode, so a container can be traced
	// back to the run that created it.
	RunID string `json:"runId"`

	// Environment is the conda environment name the run converged.
	Environment string `json:"environment"`

	// StartedAt is the wall-clock start of the run in UTC.
	StartedAt time.Time `json:"startedAt"`

	// Steps holds the per-step outcomes in chain order.
	Steps []StepResult `json:"steps"`
}

// Applied returns the number of steps that performed an install or
// create action. A second run over a converged host must report zero.
func (r *Report) Applied() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StatusApplied {
			n++
		}
	}
	return n
}

// Failed returns true if any step in the report failed.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// PackageSpec names a single required package, optionally pinned to an
// exact version. An empty Version means any installed version satisfies
// the presence check.
type PackageSpec struct {
	// Name is the package name as given in the manifest.
	Name string `json:"name"`

	// Version is the exact version pin, or empty for unpinned.
	Version string `json:"version,omitempty"`
}

// ParsePackageSpec parses a manifest package entry. Accepted forms:
//
//	"streamlit"         → Name: "streamlit"
//	"streamlit==1.31.0" → Name: "streamlit", Version: "1.31.0"
//
// A single "=" is rejected rather than guessed at: conda and pip
// disagree on its meaning, and the manifest should be unambiguous.
func ParsePackageSpec(s string) (PackageSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PackageSpec{}, fmt.Errorf("package spec must not be empty")
	}

	name, version, pinned := strings.Cut(s, "==")
	if !pinned && strings.Contains(s, "=") {
		return PackageSpec{}, fmt.Errorf("invalid package spec %q: use name==version for pins", s)
	}

	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" {
		return PackageSpec{}, fmt.Errorf("invalid package spec %q: missing package name", s)
	}
	if pinned && version == "" {
		return PackageSpec{}, fmt.Errorf("invalid package spec %q: missing version after ==", s)
	}

	return PackageSpec{Name: name, Version: version}, nil
}

// String returns the package spec in manifest form: "name" or "name==version".
func (p PackageSpec) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "==" + p.Version
}

// NormalizedName returns the package name folded for presence comparison.
func (p PackageSpec) NormalizedName() string {
	return NormalizePackageName(p.Name)
}

// NormalizePackageName folds a Python package name to its canonical
// comparison form: lowercase with runs of "-", "_" and "." collapsed to
// a single "-". Python package names are case-insensitive and treat the
// three separators as equivalent (PEP 503), so "PyJWT" and "pyjwt" name
// the same package, as do "faiss_cpu" and "faiss-cpu".
func NormalizePackageName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	prevSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r == '-' || r == '_' || r == '.' {
			// Collapse separator runs to a single hyphen.
			if !prevSep {
				b.WriteRune('-')
			}
			prevSep = true
			continue
		}
		prevSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateEnvName checks if the given name is a valid conda environment
// name. Conda rejects names containing path separators, spaces, or the
// ":" and "#" characters; stagehand enforces the same rules up front so
// a bad manifest fails before any subprocess runs.
func ValidateEnvName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name must not be empty")
	}
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '#' || r == ' ':
			return fmt.Errorf("invalid environment name %q: must not contain spaces, path separators, ':' or '#'", name)
		case r < 0x21 || r > 0x7e:
			return fmt.Errorf("invalid environment name %q: must contain only printable ASCII characters", name)
		}
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid environment name %q: must not start with a dot", name)
	}
	return nil
}

// CondaEnv describes one conda environment known to the host runtime,
// as reported by `conda env list --json`.
type CondaEnv struct {
	// Name is the environment name (the basename of its prefix, or
	// "base" for the root environment).
	Name string `json:"name"`

	// Prefix is the absolute filesystem path of the environment.
	Prefix string `json:"prefix"`

	// IsBase indicates whether this is the root (base) environment.
	IsBase bool `json:"isBase"`
}

// ContainerInfo holds runtime information about a managed app container.
// This data is fetched dynamically from the Docker API, not persisted.
type ContainerInfo struct {
	// ContainerID is the unique Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// Status is the Docker container status (e.g., "running", "exited").
	Status string `json:"status"`

	// Labels is the full set of Docker labels on the container,
	// including the stagehand.* management labels.
	Labels map[string]string `json:"labels,omitempty"`
}

// AppContainer is a managed container reconstructed from its stagehand
// labels. It pairs the app identity (environment, port, run) with the
// live container state.
type AppContainer struct {
	// App is the app name the container serves (the manifest name).
	App string `json:"app"`

	// Environment is the conda environment name the app was provisioned
	// against.
	Environment string `json:"environment"`

	// Port is the host port published to the container's server port.
	Port int `json:"port"`

	// RunID is the provisioning run that started this container.
	RunID string `json:"runId"`

	// CreatedAt is when the container was started by stagehand.
	CreatedAt time.Time `json:"createdAt"`

	// Containers holds the live Docker state. A stagehand app maps to
	// exactly one container, but the slice keeps the listing code
	// uniform with the Docker API's grouped results.
	Containers []ContainerInfo `json:"containers,omitempty"`
}

// Running reports whether any of the app's containers is currently
// running. A single running container is enough to consider the app up.
func (a *AppContainer) Running() bool {
	for _, c := range a.Containers {
		if c.Status == "running" {
			return true
		}
	}
	return false
}

// ExitCode defines the CLI exit codes. These let scripts and CI systems
// determine the outcome of a command programmatically; the code
// identifies which stage of the fail-fast chain broke.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitManifestError indicates the manifest was not found or is invalid.
	ExitManifestError ExitCode = 2

	// ExitCondaUnavailable indicates the conda runtime is missing and
	// could not be bootstrapped.
	ExitCondaUnavailable ExitCode = 3

	// ExitInstallFailed indicates an environment-create or package-install
	// step failed. Later steps and the launch were suppressed.
	ExitInstallFailed ExitCode = 4

	// ExitLaunchFailed indicates the front-end process failed to start
	// or exited with an error.
	ExitLaunchFailed ExitCode = 5

	// ExitEnvNotFound indicates the named conda environment does not exist.
	ExitEnvNotFound ExitCode = 6

	// ExitDockerUnavailable indicates the Docker daemon is not accessible
	// (container mode only).
	ExitDockerUnavailable ExitCode = 7

	// ExitPortUnavailable indicates the configured app port is already
	// in use on the host.
	ExitPortUnavailable ExitCode = 8
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
