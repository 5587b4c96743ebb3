// host.go binds the System interface to the real host: conda discovery
// and queries through the conda package, runtime bootstrap through the
// installer package.
package provision

import (
	"context"
	"fmt"

	"github.com/mmr-tortoise/stagehand/internal/conda"
	"github.com/mmr-tortoise/stagehand/internal/installer"
	"github.com/mmr-tortoise/stagehand/internal/model"
)

// HostSystem implements System against the actual host. It discovers
// the conda binary lazily: on a clean host the conda Manager does not
// exist until BootstrapRuntime has run.
type HostSystem struct {
	// condaBinary is an explicit binary override from configuration.
	// Empty means discover via PATH and well-known prefixes.
	condaBinary string

	// bootstrapOpts configures the installer when the runtime is absent.
	bootstrapOpts installer.Options

	mgr *conda.Manager
}

// NewHostSystem creates a HostSystem. condaBinary may be empty;
// bootstrapOpts must carry at least the install prefix.
func NewHostSystem(condaBinary string, bootstrapOpts installer.Options) *HostSystem {
	return &HostSystem{
		condaBinary:   condaBinary,
		bootstrapOpts: bootstrapOpts,
	}
}

// RuntimePresent locates the conda binary and, when found, verifies it
// answers --version. A binary that exists but cannot report a version
// is a broken installation: that is surfaced as an error so the chain
// fails loudly instead of bootstrapping a second conda next to it.
func (h *HostSystem) RuntimePresent(ctx context.Context) (bool, string, error) {
	binary := conda.Locate(h.condaBinary)
	if binary == "" {
		return false, "", nil
	}

	h.mgr = conda.NewManager(binary)
	version, err := h.mgr.Version(ctx)
	if err != nil {
		return false, "", err
	}
	return true, version, nil
}

// BootstrapRuntime downloads and runs the conda installer, then points
// the Manager at the fresh binary.
func (h *HostSystem) BootstrapRuntime(ctx context.Context) (string, error) {
	b, err := installer.New(h.bootstrapOpts)
	if err != nil {
		return "", err
	}

	binary, err := b.Install(ctx)
	if err != nil {
		return "", err
	}

	h.mgr = conda.NewManager(binary)
	return fmt.Sprintf("installed from %s to %s", b.URL(), binary), nil
}

// EnvExists implements System.
func (h *HostSystem) EnvExists(ctx context.Context, name string) (bool, error) {
	mgr, err := h.manager()
	if err != nil {
		return false, err
	}
	return mgr.EnvExists(ctx, name)
}

// CreateEnv implements System.
func (h *HostSystem) CreateEnv(ctx context.Context, name, python string) error {
	mgr, err := h.manager()
	if err != nil {
		return err
	}
	return mgr.CreateEnv(ctx, name, python)
}

// InstalledPackages implements System.
func (h *HostSystem) InstalledPackages(ctx context.Context, env string) (map[string]string, error) {
	mgr, err := h.manager()
	if err != nil {
		return nil, err
	}
	return mgr.InstalledPackages(ctx, env)
}

// InstallPackage implements System.
func (h *HostSystem) InstallPackage(ctx context.Context, env string, spec model.PackageSpec) error {
	mgr, err := h.manager()
	if err != nil {
		return err
	}
	return mgr.InstallPackage(ctx, env, spec)
}

// Manager exposes the resolved conda Manager for the launch path,
// which reuses the same binary the chain converged with. Returns nil
// until the runtime step has run.
func (h *HostSystem) Manager() *conda.Manager {
	return h.mgr
}

// manager guards the environment and package methods. The engine's
// step ordering makes this unreachable in practice; the error exists
// so a misuse fails with a clear message instead of a nil dereference.
func (h *HostSystem) manager() (*conda.Manager, error) {
	if h.mgr == nil {
		return nil, model.NewCLIError(model.ExitCondaUnavailable, "conda runtime is not available")
	}
	return h.mgr, nil
}
