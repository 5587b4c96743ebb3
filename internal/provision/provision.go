package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmr-tortoise/stagehand/internal/manifest"
	"github.com/mmr-tortoise/stagehand/internal/model"
)

// System is the host surface the provisioner converges. Implementations
// query and mutate real host state; tests substitute an in-memory fake.
//
// The engine calls these in a fixed order: RuntimePresent (and
// BootstrapRuntime if absent) always comes first, so the environment
// and package methods may assume a working runtime.
type System interface {
	// RuntimePresent reports whether the conda runtime is installed.
	// The detail string describes the installation (version) for step
	// output. An error means the runtime exists but is broken, which
	// fails the chain rather than triggering a re-install over it.
	RuntimePresent(ctx context.Context) (bool, string, error)

	// BootstrapRuntime installs the runtime and returns a detail string
	// describing where it went.
	BootstrapRuntime(ctx context.Context) (string, error)

	// EnvExists reports whether the named environment exists.
	EnvExists(ctx context.Context, name string) (bool, error)

	// CreateEnv creates the named environment with the given Python.
	CreateEnv(ctx context.Context, name, python string) error

	// InstalledPackages returns the normalized name → version map for
	// an environment. Called fresh for each package step, so a package
	// that arrived as a dependency of an earlier install is correctly
	// seen as present.
	InstalledPackages(ctx context.Context, env string) (map[string]string, error)

	// InstallPackage installs one package into the environment.
	InstallPackage(ctx context.Context, env string, spec model.PackageSpec) error
}

// Step is one planned unit of the chain: a presence check paired with
// the apply action that runs when the check finds the target absent.
type Step struct {
	// Kind is the chain stage this step belongs to.
	Kind model.StepKind

	// Name identifies the step target for reports.
	Name string

	check func(ctx context.Context) (present bool, detail string, err error)
	apply func(ctx context.Context) (detail string, err error)
}

// Provisioner executes the provisioning chain for one manifest against
// one host.
type Provisioner struct {
	sys   System
	env   manifest.Environment
	specs []model.PackageSpec

	// Notify, when set, is called after each step completes (in every
	// status, including pending). The CLI uses it to print progress
	// while long installs run.
	Notify func(model.StepResult)
}

// New creates a Provisioner for a manifest. The package list is parsed
// up front so a malformed entry fails before any subprocess runs.
func New(sys System, m *manifest.Manifest) (*Provisioner, error) {
	specs, err := m.PackageSpecs()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitManifestError, "invalid manifest package list", err)
	}
	return &Provisioner{
		sys:   sys,
		env:   m.Environment,
		specs: specs,
	}, nil
}

// Plan returns the ordered step chain: runtime, environment, then one
// step per package in manifest order.
func (p *Provisioner) Plan() []Step {
	steps := make([]Step, 0, 2+len(p.specs))

	steps = append(steps, Step{
		Kind: model.KindRuntime,
		Name: "conda",
		check: func(ctx context.Context) (bool, string, error) {
			return p.sys.RuntimePresent(ctx)
		},
		apply: func(ctx context.Context) (string, error) {
			return p.sys.BootstrapRuntime(ctx)
		},
	})

	steps = append(steps, Step{
		Kind: model.KindEnvironment,
		Name: p.env.Name,
		check: func(ctx context.Context) (bool, string, error) {
			exists, err := p.sys.EnvExists(ctx, p.env.Name)
			return exists, "", err
		},
		apply: func(ctx context.Context) (string, error) {
			if err := p.sys.CreateEnv(ctx, p.env.Name, p.env.Python); err != nil {
				return "", err
			}
			return "created with python=" + p.env.Python, nil
		},
	})

	for _, spec := range p.specs {
		spec := spec
		steps = append(steps, Step{
			Kind: model.KindPackage,
			Name: spec.Name,
			check: func(ctx context.Context) (bool, string, error) {
				installed, err := p.sys.InstalledPackages(ctx, p.env.Name)
				if err != nil {
					return false, "", err
				}
				version, ok := installed[spec.NormalizedName()]
				if !ok {
					return false, "", nil
				}
				// A version pin treats a different installed version
				// as absent, so the install step converges it.
				if spec.Version != "" && version != spec.Version {
					return false, fmt.Sprintf("installed %s, want %s", version, spec.Version), nil
				}
				if version != "" {
					return true, "version " + version, nil
				}
				return true, "", nil
			},
			apply: func(ctx context.Context) (string, error) {
				if err := p.sys.InstallPackage(ctx, p.env.Name, spec); err != nil {
					return "", err
				}
				return "installed " + spec.String(), nil
			},
		})
	}

	return steps
}

// Run executes the chain: each step's presence check, then its apply
// action only when the target is absent. The first error marks that
// step failed and every later step pending, and no further check or
// apply runs.
//
// The returned report is always complete (one result per planned step)
// even on failure; the error is the failing step's error.
func (p *Provisioner) Run(ctx context.Context) (*model.Report, error) {
	report := p.newReport()
	steps := p.Plan()

	var firstErr error
	for _, step := range steps {
		if firstErr != nil {
			p.record(report, model.StepResult{
				Kind:   step.Kind,
				Name:   step.Name,
				Status: model.StatusPending,
			})
			continue
		}

		start := time.Now()
		result := model.StepResult{Kind: step.Kind, Name: step.Name}

		present, detail, err := step.check(ctx)
		switch {
		case err != nil:
			result.Status = model.StatusFailed
			result.Detail = err.Error()
			firstErr = err
		case present:
			result.Status = model.StatusPresent
			result.Detail = detail
		default:
			applyDetail, applyErr := step.apply(ctx)
			if applyErr != nil {
				result.Status = model.StatusFailed
				result.Detail = applyErr.Error()
				firstErr = applyErr
			} else {
				result.Status = model.StatusApplied
				result.Detail = applyDetail
			}
		}

		result.Duration = time.Since(start)
		p.record(report, result)
	}

	return report, firstErr
}

// Check executes the read-only pass used by `stagehand status`: the
// same chain walk, but absent targets are reported as missing instead
// of applied, and nothing on the host changes.
//
// Unlike Run, a check error does not stop the walk where it can safely
// continue: a missing runtime simply means the environment and every
// package are missing too, which is exactly what status should say.
func (p *Provisioner) Check(ctx context.Context) (*model.Report, error) {
	report := p.newReport()
	steps := p.Plan()

	// Once a prerequisite is absent, later presence checks cannot
	// succeed (no runtime → no environment → no packages), so they are
	// recorded missing without touching the host.
	prerequisiteMissing := false
	var firstErr error

	for _, step := range steps {
		if prerequisiteMissing || firstErr != nil {
			p.record(report, model.StepResult{
				Kind:   step.Kind,
				Name:   step.Name,
				Status: model.StatusMissing,
			})
			continue
		}

		start := time.Now()
		result := model.StepResult{Kind: step.Kind, Name: step.Name}

		present, detail, err := step.check(ctx)
		switch {
		case err != nil:
			result.Status = model.StatusFailed
			result.Detail = err.Error()
			firstErr = err
		case present:
			result.Status = model.StatusPresent
			result.Detail = detail
		default:
			result.Status = model.StatusMissing
			result.Detail = detail
			// Runtime and environment are prerequisites for every
			// later check; a missing package is not.
			if step.Kind == model.KindRuntime || step.Kind == model.KindEnvironment {
				prerequisiteMissing = true
			}
		}

		result.Duration = time.Since(start)
		p.record(report, result)
	}

	return report, firstErr
}

// newReport starts a report for one pass over the chain.
func (p *Provisioner) newReport() *model.Report {
	return &model.Report{
		RunID:       uuid.NewString(),
		Environment: p.env.Name,
		StartedAt:   time.Now().UTC(),
	}
}

// record appends a step result and forwards it to the Notify callback.
func (p *Provisioner) record(report *model.Report, result model.StepResult) {
	report.Steps = append(report.Steps, result)
	if p.Notify != nil {
		p.Notify(result)
	}
}
