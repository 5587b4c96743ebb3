// up.go implements the "stagehand up" command.
//
// The up command is the primary user-facing operation. It walks the full
// provisioning chain and then hands off to the app, replacing the shell
// script a deployment would otherwise need.
//
// Orchestration steps:
//  1. Load tool configuration and resolve the manifest
//  2. Validate the manifest
//  3. Resolve the app port across the precedence chain
//  4. Run the converge engine: runtime, environment, packages
//  5. Launch the front-end (host process or Docker container)
//  6. Output results (text or JSON)
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stagehand/internal/config"
	"github.com/mmr-tortoise/stagehand/internal/docker"
	"github.com/mmr-tortoise/stagehand/internal/installer"
	"github.com/mmr-tortoise/stagehand/internal/launch"
	"github.com/mmr-tortoise/stagehand/internal/manifest"
	"github.com/mmr-tortoise/stagehand/internal/model"
	"github.com/mmr-tortoise/stagehand/internal/port"
	"github.com/mmr-tortoise/stagehand/internal/provision"
)

// upFlags holds the flag values for the up command.
// These are bound to cobra flags in NewUpCommand.
type upFlags struct {
	manifestPath string // --manifest: explicit manifest path
	port         int    // --port: app port override
	python       string // --python: interpreter version override
	noLaunch     bool   // --no-launch: provision only
	container    bool   // --container: containerized launch
}

// NewUpCommand creates the "up" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewUpCommand() *cobra.Command {
	flags := &upFlags{}

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Provision the runtime, environment, and packages, then launch the app",
		Long: `Converge the host onto the manifest's declared state and launch the app.

The command walks a fixed chain, installing only what is missing:
  - conda runtime (bootstrapped from the official installer if absent)
  - the manifest's isolated environment
  - each declared package, in manifest order

Already-satisfied steps are skipped with a notice, so a second run on a
converged host installs nothing. The first failure stops the chain and
nothing after it runs, including the launch.

Examples:
  stagehand up
  stagehand up --manifest deploy/stagehand.json
  stagehand up --port 9200
  stagehand up --no-launch
  stagehand up --container`,

		// No positional arguments: everything comes from the manifest.
		Args: cobra.NoArgs,

		// RunE is used instead of Run so we can return errors. Cobra will
		// pass them to the Execute error handler in root.go.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd.Context(), flags)
		},
	}

	// Register command-specific flags.
	cmd.Flags().StringVar(&flags.manifestPath, "manifest", "", "Manifest path (default: stagehand.{json,yaml,yml} in the current directory)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "App port (overrides PORT env, config, and manifest)")
	cmd.Flags().StringVar(&flags.python, "python", "", "Python version for environment creation (overrides manifest)")
	cmd.Flags().BoolVar(&flags.noLaunch, "no-launch", false, "Provision only, don't launch the app")
	cmd.Flags().BoolVar(&flags.container, "container", false, "Launch in a Docker container instead of on the host")

	return cmd
}

// runUp is the main orchestration function for the up command.
// It coordinates configuration, the converge engine, and the launch.
func runUp(ctx context.Context, flags *upFlags) error {
	// Step 1: Load tool configuration and resolve the manifest.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to get current directory", err)
	}

	m, err := resolveManifest(cwd, flags.manifestPath, cfg)
	if err != nil {
		return err
	}
	VerboseLog("Manifest: %s", m.Source())

	// Step 2: Apply flag overrides, then validate.
	if flags.python != "" {
		m.Environment.Python = flags.python
	}
	if err := validateManifest(m); err != nil {
		return err
	}
	VerboseLog("Environment: %s (python %s)", m.Environment.Name, m.Environment.Python)

	// Step 3: Resolve the app port across the precedence chain.
	appPort, portSource, err := resolveAppPort(flags.port, cfg, m)
	if err != nil {
		return err
	}
	VerboseLog("App port: %d (from %s)", appPort, portSource)

	// Step 4: Run the converge engine.
	sys := provision.NewHostSystem(cfg.Conda.Binary, bootstrapOptions(cfg, m))
	prov, err := provision.New(sys, m)
	if err != nil {
		return err
	}

	if !IsJSONOutput() {
		fmt.Printf("Provisioning %q from %s\n", m.Environment.Name, m.Source())
		// Step lines print live as each step completes, so a slow
		// install shows progress instead of a silent hang.
		prov.Notify = printStepLine
	}

	report, runErr := prov.Run(ctx)
	if !IsJSONOutput() {
		printRunSummary(report)
	}
	if runErr != nil {
		printUpResult(report, nil)
		return runErr
	}

	// Step 5: Launch, unless provisioning-only was requested.
	if flags.noLaunch {
		printUpResult(report, nil)
		VerboseLog("Skipping launch (--no-launch)")
		return nil
	}

	if flags.container {
		app, launchErr := launchContainer(ctx, m, projectDir(m, cwd), appPort, report.RunID)
		if launchErr != nil {
			printUpResult(report, nil)
			return launchErr
		}
		printUpResult(report, app)
		if !IsJSONOutput() {
			printContainerResult(app)
		}
		return nil
	}

	// Host launch blocks until the app exits, so the machine-readable
	// result goes out first.
	printUpResult(report, nil)
	return launchHost(ctx, sys, m, appPort)
}

// launchHost runs the app in the foreground inside the provisioned
// environment, reusing the conda binary the converge pass located.
func launchHost(ctx context.Context, sys *provision.HostSystem, m *manifest.Manifest, appPort int) error {
	mgr := sys.Manager()
	if mgr == nil {
		return model.NewCLIError(model.ExitCondaUnavailable,
			"conda runtime not available after provisioning")
	}
	VerboseLog("Launching via %s", mgr.Binary())

	spec := launch.FromManifest(m.App, appPort)
	if !IsJSONOutput() {
		fmt.Printf("\nLaunching %q in %q on http://localhost:%d\n",
			strings.Join(m.App.Command, " "), m.Environment.Name, appPort)
	}

	return launch.NewRunner(mgr).Launch(ctx, m.Environment.Name, spec)
}

// launchContainer builds (or reuses) the app image and runs it detached,
// publishing appPort to the fixed in-container server port. Any previous
// container for the same app is replaced.
func launchContainer(ctx context.Context, m *manifest.Manifest, projDir string, appPort int, runID string) (*model.AppContainer, error) {
	if m.Container == nil {
		return nil, model.NewCLIError(model.ExitManifestError,
			"manifest has no container section; cannot launch with --container")
	}

	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return nil, err
	}
	VerboseLog("Connected to Docker daemon")

	imageTag := m.Container.Image
	if imageTag == "" {
		imageTag = docker.ImageTag(m.Name)
		if !IsJSONOutput() {
			fmt.Printf("\nBuilding image %s\n", imageTag)
		}
		VerboseLog("Building %s from %s (context %s)", imageTag, m.Container.Dockerfile, projDir)
		buildErr := docker.BuildImage(ctx, docker.BuildOptions{
			Tag:        imageTag,
			Dockerfile: m.Container.Dockerfile,
			ContextDir: filepath.Join(projDir, m.Container.Context),
		})
		if buildErr != nil {
			return nil, buildErr
		}
	} else {
		VerboseLog("Using prebuilt image %s", imageTag)
	}

	// Replace any previous container for this app before the port
	// preflight, since the previous container may be the one holding
	// the port.
	existing, err := docker.ContainersForApp(ctx, cli, m.Name)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		VerboseLog("Removing previous container %s", c.ContainerName)
		if err := docker.RemoveContainer(ctx, cli, c.ContainerID, true); err != nil {
			return nil, err
		}
	}

	if err := port.NewScanner().Preflight(appPort); err != nil {
		return nil, err
	}

	app := &model.AppContainer{
		App:         m.Name,
		Environment: m.Environment.Name,
		Port:        appPort,
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := docker.RunAppContainer(ctx, app, imageTag); err != nil {
		return nil, err
	}

	return app, nil
}

// printStepLine renders one converge step as it completes. The status
// badge goes last so lipgloss color codes never disturb column widths.
func printStepLine(r model.StepResult) {
	line := fmt.Sprintf("  %-12s %-22s %s", r.Kind, r.Name, renderStatus(r.Status))
	if r.Detail != "" {
		line += "  (" + r.Detail + ")"
	}
	fmt.Println(line)
}

// printRunSummary prints the one-line human summary after the step lines.
func printRunSummary(report *model.Report) {
	if report == nil {
		return
	}

	var present, pending, failed int
	for _, s := range report.Steps {
		switch s.Status {
		case model.StatusPresent:
			present++
		case model.StatusPending:
			pending++
		case model.StatusFailed:
			failed++
		}
	}

	summary := fmt.Sprintf("\n%d applied, %d already present", report.Applied(), present)
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	if pending > 0 {
		summary += fmt.Sprintf(", %d pending", pending)
	}
	fmt.Printf("%s  (run %s)\n", summary, report.RunID)
}

// printUpResult emits the machine-readable result document: the converge
// report plus container details when container mode started one. Human
// output is handled by the live step lines and printRunSummary instead.
func printUpResult(report *model.Report, app *model.AppContainer) {
	if !IsJSONOutput() {
		return
	}

	result := struct {
		Report    *model.Report       `json:"report"`
		Container *model.AppContainer `json:"container,omitempty"`
	}{Report: report, Container: app}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printContainerResult prints the human-readable container launch result.
func printContainerResult(app *model.AppContainer) {
	fmt.Printf("\nContainer %s started\n", docker.ContainerName(app.App))
	fmt.Printf("  App: http://localhost:%d\n", app.Port)
}

// loadConfig loads tool configuration, wrapping failures in a CLI error.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, model.WrapCLIError(model.ExitGeneralError,
			"failed to load configuration", err)
	}
	return cfg, nil
}

// resolveManifest finds the manifest for this invocation: the explicit
// --manifest path first, then a project manifest in dir, then the
// config-level default manifest, then the built-in default.
func resolveManifest(dir, explicit string, cfg config.Config) (*manifest.Manifest, error) {
	if explicit == "" && manifest.Find(dir) == "" && cfg.App.Manifest != "" {
		VerboseLog("Using config-level manifest %s", cfg.App.Manifest)
		return manifest.Load(cfg.App.Manifest)
	}
	return manifest.Resolve(dir, explicit)
}

// validateManifest folds all validation findings into a single manifest
// error so the user sees every problem at once.
func validateManifest(m *manifest.Manifest) error {
	errs := manifest.Validate(m)
	if len(errs) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(errs))
	for i := range errs {
		msgs = append(msgs, errs[i].Error())
	}
	return model.NewCLIError(model.ExitManifestError,
		fmt.Sprintf("invalid manifest (%s): %s", m.Source(), strings.Join(msgs, "; ")))
}

// resolveAppPort applies the port precedence chain and wraps an invalid
// PORT value in a CLI error.
func resolveAppPort(flagPort int, cfg config.Config, m *manifest.Manifest) (int, string, error) {
	appPort, source, err := config.ResolvePort(flagPort, cfg.App.Port, m.App.Port)
	if err != nil {
		return 0, "", model.WrapCLIError(model.ExitGeneralError, "invalid port configuration", err)
	}
	return appPort, source, nil
}

// bootstrapOptions assembles installer options from config, with a
// manifest-level installer section taking precedence. The section
// replaces URL and digest as a unit: a config digest only describes the
// config URL, so mixing the two layers would pin the wrong checksum.
func bootstrapOptions(cfg config.Config, m *manifest.Manifest) installer.Options {
	opts := installer.Options{
		URL:    cfg.Installer.URL,
		SHA256: cfg.Installer.SHA256,
		Prefix: cfg.CondaRoot(),
	}
	if m.Installer != nil {
		opts.URL = m.Installer.URL
		opts.SHA256 = m.Installer.SHA256
	}
	return opts
}

// projectDir returns the directory manifest-relative paths resolve
// against: the manifest's own directory, or the working directory when
// the built-in default manifest is in play.
func projectDir(m *manifest.Manifest, cwd string) string {
	if m.Path != "" {
		return filepath.Dir(m.Path)
	}
	return cwd
}
