// status.go implements the "stagehand status" command.
//
// The status command reports how far the host has drifted from the
// manifest without changing anything: runtime, environment, and package
// presence, whether the app port is free, and, when the manifest has a
// container section, Docker daemon reachability and managed container
// state.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stagehand/internal/docker"
	"github.com/mmr-tortoise/stagehand/internal/model"
	"github.com/mmr-tortoise/stagehand/internal/port"
	"github.com/mmr-tortoise/stagehand/internal/provision"
)

// statusFlags holds the flag values for the status command.
type statusFlags struct {
	manifestPath string // --manifest: explicit manifest path
	port         int    // --port: app port override
}

// NewStatusCommand creates the "status" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStatusCommand() *cobra.Command {
	flags := &statusFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report provisioning state without changing anything",
		Long: `Check each provisioning step against the host and report its state.

Nothing is installed or removed. Steps that cannot be checked because an
earlier prerequisite is absent (packages without their environment, for
example) are reported as missing without touching the host.

Examples:
  stagehand status
  stagehand status --json
  stagehand status --manifest deploy/stagehand.json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.manifestPath, "manifest", "", "Manifest path (default: stagehand.{json,yaml,yml} in the current directory)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "App port (overrides PORT env, config, and manifest)")

	return cmd
}

// statusResult aggregates everything the status command reports. The
// struct doubles as the JSON output document.
type statusResult struct {
	// Manifest names the manifest the report was checked against.
	Manifest string `json:"manifest"`

	// Environment is the manifest's conda environment name.
	Environment string `json:"environment"`

	// CondaVersion is the runtime's reported version, empty when the
	// runtime is missing.
	CondaVersion string `json:"condaVersion,omitempty"`

	// Port describes the resolved app port and whether it is free.
	Port statusPort `json:"port"`

	// Steps holds the per-step presence results from the read-only pass.
	Steps []model.StepResult `json:"steps"`

	// Docker is only populated when the manifest has a container section.
	Docker *statusDocker `json:"docker,omitempty"`
}

// statusPort describes the resolved app port in a status report.
type statusPort struct {
	Value     int    `json:"value"`
	Source    string `json:"source"`
	Available bool   `json:"available"`
}

// statusDocker describes Docker state in a status report.
type statusDocker struct {
	// Reachable is true when the daemon answered a ping.
	Reachable bool `json:"reachable"`

	// Error carries the reachability failure, if any.
	Error string `json:"error,omitempty"`

	// App is the managed app rebuilt from container labels, nil when no
	// managed container exists for the manifest's app.
	App *model.AppContainer `json:"app,omitempty"`
}

// runStatus is the main logic function for the status command.
func runStatus(ctx context.Context, flags *statusFlags) error {
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
	if err := validateManifest(m); err != nil {
		return err
	}

	appPort, portSource, err := resolveAppPort(flags.port, cfg, m)
	if err != nil {
		return err
	}

	// Read-only presence pass over the provisioning chain.
	sys := provision.NewHostSystem(cfg.Conda.Binary, bootstrapOptions(cfg, m))
	prov, err := provision.New(sys, m)
	if err != nil {
		return err
	}

	report, err := prov.Check(ctx)
	if err != nil {
		return err
	}

	result := statusResult{
		Manifest:    m.Source(),
		Environment: m.Environment.Name,
		Port: statusPort{
			Value:     appPort,
			Source:    portSource,
			Available: port.NewScanner().IsPortAvailable(appPort),
		},
		Steps: report.Steps,
	}

	// The check pass located the conda binary if one exists; reuse it
	// for the version string instead of probing again.
	if mgr := sys.Manager(); mgr != nil {
		if version, verErr := mgr.Version(ctx); verErr == nil {
			result.CondaVersion = version
		}
	}

	// Docker state matters only for manifests that can launch in a
	// container. Daemon unreachability is reported, not fatal: status
	// must always produce a report.
	if m.Container != nil {
		result.Docker = checkDocker(ctx, m.Name)
	}

	printStatusResult(&result)
	return nil
}

// checkDocker probes the Docker daemon and rebuilds the managed app
// view from container labels. All failures are folded into the result.
func checkDocker(ctx context.Context, app string) *statusDocker {
	status := &statusDocker{}

	cli, err := docker.NewClient()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Reachable = true

	containers, err := docker.ContainersForApp(ctx, cli, app)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	if len(containers) > 0 {
		appView, buildErr := docker.BuildAppContainer(app, containers)
		if buildErr != nil {
			status.Error = buildErr.Error()
			return status
		}
		status.App = appView
	}

	return status
}

// printStatusResult outputs the status report in text or JSON format.
func printStatusResult(result *statusResult) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("%s  %s\n", renderHeading("Manifest:"), result.Manifest)
	fmt.Printf("%s  %s\n", renderHeading("Environment:"), result.Environment)
	if result.CondaVersion != "" {
		fmt.Printf("%s  %s\n", renderHeading("Conda:"), result.CondaVersion)
	}
	fmt.Printf("%s  %d (from %s) %s\n", renderHeading("App port:"),
		result.Port.Value, result.Port.Source, formatPortAvailability(result.Port.Available))

	fmt.Println()
	for _, step := range result.Steps {
		printStepLine(step)
	}

	if result.Docker != nil {
		fmt.Println()
		fmt.Printf("%s  %s\n", renderHeading("Docker:"), formatDockerStatus(result.Docker))
		if app := result.Docker.App; app != nil {
			for _, c := range app.Containers {
				fmt.Printf("  %s  %s  (port %d)\n", c.ContainerName, c.Status, app.Port)
			}
		}
	}
}

// formatPortAvailability renders the free/busy marker for the app port.
func formatPortAvailability(available bool) string {
	if available {
		return "free"
	}
	return "busy"
}

// formatDockerStatus renders the daemon reachability line.
func formatDockerStatus(d *statusDocker) string {
	if d.Reachable {
		if d.App == nil {
			return "reachable, no managed containers"
		}
		state := "stopped"
		if d.App.Running() {
			state = "running"
		}
		return fmt.Sprintf("reachable, %d managed container(s), app %s",
			len(d.App.Containers), state)
	}
	return "unreachable (" + d.Error + ")"
}
