// launch.go implements the "stagehand launch" command.
//
// The launch command starts the app without provisioning anything. It is
// the fast path for a converged host: skip the presence checks and go
// straight to the front-end. If the environment turns out to be missing,
// the command fails with a nearest-name suggestion instead of letting
// conda produce an opaque activation error.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stagehand/internal/conda"
	"github.com/mmr-tortoise/stagehand/internal/launch"
	"github.com/mmr-tortoise/stagehand/internal/model"
)

// maxSuggestionDistance caps how far a name can be from an existing
// environment before "did you mean" suggestions stop being helpful.
const maxSuggestionDistance = 3

// launchFlags holds the flag values for the launch command.
type launchFlags struct {
	manifestPath string // --manifest: explicit manifest path
	port         int    // --port: app port override
}

// NewLaunchCommand creates the "launch" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewLaunchCommand() *cobra.Command {
	flags := &launchFlags{}

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch the app without provisioning",
		Long: `Launch the manifest's front-end in its conda environment.

No provisioning happens: the runtime and environment must already exist,
typically from an earlier "stagehand up". The app runs in the foreground
until stopped.

Examples:
  stagehand launch
  stagehand launch --port 9200`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.manifestPath, "manifest", "", "Manifest path (default: stagehand.{json,yaml,yml} in the current directory)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "App port (overrides PORT env, config, and manifest)")

	return cmd
}

// runLaunch is the main logic function for the launch command.
func runLaunch(ctx context.Context, flags *launchFlags) error {
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
	VerboseLog("App port: %d (from %s)", appPort, portSource)

	binary := conda.Locate(cfg.Conda.Binary)
	if binary == "" {
		return model.NewCLIError(model.ExitCondaUnavailable,
			`conda runtime not found; run "stagehand up" first`)
	}
	VerboseLog("Conda binary: %s", binary)

	mgr := conda.NewManager(binary)
	envs, err := mgr.ListEnvs(ctx)
	if err != nil {
		return err
	}

	if !containsEnv(envs, m.Environment.Name) {
		return envNotFoundError(m.Environment.Name, envs)
	}

	spec := launch.FromManifest(m.App, appPort)
	if !IsJSONOutput() {
		fmt.Printf("Launching %q in %q on http://localhost:%d\n",
			strings.Join(m.App.Command, " "), m.Environment.Name, appPort)
	}

	return launch.NewRunner(mgr).Launch(ctx, m.Environment.Name, spec)
}

// containsEnv reports whether an environment with the given name exists.
func containsEnv(envs []model.CondaEnv, name string) bool {
	for _, e := range envs {
		if e.Name == name {
			return true
		}
	}
	return false
}

// envNotFoundError builds the environment-missing error, attaching a
// nearest-name suggestion when one is close enough to be plausible.
func envNotFoundError(name string, envs []model.CondaEnv) error {
	msg := fmt.Sprintf("environment %q not found", name)
	if hint := nearestEnvName(name, envs); hint != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", hint)
	} else {
		msg += `; run "stagehand up" to create it`
	}
	return model.NewCLIError(model.ExitEnvNotFound, msg)
}

// nearestEnvName returns the existing environment name closest to target
// by edit distance, or "" when nothing is within maxSuggestionDistance.
// Comparison is case-insensitive so a capitalization slip still matches.
func nearestEnvName(target string, envs []model.CondaEnv) string {
	best := ""
	bestDist := maxSuggestionDistance + 1

	lowered := strings.ToLower(target)
	for _, e := range envs {
		d := levenshtein.ComputeDistance(lowered, strings.ToLower(e.Name))
		if d < bestDist {
			bestDist = d
			best = e.Name
		}
	}

	if bestDist > maxSuggestionDistance {
		return ""
	}
	return best
}
