// remove.go implements the "stagehand remove" command.
//
// The remove command deletes a conda environment and any managed
// containers that were provisioned against it. The conda runtime itself
// is never removed; a later "stagehand up" recreates the environment
// from the manifest.
//
// By default, the command prompts for confirmation before proceeding.
// The --force flag skips the prompt and also force-removes containers
// that are still running.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stagehand/internal/conda"
	"github.com/mmr-tortoise/stagehand/internal/docker"
	"github.com/mmr-tortoise/stagehand/internal/model"
)

// removeFlags holds the flag values for the remove command.
type removeFlags struct {
	// force skips the interactive confirmation prompt and force-removes
	// running containers.
	force bool
}

// NewRemoveCommand creates the "remove" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRemoveCommand() *cobra.Command {
	flags := &removeFlags{}

	cmd := &cobra.Command{
		Use:   "remove <environment>",
		Short: "Remove a conda environment and its managed containers",
		Long: `Remove a conda environment along with any app containers that were
provisioned against it.

The conda runtime is left in place. Unless --force is specified, the
command prompts for confirmation, and running containers are not
touched.

Examples:
  stagehand remove deustogpt
  stagehand remove --force deustogpt`,

		// Exactly one positional argument (environment name) is required.
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Remove without confirmation, killing running containers")

	return cmd
}

// runRemove is the main logic function for the remove command.
// It verifies the environment exists, optionally prompts, removes the
// containers, then removes the environment.
func runRemove(ctx context.Context, envName string, flags *removeFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	binary := conda.Locate(cfg.Conda.Binary)
	if binary == "" {
		return model.NewCLIError(model.ExitCondaUnavailable,
			"conda runtime not found; nothing to remove")
	}

	mgr := conda.NewManager(binary)
	envs, err := mgr.ListEnvs(ctx)
	if err != nil {
		return err
	}

	if !containsEnv(envs, envName) {
		return envNotFoundError(envName, envs)
	}

	// The base environment is the runtime itself. Removing it would
	// leave a broken installation behind.
	for _, e := range envs {
		if e.Name == envName && e.IsBase {
			return model.NewCLIError(model.ExitGeneralError,
				"refusing to remove the base environment")
		}
	}

	// Containers are cleaned up best-effort: a host that never used
	// container mode has no Docker daemon to ask.
	cli, containers := managedContainersForEnv(ctx, envName)
	if cli != nil {
		defer func() { _ = cli.Close() }()
	}

	if !flags.force {
		confirmed, promptErr := promptRemoveConfirmation(envName, len(containers))
		if promptErr != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", promptErr)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitGeneralError, "operation cancelled by user")
		}
	}

	for _, c := range containers {
		VerboseLog("Removing container %s (%s)...", c.ContainerName, shortID(c.ContainerID))
		if err := docker.RemoveContainer(ctx, cli, c.ContainerID, flags.force); err != nil {
			return err
		}
	}

	VerboseLog("Removing conda environment %q...", envName)
	if err := mgr.RemoveEnv(ctx, envName); err != nil {
		return err
	}

	printRemoveResult(envName, len(containers))
	return nil
}

// managedContainersForEnv lists the managed containers provisioned
// against an environment. Docker being unavailable is not an error here:
// environments on container-less hosts must still be removable.
func managedContainersForEnv(ctx context.Context, envName string) (*docker.Client, []model.ContainerInfo) {
	cli, err := docker.NewClient()
	if err != nil {
		VerboseLog("Docker unavailable, skipping container cleanup: %v", err)
		return nil, nil
	}

	containers, err := docker.ContainersForEnvironment(ctx, cli, envName)
	if err != nil {
		VerboseLog("Could not list containers: %v", err)
		_ = cli.Close()
		return nil, nil
	}

	return cli, containers
}

// promptRemoveConfirmation asks the user to confirm the remove operation.
// It reads a single line from stdin and checks for "y" or "yes".
// Returns true if the user confirmed, false otherwise.
func promptRemoveConfirmation(envName string, containerCount int) (bool, error) {
	fmt.Printf("About to remove conda environment %q:\n", envName)
	fmt.Printf("  - the environment and all its packages will be deleted\n")
	if containerCount > 0 {
		fmt.Printf("  - %d managed container(s) will be removed\n", containerCount)
	}
	fmt.Print("\nContinue? [y/N] ")

	// bufio.Scanner handles different line endings across platforms
	// (LF on Unix, CRLF on Windows).
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// Closed stdin reads as "no"; an actual read error is reported.
	if err := scanner.Err(); err != nil {
		return false, err
	}

	return false, nil
}

// printRemoveResult outputs the remove command result in text or JSON format.
func printRemoveResult(envName string, containerCount int) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"environment":    envName,
			"action":         "removed",
			"containerCount": containerCount,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Removed conda environment %q\n", envName)
	if containerCount > 0 {
		fmt.Printf("  Removed %d container(s)\n", containerCount)
	}
}
