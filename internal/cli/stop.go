// stop.go implements the "stagehand stop" command.
//
// The stop command gracefully stops the managed app container started by
// "stagehand up --container", or with --all every managed container on
// the host. Containers are stopped but not removed, so they can be
// started again or cleaned up with "stagehand remove". Host-mode
// launches run in the foreground and are stopped by interrupting them;
// this command is container mode's counterpart.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/stagehand/internal/docker"
	"github.com/mmr-tortoise/stagehand/internal/model"
)

// stopFlags holds the flag values for the stop command.
type stopFlags struct {
	manifestPath string // --manifest: explicit manifest path
	all          bool   // --all: stop every managed container, not just this app's
}

// NewStopCommand creates the "stop" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStopCommand() *cobra.Command {
	flags := &stopFlags{}

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the managed app container",
		Long: `Stop the app container started by "stagehand up --container".

The container is gracefully stopped but not removed, preserving its
state. Use "stagehand remove" for full cleanup.

With --all, every stagehand-managed container on the host is stopped,
regardless of app; no manifest is consulted.

Examples:
  stagehand stop
  stagehand stop --all
  stagehand stop --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.manifestPath, "manifest", "", "Manifest path (default: stagehand.{json,yaml,yml} in the current directory)")
	cmd.Flags().BoolVar(&flags.all, "all", false, "Stop every managed container, not just this app's")

	return cmd
}

// runStop is the main logic function for the stop command.
func runStop(ctx context.Context, flags *stopFlags) error {
	if flags.all {
		return stopAll(ctx)
	}

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

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	containers, err := docker.ContainersForApp(ctx, cli, m.Name)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		return model.NewCLIError(model.ExitEnvNotFound,
			fmt.Sprintf("no managed container found for app %q", m.Name))
	}

	// Stopping an already-stopped container is a no-op in the Docker
	// API, so every managed container gets the same treatment.
	for _, c := range containers {
		VerboseLog("Stopping container %s (%s)...", c.ContainerName, shortID(c.ContainerID))
		if err := docker.StopContainer(ctx, cli, c.ContainerID); err != nil {
			return err
		}
	}

	printStopResult(m.Name, len(containers))
	return nil
}

// stopAll stops every managed container on the host, walking apps in
// name order so repeated runs report identically.
func stopAll(ctx context.Context) error {
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		return model.NewCLIError(model.ExitEnvNotFound, "no managed containers found")
	}

	groups := docker.GroupContainersByApp(containers)
	for _, app := range sortedAppNames(groups) {
		VerboseLog("Stopping app %q (%d container(s))...", app, len(groups[app]))
		for _, c := range groups[app] {
			VerboseLog("Stopping container %s (%s)...", c.ContainerName, shortID(c.ContainerID))
			if err := docker.StopContainer(ctx, cli, c.ContainerID); err != nil {
				return err
			}
		}
	}

	printStopAllResult(groups, len(containers))
	return nil
}

// sortedAppNames returns the grouped apps' names in ascending order.
func sortedAppNames(groups map[string][]model.ContainerInfo) []string {
	apps := make([]string, 0, len(groups))
	for app := range groups {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// shortID truncates a container ID to the 12-character form Docker's own
// CLI displays.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// printStopResult outputs the stop command result in text or JSON format.
func printStopResult(app string, containerCount int) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"app":            app,
			"action":         "stopped",
			"containerCount": containerCount,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Stopped app %q (%d container(s))\n", app, containerCount)
}

// printStopAllResult outputs the stop --all result in text or JSON format.
func printStopAllResult(groups map[string][]model.ContainerInfo, total int) {
	if IsJSONOutput() {
		counts := make(map[string]int, len(groups))
		for app, group := range groups {
			counts[app] = len(group)
		}
		result := map[string]interface{}{
			"action":         "stopped",
			"apps":           counts,
			"containerCount": total,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	for _, app := range sortedAppNames(groups) {
		fmt.Printf("Stopped app %q (%d container(s))\n", app, len(groups[app]))
	}
}
