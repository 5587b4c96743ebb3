// container.go implements Docker container lifecycle operations for the
// stagehand CLI's container mode. It provides functions for building the
// app image, running it detached, and listing, stopping, and removing
// containers that are managed by this tool.
//
// All managed containers are identified by the "stagehand.managed-by"
// label, which enables filtering them from unrelated containers on the
// same host.
package docker

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	// Docker API types for container listing results.
	// types.Container is the struct returned by ContainerList.
	"github.com/docker/docker/api/types"

	// container package provides ListOptions, StopOptions, RemoveOptions
	// for Docker container operations.
	"github.com/docker/docker/api/types/container"

	// filters package provides Args type for building Docker API query filters.
	"github.com/docker/docker/api/types/filters"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// ContainerServerPort is the fixed port the app listens on inside the
// container. The image is built around this port: it is EXPOSEd by the
// Dockerfile and injected into the container process via the PORT
// environment variable. Host-side port selection only changes which host
// port is published to it.
const ContainerServerPort = 8501

// ContainerName returns the deterministic Docker container name for an
// app. One container per app keeps stop and remove unambiguous: running
// "up --container" again replaces the previous container instead of
// accumulating stale ones.
func ContainerName(app string) string {
	return "stagehand-" + app
}

// ImageTag returns the Docker image tag used for an app's image.
func ImageTag(app string) string {
	return "stagehand/" + app + ":latest"
}

// BuildOptions describes a Docker image build derived from the manifest's
// container section.
type BuildOptions struct {
	// Tag is the image tag to apply (e.g., "stagehand/deustogpt:latest").
	Tag string

	// Dockerfile is the path to the Dockerfile, relative to ContextDir.
	Dockerfile string

	// ContextDir is the build context directory, typically the project root.
	ContextDir string
}

// BuildImage builds the app image by executing "docker build". The build
// is delegated to the docker CLI rather than the SDK's ImageBuild API
// because the CLI handles build context tarring, .dockerignore, and
// BuildKit integration for free, while the SDK requires reimplementing
// all three.
//
// Returns a CLIError with ExitDockerUnavailable if the command fails.
func BuildImage(ctx context.Context, opts BuildOptions) error {
	args := buildImageArgs(opts)

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = opts.ContextDir

	// CombinedOutput captures both stdout and stderr into a single byte
	// slice, which is useful for error messages.
	output, err := cmd.CombinedOutput()
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerUnavailable,
			fmt.Sprintf("docker build failed for image %q: %s",
				opts.Tag, strings.TrimSpace(string(output))),
			err,
		)
	}

	return nil
}

// buildImageArgs constructs the argument list for "docker build".
// The context directory is passed as "." because BuildImage sets the
// command's working directory to ContextDir, which keeps relative paths
// inside the Dockerfile resolving against the project root.
func buildImageArgs(opts BuildOptions) []string {
	args := []string{"build", "-t", opts.Tag}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	args = append(args, ".")
	return args
}

// RunAppContainer starts the app container using "docker run -d".
//
// The container publishes app.Port on the host to ContainerServerPort
// inside the container, sets PORT so the containerized process binds the
// fixed server port, and applies the full stagehand label set so the
// container can be rediscovered later.
//
// os/exec is used rather than the Docker SDK because the SDK's
// ContainerCreate + ContainerStart workflow requires constructing
// Config/HostConfig structs, while "docker run" accepts the same CLI
// flags users already know from the manifest's Dockerfile workflow.
func RunAppContainer(ctx context.Context, app *model.AppContainer, imageTag string) error {
	containerName := ContainerName(app.App)
	args := runContainerArgs(app, imageTag)

	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerUnavailable,
			fmt.Sprintf("docker run failed for container %q: %s",
				containerName, strings.TrimSpace(string(output))),
			err,
		)
	}

	return nil
}

// runContainerArgs constructs the full argument list for "docker run -d".
// The -d flag runs the container detached so the CLI does not block on
// the app process the way host-mode launch does.
func runContainerArgs(app *model.AppContainer, imageTag string) []string {
	labels := BuildLabels(app)

	args := make([]string, 0, len(labels)*2+10)
	args = append(args, "run", "-d")
	args = append(args, "--name", ContainerName(app.App))
	args = append(args, "-p", fmt.Sprintf("%d:%d", app.Port, ContainerServerPort))
	args = append(args, "-e", "PORT="+strconv.Itoa(ContainerServerPort))

	// Each label gets its own --label flag. Keys are emitted in a fixed
	// order so the generated command line is stable across runs.
	for _, key := range []string{
		LabelManagedBy,
		LabelApp,
		LabelEnvironment,
		LabelRunID,
		LabelPort,
		LabelCreatedAt,
	} {
		args = append(args, "--label", key+"="+labels[key])
	}

	args = append(args, imageTag)
	return args
}

// ListManagedContainers queries the Docker daemon for all containers that
// have the "stagehand.managed-by=stagehand" label. It returns a slice of
// ContainerInfo representing each managed container, including stopped ones.
//
// This function is the entry point for discovering every app container
// at once, as "stagehand stop --all" does. All state is derived from
// Docker labels rather than any external database.
//
// The listing includes stopped containers, so the full managed set is
// visible regardless of state.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	return listByFilter(ctx, cli, filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	))
}

// ContainersForApp queries the Docker daemon for managed containers
// belonging to a single app. The filtering happens server-side in the
// Docker daemon, which is more efficient than listing all containers
// and filtering in Go.
func ContainersForApp(ctx context.Context, cli *Client, app string) ([]model.ContainerInfo, error) {
	return listByFilter(ctx, cli, filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
		filters.Arg("label", LabelApp+"="+app),
	))
}

// ContainersForEnvironment queries the Docker daemon for managed
// containers provisioned against a single conda environment. Used by
// "stagehand remove", which cleans up containers alongside the
// environment they were built from.
func ContainersForEnvironment(ctx context.Context, cli *Client, env string) ([]model.ContainerInfo, error) {
	return listByFilter(ctx, cli, filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
		filters.Arg("label", LabelEnvironment+"="+env),
	))
}

// listByFilter lists containers matching the given label filter. The All
// flag ensures stopped and exited containers are included, not just
// running ones.
func listByFilter(ctx context.Context, cli *Client, filterArgs filters.Args) ([]model.ContainerInfo, error) {
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerUnavailable,
			"failed to list Docker containers",
			err,
		)
	}

	// Convert Docker API types.Container structs to our domain model
	// ContainerInfo structs. This decouples the rest of the application
	// from the Docker SDK types.
	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}

	return result, nil
}

// containerToInfo converts a Docker API Container struct to our domain
// model ContainerInfo. This is a pure mapping function with no side effects.
//
// The Docker API returns container names with a leading "/" prefix
// (e.g., "/stagehand-deustogpt"), which we strip for cleaner display in
// CLI output. The State field from the Docker API is a short string like
// "running", "exited", or "created".
func containerToInfo(c types.Container) model.ContainerInfo {
	// Docker returns names as a slice, and each name has a leading "/"
	// that is an artifact of the API, not meaningful to users.
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Status:        c.State,
		Labels:        c.Labels,
	}
}

// GroupContainersByApp groups a slice of ContainerInfo by their
// "stagehand.app" label value. "stagehand stop --all" uses it to walk
// and report containers app by app.
//
// Containers without a "stagehand.app" label are silently skipped, since
// they cannot be attributed to any app. This should not happen in
// practice because ListManagedContainers already filters for containers
// with stagehand labels.
func GroupContainersByApp(containers []model.ContainerInfo) map[string][]model.ContainerInfo {
	groups := make(map[string][]model.ContainerInfo)

	for _, c := range containers {
		appName, ok := c.Labels[LabelApp]
		if !ok || appName == "" {
			continue
		}
		groups[appName] = append(groups[appName], c)
	}

	return groups
}

// BuildAppContainer constructs an AppContainer domain object from a group
// of containers that belong to the same app.
//
// It uses ParseLabels on the first container's labels to extract the app
// metadata (name, environment, port, run) and attaches all containers for
// downstream display. All containers for the same app carry identical
// stagehand labels, so using the first one is sufficient.
//
// Returns an error if the containers slice is empty or if label parsing
// fails.
func BuildAppContainer(appName string, containers []model.ContainerInfo) (*model.AppContainer, error) {
	if len(containers) == 0 {
		return nil, fmt.Errorf("cannot build app %q: no containers provided", appName)
	}

	app, err := ParseLabels(containers[0].Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to parse labels for app %q: %w", appName, err)
	}

	app.Containers = containers

	return app, nil
}

// StopContainer stops a running container by its ID using the Docker SDK.
// It sends a SIGTERM signal to the container's main process and waits for
// it to exit gracefully. If the container does not stop within the Docker
// daemon's default timeout (typically 10 seconds), it is forcefully
// killed with SIGKILL.
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	// StopOptions with nil Timeout uses Docker's default timeout,
	// giving the container a chance to shut down gracefully.
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerUnavailable,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveContainer removes a container by its ID using the Docker SDK.
// The container must be stopped first unless force is true.
//
// When force is true, Docker will first kill the container (SIGKILL) and
// then remove it. This is used by "stagehand remove --force" where
// graceful shutdown is not required.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerUnavailable,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
