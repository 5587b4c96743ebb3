package docker

import (
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// TestContainerName verifies the deterministic name scheme used to find
// and replace a previously started app container.
func TestContainerName(t *testing.T) {
	assert.Equal(t, "stagehand-deustogpt", ContainerName("deustogpt"))
}

func TestImageTag(t *testing.T) {
	assert.Equal(t, "stagehand/deustogpt:latest", ImageTag("deustogpt"))
}

// TestBuildImageArgs verifies the "docker build" command line, including
// the "." context that resolves against the command's working directory.
func TestBuildImageArgs(t *testing.T) {
	args := buildImageArgs(BuildOptions{
		Tag:        "stagehand/deustogpt:latest",
		Dockerfile: "Dockerfile",
		ContextDir: "/home/user/project",
	})

	assert.Equal(t, []string{
		"build", "-t", "stagehand/deustogpt:latest", "-f", "Dockerfile", ".",
	}, args)
}

// TestBuildImageArgs_DefaultDockerfile verifies the -f flag is omitted
// when no Dockerfile path is given, letting docker build use its default.
func TestBuildImageArgs_DefaultDockerfile(t *testing.T) {
	args := buildImageArgs(BuildOptions{
		Tag:        "stagehand/deustogpt:latest",
		ContextDir: "/home/user/project",
	})

	assert.Equal(t, []string{"build", "-t", "stagehand/deustogpt:latest", "."}, args)
}

// TestRunContainerArgs verifies the full "docker run" argument list: the
// host port published to the fixed in-container server port, the PORT
// environment variable for the containerized process, and the complete
// stagehand label set.
func TestRunContainerArgs(t *testing.T) {
	app := &model.AppContainer{
		App:         "deustogpt",
		Environment: "deustogpt",
		Port:        9200,
		RunID:       "3e9d5c1a-55ad-4e27-9a9f-0f6d8f2a7c41",
		CreatedAt:   time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}

	args := runContainerArgs(app, "stagehand/deustogpt:latest")

	assert.Equal(t, []string{
		"run", "-d",
		"--name", "stagehand-deustogpt",
		"-p", "9200:8501",
		"-e", "PORT=8501",
		"--label", "stagehand.managed-by=stagehand",
		"--label", "stagehand.app=deustogpt",
		"--label", "stagehand.environment=deustogpt",
		"--label", "stagehand.run-id=3e9d5c1a-55ad-4e27-9a9f-0f6d8f2a7c41",
		"--label", "stagehand.port=9200",
		"--label", "stagehand.created-at=2026-08-25T10:00:00Z",
		"stagehand/deustogpt:latest",
	}, args)
}

// TestContainerToInfo verifies the Docker API to domain model conversion,
// including stripping the leading "/" the API puts on container names.
func TestContainerToInfo(t *testing.T) {
	c := types.Container{
		ID:    "abc123def456",
		Names: []string{"/stagehand-deustogpt"},
		State: "running",
		Labels: map[string]string{
			LabelManagedBy: ManagedByValue,
			LabelApp:       "deustogpt",
		},
	}

	info := containerToInfo(c)

	assert.Equal(t, "abc123def456", info.ContainerID)
	assert.Equal(t, "stagehand-deustogpt", info.ContainerName,
		"leading slash should be stripped from the container name")
	assert.Equal(t, "running", info.Status)
	assert.Equal(t, "deustogpt", info.Labels[LabelApp])
}

// TestContainerToInfo_NoNames verifies the conversion does not panic on a
// container with an empty name list.
func TestContainerToInfo_NoNames(t *testing.T) {
	info := containerToInfo(types.Container{ID: "abc123", State: "exited"})

	assert.Equal(t, "abc123", info.ContainerID)
	assert.Empty(t, info.ContainerName)
}

// TestGroupContainersByApp verifies grouping by the stagehand.app label
// and that unlabeled containers are skipped.
func TestGroupContainersByApp(t *testing.T) {
	containers := []model.ContainerInfo{
		{ContainerID: "c1", Labels: map[string]string{LabelApp: "deustogpt"}},
		{ContainerID: "c2", Labels: map[string]string{LabelApp: "other-app"}},
		{ContainerID: "c3", Labels: map[string]string{LabelApp: "deustogpt"}},
		{ContainerID: "c4", Labels: map[string]string{}},
	}

	groups := GroupContainersByApp(containers)

	require.Len(t, groups, 2)
	assert.Len(t, groups["deustogpt"], 2)
	assert.Len(t, groups["other-app"], 1)
}

// TestBuildAppContainer verifies the domain object assembly from a label
// map plus live container state.
func TestBuildAppContainer(t *testing.T) {
	containers := []model.ContainerInfo{
		{
			ContainerID:   "abc123",
			ContainerName: "stagehand-deustogpt",
			Status:        "running",
			Labels: map[string]string{
				LabelManagedBy:   ManagedByValue,
				LabelApp:         "deustogpt",
				LabelEnvironment: "deustogpt",
				LabelPort:        "8501",
				LabelRunID:       "3e9d5c1a-55ad-4e27-9a9f-0f6d8f2a7c41",
				LabelCreatedAt:   "2026-08-25T10:00:00Z",
			},
		},
	}

	app, err := BuildAppContainer("deustogpt", containers)

	require.NoError(t, err)
	assert.Equal(t, "deustogpt", app.App)
	assert.Equal(t, 8501, app.Port)
	require.Len(t, app.Containers, 1)
	assert.True(t, app.Running())
}

// TestBuildAppContainer_Errors covers the empty group and a container
// whose labels cannot be parsed back into an app.
func TestBuildAppContainer_Errors(t *testing.T) {
	_, err := BuildAppContainer("deustogpt", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no containers")

	_, err = BuildAppContainer("deustogpt", []model.ContainerInfo{
		{ContainerID: "abc123", Labels: map[string]string{LabelApp: "deustogpt"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse labels")
}
