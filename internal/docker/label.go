package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// Label key constants define the Docker label keys used to persist app
// metadata on containers started in container mode. These labels serve as
// the sole persistence mechanism; there is no external state file.
//
// All keys share the "stagehand." prefix to namespace them and avoid
// collisions with labels set by other tools (Docker Compose, VS Code, etc.).
const (
	// LabelPrefix is the common prefix for all stagehand labels.
	// Using a consistent prefix enables efficient label-based filtering
	// when listing containers via the Docker API.
	LabelPrefix = "stagehand."

	// LabelManagedBy identifies containers managed by stagehand.
	// This is the primary label used for filtering and discovery.
	// Key: "stagehand.managed-by", Value: always "stagehand".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelApp stores the app name from the manifest.
	// Key: "stagehand.app", Value: app name (e.g., "deustogpt").
	LabelApp = LabelPrefix + "app"

	// LabelEnvironment stores the conda environment name the app was
	// provisioned against.
	// Key: "stagehand.environment", Value: environment name.
	LabelEnvironment = LabelPrefix + "environment"

	// LabelRunID stores the identifier of the provisioning run that
	// started this container, tying the container back to its report.
	// Key: "stagehand.run-id", Value: UUID string.
	LabelRunID = LabelPrefix + "run-id"

	// LabelPort stores the host port published to the container's
	// server port.
	// Key: "stagehand.port", Value: decimal port number.
	LabelPort = LabelPrefix + "port"

	// LabelCreatedAt stores the timestamp of container creation.
	// Key: "stagehand.created-at", Value: RFC3339 formatted timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
// All containers created by this CLI are tagged with this value,
// enabling discovery via Docker API label filters.
const ManagedByValue = "stagehand"

// BuildLabels constructs a Docker label map from an AppContainer.
// These labels are applied to the container at run time, allowing full
// reconstruction of the AppContainer from container inspection alone
// (no external state file needed).
func BuildLabels(app *model.AppContainer) map[string]string {
	return map[string]string{
		LabelManagedBy:   ManagedByValue,
		LabelApp:         app.App,
		LabelEnvironment: app.Environment,
		LabelRunID:       app.RunID,
		LabelPort:        strconv.Itoa(app.Port),
		// time.RFC3339 produces ISO-8601 compatible timestamps like
		// "2026-08-25T10:00:00Z". Using UTC ensures consistency
		// regardless of the host machine's timezone.
		LabelCreatedAt: app.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs an AppContainer from Docker container labels.
// This is the inverse of BuildLabels and is used when listing or
// inspecting containers to rebuild the domain model.
//
// Required labels: managed-by, app, environment, run-id, port, created-at.
// Missing required labels cause an error.
//
// Note: Containers is NOT reconstructed from labels because it is
// determined at runtime from Docker container state, not from static
// label values.
func ParseLabels(labels map[string]string) (*model.AppContainer, error) {
	// Check all required labels at once rather than failing on the first
	// missing one, so the error message can list every missing label.
	requiredKeys := []string{
		LabelManagedBy,
		LabelApp,
		LabelEnvironment,
		LabelRunID,
		LabelPort,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	// Verify this container is actually managed by stagehand.
	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	port, err := strconv.Atoi(labels[LabelPort])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelPort, err)
	}

	// time.RFC3339 is Go's constant for the ISO-8601 / RFC-3339 format.
	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &model.AppContainer{
		App:         labels[LabelApp],
		Environment: labels[LabelEnvironment],
		Port:        port,
		RunID:       labels[LabelRunID],
		CreatedAt:   createdAt,
	}, nil
}
