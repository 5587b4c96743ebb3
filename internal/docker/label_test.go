package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// TestBuildLabels verifies that BuildLabels converts an AppContainer into
// a Docker label map with all required keys and values.
func TestBuildLabels(t *testing.T) {
	createdAt := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	app := &model.AppContainer{
		App:         "deustogpt",
		Environment: "deustogpt",
		Port:        9200,
		RunID:       "3e9d5c1a-55ad-4e27-9a9f-0f6d8f2a7c41",
		CreatedAt:   createdAt,
	}

	labels := BuildLabels(app)

	assert.Equal(t, ManagedByValue, labels[LabelManagedBy],
		"managed-by label should always be set to the constant value")
	assert.Equal(t, "deustogpt", labels[LabelApp])
	assert.Equal(t, "deustogpt", labels[LabelEnvironment])
	assert.Equal(t, "9200", labels[LabelPort])
	assert.Equal(t, "3e9d5c1a-55ad-4e27-9a9f-0f6d8f2a7c41", labels[LabelRunID])
	assert.Equal(t, "2026-08-25T10:00:00Z", labels[LabelCreatedAt])
	assert.Len(t, labels, 6, "expected exactly the 6 stagehand labels")
}

// TestBuildLabels_UTCNormalization verifies that non-UTC creation times
// are normalized before being written into the label, so label values are
// comparable regardless of the host timezone.
func TestBuildLabels_UTCNormalization(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	app := &model.AppContainer{
		App:       "deustogpt",
		CreatedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, loc),
	}

	labels := BuildLabels(app)

	assert.Equal(t, "2026-08-25T10:00:00Z", labels[LabelCreatedAt])
}

// TestParseLabels verifies that ParseLabels reconstructs an AppContainer
// from a Docker label map. This is the inverse of BuildLabels.
func TestParseLabels(t *testing.T) {
	labels := map[string]string{
		LabelManagedBy:   ManagedByValue,
		LabelApp:         "deustogpt",
		LabelEnvironment: "deustogpt",
		LabelPort:        "9200",
		LabelRunID:       "3e9d5c1a-55ad-4e27-9a9f-0f6d8f2a7c41",
		LabelCreatedAt:   "2026-08-25T10:00:00Z",
	}

	app, err := ParseLabels(labels)

	require.NoError(t, err, "ParseLabels should succeed with valid labels")
	assert.Equal(t, "deustogpt", app.App)
	assert.Equal(t, "deustogpt", app.Environment)
	assert.Equal(t, 9200, app.Port)
	assert.Equal(t, "3e9d5c1a-55ad-4e27-9a9f-0f6d8f2a7c41", app.RunID)
	assert.Equal(t, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC), app.CreatedAt)
	assert.Empty(t, app.Containers, "live container state is not stored in labels")
}

// TestParseLabels_RoundTrip verifies that a label map produced by
// BuildLabels parses back into an equal AppContainer.
func TestParseLabels_RoundTrip(t *testing.T) {
	original := &model.AppContainer{
		App:         "deustogpt",
		Environment: "deustogpt",
		Port:        8501,
		RunID:       "7f1b2a9e-0c3d-4f58-8a6b-1d2e3f405162",
		CreatedAt:   time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC),
	}

	parsed, err := ParseLabels(BuildLabels(original))

	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

// TestParseLabels_MissingLabels verifies that all missing required labels
// are reported at once, not just the first one encountered.
func TestParseLabels_MissingLabels(t *testing.T) {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelApp:       "deustogpt",
	}

	_, err := ParseLabels(labels)

	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelEnvironment)
	assert.Contains(t, err.Error(), LabelRunID)
	assert.Contains(t, err.Error(), LabelPort)
	assert.Contains(t, err.Error(), LabelCreatedAt)
}

// TestParseLabels_ForeignManagedBy verifies that a container tagged by a
// different tool is rejected even if it happens to carry all required keys.
func TestParseLabels_ForeignManagedBy(t *testing.T) {
	labels := map[string]string{
		LabelManagedBy:   "some-other-tool",
		LabelApp:         "deustogpt",
		LabelEnvironment: "deustogpt",
		LabelPort:        "8501",
		LabelRunID:       "7f1b2a9e-0c3d-4f58-8a6b-1d2e3f405162",
		LabelCreatedAt:   "2026-08-25T10:00:00Z",
	}

	_, err := ParseLabels(labels)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected value")
}

// TestParseLabels_InvalidValues verifies that malformed port and
// timestamp values are rejected with an error naming the bad label.
func TestParseLabels_InvalidValues(t *testing.T) {
	valid := func() map[string]string {
		return map[string]string{
			LabelManagedBy:   ManagedByValue,
			LabelApp:         "deustogpt",
			LabelEnvironment: "deustogpt",
			LabelPort:        "8501",
			LabelRunID:       "7f1b2a9e-0c3d-4f58-8a6b-1d2e3f405162",
			LabelCreatedAt:   "2026-08-25T10:00:00Z",
		}
	}

	t.Run("bad port", func(t *testing.T) {
		labels := valid()
		labels[LabelPort] = "eight-thousand"

		_, err := ParseLabels(labels)

		require.Error(t, err)
		assert.Contains(t, err.Error(), LabelPort)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		labels := valid()
		labels[LabelCreatedAt] = "yesterday"

		_, err := ParseLabels(labels)

		require.Error(t, err)
		assert.Contains(t, err.Error(), LabelCreatedAt)
	})
}
