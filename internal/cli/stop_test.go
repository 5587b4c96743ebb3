// stop_test.go covers the pure helpers behind the stop command.
package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmr-tortoise/stagehand/internal/model"
)

// TestSortedAppNames verifies apps come back in ascending name order
// regardless of map iteration order.
func TestSortedAppNames(t *testing.T) {
	groups := map[string][]model.ContainerInfo{
		"zeta":  {{ContainerName: "stagehand-zeta"}},
		"alpha": {{ContainerName: "stagehand-alpha"}},
		"mid":   {{ContainerName: "stagehand-mid"}},
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, sortedAppNames(groups))
}

// TestSortedAppNames_Empty verifies an empty group map yields an empty
// slice.
func TestSortedAppNames_Empty(t *testing.T) {
	assert.Empty(t, sortedAppNames(map[string][]model.ContainerInfo{}))
}
