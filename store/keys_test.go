package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plugci/plugci/types"
)

func TestJobKey_PRRun(t *testing.T) {
	build := types.BuildInfo{PR: 42, Number: 17}
	assert.Equal(t, "dev/my-panel/pr/42/17/index.json", JobKey("my-panel", build))
}

func TestJobKey_BranchRun(t *testing.T) {
	build := types.BuildInfo{Branch: "main", Number: 17}
	assert.Equal(t, "dev/my-panel/branches/main/17/index.json", JobKey("my-panel", build))
}

func TestHistoryKey_ScopedToRun(t *testing.T) {
	assert.Equal(t, "dev/my-panel/pr/42/history.json",
		HistoryKey("my-panel", types.BuildInfo{PR: 42, Number: 17}))
	assert.Equal(t, "dev/my-panel/branches/feature-x/history.json",
		HistoryKey("my-panel", types.BuildInfo{Branch: "feature-x", Number: 3}))
}

func TestIndexKeys(t *testing.T) {
	assert.Equal(t, "dev/my-panel/index.json", PluginIndexKey("my-panel"))
	assert.Equal(t, "dev/index.json", GlobalIndexKey())
}

func TestRunPrefix(t *testing.T) {
	assert.Equal(t, "dev/my-panel/pr/42/17",
		RunPrefix("my-panel", types.BuildInfo{PR: 42, Number: 17}))
}

func TestLogoKey(t *testing.T) {
	assert.Equal(t, "dev/my-panel/logos/logo.svg", LogoKey("my-panel", "logo.svg"))
}

func TestPRTakesPrecedenceOverBranch(t *testing.T) {
	// CI sets both on PR builds; the PR scope wins.
	build := types.BuildInfo{Branch: "feature-x", PR: 42, Number: 17}
	assert.Equal(t, "dev/my-panel/pr/42/17/index.json", JobKey("my-panel", build))
}
