package store

import (
	"fmt"
	"strconv"

	"github.com/plugci/plugci/types"
)

// RootPrefix is the top-level namespace all pipeline records live under.
const RootPrefix = "dev"

// scope returns the run-kind segment and its name: ("pr", "42") for pull
// request runs, ("branches", "main") for branch runs.
func scope(build types.BuildInfo) (string, string) {
	if build.IsPR() {
		return string(types.RunKindPR), strconv.Itoa(build.PR)
	}
	return string(types.RunKindBranch), build.Branch
}

// RunPrefix is the remote prefix owned by one (plugin, run, build number)
// triple, e.g. dev/my-panel/pr/42/17.
func RunPrefix(pluginID string, build types.BuildInfo) string {
	kind, name := scope(build)
	return fmt.Sprintf("%s/%s/%s/%s/%d", RootPrefix, pluginID, kind, name, build.Number)
}

// JobKey addresses the published report of one run. It is write-once:
// publishing must refuse to overwrite an existing job key.
func JobKey(pluginID string, build types.BuildInfo) string {
	return RunPrefix(pluginID, build) + "/index.json"
}

// HistoryKey addresses the branch- or PR-scoped history index,
// e.g. dev/my-panel/pr/42/history.json.
func HistoryKey(pluginID string, build types.BuildInfo) string {
	kind, name := scope(build)
	return fmt.Sprintf("%s/%s/%s/%s/history.json", RootPrefix, pluginID, kind, name)
}

// PluginIndexKey addresses the per-plugin index mapping branches and PRs to
// their latest record.
func PluginIndexKey(pluginID string) string {
	return fmt.Sprintf("%s/%s/index.json", RootPrefix, pluginID)
}

// GlobalIndexKey addresses the cross-plugin index mapping plugin ids to
// their latest record.
func GlobalIndexKey() string {
	return RootPrefix + "/index.json"
}

// LogoKey addresses the uploaded logo asset for a plugin.
func LogoKey(pluginID, filename string) string {
	return fmt.Sprintf("%s/%s/logos/%s", RootPrefix, pluginID, filename)
}
