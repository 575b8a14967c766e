package types

import (
	"time"
)

// RunKind distinguishes pull-request pipeline runs from branch runs.
// It selects the remote key scope a run publishes under.
type RunKind string

const (
	RunKindBranch RunKind = "branches"
	RunKindPR     RunKind = "pr"
)

// StageStatus represents the outcome of one pipeline stage
type StageStatus string

const (
	StageStatusPass StageStatus = "pass"
	StageStatusFail StageStatus = "fail"
	StageStatusSkip StageStatus = "skip"
)

// BuildInfo is the build provenance stamped into the plugin manifest and
// carried through every published record.
type BuildInfo struct {
	Time   int64  `json:"time,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
	Hash   string `json:"hash,omitempty"`
	Number int    `json:"number,omitempty"`
	PR     int    `json:"pr,omitempty"`
}

// IsPR reports whether this build came from a pull request.
func (b BuildInfo) IsPR() bool {
	return b.PR > 0
}

// Kind returns the run kind implied by the provenance.
func (b BuildInfo) Kind() RunKind {
	if b.IsPR() {
		return RunKindPR
	}
	return RunKindBranch
}

// PluginManifest mirrors the plugin.json shipped inside the distribution tree.
// Only the fields the pipeline reads or stamps are modelled; unknown fields
// are preserved by the manifest reader/writer.
type PluginManifest struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Type string     `json:"type"`
	Info PluginInfo `json:"info"`
}

// PluginInfo is the nested info block of a plugin manifest.
type PluginInfo struct {
	Version string      `json:"version"`
	Logos   PluginLogos `json:"logos"`
	Build   *BuildInfo  `json:"build,omitempty"`
}

// PluginLogos holds the manifest's logo asset paths, relative to the
// distribution tree.
type PluginLogos struct {
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// PackageDetails describes one produced archive.
type PackageDetails struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// PackageInfo is the persisted content of packages/info.json: details for
// the plugin archive and, when present, the docs archive.
type PackageInfo struct {
	Plugin PackageDetails  `json:"plugin"`
	Docs   *PackageDetails `json:"docs,omitempty"`
}

// JobStats is written as stats.json into every job folder on completion.
type JobStats struct {
	StartTime time.Time     `json:"startTime"`
	Elapsed   time.Duration `json:"elapsed"`
}

// WorkflowSummary maps job folder names to their recorded stats. It gives
// the report a per-stage timing breakdown of the whole run.
type WorkflowSummary map[string]JobStats

// InstanceBuildInfo is the build snapshot a live instance reports from its
// settings endpoint.
type InstanceBuildInfo struct {
	Version string `json:"version,omitempty"`
	Commit  string `json:"commit,omitempty"`
	Env     string `json:"env,omitempty"`
}

// TestResults captures the outcome of the end-to-end test stage. Runner and
// version-check failures land in Error rather than failing the pipeline, so
// the report stage always has something to publish.
type TestResults struct {
	Passed      int                `json:"passed"`
	Failed      int                `json:"failed"`
	Screenshots []string           `json:"screenshots"`
	Error       string             `json:"error,omitempty"`
	Instance    *InstanceBuildInfo `json:"instance,omitempty"`
}

// CoverageMetric is one line of an istanbul-style coverage summary.
type CoverageMetric struct {
	Total   int     `json:"total"`
	Covered int     `json:"covered"`
	Pct     float64 `json:"pct"`
}

// CoverageSummary is the "total" block of coverage/coverage-summary.json,
// produced by the frontend build when coverage is enabled.
type CoverageSummary struct {
	Lines      CoverageMetric `json:"lines"`
	Statements CoverageMetric `json:"statements"`
	Functions  CoverageMetric `json:"functions"`
	Branches   CoverageMetric `json:"branches"`
}

// BuildReport is the aggregate published at the end of a run. One report per
// run; immutable once written.
type BuildReport struct {
	Plugin           PluginManifest   `json:"plugin"`
	Packages         PackageInfo      `json:"packages"`
	Workflow         WorkflowSummary  `json:"workflow"`
	Coverage         *CoverageSummary `json:"coverage,omitempty"`
	Tests            *TestResults     `json:"tests,omitempty"`
	ArtifactsBaseURL string           `json:"artifactsBaseUrl,omitempty"`
	PlatformVersions []string         `json:"platformVersions,omitempty"`
	PR               int              `json:"pr,omitempty"`
}

// HistoryRecord summarizes one published build inside a history index.
// Records are superseded per key, never edited in place.
type HistoryRecord struct {
	PluginID string    `json:"pluginId"`
	Name     string    `json:"name"`
	Logo     string    `json:"logo,omitempty"`
	Build    BuildInfo `json:"build"`
	Version  string    `json:"version"`
}

// HistoryIndex maps branch names and PR numbers to their latest published
// record. Index updates are read-merge-write against the remote store; the
// last successful writer wins per key.
type HistoryIndex struct {
	Branches map[string]HistoryRecord `json:"branches"`
	PRs      map[string]HistoryRecord `json:"pr"`
}

// NewHistoryIndex returns an index with initialized maps, the default value
// handed out when no index exists remotely yet.
func NewHistoryIndex() *HistoryIndex {
	return &HistoryIndex{
		Branches: make(map[string]HistoryRecord),
		PRs:      make(map[string]HistoryRecord),
	}
}

// GlobalIndex maps plugin ids to their latest published record across all
// plugins sharing the store.
type GlobalIndex map[string]HistoryRecord
