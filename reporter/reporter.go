// Package reporter implements the report stage: it aggregates the outputs
// of every prior stage into one build report, persists it locally and
// publishes it to the shared remote store under the pipeline's idempotency
// guarantee, then merges the run into the branch/PR and global history
// indexes.
package reporter

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"github.com/plugci/plugci/manifest"
	"github.com/plugci/plugci/packager"
	"github.com/plugci/plugci/store"
	"github.com/plugci/plugci/tester"
	"github.com/plugci/plugci/types"
	"github.com/plugci/plugci/workspace"
)

const (
	// Stage names the report job folder.
	Stage = "report"

	coverageSummaryPath = "coverage/coverage-summary.json"
)

// Config holds the report stage configuration.
type Config struct {
	Workspace        *workspace.Workspace
	Store            store.Client
	Build            types.BuildInfo
	ArtifactsBaseURL string
	PlatformVersions []string
	UploadArtifacts  bool // additionally upload packages and test files
	Log              log.Logger
}

// Reporter runs the report stage.
type Reporter struct {
	cfg Config
}

// New creates a report stage.
func New(cfg Config) (*Reporter, error) {
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store client is required")
	}
	return &Reporter{cfg: cfg}, nil
}

// Run assembles and publishes the build report. Assembly, the local
// persist and the idempotency-checked job record write are fatal on error;
// failures past the job record write are surfaced but do not roll back the
// already-written record.
func (r *Reporter) Run(ctx context.Context) (*types.BuildReport, error) {
	w := r.cfg.Workspace

	job, err := w.Allocate(Stage)
	if err != nil {
		return nil, err
	}

	report, err := r.assemble()
	if err != nil {
		return nil, err
	}

	// The report is persisted locally regardless of what publishing does;
	// a broken remote store must not make the report vanish.
	if err := workspace.WriteJSONFile(w.ReportFile(), report); err != nil {
		return nil, err
	}

	if err := r.publish(ctx, report); err != nil {
		return nil, err
	}

	if err := r.updateHistory(ctx, report); err != nil {
		return report, fmt.Errorf("report published, but history update failed: %w", err)
	}
	if err := w.RecordStats(job); err != nil {
		return report, err
	}
	return report, nil
}

// assemble aggregates the manifest, package details and per-stage summaries
// into the report. Missing package details are a precondition failure: the
// package stage has not run.
func (r *Reporter) assemble() (*types.BuildReport, error) {
	w := r.cfg.Workspace

	infoPath := filepath.Join(w.PackagesDir(), packager.InfoFilename)
	if !workspace.FileExists(infoPath) {
		return nil, types.NewPreconditionError("package info", infoPath)
	}
	var info types.PackageInfo
	if err := workspace.ReadJSONFile(infoPath, &info); err != nil {
		return nil, err
	}

	mf, err := manifest.LoadFromDist(w.DistDir())
	if err != nil {
		return nil, err
	}

	workflow, err := w.Stats()
	if err != nil {
		return nil, err
	}

	report := &types.BuildReport{
		Plugin:           mf.Manifest,
		Packages:         info,
		Workflow:         workflow,
		ArtifactsBaseURL: r.cfg.ArtifactsBaseURL,
		PlatformVersions: r.cfg.PlatformVersions,
		PR:               r.cfg.Build.PR,
	}

	if coverage, err := r.coverageSummary(); err != nil {
		return nil, err
	} else if coverage != nil {
		report.Coverage = coverage
	}

	testResults := filepath.Join(w.JobDir(tester.Stage), tester.ResultsFilename)
	if workspace.FileExists(testResults) {
		var results types.TestResults
		if err := workspace.ReadJSONFile(testResults, &results); err != nil {
			return nil, err
		}
		report.Tests = &results
	}
	return report, nil
}

// coverageSummary reads the frontend build's coverage summary from
// whichever build job produced one.
func (r *Reporter) coverageSummary() (*types.CoverageSummary, error) {
	jobs, err := r.cfg.Workspace.Jobs()
	if err != nil {
		return nil, err
	}
	for _, name := range jobs {
		path := filepath.Join(r.cfg.Workspace.JobDir(name), filepath.FromSlash(coverageSummaryPath))
		if !workspace.FileExists(path) {
			continue
		}
		var summary struct {
			Total types.CoverageSummary `json:"total"`
		}
		if err := workspace.ReadJSONFile(path, &summary); err != nil {
			return nil, err
		}
		return &summary.Total, nil
	}
	return nil, nil
}

// publish writes the report to its job key after the idempotency check. A
// key that is already occupied means this (plugin, run, build number) was
// published before; republishing is refused outright.
func (r *Reporter) publish(ctx context.Context, report *types.BuildReport) error {
	jobKey := store.JobKey(report.Plugin.ID, r.cfg.Build)

	exists, err := r.cfg.Store.Exists(ctx, jobKey)
	if err != nil {
		return fmt.Errorf("failed idempotency check for %s: %w", jobKey, err)
	}
	if exists {
		return types.NewAlreadyRegisteredError(jobKey)
	}

	tags := map[string]string{
		"version": report.Plugin.Info.Version,
		"type":    report.Plugin.Type,
	}
	if err := r.cfg.Store.WriteJSON(ctx, jobKey, report, tags); err != nil {
		return fmt.Errorf("failed to write job record %s: %w", jobKey, err)
	}
	r.cfg.Log.Info("Published build report", "key", jobKey)
	return nil
}
