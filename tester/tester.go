// Package tester implements the test stage: it deploys nothing itself (the
// packager already staged the sandbox), but verifies the live instance is
// running the artifact under test and drives the end-to-end test runner.
// Test failures are data, not pipeline errors; everything that goes wrong
// here lands in the results record so the report stage always runs.
package tester

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/plugci/plugci/types"
	"github.com/plugci/plugci/workspace"
)

const (
	// Stage names the test job folder.
	Stage = "test"

	// ResultsFilename is the results record written into the job folder.
	ResultsFilename = "results.json"

	outputDirName   = "e2e-results"
	templateDirName = "e2e-temp"
)

// imageExtensions are scanned for when collecting screenshots.
var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// E2ERunner is the end-to-end test runner collaborator. It executes
// browser-level checks against the live instance and populates the results
// record; it may record an error instead of returning one.
type E2ERunner interface {
	Run(ctx context.Context, outputDir string, results *types.TestResults) error
}

// Config holds the test stage configuration.
type Config struct {
	Workspace    *workspace.Workspace
	PluginID     string
	Build        types.BuildInfo // provenance of the artifact under test
	InstanceURL  string
	Runner       E2ERunner
	TemplateFile string // test-definition template staged before the run
	Log          log.Logger
}

// Tester runs the test stage.
type Tester struct {
	cfg      Config
	instance *Instance
}

// New creates a test stage.
func New(cfg Config) (*Tester, error) {
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("e2e runner is required")
	}
	if cfg.InstanceURL == "" {
		return nil, fmt.Errorf("instance URL is required")
	}
	return &Tester{cfg: cfg, instance: NewInstance(cfg.InstanceURL, cfg.Log)}, nil
}

// Run executes the test stage. Only scratch directory setup is fatal;
// instance probes, version checks and runner failures are captured into the
// returned results.
func (t *Tester) Run(ctx context.Context) (*types.TestResults, error) {
	w := t.cfg.Workspace

	job, err := w.Allocate(Stage)
	if err != nil {
		return nil, err
	}
	outputDir := filepath.Join(w.Root(), outputDirName)
	if err := workspace.RecreateDir(outputDir); err != nil {
		return nil, err
	}

	results := &types.TestResults{Screenshots: []string{}}
	if err := t.execute(ctx, outputDir, results); err != nil {
		t.cfg.Log.Error("Test stage error captured into results", "err", err)
		results.Error = err.Error()
	}

	if err := t.collect(job, outputDir, results); err != nil {
		return nil, err
	}
	if err := w.RecordStats(job); err != nil {
		return nil, err
	}
	return results, nil
}

func (t *Tester) execute(ctx context.Context, outputDir string, results *types.TestResults) error {
	settings, err := t.instance.Settings(ctx)
	if err != nil {
		return err
	}
	results.Instance = settings

	// A plugin record carrying provenance must match the artifact we just
	// deployed. Pass/fail counts against some other build would be
	// misleading.
	hash, err := t.instance.PluginBuildHash(ctx, t.cfg.PluginID)
	if err != nil {
		return err
	}
	if hash != "" && t.cfg.Build.Hash != "" && hash != t.cfg.Build.Hash {
		return types.NewVersionMismatchError(t.cfg.Build.Hash, hash)
	}

	if t.cfg.TemplateFile != "" {
		if err := t.stageTemplate(); err != nil {
			return err
		}
	}
	return t.cfg.Runner.Run(ctx, outputDir, results)
}

// stageTemplate copies the test-definition template into a scratch
// directory the runner picks it up from.
func (t *Tester) stageTemplate() error {
	dest := filepath.Join(t.cfg.Workspace.Root(), templateDirName, filepath.Base(t.cfg.TemplateFile))
	if err := workspace.CopyFile(t.cfg.TemplateFile, dest); err != nil {
		return fmt.Errorf("failed to stage test template: %w", err)
	}
	return nil
}

// collect copies runner output into the job folder, scans it for captured
// screenshots and persists the results record.
func (t *Tester) collect(job *workspace.Job, outputDir string, results *types.TestResults) error {
	target := filepath.Join(job.Dir, outputDirName)
	if workspace.DirExists(outputDir) {
		if err := workspace.MergeDir(outputDir, target); err != nil {
			return fmt.Errorf("failed to collect runner output: %w", err)
		}
	}

	screenshots, err := scanImages(job.Dir)
	if err != nil {
		return err
	}
	results.Screenshots = screenshots

	return workspace.WriteJSONFile(filepath.Join(job.Dir, ResultsFilename), results)
}

func scanImages(dir string) ([]string, error) {
	images := []string{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			images = append(images, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for screenshots: %w", dir, err)
	}
	sort.Strings(images)
	return images, nil
}
