// Package workspace manages the on-disk layout shared by all pipeline
// stages: the per-stage job folders under the jobs root, the canonical
// distribution tree, the packages directory and the local test sandbox.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/plugci/plugci/types"
)

const (
	// DefaultRoot is the workspace directory created inside the project
	// checkout. Everything the pipeline writes lives underneath it.
	DefaultRoot = "ci"

	// StatsFilename is written into every job folder on stage completion.
	StatsFilename = "stats.json"

	jobsDirName     = "jobs"
	distDirName     = "dist"
	packagesDirName = "packages"
	testEnvDirName  = "testenv"
	reportFilename  = "report.json"
)

// Workspace resolves paths inside the pipeline working area and hands out
// job folders. It never deletes historical job folders; stages clear only
// their own scratch directories at the start of a run.
type Workspace struct {
	root string
	log  log.Logger
}

// New creates a Workspace rooted at dir. The directory tree is created
// lazily as stages allocate folders.
func New(dir string, logger log.Logger) *Workspace {
	if dir == "" {
		dir = DefaultRoot
	}
	return &Workspace{root: dir, log: logger}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// JobsRoot returns the directory holding one folder per stage invocation.
func (w *Workspace) JobsRoot() string { return filepath.Join(w.root, jobsDirName) }

// DistDir returns the canonical distribution directory. The plugin's tree
// is assembled at DistDir()/<pluginID>.
func (w *Workspace) DistDir() string { return filepath.Join(w.root, distDirName) }

// PackagesDir returns the directory receiving zip archives and info.json.
func (w *Workspace) PackagesDir() string { return filepath.Join(w.root, packagesDirName) }

// TestEnvDir returns the local sandbox environment directory.
func (w *Workspace) TestEnvDir() string { return filepath.Join(w.root, testEnvDirName) }

// ReportFile returns the path of the locally persisted build report.
func (w *Workspace) ReportFile() string { return filepath.Join(w.root, reportFilename) }

// Job is a handle to one allocated job folder.
type Job struct {
	Name  string
	Dir   string
	Start time.Time
}

// Allocate creates a fresh, empty job folder for the named stage. Stage
// names are unique within a run, so the folder name is the stage name; an
// existing folder from an earlier aborted run is cleared first. Allocation
// failure means the jobs root is not writable, which is fatal for the whole
// run.
func (w *Workspace) Allocate(stage string) (*Job, error) {
	dir := filepath.Join(w.JobsRoot(), stage)
	if err := RecreateDir(dir); err != nil {
		return nil, fmt.Errorf("failed to allocate job folder %s: %w", dir, err)
	}
	w.log.Debug("Allocated job folder", "stage", stage, "dir", dir)
	return &Job{Name: stage, Dir: dir, Start: time.Now()}, nil
}

// RecordStats writes the job's start time and elapsed wall-clock time into
// its stats file.
func (w *Workspace) RecordStats(job *Job) error {
	stats := types.JobStats{
		StartTime: job.Start,
		Elapsed:   time.Since(job.Start),
	}
	path := filepath.Join(job.Dir, StatsFilename)
	if err := WriteJSONFile(path, stats); err != nil {
		return err
	}
	w.log.Info("Job complete", "stage", job.Name, "elapsed", stats.Elapsed)
	return nil
}

// Jobs returns the names of all job folders under the jobs root in
// lexicographic order. This ordering is the documented merge order for the
// package stage, independent of filesystem enumeration behavior.
func (w *Workspace) Jobs() ([]string, error) {
	entries, err := os.ReadDir(w.JobsRoot())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list job folders: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// JobDir returns the folder path for a named job.
func (w *Workspace) JobDir(name string) string {
	return filepath.Join(w.JobsRoot(), name)
}

// Stats collects the recorded stats of every job folder that has one.
// Folders without a stats file are skipped; a stage that crashed before
// recording still leaves its outputs behind.
func (w *Workspace) Stats() (types.WorkflowSummary, error) {
	names, err := w.Jobs()
	if err != nil {
		return nil, err
	}
	summary := make(types.WorkflowSummary)
	for _, name := range names {
		path := filepath.Join(w.JobDir(name), StatsFilename)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var stats types.JobStats
		if err := json.Unmarshal(data, &stats); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		summary[name] = stats
	}
	return summary, nil
}

// WriteJSONFile marshals v with indentation and writes it to path. Failures
// are wrapped with the target path for diagnosability.
func WriteJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadJSONFile reads path and unmarshals it into v.
func ReadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
