// Package builder implements the build stage. It delegates compilation to
// the project's own backend or frontend build command and moves the outputs
// into an isolated job folder, leaving the shared working directory clean
// for the next job.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"github.com/plugci/plugci/executor"
	"github.com/plugci/plugci/types"
	"github.com/plugci/plugci/workspace"
)

const (
	// DescriptorFile must exist in the working directory for a backend
	// build to run.
	DescriptorFile = "Magefile.go"

	// DefaultBackendCmd builds the plugin's backend binaries.
	DefaultBackendCmd = "mage -v buildAll"

	// DefaultFrontendCmd builds the frontend bundle with coverage data.
	DefaultFrontendCmd = "yarn build --coverage"

	// StageBackend and StageFrontend name the job folders the two build
	// modes write into.
	StageBackend  = "build_backend"
	StageFrontend = "build_frontend"

	buildLogFilename = "build.log"
)

// outputDirs are moved from the working directory into the job folder after
// the delegate completes, whatever its exit status.
var outputDirs = []string{"dist", "coverage"}

// Config holds the build stage configuration.
type Config struct {
	Workspace   *workspace.Workspace
	WorkDir     string // project checkout the delegate runs in
	Backend     bool   // backend build instead of frontend
	BackendCmd  string
	FrontendCmd string
	Runner      executor.Runner
	Log         log.Logger
}

// Builder runs one build job.
type Builder struct {
	cfg Config
}

// New creates a build stage.
func New(cfg Config) (*Builder, error) {
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.BackendCmd == "" {
		cfg.BackendCmd = DefaultBackendCmd
	}
	if cfg.FrontendCmd == "" {
		cfg.FrontendCmd = DefaultFrontendCmd
	}
	return &Builder{cfg: cfg}, nil
}

// Run executes the build job. The delegate's exit status is authoritative:
// its error is returned after outputs are moved and stats recorded, so a
// failed build still leaves its partial outputs inspectable in the job
// folder.
func (b *Builder) Run(ctx context.Context) error {
	stage := StageFrontend
	cmdline := b.cfg.FrontendCmd
	if b.cfg.Backend {
		stage = StageBackend
		cmdline = b.cfg.BackendCmd

		descriptor := filepath.Join(b.cfg.WorkDir, DescriptorFile)
		if !workspace.FileExists(descriptor) {
			return types.NewPreconditionError("build descriptor", descriptor)
		}
	}

	job, err := b.cfg.Workspace.Allocate(stage)
	if err != nil {
		return err
	}

	delegateErr := b.delegate(ctx, job, cmdline)
	if delegateErr != nil {
		b.cfg.Log.Error("Build delegate failed", "stage", stage, "err", delegateErr)
	}

	// Outputs leave the shared working directory even when the delegate
	// failed; the next job must not inherit them.
	for _, name := range outputDirs {
		src := filepath.Join(b.cfg.WorkDir, name)
		if !workspace.DirExists(src) {
			continue
		}
		if err := workspace.MoveDir(src, filepath.Join(job.Dir, name)); err != nil {
			return fmt.Errorf("failed to collect %s output: %w", name, err)
		}
		b.cfg.Log.Debug("Collected build output", "stage", stage, "dir", name)
	}

	if err := b.cfg.Workspace.RecordStats(job); err != nil {
		return err
	}
	return delegateErr
}

func (b *Builder) delegate(ctx context.Context, job *workspace.Job, cmdline string) error {
	logFile, err := os.Create(filepath.Join(job.Dir, buildLogFilename))
	if err != nil {
		return fmt.Errorf("failed to create build log: %w", err)
	}
	defer logFile.Close()

	name, args := executor.Split(cmdline)
	if name == "" {
		return fmt.Errorf("empty build command for stage %s", job.Name)
	}
	return b.cfg.Runner.Run(ctx, b.cfg.WorkDir, logFile, name, args...)
}
