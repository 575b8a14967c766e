package plugci

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/plugci/plugci/builder"
	"github.com/plugci/plugci/executor"
	"github.com/plugci/plugci/manifest"
	"github.com/plugci/plugci/metrics"
	"github.com/plugci/plugci/packager"
	"github.com/plugci/plugci/reporter"
	"github.com/plugci/plugci/store"
	"github.com/plugci/plugci/tester"
	"github.com/plugci/plugci/types"
	"github.com/plugci/plugci/workspace"
)

const tracerName = "plugci"

// Pipeline drives the four stages of one run: build, package, test,
// report. Control flow is strictly sequential; stages communicate through
// the workspace on disk and, for the report stage, through the remote
// store.
type Pipeline struct {
	cfg   *Config
	ws    *workspace.Workspace
	exec  executor.Runner
	runID string

	pluginID string
	tests    *types.TestResults
	summary  []stageSummary
}

type stageSummary struct {
	Stage    string
	Status   types.StageStatus
	Duration time.Duration
	Err      error
}

// NewPipeline creates a pipeline from the application config.
func NewPipeline(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return &Pipeline{
		cfg:   cfg,
		ws:    workspace.New(cfg.CIDir, cfg.Log),
		exec:  executor.NewRunner(cfg.Log),
		runID: uuid.New().String(),
	}, nil
}

// Run executes the full pipeline. The frontend build always runs; the
// backend build runs when the working directory carries a build
// descriptor. Test failures surface as a TestFailureError after the report
// stage has published, runtime failures abort immediately.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.stage(ctx, "build", func(ctx context.Context) error {
		if err := p.build(ctx, false); err != nil {
			return err
		}
		if p.hasBackend() {
			return p.build(ctx, true)
		}
		return nil
	}); err != nil {
		return NewRuntimeError(err)
	}

	if err := p.stage(ctx, "package", p.runPackage); err != nil {
		return NewRuntimeError(err)
	}
	if err := p.stage(ctx, "test", p.runTest); err != nil {
		return NewRuntimeError(err)
	}
	if err := p.stage(ctx, "report", p.runReport); err != nil {
		return NewRuntimeError(err)
	}

	p.printSummary()

	if p.tests != nil && (p.tests.Failed > 0 || p.tests.Error != "") {
		return NewTestFailureError(fmt.Sprintf("%d failed, error: %s", p.tests.Failed, p.tests.Error))
	}
	return nil
}

// Build runs one build job in the mode the config selects. Exposed for the
// per-stage CI entrypoint.
func (p *Pipeline) Build(ctx context.Context) error {
	return p.stage(ctx, "build", func(ctx context.Context) error {
		return p.build(ctx, p.cfg.Backend)
	})
}

// Package runs the package stage.
func (p *Pipeline) Package(ctx context.Context) error {
	return p.stage(ctx, "package", p.runPackage)
}

// Test runs the test stage.
func (p *Pipeline) Test(ctx context.Context) error {
	return p.stage(ctx, "test", p.runTest)
}

// Report runs the report stage.
func (p *Pipeline) Report(ctx context.Context) error {
	return p.stage(ctx, "report", p.runReport)
}

// TestResults returns the results of the last test stage, if it ran.
func (p *Pipeline) TestResults() *types.TestResults {
	return p.tests
}

func (p *Pipeline) hasBackend() bool {
	return workspace.FileExists(p.cfg.WorkDir + "/" + builder.DescriptorFile)
}

func (p *Pipeline) build(ctx context.Context, backend bool) error {
	b, err := builder.New(builder.Config{
		Workspace:   p.ws,
		WorkDir:     p.cfg.WorkDir,
		Backend:     backend,
		BackendCmd:  p.cfg.BackendCmd,
		FrontendCmd: p.cfg.FrontendCmd,
		Runner:      p.exec,
		Log:         p.cfg.Log,
	})
	if err != nil {
		return err
	}
	return b.Run(ctx)
}

func (p *Pipeline) runPackage(ctx context.Context) error {
	pkg, err := packager.New(packager.Config{
		Workspace: p.ws,
		WorkDir:   p.cfg.WorkDir,
		Build:     p.cfg.Build,
		Log:       p.cfg.Log,
	})
	if err != nil {
		return err
	}
	result, err := pkg.Run(ctx)
	if err != nil {
		if types.IsMergeConflictError(err) {
			metrics.RecordMergeConflict()
		}
		return err
	}
	p.pluginID = result.Manifest.ID
	return nil
}

func (p *Pipeline) runTest(ctx context.Context) error {
	pluginID, err := p.resolvePluginID()
	if err != nil {
		return err
	}
	t, err := tester.New(tester.Config{
		Workspace:    p.ws,
		PluginID:     pluginID,
		Build:        p.cfg.Build,
		InstanceURL:  p.cfg.InstanceURL,
		Runner:       &tester.CommandE2E{Exec: p.exec, WorkDir: p.cfg.WorkDir, Cmd: p.cfg.E2ECmd},
		TemplateFile: p.cfg.TestTemplate,
		Log:          p.cfg.Log,
	})
	if err != nil {
		return err
	}
	results, err := t.Run(ctx)
	if err != nil {
		return err
	}
	p.tests = results
	return nil
}

func (p *Pipeline) runReport(ctx context.Context) error {
	if p.cfg.Build.Branch == "" && !p.cfg.Build.IsPR() {
		return fmt.Errorf("publishing requires a branch name or PR number in the CI environment")
	}
	client, err := p.storeClient()
	if err != nil {
		return err
	}
	r, err := reporter.New(reporter.Config{
		Workspace:        p.ws,
		Store:            client,
		Build:            p.cfg.Build,
		ArtifactsBaseURL: p.cfg.ArtifactsBaseURL,
		PlatformVersions: p.cfg.PlatformVersions,
		UploadArtifacts:  p.cfg.UploadArtifacts,
		Log:              p.cfg.Log,
	})
	if err != nil {
		return err
	}
	report, err := r.Run(ctx)
	if err != nil {
		return err
	}
	metrics.RecordPublish(report.Plugin.ID, p.cfg.Build.Kind())
	return nil
}

func (p *Pipeline) storeClient() (store.Client, error) {
	if p.cfg.StoreDir == "" {
		return nil, fmt.Errorf("store directory is required for the report stage")
	}
	return store.NewFS(p.cfg.StoreDir, p.cfg.StoreBaseURL)
}

// resolvePluginID uses the id observed during packaging, falling back to
// the canonical tree when the test stage runs as its own CI job.
func (p *Pipeline) resolvePluginID() (string, error) {
	if p.pluginID != "" {
		return p.pluginID, nil
	}
	mf, err := manifest.LoadFromDist(p.ws.DistDir())
	if err != nil {
		return "", err
	}
	p.pluginID = mf.Manifest.ID
	return p.pluginID, nil
}

// stage wraps one pipeline stage with tracing, metrics and the run
// summary.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "stage."+name)
	span.SetAttributes(attribute.String("run_id", p.runID))
	defer span.End()

	p.cfg.Log.Info("Stage starting", "run_id", p.runID, "stage", name)
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := types.StageStatusPass
	if err != nil {
		status = types.StageStatusFail
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordErrorDetails("stage "+name, err)
	}
	metrics.RecordStage(p.pluginID, name, status, elapsed)
	p.summary = append(p.summary, stageSummary{Stage: name, Status: status, Duration: elapsed, Err: err})

	if err != nil {
		p.cfg.Log.Error("Stage failed", "stage", name, "duration", elapsed, "err", err)
		return err
	}
	p.cfg.Log.Info("Stage complete", "stage", name, "duration", elapsed)
	return nil
}

// printSummary prints the per-stage outcome of the run to the console.
func (p *Pipeline) printSummary() {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Pipeline Results (%s)", p.pluginID))

	t.AppendHeader(table.Row{"Stage", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Duration", Align: text.AlignRight},
	})

	failed := false
	var total time.Duration
	for _, s := range p.summary {
		t.AppendRow(table.Row{s.Stage, s.Duration.Round(time.Millisecond), string(s.Status)})
		total += s.Duration
		if s.Status == types.StageStatusFail {
			failed = true
		}
	}
	if p.tests != nil {
		t.AppendRow(table.Row{"e2e tests", "", fmt.Sprintf("%d passed, %d failed", p.tests.Passed, p.tests.Failed)})
	}

	if failed || (p.tests != nil && (p.tests.Failed > 0 || p.tests.Error != "")) {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{"TOTAL", total.Round(time.Millisecond), ""})
	t.Render()
}
