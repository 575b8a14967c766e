package tester

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/plugci/plugci/executor"
	"github.com/plugci/plugci/types"
	"github.com/plugci/plugci/workspace"
)

// DefaultE2ECmd drives the project's own end-to-end test harness.
const DefaultE2ECmd = "yarn e2e"

// summaryFilename is the pass/fail summary the harness writes into its
// output directory.
const summaryFilename = "summary.json"

var _ E2ERunner = (*CommandE2E)(nil)

// CommandE2E runs the end-to-end harness as an external command. The output
// directory is passed as the final argument; afterwards the harness's
// summary file, when present, supplies the pass/fail counts.
type CommandE2E struct {
	Exec    executor.Runner
	WorkDir string
	Cmd     string
}

type e2eSummary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Run implements E2ERunner. A failing harness exit status is recorded in
// the results error after the summary has been read; partial counts from a
// crashed harness are still data.
func (r *CommandE2E) Run(ctx context.Context, outputDir string, results *types.TestResults) error {
	cmdline := r.Cmd
	if cmdline == "" {
		cmdline = DefaultE2ECmd
	}
	name, args := executor.Split(cmdline)
	if name == "" {
		return fmt.Errorf("empty e2e command")
	}
	args = append(args, outputDir)

	runErr := r.Exec.Run(ctx, r.WorkDir, nil, name, args...)

	summaryPath := filepath.Join(outputDir, summaryFilename)
	if workspace.FileExists(summaryPath) {
		var summary e2eSummary
		if err := workspace.ReadJSONFile(summaryPath, &summary); err != nil {
			return err
		}
		results.Passed = summary.Passed
		results.Failed = summary.Failed
	}

	if runErr != nil {
		results.Error = fmt.Sprintf("e2e runner: %v", runErr)
	}
	return nil
}
