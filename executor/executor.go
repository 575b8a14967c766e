// Package executor runs the external commands the pipeline delegates to:
// backend and frontend builds and the end-to-end test runner. Output is
// streamed as it is produced; the command's own exit status is
// authoritative for stage success.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

var _ Runner = (*commandRunner)(nil)

// Runner executes an external command in a working directory, streaming
// combined output to w.
type Runner interface {
	Run(ctx context.Context, dir string, w io.Writer, name string, args ...string) error
}

// commandRunner implements Runner on top of os/exec.
type commandRunner struct {
	log log.Logger
}

// NewRunner creates a process executor.
func NewRunner(logger log.Logger) Runner {
	return &commandRunner{log: logger}
}

// Run implements Runner. A nil writer streams to stdout only.
func (r *commandRunner) Run(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	r.log.Info("Running command", "cmd", name, "args", strings.Join(args, " "), "dir", dir)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	if w != nil {
		cmd.Stdout = io.MultiWriter(os.Stdout, w)
		cmd.Stderr = io.MultiWriter(os.Stderr, w)
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("command %s exited with code %d", name, exitErr.ExitCode())
		}
		return fmt.Errorf("command %s failed: %w", name, err)
	}
	return nil
}

// Split breaks a configured command line into the executable name and its
// arguments. Commands come from config overrides, not from user input, so
// whitespace splitting is sufficient.
func Split(cmdline string) (string, []string) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
